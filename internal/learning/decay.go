package learning

import (
	"math"
	"sort"
	"time"

	"github.com/jonesrussell/national-treasure/internal/domain"
)

// DefaultHalfLifeDays is the default outcome half-life. An outcome thirty
// days old counts half as much as one from just now.
const DefaultHalfLifeDays = 30.0

// hoursPerDay converts durations to the day unit the decay curve uses.
const hoursPerDay = 24.0

// Weight returns the decay weight of an outcome of the given age.
func Weight(age time.Duration, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	ageDays := age.Hours() / hoursPerDay
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-math.Ln2 * ageDays / halfLifeDays)
}

// BuildArms folds a domain's outcome history into per-configuration arm
// statistics with decay weighting. Arms come back sorted by config id so
// selection is deterministic under a seeded sampler.
func BuildArms(outcomes []*domain.Outcome, now time.Time, halfLifeDays float64) []ArmStats {
	byConfig := make(map[string]*ArmStats)
	for _, o := range outcomes {
		arm, ok := byConfig[o.ConfigID]
		if !ok {
			arm = &ArmStats{ConfigID: o.ConfigID}
			byConfig[o.ConfigID] = arm
		}

		w := Weight(now.Sub(o.Timestamp), halfLifeDays)
		arm.Observations++
		if o.Success() {
			arm.Successes += w
			ts := o.Timestamp
			if arm.LastSuccess == nil || ts.After(*arm.LastSuccess) {
				arm.LastSuccess = &ts
			}
		} else {
			arm.Failures += w
		}
	}

	arms := make([]ArmStats, 0, len(byConfig))
	for _, arm := range byConfig {
		arms = append(arms, *arm)
	}
	sort.Slice(arms, func(i, j int) bool { return arms[i].ConfigID < arms[j].ConfigID })
	return arms
}
