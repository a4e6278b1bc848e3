// Package learning selects browser configurations per domain with a
// Thompson-sampling bandit over decay-weighted outcome history.
package learning

import (
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// sampleEpsilon is the band within which two samples count as a tie.
const sampleEpsilon = 1e-9

// ArmStats is the bandit's view of one configuration for one domain.
// Successes and Failures are decay-weighted sums; Observations is the raw
// row count used for the exploration threshold.
type ArmStats struct {
	ConfigID     string
	Successes    float64
	Failures     float64
	Observations int
	LastSuccess  *time.Time
}

// Sampler draws Thompson samples over arms.
type Sampler struct {
	rng       *rand.Rand
	bonus     float64
	threshold int
}

// NewSampler creates a sampler. The exploration bonus is added to the
// sampled value of any arm with fewer than threshold raw observations.
func NewSampler(seed uint64, bonus float64, threshold int) *Sampler {
	return &Sampler{
		rng:       rand.New(rand.NewSource(seed)),
		bonus:     bonus,
		threshold: threshold,
	}
}

// sample draws once from the arm's Beta posterior.
func (s *Sampler) sample(arm ArmStats) float64 {
	beta := distuv.Beta{
		Alpha: arm.Successes + 1,
		Beta:  arm.Failures + 1,
		Src:   s.rng,
	}
	return beta.Rand()
}

// Pick draws one sample per arm and returns the arm with the highest
// sample. Under-observed arms get the exploration bonus, doubled when
// boost is set (the drift response). Ties break toward the most recent
// success. The second return is false when arms is empty.
func (s *Sampler) Pick(arms []ArmStats, boost bool) (ArmStats, bool) {
	if len(arms) == 0 {
		return ArmStats{}, false
	}

	bonus := s.bonus
	if boost {
		bonus *= 2
	}

	var best ArmStats
	bestSample := -1.0
	for _, arm := range arms {
		v := s.sample(arm)
		if arm.Observations < s.threshold {
			v += bonus
		}

		switch {
		case v > bestSample+sampleEpsilon:
			best = arm
			bestSample = v
		case v > bestSample-sampleEpsilon && laterSuccess(arm, best):
			best = arm
			bestSample = v
		}
	}
	return best, true
}

// laterSuccess reports whether a's last success is more recent than b's.
func laterSuccess(a, b ArmStats) bool {
	if a.LastSuccess == nil {
		return false
	}
	if b.LastSuccess == nil {
		return true
	}
	return a.LastSuccess.After(*b.LastSuccess)
}

// PosteriorMean returns the arm's Beta posterior mean.
func (a ArmStats) PosteriorMean() float64 {
	return (a.Successes + 1) / (a.Successes + a.Failures + 2)
}
