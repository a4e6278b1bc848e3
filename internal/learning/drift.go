package learning

import "github.com/jonesrussell/national-treasure/internal/domain"

// Drift signal kinds.
const (
	SignalDrift    = "drift"
	SignalNewBlock = "new-block"
)

// Drift thresholds. A domain that used to succeed at least 80% of the time
// and now succeeds at most 30% of the time has drifted.
const (
	DefaultRecentWindow  = 10
	driftHistoricalFloor = 0.8
	driftRecentCeiling   = 0.3
)

// DetectDrift compares the last window outcomes against everything older
// and returns zero or more signals. Outcomes must be ordered oldest first.
// No signal is possible until there is both a full recent window and some
// history behind it.
func DetectDrift(outcomes []*domain.Outcome, window int) []string {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	if len(outcomes) <= window {
		return nil
	}

	historical := outcomes[:len(outcomes)-window]
	recent := outcomes[len(outcomes)-window:]

	var signals []string
	if successRate(historical) >= driftHistoricalFloor && successRate(recent) <= driftRecentCeiling {
		signals = append(signals, SignalDrift)
	}

	known := make(map[string]bool)
	for _, o := range historical {
		if o.BlockService != nil {
			known[*o.BlockService] = true
		}
	}
	for _, o := range recent {
		if o.BlockService != nil && !known[*o.BlockService] {
			signals = append(signals, SignalNewBlock)
			break
		}
	}
	return signals
}

func successRate(outcomes []*domain.Outcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	ok := 0
	for _, o := range outcomes {
		if o.Success() {
			ok++
		}
	}
	return float64(ok) / float64(len(outcomes))
}
