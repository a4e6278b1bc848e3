package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/national-treasure/internal/database"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

// ErrNoConfigs is returned when selection finds no configuration at all,
// which means the catalog was never seeded.
var ErrNoConfigs = errors.New("no browser configurations available")

// Config holds learner configuration.
type Config struct {
	HalfLifeDays         float64 `yaml:"half_life_days"        json:"half_life_days"`
	ExplorationBonus     float64 `yaml:"exploration_bonus"     json:"exploration_bonus"`
	ExplorationThreshold int     `yaml:"exploration_threshold" json:"exploration_threshold"`
	RecentWindow         int     `yaml:"recent_window"         json:"recent_window"`
	SimilarLimit         int     `yaml:"similar_limit"         json:"similar_limit"`
	AdoptConfidence      float64 `yaml:"adopt_confidence"      json:"adopt_confidence"`
	PromoteMinSamples    int     `yaml:"promote_min_samples"   json:"promote_min_samples"`
	HistoryDays          int     `yaml:"history_days"          json:"history_days"`
}

// DefaultConfig returns the learner defaults.
func DefaultConfig() Config {
	return Config{
		HalfLifeDays:         DefaultHalfLifeDays,
		ExplorationBonus:     0.1,
		ExplorationThreshold: 10,
		RecentWindow:         DefaultRecentWindow,
		SimilarLimit:         5,
		AdoptConfidence:      0.7,
		PromoteMinSamples:    10,
		HistoryDays:          90,
	}
}

// Learner proposes a configuration per domain and ingests the outcomes of
// using it.
type Learner struct {
	cfg      Config
	configs  *database.ConfigRepository
	outcomes *database.OutcomeRepository
	domains  *database.DomainRepository
	sampler  *Sampler
	logger   logger.Interface
	now      func() time.Time
}

// New creates a learner over the given repositories.
func New(
	cfg Config,
	configs *database.ConfigRepository,
	outcomes *database.OutcomeRepository,
	domains *database.DomainRepository,
	log logger.Interface,
) *Learner {
	if cfg.HalfLifeDays <= 0 {
		cfg = DefaultConfig()
	}
	return &Learner{
		cfg:      cfg,
		configs:  configs,
		outcomes: outcomes,
		domains:  domains,
		sampler:  NewSampler(uint64(time.Now().UnixNano()), cfg.ExplorationBonus, cfg.ExplorationThreshold),
		logger:   log.WithComponent("learner"),
		now:      time.Now,
	}
}

// Select proposes a configuration for the domain. Domains with history are
// served by Thompson sampling; unseen domains go through cold start.
// Callers must honor ShouldWait before calling Select.
func (l *Learner) Select(ctx context.Context, name string) (*domain.BrowserConfig, error) {
	now := l.now().UTC()
	since := now.AddDate(0, 0, -l.cfg.HistoryDays)

	history, err := l.outcomes.ListByDomain(ctx, name, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load outcome history: %w", err)
	}

	arms := BuildArms(history, now, l.cfg.HalfLifeDays)
	if len(arms) == 0 {
		return l.coldStart(ctx, name)
	}

	signals := DetectDrift(history, l.cfg.RecentWindow)
	boost := len(signals) > 0
	if boost {
		l.logger.Warn("Drift detected, boosting exploration",
			"domain", name, "signals", signals)
	}

	arm, _ := l.sampler.Pick(arms, boost)
	cfg, err := l.configs.GetByID(ctx, arm.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("failed to load selected config: %w", err)
	}

	l.logger.Debug("Configuration selected",
		"domain", name, "config_id", arm.ConfigID,
		"posterior_mean", arm.PosteriorMean(), "observations", arm.Observations)
	return cfg, nil
}

// coldStart handles domains with no history. It first tries to adopt the
// best configuration of a confident similar domain, then falls back to the
// globally best configuration.
func (l *Learner) coldStart(ctx context.Context, name string) (*domain.BrowserConfig, error) {
	sims, err := l.domains.Similar(ctx, name, l.cfg.SimilarLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load similar domains: %w", err)
	}

	for _, sim := range sims {
		rec, err := l.domains.Get(ctx, sim.DomainB)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load similar domain: %w", err)
		}
		if rec.Confidence < l.cfg.AdoptConfidence || rec.BestConfigID == nil {
			continue
		}

		cfg, err := l.configs.GetByID(ctx, *rec.BestConfigID)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		l.logger.Info("Cold start adopted similar domain's config",
			"domain", name, "neighbor", rec.Domain,
			"config_id", cfg.ID, "confidence", rec.Confidence)
		return cfg, nil
	}

	id, err := l.domains.BestGlobalConfig(ctx, 1)
	if errors.Is(err, database.ErrNotFound) {
		return l.anyConfig(ctx, name)
	}
	if err != nil {
		return nil, err
	}

	cfg, err := l.configs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.logger.Info("Cold start fell back to globally best config",
		"domain", name, "config_id", cfg.ID)
	return cfg, nil
}

// anyConfig returns the first catalog entry when nothing has any attempts
// yet, which only happens on a completely fresh install.
func (l *Learner) anyConfig(ctx context.Context, name string) (*domain.BrowserConfig, error) {
	all, err := l.configs.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoConfigs
	}
	l.logger.Info("Cold start on fresh catalog",
		"domain", name, "config_id", all[0].ID)
	return all[0], nil
}

// Record ingests one outcome: the append and aggregate updates happen in a
// single transaction, then the domain's best configuration is re-evaluated.
func (l *Learner) Record(ctx context.Context, o *domain.Outcome) error {
	if err := l.outcomes.Record(ctx, o); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	if err := l.promote(ctx, o.Domain); err != nil {
		l.logger.Error("Failed to re-evaluate best config",
			"domain", o.Domain, "error", err)
	}
	return nil
}

// promote updates the domain's best configuration when an arm with enough
// samples has the highest posterior mean.
func (l *Learner) promote(ctx context.Context, name string) error {
	now := l.now().UTC()
	since := now.AddDate(0, 0, -l.cfg.HistoryDays)

	history, err := l.outcomes.ListByDomain(ctx, name, since)
	if err != nil {
		return err
	}
	arms := BuildArms(history, now, l.cfg.HalfLifeDays)

	var best *ArmStats
	for i := range arms {
		arm := &arms[i]
		if arm.Observations < l.cfg.PromoteMinSamples {
			continue
		}
		if best == nil || arm.PosteriorMean() > best.PosteriorMean() {
			best = arm
		}
	}
	if best == nil {
		return nil
	}

	rec, err := l.domains.Get(ctx, name)
	if err != nil {
		return err
	}
	confidence := best.PosteriorMean()
	if rec.BestConfigID != nil && *rec.BestConfigID == best.ConfigID && rec.Confidence == confidence {
		return nil
	}

	if err := l.domains.UpdateBest(ctx, name, best.ConfigID, confidence, rec.SampleCount, now); err != nil {
		return err
	}
	l.logger.Info("Best config updated",
		"domain", name, "config_id", best.ConfigID, "confidence", confidence)
	return nil
}

// Drift runs the drift check for one domain and returns any signals.
func (l *Learner) Drift(ctx context.Context, name string) ([]string, error) {
	now := l.now().UTC()
	since := now.AddDate(0, 0, -l.cfg.HistoryDays)

	history, err := l.outcomes.ListByDomain(ctx, name, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load outcome history: %w", err)
	}
	return DetectDrift(history, l.cfg.RecentWindow), nil
}

// ShouldWait returns how long the caller must hold off before the next
// request to the domain, honoring both the learned minimum delay and the
// per-minute cap. Zero means go ahead.
func (l *Learner) ShouldWait(ctx context.Context, name string) (time.Duration, error) {
	rec, err := l.domains.Get(ctx, name)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	now := l.now().UTC()
	var wait time.Duration

	recent, err := l.outcomes.RecentByDomain(ctx, name, 1)
	if err != nil {
		return 0, err
	}
	if len(recent) > 0 {
		minDelay := time.Duration(rec.MinDelayMS) * time.Millisecond
		if since := now.Sub(recent[0].Timestamp); since < minDelay {
			wait = minDelay - since
		}
	}

	if rec.MaxPerMinute > 0 {
		count, err := l.outcomes.CountSince(ctx, name, now.Add(-time.Minute))
		if err != nil {
			return 0, err
		}
		if count >= rec.MaxPerMinute {
			// Simplest safe bound: wait out the rest of the minute window.
			if wait < time.Minute {
				wait = time.Minute
			}
		}
	}
	return wait, nil
}
