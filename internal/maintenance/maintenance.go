// Package maintenance runs the periodic background work: stale lease
// recovery, drift scans, outcome pruning and queue depth gauges.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/national-treasure/internal/database"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/learning"
	"github.com/jonesrussell/national-treasure/internal/logger"
	"github.com/jonesrussell/national-treasure/internal/metrics"
)

// Config holds maintenance configuration.
type Config struct {
	// RecoverSchedule is the cron spec for stale lease recovery.
	RecoverSchedule string `yaml:"recover_schedule" json:"recover_schedule"`
	// DriftSchedule is the cron spec for the drift scan.
	DriftSchedule string `yaml:"drift_schedule" json:"drift_schedule"`
	// PruneSchedule is the cron spec for outcome pruning.
	PruneSchedule string `yaml:"prune_schedule" json:"prune_schedule"`
	// RetainDays is how long outcomes are kept.
	RetainDays int `yaml:"retain_days" json:"retain_days"`
	// DriftScanLimit caps how many domains one drift scan inspects.
	DriftScanLimit int `yaml:"drift_scan_limit" json:"drift_scan_limit"`
	// Queue is the queue whose depth is exported.
	Queue string `yaml:"queue" json:"queue"`
}

// DefaultConfig returns the maintenance defaults.
func DefaultConfig() Config {
	return Config{
		RecoverSchedule: "@every 1m",
		DriftSchedule:   "@every 15m",
		PruneSchedule:   "@daily",
		RetainDays:      180,
		DriftScanLimit:  200,
		Queue:           domain.DefaultQueue,
	}
}

// Runner schedules and executes the maintenance jobs.
type Runner struct {
	cfg      Config
	jobs     *database.JobRepository
	outcomes *database.OutcomeRepository
	domains  *database.DomainRepository
	learner  *learning.Learner
	logger   logger.Interface
	cron     *cron.Cron
}

// NewRunner creates a maintenance runner.
func NewRunner(
	cfg Config,
	jobs *database.JobRepository,
	outcomes *database.OutcomeRepository,
	domains *database.DomainRepository,
	learner *learning.Learner,
	log logger.Interface,
) *Runner {
	def := DefaultConfig()
	if cfg.RecoverSchedule == "" {
		cfg.RecoverSchedule = def.RecoverSchedule
	}
	if cfg.DriftSchedule == "" {
		cfg.DriftSchedule = def.DriftSchedule
	}
	if cfg.PruneSchedule == "" {
		cfg.PruneSchedule = def.PruneSchedule
	}
	if cfg.RetainDays <= 0 {
		cfg.RetainDays = def.RetainDays
	}
	if cfg.DriftScanLimit <= 0 {
		cfg.DriftScanLimit = def.DriftScanLimit
	}
	if cfg.Queue == "" {
		cfg.Queue = def.Queue
	}

	return &Runner{
		cfg:      cfg,
		jobs:     jobs,
		outcomes: outcomes,
		domains:  domains,
		learner:  learner,
		logger:   log.WithComponent("maintenance"),
		cron:     cron.New(),
	}
}

// Start registers the schedules and starts the cron loop.
func (r *Runner) Start(ctx context.Context) error {
	entries := []struct {
		schedule string
		name     string
		run      func(context.Context)
	}{
		{r.cfg.RecoverSchedule, "recover_stale", r.recoverStale},
		{r.cfg.DriftSchedule, "drift_scan", r.driftScan},
		{r.cfg.PruneSchedule, "prune_outcomes", r.pruneOutcomes},
		{"@every 30s", "queue_depth", r.exportQueueDepth},
	}

	for _, e := range entries {
		run := e.run
		if _, err := r.cron.AddFunc(e.schedule, func() { run(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", e.name, err)
		}
	}

	r.cron.Start()
	r.logger.Info("Maintenance started")
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("Maintenance stopped")
}

func (r *Runner) recoverStale(ctx context.Context) {
	n, err := r.jobs.RecoverStale(ctx)
	if err != nil {
		r.logger.Error("Stale recovery failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("Stale jobs recovered", "count", n)
	}
}

// driftScan checks recently active domains for drift and records new block
// attributions as domain indicators.
func (r *Runner) driftScan(ctx context.Context) {
	names, err := r.domains.ListNames(ctx, r.cfg.DriftScanLimit)
	if err != nil {
		r.logger.Error("Drift scan failed to list domains", "error", err)
		return
	}

	for _, name := range names {
		signals, err := r.learner.Drift(ctx, name)
		if err != nil {
			r.logger.Error("Drift check failed", "domain", name, "error", err)
			continue
		}
		for _, sig := range signals {
			metrics.DriftSignals.WithLabelValues(sig).Inc()
			r.logger.Warn("Drift signal", "domain", name, "signal", sig)
			if sig == learning.SignalNewBlock {
				r.recordNewBlocks(ctx, name)
			}
		}
	}
}

// recordNewBlocks folds the block services seen in recent outcomes into
// the domain's indicator list.
func (r *Runner) recordNewBlocks(ctx context.Context, name string) {
	recent, err := r.outcomes.RecentByDomain(ctx, name, learning.DefaultRecentWindow)
	if err != nil {
		r.logger.Error("Failed to load recent outcomes", "domain", name, "error", err)
		return
	}
	for _, o := range recent {
		if o.BlockService == nil {
			continue
		}
		if err := r.domains.AddBlockIndicator(ctx, name, *o.BlockService, time.Now().UTC()); err != nil {
			r.logger.Error("Failed to record block indicator",
				"domain", name, "indicator", *o.BlockService, "error", err)
		}
	}
}

func (r *Runner) pruneOutcomes(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -r.cfg.RetainDays)
	if _, err := r.outcomes.PruneBefore(ctx, cutoff); err != nil {
		r.logger.Error("Outcome pruning failed", "error", err)
	}
}

func (r *Runner) exportQueueDepth(ctx context.Context) {
	stats, err := r.jobs.Stats(ctx, r.cfg.Queue)
	if err != nil {
		r.logger.Error("Queue depth export failed", "error", err)
		return
	}
	metrics.QueueDepth.WithLabelValues(stats.Queue, domain.JobStatusPending).Set(float64(stats.Pending))
	metrics.QueueDepth.WithLabelValues(stats.Queue, domain.JobStatusRunning).Set(float64(stats.Running))
	metrics.QueueDepth.WithLabelValues(stats.Queue, domain.JobStatusDone).Set(float64(stats.Done))
	metrics.QueueDepth.WithLabelValues(stats.Queue, domain.JobStatusDead).Set(float64(stats.Dead))
}
