// Package behaviors mutates a live page to surface hidden content before
// capture: dismissing overlays, scrolling, expanding collapsed sections.
package behaviors

import (
	"context"
	"time"

	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

// Evaluator is the page surface the runner needs. *browser.Page satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, script string, out any) error
	SendEscape(ctx context.Context) error
}

// Config holds behavior runner configuration.
type Config struct {
	// PerBehaviorTimeout bounds each behavior individually.
	PerBehaviorTimeout time.Duration `yaml:"per_behavior_timeout" json:"per_behavior_timeout"`
	// OverallTimeout bounds the whole run.
	OverallTimeout time.Duration `yaml:"overall_timeout" json:"overall_timeout"`
}

// DefaultConfig returns the behavior runner defaults.
func DefaultConfig() Config {
	return Config{
		PerBehaviorTimeout: 30 * time.Second,
		OverallTimeout:     30 * time.Second,
	}
}

// Runner executes the behavior set in a fixed order.
type Runner struct {
	cfg    Config
	logger logger.Interface
}

// NewRunner creates a behavior runner.
func NewRunner(cfg Config, log logger.Interface) *Runner {
	if cfg.PerBehaviorTimeout <= 0 {
		cfg.PerBehaviorTimeout = DefaultConfig().PerBehaviorTimeout
	}
	if cfg.OverallTimeout <= 0 {
		cfg.OverallTimeout = DefaultConfig().OverallTimeout
	}
	return &Runner{cfg: cfg, logger: log.WithComponent("behaviors")}
}

// Run executes every behavior against the page and returns aggregate
// statistics. Behaviors never fail the run: per-behavior errors are logged
// and counted as zero effects, and a behavior that outlives its deadline
// is cut short.
func (r *Runner) Run(ctx context.Context, ev Evaluator) *domain.BehaviorStats {
	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.OverallTimeout)
	defer cancel()

	stats := &domain.BehaviorStats{}
	steps := []struct {
		name   string
		target *int
		run    func(context.Context) (int, error)
	}{
		{"dismiss_overlays", &stats.OverlaysDismissed, func(c context.Context) (int, error) {
			return r.dismissOverlays(c, ev)
		}},
		{"scroll_to_load", &stats.ScrollDepth, func(c context.Context) (int, error) {
			return r.eval(c, ev, scrollToLoadScript)
		}},
		{"expand_content", &stats.ElementsExpanded, func(c context.Context) (int, error) {
			return r.eval(c, ev, expandContentScript)
		}},
		{"click_tabs", &stats.TabsClicked, func(c context.Context) (int, error) {
			return r.eval(c, ev, clickTabsScript)
		}},
		{"carousels", &stats.CarouselSlides, func(c context.Context) (int, error) {
			return r.eval(c, ev, carouselsScript)
		}},
		{"expand_comments", &stats.CommentsLoaded, func(c context.Context) (int, error) {
			return r.eval(c, ev, expandCommentsScript)
		}},
		{"infinite_scroll", &stats.InfiniteScrollPages, func(c context.Context) (int, error) {
			return r.eval(c, ev, infiniteScrollScript)
		}},
	}

	for _, step := range steps {
		if runCtx.Err() != nil {
			r.logger.Debug("Behavior run cut short by overall deadline", "at", step.name)
			break
		}

		stepCtx, stepCancel := context.WithTimeout(runCtx, r.cfg.PerBehaviorTimeout)
		count, err := step.run(stepCtx)
		stepCancel()
		if err != nil {
			r.logger.Debug("Behavior failed", "behavior", step.name, "error", err)
			continue
		}
		*step.target = count
	}

	stats.DurationMS = int(time.Since(start).Milliseconds())
	return stats
}

// eval runs one counting script.
func (r *Runner) eval(ctx context.Context, ev Evaluator, script string) (int, error) {
	var count int
	if err := ev.Evaluate(ctx, script, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// dismissOverlays clicks known consent and modal controls, then sends an
// Escape for anything that only listens for the key.
func (r *Runner) dismissOverlays(ctx context.Context, ev Evaluator) (int, error) {
	count, err := r.eval(ctx, ev, dismissOverlaysScript)
	if err != nil {
		return 0, err
	}
	if err := ev.SendEscape(ctx); err != nil {
		r.logger.Debug("Escape dismiss failed", "error", err)
	}
	return count, nil
}
