package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/national-treasure/internal/behaviors"
	"github.com/jonesrussell/national-treasure/internal/capture"
	"github.com/jonesrussell/national-treasure/internal/config"
	"github.com/jonesrussell/national-treasure/internal/database"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/learning"
	"github.com/jonesrussell/national-treasure/internal/logger"
	"github.com/jonesrussell/national-treasure/internal/queue"
	"github.com/jonesrussell/national-treasure/internal/scraper"
	"github.com/jonesrussell/national-treasure/internal/validator"
)

// app holds the wired components every command works with.
type app struct {
	cfg *config.Config
	log logger.Interface
	db  *sqlx.DB

	configs  *database.ConfigRepository
	outcomes *database.OutcomeRepository
	domains  *database.DomainRepository
	jobs     *database.JobRepository

	learner  *learning.Learner
	pipeline *capture.Pipeline
	scraper  *scraper.Scraper
	queue    *queue.Service
}

// newApp opens the database, seeds the configuration catalog and wires the
// components.
func newApp(ctx context.Context, cfg *config.Config, log logger.Interface) (*app, error) {
	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		configs:  database.NewConfigRepository(db, log),
		outcomes: database.NewOutcomeRepository(db, log),
		domains:  database.NewDomainRepository(db, log),
		jobs:     database.NewJobRepository(db, log, cfg.MaxDepth),
	}
	a.jobs.SetBackoff(cfg.RetryBase, cfg.RetryCap)

	if err := a.configs.Seed(ctx, domain.DefaultCatalog()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed config catalog: %w", err)
	}

	a.learner = learning.New(cfg.Learning, a.configs, a.outcomes, a.domains, log)

	v := validator.New(cfg.Validator, log)
	runner := behaviors.NewRunner(cfg.Behaviors, log)
	store := capture.NewArtifactStore(cfg.ArchiveDir, log)
	a.pipeline = capture.NewPipeline(
		cfg.Capture, capture.BrowserLauncher(log), v, runner, store, log)

	a.scraper = scraper.New(cfg.Scraper, log)

	svc, err := queue.NewService(cfg.Queue, a.jobs, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	svc.Register(domain.JobTypeCapture, queue.CaptureHandler(a.learner, a.pipeline, log))
	svc.Register(domain.JobTypeScrape, queue.ScrapeHandler(a.scraper))
	a.queue = svc

	return a, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Error("Failed to close database", "error", err)
	}
}
