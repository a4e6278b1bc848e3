package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

// ConfigRepository stores the browser configuration arms and their
// lifetime tallies.
type ConfigRepository struct {
	db     *sqlx.DB
	logger logger.Interface
}

// NewConfigRepository creates a new config repository instance.
func NewConfigRepository(db *sqlx.DB, log logger.Interface) *ConfigRepository {
	return &ConfigRepository{db: db, logger: log}
}

type configRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	HeadlessKind   string         `db:"headless_kind"`
	ViewportWidth  int            `db:"viewport_width"`
	ViewportHeight int            `db:"viewport_height"`
	UserAgent      string         `db:"user_agent"`
	Stealth        bool           `db:"stealth"`
	WaitStrategy   string         `db:"wait_strategy"`
	TimeoutMS      int            `db:"timeout_ms"`
	Attempts       int            `db:"attempts"`
	Successes      int            `db:"successes"`
	LastSuccess    sql.NullString `db:"last_success"`
	LastFailure    sql.NullString `db:"last_failure"`
}

func (r configRow) toDomain() (*domain.BrowserConfig, error) {
	lastSuccess, err := parseTimePtr(r.LastSuccess)
	if err != nil {
		return nil, err
	}
	lastFailure, err := parseTimePtr(r.LastFailure)
	if err != nil {
		return nil, err
	}
	return &domain.BrowserConfig{
		ID:             r.ID,
		Name:           r.Name,
		HeadlessKind:   r.HeadlessKind,
		ViewportWidth:  r.ViewportWidth,
		ViewportHeight: r.ViewportHeight,
		UserAgent:      r.UserAgent,
		Stealth:        r.Stealth,
		WaitStrategy:   r.WaitStrategy,
		TimeoutMS:      r.TimeoutMS,
		Attempts:       r.Attempts,
		Successes:      r.Successes,
		LastSuccess:    lastSuccess,
		LastFailure:    lastFailure,
	}, nil
}

// Upsert inserts the configuration, or updates its definition fields when
// the id already exists. Tallies are never overwritten by an upsert.
func (r *ConfigRepository) Upsert(ctx context.Context, cfg *domain.BrowserConfig) error {
	if !domain.ValidHeadlessKind(cfg.HeadlessKind) {
		return fmt.Errorf("invalid headless kind: %s", cfg.HeadlessKind)
	}
	if !domain.ValidWaitStrategy(cfg.WaitStrategy) {
		return fmt.Errorf("invalid wait strategy: %s", cfg.WaitStrategy)
	}

	query := `
		INSERT INTO browser_configs (
			id, name, headless_kind, viewport_width, viewport_height,
			user_agent, stealth, wait_strategy, timeout_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			headless_kind = excluded.headless_kind,
			viewport_width = excluded.viewport_width,
			viewport_height = excluded.viewport_height,
			user_agent = excluded.user_agent,
			stealth = excluded.stealth,
			wait_strategy = excluded.wait_strategy,
			timeout_ms = excluded.timeout_ms`

	_, err := r.db.ExecContext(ctx, query,
		cfg.ID, cfg.Name, cfg.HeadlessKind, cfg.ViewportWidth, cfg.ViewportHeight,
		cfg.UserAgent, cfg.Stealth, cfg.WaitStrategy, cfg.TimeoutMS)
	if err != nil {
		return fmt.Errorf("failed to upsert config: %w", err)
	}
	return nil
}

// Seed installs the given configurations, skipping any that already exist.
func (r *ConfigRepository) Seed(ctx context.Context, configs []domain.BrowserConfig) error {
	for i := range configs {
		cfg := configs[i]
		var exists int
		err := r.db.GetContext(ctx, &exists,
			"SELECT COUNT(*) FROM browser_configs WHERE id = ?", cfg.ID)
		if err != nil {
			return fmt.Errorf("failed to check config %s: %w", cfg.ID, err)
		}
		if exists > 0 {
			continue
		}
		if err := r.Upsert(ctx, &cfg); err != nil {
			return err
		}
		r.logger.Debug("Seeded browser config", "config_id", cfg.ID, "name", cfg.Name)
	}
	return nil
}

// GetByID retrieves a configuration by its id.
func (r *ConfigRepository) GetByID(ctx context.Context, id string) (*domain.BrowserConfig, error) {
	var row configRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM browser_configs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	return row.toDomain()
}

// List returns all configurations ordered by id.
func (r *ConfigRepository) List(ctx context.Context) ([]*domain.BrowserConfig, error) {
	var rows []configRow
	err := r.db.SelectContext(ctx, &rows, "SELECT * FROM browser_configs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}

	configs := make([]*domain.BrowserConfig, 0, len(rows))
	for _, row := range rows {
		cfg, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
