// Package database provides SQLite storage for configurations, domains,
// request outcomes and the durable job queue.
package database

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jonesrussell/national-treasure/internal/logger"
)

// Config holds database connection configuration.
type Config struct {
	// Path is the SQLite database file. ":memory:" opens a private
	// in-memory database, useful in tests.
	Path string `yaml:"path" json:"path"`
	// BusyTimeoutMS is how long a connection waits on a locked database.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
	// MaxOpenConns bounds the connection pool. SQLite serializes writes,
	// so a small pool is enough.
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`
}

// DefaultConfig returns a database configuration with sane defaults.
func DefaultConfig() Config {
	return Config{
		Path:          "national-treasure.db",
		BusyTimeoutMS: 5000,
		MaxOpenConns:  4,
	}
}

// DSN builds the modernc sqlite connection string. WAL keeps readers from
// blocking the writer, and the immediate txlock makes claim transactions
// take the write lock up front instead of failing on upgrade.
func (c Config) DSN() string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeoutMS))
	q.Set("_txlock", "immediate")
	return fmt.Sprintf("file:%s?%s", c.Path, q.Encode())
}

// Open connects to the SQLite database and applies the schema.
func Open(ctx context.Context, cfg Config, log logger.Interface) (*sqlx.DB, error) {
	if cfg.BusyTimeoutMS <= 0 {
		cfg.BusyTimeoutMS = DefaultConfig().BusyTimeoutMS
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultConfig().MaxOpenConns
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("Database ready", "path", cfg.Path)
	return db, nil
}
