package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SchemaVersion is the current on-disk schema version. Opening a database
// written by a newer version fails rather than guessing.
const SchemaVersion = 1

// ErrSchemaTooNew is returned when the database was written by a newer build.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS browser_configs (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	headless_kind   TEXT NOT NULL,
	viewport_width  INTEGER NOT NULL,
	viewport_height INTEGER NOT NULL,
	user_agent      TEXT NOT NULL,
	stealth         INTEGER NOT NULL DEFAULT 0,
	wait_strategy   TEXT NOT NULL,
	timeout_ms      INTEGER NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	successes       INTEGER NOT NULL DEFAULT 0,
	last_success    TEXT,
	last_failure    TEXT
);

CREATE TABLE IF NOT EXISTS domains (
	domain           TEXT PRIMARY KEY,
	best_config_id   TEXT REFERENCES browser_configs(id),
	confidence       REAL NOT NULL DEFAULT 0,
	min_delay_ms     INTEGER NOT NULL,
	max_per_minute   INTEGER NOT NULL,
	block_indicators TEXT NOT NULL DEFAULT '[]',
	first_seen       TEXT NOT NULL,
	last_updated     TEXT NOT NULL,
	sample_count     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS request_outcomes (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	ts                TEXT NOT NULL,
	domain            TEXT NOT NULL,
	url               TEXT NOT NULL,
	config_id         TEXT NOT NULL,
	result            TEXT NOT NULL,
	block_service     TEXT,
	http_status       INTEGER,
	response_ms       INTEGER NOT NULL DEFAULT 0,
	content_length    INTEGER NOT NULL DEFAULT 0,
	page_title        TEXT,
	hour              INTEGER NOT NULL,
	weekday           INTEGER NOT NULL,
	requests_last_min INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_outcomes_domain_ts
	ON request_outcomes(domain, ts DESC);

CREATE TABLE IF NOT EXISTS domain_similarity (
	domain_a TEXT NOT NULL,
	domain_b TEXT NOT NULL,
	kind     TEXT NOT NULL,
	weight   REAL NOT NULL,
	PRIMARY KEY (domain_a, domain_b, kind)
);

CREATE INDEX IF NOT EXISTS idx_similarity_domain
	ON domain_similarity(domain_a, weight DESC);

CREATE TABLE IF NOT EXISTS jobs (
	id             TEXT PRIMARY KEY,
	queue          TEXT NOT NULL DEFAULT 'default',
	type           TEXT NOT NULL,
	payload        TEXT NOT NULL DEFAULT '{}',
	priority       INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'pending',
	attempts       INTEGER NOT NULL DEFAULT 0,
	max_attempts   INTEGER NOT NULL DEFAULT 3,
	last_error     TEXT,
	result         TEXT,
	created_at     TEXT NOT NULL,
	available_at   TEXT NOT NULL,
	started_at     TEXT,
	completed_at   TEXT,
	locked_by      TEXT,
	locked_at      TEXT,
	lease_deadline TEXT,
	depends_on     TEXT REFERENCES jobs(id)
);

CREATE INDEX IF NOT EXISTS idx_jobs_claim
	ON jobs(status, queue, priority DESC, available_at);

CREATE INDEX IF NOT EXISTS idx_jobs_lease
	ON jobs(status, lease_deadline);

CREATE TABLE IF NOT EXISTS job_dead_letter (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id     TEXT NOT NULL,
	queue      TEXT NOT NULL,
	type       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	error      TEXT NOT NULL,
	attempts   INTEGER NOT NULL,
	died_at    TEXT NOT NULL,
	revived_at TEXT
);
`

// Migrate creates missing tables and records the schema version.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	var version int
	err := db.GetContext(ctx, &version, "SELECT version FROM schema_meta LIMIT 1")
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx,
			"INSERT INTO schema_meta (version) VALUES (?)", SchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version > SchemaVersion {
		return fmt.Errorf("%w: found %d, supported %d", ErrSchemaTooNew, version, SchemaVersion)
	}
	return nil
}
