package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

// OutcomeRepository stores the append-only request outcome log that the
// learner samples from.
type OutcomeRepository struct {
	db     *sqlx.DB
	logger logger.Interface
}

// NewOutcomeRepository creates a new outcome repository instance.
func NewOutcomeRepository(db *sqlx.DB, log logger.Interface) *OutcomeRepository {
	return &OutcomeRepository{db: db, logger: log}
}

type outcomeRow struct {
	ID              int64          `db:"id"`
	TS              string         `db:"ts"`
	Domain          string         `db:"domain"`
	URL             string         `db:"url"`
	ConfigID        string         `db:"config_id"`
	Result          string         `db:"result"`
	BlockService    sql.NullString `db:"block_service"`
	HTTPStatus      sql.NullInt64  `db:"http_status"`
	ResponseMS      int            `db:"response_ms"`
	ContentLength   int            `db:"content_length"`
	PageTitle       sql.NullString `db:"page_title"`
	Hour            int            `db:"hour"`
	Weekday         int            `db:"weekday"`
	RequestsLastMin int            `db:"requests_last_min"`
}

func (r outcomeRow) toDomain() (*domain.Outcome, error) {
	ts, err := parseTime(r.TS)
	if err != nil {
		return nil, err
	}
	return &domain.Outcome{
		ID:              r.ID,
		Timestamp:       ts,
		Domain:          r.Domain,
		URL:             r.URL,
		ConfigID:        r.ConfigID,
		Result:          r.Result,
		BlockService:    stringPtr(r.BlockService),
		HTTPStatus:      intPtr(r.HTTPStatus),
		ResponseMS:      r.ResponseMS,
		ContentLength:   r.ContentLength,
		PageTitle:       stringPtr(r.PageTitle),
		Hour:            r.Hour,
		Weekday:         r.Weekday,
		RequestsLastMin: r.RequestsLastMin,
	}, nil
}

// Insert appends an outcome and fills in its generated id.
func (r *OutcomeRepository) Insert(ctx context.Context, o *domain.Outcome) error {
	if !domain.ValidOutcome(o.Result) {
		return fmt.Errorf("invalid outcome result: %s", o.Result)
	}

	query := `
		INSERT INTO request_outcomes (
			ts, domain, url, config_id, result, block_service, http_status,
			response_ms, content_length, page_title, hour, weekday, requests_last_min
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		fmtTime(o.Timestamp), o.Domain, o.URL, o.ConfigID, o.Result,
		nullString(o.BlockService), nullInt(o.HTTPStatus),
		o.ResponseMS, o.ContentLength, nullString(o.PageTitle),
		o.Hour, o.Weekday, o.RequestsLastMin)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get outcome id: %w", err)
	}
	o.ID = id
	return nil
}

// Record appends the outcome and keeps the aggregates consistent with it:
// the configuration's tallies and the domain record's sample count move in
// the same transaction, so a crash cannot leave them disagreeing.
func (r *OutcomeRepository) Record(ctx context.Context, o *domain.Outcome) error {
	if !domain.ValidOutcome(o.Result) {
		return fmt.Errorf("invalid outcome result: %s", o.Result)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO request_outcomes (
			ts, domain, url, config_id, result, block_service, http_status,
			response_ms, content_length, page_title, hour, weekday, requests_last_min
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fmtTime(o.Timestamp), o.Domain, o.URL, o.ConfigID, o.Result,
		nullString(o.BlockService), nullInt(o.HTTPStatus),
		o.ResponseMS, o.ContentLength, nullString(o.PageTitle),
		o.Hour, o.Weekday, o.RequestsLastMin)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get outcome id: %w", err)
	}

	var tally string
	if o.Success() {
		tally = `
			UPDATE browser_configs
			SET attempts = attempts + 1, successes = successes + 1, last_success = ?
			WHERE id = ?`
	} else {
		tally = `
			UPDATE browser_configs
			SET attempts = attempts + 1, last_failure = ?
			WHERE id = ?`
	}
	cres, err := tx.ExecContext(ctx, tally, fmtTime(o.Timestamp), o.ConfigID)
	if err != nil {
		return fmt.Errorf("failed to update config tallies: %w", err)
	}
	if err := execRequireRows(cres, ErrNotFound); err != nil {
		return fmt.Errorf("config %s: %w", o.ConfigID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO domains (
			domain, min_delay_ms, max_per_minute, first_seen, last_updated, sample_count
		) VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT (domain) DO UPDATE SET
			sample_count = sample_count + 1,
			last_updated = excluded.last_updated`,
		o.Domain, domain.DefaultMinDelayMS, domain.DefaultMaxPerMinute,
		fmtTime(o.Timestamp), fmtTime(o.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to update domain record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	o.ID = id
	return nil
}

// ListByDomain returns all outcomes for a domain at or after since,
// oldest first. The learner rebuilds its arms from this history.
func (r *OutcomeRepository) ListByDomain(ctx context.Context, name string, since time.Time) ([]*domain.Outcome, error) {
	query := `
		SELECT * FROM request_outcomes
		WHERE domain = ? AND ts >= ?
		ORDER BY ts ASC`

	var rows []outcomeRow
	if err := r.db.SelectContext(ctx, &rows, query, name, fmtTime(since)); err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	return outcomeRowsToDomain(rows)
}

// RecentByDomain returns the newest limit outcomes for a domain,
// newest first.
func (r *OutcomeRepository) RecentByDomain(ctx context.Context, name string, limit int) ([]*domain.Outcome, error) {
	query := `
		SELECT * FROM request_outcomes
		WHERE domain = ?
		ORDER BY ts DESC
		LIMIT ?`

	var rows []outcomeRow
	if err := r.db.SelectContext(ctx, &rows, query, name, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent outcomes: %w", err)
	}
	return outcomeRowsToDomain(rows)
}

// CountSince returns the number of outcomes for a domain at or after since.
// With a one-minute window this is the requests_last_min context field.
func (r *OutcomeRepository) CountSince(ctx context.Context, name string, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM request_outcomes WHERE domain = ? AND ts >= ?",
		name, fmtTime(since))
	if err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return count, nil
}

// LastSuccessAt returns the timestamp of the most recent ok outcome for the
// domain and config, or ErrNotFound when there is none.
func (r *OutcomeRepository) LastSuccessAt(ctx context.Context, name, configID string) (time.Time, error) {
	var ts string
	err := r.db.GetContext(ctx, &ts, `
		SELECT ts FROM request_outcomes
		WHERE domain = ? AND config_id = ? AND result = ?
		ORDER BY ts DESC
		LIMIT 1`,
		name, configID, domain.OutcomeOK)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last success: %w", err)
	}
	return parseTime(ts)
}

// PruneBefore deletes outcomes older than cutoff and returns the count.
func (r *OutcomeRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM request_outcomes WHERE ts < ?", fmtTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune outcomes: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		r.logger.Info("Pruned old outcomes", "count", rows, "cutoff", cutoff)
	}
	return rows, nil
}

func outcomeRowsToDomain(rows []outcomeRow) ([]*domain.Outcome, error) {
	outcomes := make([]*domain.Outcome, 0, len(rows))
	for _, row := range rows {
		o, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}
