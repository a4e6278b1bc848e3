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

// DomainRepository stores per-domain learning state and the similarity
// graph used for cold starts.
type DomainRepository struct {
	db     *sqlx.DB
	logger logger.Interface
}

// NewDomainRepository creates a new domain repository instance.
func NewDomainRepository(db *sqlx.DB, log logger.Interface) *DomainRepository {
	return &DomainRepository{db: db, logger: log}
}

type domainRow struct {
	Domain          string            `db:"domain"`
	BestConfigID    sql.NullString    `db:"best_config_id"`
	Confidence      float64           `db:"confidence"`
	MinDelayMS      int               `db:"min_delay_ms"`
	MaxPerMinute    int               `db:"max_per_minute"`
	BlockIndicators domain.StringList `db:"block_indicators"`
	FirstSeen       string            `db:"first_seen"`
	LastUpdated     string            `db:"last_updated"`
	SampleCount     int               `db:"sample_count"`
}

func (r domainRow) toDomain() (*domain.DomainRecord, error) {
	firstSeen, err := parseTime(r.FirstSeen)
	if err != nil {
		return nil, err
	}
	lastUpdated, err := parseTime(r.LastUpdated)
	if err != nil {
		return nil, err
	}
	return &domain.DomainRecord{
		Domain:          r.Domain,
		BestConfigID:    stringPtr(r.BestConfigID),
		Confidence:      r.Confidence,
		MinDelayMS:      r.MinDelayMS,
		MaxPerMinute:    r.MaxPerMinute,
		BlockIndicators: r.BlockIndicators,
		FirstSeen:       firstSeen,
		LastUpdated:     lastUpdated,
		SampleCount:     r.SampleCount,
	}, nil
}

// Get retrieves a domain record, or ErrNotFound for domains never seen.
func (r *DomainRepository) Get(ctx context.Context, name string) (*domain.DomainRecord, error) {
	var row domainRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM domains WHERE domain = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get domain: %w", err)
	}
	return row.toDomain()
}

// Upsert writes the full domain record.
func (r *DomainRepository) Upsert(ctx context.Context, rec *domain.DomainRecord) error {
	query := `
		INSERT INTO domains (
			domain, best_config_id, confidence, min_delay_ms, max_per_minute,
			block_indicators, first_seen, last_updated, sample_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (domain) DO UPDATE SET
			best_config_id = excluded.best_config_id,
			confidence = excluded.confidence,
			min_delay_ms = excluded.min_delay_ms,
			max_per_minute = excluded.max_per_minute,
			block_indicators = excluded.block_indicators,
			last_updated = excluded.last_updated,
			sample_count = excluded.sample_count`

	_, err := r.db.ExecContext(ctx, query,
		rec.Domain, nullString(rec.BestConfigID), rec.Confidence,
		rec.MinDelayMS, rec.MaxPerMinute, rec.BlockIndicators,
		fmtTime(rec.FirstSeen), fmtTime(rec.LastUpdated), rec.SampleCount)
	if err != nil {
		return fmt.Errorf("failed to upsert domain: %w", err)
	}
	return nil
}

// UpdateBest promotes a configuration as the domain's current best.
func (r *DomainRepository) UpdateBest(ctx context.Context, name, configID string, confidence float64, sampleCount int, at time.Time) error {
	query := `
		UPDATE domains
		SET best_config_id = ?, confidence = ?, sample_count = ?, last_updated = ?
		WHERE domain = ?`

	res, err := r.db.ExecContext(ctx, query, configID, confidence, sampleCount, fmtTime(at), name)
	if err != nil {
		return fmt.Errorf("failed to update best config: %w", err)
	}
	return execRequireRows(res, ErrNotFound)
}

// AddBlockIndicator appends a block indicator to the domain's list if it is
// not already recorded.
func (r *DomainRepository) AddBlockIndicator(ctx context.Context, name, indicator string, at time.Time) error {
	rec, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	if rec.BlockIndicators.Contains(indicator) {
		return nil
	}
	rec.BlockIndicators = append(rec.BlockIndicators, indicator)
	rec.LastUpdated = at
	return r.Upsert(ctx, rec)
}

// ListNames returns up to limit domain names, most recently updated first.
func (r *DomainRepository) ListNames(ctx context.Context, limit int) ([]string, error) {
	var names []string
	err := r.db.SelectContext(ctx, &names,
		"SELECT domain FROM domains ORDER BY last_updated DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return names, nil
}

// Similar returns up to limit neighbors of the domain, strongest first.
func (r *DomainRepository) Similar(ctx context.Context, name string, limit int) ([]domain.Similarity, error) {
	query := `
		SELECT domain_a, domain_b, kind, weight
		FROM domain_similarity
		WHERE domain_a = ?
		ORDER BY weight DESC
		LIMIT ?`

	var sims []domain.Similarity
	if err := r.db.SelectContext(ctx, &sims, query, name, limit); err != nil {
		return nil, fmt.Errorf("failed to list similar domains: %w", err)
	}
	return sims, nil
}

// AddSimilarity records a similarity edge, replacing any prior weight for
// the same pair and kind.
func (r *DomainRepository) AddSimilarity(ctx context.Context, sim domain.Similarity) error {
	query := `
		INSERT INTO domain_similarity (domain_a, domain_b, kind, weight)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (domain_a, domain_b, kind) DO UPDATE SET
			weight = excluded.weight`

	_, err := r.db.ExecContext(ctx, query, sim.DomainA, sim.DomainB, sim.Kind, sim.Weight)
	if err != nil {
		return fmt.Errorf("failed to add similarity: %w", err)
	}
	return nil
}

// BestGlobalConfig returns the id of the configuration with the highest
// lifetime success rate among those with at least minAttempts attempts.
// ErrNotFound is returned when no configuration qualifies.
func (r *DomainRepository) BestGlobalConfig(ctx context.Context, minAttempts int) (string, error) {
	query := `
		SELECT id FROM browser_configs
		WHERE attempts >= ?
		ORDER BY CAST(successes AS REAL) / attempts DESC, attempts DESC
		LIMIT 1`

	var id string
	err := r.db.GetContext(ctx, &id, query, minAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get best global config: %w", err)
	}
	return id, nil
}
