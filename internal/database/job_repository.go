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

// Retry backoff bounds. Delay doubles per attempt from the base and is
// capped, so transient failures retry quickly and persistent ones back off.
const (
	RetryBackoffBase = 30 * time.Second
	RetryBackoffCap  = time.Hour
)

// JobRepository is the durable job queue. Claims, completions, retries and
// dead-lettering are all single transactions, so a crash at any point
// leaves every job in a well-defined state.
type JobRepository struct {
	db     *sqlx.DB
	logger logger.Interface

	// maxDepth caps pending jobs per queue. Zero means unbounded.
	maxDepth    int
	backoffBase time.Duration
	backoffCap  time.Duration
}

// NewJobRepository creates a new job repository instance.
func NewJobRepository(db *sqlx.DB, log logger.Interface, maxDepth int) *JobRepository {
	return &JobRepository{
		db:          db,
		logger:      log,
		maxDepth:    maxDepth,
		backoffBase: RetryBackoffBase,
		backoffCap:  RetryBackoffCap,
	}
}

// SetBackoff overrides the retry backoff bounds.
func (r *JobRepository) SetBackoff(base, ceiling time.Duration) {
	if base > 0 {
		r.backoffBase = base
	}
	if ceiling > 0 {
		r.backoffCap = ceiling
	}
}

type jobRow struct {
	ID            string         `db:"id"`
	Queue         string         `db:"queue"`
	Type          string         `db:"type"`
	Payload       domain.Payload `db:"payload"`
	Priority      int            `db:"priority"`
	Status        string         `db:"status"`
	Attempts      int            `db:"attempts"`
	MaxAttempts   int            `db:"max_attempts"`
	LastError     sql.NullString `db:"last_error"`
	Result        domain.Payload `db:"result"`
	CreatedAt     string         `db:"created_at"`
	AvailableAt   string         `db:"available_at"`
	StartedAt     sql.NullString `db:"started_at"`
	CompletedAt   sql.NullString `db:"completed_at"`
	LockedBy      sql.NullString `db:"locked_by"`
	LockedAt      sql.NullString `db:"locked_at"`
	LeaseDeadline sql.NullString `db:"lease_deadline"`
	DependsOn     sql.NullString `db:"depends_on"`
}

func (r jobRow) toDomain() (*domain.Job, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	availableAt, err := parseTime(r.AvailableAt)
	if err != nil {
		return nil, err
	}
	startedAt, err := parseTimePtr(r.StartedAt)
	if err != nil {
		return nil, err
	}
	completedAt, err := parseTimePtr(r.CompletedAt)
	if err != nil {
		return nil, err
	}
	lockedAt, err := parseTimePtr(r.LockedAt)
	if err != nil {
		return nil, err
	}
	leaseDeadline, err := parseTimePtr(r.LeaseDeadline)
	if err != nil {
		return nil, err
	}

	return &domain.Job{
		ID:            r.ID,
		Queue:         r.Queue,
		Type:          r.Type,
		Payload:       r.Payload,
		Priority:      r.Priority,
		Status:        r.Status,
		Attempts:      r.Attempts,
		MaxAttempts:   r.MaxAttempts,
		LastError:     stringPtr(r.LastError),
		Result:        r.Result,
		CreatedAt:     createdAt,
		AvailableAt:   availableAt,
		StartedAt:     startedAt,
		CompletedAt:   completedAt,
		LockedBy:      stringPtr(r.LockedBy),
		LockedAt:      lockedAt,
		LeaseDeadline: leaseDeadline,
		DependsOn:     stringPtr(r.DependsOn),
	}, nil
}

// Enqueue inserts a pending job. The job type must be recognized, the
// payload schema supported and the dependency, if any, must exist.
func (r *JobRepository) Enqueue(ctx context.Context, job *domain.Job) error {
	if !domain.ValidJobType(job.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidJob, job.Type)
	}
	if err := job.Payload.CheckSchema(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidJob, err)
	}
	if job.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidJob)
	}
	if job.Queue == "" {
		job.Queue = domain.DefaultQueue
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if r.maxDepth > 0 {
		var depth int
		err := tx.GetContext(ctx, &depth,
			"SELECT COUNT(*) FROM jobs WHERE queue = ? AND status = ?",
			job.Queue, domain.JobStatusPending)
		if err != nil {
			return fmt.Errorf("failed to check queue depth: %w", err)
		}
		if depth >= r.maxDepth {
			return ErrQueueFull
		}
	}

	if job.DependsOn != nil {
		var exists int
		err := tx.GetContext(ctx, &exists,
			"SELECT COUNT(*) FROM jobs WHERE id = ?", *job.DependsOn)
		if err != nil {
			return fmt.Errorf("failed to check dependency: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: dependency %s does not exist", ErrInvalidJob, *job.DependsOn)
		}
	}

	query := `
		INSERT INTO jobs (
			id, queue, type, payload, priority, status,
			attempts, max_attempts, created_at, available_at, depends_on
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		job.ID, job.Queue, job.Type, job.Payload, job.Priority, domain.JobStatusPending,
		job.Attempts, job.MaxAttempts, fmtTime(job.CreatedAt), fmtTime(job.AvailableAt),
		nullString(job.DependsOn))
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug("Job enqueued",
		"job_id", job.ID, "queue", job.Queue, "type", job.Type, "priority", job.Priority)
	return nil
}

// Claim atomically takes the next runnable job for a worker. Runnable
// means pending, due, and with a completed parent if the job has one.
// Ordering is priority first, then oldest. Returns (nil, nil) when no job
// is runnable.
func (r *JobRepository) Claim(ctx context.Context, queue, workerID string, lease time.Duration) (*domain.Job, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	selectQuery := `
		SELECT * FROM jobs
		WHERE status = ?
		  AND queue = ?
		  AND available_at <= ?
		  AND (depends_on IS NULL OR EXISTS (
			SELECT 1 FROM jobs p WHERE p.id = jobs.depends_on AND p.status = ?
		  ))
		ORDER BY priority DESC, created_at ASC
		LIMIT 1`

	var row jobRow
	err = tx.GetContext(ctx, &row, selectQuery,
		domain.JobStatusPending, queue, fmtTime(now), domain.JobStatusDone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select job: %w", err)
	}

	deadline := now.Add(lease)
	updateQuery := `
		UPDATE jobs
		SET status = ?,
		    attempts = attempts + 1,
		    started_at = COALESCE(started_at, ?),
		    locked_by = ?,
		    locked_at = ?,
		    lease_deadline = ?
		WHERE id = ? AND status = ?`

	res, err := tx.ExecContext(ctx, updateQuery,
		domain.JobStatusRunning, fmtTime(now), workerID, fmtTime(now), fmtTime(deadline),
		row.ID, domain.JobStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if err := execRequireRows(res, ErrNotFound); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	job, err := r.toClaimed(row, workerID, now, deadline)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Job claimed",
		"job_id", job.ID, "worker_id", workerID, "attempt", job.Attempts)
	return job, nil
}

// toClaimed applies the claim update to the selected row in memory.
func (r *JobRepository) toClaimed(row jobRow, workerID string, now, deadline time.Time) (*domain.Job, error) {
	job, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatusRunning
	job.Attempts++
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	job.LockedBy = &workerID
	job.LockedAt = &now
	job.LeaseDeadline = &deadline
	return job, nil
}

// Heartbeat extends a running job's lease. ErrNotOwner is returned when
// the worker no longer holds the job, in which case it must abandon the
// work instead of completing it.
func (r *JobRepository) Heartbeat(ctx context.Context, jobID, workerID string, lease time.Duration) error {
	deadline := time.Now().UTC().Add(lease)
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET lease_deadline = ?
		WHERE id = ? AND locked_by = ? AND status = ?`,
		fmtTime(deadline), jobID, workerID, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to heartbeat job: %w", err)
	}
	return execRequireRows(res, ErrNotOwner)
}

// Complete marks a running job done and records its result.
func (r *JobRepository) Complete(ctx context.Context, jobID, workerID string, result domain.Payload) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?,
		    result = ?,
		    completed_at = ?,
		    locked_by = NULL,
		    locked_at = NULL,
		    lease_deadline = NULL
		WHERE id = ? AND locked_by = ? AND status = ?`,
		domain.JobStatusDone, result, fmtTime(now),
		jobID, workerID, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if err := execRequireRows(res, ErrNotOwner); err != nil {
		return err
	}

	r.logger.Debug("Job completed", "job_id", jobID, "worker_id", workerID)
	return nil
}

// Fail records a failed attempt. The job is rescheduled with exponential
// backoff while attempts remain; otherwise, or when permanent is set, it
// moves to the dead letter table.
func (r *JobRepository) Fail(ctx context.Context, jobID, workerID, reason string, permanent bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row jobRow
	err = tx.GetContext(ctx, &row,
		"SELECT * FROM jobs WHERE id = ? AND locked_by = ? AND status = ?",
		jobID, workerID, domain.JobStatusRunning)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotOwner
	}
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	now := time.Now().UTC()
	exhausted := permanent || row.Attempts >= row.MaxAttempts

	if exhausted {
		if err := deadLetterTx(ctx, tx, row, reason, now); err != nil {
			return err
		}
	} else {
		availableAt := now.Add(Backoff(row.Attempts, r.backoffBase, r.backoffCap))
		_, err = tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = ?,
			    last_error = ?,
			    available_at = ?,
			    locked_by = NULL,
			    locked_at = NULL,
			    lease_deadline = NULL
			WHERE id = ?`,
			domain.JobStatusPending, reason, fmtTime(availableAt), jobID)
		if err != nil {
			return fmt.Errorf("failed to reschedule job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if exhausted {
		r.logger.Warn("Job dead-lettered",
			"job_id", jobID, "attempts", row.Attempts, "error", reason)
	} else {
		r.logger.Debug("Job rescheduled",
			"job_id", jobID, "attempt", row.Attempts, "error", reason)
	}
	return nil
}

// deadLetterTx snapshots the job into the dead letter table and marks the
// original row dead within the caller's transaction.
func deadLetterTx(ctx context.Context, tx *sqlx.Tx, row jobRow, reason string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO job_dead_letter (job_id, queue, type, payload, error, attempts, died_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Queue, row.Type, row.Payload, reason, row.Attempts, fmtTime(now))
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?,
		    last_error = ?,
		    completed_at = ?,
		    locked_by = NULL,
		    locked_at = NULL,
		    lease_deadline = NULL
		WHERE id = ?`,
		domain.JobStatusDead, reason, fmtTime(now), row.ID)
	if err != nil {
		return fmt.Errorf("failed to mark job dead: %w", err)
	}
	return nil
}

// Backoff returns the retry delay after the given attempt count. The first
// retry waits the base delay, doubling per attempt up to the ceiling.
func Backoff(attempts int, base, ceiling time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}

// RecoverStale requeues or dead-letters running jobs whose lease expired.
// Each stale job counts as a failed attempt. Returns the number recovered.
func (r *JobRepository) RecoverStale(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rows []jobRow
	err = tx.SelectContext(ctx, &rows,
		"SELECT * FROM jobs WHERE status = ? AND lease_deadline < ?",
		domain.JobStatusRunning, fmtTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	for _, row := range rows {
		if row.Attempts >= row.MaxAttempts {
			if err := deadLetterTx(ctx, tx, row, "lease expired", now); err != nil {
				return 0, err
			}
			continue
		}

		availableAt := now.Add(Backoff(row.Attempts, r.backoffBase, r.backoffCap))
		_, err = tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = ?,
			    last_error = ?,
			    available_at = ?,
			    locked_by = NULL,
			    locked_at = NULL,
			    lease_deadline = NULL
			WHERE id = ?`,
			domain.JobStatusPending, "lease expired", fmtTime(availableAt), row.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to requeue stale job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if len(rows) > 0 {
		r.logger.Warn("Recovered stale jobs", "count", len(rows))
	}
	return len(rows), nil
}

// Get retrieves a job by id.
func (r *JobRepository) Get(ctx context.Context, id string) (*domain.Job, error) {
	var row jobRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM jobs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return row.toDomain()
}

// Cancel removes a job that has not started. Only pending jobs can be
// canceled; anything else returns ErrNotFound.
func (r *JobRepository) Cancel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM jobs WHERE id = ? AND status = ?", id, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	return execRequireRows(res, ErrNotFound)
}

type deadLetterRow struct {
	ID        int64          `db:"id"`
	JobID     string         `db:"job_id"`
	Queue     string         `db:"queue"`
	Type      string         `db:"type"`
	Payload   domain.Payload `db:"payload"`
	Error     string         `db:"error"`
	Attempts  int            `db:"attempts"`
	DiedAt    string         `db:"died_at"`
	RevivedAt sql.NullString `db:"revived_at"`
}

func (r deadLetterRow) toDomain() (*domain.DeadLetterJob, error) {
	diedAt, err := parseTime(r.DiedAt)
	if err != nil {
		return nil, err
	}
	revivedAt, err := parseTimePtr(r.RevivedAt)
	if err != nil {
		return nil, err
	}
	return &domain.DeadLetterJob{
		ID:        r.ID,
		JobID:     r.JobID,
		Queue:     r.Queue,
		Type:      r.Type,
		Payload:   r.Payload,
		Error:     r.Error,
		Attempts:  r.Attempts,
		DiedAt:    diedAt,
		RevivedAt: revivedAt,
	}, nil
}

// ListDeadLetter returns dead letter entries, newest first.
func (r *JobRepository) ListDeadLetter(ctx context.Context, limit int) ([]*domain.DeadLetterJob, error) {
	var rows []deadLetterRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM job_dead_letter ORDER BY died_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	entries := make([]*domain.DeadLetterJob, 0, len(rows))
	for _, row := range rows {
		e, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// RetryDeadLetter revives a dead-lettered job: attempts reset to zero, the
// job returns to pending, and the dead letter entry is marked revived but
// kept for the audit trail.
func (r *JobRepository) RetryDeadLetter(ctx context.Context, deadLetterID int64) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row deadLetterRow
	err = tx.GetContext(ctx, &row,
		"SELECT * FROM job_dead_letter WHERE id = ?", deadLetterID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get dead letter: %w", err)
	}
	if row.RevivedAt.Valid {
		return fmt.Errorf("%w: already revived", ErrInvalidJob)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?,
		    attempts = 0,
		    last_error = NULL,
		    completed_at = NULL,
		    available_at = ?
		WHERE id = ? AND status = ?`,
		domain.JobStatusPending, fmtTime(now), row.JobID, domain.JobStatusDead)
	if err != nil {
		return fmt.Errorf("failed to revive job: %w", err)
	}
	if err := execRequireRows(res, ErrNotFound); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE job_dead_letter SET revived_at = ? WHERE id = ?",
		fmtTime(now), deadLetterID)
	if err != nil {
		return fmt.Errorf("failed to mark dead letter revived: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Info("Dead letter revived", "job_id", row.JobID, "dead_letter_id", deadLetterID)
	return nil
}

// QueueStats summarizes one queue's depth by status.
type QueueStats struct {
	Queue      string `json:"queue"`
	Pending    int    `json:"pending"`
	Running    int    `json:"running"`
	Done       int    `json:"done"`
	Failed     int    `json:"failed"`
	Dead       int    `json:"dead"`
	DeadLetter int    `json:"dead_letter"`
}

// Stats returns the depth of the given queue by status, plus the count of
// unrevived dead letter entries.
func (r *JobRepository) Stats(ctx context.Context, queue string) (*QueueStats, error) {
	stats := &QueueStats{Queue: queue}

	rows, err := r.db.QueryxContext(ctx,
		"SELECT status, COUNT(*) FROM jobs WHERE queue = ? GROUP BY status", queue)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan queue stats: %w", err)
		}
		switch status {
		case domain.JobStatusPending:
			stats.Pending = count
		case domain.JobStatusRunning:
			stats.Running = count
		case domain.JobStatusDone:
			stats.Done = count
		case domain.JobStatusFailed:
			stats.Failed = count
		case domain.JobStatusDead:
			stats.Dead = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue stats: %w", err)
	}

	err = r.db.GetContext(ctx, &stats.DeadLetter,
		"SELECT COUNT(*) FROM job_dead_letter WHERE queue = ? AND revived_at IS NULL", queue)
	if err != nil {
		return nil, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return stats, nil
}
