package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared by the repositories.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotOwner is returned when a worker acts on a job it no longer holds.
	ErrNotOwner = errors.New("job not owned by worker")
	// ErrQueueFull is returned when enqueueing would exceed the queue bound.
	ErrQueueFull = errors.New("queue is full")
	// ErrInvalidJob is returned for jobs that fail validation at enqueue.
	ErrInvalidJob = errors.New("invalid job")
)

// timeLayout is the storage format for timestamps. The fixed millisecond
// width keeps lexicographic order equal to chronological order, which the
// claim and lease queries depend on.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// fmtTime renders t in the storage format, normalized to UTC.
func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// fmtTimePtr renders an optional time, returning an invalid NullString for nil.
func fmtTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

// parseTime parses a stored timestamp.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// parseTimePtr parses an optional stored timestamp.
func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullString converts an optional string to sql.NullString.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// stringPtr converts a NullString back to an optional string.
func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// nullInt converts an optional int to sql.NullInt64.
func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// intPtr converts a NullInt64 back to an optional int.
func intPtr(i sql.NullInt64) *int {
	if !i.Valid {
		return nil
	}
	v := int(i.Int64)
	return &v
}

// execRequireRows runs the result check shared by update paths: the
// statement must have touched at least one row, otherwise notFound is
// returned.
func execRequireRows(res sql.Result, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
