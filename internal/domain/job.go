package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job status constants. Transitions follow
// pending -> running -> (done | failed | pending[retry] | dead).
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
	JobStatusDead    = "dead"
)

// Job type constants. The set is closed; unknown types are rejected at
// enqueue time and dead-lettered if they somehow reach a worker.
const (
	JobTypeCapture = "capture"
	JobTypeScrape  = "scrape"
)

// DefaultQueue is the queue name used when the caller does not pick one.
const DefaultQueue = "default"

// Job is a durable unit of work in the queue.
type Job struct {
	ID       string  `db:"id"       json:"id"`
	Queue    string  `db:"queue"    json:"queue"`
	Type     string  `db:"type"     json:"type"`
	Payload  Payload `db:"payload"  json:"payload"`
	Priority int     `db:"priority" json:"priority"`
	Status   string  `db:"status"   json:"status"`

	Attempts    int     `db:"attempts"     json:"attempts"`
	MaxAttempts int     `db:"max_attempts" json:"max_attempts"`
	LastError   *string `db:"last_error"   json:"last_error,omitempty"`
	Result      Payload `db:"result"       json:"result,omitempty"`

	// Scheduling
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	AvailableAt time.Time  `db:"available_at" json:"available_at"`
	StartedAt   *time.Time `db:"started_at"   json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	// Ownership. LockedBy is non-nil iff status is running.
	LockedBy      *string    `db:"locked_by"      json:"locked_by,omitempty"`
	LockedAt      *time.Time `db:"locked_at"      json:"locked_at,omitempty"`
	LeaseDeadline *time.Time `db:"lease_deadline" json:"lease_deadline,omitempty"`

	// Dependency. The job is not claimable until the parent is done.
	DependsOn *string `db:"depends_on" json:"depends_on,omitempty"`
}

// NewJob builds a pending job with a fresh ID, available immediately.
func NewJob(jobType string, payload Payload, priority, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.NewString(),
		Queue:       DefaultQueue,
		Type:        jobType,
		Payload:     payload,
		Priority:    priority,
		Status:      JobStatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		AvailableAt: now,
	}
}

// ValidJobType reports whether t is in the closed job type set.
func ValidJobType(t string) bool {
	switch t {
	case JobTypeCapture, JobTypeScrape:
		return true
	}
	return false
}

// DeadLetterJob is a snapshot of a job that exhausted its attempts.
type DeadLetterJob struct {
	ID        int64      `db:"id"         json:"id"`
	JobID     string     `db:"job_id"     json:"job_id"`
	Queue     string     `db:"queue"      json:"queue"`
	Type      string     `db:"type"       json:"type"`
	Payload   Payload    `db:"payload"    json:"payload"`
	Error     string     `db:"error"      json:"error"`
	Attempts  int        `db:"attempts"   json:"attempts"`
	DiedAt    time.Time  `db:"died_at"    json:"died_at"`
	RevivedAt *time.Time `db:"revived_at" json:"revived_at,omitempty"`
}
