// Package queue runs the worker pool that claims durable jobs and drives
// registered handlers, with leases, retries and graceful drain.
package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/national-treasure/internal/database"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
	"github.com/jonesrussell/national-treasure/internal/metrics"
)

// ErrInvalidInput marks a failure that retrying cannot fix. Handlers wrap
// it to send a job straight to the dead letter table.
var ErrInvalidInput = errors.New("invalid input")

// finishWriteTimeout bounds the Complete/Fail write after a handler
// returns. The write runs on a detached context so a job whose handler
// was cut short by shutdown still records its state transition instead
// of sitting in running until the lease expires.
const finishWriteTimeout = 10 * time.Second

// Handler processes one job and returns its result payload.
type Handler func(ctx context.Context, job *domain.Job) (domain.Payload, error)

// State represents the current state of the service.
type State int32

const (
	// StateStopped means the service is not running.
	StateStopped State = iota

	// StateRunning means workers are claiming and processing jobs.
	StateRunning

	// StateDraining means the service is shutting down gracefully.
	StateDraining
)

// String returns the string representation of a state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Service owns the worker pool for one queue.
type Service struct {
	cfg      Config
	repo     *database.JobRepository
	handlers map[string]Handler
	logger   logger.Interface

	state  atomic.Int32
	stopCh chan struct{}
	wg     sync.WaitGroup

	jobsProcessed atomic.Int64
	jobsSucceeded atomic.Int64
	jobsFailed    atomic.Int64
}

// NewService creates a queue service.
func NewService(cfg Config, repo *database.JobRepository, log logger.Interface) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := &Service{
		cfg:      cfg,
		repo:     repo,
		handlers: make(map[string]Handler),
		logger:   log.WithComponent("queue"),
		stopCh:   make(chan struct{}),
	}
	s.state.Store(int32(StateStopped))
	return s, nil
}

// Register installs the handler for a job type. Must be called before Start.
func (s *Service) Register(jobType string, h Handler) {
	s.handlers[jobType] = h
}

// Enqueue validates and inserts a new job, returning its id. Capture and
// scrape jobs must carry a well-formed absolute url in their payload.
func (s *Service) Enqueue(ctx context.Context, jobType string, payload domain.Payload, priority, maxAttempts int, dependsOn *string) (string, error) {
	if err := validatePayload(jobType, payload); err != nil {
		return "", err
	}

	job := domain.NewJob(jobType, payload, priority, maxAttempts)
	job.Queue = s.cfg.Queue
	job.DependsOn = dependsOn
	if err := s.repo.Enqueue(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// validatePayload rejects malformed work before it enters the queue.
func validatePayload(jobType string, payload domain.Payload) error {
	if !domain.ValidJobType(jobType) {
		return fmt.Errorf("%w: unknown job type %q", ErrInvalidInput, jobType)
	}

	raw, _ := payload["url"].(string)
	if raw == "" {
		return fmt.Errorf("%w: payload missing url", ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Hostname() == "" {
		return fmt.Errorf("%w: malformed url %q", ErrInvalidInput, raw)
	}
	return nil
}

// Start recovers stale leases and launches the worker pool.
func (s *Service) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return errors.New("service is already running")
	}

	if _, err := s.repo.RecoverStale(ctx); err != nil {
		s.logger.Error("Startup stale recovery failed", "error", err)
	}

	for i := 0; i < s.cfg.PoolSize; i++ {
		workerID := fmt.Sprintf("worker-%d-%s", i, uuid.NewString()[:8])
		s.wg.Add(1)
		go s.workerLoop(ctx, workerID)
	}

	s.logger.Info("Queue service started",
		"queue", s.cfg.Queue, "pool_size", s.cfg.PoolSize)
	return nil
}

// Stop drains the pool: workers stop claiming, finish their current job
// and exit. Jobs still running at the deadline are released by lease
// expiry later.
func (s *Service) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return errors.New("service is not running")
	}

	s.logger.Info("Queue service draining")
	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Queue service stopped")
	case <-ctx.Done():
		s.logger.Warn("Queue service stop canceled")
	case <-time.After(s.cfg.DrainTimeout):
		s.logger.Warn("Queue service drain timeout exceeded")
	}

	s.state.Store(int32(StateStopped))
	return nil
}

// State returns the current service state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// workerLoop claims and processes jobs until drain.
func (s *Service) workerLoop(ctx context.Context, workerID string) {
	defer s.wg.Done()
	log := s.logger.With("worker_id", workerID)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := s.repo.Claim(ctx, s.cfg.Queue, workerID, s.cfg.Lease)
		if err != nil {
			log.Error("Claim failed", "error", err)
			s.sleep(ctx, s.cfg.PollInterval)
			continue
		}
		if job == nil {
			s.sleep(ctx, s.cfg.PollInterval)
			continue
		}

		metrics.JobsClaimed.Inc()
		s.process(ctx, log, workerID, job)
	}
}

// process runs one claimed job under its timeout with a heartbeat.
func (s *Service) process(ctx context.Context, log logger.Interface, workerID string, job *domain.Job) {
	log.Info("Processing job",
		"job_id", job.ID, "type", job.Type, "attempt", job.Attempts)

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	hbDone := make(chan struct{})
	go s.heartbeatLoop(jobCtx, log, workerID, job.ID, hbDone)

	result, err := s.invoke(jobCtx, job)
	close(hbDone)

	finishCtx, finishCancel := context.WithTimeout(context.WithoutCancel(ctx), finishWriteTimeout)
	defer finishCancel()

	s.jobsProcessed.Add(1)
	if err != nil {
		s.jobsFailed.Add(1)
		s.fail(finishCtx, log, workerID, job, err)
		return
	}

	if err := s.repo.Complete(finishCtx, job.ID, workerID, result); err != nil {
		if errors.Is(err, database.ErrNotOwner) {
			log.Warn("Lost job ownership before completion", "job_id", job.ID)
			return
		}
		log.Error("Failed to mark job done", "job_id", job.ID, "error", err)
		return
	}

	s.jobsSucceeded.Add(1)
	metrics.JobsProcessed.WithLabelValues(job.Type, "succeeded").Inc()
	log.Info("Job done", "job_id", job.ID)
}

// invoke dispatches the job to its handler. Unknown types are invalid
// input rather than retryable failures.
func (s *Service) invoke(ctx context.Context, job *domain.Job) (domain.Payload, error) {
	h, ok := s.handlers[job.Type]
	if !ok {
		return nil, fmt.Errorf("%w: no handler for type %q", ErrInvalidInput, job.Type)
	}
	if err := job.Payload.CheckSchema(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	return h(ctx, job)
}

func (s *Service) fail(ctx context.Context, log logger.Interface, workerID string, job *domain.Job, handlerErr error) {
	permanent := errors.Is(handlerErr, ErrInvalidInput)
	if err := s.repo.Fail(ctx, job.ID, workerID, handlerErr.Error(), permanent); err != nil {
		if errors.Is(err, database.ErrNotOwner) {
			log.Warn("Lost job ownership before failure record", "job_id", job.ID)
			return
		}
		log.Error("Failed to record job failure", "job_id", job.ID, "error", err)
		return
	}

	disposition := "failed"
	if permanent || job.Attempts >= job.MaxAttempts {
		disposition = "dead"
	}
	metrics.JobsProcessed.WithLabelValues(job.Type, disposition).Inc()
	log.Warn("Job failed",
		"job_id", job.ID, "attempt", job.Attempts,
		"permanent", permanent, "error", handlerErr)
}

// heartbeatLoop extends the lease until the job finishes or ownership is
// lost. Losing ownership cancels nothing here; the handler's context is
// bounded by the job timeout, and mutating operations re-verify ownership.
func (s *Service) heartbeatLoop(ctx context.Context, log logger.Interface, workerID, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.repo.Heartbeat(ctx, jobID, workerID, s.cfg.Lease); err != nil {
				log.Warn("Heartbeat failed", "job_id", jobID, "error", err)
				return
			}
		}
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	case <-s.stopCh:
	}
}

// Stats returns processing counters since start.
func (s *Service) Stats() (processed, succeeded, failed int64) {
	return s.jobsProcessed.Load(), s.jobsSucceeded.Load(), s.jobsFailed.Load()
}
