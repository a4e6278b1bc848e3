package queue

import (
	"errors"
	"time"
)

// Defaults for the queue service.
const (
	DefaultPoolSize          = 3
	DefaultLease             = 30 * time.Minute
	DefaultPollInterval      = time.Second
	DefaultHeartbeatInterval = time.Minute
	DefaultJobTimeout        = 5 * time.Minute
	DefaultDrainTimeout      = 30 * time.Second
)

// Config holds queue service configuration.
type Config struct {
	// Queue is the queue name this service works.
	Queue string `yaml:"queue" json:"queue"`
	// PoolSize is the number of concurrent workers.
	PoolSize int `yaml:"pool_size" json:"pool_size"`
	// Lease is how long a claim holds a job before it is recoverable.
	Lease time.Duration `yaml:"lease" json:"lease"`
	// PollInterval is how long an idle worker sleeps between claims.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	// HeartbeatInterval is how often a busy worker extends its lease.
	// Must be well under Lease.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	// JobTimeout bounds one handler invocation.
	JobTimeout time.Duration `yaml:"job_timeout" json:"job_timeout"`
	// DrainTimeout bounds graceful shutdown.
	DrainTimeout time.Duration `yaml:"drain_timeout" json:"drain_timeout"`
}

// DefaultConfig returns the queue service defaults.
func DefaultConfig() Config {
	return Config{
		Queue:             "default",
		PoolSize:          DefaultPoolSize,
		Lease:             DefaultLease,
		PollInterval:      DefaultPollInterval,
		HeartbeatInterval: DefaultHeartbeatInterval,
		JobTimeout:        DefaultJobTimeout,
		DrainTimeout:      DefaultDrainTimeout,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Queue == "" {
		return errors.New("queue name cannot be empty")
	}
	if c.PoolSize <= 0 {
		return errors.New("pool size must be positive")
	}
	if c.Lease <= 0 {
		return errors.New("lease must be positive")
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatInterval >= c.Lease {
		return errors.New("heartbeat interval must be positive and below the lease")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.JobTimeout <= 0 {
		return errors.New("job timeout must be positive")
	}
	return nil
}
