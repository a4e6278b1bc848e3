// Package config loads application configuration from a config file,
// environment variables and a local .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonesrussell/national-treasure/internal/api"
	"github.com/jonesrussell/national-treasure/internal/behaviors"
	"github.com/jonesrussell/national-treasure/internal/capture"
	"github.com/jonesrussell/national-treasure/internal/database"
	"github.com/jonesrussell/national-treasure/internal/learning"
	"github.com/jonesrussell/national-treasure/internal/logger"
	"github.com/jonesrussell/national-treasure/internal/maintenance"
	"github.com/jonesrussell/national-treasure/internal/queue"
	"github.com/jonesrussell/national-treasure/internal/scraper"
	"github.com/jonesrussell/national-treasure/internal/validator"
)

// envPrefix is the prefix for environment overrides, e.g. NT_DATABASE_PATH.
const envPrefix = "NT"

// Config is the full application configuration.
type Config struct {
	Database    database.Config
	ArchiveDir  string
	MaxDepth    int
	MaxAttempts int

	Queue       queue.Config
	Capture     capture.Config
	Behaviors   behaviors.Config
	Validator   validator.Config
	Learning    learning.Config
	Scraper     scraper.Config
	Maintenance maintenance.Config
	Server      api.Config
	Logging     logger.Config

	RetryBase time.Duration
	RetryCap  time.Duration
}

// Load reads configuration. Order of precedence: environment variables,
// then the config file, then defaults. A missing config file is fine.
func Load(path string) (*Config, error) {
	// .env is a developer convenience; absence is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.national-treasure")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := build(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database_path", database.DefaultConfig().Path)
	v.SetDefault("archive_dir", "archive")
	v.SetDefault("queue_max_depth", 0)
	v.SetDefault("max_attempts", 3)

	v.SetDefault("worker_pool_size", queue.DefaultPoolSize)
	v.SetDefault("default_lease_seconds", int(queue.DefaultLease.Seconds()))
	v.SetDefault("retry_base_seconds", int(database.RetryBackoffBase.Seconds()))
	v.SetDefault("retry_cap_seconds", int(database.RetryBackoffCap.Seconds()))

	v.SetDefault("navigation_timeout_ms", 30000)
	v.SetDefault("behavior_timeout_ms", 30000)
	v.SetDefault("overall_timeout_ms", 120000)
	v.SetDefault("min_content_length", validator.DefaultMinContentLength)

	lc := learning.DefaultConfig()
	v.SetDefault("exploration_threshold", lc.ExplorationThreshold)
	v.SetDefault("exploration_bonus", lc.ExplorationBonus)
	v.SetDefault("decay_half_life_days", int(lc.HalfLifeDays))

	v.SetDefault("server_addr", api.DefaultConfig().Addr)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)
	v.SetDefault("outcome_retain_days", maintenance.DefaultConfig().RetainDays)
}

func build(v *viper.Viper) *Config {
	learnCfg := learning.DefaultConfig()
	learnCfg.ExplorationThreshold = v.GetInt("exploration_threshold")
	learnCfg.ExplorationBonus = v.GetFloat64("exploration_bonus")
	learnCfg.HalfLifeDays = float64(v.GetInt("decay_half_life_days"))

	queueCfg := queue.DefaultConfig()
	queueCfg.PoolSize = v.GetInt("worker_pool_size")
	queueCfg.Lease = time.Duration(v.GetInt("default_lease_seconds")) * time.Second
	queueCfg.JobTimeout = time.Duration(v.GetInt("overall_timeout_ms"))*time.Millisecond + time.Minute

	captureCfg := capture.DefaultConfig()
	captureCfg.NavigationTimeout = time.Duration(v.GetInt("navigation_timeout_ms")) * time.Millisecond
	captureCfg.OverallTimeout = time.Duration(v.GetInt("overall_timeout_ms")) * time.Millisecond

	behaviorCfg := behaviors.DefaultConfig()
	behaviorCfg.PerBehaviorTimeout = time.Duration(v.GetInt("behavior_timeout_ms")) * time.Millisecond

	maintCfg := maintenance.DefaultConfig()
	maintCfg.RetainDays = v.GetInt("outcome_retain_days")

	return &Config{
		Database: database.Config{
			Path:          v.GetString("database_path"),
			BusyTimeoutMS: database.DefaultConfig().BusyTimeoutMS,
			MaxOpenConns:  database.DefaultConfig().MaxOpenConns,
		},
		ArchiveDir:  v.GetString("archive_dir"),
		MaxDepth:    v.GetInt("queue_max_depth"),
		MaxAttempts: v.GetInt("max_attempts"),

		Queue:     queueCfg,
		Capture:   captureCfg,
		Behaviors: behaviorCfg,
		Validator: validator.Config{
			MinContentLength: v.GetInt("min_content_length"),
		},
		Learning:    learnCfg,
		Scraper:     scraper.DefaultConfig(),
		Maintenance: maintCfg,
		Server: api.Config{
			Addr: v.GetString("server_addr"),
		},
		Logging: logger.Config{
			Level:       v.GetString("log_level"),
			Development: v.GetBool("log_development"),
		},

		RetryBase: time.Duration(v.GetInt("retry_base_seconds")) * time.Second,
		RetryCap:  time.Duration(v.GetInt("retry_cap_seconds")) * time.Second,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database_path cannot be empty")
	}
	if c.ArchiveDir == "" {
		return errors.New("archive_dir cannot be empty")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("max_attempts must be positive")
	}
	if c.RetryBase <= 0 || c.RetryCap < c.RetryBase {
		return errors.New("retry backoff bounds are inconsistent")
	}
	return c.Queue.Validate()
}
