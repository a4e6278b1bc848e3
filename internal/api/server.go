// Package api exposes the operational HTTP surface: health, metrics,
// enqueueing and queue introspection.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/national-treasure/internal/database"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/learning"
	"github.com/jonesrussell/national-treasure/internal/logger"
	"github.com/jonesrussell/national-treasure/internal/queue"
)

// Config holds API server configuration.
type Config struct {
	Addr string `yaml:"addr" json:"addr"`
}

// DefaultConfig returns the API defaults.
func DefaultConfig() Config {
	return Config{Addr: ":8080"}
}

// Server is the operational HTTP server.
type Server struct {
	cfg     Config
	queue   *queue.Service
	jobs    *database.JobRepository
	domains *database.DomainRepository
	learner *learning.Learner
	logger  logger.Interface
	http    *http.Server
}

// NewServer creates the API server.
func NewServer(
	cfg Config,
	q *queue.Service,
	jobs *database.JobRepository,
	domains *database.DomainRepository,
	learner *learning.Learner,
	log logger.Interface,
) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	s := &Server{
		cfg:     cfg,
		queue:   q,
		jobs:    jobs,
		domains: domains,
		learner: learner,
		logger:  log.WithComponent("api"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/jobs", s.enqueueJob)
		v1.GET("/jobs/:id", s.getJob)
		v1.GET("/queue/stats", s.queueStats)
		v1.GET("/dead-letter", s.listDeadLetter)
		v1.POST("/dead-letter/:id/retry", s.retryDeadLetter)
		v1.GET("/domains/:domain", s.getDomain)
	}

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("API server listening", "addr", s.cfg.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"queue":  s.queue.State().String(),
	})
}

type enqueueRequest struct {
	Type        string         `json:"type" binding:"required"`
	Payload     map[string]any `json:"payload" binding:"required"`
	Priority    int            `json:"priority"`
	MaxAttempts int            `json:"max_attempts"`
	DependsOn   *string        `json:"depends_on"`
}

func (s *Server) enqueueJob(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = 3
	}

	id, err := s.queue.Enqueue(c.Request.Context(),
		req.Type, domain.NewPayload(req.Payload), req.Priority, req.MaxAttempts, req.DependsOn)
	switch {
	case errors.Is(err, queue.ErrInvalidInput), errors.Is(err, database.ErrInvalidJob):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrQueueFull):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "queue is full"})
	case err != nil:
		s.logger.Error("Enqueue failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusAccepted, gin.H{"job_id": id})
	}
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.jobs.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	case err != nil:
		s.logger.Error("Job lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, job)
	}
}

func (s *Server) queueStats(c *gin.Context) {
	queueName := c.DefaultQuery("queue", domain.DefaultQueue)
	stats, err := s.jobs.Stats(c.Request.Context(), queueName)
	if err != nil {
		s.logger.Error("Stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) listDeadLetter(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	entries, err := s.jobs.ListDeadLetter(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Dead letter listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) retryDeadLetter(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dead letter id"})
		return
	}

	err = s.jobs.RetryDeadLetter(c.Request.Context(), id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "dead letter not found"})
	case errors.Is(err, database.ErrInvalidJob):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		s.logger.Error("Dead letter retry failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, gin.H{"revived": true})
	}
}

func (s *Server) getDomain(c *gin.Context) {
	name := c.Param("domain")
	rec, err := s.domains.Get(c.Request.Context(), name)
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
		return
	case err != nil:
		s.logger.Error("Domain lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	signals, err := s.learner.Drift(c.Request.Context(), name)
	if err != nil {
		s.logger.Error("Drift check failed", "domain", name, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"record": rec, "drift_signals": signals})
}
