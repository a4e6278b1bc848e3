package queue

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/jonesrussell/national-treasure/internal/capture"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/learning"
	"github.com/jonesrussell/national-treasure/internal/logger"
	"github.com/jonesrussell/national-treasure/internal/metrics"
	"github.com/jonesrussell/national-treasure/internal/scraper"
)

// capturePayload is the decoded shape of a capture job payload.
type capturePayload struct {
	URL       string           `mapstructure:"url"`
	Artifacts []string         `mapstructure:"artifacts"`
	Behaviors *bool            `mapstructure:"behaviors"`
	Cookies   []capture.Cookie `mapstructure:"cookies"`
}

// CaptureOnce runs the learner-governed capture path: rate discipline,
// configuration selection, the pipeline, outcome ingestion. The job
// handler and the one-off CLI capture both go through it, so every
// capture teaches the bandit. req.Config is chosen here and must be nil.
func CaptureOnce(ctx context.Context, l *learning.Learner, p *capture.Pipeline, log logger.Interface, req capture.Request) (*domain.CaptureResult, error) {
	host, err := hostOf(req.URL)
	if err != nil {
		return nil, err
	}

	wait, err := l.ShouldWait(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate discipline: %w", err)
	}
	if wait > 0 {
		log.Debug("Honoring rate discipline", "domain", host, "wait", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	cfg, err := l.Select(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to select config: %w", err)
	}
	req.Config = cfg

	res, runErr := p.Run(ctx, req)

	outcome := outcomeFrom(host, req.URL, cfg.ID, res)
	if recErr := l.Record(ctx, outcome); recErr != nil {
		log.Error("Failed to record outcome",
			"domain", host, "url", req.URL, "error", recErr)
	}

	metrics.CaptureOutcomes.WithLabelValues(outcome.Result, outcome.AttributedService()).Inc()
	metrics.CaptureDuration.Observe(float64(res.DurationMS) / 1000)

	return res, runErr
}

// CaptureHandler adapts CaptureOnce into a job handler.
func CaptureHandler(l *learning.Learner, p *capture.Pipeline, log logger.Interface) Handler {
	log = log.WithComponent("capture-handler")

	return func(ctx context.Context, job *domain.Job) (domain.Payload, error) {
		var payload capturePayload
		if err := mapstructure.Decode(map[string]any(job.Payload), &payload); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}

		artifacts := payload.Artifacts
		if len(artifacts) == 0 {
			artifacts = domain.AllArtifacts
		}
		behaviors := payload.Behaviors == nil || *payload.Behaviors

		res, runErr := CaptureOnce(ctx, l, p, log, capture.Request{
			URL:       payload.URL,
			Artifacts: artifacts,
			Behaviors: behaviors,
			Cookies:   payload.Cookies,
		})
		if runErr != nil {
			return nil, runErr
		}
		if !res.Success {
			return nil, fmt.Errorf("capture %s: %s", res.Validation.Result, res.Validation.Service)
		}

		return domain.NewPayload(map[string]any{
			"url":            res.URL,
			"artifacts":      res.Artifacts,
			"title":          res.PageTitle,
			"http_status":    res.HTTPStatus,
			"content_length": res.ContentLength,
			"duration_ms":    res.DurationMS,
		}), nil
	}
}

// outcomeFrom maps a capture result into the learner's outcome record.
func outcomeFrom(host, rawURL, configID string, res *domain.CaptureResult) *domain.Outcome {
	o := &domain.Outcome{
		Timestamp:     res.Timestamp,
		Domain:        host,
		URL:           rawURL,
		ConfigID:      configID,
		Result:        res.Validation.Result,
		ResponseMS:    res.DurationMS,
		ContentLength: res.ContentLength,
		Hour:          res.Timestamp.Hour(),
		Weekday:       int(res.Timestamp.Weekday()),
	}
	if res.Validation.Service != "" {
		svc := res.Validation.Service
		o.BlockService = &svc
	}
	if res.HTTPStatus != 0 {
		status := res.HTTPStatus
		o.HTTPStatus = &status
	}
	if res.PageTitle != "" {
		title := res.PageTitle
		o.PageTitle = &title
	}
	return o
}

// scrapePayload is the decoded shape of a scrape job payload.
type scrapePayload struct {
	URL       string            `mapstructure:"url"`
	Selectors map[string]string `mapstructure:"selectors"`
}

// ScrapeHandler runs plain HTTP extraction jobs.
func ScrapeHandler(s *scraper.Scraper) Handler {
	return func(ctx context.Context, job *domain.Job) (domain.Payload, error) {
		var payload scrapePayload
		if err := mapstructure.Decode(map[string]any(job.Payload), &payload); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}
		if _, err := hostOf(payload.URL); err != nil {
			return nil, err
		}

		result, err := s.Scrape(ctx, payload.URL, payload.Selectors)
		if err != nil {
			return nil, err
		}

		return domain.NewPayload(map[string]any{
			"url":         result.URL,
			"status_code": result.StatusCode,
			"title":       result.Title,
			"fields":      result.Fields,
			"links":       result.Links,
		}), nil
	}
}

// hostOf extracts the hostname, tagging malformed URLs as invalid input.
func hostOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Hostname() == "" {
		return "", fmt.Errorf("%w: malformed url %q", ErrInvalidInput, raw)
	}
	return u.Hostname(), nil
}
