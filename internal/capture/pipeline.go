// Package capture orchestrates one-shot page acquisition: session,
// navigation, validation, behaviors and atomic artifact emission.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/national-treasure/internal/behaviors"
	"github.com/jonesrussell/national-treasure/internal/browser"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
	"github.com/jonesrussell/national-treasure/internal/validator"
)

// Page is the tab surface the pipeline drives. *browser.Page satisfies it.
type Page interface {
	behaviors.Evaluator
	Navigate(ctx context.Context, url, waitStrategy string, timeout time.Duration) (*browser.ResponseMeta, error)
	Title(ctx context.Context) (string, error)
	BodyText(ctx context.Context, maxLen int) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	PDF(ctx context.Context) ([]byte, error)
	CookieNames(ctx context.Context) ([]string, error)
	SetCookie(ctx context.Context, name, value, cookieDomain string) error
	Close()
}

// Session is a scoped browser the pipeline borrows for one capture.
type Session interface {
	NewPage() (Page, error)
	Close()
}

// Launcher opens a session under a configuration. Tests substitute fakes.
type Launcher func(ctx context.Context, cfg *domain.BrowserConfig) (Session, error)

// BrowserLauncher is the production launcher over a real Chrome process.
func BrowserLauncher(log logger.Interface) Launcher {
	return func(ctx context.Context, cfg *domain.BrowserConfig) (Session, error) {
		s, err := browser.NewSession(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &browserSession{s: s}, nil
	}
}

type browserSession struct{ s *browser.Session }

func (b *browserSession) NewPage() (Page, error) { return b.s.NewPage() }
func (b *browserSession) Close()                 { b.s.Close() }

// Config holds capture pipeline configuration.
type Config struct {
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	OverallTimeout    time.Duration `yaml:"overall_timeout"    json:"overall_timeout"`
	// BodyTextCap bounds the text handed to the validator.
	BodyTextCap int `yaml:"body_text_cap" json:"body_text_cap"`
}

// DefaultConfig returns the capture pipeline defaults.
func DefaultConfig() Config {
	return Config{
		NavigationTimeout: 30 * time.Second,
		OverallTimeout:    120 * time.Second,
		BodyTextCap:       100_000,
	}
}

// Cookie is a pre-navigation cookie passed through from the caller.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// Request describes one capture.
type Request struct {
	URL       string
	Config    *domain.BrowserConfig
	Artifacts []string
	Behaviors bool
	Cookies   []Cookie
}

// Pipeline performs captures.
type Pipeline struct {
	cfg       Config
	launcher  Launcher
	validator *validator.Validator
	behaviors *behaviors.Runner
	store     *ArtifactStore
	logger    logger.Interface
}

// NewPipeline creates a capture pipeline.
func NewPipeline(
	cfg Config,
	launcher Launcher,
	v *validator.Validator,
	runner *behaviors.Runner,
	store *ArtifactStore,
	log logger.Interface,
) *Pipeline {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultConfig().NavigationTimeout
	}
	if cfg.OverallTimeout <= 0 {
		cfg.OverallTimeout = DefaultConfig().OverallTimeout
	}
	if cfg.BodyTextCap <= 0 {
		cfg.BodyTextCap = DefaultConfig().BodyTextCap
	}
	return &Pipeline{
		cfg:       cfg,
		launcher:  launcher,
		validator: v,
		behaviors: runner,
		store:     store,
		logger:    log.WithComponent("capture"),
	}
}

// Run performs one capture. The result is always structured; the error is
// non-nil only when artifact emission was partial or a hard phase failure
// occurred. Validation blocks are data, not errors.
func (p *Pipeline) Run(ctx context.Context, req Request) (*domain.CaptureResult, error) {
	start := time.Now()
	res := &domain.CaptureResult{
		URL:       req.URL,
		Timestamp: start.UTC(),
		Artifacts: map[string]string{},
	}

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.OverallTimeout)
	defer cancel()

	err := p.run(runCtx, req, res)
	res.DurationMS = int(time.Since(start).Milliseconds())
	if err != nil {
		res.Success = false
		res.Error = err.Error()
		if res.Validation.Result == "" {
			if errors.Is(err, context.DeadlineExceeded) {
				res.Validation.Result = domain.OutcomeTimeout
			} else {
				res.Validation.Result = domain.OutcomeError
			}
		}
		return res, err
	}

	res.Success = res.Validation.Result == domain.OutcomeOK
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, res *domain.CaptureResult) error {
	session, err := p.launcher(ctx, req.Config)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	pg, err := session.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	defer pg.Close()

	for _, c := range req.Cookies {
		if err := pg.SetCookie(ctx, c.Name, c.Value, c.Domain); err != nil {
			return fmt.Errorf("failed to inject cookie: %w", err)
		}
	}

	navTimeout := p.cfg.NavigationTimeout
	if req.Config.TimeoutMS > 0 {
		navTimeout = time.Duration(req.Config.TimeoutMS) * time.Millisecond
	}
	meta, err := pg.Navigate(ctx, req.URL, req.Config.WaitStrategy, navTimeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			res.Validation.Result = domain.OutcomeTimeout
		}
		return err
	}
	if meta == nil {
		return errors.New("navigation returned no response")
	}

	title, err := pg.Title(ctx)
	if err != nil {
		return err
	}
	body, err := pg.BodyText(ctx, p.cfg.BodyTextCap)
	if err != nil {
		return err
	}
	cookieNames, err := pg.CookieNames(ctx)
	if err != nil {
		p.logger.Debug("Cookie inspection failed", "url", req.URL, "error", err)
	}

	res.HTTPStatus = meta.Status
	res.PageTitle = title

	res.Validation = p.validator.Classify(validator.Input{
		HTTPStatus: meta.Status,
		URL:        meta.URL,
		Title:      title,
		Body:       strings.ToLower(body),
		Headers:    meta.Headers,
		Cookies:    cookieNames,
	})

	if res.Validation.Result == domain.OutcomeOK && req.Behaviors {
		res.Behaviors = p.behaviors.Run(ctx, pg)
	}

	html, err := pg.HTML(ctx)
	if err != nil {
		return err
	}
	res.ContentLength = len(html)

	return p.emit(ctx, pg, req, res, meta, html)
}

// emit writes the requested artifacts. Every artifact that can be written
// is, even after one fails; a partial set comes back with a non-nil error.
func (p *Pipeline) emit(ctx context.Context, pg Page, req Request, res *domain.CaptureResult, meta *browser.ResponseMeta, html string) error {
	var firstErr error
	record := func(kind string, err error) {
		p.logger.Error("Artifact emission failed",
			"url", req.URL, "kind", kind, "error", err)
		if firstErr == nil {
			firstErr = fmt.Errorf("artifact %s: %w", kind, err)
		}
	}

	for _, kind := range req.Artifacts {
		var data []byte
		var err error
		switch kind {
		case domain.ArtifactScreenshot:
			data, err = pg.Screenshot(ctx)
		case domain.ArtifactPDF:
			data, err = pg.PDF(ctx)
		case domain.ArtifactHTML:
			data = []byte(html)
		case domain.ArtifactWARC:
			data = BuildWARC(meta.URL, meta.Status, meta.Headers, []byte(html), res.Timestamp)
		default:
			record(kind, fmt.Errorf("unknown artifact kind"))
			continue
		}
		if err != nil {
			record(kind, err)
			continue
		}

		path, err := p.store.Write(req.URL, kind, data)
		if err != nil {
			record(kind, err)
			continue
		}
		res.Artifacts[kind] = path
	}
	return firstErr
}
