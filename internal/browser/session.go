// Package browser provides scoped Chrome sessions and page handles over
// the DevTools protocol.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

// Session owns one browser process launched under a configuration. It is
// single-consumer; concurrent jobs each get their own session.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	cfg         *domain.BrowserConfig
	logger      logger.Interface
}

// NewSession launches a browser configured by cfg. Close must be called on
// every exit path.
func NewSession(ctx context.Context, cfg *domain.BrowserConfig, log logger.Interface) (*Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, headlessOption(cfg.HeadlessKind))
	opts = append(opts,
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.Stealth {
		opts = append(opts, stealthFlags()...)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	log.Debug("Browser session launched",
		"config_id", cfg.ID, "headless", cfg.HeadlessKind, "stealth", cfg.Stealth)
	return &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		cfg:         cfg,
		logger:      log,
	}, nil
}

// headlessOption maps a configuration's headless kind to a launch flag.
func headlessOption(kind string) chromedp.ExecAllocatorOption {
	switch kind {
	case domain.HeadlessShell:
		return chromedp.Flag("headless", "shell")
	case domain.HeadlessLegacy:
		return chromedp.Flag("headless", "old")
	case domain.HeadlessVisible:
		return chromedp.Flag("headless", false)
	}
	return chromedp.Flag("headless", "new")
}

// NewPage opens a tab in the session. The returned page must be closed
// before the session is.
func (s *Session) NewPage() (*Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.allocCtx)

	p := &Page{
		ctx:     tabCtx,
		cancel:  tabCancel,
		stealth: s.cfg.Stealth,
		logger:  s.logger,
	}
	p.listen()

	// Materialize the tab now so launch failures surface here, not on
	// first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return p, nil
}

// Close shuts the browser down and releases the process.
func (s *Session) Close() {
	s.allocCancel()
	s.logger.Debug("Browser session closed", "config_id", s.cfg.ID)
}
