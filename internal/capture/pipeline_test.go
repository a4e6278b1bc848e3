package capture

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/national-treasure/internal/behaviors"
	"github.com/jonesrussell/national-treasure/internal/browser"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
	"github.com/jonesrussell/national-treasure/internal/validator"
)

type fakePage struct {
	meta          *browser.ResponseMeta
	navErr        error
	title         string
	body          string
	html          string
	cookies       []string
	setCookies    []string
	screenshotErr error
	navDelay      time.Duration
	evaluated     int
	closed        bool
}

func (p *fakePage) Navigate(ctx context.Context, url, waitStrategy string, timeout time.Duration) (*browser.ResponseMeta, error) {
	if p.navDelay > 0 {
		select {
		case <-time.After(p.navDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.meta, p.navErr
}

func (p *fakePage) Title(ctx context.Context) (string, error) { return p.title, nil }

func (p *fakePage) BodyText(ctx context.Context, maxLen int) (string, error) {
	if len(p.body) > maxLen {
		return p.body[:maxLen], nil
	}
	return p.body, nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) { return p.html, nil }

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if p.screenshotErr != nil {
		return nil, p.screenshotErr
	}
	return []byte("png"), nil
}

func (p *fakePage) PDF(ctx context.Context) ([]byte, error) { return []byte("pdf"), nil }

func (p *fakePage) CookieNames(ctx context.Context) ([]string, error) { return p.cookies, nil }

func (p *fakePage) SetCookie(ctx context.Context, name, value, cookieDomain string) error {
	p.setCookies = append(p.setCookies, name)
	return nil
}

func (p *fakePage) Evaluate(ctx context.Context, script string, out any) error {
	p.evaluated++
	if n, ok := out.(*int); ok {
		*n = 1
	}
	return nil
}

func (p *fakePage) SendEscape(ctx context.Context) error { return nil }

func (p *fakePage) Close() { p.closed = true }

type fakeSession struct {
	page   *fakePage
	closed bool
}

func (s *fakeSession) NewPage() (Page, error) { return s.page, nil }
func (s *fakeSession) Close()                 { s.closed = true }

func fakeLauncher(s *fakeSession, err error) Launcher {
	return func(ctx context.Context, cfg *domain.BrowserConfig) (Session, error) {
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func newTestPipeline(t *testing.T, launcher Launcher, cfg Config) *Pipeline {
	t.Helper()
	log := logger.NewNoOp()
	return NewPipeline(cfg, launcher,
		validator.New(validator.Config{}, log),
		behaviors.NewRunner(behaviors.Config{}, log),
		NewArtifactStore(t.TempDir(), log),
		log)
}

func testConfig() *domain.BrowserConfig {
	return &domain.BrowserConfig{
		ID: "cfg-a", Name: "A", HeadlessKind: domain.HeadlessNew,
		ViewportWidth: 1920, ViewportHeight: 1080, UserAgent: "ua",
		Stealth: true, WaitStrategy: domain.WaitNetworkIdle, TimeoutMS: 30000,
	}
}

func okPage() *fakePage {
	return &fakePage{
		meta: &browser.ResponseMeta{
			Status:  200,
			URL:     "https://example.com/",
			Headers: map[string]string{"content-type": "text/html"},
		},
		title: "An Article",
		body:  strings.Repeat("lorem ipsum dolor sit amet ", 40),
		html:  "<html><body>article</body></html>",
	}
}

func TestPipelineSuccessfulCapture(t *testing.T) {
	t.Parallel()

	page := okPage()
	session := &fakeSession{page: page}
	p := newTestPipeline(t, fakeLauncher(session, nil), Config{})

	res, err := p.Run(context.Background(), Request{
		URL:       "https://example.com/",
		Config:    testConfig(),
		Artifacts: domain.AllArtifacts,
		Behaviors: true,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, domain.OutcomeOK, res.Validation.Result)
	require.Equal(t, 200, res.HTTPStatus)
	require.Equal(t, "An Article", res.PageTitle)
	require.Equal(t, len(page.html), res.ContentLength)
	require.NotNil(t, res.Behaviors)
	require.Len(t, res.Artifacts, len(domain.AllArtifacts))
	for _, path := range res.Artifacts {
		_, statErr := os.Stat(path)
		require.NoError(t, statErr)
	}
	require.True(t, page.closed)
	require.True(t, session.closed)
}

func TestPipelineBlockedPageSkipsBehaviors(t *testing.T) {
	t.Parallel()

	page := okPage()
	page.meta.Status = 403
	page.title = "Just a moment..."
	page.body = "Just a moment... checking your browser"
	session := &fakeSession{page: page}
	p := newTestPipeline(t, fakeLauncher(session, nil), Config{})

	res, err := p.Run(context.Background(), Request{
		URL:       "https://example.com/",
		Config:    testConfig(),
		Artifacts: []string{domain.ArtifactHTML},
		Behaviors: true,
	})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, domain.OutcomeBlocked, res.Validation.Result)
	require.Equal(t, domain.ServiceCloudflare, res.Validation.Service)

	// The blocked page is still archived as evidence, untouched.
	require.Nil(t, res.Behaviors)
	require.Zero(t, page.evaluated)
	require.Contains(t, res.Artifacts, domain.ArtifactHTML)
}

func TestPipelinePartialArtifactFailure(t *testing.T) {
	t.Parallel()

	page := okPage()
	page.screenshotErr = errors.New("tab crashed")
	session := &fakeSession{page: page}
	p := newTestPipeline(t, fakeLauncher(session, nil), Config{})

	res, err := p.Run(context.Background(), Request{
		URL:       "https://example.com/",
		Config:    testConfig(),
		Artifacts: []string{domain.ArtifactScreenshot, domain.ArtifactHTML},
	})
	require.Error(t, err)
	require.False(t, res.Success)

	// The failure of one artifact does not stop the others.
	require.NotContains(t, res.Artifacts, domain.ArtifactScreenshot)
	require.Contains(t, res.Artifacts, domain.ArtifactHTML)
}

func TestPipelineNoResponseIsError(t *testing.T) {
	t.Parallel()

	page := okPage()
	page.meta = nil
	session := &fakeSession{page: page}
	p := newTestPipeline(t, fakeLauncher(session, nil), Config{})

	res, err := p.Run(context.Background(), Request{
		URL: "https://example.com/", Config: testConfig(),
	})
	require.Error(t, err)
	require.False(t, res.Success)
	require.Equal(t, domain.OutcomeError, res.Validation.Result)
}

func TestPipelineNavigationTimeout(t *testing.T) {
	t.Parallel()

	page := okPage()
	page.navDelay = time.Second
	session := &fakeSession{page: page}
	p := newTestPipeline(t, fakeLauncher(session, nil), Config{
		OverallTimeout: 50 * time.Millisecond,
	})

	cfg := testConfig()
	cfg.TimeoutMS = 30000
	res, err := p.Run(context.Background(), Request{
		URL: "https://example.com/", Config: cfg,
	})
	require.Error(t, err)
	require.False(t, res.Success)
	require.Equal(t, domain.OutcomeTimeout, res.Validation.Result)
}

func TestPipelineSessionFailure(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, fakeLauncher(nil, errors.New("chrome not found")), Config{})

	res, err := p.Run(context.Background(), Request{
		URL: "https://example.com/", Config: testConfig(),
	})
	require.Error(t, err)
	require.False(t, res.Success)
	require.Equal(t, domain.OutcomeError, res.Validation.Result)
	require.Contains(t, res.Error, "chrome not found")
}

func TestPipelineInjectsCookies(t *testing.T) {
	t.Parallel()

	page := okPage()
	session := &fakeSession{page: page}
	p := newTestPipeline(t, fakeLauncher(session, nil), Config{})

	_, err := p.Run(context.Background(), Request{
		URL:    "https://example.com/",
		Config: testConfig(),
		Cookies: []Cookie{
			{Name: "session", Value: "abc", Domain: "example.com"},
			{Name: "consent", Value: "1", Domain: "example.com"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"session", "consent"}, page.setCookies)
}
