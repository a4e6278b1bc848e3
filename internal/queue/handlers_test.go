package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/national-treasure/internal/behaviors"
	"github.com/jonesrussell/national-treasure/internal/browser"
	"github.com/jonesrussell/national-treasure/internal/capture"
	"github.com/jonesrussell/national-treasure/internal/database"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/learning"
	"github.com/jonesrussell/national-treasure/internal/logger"
	"github.com/jonesrussell/national-treasure/internal/validator"
)

// stubPage serves a healthy document without a browser.
type stubPage struct{}

func (p *stubPage) Navigate(ctx context.Context, url, waitStrategy string, timeout time.Duration) (*browser.ResponseMeta, error) {
	return &browser.ResponseMeta{Status: 200, URL: url, Headers: map[string]string{}}, nil
}
func (p *stubPage) Title(ctx context.Context) (string, error) { return "Fine Page", nil }
func (p *stubPage) BodyText(ctx context.Context, maxLen int) (string, error) {
	return "plenty of ordinary readable content", nil
}
func (p *stubPage) HTML(ctx context.Context) (string, error) {
	return "<html><body>plenty of ordinary readable content</body></html>", nil
}
func (p *stubPage) Screenshot(ctx context.Context) ([]byte, error) { return []byte{0x89}, nil }
func (p *stubPage) PDF(ctx context.Context) ([]byte, error)        { return []byte("%PDF"), nil }
func (p *stubPage) CookieNames(ctx context.Context) ([]string, error) {
	return nil, nil
}
func (p *stubPage) SetCookie(ctx context.Context, name, value, cookieDomain string) error {
	return nil
}
func (p *stubPage) Evaluate(ctx context.Context, script string, out any) error { return nil }
func (p *stubPage) SendEscape(ctx context.Context) error                       { return nil }
func (p *stubPage) Close()                                                     {}

type stubSession struct{}

func (s *stubSession) NewPage() (capture.Page, error) { return &stubPage{}, nil }
func (s *stubSession) Close()                         {}

func TestCaptureOnceRecordsOutcome(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := logger.NewNoOp()

	dbCfg := database.DefaultConfig()
	dbCfg.Path = filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(ctx, dbCfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	configs := database.NewConfigRepository(db, log)
	require.NoError(t, configs.Seed(ctx, domain.DefaultCatalog()))
	outcomes := database.NewOutcomeRepository(db, log)
	domains := database.NewDomainRepository(db, log)
	learner := learning.New(learning.DefaultConfig(), configs, outcomes, domains, log)

	launcher := func(ctx context.Context, cfg *domain.BrowserConfig) (capture.Session, error) {
		return &stubSession{}, nil
	}
	pipeline := capture.NewPipeline(capture.Config{},
		launcher, validator.New(validator.Config{}, log),
		behaviors.NewRunner(behaviors.Config{}, log),
		capture.NewArtifactStore(t.TempDir(), log), log)

	res, err := CaptureOnce(ctx, learner, pipeline, log, capture.Request{
		URL:       "https://a.test/page",
		Artifacts: []string{domain.ArtifactHTML},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Contains(t, res.Artifacts, domain.ArtifactHTML)

	// The capture fed the learner: one outcome, one domain sample.
	recent, err := outcomes.RecentByDomain(ctx, "a.test", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, domain.OutcomeOK, recent[0].Result)
	require.NotEmpty(t, recent[0].ConfigID)

	rec, err := domains.Get(ctx, "a.test")
	require.NoError(t, err)
	require.Equal(t, 1, rec.SampleCount)
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	host, err := hostOf("https://news.example.com/article?id=1")
	require.NoError(t, err)
	require.Equal(t, "news.example.com", host)

	for _, raw := range []string{"", "not a url", "/relative/path", "https://"} {
		_, err := hostOf(raw)
		require.ErrorIs(t, err, ErrInvalidInput, raw)
	}
}

func TestOutcomeFrom(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 24, 14, 30, 0, 0, time.UTC)
	res := &domain.CaptureResult{
		URL:       "https://a.test/page",
		Timestamp: at,
		Validation: domain.Classification{
			Result:  domain.OutcomeBlocked,
			Service: domain.ServiceCloudflare,
		},
		HTTPStatus:    403,
		PageTitle:     "Just a moment...",
		ContentLength: 1234,
		DurationMS:    2500,
	}

	o := outcomeFrom("a.test", "https://a.test/page", "cfg-a", res)
	require.Equal(t, "a.test", o.Domain)
	require.Equal(t, "cfg-a", o.ConfigID)
	require.Equal(t, domain.OutcomeBlocked, o.Result)
	require.NotNil(t, o.BlockService)
	require.Equal(t, domain.ServiceCloudflare, *o.BlockService)
	require.NotNil(t, o.HTTPStatus)
	require.Equal(t, 403, *o.HTTPStatus)
	require.NotNil(t, o.PageTitle)
	require.Equal(t, 14, o.Hour)
	require.Equal(t, int(time.Monday), o.Weekday)
	require.Equal(t, 2500, o.ResponseMS)
	require.False(t, o.Success())
}

func TestOutcomeFromOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	res := &domain.CaptureResult{
		URL:        "https://a.test/",
		Timestamp:  time.Now().UTC(),
		Validation: domain.Classification{Result: domain.OutcomeOK},
	}

	o := outcomeFrom("a.test", "https://a.test/", "cfg-a", res)
	require.Nil(t, o.BlockService)
	require.Nil(t, o.HTTPStatus)
	require.Nil(t, o.PageTitle)
	require.True(t, o.Success())
}
