package learning

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/national-treasure/internal/database"
	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

type learnerFixture struct {
	learner  *Learner
	configs  *database.ConfigRepository
	outcomes *database.OutcomeRepository
	domains  *database.DomainRepository
}

func newLearnerFixture(t *testing.T) *learnerFixture {
	t.Helper()
	dbCfg := database.DefaultConfig()
	dbCfg.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(context.Background(), dbCfg, logger.NewNoOp())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewNoOp()
	f := &learnerFixture{
		configs:  database.NewConfigRepository(db, log),
		outcomes: database.NewOutcomeRepository(db, log),
		domains:  database.NewDomainRepository(db, log),
	}
	f.learner = New(DefaultConfig(), f.configs, f.outcomes, f.domains, log)
	f.learner.sampler = NewSampler(42, 0.1, 10)

	require.NoError(t, f.configs.Seed(context.Background(), []domain.BrowserConfig{
		{
			ID: "cfg-a", Name: "A", HeadlessKind: domain.HeadlessNew,
			ViewportWidth: 1920, ViewportHeight: 1080, UserAgent: "ua",
			Stealth: true, WaitStrategy: domain.WaitNetworkIdle, TimeoutMS: 30000,
		},
		{
			ID: "cfg-b", Name: "B", HeadlessKind: domain.HeadlessShell,
			ViewportWidth: 1366, ViewportHeight: 768, UserAgent: "ua",
			Stealth: false, WaitStrategy: domain.WaitLoad, TimeoutMS: 15000,
		},
	}))
	return f
}

func (f *learnerFixture) record(t *testing.T, domainName, configID, result string, at time.Time) {
	t.Helper()
	err := f.learner.Record(context.Background(), &domain.Outcome{
		Timestamp: at,
		Domain:    domainName,
		URL:       "https://" + domainName + "/",
		ConfigID:  configID,
		Result:    result,
		Hour:      at.Hour(),
		Weekday:   int(at.Weekday()),
	})
	require.NoError(t, err)
}

func TestSelectUsesHistory(t *testing.T) {
	t.Parallel()
	f := newLearnerFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 20; i++ {
		f.record(t, "a.test", "cfg-a", domain.OutcomeOK, now.Add(-time.Duration(i)*time.Minute))
		f.record(t, "a.test", "cfg-b", domain.OutcomeBlocked, now.Add(-time.Duration(i)*time.Minute))
	}

	wins := 0
	for i := 0; i < 100; i++ {
		cfg, err := f.learner.Select(ctx, "a.test")
		require.NoError(t, err)
		if cfg.ID == "cfg-a" {
			wins++
		}
	}
	require.Greater(t, wins, 90)
}

func TestColdStartAdoptsConfidentNeighbor(t *testing.T) {
	t.Parallel()
	f := newLearnerFixture(t)
	ctx := context.Background()

	best := "cfg-b"
	now := time.Now().UTC()
	require.NoError(t, f.domains.Upsert(ctx, &domain.DomainRecord{
		Domain: "neighbor.test", BestConfigID: &best, Confidence: 0.85,
		MinDelayMS: 1000, MaxPerMinute: 10,
		FirstSeen: now, LastUpdated: now, SampleCount: 40,
	}))
	require.NoError(t, f.domains.AddSimilarity(ctx, domain.Similarity{
		DomainA: "fresh.test", DomainB: "neighbor.test",
		Kind: domain.SimilarityTechnology, Weight: 0.9,
	}))

	cfg, err := f.learner.Select(ctx, "fresh.test")
	require.NoError(t, err)
	require.Equal(t, "cfg-b", cfg.ID)
}

func TestColdStartSkipsUnconfidentNeighbor(t *testing.T) {
	t.Parallel()
	f := newLearnerFixture(t)
	ctx := context.Background()

	best := "cfg-b"
	now := time.Now().UTC()
	require.NoError(t, f.domains.Upsert(ctx, &domain.DomainRecord{
		Domain: "neighbor.test", BestConfigID: &best, Confidence: 0.4,
		MinDelayMS: 1000, MaxPerMinute: 10,
		FirstSeen: now, LastUpdated: now, SampleCount: 5,
	}))
	require.NoError(t, f.domains.AddSimilarity(ctx, domain.Similarity{
		DomainA: "fresh.test", DomainB: "neighbor.test",
		Kind: domain.SimilarityTLD, Weight: 0.9,
	}))

	// cfg-a has the only lifetime record, so the global fallback picks it.
	f.record(t, "other.test", "cfg-a", domain.OutcomeOK, now)

	cfg, err := f.learner.Select(ctx, "fresh.test")
	require.NoError(t, err)
	require.Equal(t, "cfg-a", cfg.ID)
}

func TestColdStartFallsBackToGlobalBest(t *testing.T) {
	t.Parallel()
	f := newLearnerFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	f.record(t, "other.test", "cfg-b", domain.OutcomeOK, now)
	f.record(t, "other.test", "cfg-a", domain.OutcomeBlocked, now)

	cfg, err := f.learner.Select(ctx, "fresh.test")
	require.NoError(t, err)
	require.Equal(t, "cfg-b", cfg.ID)
}

func TestColdStartFreshCatalog(t *testing.T) {
	t.Parallel()
	f := newLearnerFixture(t)

	cfg, err := f.learner.Select(context.Background(), "fresh.test")
	require.NoError(t, err)
	require.Equal(t, "cfg-a", cfg.ID)
}

func TestRecordPromotesBestConfig(t *testing.T) {
	t.Parallel()
	f := newLearnerFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 12; i++ {
		f.record(t, "a.test", "cfg-a", domain.OutcomeOK, now.Add(-time.Duration(i)*time.Minute))
	}
	for i := 0; i < 12; i++ {
		f.record(t, "a.test", "cfg-b", domain.OutcomeBlocked, now.Add(-time.Duration(i)*time.Minute))
	}

	rec, err := f.domains.Get(ctx, "a.test")
	require.NoError(t, err)
	require.NotNil(t, rec.BestConfigID)
	require.Equal(t, "cfg-a", *rec.BestConfigID)

	// Confidence is the promoted arm's posterior mean, below 1 by design
	// of the Beta prior.
	require.Greater(t, rec.Confidence, 0.8)
	require.Less(t, rec.Confidence, 1.0)
}

func TestRecordBelowPromoteThresholdLeavesBestUnset(t *testing.T) {
	t.Parallel()
	f := newLearnerFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		f.record(t, "a.test", "cfg-a", domain.OutcomeOK, now.Add(-time.Duration(i)*time.Minute))
	}

	rec, err := f.domains.Get(ctx, "a.test")
	require.NoError(t, err)
	require.Nil(t, rec.BestConfigID)
}

func TestShouldWaitUnknownDomain(t *testing.T) {
	t.Parallel()
	f := newLearnerFixture(t)

	wait, err := f.learner.ShouldWait(context.Background(), "never-seen.test")
	require.NoError(t, err)
	require.Zero(t, wait)
}

func TestShouldWaitHonorsMinDelay(t *testing.T) {
	t.Parallel()
	f := newLearnerFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	f.learner.now = func() time.Time { return now }
	f.record(t, "a.test", "cfg-a", domain.OutcomeOK, now.Add(-200*time.Millisecond))

	wait, err := f.learner.ShouldWait(ctx, "a.test")
	require.NoError(t, err)

	// Default min delay is one second, 200ms have passed.
	require.InDelta(t, 800, wait.Milliseconds(), 50)
}

func TestShouldWaitHonorsPerMinuteCap(t *testing.T) {
	t.Parallel()
	f := newLearnerFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	f.learner.now = func() time.Time { return now }
	for i := 0; i < domain.DefaultMaxPerMinute; i++ {
		f.record(t, "a.test", "cfg-a", domain.OutcomeOK, now.Add(-time.Duration(i+2)*time.Second))
	}

	wait, err := f.learner.ShouldWait(ctx, "a.test")
	require.NoError(t, err)
	require.Equal(t, time.Minute, wait)
}

func TestDriftReportsSignals(t *testing.T) {
	t.Parallel()
	f := newLearnerFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 40; i++ {
		f.record(t, "a.test", "cfg-a", domain.OutcomeOK, now.Add(-time.Duration(40-i)*time.Minute))
	}
	for i := 0; i < 10; i++ {
		o := &domain.Outcome{
			Timestamp:    now.Add(-time.Duration(10-i) * time.Second),
			Domain:       "a.test",
			URL:          "https://a.test/",
			ConfigID:     "cfg-a",
			Result:       domain.OutcomeBlocked,
			BlockService: ptr(domain.ServiceCloudflare),
		}
		require.NoError(t, f.learner.Record(ctx, o))
	}

	signals, err := f.learner.Drift(ctx, "a.test")
	require.NoError(t, err)
	require.Contains(t, signals, SignalDrift)
	require.Contains(t, signals, SignalNewBlock)
}

func ptr[T any](v T) *T { return &v }
