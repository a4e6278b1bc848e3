package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	t.Parallel()

	job := NewJob(JobTypeCapture, NewPayload(map[string]any{"url": "https://a.test/"}), 5, 3)
	require.NotEmpty(t, job.ID)
	require.Equal(t, DefaultQueue, job.Queue)
	require.Equal(t, JobStatusPending, job.Status)
	require.Equal(t, 5, job.Priority)
	require.Equal(t, 3, job.MaxAttempts)
	require.Zero(t, job.Attempts)
	require.True(t, job.AvailableAt.Equal(job.CreatedAt))
	require.Nil(t, job.LockedBy)

	other := NewJob(JobTypeCapture, nil, 0, 1)
	require.NotEqual(t, job.ID, other.ID)
}

func TestValidJobType(t *testing.T) {
	t.Parallel()

	require.True(t, ValidJobType(JobTypeCapture))
	require.True(t, ValidJobType(JobTypeScrape))
	require.False(t, ValidJobType(""))
	require.False(t, ValidJobType("transcode"))
}

func TestValidOutcome(t *testing.T) {
	t.Parallel()

	for _, r := range []string{
		OutcomeOK, OutcomeBlocked, OutcomeCaptcha, OutcomeTimeout,
		OutcomeRateLimited, OutcomeEmpty, OutcomeError,
	} {
		require.True(t, ValidOutcome(r), r)
	}
	require.False(t, ValidOutcome("mystery"))
}

func TestClassificationBlocked(t *testing.T) {
	t.Parallel()

	require.True(t, Classification{Result: OutcomeBlocked}.Blocked())
	require.True(t, Classification{Result: OutcomeCaptcha}.Blocked())
	require.True(t, Classification{Result: OutcomeRateLimited}.Blocked())
	require.False(t, Classification{Result: OutcomeOK}.Blocked())
	require.False(t, Classification{Result: OutcomeTimeout}.Blocked())
}

func TestDefaultCatalogIsValid(t *testing.T) {
	t.Parallel()

	catalog := DefaultCatalog()
	require.NotEmpty(t, catalog)

	seen := map[string]bool{}
	for _, cfg := range catalog {
		require.NotEmpty(t, cfg.ID)
		require.False(t, seen[cfg.ID], "duplicate id %s", cfg.ID)
		seen[cfg.ID] = true

		require.True(t, ValidHeadlessKind(cfg.HeadlessKind), cfg.ID)
		require.True(t, ValidWaitStrategy(cfg.WaitStrategy), cfg.ID)
		require.Positive(t, cfg.ViewportWidth, cfg.ID)
		require.Positive(t, cfg.ViewportHeight, cfg.ID)
		require.Positive(t, cfg.TimeoutMS, cfg.ID)
		require.NotEmpty(t, cfg.UserAgent, cfg.ID)
	}
}

func TestSuccessRate(t *testing.T) {
	t.Parallel()

	c := &BrowserConfig{}
	require.Zero(t, c.SuccessRate())

	c.Attempts = 4
	c.Successes = 3
	require.InDelta(t, 0.75, c.SuccessRate(), 1e-9)
}
