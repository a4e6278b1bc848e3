package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

func TestUpsertPreservesTallies(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := seedConfigs(t, db)
	ctx := context.Background()

	outcomes := NewOutcomeRepository(db, logger.NewNoOp())
	require.NoError(t, outcomes.Record(ctx,
		testOutcome("a.test", "cfg-a", domain.OutcomeOK, time.Now().UTC())))

	// Redefining the config must not touch its lifetime tallies.
	require.NoError(t, repo.Upsert(ctx, &domain.BrowserConfig{
		ID: "cfg-a", Name: "A v2", HeadlessKind: domain.HeadlessShell,
		ViewportWidth: 1280, ViewportHeight: 720,
		UserAgent: "ua2", Stealth: false,
		WaitStrategy: domain.WaitLoad, TimeoutMS: 10000,
	}))

	cfg, err := repo.GetByID(ctx, "cfg-a")
	require.NoError(t, err)
	require.Equal(t, "A v2", cfg.Name)
	require.Equal(t, domain.HeadlessShell, cfg.HeadlessKind)
	require.Equal(t, 1, cfg.Attempts)
	require.Equal(t, 1, cfg.Successes)
}

func TestUpsertRejectsInvalidEnums(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewConfigRepository(db, logger.NewNoOp())
	ctx := context.Background()

	bad := &domain.BrowserConfig{
		ID: "cfg-x", Name: "X", HeadlessKind: "translucent",
		ViewportWidth: 1, ViewportHeight: 1, UserAgent: "ua",
		WaitStrategy: domain.WaitLoad, TimeoutMS: 1000,
	}
	require.Error(t, repo.Upsert(ctx, bad))

	bad.HeadlessKind = domain.HeadlessNew
	bad.WaitStrategy = "psychic"
	require.Error(t, repo.Upsert(ctx, bad))
}

func TestSeedSkipsExisting(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := seedConfigs(t, db)
	ctx := context.Background()

	outcomes := NewOutcomeRepository(db, logger.NewNoOp())
	require.NoError(t, outcomes.Record(ctx,
		testOutcome("a.test", "cfg-a", domain.OutcomeBlocked, time.Now().UTC())))

	// Seeding again with a changed definition leaves the stored row alone.
	require.NoError(t, repo.Seed(ctx, []domain.BrowserConfig{
		{
			ID: "cfg-a", Name: "renamed", HeadlessKind: domain.HeadlessVisible,
			ViewportWidth: 800, ViewportHeight: 600,
			UserAgent: "ua", Stealth: true,
			WaitStrategy: domain.WaitDOMContentLoaded, TimeoutMS: 5000,
		},
	}))

	cfg, err := repo.GetByID(ctx, "cfg-a")
	require.NoError(t, err)
	require.Equal(t, "A", cfg.Name)
	require.Equal(t, 1, cfg.Attempts)
	require.NotNil(t, cfg.LastFailure)
}

func TestGetByIDNotFound(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewConfigRepository(db, logger.NewNoOp())

	_, err := repo.GetByID(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersByID(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := seedConfigs(t, db)

	configs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, configs, 2)
	require.Equal(t, "cfg-a", configs[0].ID)
	require.Equal(t, "cfg-b", configs[1].ID)
}
