package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

// newTestDB opens a throwaway database in a temp dir.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := Open(context.Background(), cfg, logger.NewNoOp())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedConfigs installs two configurations used across tests.
func seedConfigs(t *testing.T, db *sqlx.DB) *ConfigRepository {
	t.Helper()
	repo := NewConfigRepository(db, logger.NewNoOp())
	err := repo.Seed(context.Background(), []domain.BrowserConfig{
		{
			ID: "cfg-a", Name: "A", HeadlessKind: domain.HeadlessNew,
			ViewportWidth: 1920, ViewportHeight: 1080,
			UserAgent: "ua", Stealth: true,
			WaitStrategy: domain.WaitNetworkIdle, TimeoutMS: 30000,
		},
		{
			ID: "cfg-b", Name: "B", HeadlessKind: domain.HeadlessShell,
			ViewportWidth: 1366, ViewportHeight: 768,
			UserAgent: "ua", Stealth: false,
			WaitStrategy: domain.WaitLoad, TimeoutMS: 15000,
		},
	})
	require.NoError(t, err)
	return repo
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, Migrate(context.Background(), db))

	var version int
	require.NoError(t, db.Get(&version, "SELECT version FROM schema_meta"))
	require.Equal(t, SchemaVersion, version)
}

func TestMigrateRejectsNewerSchema(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	_, err := db.Exec("UPDATE schema_meta SET version = ?", SchemaVersion+1)
	require.NoError(t, err)

	err = Migrate(context.Background(), db)
	require.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestTimeRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 24, 10, 30, 0, 500_000_000, time.UTC)
	parsed, err := parseTime(fmtTime(at))
	require.NoError(t, err)
	require.True(t, parsed.Equal(at))
}

func TestTimeFormatPreservesOrdering(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(120 * time.Millisecond),
		base.Add(500 * time.Millisecond),
		base.Add(520 * time.Millisecond),
		base.Add(time.Second),
	}
	for i := 1; i < len(times); i++ {
		require.Less(t, fmtTime(times[i-1]), fmtTime(times[i]))
	}
}
