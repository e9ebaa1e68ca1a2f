package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteTimelineStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "timelines.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteTimelineStore(t *testing.T) {
	runStoreSuite(t, newSQLiteStore(t))
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	store := newSQLiteStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}
