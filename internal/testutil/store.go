package testutil

import (
	"testing"

	"hindsight/internal/core"
	"hindsight/internal/store"
	"hindsight/internal/store/migrations"
)

// NewTestStore creates an in-memory SQLite store with the schema applied.
// The store is closed automatically when the test completes.
func NewTestStore(t *testing.T, clock core.Clock) *store.SQLiteStore {
	t.Helper()

	sqlDB, err := store.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if err := migrations.Up(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	s := store.NewSQLiteStoreFromDB(sqlDB, clock)

	t.Cleanup(func() {
		s.Close()
	})

	return s
}
