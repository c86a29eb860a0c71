package testutil

import (
	"testing"

	"subtree-go/internal/database"
	"subtree-go/internal/database/migrations"
	"subtree-go/internal/subtree"
)

// NewTestStore creates an in-memory SQLite tree store with the schema
// applied. The store is automatically closed when the test completes.
func NewTestStore(t *testing.T, clock subtree.Clock, ids subtree.KeyGenerator) *database.SQLiteStore {
	t.Helper()

	store, err := database.NewSQLiteStore(":memory:", clock, ids)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := migrations.MigrateUp(store.DB()); err != nil {
		store.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})
	return store
}
