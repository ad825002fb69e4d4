package testutil

import (
	"testing"

	"cdl-sync/internal/cdl"
	"cdl-sync/internal/database"
)

// NewTestDatabase creates a new in-memory SQLite run history with schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) cdl.RunHistory {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
