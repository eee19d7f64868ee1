package database

import (
	"database/sql"
	"testing"
)

// NewTestDB creates an in-memory sqlite database with the full schema.
// The cleanup function closes it.
func NewTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db, func() { db.Close() }
}
