// Package testutil provides test helpers shared across packages.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/proxy-relay-go/internal/database"
	"go.uber.org/zap"
)

// NewTestDB creates an in-memory SQLite database with the full schema.
// The database is automatically closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(":memory:")
	require.NoError(t, err, "failed to open test database")

	t.Cleanup(func() {
		db.Close()
	})

	err = database.RunMigrations(context.Background(), db, zap.NewNop())
	require.NoError(t, err, "failed to create schema")

	return db
}
