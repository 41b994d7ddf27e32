//go:build !integration && !e2e
// +build !integration,!e2e

package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "proxy-relay.db")

	db, err := New(path)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, path)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, db, zap.NewNop()))
	require.NoError(t, RunMigrations(ctx, db, zap.NewNop()))

	var applied int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)

	_, err = db.ExecContext(ctx, "INSERT INTO settings (key, value) VALUES ('proxy.port', '9090')")
	require.NoError(t, err)
}

func TestLoadMigrations_SortedByVersion(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "settings", migrations[0].Name)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}
