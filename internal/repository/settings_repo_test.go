//go:build !integration && !e2e
// +build !integration,!e2e

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/proxy-relay-go/internal/testutil"
)

func TestSettingsRepository_GetUnset(t *testing.T) {
	repo := NewSettingsRepository(testutil.NewTestDB(t))

	v, ok, err := repo.Get(context.Background(), "proxy.host")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestSettingsRepository_SetAndGet(t *testing.T) {
	repo := NewSettingsRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "proxy.host", "127.0.0.1"))
	require.NoError(t, repo.Set(ctx, "proxy.host", "0.0.0.0"))

	v, ok, err := repo.Get(ctx, "proxy.host")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0.0.0.0", v)
}

func TestSettingsRepository_GetInt(t *testing.T) {
	repo := NewSettingsRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	n, err := repo.GetInt(ctx, "proxy.port", 8080)
	require.NoError(t, err)
	assert.Equal(t, 8080, n)

	require.NoError(t, repo.Set(ctx, "proxy.port", "9090"))
	n, err = repo.GetInt(ctx, "proxy.port", 8080)
	require.NoError(t, err)
	assert.Equal(t, 9090, n)

	require.NoError(t, repo.Set(ctx, "proxy.port", "not-a-port"))
	n, err = repo.GetInt(ctx, "proxy.port", 8080)
	require.NoError(t, err)
	assert.Equal(t, 8080, n)
}

func TestSettingsRepository_SetManyAndAll(t *testing.T) {
	repo := NewSettingsRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SetMany(ctx, map[string]string{
		"proxy.host": "127.0.0.1",
		"proxy.port": "8081",
	}))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"proxy.host": "127.0.0.1", "proxy.port": "8081"}, all)
}

func TestSettingsRepository_Delete(t *testing.T) {
	repo := NewSettingsRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "relay.port", "5555"))
	require.NoError(t, repo.Delete(ctx, "relay.port"))
	require.NoError(t, repo.Delete(ctx, "relay.port"))

	_, ok, err := repo.Get(ctx, "relay.port")
	require.NoError(t, err)
	assert.False(t, ok)
}
