package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborapp/telemetry/internal/adapters/storage"
	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/providers"
)

func TestStableProvider_CreatesAndPersistsIdentity(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	provider := NewStableProvider(store)

	first, err := provider.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.ModeDefault, first.Mode)
	assert.NotEmpty(t, first.DeviceID)
	assert.NotEmpty(t, first.SessionID)
	assert.Empty(t, first.UserID)

	// Cached on second call.
	second, err := provider.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Install date was persisted alongside.
	_, err = store.Get(ctx, providers.KeyInstallDate)
	assert.NoError(t, err)
}

func TestStableProvider_IdentitySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first, err := NewStableProvider(store).Identity(ctx)
	require.NoError(t, err)

	// A fresh provider over the same store simulates a process restart.
	second, err := NewStableProvider(store).Identity(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.DeviceID, second.DeviceID)
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestStableProvider_RefreshSessionReplacesOnlySession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	provider := NewStableProvider(store)

	before, err := provider.Identity(ctx)
	require.NoError(t, err)

	require.NoError(t, provider.RefreshSession(ctx))

	after, err := provider.Identity(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before.SessionID, after.SessionID)
	assert.Equal(t, before.DeviceID, after.DeviceID)

	// The new session id was persisted.
	value, err := store.Get(ctx, providers.KeySessionID)
	require.NoError(t, err)
	assert.Equal(t, after.SessionID, string(value))
}

func TestStableProvider_UserBinding(t *testing.T) {
	ctx := context.Background()
	provider := NewStableProvider(storage.NewMemoryStore())

	require.NoError(t, provider.SetUserID(ctx, "user-42"))
	identity, err := provider.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-42", identity.UserID)

	require.NoError(t, provider.ClearUserID(ctx))
	identity, err = provider.Identity(ctx)
	require.NoError(t, err)
	assert.Empty(t, identity.UserID)

	// The user id is never persisted.
	restarted, err := NewStableProvider(provider.store).Identity(ctx)
	require.NoError(t, err)
	assert.Empty(t, restarted.UserID)
}
