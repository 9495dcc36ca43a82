package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborapp/telemetry/internal/adapters/storage"
	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/providers"
)

func TestPrivacyProvider_AnonIDStableWithinDay(t *testing.T) {
	ctx := context.Background()
	provider := NewPrivacyProvider(storage.NewMemoryStore())
	provider.now = func() time.Time { return time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC) }

	first, err := provider.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.ModePrivacy, first.Mode)
	assert.Len(t, first.AnonID, anonIDLength)
	assert.Empty(t, first.UserID)
	assert.Empty(t, first.DeviceID)

	provider.now = func() time.Time { return time.Date(2026, 7, 1, 23, 59, 0, 0, time.UTC) }
	later, err := provider.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.AnonID, later.AnonID)
	assert.Equal(t, first.SessionID, later.SessionID)
}

func TestPrivacyProvider_AnonIDRotatesDaily(t *testing.T) {
	ctx := context.Background()
	provider := NewPrivacyProvider(storage.NewMemoryStore())
	provider.now = func() time.Time { return time.Date(2026, 7, 1, 23, 0, 0, 0, time.UTC) }

	before, err := provider.Identity(ctx)
	require.NoError(t, err)

	provider.now = func() time.Time { return time.Date(2026, 7, 2, 1, 0, 0, 0, time.UTC) }
	after, err := provider.Identity(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, before.AnonID, after.AnonID)
	// The session does not rotate with the date; only RefreshSession and
	// process restarts bound sessions.
	assert.Equal(t, before.SessionID, after.SessionID)
}

func TestPrivacyProvider_AnonIDStableAcrossRestartSameDay(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	day := func() time.Time { return time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC) }

	first := NewPrivacyProvider(store)
	first.now = day
	a, err := first.Identity(ctx)
	require.NoError(t, err)

	second := NewPrivacyProvider(store)
	second.now = day
	b, err := second.Identity(ctx)
	require.NoError(t, err)

	// Same persisted seed, same date: same pseudonymous id.
	assert.Equal(t, a.AnonID, b.AnonID)
	// The session id lives only in memory, so a restart is a new session.
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestPrivacyProvider_SessionNeverPersisted(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	provider := NewPrivacyProvider(store)

	_, err := provider.Identity(ctx)
	require.NoError(t, err)
	require.NoError(t, provider.RefreshSession(ctx))

	_, err = store.Get(ctx, providers.KeySessionID)
	assert.ErrorIs(t, err, providers.ErrNotFound)
}

func TestPrivacyProvider_RefreshSession(t *testing.T) {
	ctx := context.Background()
	provider := NewPrivacyProvider(storage.NewMemoryStore())

	before, err := provider.Identity(ctx)
	require.NoError(t, err)

	require.NoError(t, provider.RefreshSession(ctx))

	after, err := provider.Identity(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before.SessionID, after.SessionID)
	assert.Equal(t, before.AnonID, after.AnonID)
}

func TestNewProvider_Factory(t *testing.T) {
	store := storage.NewMemoryStore()
	assert.Equal(t, entities.ModePrivacy, NewProvider(entities.ModePrivacy, store).Mode())
	assert.Equal(t, entities.ModeDefault, NewProvider(entities.ModeDefault, store).Mode())
}
