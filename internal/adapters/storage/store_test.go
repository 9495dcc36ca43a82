package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborapp/telemetry/internal/adapters/storage"
	"github.com/harborapp/telemetry/internal/domain/providers"
	"github.com/harborapp/telemetry/pkg/config"
)

// Every backend must satisfy the same contract: whole-value round trips,
// ErrNotFound for missing keys, and idempotent deletes.
func TestStateStoreContract(t *testing.T) {
	backends := []struct {
		name string
		open func(t *testing.T) providers.StateStore
	}{
		{
			name: "file",
			open: func(t *testing.T) providers.StateStore {
				store, err := storage.NewFileStore(t.TempDir())
				require.NoError(t, err)
				return store
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) providers.StateStore {
				store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
				require.NoError(t, err)
				return store
			},
		},
		{
			name: "memory",
			open: func(t *testing.T) providers.StateStore {
				return storage.NewMemoryStore()
			},
		},
	}

	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			store := backend.open(t)
			defer store.Close()

			t.Run("missing key returns ErrNotFound", func(t *testing.T) {
				_, err := store.Get(ctx, providers.KeyDeviceID)
				assert.ErrorIs(t, err, providers.ErrNotFound)
			})

			t.Run("round trip", func(t *testing.T) {
				require.NoError(t, store.Set(ctx, providers.KeyEventQueue, []byte(`[{"a":1}]`)))
				value, err := store.Get(ctx, providers.KeyEventQueue)
				require.NoError(t, err)
				assert.Equal(t, []byte(`[{"a":1}]`), value)
			})

			t.Run("overwrite replaces whole value", func(t *testing.T) {
				require.NoError(t, store.Set(ctx, providers.KeyEventQueue, []byte(`[]`)))
				value, err := store.Get(ctx, providers.KeyEventQueue)
				require.NoError(t, err)
				assert.Equal(t, []byte(`[]`), value)
			})

			t.Run("keys are independent", func(t *testing.T) {
				require.NoError(t, store.Set(ctx, providers.KeyPrivacyMode, []byte("true")))
				require.NoError(t, store.Delete(ctx, providers.KeyEventQueue))

				_, err := store.Get(ctx, providers.KeyEventQueue)
				assert.ErrorIs(t, err, providers.ErrNotFound)

				value, err := store.Get(ctx, providers.KeyPrivacyMode)
				require.NoError(t, err)
				assert.Equal(t, []byte("true"), value)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				assert.NoError(t, store.Delete(ctx, "never-written"))
			})
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, providers.KeyDeviceID, []byte("device-1")))
	require.NoError(t, store.Close())

	reopened, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(ctx, providers.KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, []byte("device-1"), value)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := storage.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, providers.KeyAnonSeed, []byte{1, 2, 3}))
	require.NoError(t, store.Close())

	reopened, err := storage.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(ctx, providers.KeyAnonSeed)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, value)
}

func TestNewStateStore_RejectsUnknownBackend(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: "carrier-pigeon"}}
	_, err := storage.NewStateStore(cfg)
	assert.Error(t, err)
}

func TestNewStateStore_SQLiteRequiresPath(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.StoreBackendSQLite}}
	_, err := storage.NewStateStore(cfg)
	assert.Error(t, err)
}
