package providers

import (
	"context"
	"errors"
)

// ErrNotFound is returned by StateStore.Get when a key has never been
// written or its backing storage was cleared. Callers treat it as "first
// run" and fall back to defaults.
var ErrNotFound = errors.New("state key not found")

// StateStore is the persistent local store behind identity, queue and dedup
// state. Values are small opaque blobs written whole; there are no partial
// or incremental writes. Each key is independently readable and writable so
// the loss of any one degrades gracefully.
type StateStore interface {
	// Get retrieves the value for a key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes the value for a key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the store's resources.
	Close() error
}

// Persisted state keys.
const (
	KeyPrivacyMode  = "telemetry:privacy_mode"
	KeyDeviceID     = "telemetry:device_id"
	KeyInstallDate  = "telemetry:install_date"
	KeySessionID    = "telemetry:session_id"
	KeyAnonSeed     = "telemetry:anon_seed"
	KeySessionStart = "telemetry:session_start"
	KeyEventQueue   = "telemetry:event_queue"
	KeyDedupCache   = "telemetry:dedup_cache"
)
