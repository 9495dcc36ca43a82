package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/providers"
	"github.com/harborapp/telemetry/internal/infrastructure/observability"
	apperrors "github.com/harborapp/telemetry/pkg/errors"
)

// StableProvider implements IdentityProvider with persistent identifiers.
// The device id and install date are created once and kept for the life of
// the install; the session id persists across restarts until RefreshSession
// replaces it. The user id is bound at runtime by the host's authentication
// layer and is never persisted here.
type StableProvider struct {
	store  providers.StateStore
	logger zerolog.Logger

	mu       sync.Mutex
	loaded   bool
	deviceID string
	session  string
	userID   string
}

// NewStableProvider creates a stable identity provider over the given store.
func NewStableProvider(store providers.StateStore) *StableProvider {
	return &StableProvider{
		store:  store,
		logger: observability.ComponentLogger("identity.stable"),
	}
}

// Mode implements IdentityProvider.
func (p *StableProvider) Mode() entities.Mode {
	return entities.ModeDefault
}

// Identity returns the current identity, lazily creating and persisting the
// device id, install date and session id on first call.
func (p *StableProvider) Identity(ctx context.Context) (entities.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		if err := p.load(ctx); err != nil {
			return entities.Identity{}, err
		}
		p.loaded = true
	}

	return entities.Identity{
		Mode:      entities.ModeDefault,
		SessionID: p.session,
		UserID:    p.userID,
		DeviceID:  p.deviceID,
	}, nil
}

// RefreshSession regenerates and persists the session id. Device id and
// install date are untouched.
func (p *StableProvider) RefreshSession(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	session := uuid.New().String()
	if err := p.store.Set(ctx, providers.KeySessionID, []byte(session)); err != nil {
		return apperrors.NewIdentityError("failed to persist session id", err)
	}
	p.session = session
	p.logger.Debug().Msg("session refreshed")
	return nil
}

// SetUserID binds the authenticated user id. Invoked by the host's auth
// collaborator on sign-in.
func (p *StableProvider) SetUserID(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userID = userID
	return nil
}

// ClearUserID removes the bound user id. Invoked on sign-out.
func (p *StableProvider) ClearUserID(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userID = ""
	return nil
}

// load reads or creates the persistent identity fields. Any unreadable key
// is treated as a first run for that key alone.
func (p *StableProvider) load(ctx context.Context) error {
	deviceID, err := p.loadOrCreate(ctx, providers.KeyDeviceID, func() string {
		return uuid.New().String()
	})
	if err != nil {
		return err
	}
	p.deviceID = deviceID

	if _, err := p.loadOrCreate(ctx, providers.KeyInstallDate, func() string {
		return time.Now().UTC().Format(time.RFC3339)
	}); err != nil {
		return err
	}

	session, err := p.loadOrCreate(ctx, providers.KeySessionID, func() string {
		return uuid.New().String()
	})
	if err != nil {
		return err
	}
	p.session = session

	return nil
}

func (p *StableProvider) loadOrCreate(ctx context.Context, key string, generate func() string) (string, error) {
	value, err := p.store.Get(ctx, key)
	if err == nil && len(value) > 0 {
		return string(value), nil
	}
	if err != nil && !errors.Is(err, providers.ErrNotFound) {
		// Unreadable storage degrades to first-run behavior.
		p.logger.Warn().Err(err).Str("key", key).Msg("state key unreadable, regenerating")
	}

	fresh := generate()
	if err := p.store.Set(ctx, key, []byte(fresh)); err != nil {
		return "", apperrors.NewIdentityError("failed to persist identity key", err)
	}
	return fresh, nil
}
