package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
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

// anonIDLength is the hex length of the pseudonymous id.
const anonIDLength = 16

// PrivacyProvider implements IdentityProvider without stable identifiers.
// The anonymous id is derived by hashing a persistent random seed with the
// current calendar date: stable within a day, unlinkable across days for
// anyone without the seed. The session id lives only in memory, so every
// process restart is a new session boundary.
type PrivacyProvider struct {
	store  providers.StateStore
	logger zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	session    string
	anonID     string
	cachedDate string
}

// NewPrivacyProvider creates a privacy identity provider over the given
// store. The session id is generated immediately and never persisted.
func NewPrivacyProvider(store providers.StateStore) *PrivacyProvider {
	return &PrivacyProvider{
		store:   store,
		logger:  observability.ComponentLogger("identity.privacy"),
		now:     time.Now,
		session: uuid.New().String(),
	}
}

// Mode implements IdentityProvider.
func (p *PrivacyProvider) Mode() entities.Mode {
	return entities.ModePrivacy
}

// Identity returns the current identity, re-deriving the anonymous id when
// the calendar date has rolled over since the last call.
func (p *PrivacyProvider) Identity(ctx context.Context) (entities.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	date := p.now().UTC().Format("2006-01-02")
	if p.anonID == "" || p.cachedDate != date {
		anonID, err := p.deriveAnonID(ctx, date)
		if err != nil {
			return entities.Identity{}, err
		}
		p.anonID = anonID
		p.cachedDate = date
	}

	return entities.Identity{
		Mode:      entities.ModePrivacy,
		SessionID: p.session,
		AnonID:    p.anonID,
	}, nil
}

// RefreshSession generates a new in-memory session id.
func (p *PrivacyProvider) RefreshSession(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = uuid.New().String()
	p.logger.Debug().Msg("session refreshed")
	return nil
}

// deriveAnonID hashes the persistent seed with the date string. The seed is
// created on first use; losing it simply yields a new unlinkable identity.
func (p *PrivacyProvider) deriveAnonID(ctx context.Context, date string) (string, error) {
	seed, err := p.store.Get(ctx, providers.KeyAnonSeed)
	if err != nil || len(seed) == 0 {
		if err != nil && !errors.Is(err, providers.ErrNotFound) {
			p.logger.Warn().Err(err).Msg("anonymous seed unreadable, regenerating")
		}
		seed = make([]byte, 32)
		if _, err := rand.Read(seed); err != nil {
			return "", apperrors.NewIdentityError("failed to generate anonymous seed", err)
		}
		if err := p.store.Set(ctx, providers.KeyAnonSeed, seed); err != nil {
			return "", apperrors.NewIdentityError("failed to persist anonymous seed", err)
		}
	}

	digest := sha256.Sum256(append(append([]byte{}, seed...), []byte(date)...))
	return hex.EncodeToString(digest[:])[:anonIDLength], nil
}
