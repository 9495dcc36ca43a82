package identity

import (
	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/providers"
)

// NewProvider creates the identity provider for a mode. Each call returns a
// fresh provider with an empty cache; switching modes must not reuse
// identity state from the previous provider.
func NewProvider(mode entities.Mode, store providers.StateStore) providers.IdentityProvider {
	if mode == entities.ModePrivacy {
		return NewPrivacyProvider(store)
	}
	return NewStableProvider(store)
}
