package providers

import (
	"context"

	"github.com/harborapp/telemetry/internal/domain/entities"
)

// IdentityProvider produces the identity fields attached to every event.
// Two implementations exist: a stable provider with persistent device, user
// and session ids, and a privacy provider with an ephemeral session id and a
// daily-rotating pseudonymous id.
type IdentityProvider interface {
	// Identity returns the current identity snapshot, lazily creating and
	// persisting whatever the mode requires on first call.
	Identity(ctx context.Context) (entities.Identity, error)

	// RefreshSession forces a new session id. Other identity fields are
	// unaffected.
	RefreshSession(ctx context.Context) error

	// Mode reports which event shape this provider produces.
	Mode() entities.Mode
}

// UserIdentityBinder is implemented by providers that accept a user id from
// the host's authentication layer. The privacy provider does not implement
// it.
type UserIdentityBinder interface {
	SetUserID(ctx context.Context, userID string) error
	ClearUserID(ctx context.Context) error
}
