package providers

import (
	"context"

	"github.com/harborapp/telemetry/internal/domain/entities"
)

// Transport performs one network delivery attempt for a batch of events and
// classifies the outcome. Implementations must bound their own latency; the
// caller does not enforce a timeout around Send.
type Transport interface {
	Send(ctx context.Context, batch entities.Batch) entities.SendResult
}
