package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/providers"
	"github.com/harborapp/telemetry/internal/infrastructure/observability"
	apperrors "github.com/harborapp/telemetry/pkg/errors"
	"github.com/harborapp/telemetry/pkg/retry"
)

// DefaultSendTimeout bounds one delivery attempt end to end.
const DefaultSendTimeout = 10 * time.Second

// HTTPTransport implements the Transport interface over a JSON POST to the
// collection endpoint. Outcomes land in exactly three buckets: success,
// retryable failure (timeouts, connection errors, 408/429/5xx) and
// permanent failure (remaining 4xx, unmarshalable payloads). The
// retryable/permanent split keeps transient network blips from being
// conflated with malformed payloads that would never succeed on retry.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	retryCfg retry.Config
	logger   zerolog.Logger
}

// NewHTTPTransport creates a transport for the given endpoint. A zero
// timeout falls back to DefaultSendTimeout.
func NewHTTPTransport(endpoint string, timeout time.Duration) providers.Transport {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		retryCfg: retry.QuickConfig(),
		logger:   observability.ComponentLogger("transport"),
	}
}

// Send implements Transport. Connection-level errors are retried once with
// backoff inside the attempt; a response from the collector, whatever its
// status, is never retried here since the queue's retry counts own that.
func (t *HTTPTransport) Send(ctx context.Context, batch entities.Batch) entities.SendResult {
	payload, err := json.Marshal(batch)
	if err != nil {
		return entities.SendResult{
			Err: apperrors.NewValidationError(fmt.Sprintf("failed to marshal batch: %v", err)),
		}
	}

	var result entities.SendResult
	err = retry.Do(ctx, t.retryCfg, func() error {
		res, attemptErr := t.attempt(ctx, payload)
		if attemptErr != nil {
			return attemptErr
		}
		result = res
		return nil
	})
	if err != nil {
		t.logger.Debug().Err(err).Int("events", len(batch.Events)).Msg("delivery attempt failed")
		return entities.SendResult{
			ShouldRetry: true,
			Err:         apperrors.NewTransportError("delivery failed", err),
		}
	}
	return result
}

func (t *HTTPTransport) attempt(ctx context.Context, payload []byte) (entities.SendResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return entities.SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return entities.SendResult{}, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return entities.SendResult{Success: true}, nil
	case retryableStatus(resp.StatusCode):
		return entities.SendResult{
			ShouldRetry: true,
			Err:         apperrors.NewTransportError(fmt.Sprintf("collector returned %d", resp.StatusCode), nil),
		}, nil
	default:
		return entities.SendResult{
			Err: apperrors.NewTransportError(fmt.Sprintf("collector rejected batch with %d", resp.StatusCode), nil),
		}, nil
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}
