package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/taxonomy"
)

func testBatch() entities.Batch {
	now := time.Now().UTC()
	event := entities.NewStableEvent(taxonomy.EventScreenViewed, entities.Identity{
		Mode:      entities.ModeDefault,
		SessionID: "sess-1",
		DeviceID:  "dev-1",
	}, map[string]any{"screen": "calendar"}, now)
	return entities.Batch{
		SchemaVersion: entities.SchemaVersion,
		Mode:          entities.ModeDefault,
		Events:        []entities.Event{event},
	}
}

func TestHTTPTransport_Send(t *testing.T) {
	t.Run("2xx is success", func(t *testing.T) {
		var gotContentType string
		var gotBatch entities.Batch
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotContentType = r.Header.Get("Content-Type")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBatch))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		tr := NewHTTPTransport(server.URL, time.Second)
		result := tr.Send(context.Background(), testBatch())

		assert.True(t, result.Success)
		assert.False(t, result.ShouldRetry)
		assert.NoError(t, result.Err)
		assert.Equal(t, "application/json", gotContentType)
		assert.Equal(t, entities.SchemaVersion, gotBatch.SchemaVersion)
		require.Len(t, gotBatch.Events, 1)
		assert.Equal(t, taxonomy.EventScreenViewed, gotBatch.Events[0].Name)
	})

	t.Run("retryable statuses", func(t *testing.T) {
		for _, code := range []int{http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable} {
			t.Run(fmt.Sprintf("status_%d", code), func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(code)
				}))
				defer server.Close()

				tr := NewHTTPTransport(server.URL, time.Second)
				result := tr.Send(context.Background(), testBatch())

				assert.False(t, result.Success)
				assert.True(t, result.ShouldRetry)
				assert.Error(t, result.Err)
			})
		}
	})

	t.Run("other 4xx is permanent", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		tr := NewHTTPTransport(server.URL, time.Second)
		result := tr.Send(context.Background(), testBatch())

		assert.False(t, result.Success)
		assert.False(t, result.ShouldRetry)
		assert.Error(t, result.Err)
		// A collector response, even a rejection, is never retried inside
		// the transport.
		assert.Equal(t, 1, calls)
	})

	t.Run("connection error is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // nothing listening anymore

		tr := NewHTTPTransport(server.URL, time.Second)
		result := tr.Send(context.Background(), testBatch())

		assert.False(t, result.Success)
		assert.True(t, result.ShouldRetry)
		assert.Error(t, result.Err)
	})

	t.Run("unmarshalable payload is permanent", func(t *testing.T) {
		tr := NewHTTPTransport("http://localhost:0", time.Second)
		batch := testBatch()
		batch.Events[0].Props = map[string]any{"bad": func() {}}
		result := tr.Send(context.Background(), batch)

		assert.False(t, result.Success)
		assert.False(t, result.ShouldRetry)
		assert.Error(t, result.Err)
	})
}
