package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborapp/telemetry/internal/adapters/storage"
	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/providers"
)

func testEvent(name string) entities.Event {
	identity := entities.Identity{Mode: entities.ModeDefault, SessionID: "session-1", DeviceID: "device-1"}
	return entities.NewStableEvent(name, identity, nil, time.Now().UTC())
}

func preloadQueue(t *testing.T, store providers.StateStore, n int) {
	t.Helper()
	events := make([]entities.QueuedEvent, n)
	base := time.Now().UTC().Add(-time.Hour)
	for i := range events {
		ev := testEvent("screen_viewed")
		ev.ID = fmt.Sprintf("preloaded-%d", i)
		events[i] = entities.QueuedEvent{Event: ev, Timestamp: base.Add(time.Duration(i) * time.Second)}
	}
	data, err := json.Marshal(events)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), providers.KeyEventQueue, data))
}

func TestEventQueue_EnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	queue := NewEventQueue(ctx, storage.NewMemoryStore(), 10)

	assert.True(t, queue.Enqueue(ctx, testEvent("note_created")))
	assert.True(t, queue.Enqueue(ctx, testEvent("screen_viewed")))
	assert.Equal(t, 2, queue.Size())

	// Dequeue is peek-style: FIFO order, nothing removed.
	batch := queue.Dequeue(ctx, 1)
	require.Len(t, batch, 1)
	assert.Equal(t, "note_created", batch[0].Event.Name)
	assert.Equal(t, 2, queue.Size())

	// Asking for more than queued returns what exists.
	assert.Len(t, queue.Dequeue(ctx, 50), 2)
	assert.Nil(t, queue.Dequeue(ctx, 0))
}

func TestEventQueue_RemoveDeletesOnlyGivenEvents(t *testing.T) {
	ctx := context.Background()
	queue := NewEventQueue(ctx, storage.NewMemoryStore(), 10)

	queue.Enqueue(ctx, testEvent("note_created"))
	queue.Enqueue(ctx, testEvent("screen_viewed"))
	queue.Enqueue(ctx, testEvent("contact_added"))

	batch := queue.Dequeue(ctx, 2)
	queue.Remove(ctx, batch)

	assert.Equal(t, 1, queue.Size())
	remaining := queue.Dequeue(ctx, 1)
	assert.Equal(t, "contact_added", remaining[0].Event.Name)
}

func TestEventQueue_CapacityInvariant(t *testing.T) {
	ctx := context.Background()
	maxSize := 50
	queue := NewEventQueue(ctx, storage.NewMemoryStore(), maxSize)

	for i := 0; i < 500; i++ {
		queue.Enqueue(ctx, testEvent("screen_viewed"))
		assert.LessOrEqual(t, queue.Size(), maxSize)
	}
}

func TestEventQueue_CompactionUnderPressure(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	preloadQueue(t, store, 950)

	queue := NewEventQueue(ctx, store, 1000)
	require.Equal(t, 950, queue.Size())

	// Crossing the 90% threshold drops the oldest 20% before appending.
	assert.True(t, queue.Enqueue(ctx, testEvent("note_created")))
	assert.Equal(t, 761, queue.Size())

	// The survivors are the newest entries; the new event is at the tail.
	batch := queue.Dequeue(ctx, 1)
	assert.Equal(t, "preloaded-190", batch[0].Event.ID)
}

func TestEventQueue_EnqueueOnFullReturnsFalse(t *testing.T) {
	ctx := context.Background()
	// Small enough that one compaction pass drops zero entries.
	queue := NewEventQueue(ctx, storage.NewMemoryStore(), 4)

	for i := 0; i < 4; i++ {
		assert.True(t, queue.Enqueue(ctx, testEvent("screen_viewed")))
	}
	assert.False(t, queue.Enqueue(ctx, testEvent("screen_viewed")))
	assert.Equal(t, 4, queue.Size())
}

func TestEventQueue_RetryCeiling(t *testing.T) {
	ctx := context.Background()
	queue := NewEventQueue(ctx, storage.NewMemoryStore(), 10)

	queue.Enqueue(ctx, testEvent("note_created"))
	queue.Enqueue(ctx, testEvent("screen_viewed"))

	batch := queue.Dequeue(ctx, 1)
	for i := 0; i < 3; i++ {
		queue.IncrementRetryCount(ctx, batch)
	}

	removed := queue.RemoveFailedEvents(ctx, 3)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, queue.Size())

	// The survivor has its retry count untouched.
	remaining := queue.Dequeue(ctx, 1)
	assert.Equal(t, 0, remaining[0].RetryCount)
	assert.Equal(t, "screen_viewed", remaining[0].Event.Name)
}

func TestEventQueue_IncrementRetryCountByExactlyOne(t *testing.T) {
	ctx := context.Background()
	queue := NewEventQueue(ctx, storage.NewMemoryStore(), 10)

	queue.Enqueue(ctx, testEvent("note_created"))
	queue.Enqueue(ctx, testEvent("screen_viewed"))

	batch := queue.Dequeue(ctx, 2)
	queue.IncrementRetryCount(ctx, batch)

	for _, queued := range queue.Dequeue(ctx, 2) {
		assert.Equal(t, 1, queued.RetryCount)
	}
	assert.Equal(t, 2, queue.Size())
}

func TestEventQueue_PersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first := NewEventQueue(ctx, store, 10)
	first.Enqueue(ctx, testEvent("note_created"))
	first.Enqueue(ctx, testEvent("screen_viewed"))

	second := NewEventQueue(ctx, store, 10)
	assert.Equal(t, 2, second.Size())
	assert.Equal(t, "note_created", second.Dequeue(ctx, 1)[0].Event.Name)
}

func TestEventQueue_CorruptPersistedStateFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, providers.KeyEventQueue, []byte("not json")))

	queue := NewEventQueue(ctx, store, 10)
	assert.Equal(t, 0, queue.Size())
	assert.True(t, queue.Enqueue(ctx, testEvent("note_created")))
}

func TestEventQueue_Clear(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	queue := NewEventQueue(ctx, store, 10)

	queue.Enqueue(ctx, testEvent("note_created"))
	queue.Clear(ctx)

	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 0, NewEventQueue(ctx, store, 10).Size())
}
