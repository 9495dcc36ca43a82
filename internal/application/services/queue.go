package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/providers"
	"github.com/harborapp/telemetry/internal/infrastructure/observability"
)

const (
	// DefaultMaxQueueSize bounds the pending event queue.
	DefaultMaxQueueSize = 1000

	// compactionThresholdPct is the occupancy (percent of capacity) past
	// which the next enqueue compacts the queue.
	compactionThresholdPct = 90

	// compactionDropPct is the share of oldest entries dropped by one
	// compaction pass. Recent events are assumed more actionable than old
	// ones.
	compactionDropPct = 20
)

// EventQueue is the persistent, size-bounded FIFO of pending events. The
// whole queue is rewritten to the state store on every mutation; there are
// no incremental writes, so access is serialized by a mutex and the
// persisted value is last-write-wins. A store read failure at load time
// falls back to an empty queue rather than failing.
type EventQueue struct {
	store   providers.StateStore
	logger  zerolog.Logger
	maxSize int

	mu     sync.Mutex
	events []entities.QueuedEvent
}

// NewEventQueue creates the queue and loads any persisted backlog.
func NewEventQueue(ctx context.Context, store providers.StateStore, maxSize int) *EventQueue {
	if maxSize <= 0 {
		maxSize = DefaultMaxQueueSize
	}
	q := &EventQueue{
		store:   store,
		logger:  observability.ComponentLogger("queue"),
		maxSize: maxSize,
	}
	q.events = q.load(ctx)
	return q
}

// Enqueue appends an event. It returns false when the queue is full even
// after compaction; the caller treats that as silent event loss, a
// deliberate backpressure policy favoring bounded memory over completeness.
func (q *EventQueue) Enqueue(ctx context.Context, event entities.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events)*100 > q.maxSize*compactionThresholdPct {
		q.compact()
	}
	if len(q.events) >= q.maxSize {
		return false
	}

	q.events = append(q.events, entities.QueuedEvent{
		Event:     event,
		Timestamp: time.Now().UTC(),
	})
	q.persist(ctx)
	return true
}

// Dequeue returns up to n of the oldest queued events without removing
// them. Removal is a separate step taken only after the transport confirms
// an outcome, which is what makes delivery at-least-once.
func (q *EventQueue) Dequeue(ctx context.Context, n int) []entities.QueuedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.events) {
		n = len(q.events)
	}
	if n <= 0 {
		return nil
	}
	batch := make([]entities.QueuedEvent, n)
	copy(batch, q.events[:n])
	return batch
}

// Remove deletes the given events from the queue.
func (q *EventQueue) Remove(ctx context.Context, events []entities.QueuedEvent) {
	if len(events) == 0 {
		return
	}
	ids := eventIDSet(events)

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.events[:0]
	for _, queued := range q.events {
		if _, ok := ids[queued.Event.ID]; !ok {
			kept = append(kept, queued)
		}
	}
	q.events = kept
	q.persist(ctx)
}

// IncrementRetryCount bumps the retry count of the given events by one.
func (q *EventQueue) IncrementRetryCount(ctx context.Context, events []entities.QueuedEvent) {
	if len(events) == 0 {
		return
	}
	ids := eventIDSet(events)

	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.events {
		if _, ok := ids[q.events[i].Event.ID]; ok {
			q.events[i].RetryCount++
		}
	}
	q.persist(ctx)
}

// RemoveFailedEvents purges events whose retry count has reached the
// ceiling, so poison events cannot block the queue head indefinitely.
// It returns the number of events removed.
func (q *EventQueue) RemoveFailedEvents(ctx context.Context, maxRetries int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.events[:0]
	removed := 0
	for _, queued := range q.events {
		if queued.RetryCount >= maxRetries {
			removed++
			continue
		}
		kept = append(kept, queued)
	}
	q.events = kept
	if removed > 0 {
		q.logger.Warn().Int("count", removed).Msg("dropped events past retry ceiling")
		q.persist(ctx)
	}
	return removed
}

// Size returns the number of queued events.
func (q *EventQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Clear empties the queue.
func (q *EventQueue) Clear(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = nil
	q.persist(ctx)
}

// compact drops the oldest entries to restore headroom. Enqueue order is
// the compaction order; the slice head is always oldest.
func (q *EventQueue) compact() {
	drop := len(q.events) * compactionDropPct / 100
	if drop == 0 {
		return
	}
	q.events = append(q.events[:0], q.events[drop:]...)
	q.logger.Warn().Int("dropped", drop).Int("remaining", len(q.events)).Msg("queue compacted under pressure")
}

// persist rewrites the whole queue. Persistence failures are logged and
// swallowed: the in-memory queue stays authoritative for this process.
func (q *EventQueue) persist(ctx context.Context) {
	data, err := json.Marshal(q.events)
	if err != nil {
		q.logger.Error().Err(err).Msg("failed to marshal queue")
		return
	}
	if err := q.store.Set(ctx, providers.KeyEventQueue, data); err != nil {
		q.logger.Error().Err(err).Msg("failed to persist queue")
	}
}

// load reads the persisted queue, falling back to empty on any failure.
func (q *EventQueue) load(ctx context.Context) []entities.QueuedEvent {
	data, err := q.store.Get(ctx, providers.KeyEventQueue)
	if err != nil {
		if !errors.Is(err, providers.ErrNotFound) {
			q.logger.Warn().Err(err).Msg("failed to load queue, starting empty")
		}
		return nil
	}
	var events []entities.QueuedEvent
	if err := json.Unmarshal(data, &events); err != nil {
		q.logger.Warn().Err(err).Msg("persisted queue unreadable, starting empty")
		return nil
	}
	if len(events) > q.maxSize {
		events = events[len(events)-q.maxSize:]
	}
	return events
}

func eventIDSet(events []entities.QueuedEvent) map[string]struct{} {
	ids := make(map[string]struct{}, len(events))
	for _, queued := range events {
		ids[queued.Event.ID] = struct{}{}
	}
	return ids
}
