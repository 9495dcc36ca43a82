package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/providers"
	"github.com/harborapp/telemetry/internal/infrastructure/observability"
)

const (
	// DedupWindow is the span within which two events with the same
	// fingerprint are one logical occurrence.
	DedupWindow = time.Minute

	// dedupMaxEntries caps the fingerprint cache.
	dedupMaxEntries = 1000

	// dedupSweepChance is the per-insert probability of pruning expired
	// entries, keeping growth bounded between explicit cleanups.
	dedupSweepChance = 0.10
)

// Deduplicator suppresses re-delivery of the same logical event within a
// short window, compensating for the at-least-once queue semantics
// (retry-induced duplicates, double-taps). The cache is persisted so the
// window survives short process restarts. It is a heuristic safety net, not
// a correctness guarantee.
type Deduplicator struct {
	store  providers.StateStore
	logger zerolog.Logger
	now    func() time.Time
	chance func() float64

	mu      sync.Mutex
	entries []entities.DedupEntry
}

// NewDeduplicator creates the deduplicator and loads persisted
// fingerprints.
func NewDeduplicator(ctx context.Context, store providers.StateStore) *Deduplicator {
	d := &Deduplicator{
		store:  store,
		logger: observability.ComponentLogger("dedup"),
		now:    time.Now,
		chance: rand.Float64,
	}
	d.entries = d.load(ctx)
	return d
}

// IsDuplicate reports whether an equivalent event was seen inside the dedup
// window. When it was not, the event's fingerprint is inserted, so calling
// twice with the same event always reports a duplicate the second time.
func (d *Deduplicator) IsDuplicate(ctx context.Context, event entities.Event) bool {
	fingerprint := entities.DedupEntry{
		EventID:     event.ID,
		IdentityKey: event.SessionID,
		EventName:   event.Name,
	}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.entries {
		if entry.Matches(fingerprint) && now.Sub(entry.Timestamp) < DedupWindow {
			return true
		}
	}

	fingerprint.Timestamp = now
	d.entries = append(d.entries, fingerprint)

	if d.chance() < dedupSweepChance {
		d.sweep(now)
	}
	if len(d.entries) > dedupMaxEntries {
		d.entries = append(d.entries[:0], d.entries[len(d.entries)-dedupMaxEntries:]...)
	}

	d.persist(ctx)
	return false
}

// sweep removes expired entries. Entries are appended in time order, so the
// retained tail stays ordered.
func (d *Deduplicator) sweep(now time.Time) {
	kept := d.entries[:0]
	for _, entry := range d.entries {
		if now.Sub(entry.Timestamp) < DedupWindow {
			kept = append(kept, entry)
		}
	}
	d.entries = kept
}

func (d *Deduplicator) persist(ctx context.Context) {
	data, err := json.Marshal(d.entries)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to marshal dedup cache")
		return
	}
	if err := d.store.Set(ctx, providers.KeyDedupCache, data); err != nil {
		d.logger.Error().Err(err).Msg("failed to persist dedup cache")
	}
}

func (d *Deduplicator) load(ctx context.Context) []entities.DedupEntry {
	data, err := d.store.Get(ctx, providers.KeyDedupCache)
	if err != nil {
		if !errors.Is(err, providers.ErrNotFound) {
			d.logger.Warn().Err(err).Msg("failed to load dedup cache, starting empty")
		}
		return nil
	}
	var entries []entities.DedupEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		d.logger.Warn().Err(err).Msg("persisted dedup cache unreadable, starting empty")
		return nil
	}
	return entries
}
