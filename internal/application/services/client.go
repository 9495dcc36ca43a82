package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/providers"
	"github.com/harborapp/telemetry/internal/domain/sanitize"
	"github.com/harborapp/telemetry/internal/domain/taxonomy"
	"github.com/harborapp/telemetry/internal/infrastructure/observability"
	"github.com/harborapp/telemetry/pkg/config"
)

// State is the client lifecycle phase.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateShuttingDown
)

// longBackgroundThreshold is how long the host may stay backgrounded before
// returning to the foreground starts a new session.
const longBackgroundThreshold = 30 * time.Minute

// ProviderFactory builds a fresh identity provider for a mode. Each call
// must return a provider with an empty cache.
type ProviderFactory func(mode entities.Mode) providers.IdentityProvider

// Client is the telemetry orchestrator exposed to the host application. It
// owns the flush timer and lifecycle hooks and wires identity, sanitizer,
// deduplication, queue and transport together.
//
// No public method ever returns an error or panics into the host: telemetry
// is fire-and-forget instrumentation, and every failure is swallowed and
// logged internally.
//
// Mode-transition marker events are deliberately asymmetric, matching
// long-standing observed behavior: the privacy_mode_disabled marker is
// logged before switching back to stable identities (so it carries the
// privacy shape), while the privacy_mode_enabled marker is logged after the
// switch completes. Do not "fix" the ordering without a collector-side
// migration.
type Client struct {
	cfg         config.TelemetryConfig
	app         config.AppConfig
	store       providers.StateStore
	transport   providers.Transport
	lifecycle   providers.LifecycleNotifier
	registry    *taxonomy.Registry
	newProvider ProviderFactory
	logger      zerolog.Logger
	now         func() time.Time

	mu           sync.Mutex
	state        State
	privacyMode  bool
	provider     providers.IdentityProvider
	queue        *EventQueue
	dedup        *Deduplicator
	stopTicker   chan struct{}
	unsubscribe  func()
	backgroundAt time.Time

	flushMu      sync.Mutex
	flushPending atomic.Bool
}

// NewClient constructs an uninitialized client. The caller owns the store's
// lifetime; everything else is created during Initialize.
func NewClient(
	cfg *config.Config,
	store providers.StateStore,
	transport providers.Transport,
	lifecycle providers.LifecycleNotifier,
	registry *taxonomy.Registry,
	newProvider ProviderFactory,
) *Client {
	if lifecycle == nil {
		lifecycle = providers.NoopLifecycleNotifier{}
	}
	if registry == nil {
		registry = taxonomy.Default()
	}
	return &Client{
		cfg:         cfg.Telemetry,
		app:         cfg.App,
		store:       store,
		transport:   transport,
		lifecycle:   lifecycle,
		registry:    registry,
		newProvider: newProvider,
		logger:      observability.ComponentLogger("client"),
		now:         time.Now,
	}
}

// Initialize loads the persisted privacy preference, restores the queue and
// dedup cache, starts the periodic flush timer and subscribes to host
// lifecycle transitions. It is idempotent: a second call while already
// initialized is a no-op.
func (c *Client) Initialize(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return
	}
	c.state = StateInitializing

	if c.cfg.DebugMode {
		observability.SetDebug(true)
	}

	c.privacyMode = c.loadPrivacyPreference(ctx)
	mode := entities.ModeDefault
	if c.privacyMode {
		mode = entities.ModePrivacy
	}
	c.provider = c.newProvider(mode)
	c.queue = NewEventQueue(ctx, c.store, c.cfg.MaxQueueSize)
	c.dedup = NewDeduplicator(ctx, c.store)

	if err := c.store.Set(ctx, providers.KeySessionStart, []byte(c.now().UTC().Format(time.RFC3339))); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist session start")
	}

	if c.cfg.Enabled {
		c.stopTicker = make(chan struct{})
		go c.flushLoop(c.stopTicker)
		c.unsubscribe = c.lifecycle.Subscribe(c.onLifecycle)
	}

	c.state = StateReady
	c.mu.Unlock()

	c.logger.Info().
		Bool("privacy_mode", c.privacyMode).
		Bool("enabled", c.cfg.Enabled).
		Int("queue_size", c.queue.Size()).
		Msg("telemetry client initialized")

	c.Log(ctx, taxonomy.EventSessionStart, map[string]any{"launch_type": "cold"})
}

// Log records one event. It never blocks on the network and never surfaces
// an error: unregistered names, identity failures, duplicates and a full
// queue all drop the event with at most a log line.
func (c *Client) Log(ctx context.Context, name string, props map[string]any) {
	if !c.cfg.Enabled {
		return
	}
	c.Initialize(ctx)

	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return
	}
	provider := c.provider
	privacy := c.privacyMode
	queue := c.queue
	dedup := c.dedup
	c.mu.Unlock()

	if !c.registry.IsRegistered(name) {
		c.logger.Debug().Str("event", name).Msg("unregistered event name, dropped")
		return
	}

	identity, err := provider.Identity(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str("event", name).Msg("identity fetch failed, event dropped")
		return
	}

	event := c.assemble(name, identity, props, privacy)
	if privacy {
		event = sanitize.Event(event, c.registry)
	}

	if dedup.IsDuplicate(ctx, event) {
		c.logger.Debug().Str("event", name).Msg("duplicate event suppressed")
		return
	}

	if !queue.Enqueue(ctx, event) {
		c.logger.Warn().Str("event", name).Msg("queue full, event dropped")
		return
	}

	if c.cfg.DebugMode {
		c.logger.Debug().Str("event", name).Str("event_id", event.ID).Msg("event queued")
	}
}

// Flush delivers pending events in batches. Only one flush runs at a time;
// timer and lifecycle triggers arriving mid-flush coalesce into a single
// follow-up pass instead of racing over the queue.
func (c *Client) Flush(ctx context.Context) {
	c.mu.Lock()
	ready := c.state == StateReady || c.state == StateShuttingDown
	c.mu.Unlock()
	if !ready {
		return
	}

	if !c.flushMu.TryLock() {
		c.flushPending.Store(true)
		return
	}
	defer c.flushMu.Unlock()

	for {
		c.flushOnce(ctx)
		if !c.flushPending.CompareAndSwap(true, false) {
			return
		}
	}
}

// EnablePrivacyMode switches to ephemeral identities. The preference is
// persisted, the identity provider is replaced, and the marker event is
// logged after the switch, so it already carries the privacy shape.
// Already-queued stable events are not rewritten here; they are sanitized
// at flush time.
func (c *Client) EnablePrivacyMode(ctx context.Context) {
	c.Initialize(ctx)

	c.mu.Lock()
	if c.state != StateReady || c.privacyMode {
		c.mu.Unlock()
		return
	}
	c.persistPrivacyPreference(ctx, true)
	c.provider = c.newProvider(entities.ModePrivacy)
	c.privacyMode = true
	c.mu.Unlock()

	c.logger.Info().Msg("privacy mode enabled")
	c.Log(ctx, taxonomy.EventPrivacyModeEnabled, nil)
}

// DisablePrivacyMode switches back to stable identities. The marker event
// is logged before the switch, while privacy mode is still active.
func (c *Client) DisablePrivacyMode(ctx context.Context) {
	c.Initialize(ctx)

	c.mu.Lock()
	if c.state != StateReady || !c.privacyMode {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.Log(ctx, taxonomy.EventPrivacyModeDisabled, nil)

	c.mu.Lock()
	c.persistPrivacyPreference(ctx, false)
	c.provider = c.newProvider(entities.ModeDefault)
	c.privacyMode = false
	c.mu.Unlock()

	c.logger.Info().Msg("privacy mode disabled")
}

// PrivacyModeEnabled reports whether privacy mode is active.
func (c *Client) PrivacyModeEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.privacyMode
}

// SetUserID forwards the authenticated user id to a stable identity
// provider. In privacy mode this is a no-op.
func (c *Client) SetUserID(ctx context.Context, userID string) {
	c.mu.Lock()
	binder, ok := c.provider.(providers.UserIdentityBinder)
	c.mu.Unlock()
	if !ok {
		return
	}
	if err := binder.SetUserID(ctx, userID); err != nil {
		c.logger.Error().Err(err).Msg("failed to bind user id")
	}
}

// ClearUserID removes the bound user id on sign-out.
func (c *Client) ClearUserID(ctx context.Context) {
	c.mu.Lock()
	binder, ok := c.provider.(providers.UserIdentityBinder)
	c.mu.Unlock()
	if !ok {
		return
	}
	if err := binder.ClearUserID(ctx); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear user id")
	}
}

// Shutdown flushes pending events, stops the timer, unsubscribes from
// lifecycle signals, records the session end and performs a final flush.
func (c *Client) Shutdown(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return
	}
	if c.stopTicker != nil {
		close(c.stopTicker)
		c.stopTicker = nil
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.mu.Unlock()

	c.Flush(ctx)
	c.Log(ctx, taxonomy.EventSessionEnd, map[string]any{
		"session_duration_bucket": c.sessionDurationBucket(ctx),
	})
	c.Flush(ctx)

	c.mu.Lock()
	c.state = StateShuttingDown
	c.mu.Unlock()

	c.logger.Info().Msg("telemetry client shut down")
}

// Pending returns the number of events waiting for delivery.
func (c *Client) Pending() int {
	c.mu.Lock()
	queue := c.queue
	c.mu.Unlock()
	if queue == nil {
		return 0
	}
	return queue.Size()
}

// State returns the current lifecycle phase.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// flushOnce performs a single purge-dequeue-send-settle cycle.
func (c *Client) flushOnce(ctx context.Context) {
	c.mu.Lock()
	queue := c.queue
	privacy := c.privacyMode
	c.mu.Unlock()

	queue.RemoveFailedEvents(ctx, c.cfg.MaxRetries)

	batch := queue.Dequeue(ctx, c.cfg.BatchSize)
	if len(batch) == 0 {
		return
	}

	mode := entities.ModeDefault
	events := make([]entities.Event, 0, len(batch))
	for _, queued := range batch {
		ev := queued.Event
		// Events queued in stable mode before a privacy switch get the
		// privacy transformation now, at the last point before transport.
		if privacy && ev.Mode != entities.ModePrivacy {
			ev = sanitize.Event(ev, c.registry)
		}
		events = append(events, ev)
	}
	if privacy {
		mode = entities.ModePrivacy
	}

	result := c.transport.Send(ctx, entities.Batch{
		SchemaVersion: entities.SchemaVersion,
		Mode:          mode,
		Events:        events,
	})

	switch {
	case result.Success:
		queue.Remove(ctx, batch)
		c.logger.Debug().Int("events", len(batch)).Msg("batch delivered")
	case result.ShouldRetry:
		queue.IncrementRetryCount(ctx, batch)
		c.logger.Warn().Err(result.Err).Int("events", len(batch)).Msg("delivery failed, will retry")
	default:
		queue.Remove(ctx, batch)
		c.logger.Error().Err(result.Err).Int("events", len(batch)).Msg("delivery rejected, batch dropped")
	}
}

// flushLoop runs the periodic flush timer.
func (c *Client) flushLoop(stop <-chan struct{}) {
	interval := c.cfg.FlushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Flush(context.Background())
		case <-stop:
			return
		}
	}
}

// onLifecycle reacts to host foreground/background transitions. Both edges
// flush; returning to the foreground after a long background additionally
// starts a new session.
func (c *Client) onLifecycle(phase providers.LifecyclePhase) {
	ctx := context.Background()
	switch phase {
	case providers.PhaseBackground:
		c.mu.Lock()
		c.backgroundAt = c.now()
		c.mu.Unlock()
		c.Flush(ctx)
	case providers.PhaseForeground:
		c.mu.Lock()
		away := time.Duration(0)
		if !c.backgroundAt.IsZero() {
			away = c.now().Sub(c.backgroundAt)
			c.backgroundAt = time.Time{}
		}
		provider := c.provider
		c.mu.Unlock()

		if away > longBackgroundThreshold && provider != nil {
			if err := provider.RefreshSession(ctx); err != nil {
				c.logger.Warn().Err(err).Msg("failed to refresh session")
			}
		}
		c.Flush(ctx)
	}
}

// assemble builds the event for the active mode and attaches the static
// environment tags.
func (c *Client) assemble(name string, identity entities.Identity, props map[string]any, privacy bool) entities.Event {
	occurredAt := c.now().UTC()
	var event entities.Event
	if privacy {
		event = entities.NewPrivacyEvent(name, identity, props, occurredAt)
	} else {
		event = entities.NewStableEvent(name, identity, props, occurredAt)
	}
	event.AppVersion = c.app.Version
	event.Platform = c.app.Platform
	event.Locale = c.app.Locale
	return event
}

func (c *Client) loadPrivacyPreference(ctx context.Context) bool {
	value, err := c.store.Get(ctx, providers.KeyPrivacyMode)
	if err != nil {
		if !errors.Is(err, providers.ErrNotFound) {
			c.logger.Warn().Err(err).Msg("privacy preference unreadable, using configured mode")
		}
		return c.cfg.Mode == string(entities.ModePrivacy)
	}
	return string(value) == "true"
}

func (c *Client) persistPrivacyPreference(ctx context.Context, enabled bool) {
	value := "false"
	if enabled {
		value = "true"
	}
	if err := c.store.Set(ctx, providers.KeyPrivacyMode, []byte(value)); err != nil {
		c.logger.Error().Err(err).Msg("failed to persist privacy preference")
	}
}

// sessionDurationBucket coarsens the elapsed session time. Buckets, not raw
// durations, keep session length out of PII territory.
func (c *Client) sessionDurationBucket(ctx context.Context) string {
	value, err := c.store.Get(ctx, providers.KeySessionStart)
	if err != nil {
		return "unknown"
	}
	start, err := time.Parse(time.RFC3339, string(value))
	if err != nil {
		return "unknown"
	}
	return DurationBucket(c.now().Sub(start))
}

// DurationBucket maps a duration onto the coarse labels used by duration
// props throughout the taxonomy.
func DurationBucket(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "under_1m"
	case d < 10*time.Minute:
		return "1m-10m"
	case d < time.Hour:
		return "10m-1h"
	default:
		return "over_1h"
	}
}
