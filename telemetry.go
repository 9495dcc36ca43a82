// Package telemetry is the client-side instrumentation and delivery SDK
// embedded in the Harbor application. Call sites log typed events; the SDK
// enriches them with identity and timing metadata, optionally strips and
// coarsens fields in privacy mode, queues them durably across restarts and
// offline periods, and delivers them to the collection endpoint in batches
// with bounded retries. Nothing here ever blocks the caller or surfaces an
// error into the host.
//
//	cfg, err := config.Load()
//	client, err := telemetry.New(cfg)
//	client.Initialize(ctx)
//	client.Log(ctx, taxonomy.EventScreenViewed, map[string]any{"screen": "calendar"})
//	defer client.Shutdown(ctx)
package telemetry

import (
	"github.com/harborapp/telemetry/internal/adapters/identity"
	"github.com/harborapp/telemetry/internal/adapters/storage"
	"github.com/harborapp/telemetry/internal/adapters/transport"
	"github.com/harborapp/telemetry/internal/application/services"
	"github.com/harborapp/telemetry/internal/domain/entities"
	"github.com/harborapp/telemetry/internal/domain/providers"
	"github.com/harborapp/telemetry/internal/domain/taxonomy"
	"github.com/harborapp/telemetry/pkg/config"
)

// Client is the telemetry orchestrator handle given to the host.
type Client = services.Client

// LifecycleNotifier is implemented by the host shell to deliver
// foreground/background transitions to the SDK.
type LifecycleNotifier = providers.LifecycleNotifier

// LifecyclePhase is a host lifecycle transition.
type LifecyclePhase = providers.LifecyclePhase

// Lifecycle phases.
const (
	PhaseForeground = providers.PhaseForeground
	PhaseBackground = providers.PhaseBackground
)

// Option customizes client construction.
type Option func(*options)

type options struct {
	store     providers.StateStore
	transport providers.Transport
	lifecycle providers.LifecycleNotifier
	registry  *taxonomy.Registry
}

// WithLifecycleNotifier wires the host's lifecycle signals. Without it the
// SDK relies solely on the periodic flush timer.
func WithLifecycleNotifier(notifier LifecycleNotifier) Option {
	return func(o *options) { o.lifecycle = notifier }
}

// WithMemoryStore disables local persistence. Queued events are lost on
// restart; identity resets every run.
func WithMemoryStore() Option {
	return func(o *options) { o.store = storage.NewMemoryStore() }
}

// WithTransport replaces the HTTP transport, for hosts that tunnel delivery
// through their own networking stack.
func WithTransport(t providers.Transport) Option {
	return func(o *options) { o.transport = t }
}

// New assembles a client from configuration: the configured state store
// backend, the HTTP transport and the identity provider factory. The client
// is returned uninitialized; call Initialize (or let the first Log do it).
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.store == nil {
		store, err := storage.NewStateStore(cfg)
		if err != nil {
			return nil, err
		}
		o.store = store
	}
	if o.transport == nil {
		o.transport = transport.NewHTTPTransport(cfg.Telemetry.Endpoint, cfg.Telemetry.SendTimeout)
	}
	if o.registry == nil {
		o.registry = taxonomy.Default()
	}

	store := o.store
	factory := func(mode entities.Mode) providers.IdentityProvider {
		return identity.NewProvider(mode, store)
	}

	return services.NewClient(cfg, o.store, o.transport, o.lifecycle, o.registry, factory), nil
}
