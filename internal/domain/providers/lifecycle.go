package providers

// LifecyclePhase is a foreground/background transition reported by the
// hosting application shell.
type LifecyclePhase int

const (
	// PhaseForeground is entered when the host application becomes active.
	PhaseForeground LifecyclePhase = iota

	// PhaseBackground is entered when the host application is backgrounded.
	PhaseBackground
)

// LifecycleNotifier delivers host lifecycle transitions to the telemetry
// client. The host defines the transitions; this subsystem only reacts.
type LifecycleNotifier interface {
	// Subscribe registers a handler for lifecycle transitions and returns
	// an unsubscribe function.
	Subscribe(handler func(LifecyclePhase)) (unsubscribe func())
}

// NoopLifecycleNotifier is a LifecycleNotifier for hosts without lifecycle
// signals (server-side embeddings, tests).
type NoopLifecycleNotifier struct{}

// Subscribe implements LifecycleNotifier. The handler is never invoked.
func (NoopLifecycleNotifier) Subscribe(func(LifecyclePhase)) func() {
	return func() {}
}
