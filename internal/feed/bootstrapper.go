package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/viralforge/suggestbox/internal/domain"
	"github.com/viralforge/suggestbox/internal/ports"
)

// IdentityEvent is one identity-state transition as seen by dependents.
// Err is set only for the terminal sign-in failure case, in which case the
// principal stays absent for the rest of the session.
type IdentityEvent struct {
	Principal domain.Principal
	Present   bool
	Err       error
}

// Bootstrapper establishes the anonymous principal for the current session
// and relays later identity-state transitions to its dependents. It issues
// exactly one sign-in request per session lifetime; a provider that never
// resolves leaves dependents pending rather than blocking them.
type Bootstrapper struct {
	cfg      Config
	provider ports.IdentityProvider
	logger   *slog.Logger

	mu              sync.Mutex
	listeners       map[int]func(IdentityEvent)
	nextListenerID  int
	releaseProvider func()
	started         bool
	closed          bool
	last            IdentityEvent
	seen            bool
}

func NewBootstrapper(cfg Config, provider ports.IdentityProvider, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{
		cfg:       cfg,
		provider:  provider,
		logger:    logger,
		listeners: make(map[int]func(IdentityEvent)),
	}
}

// Start validates configuration and requests the anonymous principal. On
// invalid configuration it fails immediately and performs no further action:
// no identity request, no retry. Identity arrival is delivered through the
// provider's change stream, so Start does not wait for issuance.
func (b *Bootstrapper) Start(ctx context.Context) error {
	if err := b.cfg.Validate(); err != nil {
		b.logger.ErrorContext(ctx, "identity bootstrap rejected",
			"module", "feed.bootstrapper",
			"operation", "start",
			"outcome", "failure",
			"error", err,
		)
		return err
	}

	b.mu.Lock()
	if b.started || b.closed {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	release := b.provider.IdentityChanges(b.relay)
	b.mu.Lock()
	if b.closed {
		// Lost the race with Close; drop the registration right away.
		b.mu.Unlock()
		release()
		return nil
	}
	b.releaseProvider = release
	b.mu.Unlock()

	go func() {
		if _, err := b.provider.SignInAnonymously(ctx); err != nil {
			b.logger.ErrorContext(ctx, "anonymous sign-in failed",
				"module", "feed.bootstrapper",
				"operation", "sign_in_anonymously",
				"outcome", "failure",
				"error", err,
			)
			b.relayError(err)
		}
	}()
	return nil
}

// IdentityChanges registers a dependent listener and returns its release
// function. A listener registered after the first transition immediately
// receives the current state, so late dependents do not wait for the next
// provider event.
func (b *Bootstrapper) IdentityChanges(listener func(IdentityEvent)) (release func()) {
	b.mu.Lock()
	id := b.nextListenerID
	b.nextListenerID++
	b.listeners[id] = listener
	replay, seen := b.last, b.seen
	b.mu.Unlock()

	if seen {
		listener(replay)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Close releases the provider subscription synchronously: after Close
// returns, no listener callback can fire. Double-Close is safe.
func (b *Bootstrapper) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.listeners = make(map[int]func(IdentityEvent))
	release := b.releaseProvider
	b.releaseProvider = nil
	b.mu.Unlock()

	if release != nil {
		release()
	}
}

func (b *Bootstrapper) relay(principal domain.Principal, present bool) {
	b.dispatch(IdentityEvent{Principal: principal, Present: present})
}

func (b *Bootstrapper) relayError(err error) {
	b.dispatch(IdentityEvent{Err: err})
}

// dispatch holds the lock across listener invocation so that Close acts as a
// synchronous barrier: once listeners are cleared no callback is in flight.
func (b *Bootstrapper) dispatch(evt IdentityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = evt
	b.seen = true
	for _, listener := range b.listeners {
		listener(evt)
	}
}
