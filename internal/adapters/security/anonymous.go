package security

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/suggestbox/internal/domain"
	"github.com/viralforge/suggestbox/internal/ports"
)

// AnonymousProvider issues durable anonymous principals backed by signed
// tokens. One provider instance serves one logical session: the first
// sign-in establishes the principal and later transitions (a forced
// sign-out) flow to registered listeners.
type AnonymousProvider struct {
	signer ports.TokenSigner
	ttl    time.Duration
	nowFn  func() time.Time
	logger *slog.Logger

	mu         sync.Mutex
	listeners  map[int]ports.IdentityListener
	nextID     int
	current    domain.Principal
	present    bool
	resolved   bool
	signInDone bool
}

// NewAnonymousProvider builds a provider with the given token lifetime.
func NewAnonymousProvider(signer ports.TokenSigner, ttl time.Duration, logger *slog.Logger) *AnonymousProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AnonymousProvider{
		signer:    signer,
		ttl:       ttl,
		nowFn:     func() time.Time { return time.Now().UTC() },
		logger:    logger,
		listeners: make(map[int]ports.IdentityListener),
	}
}

// SignInAnonymously mints a fresh principal on first call. Repeat calls in
// the same session return the already established principal without minting
// a second identity.
func (p *AnonymousProvider) SignInAnonymously(ctx context.Context) (domain.Principal, error) {
	p.mu.Lock()
	if p.signInDone && p.present {
		principal := p.current
		p.mu.Unlock()
		return principal, nil
	}
	p.mu.Unlock()

	now := p.nowFn()
	principalID := uuid.NewString()
	token, err := p.signer.Sign(ports.PrincipalClaims{
		PrincipalID: principalID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(p.ttl),
	})
	if err != nil {
		return domain.Principal{}, fmt.Errorf("sign principal token: %w", err)
	}

	principal := domain.Principal{ID: principalID, Token: token}
	p.logger.InfoContext(ctx, "anonymous principal issued",
		"module", "security.anonymous",
		"layer", "adapter",
		"operation", "sign_in_anonymously",
		"outcome", "success",
		"principal_id", principalID,
	)
	p.transition(principal, true)
	return principal, nil
}

// IdentityChanges registers a listener and returns its idempotent release.
// A listener registered after the identity has resolved immediately receives
// the current state.
func (p *AnonymousProvider) IdentityChanges(listener ports.IdentityListener) (release func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	replayPrincipal, replayPresent, resolved := p.current, p.present, p.resolved
	p.mu.Unlock()

	if resolved {
		listener(replayPrincipal, replayPresent)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// SignOut invalidates the current principal and notifies listeners of the
// absent state. Dependents must treat any live subscription as invalid.
func (p *AnonymousProvider) SignOut() {
	p.transition(domain.Principal{}, false)
}

// transition holds the lock across listener invocation so a released
// listener can never observe a transition after its release returned.
func (p *AnonymousProvider) transition(principal domain.Principal, present bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = principal
	p.present = present
	p.resolved = true
	if present {
		p.signInDone = true
	}
	for _, listener := range p.listeners {
		listener(principal, present)
	}
}
