package ports

import (
	"context"
	"time"

	"github.com/viralforge/suggestbox/internal/domain"
)

// IdentityListener receives identity-state transitions. present is false
// when the session's authentication state has been lost; the principal value
// is meaningful only while present is true.
type IdentityListener func(principal domain.Principal, present bool)

// IdentityProvider issues durable anonymous principals and reports later
// identity-state transitions (for example a forced sign-out).
type IdentityProvider interface {
	// SignInAnonymously requests a fresh anonymous principal. It is called
	// at most once per session lifetime.
	SignInAnonymously(ctx context.Context) (domain.Principal, error)
	// IdentityChanges registers a listener for identity-state transitions
	// and returns its release function. Release is idempotent and must stop
	// all further callbacks before returning.
	IdentityChanges(listener IdentityListener) (release func())
}

// TokenSigner issues and validates the bearer credentials behind anonymous
// principals. Keys stay at adapter level so the feed core is crypto-agnostic.
type TokenSigner interface {
	Sign(claims PrincipalClaims) (string, error)
	ParseAndValidate(token string) (PrincipalClaims, error)
}

// PrincipalClaims is the signed identity envelope for one anonymous session.
type PrincipalClaims struct {
	PrincipalID string    `json:"principal_id"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	KeyID       string    `json:"kid"`
}
