package domain

// Principal is the opaque, session-stable identity of the current user.
// It is issued once per anonymous sign-in and immutable until the session's
// authentication state is lost.
type Principal struct {
	ID string
	// Token is the bearer credential backing the principal. The feed core
	// never inspects it; it exists so transport adapters can attribute
	// writes without a second identity lookup.
	Token string
}

// Present reports whether the principal carries a usable identity.
func (p Principal) Present() bool {
	return p.ID != ""
}
