package domain

import "errors"

var (
	// ErrInvalidConfig is fatal: configuration must be fixed out-of-band.
	// It halts initialization before any identity or store request is made.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrFeedUnavailable marks a failed live subscription. The state is
	// persistent for the session; recovery requires a fresh activation
	// (identity change or a new session), never an automatic retry.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrSubmissionFailed is scoped to a single submission attempt. The
	// draft is preserved so the user can resubmit manually.
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenExpired signals a principal token past its lifetime.
	ErrTokenExpired = errors.New("token expired")
)
