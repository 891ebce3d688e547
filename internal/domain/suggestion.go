package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxSuggestionChars is the submission length ceiling, counted in UTF-8
// scalars rather than bytes so multi-byte text gets the same budget.
const MaxSuggestionChars = 300

// Suggestion is one publicly visible entry in the shared feed.
// Entries are append-only: no field changes after the store commits them.
type Suggestion struct {
	ID       string
	Text     string
	AuthorID string
	// CreatedAt is assigned by the store at commit time. A nil value means
	// the entry is pending: the write is acknowledged but the server
	// timestamp has not been observed yet.
	CreatedAt *time.Time
	// Extra carries document fields this client does not model, untouched,
	// so older clients do not strip data written by newer ones.
	Extra map[string]any
}

// CreatedAtOrZero resolves a pending timestamp to the epoch for ordering.
func (s Suggestion) CreatedAtOrZero() time.Time {
	if s.CreatedAt == nil {
		return time.Time{}
	}
	return *s.CreatedAt
}

// ValidateSuggestionText enforces the input boundary for new submissions:
// trimmed non-empty, at most MaxSuggestionChars scalars.
func ValidateSuggestionText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("%w: suggestion text must not be empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(trimmed) > MaxSuggestionChars {
		return fmt.Errorf("%w: suggestion text must be <= %d characters", ErrInvalidInput, MaxSuggestionChars)
	}
	return nil
}

// SortFeed orders suggestions newest first. Pending entries sort as epoch
// zero, which places them last until their server timestamp resolves and the
// next snapshot re-sorts them into place. The sort is stable so entries with
// equal timestamps keep their store order across snapshots.
func SortFeed(feed []Suggestion) {
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].CreatedAtOrZero().After(feed[j].CreatedAtOrZero())
	})
}
