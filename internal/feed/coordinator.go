package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/viralforge/suggestbox/internal/domain"
	"github.com/viralforge/suggestbox/internal/ports"
)

// Coordinator validates and forwards new entries to the shared collection.
// At most one submission is in flight per client; the in-flight flag is
// observable so the presentation layer can disable resubmission.
type Coordinator struct {
	store     ports.LiveStore
	path      string
	principal func() (domain.Principal, bool)
	logger    *slog.Logger

	inFlight atomic.Bool
	onState  func()
}

// NewCoordinator binds a coordinator to the collection path. principal
// resolves the current identity at submission time; onState fires whenever
// the in-flight flag flips.
func NewCoordinator(store ports.LiveStore, path string, principal func() (domain.Principal, bool), onState func(), logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		path:      path,
		principal: principal,
		onState:   onState,
		logger:    logger,
	}
}

// InFlight reports whether a submission is awaiting acknowledgment.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Submit appends one entry and waits for the write acknowledgment.
//
// Preconditions are checked synchronously with no I/O: empty trimmed text,
// an absent store handle or principal, or an in-flight submission all make
// the call a silent no-op (accepted=false, nil error). These are guards
// against accidental submissions, not user-facing failures.
//
// The acknowledged entry reaches the feed only through the next subscription
// notification; there is no optimistic local insertion, so the feed stays
// the single source of truth.
func (c *Coordinator) Submit(ctx context.Context, text string) (accepted bool, err error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || c.store == nil {
		return false, nil
	}
	principal, present := c.principal()
	if !present {
		return false, nil
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		// A submission is already awaiting acknowledgment.
		return false, nil
	}
	c.notifyState()
	defer func() {
		c.inFlight.Store(false)
		c.notifyState()
	}()

	// nil CreatedAt requests the server-assigned commit timestamp.
	_, appendErr := c.store.Append(ctx, c.path, ports.Document{
		Fields: map[string]any{
			"text":     trimmed,
			"authorId": principal.ID,
		},
	})
	if appendErr != nil {
		c.logger.WarnContext(ctx, "suggestion append failed",
			"module", "feed.coordinator",
			"operation", "submit",
			"outcome", "failure",
			"path", c.path,
			"error", appendErr,
		)
		return true, fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, appendErr)
	}
	return true, nil
}

func (c *Coordinator) notifyState() {
	if c.onState != nil {
		c.onState()
	}
}
