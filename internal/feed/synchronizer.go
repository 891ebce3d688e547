package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viralforge/suggestbox/internal/domain"
	"github.com/viralforge/suggestbox/internal/ports"
)

// Snapshot is one atomically published feed state. Either Suggestions is the
// complete, freshly sorted feed or Err reports a dead subscription; consumers
// always read the latest value and never patch a previous one.
type Snapshot struct {
	Suggestions []domain.Suggestion
	Err         error
}

// Synchronizer owns the single live subscription to the shared suggestion
// collection. It activates only once both a store handle and a present
// principal exist, republishes a sorted snapshot per change notification and
// releases the subscription on every exit path.
type Synchronizer struct {
	store  ports.LiveStore
	path   string
	logger *slog.Logger

	snapshot atomic.Pointer[Snapshot]
	onUpdate func()

	mu     sync.Mutex
	sub    ports.Subscription
	active bool
	closed bool
}

// NewSynchronizer prepares an inactive synchronizer for path. onUpdate is
// invoked after every snapshot swap; it must be cheap and non-blocking.
func NewSynchronizer(store ports.LiveStore, path string, onUpdate func(), logger *slog.Logger) *Synchronizer {
	s := &Synchronizer{
		store:    store,
		path:     path,
		onUpdate: onUpdate,
		logger:   logger,
	}
	s.snapshot.Store(&Snapshot{})
	return s
}

// Activate opens the live subscription. A synchronizer activates at most
// once; recovery after an error or teardown requires a fresh synchronizer,
// never a retry on this one.
func (s *Synchronizer) Activate(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.active {
		s.mu.Unlock()
		return errors.New("synchronizer is not activatable")
	}
	s.active = true
	s.mu.Unlock()

	sub, err := s.store.Subscribe(ctx, s.path, s.applySnapshot, s.applyError)
	if err != nil {
		s.publish(&Snapshot{Err: fmt.Errorf("%w: %v", domain.ErrFeedUnavailable, err)})
		return err
	}

	s.mu.Lock()
	if s.closed {
		// Torn down while subscribing; do not leak the watch.
		s.mu.Unlock()
		sub.Release()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "feed subscription opened",
		"module", "feed.synchronizer",
		"operation", "activate",
		"outcome", "success",
		"path", s.path,
	)
	return nil
}

// Current returns the latest published snapshot. It never blocks and never
// observes a partially updated feed.
func (s *Synchronizer) Current() Snapshot {
	return *s.snapshot.Load()
}

// Close releases the subscription and returns only after no further snapshot
// can be published into this synchronizer. Double-Close is safe.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Release()
	}
}

// applySnapshot materializes a change notification: map every document, sort
// newest first with pending timestamps last, and swap the published snapshot
// in one step.
func (s *Synchronizer) applySnapshot(docs []ports.Document) {
	feed := make([]domain.Suggestion, 0, len(docs))
	for _, doc := range docs {
		feed = append(feed, SuggestionFromDocument(doc))
	}
	domain.SortFeed(feed)
	s.publish(&Snapshot{Suggestions: feed})
}

func (s *Synchronizer) applyError(err error) {
	s.logger.Error("feed subscription failed",
		"module", "feed.synchronizer",
		"operation", "subscription",
		"outcome", "failure",
		"path", s.path,
		"error", err,
	)
	s.publish(&Snapshot{Err: fmt.Errorf("%w: %v", domain.ErrFeedUnavailable, err)})
}

// publish guards against stale callbacks: a subscription released by Close
// must not mutate published state even if a notification is still in flight.
func (s *Synchronizer) publish(next *Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.snapshot.Store(next)
	onUpdate := s.onUpdate
	s.mu.Unlock()

	if onUpdate != nil {
		onUpdate()
	}
}

// SuggestionFromDocument maps a raw store document onto the feed model.
// Fields this client does not know about are preserved opaquely in Extra.
func SuggestionFromDocument(doc ports.Document) domain.Suggestion {
	sug := domain.Suggestion{ID: doc.ID}
	if doc.CreatedAt != nil {
		ts := *doc.CreatedAt
		sug.CreatedAt = &ts
	}
	for key, value := range doc.Fields {
		switch key {
		case "text":
			if text, ok := value.(string); ok {
				sug.Text = text
				continue
			}
		case "authorId":
			if author, ok := value.(string); ok {
				sug.AuthorID = author
				continue
			}
		case "createdAt":
			if ts, ok := value.(time.Time); ok && sug.CreatedAt == nil {
				sug.CreatedAt = &ts
				continue
			}
		}
		if sug.Extra == nil {
			sug.Extra = make(map[string]any)
		}
		sug.Extra[key] = value
	}
	return sug
}
