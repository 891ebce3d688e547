// Package store composes durable persistence with change fan-out into the
// live collection capability the feed core subscribes to: append-only
// writes, server-assigned creation timestamps, and full-set snapshots per
// change notification.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/viralforge/suggestbox/internal/ports"
)

type LiveStore struct {
	repo     ports.SuggestionRepository
	notifier ports.ChangeNotifier
	logger   *slog.Logger
}

func New(repo ports.SuggestionRepository, notifier ports.ChangeNotifier, logger *slog.Logger) *LiveStore {
	return &LiveStore{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Append persists one document and signals every subscriber of path. The
// row is committed before the signal goes out, so a subscriber that
// re-materializes on the signal always sees the new entry.
func (s *LiveStore) Append(ctx context.Context, path string, doc ports.Document) (string, error) {
	stored, err := s.repo.Insert(ctx, path, doc)
	if err != nil {
		return "", err
	}
	if err := s.notifier.Publish(ctx, path, []byte(stored.ID)); err != nil {
		// The write is durable; subscribers catch up on the next change
		// signal. Surfacing this as a submission failure would invite a
		// duplicate retry of a committed row.
		s.logger.WarnContext(ctx, "change signal dropped",
			"module", "store.live",
			"layer", "adapter",
			"operation", "append",
			"outcome", "partial",
			"path", path,
			"error", err,
		)
	}
	return stored.ID, nil
}

// Subscribe opens a live watch on path. The current document set is
// delivered first, then one full snapshot per change signal. Delivery stops
// permanently once Release is called or an error is reported.
func (s *LiveStore) Subscribe(ctx context.Context, path string, onSnapshot ports.SnapshotListener, onError ports.ErrorListener) (ports.Subscription, error) {
	signals, watchErrs, releaseWatch, err := s.notifier.Watch(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open change watch: %w", err)
	}

	sub := &liveSubscription{releaseWatch: releaseWatch}

	go func() {
		// Initial materialization mirrors a change notification: the
		// subscriber starts from the complete current set.
		if !sub.materialize(ctx, s.repo, path, onSnapshot, onError) {
			return
		}
		for {
			select {
			case _, ok := <-signals:
				if !ok {
					return
				}
				if !sub.materialize(ctx, s.repo, path, onSnapshot, onError) {
					return
				}
			case watchErr := <-watchErrs:
				sub.deliverError(onError, watchErr)
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

// liveSubscription serializes callback delivery behind a mutex so Release
// is a synchronous barrier: once it returns, no listener can fire again.
type liveSubscription struct {
	mu           sync.Mutex
	released     bool
	releaseWatch func()
}

func (l *liveSubscription) Release() {
	l.mu.Lock()
	l.released = true
	l.mu.Unlock()
	l.releaseWatch()
}

// materialize loads the full set and delivers it. It returns false when the
// subscription is finished (released or failed).
func (l *liveSubscription) materialize(ctx context.Context, repo ports.SuggestionRepository, path string, onSnapshot ports.SnapshotListener, onError ports.ErrorListener) bool {
	docs, err := repo.List(ctx, path)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return false
	}
	if err != nil {
		l.released = true
		onError(fmt.Errorf("materialize %s: %w", path, err))
		return false
	}
	onSnapshot(docs)
	return true
}

func (l *liveSubscription) deliverError(onError ports.ErrorListener, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	onError(err)
}
