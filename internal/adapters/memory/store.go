// Package memory provides a process-local live store so the binary runs
// with zero backing services. It honors the same contract as the composed
// Postgres/Redis store: append-only writes, server-assigned monotonic
// timestamps, full-set snapshots per change.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/suggestbox/internal/ports"
)

type LiveStore struct {
	mu          sync.Mutex
	collections map[string][]ports.Document
	watchers    map[string]map[int]*subscription
	nextID      int
	lastStamp   time.Time
	nowFn       func() time.Time
}

func NewLiveStore() *LiveStore {
	return &LiveStore{
		collections: make(map[string][]ports.Document),
		watchers:    make(map[string]map[int]*subscription),
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// Append commits one document with a store-assigned id and a timestamp that
// is strictly monotonic per write, then notifies every watcher of path with
// the full updated set.
func (s *LiveStore) Append(_ context.Context, path string, doc ports.Document) (string, error) {
	s.mu.Lock()
	stored := s.insertLocked(path, doc)
	docs := s.snapshotLocked(path)
	subs := make([]*subscription, 0, len(s.watchers[path]))
	for _, sub := range s.watchers[path] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(docs)
	}
	return stored.ID, nil
}

// Subscribe registers a watcher and synchronously delivers the current set
// before returning, so a fresh subscriber never renders an empty feed while
// documents exist.
func (s *LiveStore) Subscribe(_ context.Context, path string, onSnapshot ports.SnapshotListener, onError ports.ErrorListener) (ports.Subscription, error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	sub := &subscription{
		onSnapshot: onSnapshot,
		remove: func() {
			s.mu.Lock()
			delete(s.watchers[path], id)
			s.mu.Unlock()
		},
	}
	if s.watchers[path] == nil {
		s.watchers[path] = make(map[int]*subscription)
	}
	s.watchers[path][id] = sub
	docs := s.snapshotLocked(path)
	s.mu.Unlock()

	sub.deliver(docs)
	return sub, nil
}

// Insert persists one document without notifying watchers. It is the
// repository half of the contract; Append composes it with notification.
func (s *LiveStore) Insert(_ context.Context, path string, doc ports.Document) (ports.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(path, doc), nil
}

// List returns the current contents of path in commit order.
func (s *LiveStore) List(_ context.Context, path string) ([]ports.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(path), nil
}

// insertLocked commits one document with a store-assigned id and a stamp
// that is strictly monotonic even when the clock does not advance.
func (s *LiveStore) insertLocked(path string, doc ports.Document) ports.Document {
	stamp := s.nowFn()
	if !stamp.After(s.lastStamp) {
		stamp = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = stamp

	stored := ports.Document{
		ID:        uuid.NewString(),
		Fields:    cloneFields(doc.Fields),
		CreatedAt: &stamp,
	}
	s.collections[path] = append(s.collections[path], stored)
	return stored
}

func (s *LiveStore) snapshotLocked(path string) []ports.Document {
	src := s.collections[path]
	docs := make([]ports.Document, len(src))
	for i, doc := range src {
		docs[i] = ports.Document{
			ID:        doc.ID,
			Fields:    cloneFields(doc.Fields),
			CreatedAt: doc.CreatedAt,
		}
	}
	return docs
}

type subscription struct {
	mu         sync.Mutex
	released   bool
	onSnapshot ports.SnapshotListener
	remove     func()
}

// deliver serializes snapshot callbacks so Release is a synchronous barrier.
func (s *subscription) deliver(docs []ports.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.onSnapshot(docs)
}

// Release stops delivery; it is idempotent and returns only after any
// in-flight callback has finished.
func (s *subscription) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()
	s.remove()
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
