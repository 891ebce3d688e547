package feed_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/viralforge/suggestbox/internal/domain"
	"github.com/viralforge/suggestbox/internal/feed"
	"github.com/viralforge/suggestbox/internal/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() feed.Config {
	return feed.Config{
		APIKey:    "test-api-key",
		ProjectID: "testproj",
	}
}

// waitFor polls cond until it holds or the deadline expires. Identity and
// snapshot delivery cross goroutines, so assertions on their effects wait.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeIdentityProvider struct {
	mu        sync.Mutex
	signIns   int
	signInErr error
	listeners map[int]ports.IdentityListener
	nextID    int
	current   domain.Principal
	present   bool
	resolved  bool
}

func newFakeIdentityProvider() *fakeIdentityProvider {
	return &fakeIdentityProvider{listeners: make(map[int]ports.IdentityListener)}
}

func (p *fakeIdentityProvider) SignInAnonymously(_ context.Context) (domain.Principal, error) {
	p.mu.Lock()
	p.signIns++
	n := p.signIns
	err := p.signInErr
	p.mu.Unlock()

	if err != nil {
		return domain.Principal{}, err
	}
	principal := domain.Principal{ID: fmt.Sprintf("anon-%d", n), Token: fmt.Sprintf("token-%d", n)}
	p.transition(principal, true)
	return principal, nil
}

func (p *fakeIdentityProvider) IdentityChanges(listener ports.IdentityListener) (release func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	principal, present, resolved := p.current, p.present, p.resolved
	p.mu.Unlock()

	if resolved {
		listener(principal, present)
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

func (p *fakeIdentityProvider) signOut() {
	p.transition(domain.Principal{}, false)
}

func (p *fakeIdentityProvider) transition(principal domain.Principal, present bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = principal
	p.present = present
	p.resolved = true
	for _, listener := range p.listeners {
		listener(principal, present)
	}
}

func (p *fakeIdentityProvider) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *fakeIdentityProvider) signInCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signIns
}

type fakeSubscription struct {
	mu         sync.Mutex
	releases   int
	onSnapshot ports.SnapshotListener
	onError    ports.ErrorListener
}

func (s *fakeSubscription) Release() {
	s.mu.Lock()
	s.releases++
	s.mu.Unlock()
}

func (s *fakeSubscription) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

func (s *fakeSubscription) emit(docs []ports.Document) {
	s.onSnapshot(docs)
}

func (s *fakeSubscription) fail(err error) {
	s.onError(err)
}

type fakeLiveStore struct {
	mu             sync.Mutex
	subscribeCalls int
	subscribeErr   error
	appendErr      error
	appendGate     chan struct{}
	appends        []ports.Document
	appendPaths    []string
	docs           []ports.Document
	subs           []*fakeSubscription
	stamps         int
}

func newFakeLiveStore() *fakeLiveStore {
	return &fakeLiveStore{}
}

func (s *fakeLiveStore) Subscribe(_ context.Context, _ string, onSnapshot ports.SnapshotListener, onError ports.ErrorListener) (ports.Subscription, error) {
	s.mu.Lock()
	s.subscribeCalls++
	if s.subscribeErr != nil {
		err := s.subscribeErr
		s.mu.Unlock()
		return nil, err
	}
	sub := &fakeSubscription{onSnapshot: onSnapshot, onError: onError}
	s.subs = append(s.subs, sub)
	docs := append([]ports.Document(nil), s.docs...)
	s.mu.Unlock()

	sub.emit(docs)
	return sub, nil
}

func (s *fakeLiveStore) Append(_ context.Context, path string, doc ports.Document) (string, error) {
	s.mu.Lock()
	gate := s.appendGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	s.appends = append(s.appends, doc)
	s.appendPaths = append(s.appendPaths, path)
	if s.appendErr != nil {
		err := s.appendErr
		s.mu.Unlock()
		return "", err
	}
	s.stamps++
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(s.stamps) * time.Second)
	stored := ports.Document{
		ID:        fmt.Sprintf("doc-%d", s.stamps),
		Fields:    doc.Fields,
		CreatedAt: &stamp,
	}
	s.docs = append(s.docs, stored)
	docs := append([]ports.Document(nil), s.docs...)
	subs := append([]*fakeSubscription(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.emit(docs)
	}
	return stored.ID, nil
}

func (s *fakeLiveStore) appendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appends)
}

func (s *fakeLiveStore) subscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeCalls
}

func (s *fakeLiveStore) lastSub() *fakeSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return nil
	}
	return s.subs[len(s.subs)-1]
}

type sessionFixture struct {
	provider *fakeIdentityProvider
	store    *fakeLiveStore
	session  *feed.Session

	mu    sync.Mutex
	views []feed.View
}

func newSessionFixture(cfg feed.Config) *sessionFixture {
	f := &sessionFixture{
		provider: newFakeIdentityProvider(),
		store:    newFakeLiveStore(),
	}
	f.session = feed.NewSession(cfg, f.provider, f.store, f.recordView, testLogger())
	return f
}

func (f *sessionFixture) recordView(view feed.View) {
	f.mu.Lock()
	f.views = append(f.views, view)
	f.mu.Unlock()
}

func (f *sessionFixture) viewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.views)
}

// startResolved starts the session and waits until the anonymous principal
// has arrived and the feed subscription is open.
func (f *sessionFixture) startResolved(t *testing.T) {
	t.Helper()
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	waitFor(t, "identity and subscription", func() bool {
		return f.session.View().PrincipalID != "" && f.store.subscribeCount() == 1
	})
}
