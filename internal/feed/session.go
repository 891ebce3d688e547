package feed

import (
	"context"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/viralforge/suggestbox/internal/domain"
	"github.com/viralforge/suggestbox/internal/ports"
)

// View is the presentation-facing projection of session state. Every emit
// carries the complete latest state; a consumer that misses an intermediate
// view loses nothing.
type View struct {
	Loading     bool
	Err         error
	PrincipalID string
	Feed        []domain.Suggestion
	Submitting  bool
	SubmitErr   error
	Draft       string
	DraftChars  int
}

// Session wires the bootstrapper, synchronizer and coordinator into one
// client lifecycle: identity gates the subscription, the subscription feeds
// the view, user intents flow back through the coordinator. Session state is
// owned by this single writer and only ever replaced wholesale.
type Session struct {
	cfg      Config
	provider ports.IdentityProvider
	store    ports.LiveStore
	logger   *slog.Logger
	onChange func(View)

	boot  *Bootstrapper
	coord *Coordinator

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	syncer          *Synchronizer
	releaseIdentity func()
	principal       domain.Principal
	present         bool
	loading         bool
	fatalErr        error
	submitErr       error
	draft           string
	closed          bool
}

// NewSession assembles an unstarted session. onChange receives a fresh view
// after every state transition; nil is allowed for poll-style consumers.
func NewSession(cfg Config, provider ports.IdentityProvider, store ports.LiveStore, onChange func(View), logger *slog.Logger) *Session {
	s := &Session{
		cfg:      cfg,
		provider: provider,
		store:    store,
		logger:   logger,
		onChange: onChange,
		loading:  true,
	}
	s.boot = NewBootstrapper(cfg, provider, logger)
	s.coord = NewCoordinator(store, cfg.SuggestionsPath(), s.currentPrincipal, s.emit, logger)
	return s
}

// Start begins the bootstrap sequence. A configuration error is fatal: it is
// recorded, emitted once and the session performs no further action.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.boot.Start(s.ctx); err != nil {
		s.mu.Lock()
		s.fatalErr = err
		s.loading = false
		s.mu.Unlock()
		s.emit()
		return err
	}

	// Registration happens outside the state lock: an already resolved
	// identity replays synchronously into handleIdentity.
	release := s.boot.IdentityChanges(s.handleIdentity)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		release()
		return nil
	}
	s.releaseIdentity = release
	s.mu.Unlock()
	return nil
}

// UpdateDraft replaces the input buffer. This is the input boundary: a draft
// longer than the character budget is rejected here and never reaches the
// coordinator, mirroring a hard length cap on the input control.
func (s *Session) UpdateDraft(text string) {
	if utf8.RuneCountInString(text) > domain.MaxSuggestionChars {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.draft = text
	s.mu.Unlock()
	s.emit()
}

// Submit forwards the current draft. On success the draft is cleared; on
// failure it is left untouched so the user can retry manually. Guard
// rejections (empty draft, absent identity, in-flight submission) change
// nothing.
func (s *Session) Submit(ctx context.Context) {
	s.mu.Lock()
	draft := s.draft
	s.mu.Unlock()

	if domain.ValidateSuggestionText(draft) != nil {
		return
	}

	accepted, err := s.coord.Submit(ctx, draft)
	if !accepted {
		return
	}

	s.mu.Lock()
	if err != nil {
		s.submitErr = err
	} else {
		s.draft = ""
		s.submitErr = nil
	}
	s.mu.Unlock()
	s.emit()
}

// View returns the current presentation state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Close tears the session down: the feed subscription and the identity
// subscription are released before Close returns, so no callback fires into
// a destroyed session. Double-Close is safe.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	syncer := s.syncer
	s.syncer = nil
	release := s.releaseIdentity
	s.releaseIdentity = nil
	s.mu.Unlock()

	if syncer != nil {
		syncer.Close()
	}
	if release != nil {
		release()
	}
	s.boot.Close()
	if s.cancel != nil {
		s.cancel()
	}
}

// handleIdentity applies one identity transition. Any active subscription is
// released before a new one opens, so a lost identity can never leave a
// stale watch running.
func (s *Session) handleIdentity(evt IdentityEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	previous := s.syncer
	s.syncer = nil
	s.loading = false
	if evt.Err != nil {
		s.fatalErr = evt.Err
		s.principal = domain.Principal{}
		s.present = false
	} else {
		s.principal = evt.Principal
		s.present = evt.Present
	}
	activate := s.present
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	if activate {
		next := NewSynchronizer(s.store, s.cfg.SuggestionsPath(), s.emit, s.logger)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			s.emit()
			return
		}
		s.syncer = next
		s.mu.Unlock()
		// Activation failure publishes a feed error snapshot; no retry.
		_ = next.Activate(s.ctx)
	}
	s.emit()
}

func (s *Session) currentPrincipal() (domain.Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal, s.present && !s.closed
}

func (s *Session) emit() {
	s.mu.Lock()
	if s.closed || s.onChange == nil {
		s.mu.Unlock()
		return
	}
	view := s.viewLocked()
	onChange := s.onChange
	s.mu.Unlock()
	onChange(view)
}

func (s *Session) viewLocked() View {
	view := View{
		Loading:     s.loading,
		Err:         s.fatalErr,
		PrincipalID: s.principal.ID,
		Submitting:  s.coord.InFlight(),
		SubmitErr:   s.submitErr,
		Draft:       s.draft,
		DraftChars:  utf8.RuneCountInString(s.draft),
	}
	if s.syncer != nil {
		snapshot := s.syncer.Current()
		view.Feed = snapshot.Suggestions
		if view.Err == nil && snapshot.Err != nil {
			view.Err = snapshot.Err
		}
	}
	return view
}
