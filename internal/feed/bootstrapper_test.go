package feed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/viralforge/suggestbox/internal/domain"
	"github.com/viralforge/suggestbox/internal/feed"
	"github.com/viralforge/suggestbox/internal/ports"
)

func TestBootstrapperSignsInExactlyOnce(t *testing.T) {
	t.Parallel()

	provider := newFakeIdentityProvider()
	boot := feed.NewBootstrapper(testConfig(), provider, testLogger())
	defer boot.Close()

	got := make(chan feed.IdentityEvent, 4)
	release := boot.IdentityChanges(func(evt feed.IdentityEvent) { got <- evt })
	defer release()

	if err := boot.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := boot.Start(context.Background()); err != nil {
		t.Fatalf("repeat start failed: %v", err)
	}

	evt := <-got
	if !evt.Present || evt.Principal.ID == "" {
		t.Fatalf("expected present principal, got %+v", evt)
	}
	waitFor(t, "single sign-in", func() bool { return provider.signInCount() == 1 })
	if n := provider.signInCount(); n != 1 {
		t.Fatalf("expected exactly one sign-in, got %d", n)
	}
}

func TestBootstrapperInvalidConfigNoSignIn(t *testing.T) {
	t.Parallel()

	provider := newFakeIdentityProvider()
	boot := feed.NewBootstrapper(feed.Config{ProjectID: "testproj"}, provider, testLogger())
	defer boot.Close()

	err := boot.Start(context.Background())
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if n := provider.signInCount(); n != 0 {
		t.Fatalf("expected no sign-in after config rejection, got %d", n)
	}
}

func TestBootstrapperReplaysStateToLateListener(t *testing.T) {
	t.Parallel()

	provider := newFakeIdentityProvider()
	boot := feed.NewBootstrapper(testConfig(), provider, testLogger())
	defer boot.Close()

	if err := boot.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, "sign-in", func() bool { return provider.signInCount() == 1 })

	got := make(chan feed.IdentityEvent, 1)
	release := boot.IdentityChanges(func(evt feed.IdentityEvent) {
		select {
		case got <- evt:
		default:
		}
	})
	defer release()

	evt := <-got
	if !evt.Present {
		t.Fatalf("late listener should replay the resolved identity, got %+v", evt)
	}
}

func TestBootstrapperRelaysSignInFailure(t *testing.T) {
	t.Parallel()

	provider := newFakeIdentityProvider()
	provider.signInErr = errors.New("auth backend down")
	boot := feed.NewBootstrapper(testConfig(), provider, testLogger())
	defer boot.Close()

	got := make(chan feed.IdentityEvent, 1)
	release := boot.IdentityChanges(func(evt feed.IdentityEvent) {
		select {
		case got <- evt:
		default:
		}
	})
	defer release()

	if err := boot.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	evt := <-got
	if evt.Err == nil || evt.Present {
		t.Fatalf("expected failure event with absent principal, got %+v", evt)
	}
	// The failure is terminal for this session, no second attempt.
	if n := provider.signInCount(); n != 1 {
		t.Fatalf("expected a single sign-in attempt, got %d", n)
	}
}

// gatedProvider pauses inside IdentityChanges so a test can interleave
// Close with a Start that is mid-registration.
type gatedProvider struct {
	*fakeIdentityProvider
	entered chan struct{}
	resume  chan struct{}
}

func (p *gatedProvider) IdentityChanges(listener ports.IdentityListener) (release func()) {
	close(p.entered)
	<-p.resume
	return p.fakeIdentityProvider.IdentityChanges(listener)
}

func TestBootstrapperCloseDuringStartReleasesProvider(t *testing.T) {
	t.Parallel()

	provider := &gatedProvider{
		fakeIdentityProvider: newFakeIdentityProvider(),
		entered:              make(chan struct{}),
		resume:               make(chan struct{}),
	}
	boot := feed.NewBootstrapper(testConfig(), provider, testLogger())

	started := make(chan error, 1)
	go func() { started <- boot.Start(context.Background()) }()

	<-provider.entered
	boot.Close()
	close(provider.resume)

	if err := <-started; err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, "provider registration drop", func() bool {
		return provider.listenerCount() == 0
	})
}

func TestBootstrapperCloseStopsDelivery(t *testing.T) {
	t.Parallel()

	provider := newFakeIdentityProvider()
	boot := feed.NewBootstrapper(testConfig(), provider, testLogger())

	delivered := 0
	boot.IdentityChanges(func(feed.IdentityEvent) { delivered++ })

	boot.Close()
	boot.Close()

	if err := boot.Start(context.Background()); err != nil {
		t.Fatalf("start after close failed: %v", err)
	}
	provider.transition(domain.Principal{ID: "late"}, true)
	if delivered != 0 {
		t.Fatalf("expected no delivery after close, got %d", delivered)
	}
}
