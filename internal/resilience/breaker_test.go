package resilience_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/podium/internal/resilience"
)

var errBackend = errors.New("backend down")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{Name: "test", MaxFailures: 3, Now: newFakeClock().Now})

	_ = b.Call(fail)
	_ = b.Call(fail)
	_ = b.Call(succeed) // resets the streak
	_ = b.Call(fail)
	_ = b.Call(fail)
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}

	if err := b.Call(fail); !errors.Is(err, errBackend) {
		t.Fatalf("err = %v, want backend error", err)
	}
	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	called := false
	err := b.Call(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, resilience.ErrOpen) || called {
		t.Errorf("open breaker: err = %v, called = %v", err, called)
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		needed    int
		probes    []func() error
		wantState resilience.State
	}{
		{name: "successful probe closes", needed: 1, probes: []func() error{succeed}, wantState: resilience.StateClosed},
		{name: "failed probe reopens", needed: 1, probes: []func() error{fail}, wantState: resilience.StateOpen},
		{name: "second probe needed", needed: 2, probes: []func() error{succeed}, wantState: resilience.StateHalfOpen},
		{name: "late probe failure reopens", needed: 2, probes: []func() error{succeed, fail}, wantState: resilience.StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock()
			b := resilience.NewBreaker(resilience.BreakerConfig{
				MaxFailures: 1,
				Cooldown:    time.Minute,
				Probes:      tt.needed,
				Now:         clock.Now,
			})
			_ = b.Call(fail)

			clock.Advance(59 * time.Second)
			if err := b.Call(succeed); !errors.Is(err, resilience.ErrOpen) {
				t.Fatalf("before cooldown: err = %v, want ErrOpen", err)
			}
			clock.Advance(time.Second)
			if got := b.State(); got != resilience.StateHalfOpen {
				t.Fatalf("after cooldown: state = %v, want half-open", got)
			}

			for _, p := range tt.probes {
				_ = b.Call(p)
			}
			if got := b.State(); got != tt.wantState {
				t.Errorf("state = %v, want %v", got, tt.wantState)
			}
		})
	}
}

func TestBreaker_HalfOpenLimitsConcurrentProbes(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := resilience.NewBreaker(resilience.BreakerConfig{MaxFailures: 1, Cooldown: time.Second, Now: clock.Now})
	_ = b.Call(fail)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Call(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.Call(succeed); !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("second probe: err = %v, want ErrOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if got := b.State(); got != resilience.StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestBreaker_NeutralErrorsDoNotCount(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{
		MaxFailures: 1,
		Neutral:     func(err error) bool { return errors.Is(err, context.Canceled) },
	})
	for range 5 {
		_ = b.Call(func() error { return context.Canceled })
	}
	if got := b.State(); got != resilience.StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker(resilience.BreakerConfig{MaxFailures: 1})
	_ = b.Call(fail)
	b.Reset()
	if got := b.State(); got != resilience.StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	for s, want := range map[resilience.State]string{
		resilience.StateClosed:   "closed",
		resilience.StateOpen:     "open",
		resilience.StateHalfOpen: "half-open",
		resilience.State(9):      "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
