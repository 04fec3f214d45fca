// Package resilience provides a circuit breaker and provider failover for
// the transcription backends.
//
// [Breaker] is a three-state breaker (closed, open, half-open) that stops
// calling a backend after repeated failures. [Failover] tries a primary
// backend and then its fallbacks in order, each behind its own breaker.
// [STTFailover] applies both to [stt.Provider].
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Call] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: circuit breaker is open")

// Breaker defaults.
const (
	DefaultMaxFailures = 5
	DefaultCooldown    = 30 * time.Second
	DefaultProbes      = 1
)

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrOpen] until the cooldown has passed.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. Enough
	// successful probes close the breaker; any failure opens it again.
	StateHalfOpen
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero values select the defaults.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// Cooldown is how long an open breaker rejects calls before probing.
	// Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close
	// the breaker. At most this many probes run at once. Default: 1.
	Probes int

	// Neutral reports errors that say nothing about the backend's health,
	// such as a cancelled request. Neutral errors neither count as failures
	// nor as successes. Optional.
	Neutral func(error) bool

	// Now replaces time.Now. Optional; used by tests.
	Now func() time.Time
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probing   int
	probeWins int
}

// NewBreaker creates a [Breaker] from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Probes <= 0 {
		cfg.Probes = DefaultProbes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// Call runs fn unless the breaker is open, in which case it returns
// [ErrOpen] without calling fn. fn's error is returned unchanged.
func (b *Breaker) Call(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	err = fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probing--
	}
	switch {
	case err == nil:
		b.succeed(probe)
	case b.cfg.Neutral != nil && b.cfg.Neutral(err):
	default:
		b.fail(probe)
	}
	return err
}

// admit decides whether a call may proceed and whether it is a probe.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrOpen
		}
		b.state = StateHalfOpen
		b.probeWins = 0
		slog.Info("circuit breaker half-open", "name", b.cfg.Name)
	}
	if b.state == StateHalfOpen {
		if b.probing >= b.cfg.Probes {
			return false, ErrOpen
		}
		b.probing++
		return true, nil
	}
	return false, nil
}

// succeed must be called with b.mu held.
func (b *Breaker) succeed(probe bool) {
	if !probe {
		b.failures = 0
		return
	}
	if b.state != StateHalfOpen {
		return
	}
	b.probeWins++
	if b.probeWins >= b.cfg.Probes {
		b.state = StateClosed
		b.failures = 0
		slog.Info("circuit breaker closed", "name", b.cfg.Name)
	}
}

// fail must be called with b.mu held.
func (b *Breaker) fail(probe bool) {
	if probe {
		b.open()
		return
	}
	b.failures++
	if b.state == StateClosed && b.failures >= b.cfg.MaxFailures {
		b.open()
	}
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.cfg.Now()
	slog.Warn("circuit breaker opened", "name", b.cfg.Name, "consecutive_failures", b.failures)
}

// State returns the current state. An open breaker whose cooldown has
// passed reports [StateHalfOpen]; the transition happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probeWins = 0
}
