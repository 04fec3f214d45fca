package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no member of a [Failover] succeeded.
var ErrAllFailed = errors.New("resilience: all backends failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Failover holds a primary backend and its fallbacks, each guarded by its
// own [Breaker]. Members are tried in the order they were added.
type Failover[T any] struct {
	cfg     BreakerConfig
	members []member[T]
}

// NewFailover creates a [Failover] with primary as its first member. cfg is
// the template for every member's breaker; its Name is replaced by the
// member name.
func NewFailover[T any](name string, primary T, cfg BreakerConfig) *Failover[T] {
	f := &Failover[T]{cfg: cfg}
	f.Add(name, primary)
	return f
}

// Add appends a fallback. Add is not safe to call concurrently with [Try].
func (f *Failover[T]) Add(name string, fallback T) {
	cfg := f.cfg
	cfg.Name = name
	f.members = append(f.members, member[T]{name: name, value: fallback, breaker: NewBreaker(cfg)})
}

// Names returns the member names in trial order.
func (f *Failover[T]) Names() []string {
	names := make([]string, len(f.members))
	for i, m := range f.members {
		names[i] = m.name
	}
	return names
}

// State returns the breaker state of the named member.
func (f *Failover[T]) State(name string) (State, bool) {
	for _, m := range f.members {
		if m.name == name {
			return m.breaker.State(), true
		}
	}
	return 0, false
}

// Try calls fn with each member until one succeeds. Members with an open
// breaker are skipped. A neutral error (see [BreakerConfig.Neutral]) or a
// done ctx stops the search and is returned as is. Otherwise, when every
// member fails, the result wraps [ErrAllFailed] and each member's error.
func Try[T, R any](ctx context.Context, f *Failover[T], fn func(T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for _, m := range f.members {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		var out R
		err := m.breaker.Call(func() error {
			var err error
			out, err = fn(m.value)
			return err
		})
		if err == nil {
			return out, nil
		}
		if f.cfg.Neutral != nil && f.cfg.Neutral(err) {
			return zero, err
		}
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping backend with open circuit", "backend", m.name)
		} else {
			slog.Warn("backend failed, trying next", "backend", m.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
