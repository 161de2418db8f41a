package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no member of a [Group] could serve a call.
// The last member's error stays in the chain.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [Group]. Breaker is the template for every
// member's breaker; its Name is replaced by the member name.
type FallbackConfig struct {
	Breaker BreakerConfig
	Logger  *slog.Logger
}

// MemberStatus is a point-in-time view of one group member.
type MemberStatus struct {
	Name  string
	State State
}

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Group holds backends of one type in preference order, each behind its own
// [Breaker]. Members must all be added before the group is shared.
type Group[T any] struct {
	cfg     FallbackConfig
	members []member[T]
}

// NewGroup returns a [Group] whose first and preferred member is primary.
func NewGroup[T any](name string, primary T, cfg FallbackConfig) *Group[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Breaker.Logger == nil {
		cfg.Breaker.Logger = cfg.Logger
	}
	g := &Group[T]{cfg: cfg}
	g.Add(name, primary)
	return g
}

// Add appends a member tried after all earlier ones.
func (g *Group[T]) Add(name string, v T) {
	bc := g.cfg.Breaker
	bc.Name = name
	g.members = append(g.members, member[T]{name: name, value: v, breaker: NewBreaker(bc)})
}

// Status lists every member's breaker state in preference order.
func (g *Group[T]) Status() []MemberStatus {
	out := make([]MemberStatus, 0, len(g.members))
	for _, m := range g.members {
		out = append(out, MemberStatus{Name: m.name, State: m.breaker.State()})
	}
	return out
}

// Try calls fn with each member in order and returns the first success.
// Members whose breaker is open are skipped. Once ctx is done no further
// member is tried.
func Try[T, R any](ctx context.Context, g *Group[T], fn func(T) (R, error)) (R, error) {
	var (
		out     R
		lastErr error
	)
	for i, m := range g.members {
		if err := ctx.Err(); err != nil {
			lastErr = cmpErr(lastErr, err)
			break
		}
		err := m.breaker.Do(func() error {
			var callErr error
			out, callErr = fn(m.value)
			return callErr
		})
		switch {
		case err == nil:
			if i > 0 {
				g.cfg.Logger.Info("served by fallback provider", "provider", m.name, "position", i)
			}
			return out, nil
		case errors.Is(err, ErrCircuitOpen):
			g.cfg.Logger.Debug("provider skipped, circuit open", "provider", m.name)
		default:
			g.cfg.Logger.Warn("provider failed", "provider", m.name, "err", err)
		}
		lastErr = err
	}
	var zero R
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// cmpErr returns prev when set, otherwise next.
func cmpErr(prev, next error) error {
	if prev != nil {
		return prev
	}
	return next
}
