// Package resilience keeps a failing synthesis backend from stalling renders.
//
// A [Breaker] stops calling a backend after a run of failures and lets a few
// probe calls through once a cooldown has passed. A [Group] orders several
// backends of one type behind their own breakers and serves each call from
// the first healthy one; [SynthFallback] is the group for baseline
// synthesizers.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the mode a [Breaker] is in.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota
	// StateOpen rejects calls with [ErrCircuitOpen] until the cooldown ends.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// BreakerConfig tunes a [Breaker]. Zero fields take the defaults noted.
type BreakerConfig struct {
	// Name identifies the guarded backend in logs and transition callbacks.
	Name string

	// Threshold is the number of consecutive failures that opens the
	// breaker. Default: 5.
	Threshold int

	// Cooldown is how long an open breaker waits before probing. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close
	// again. It also caps concurrent probes. Default: 3.
	Probes int

	// OnTransition, if set, is called with the breaker name and new state
	// whenever the state changes. It runs with the breaker locked and must
	// not call back into it.
	OnTransition func(name string, to State)

	Logger *slog.Logger
	Now    func() time.Time
}

func (c *BreakerConfig) applyDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Probes <= 0 {
		c.Probes = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Breaker is a three-state circuit breaker for one backend.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inFlight int // half-open probes not yet finished
	passed   int // half-open probes that succeeded
}

// NewBreaker returns a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	cfg.applyDefaults()
	return &Breaker{cfg: cfg}
}

// Do calls fn unless the breaker is open or all probe slots are taken.
// Errors wrapping [context.Canceled] are returned without counting as a
// failure; a deadline does count.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.settle(probe, err)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrCircuitOpen
		}
		b.inFlight, b.passed = 0, 0
		b.moveTo(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.inFlight >= b.cfg.Probes {
			return false, ErrCircuitOpen
		}
		b.inFlight++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) settle(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.inFlight--
	}
	switch {
	case errors.Is(err, context.Canceled):
	case err != nil:
		b.failures++
		if probe || b.failures >= b.cfg.Threshold {
			if b.state != StateOpen {
				b.cfg.Logger.Warn("synthesis backend circuit opened",
					"backend", b.cfg.Name, "consecutive_failures", b.failures, "err", err)
			}
			b.openedAt = b.cfg.Now()
			b.moveTo(StateOpen)
		}
	case !probe:
		b.failures = 0
	case b.state == StateHalfOpen:
		b.passed++
		if b.passed >= b.cfg.Probes {
			b.failures = 0
			b.cfg.Logger.Info("synthesis backend recovered", "backend", b.cfg.Name)
			b.moveTo(StateClosed)
		}
	}
}

// moveTo must be called with b.mu held.
func (b *Breaker) moveTo(s State) {
	if b.state == s {
		return
	}
	b.state = s
	if b.cfg.OnTransition != nil {
		b.cfg.OnTransition(b.cfg.Name, s)
	}
}

// State reports the current state. An open breaker whose cooldown has passed
// reports [StateHalfOpen]; it switches for real on the next [Breaker.Do].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.cfg.Now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}
