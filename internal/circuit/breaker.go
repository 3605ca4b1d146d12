// Package circuit implements the process-wide failure breaker that suspends
// the tick loop after repeated cycle failures.
package circuit

import (
	"sync"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// Config holds breaker thresholds.
type Config struct {
	MaxErrors int
	Cooldown  time.Duration
}

// DefaultConfig returns five failures and a five minute cool-down.
func DefaultConfig() Config {
	return Config{MaxErrors: 5, Cooldown: 300 * time.Second}
}

// Breaker counts consecutive failures and opens for a fixed cool-down once
// the count reaches MaxErrors. Once open, only the elapsed cool-down closes it.
type Breaker struct {
	cfg Config

	mu      sync.Mutex
	state   domain.CircuitBreakerState
	onTrip  func(domain.CircuitBreakerState)
	onReset func()
}

// NewBreaker returns a closed breaker. Non-positive fields of cfg fall back to
// DefaultConfig.
func NewBreaker(cfg Config) *Breaker {
	d := DefaultConfig()
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = d.MaxErrors
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = d.Cooldown
	}
	return &Breaker{cfg: cfg}
}

// OnTrip sets the callback invoked when the breaker opens.
func (b *Breaker) OnTrip(fn func(domain.CircuitBreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = fn
}

// OnReset sets the callback invoked when the cool-down elapses.
func (b *Breaker) OnReset(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReset = fn
}

// RecordSuccess zeroes the failure count. It never closes an open breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.ConsecutiveFailures = 0
}

// RecordFailure counts a failed cycle now.
func (b *Breaker) RecordFailure() {
	b.RecordFailureAt(time.Now())
}

// RecordFailureAt counts a failed cycle and opens the breaker when the count
// reaches MaxErrors.
func (b *Breaker) RecordFailureAt(now time.Time) {
	b.mu.Lock()
	b.state.ConsecutiveFailures++
	tripped := !b.state.Open && b.state.ConsecutiveFailures >= b.cfg.MaxErrors
	if tripped {
		b.state.Open = true
		b.state.OpenedAt = now
	}
	snapshot, cb := b.state, b.onTrip
	b.mu.Unlock()

	if tripped && cb != nil {
		cb(snapshot)
	}
}

// IsOpen reports whether trading is suspended at now. The first call after
// the cool-down has elapsed resets the breaker and returns false.
func (b *Breaker) IsOpen(now time.Time) bool {
	b.mu.Lock()
	if !b.state.Open {
		b.mu.Unlock()
		return false
	}
	if now.Sub(b.state.OpenedAt) < b.cfg.Cooldown {
		b.mu.Unlock()
		return true
	}
	b.state = domain.CircuitBreakerState{}
	cb := b.onReset
	b.mu.Unlock()

	if cb != nil {
		cb()
	}
	return false
}

// Remaining returns the cool-down left at now, zero when closed.
func (b *Breaker) Remaining(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.state.Open {
		return 0
	}
	if r := b.cfg.Cooldown - now.Sub(b.state.OpenedAt); r > 0 {
		return r
	}
	return 0
}

// State returns a copy of the breaker state.
func (b *Breaker) State() domain.CircuitBreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
