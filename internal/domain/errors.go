package domain

import (
	"context"
	"errors"
	"net"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrRateLimited      = errors.New("rate limited")
	ErrTransient        = errors.New("transient failure")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInsufficientData = errors.New("insufficient data")
	ErrWSDisconnect     = errors.New("websocket disconnected")
	ErrLockHeld         = errors.New("lock already held")
	ErrCircuitOpen      = errors.New("circuit breaker open")
	ErrConfig           = errors.New("invalid configuration")
)

// IsTransient reports whether err belongs to the retryable class: explicit
// transient or rate-limit failures, network timeouts, and a per-attempt
// deadline that expired. Cancellation of the caller's context is never
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
