package domain

import (
	"context"
	"time"
)

// PriceCache holds the latest traded price per symbol.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}

// CooldownStore tracks symbols that may not re-enter until a deadline.
type CooldownStore interface {
	Start(ctx context.Context, symbol string, d time.Duration) error
	Active(ctx context.Context, symbol string) (bool, error)
}

// BiasCache memoizes external bias lookups.
type BiasCache interface {
	GetBias(ctx context.Context, source, symbol string) (Bias, bool, error)
	SetBias(ctx context.Context, source, symbol string, b Bias, ttl time.Duration) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from an event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// EventBus fans lifecycle events out to subscribers and a durable stream.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
