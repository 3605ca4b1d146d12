package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only log of lifecycle events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// TradeJournal persists closed trades.
type TradeJournal interface {
	Record(ctx context.Context, rec TradeRecord) error
	ListClosedBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
	List(ctx context.Context, opts ListOpts) ([]TradeRecord, error)
}
