package domain

import "context"

// MarketDataProvider is the external source of bars, books and balances.
// Implementations must not be assumed reliable.
type MarketDataProvider interface {
	FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error)
	FetchBalance(ctx context.Context) ([]Balance, error)
}

// Severity ranks a notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// NotificationSink delivers human-facing messages. Delivery is best effort.
type NotificationSink interface {
	Send(ctx context.Context, message string, severity Severity) error
}

// ExecutionSink forwards trade instructions to the execution collaborator.
// A nil error is the only acknowledgement the engine relies on.
type ExecutionSink interface {
	Execute(ctx context.Context, inst ExecutionInstruction) error
}

// BiasProvider reports an external directional hint for a symbol.
type BiasProvider interface {
	Bias(ctx context.Context, symbol string) (Bias, error)
}
