package domain

import "time"

// PositionState is the lifecycle state of a symbol's position.
type PositionState string

const (
	PositionNone             PositionState = "NONE"
	PositionOpen             PositionState = "OPEN"
	PositionPartiallySecured PositionState = "PARTIALLY_SECURED"
	PositionClosed           PositionState = "CLOSED"
)

// ExitReason says why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitReversal   ExitReason = "reversal"
	ExitFlashCrash ExitReason = "flash_crash"
	ExitSessionEnd ExitReason = "session_end"
)

// Position is the single live position of a symbol.
type Position struct {
	Symbol               string
	Direction            Direction
	EntryPrice           float64
	CurrentStopLoss      float64
	TakeProfit           float64
	TrailingStopDistance float64
	Amount               float64
	PartialTaken         bool
	BreakEvenLocked      bool
	State                PositionState
	// Watermark is the most favorable price seen since entry: the high for
	// LONG, the low for SHORT.
	Watermark float64
	SignalID  string
	OpenedAt  time.Time
}

// PnLPercent returns the running return of the position at price, in percent.
func (p Position) PnLPercent(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	switch p.Direction {
	case DirectionLong:
		return (price - p.EntryPrice) / p.EntryPrice * 100
	case DirectionShort:
		return (p.EntryPrice - price) / p.EntryPrice * 100
	}
	return 0
}

// TradeRecord is the journal entry written when a position closes.
type TradeRecord struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Direction    Direction `json:"direction"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	Amount       float64   `json:"amount"`
	PartialTaken bool      `json:"partial_taken"`
	PnLPercent   float64   `json:"pnl_percent"`
	Reason       string    `json:"reason"`
	OpenedAt     time.Time `json:"opened_at"`
	ClosedAt     time.Time `json:"closed_at"`
}

// CircuitBreakerState is the process-wide failure breaker state.
type CircuitBreakerState struct {
	ConsecutiveFailures int
	Open                bool
	OpenedAt            time.Time
}
