package domain

import "time"

// ExecutionAction is the instruction kind sent to the execution collaborator.
type ExecutionAction string

const (
	ActionEnterLong   ExecutionAction = "enter_long"
	ActionEnterShort  ExecutionAction = "enter_short"
	ActionPartialExit ExecutionAction = "partial_exit"
	ActionExit        ExecutionAction = "exit"
)

// OrderType is the order kind requested from the execution collaborator.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// AmountType says whether an instruction amount is absolute (quote currency)
// or a percentage of the open position.
type AmountType string

const (
	AmountAbsolute AmountType = "absolute"
	AmountPercent  AmountType = "percent"
)

// Transition is one state change of a position, produced by the lifecycle
// manager and dispatched by the engine.
type Transition struct {
	Action   ExecutionAction
	Symbol   string
	From     PositionState
	To       PositionState
	Position Position
	Price    float64
	// Fraction is the share of the position being exited, 0..1. Entries
	// carry 0.
	Fraction   float64
	Reason     ExitReason
	PnLPercent float64
	At         time.Time
}

// ExecutionInstruction is the venue-neutral form of a webhook payload.
// TakeProfitPct, StopLossPct and TrailingStopPct are offsets from
// EntryPrice in percent.
type ExecutionInstruction struct {
	Action          ExecutionAction
	Symbol          string
	OrderType       OrderType
	EntryPrice      float64
	Amount          float64
	AmountType      AmountType
	TakeProfitPct   float64
	StopLossPct     float64
	TrailingStopPct float64
	Leverage        int
	SignalID        string
}
