package domain

import (
	"fmt"
	"time"
)

// TradeSignal is a candidate entry produced by the signal generator.
type TradeSignal struct {
	ID                   string // UUID, unique per emission
	Symbol               string
	Direction            Direction
	EntryPrice           float64
	StopLoss             float64
	TakeProfit           float64
	TrailingStopDistance float64
	ConfluenceScore      float64
	CreatedAt            time.Time
}

// Validate checks the level ordering of the signal: for LONG
// stopLoss < entry < takeProfit, for SHORT takeProfit < entry < stopLoss.
func (s TradeSignal) Validate() error {
	switch s.Direction {
	case DirectionLong:
		if !(s.StopLoss < s.EntryPrice && s.EntryPrice < s.TakeProfit) {
			return fmt.Errorf("%w: long levels sl=%g entry=%g tp=%g", ErrInvalidRequest, s.StopLoss, s.EntryPrice, s.TakeProfit)
		}
	case DirectionShort:
		if !(s.TakeProfit < s.EntryPrice && s.EntryPrice < s.StopLoss) {
			return fmt.Errorf("%w: short levels tp=%g entry=%g sl=%g", ErrInvalidRequest, s.TakeProfit, s.EntryPrice, s.StopLoss)
		}
	default:
		return fmt.Errorf("%w: direction %q", ErrInvalidRequest, s.Direction)
	}
	if s.TrailingStopDistance < 0 {
		return fmt.Errorf("%w: negative trailing distance", ErrInvalidRequest)
	}
	return nil
}
