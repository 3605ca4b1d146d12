package position

import (
	"math"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// exitReason runs the close checks in priority order.
func (m *Manager) exitReason(pos *domain.Position, tick Tick) (domain.ExitReason, bool) {
	switch {
	case m.flashCrash(pos, tick):
		return domain.ExitFlashCrash, true
	case stopCrossed(pos, tick.Price):
		return domain.ExitStopLoss, true
	case targetCrossed(pos, tick.Price):
		return domain.ExitTakeProfit, true
	case m.reversal(pos, tick):
		return domain.ExitReversal, true
	case m.cfg.SessionEndClose && !tick.SessionOpen:
		return domain.ExitSessionEnd, true
	}
	return "", false
}

func stopCrossed(pos *domain.Position, price float64) bool {
	if pos.Direction == domain.DirectionLong {
		return price <= pos.CurrentStopLoss
	}
	return price >= pos.CurrentStopLoss
}

func targetCrossed(pos *domain.Position, price float64) bool {
	if pos.Direction == domain.DirectionLong {
		return price >= pos.TakeProfit
	}
	return price <= pos.TakeProfit
}

// reversal fires when the higher timeframe RSI sits beyond the threshold
// against the position: below the low mark for LONG, above the high mark for
// SHORT.
func (m *Manager) reversal(pos *domain.Position, tick Tick) bool {
	if !tick.HasHigherRSI {
		return false
	}
	if pos.Direction == domain.DirectionLong {
		return m.cfg.ReversalRSILow > 0 && tick.HigherRSI < m.cfg.ReversalRSILow
	}
	return m.cfg.ReversalRSIHigh > 0 && tick.HigherRSI > m.cfg.ReversalRSIHigh
}

// flashCrash measures the adverse move inside the short bar: from its
// favorable extreme to the current price. When the position opened inside
// the bar, the part of the bar before entry is not attributable to it and
// the watermark since entry is the reference instead.
func (m *Manager) flashCrash(pos *domain.Position, tick Tick) bool {
	bar := tick.ShortBar
	if bar == nil || m.cfg.FlashCrashPct <= 0 {
		return false
	}
	openedInBar := bar.OpenTime.Before(pos.OpenedAt)

	if pos.Direction == domain.DirectionLong {
		ref := math.Max(bar.Open, bar.High)
		if openedInBar {
			ref = pos.Watermark
		}
		if ref <= 0 {
			return false
		}
		return (ref-tick.Price)/ref*100 >= m.cfg.FlashCrashPct
	}

	ref := bar.Open
	if bar.Low > 0 && bar.Low < ref {
		ref = bar.Low
	}
	if openedInBar {
		ref = pos.Watermark
	}
	if ref <= 0 {
		return false
	}
	return (tick.Price-ref)/ref*100 >= m.cfg.FlashCrashPct
}
