package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/alanyoungcy/confluencebot/internal/confluence"
	"github.com/alanyoungcy/confluencebot/internal/domain"
)

const (
	// EventChannel is the pub/sub channel lifecycle events are published on.
	EventChannel = "positions"
	// EventStream is the durable stream lifecycle events are appended to.
	EventStream = "positions:events"
)

// dispatch sends the transitions of one evaluation, in order, on a single
// background goroutine. Every sink call gets its own DispatchTimeout, so an
// execution stuck in retries still leaves the notification, event and
// journal writes their full budget.
func (e *Engine) dispatch(ctx context.Context, transitions []domain.Transition, sig *domain.TradeSignal, ind domain.IndicatorSet) {
	e.background(ctx, func(dctx context.Context) {
		for _, tr := range transitions {
			e.execute(dctx, e.instruction(tr, sig))
			e.send(dctx, transitionMessage(tr, sig), transitionSeverity(tr))
			e.publish(dctx, tr, ind)
			e.audit(dctx, eventName(tr), transitionDetail(tr))
			if tr.Action == domain.ActionExit {
				e.journal(dctx, tr)
			}
		}
	})
}

// notifyAsync sends a standalone message in the background.
func (e *Engine) notifyAsync(ctx context.Context, msg string, sev domain.Severity) {
	e.background(ctx, func(dctx context.Context) {
		e.send(dctx, msg, sev)
	})
}

// background runs fn on a tracked goroutine with a context that survives
// ctx cancellation. The sink helpers bound their own calls.
func (e *Engine) background(ctx context.Context, fn func(ctx context.Context)) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		fn(context.WithoutCancel(ctx))
	}()
}

// bounded derives the per-sink deadline from a dispatch context.
func (e *Engine) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.DispatchTimeout)
}

func (e *Engine) execute(ctx context.Context, inst domain.ExecutionInstruction) {
	ctx, cancel := e.bounded(ctx)
	defer cancel()
	if err := e.Retry.Do(ctx, func(ctx context.Context) error {
		return e.Executor.Execute(ctx, inst)
	}); err != nil {
		e.logger.ErrorContext(ctx, "execution dispatch failed",
			slog.String("symbol", inst.Symbol),
			slog.String("action", string(inst.Action)),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) send(ctx context.Context, msg string, sev domain.Severity) {
	ctx, cancel := e.bounded(ctx)
	defer cancel()
	if err := e.Retry.Do(ctx, func(ctx context.Context) error {
		return e.Notifier.Send(ctx, msg, sev)
	}); err != nil {
		e.logger.WarnContext(ctx, "notification failed",
			slog.String("severity", sev.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) publish(ctx context.Context, tr domain.Transition, ind domain.IndicatorSet) {
	if e.Bus == nil {
		return
	}
	evt := transitionDetail(tr)
	evt["event"] = eventName(tr)
	evt["rsi"] = ind.RSI
	evt["atr"] = ind.ATR
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()
	if err := e.Bus.Publish(ctx, EventChannel, payload); err != nil {
		e.logger.WarnContext(ctx, "publish event failed",
			slog.String("symbol", tr.Symbol),
			slog.String("error", err.Error()),
		)
	}
	if err := e.Bus.StreamAppend(ctx, EventStream, payload); err != nil {
		e.logger.WarnContext(ctx, "stream append failed",
			slog.String("symbol", tr.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) audit(ctx context.Context, event string, detail map[string]any) {
	if e.Audit == nil {
		return
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()
	if err := e.Audit.Log(ctx, event, detail); err != nil {
		e.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) journal(ctx context.Context, tr domain.Transition) {
	if e.Journal == nil {
		return
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()
	rec := tradeRecord(tr)
	if err := e.Journal.Record(ctx, rec); err != nil {
		e.logger.WarnContext(ctx, "trade journal failed",
			slog.String("symbol", rec.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

// instruction maps a transition to the venue-neutral execution payload.
// Entries carry levels as percentage offsets from the entry price; exits
// carry the exited share of the position in percent.
func (e *Engine) instruction(tr domain.Transition, sig *domain.TradeSignal) domain.ExecutionInstruction {
	pos := tr.Position
	inst := domain.ExecutionInstruction{
		Action:     tr.Action,
		Symbol:     tr.Symbol,
		OrderType:  domain.OrderTypeMarket,
		EntryPrice: tr.Price,
		Leverage:   e.cfg.Leverage,
		SignalID:   pos.SignalID,
	}

	switch tr.Action {
	case domain.ActionEnterLong, domain.ActionEnterShort:
		inst.OrderType = e.cfg.OrderType
		inst.EntryPrice = pos.EntryPrice
		inst.Amount = pos.Amount
		inst.AmountType = domain.AmountAbsolute
		inst.TakeProfitPct = offsetPct(pos.EntryPrice, pos.TakeProfit)
		inst.StopLossPct = offsetPct(pos.EntryPrice, pos.CurrentStopLoss)
		inst.TrailingStopPct = offsetPct(pos.EntryPrice, pos.EntryPrice+pos.TrailingStopDistance)
		if sig != nil {
			inst.SignalID = sig.ID
		}
	default:
		inst.Amount = tr.Fraction * 100
		inst.AmountType = domain.AmountPercent
	}
	return inst
}

func offsetPct(entry, level float64) float64 {
	if entry == 0 {
		return 0
	}
	return math.Abs(level-entry) / entry * 100
}

func eventName(tr domain.Transition) string {
	switch tr.Action {
	case domain.ActionEnterLong, domain.ActionEnterShort:
		return "position_opened"
	case domain.ActionPartialExit:
		return "position_partial"
	default:
		return "position_closed"
	}
}

func transitionDetail(tr domain.Transition) map[string]any {
	d := map[string]any{
		"symbol":      tr.Symbol,
		"action":      string(tr.Action),
		"from":        string(tr.From),
		"to":          string(tr.To),
		"direction":   string(tr.Position.Direction),
		"price":       tr.Price,
		"entry_price": tr.Position.EntryPrice,
		"stop_loss":   tr.Position.CurrentStopLoss,
		"take_profit": tr.Position.TakeProfit,
		"amount":      tr.Position.Amount,
		"signal_id":   tr.Position.SignalID,
		"at":          tr.At,
	}
	if tr.Action != domain.ActionEnterLong && tr.Action != domain.ActionEnterShort {
		d["fraction"] = tr.Fraction
		d["pnl_pct"] = tr.PnLPercent
	}
	if tr.Reason != "" {
		d["reason"] = string(tr.Reason)
	}
	return d
}

func transitionSeverity(tr domain.Transition) domain.Severity {
	switch tr.Reason {
	case domain.ExitFlashCrash:
		return domain.SeverityCritical
	case domain.ExitStopLoss, domain.ExitReversal:
		return domain.SeverityWarning
	}
	return domain.SeverityInfo
}

func transitionMessage(tr domain.Transition, sig *domain.TradeSignal) string {
	pos := tr.Position
	switch tr.Action {
	case domain.ActionEnterLong, domain.ActionEnterShort:
		msg := fmt.Sprintf("%s %s opened @ %.4f | SL %.4f | TP %.4f | size %.2f",
			pos.Direction, pos.Symbol, pos.EntryPrice, pos.CurrentStopLoss, pos.TakeProfit, pos.Amount)
		if sig != nil {
			msg += fmt.Sprintf(" | score %.0f (%s)", sig.ConfluenceScore, confluence.Grade(sig.ConfluenceScore))
		}
		return msg
	case domain.ActionPartialExit:
		return fmt.Sprintf("%s %s partial exit %.0f%% @ %.4f (%+.2f%%) | stop -> %.4f",
			pos.Direction, pos.Symbol, tr.Fraction*100, tr.Price, tr.PnLPercent, pos.CurrentStopLoss)
	default:
		return fmt.Sprintf("%s %s closed (%s) @ %.4f | PnL %+.2f%%",
			pos.Direction, pos.Symbol, tr.Reason, tr.Price, tr.PnLPercent)
	}
}

func tradeRecord(tr domain.Transition) domain.TradeRecord {
	pos := tr.Position
	return domain.TradeRecord{
		ID:           pos.SignalID,
		Symbol:       pos.Symbol,
		Direction:    pos.Direction,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    tr.Price,
		Amount:       pos.Amount,
		PartialTaken: pos.PartialTaken,
		PnLPercent:   tr.PnLPercent,
		Reason:       string(tr.Reason),
		OpenedAt:     pos.OpenedAt,
		ClosedAt:     tr.At,
	}
}
