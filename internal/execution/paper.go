package execution

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// PaperSink records instructions instead of sending them. Each one is
// logged and, when an audit store is set, written to the audit log.
type PaperSink struct {
	audit  domain.AuditStore
	logger *slog.Logger

	mu     sync.Mutex
	orders []domain.ExecutionInstruction
}

var _ domain.ExecutionSink = (*PaperSink)(nil)

// NewPaperSink creates a PaperSink. audit may be nil.
func NewPaperSink(audit domain.AuditStore, logger *slog.Logger) *PaperSink {
	return &PaperSink{
		audit:  audit,
		logger: logger.With(slog.String("component", "paper_sink")),
	}
}

func (p *PaperSink) Execute(ctx context.Context, inst domain.ExecutionInstruction) error {
	p.mu.Lock()
	p.orders = append(p.orders, inst)
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "paper instruction",
		slog.String("symbol", inst.Symbol),
		slog.String("action", string(inst.Action)),
		slog.String("order_type", string(inst.OrderType)),
		slog.Float64("entry_price", inst.EntryPrice),
		slog.Float64("amount", inst.Amount),
		slog.String("amount_type", string(inst.AmountType)),
		slog.Float64("take_profit_pct", inst.TakeProfitPct),
		slog.Float64("stop_loss_pct", inst.StopLossPct),
		slog.Float64("trailing_stop_pct", inst.TrailingStopPct),
	)

	if p.audit == nil {
		return nil
	}
	if err := p.audit.Log(ctx, "paper_execution", map[string]any{
		"symbol":      inst.Symbol,
		"action":      string(inst.Action),
		"order_type":  string(inst.OrderType),
		"entry_price": inst.EntryPrice,
		"amount":      inst.Amount,
		"amount_type": string(inst.AmountType),
		"signal_id":   inst.SignalID,
	}); err != nil {
		p.logger.WarnContext(ctx, "paper audit failed", slog.String("error", err.Error()))
	}
	return nil
}

// Orders returns a copy of every recorded instruction, oldest first.
func (p *PaperSink) Orders() []domain.ExecutionInstruction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ExecutionInstruction(nil), p.orders...)
}
