// Package position owns the per-symbol position state machine:
// NONE -> OPEN -> PARTIALLY_SECURED -> CLOSED.
package position

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// Config holds the lifecycle thresholds.
type Config struct {
	PartialProfitPct    float64
	PartialExitFraction float64
	BreakEvenBufferPct  float64
	FlashCrashPct       float64
	ReversalRSILow      float64
	ReversalRSIHigh     float64
	Cooldown            time.Duration
	SessionEndClose     bool
}

// Tick is the market input for one evaluation of an open position.
type Tick struct {
	Price float64
	// ShortBar is the latest bar of the short timeframe used by the
	// flash-crash guard. Nil disables the guard for this tick.
	ShortBar *domain.Bar
	// HigherRSI is the RSI of the higher timeframe; ignored unless
	// HasHigherRSI is set.
	HigherRSI    float64
	HasHigherRSI bool
	SessionOpen  bool
	Now          time.Time
}

// Manager keeps at most one position per symbol. Positions are only mutated
// through Open and Evaluate.
type Manager struct {
	cfg    Config
	store  domain.CooldownStore
	logger *slog.Logger

	mu        sync.Mutex
	positions map[string]*domain.Position
	cooldowns map[string]time.Time
}

// NewManager creates a Manager. store mirrors cooldowns outside the process
// and may be nil.
func NewManager(cfg Config, store domain.CooldownStore, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		store:     store,
		logger:    logger.With(slog.String("component", "position_manager")),
		positions: make(map[string]*domain.Position),
		cooldowns: make(map[string]time.Time),
	}
}

// Get returns a copy of the symbol's position.
func (m *Manager) Get(symbol string) (domain.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// State returns the lifecycle state of symbol; NONE without a position.
func (m *Manager) State(symbol string) domain.PositionState {
	if p, ok := m.Get(symbol); ok {
		return p.State
	}
	return domain.PositionNone
}

// Positions returns copies of every open position, ordered by symbol.
func (m *Manager) Positions() []domain.Position {
	m.mu.Lock()
	out := make([]domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// InCooldown reports whether symbol was closed too recently to re-enter.
func (m *Manager) InCooldown(ctx context.Context, symbol string, now time.Time) (bool, error) {
	m.mu.Lock()
	until, ok := m.cooldowns[symbol]
	if ok && !now.Before(until) {
		delete(m.cooldowns, symbol)
		ok = false
	}
	m.mu.Unlock()
	if ok {
		return true, nil
	}
	if m.store == nil {
		return false, nil
	}
	active, err := m.store.Active(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("position: cooldown lookup %s: %w", symbol, err)
	}
	return active, nil
}

// Open creates a position from an accepted signal. It is a no-op returning
// false when the symbol already holds a position or is cooling down.
func (m *Manager) Open(ctx context.Context, sig domain.TradeSignal, amount float64, now time.Time) (domain.Transition, bool, error) {
	if err := sig.Validate(); err != nil {
		return domain.Transition{}, false, fmt.Errorf("position: open %s: %w", sig.Symbol, err)
	}
	if _, exists := m.Get(sig.Symbol); exists {
		return domain.Transition{}, false, nil
	}
	cooling, err := m.InCooldown(ctx, sig.Symbol, now)
	if err != nil {
		return domain.Transition{}, false, err
	}
	if cooling {
		return domain.Transition{}, false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.positions[sig.Symbol]; exists {
		return domain.Transition{}, false, nil
	}

	pos := &domain.Position{
		Symbol:               sig.Symbol,
		Direction:            sig.Direction,
		EntryPrice:           sig.EntryPrice,
		CurrentStopLoss:      sig.StopLoss,
		TakeProfit:           sig.TakeProfit,
		TrailingStopDistance: sig.TrailingStopDistance,
		Amount:               amount,
		State:                domain.PositionOpen,
		Watermark:            sig.EntryPrice,
		SignalID:             sig.ID,
		OpenedAt:             now,
	}
	m.positions[sig.Symbol] = pos

	action := domain.ActionEnterLong
	if sig.Direction == domain.DirectionShort {
		action = domain.ActionEnterShort
	}

	m.logger.InfoContext(ctx, "position opened",
		slog.String("symbol", pos.Symbol),
		slog.String("direction", string(pos.Direction)),
		slog.Float64("entry", pos.EntryPrice),
		slog.Float64("stop_loss", pos.CurrentStopLoss),
		slog.Float64("take_profit", pos.TakeProfit),
	)

	return domain.Transition{
		Action:   action,
		Symbol:   pos.Symbol,
		From:     domain.PositionNone,
		To:       domain.PositionOpen,
		Position: *pos,
		Price:    pos.EntryPrice,
		At:       now,
	}, true, nil
}

// Evaluate applies one tick to the symbol's position and returns the
// transitions it caused, in order. A closing tick returns a single exit.
func (m *Manager) Evaluate(ctx context.Context, symbol string, tick Tick) ([]domain.Transition, error) {
	if tick.Price <= 0 {
		return nil, nil
	}

	m.mu.Lock()
	pos, ok := m.positions[symbol]
	if !ok {
		m.mu.Unlock()
		return nil, nil
	}

	if reason, closing := m.exitReason(pos, tick); closing {
		tr := m.closeLocked(pos, tick, reason)
		m.mu.Unlock()

		m.logger.InfoContext(ctx, "position closed",
			slog.String("symbol", symbol),
			slog.String("reason", string(reason)),
			slog.Float64("price", tick.Price),
			slog.Float64("pnl_pct", tr.PnLPercent),
		)
		if m.store != nil && m.cfg.Cooldown > 0 {
			if err := m.store.Start(ctx, symbol, m.cfg.Cooldown); err != nil {
				m.logger.WarnContext(ctx, "cooldown mirror failed",
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
			}
		}
		return []domain.Transition{tr}, nil
	}

	var out []domain.Transition
	if tr, ok := m.partialLocked(pos, tick); ok {
		out = append(out, tr)
	}
	m.trailLocked(pos, tick.Price)
	m.mu.Unlock()

	for _, tr := range out {
		m.logger.InfoContext(ctx, "position partially secured",
			slog.String("symbol", symbol),
			slog.Float64("price", tr.Price),
			slog.Float64("stop_loss", tr.Position.CurrentStopLoss),
		)
	}
	return out, nil
}

func (m *Manager) closeLocked(pos *domain.Position, tick Tick, reason domain.ExitReason) domain.Transition {
	tr := domain.Transition{
		Action:     domain.ActionExit,
		Symbol:     pos.Symbol,
		From:       pos.State,
		To:         domain.PositionClosed,
		Price:      tick.Price,
		Fraction:   1,
		Reason:     reason,
		PnLPercent: pos.PnLPercent(tick.Price),
		At:         tick.Now,
	}
	pos.State = domain.PositionClosed
	tr.Position = *pos

	delete(m.positions, pos.Symbol)
	if m.cfg.Cooldown > 0 {
		m.cooldowns[pos.Symbol] = tick.Now.Add(m.cfg.Cooldown)
	}
	return tr
}

func (m *Manager) partialLocked(pos *domain.Position, tick Tick) (domain.Transition, bool) {
	if pos.PartialTaken || m.cfg.PartialProfitPct <= 0 {
		return domain.Transition{}, false
	}
	pnl := pos.PnLPercent(tick.Price)
	if pnl < m.cfg.PartialProfitPct {
		return domain.Transition{}, false
	}

	from := pos.State
	buf := m.cfg.BreakEvenBufferPct / 100
	breakEven := pos.EntryPrice * (1 + buf)
	if pos.Direction == domain.DirectionShort {
		breakEven = pos.EntryPrice * (1 - buf)
	}
	Tighten(pos, breakEven)

	fraction := m.cfg.PartialExitFraction
	pos.Amount *= 1 - fraction
	pos.PartialTaken = true
	pos.BreakEvenLocked = true
	pos.State = domain.PositionPartiallySecured

	return domain.Transition{
		Action:     domain.ActionPartialExit,
		Symbol:     pos.Symbol,
		From:       from,
		To:         pos.State,
		Position:   *pos,
		Price:      tick.Price,
		Fraction:   fraction,
		PnLPercent: pnl,
		At:         tick.Now,
	}, true
}

// trailLocked moves the watermark on a favorable price and ratchets the stop
// behind it.
func (m *Manager) trailLocked(pos *domain.Position, price float64) {
	switch pos.Direction {
	case domain.DirectionLong:
		if price <= pos.Watermark {
			return
		}
	case domain.DirectionShort:
		if price >= pos.Watermark {
			return
		}
	default:
		return
	}
	pos.Watermark = price
	if pos.TrailingStopDistance <= 0 {
		return
	}
	if pos.Direction == domain.DirectionLong {
		Tighten(pos, price-pos.TrailingStopDistance)
	} else {
		Tighten(pos, price+pos.TrailingStopDistance)
	}
}

// Tighten applies candidate as the new stop only when it reduces risk: up
// for LONG, down for SHORT. It reports whether the stop moved.
func Tighten(pos *domain.Position, candidate float64) bool {
	switch pos.Direction {
	case domain.DirectionLong:
		if candidate > pos.CurrentStopLoss {
			pos.CurrentStopLoss = candidate
			return true
		}
	case domain.DirectionShort:
		if candidate < pos.CurrentStopLoss {
			pos.CurrentStopLoss = candidate
			return true
		}
	}
	return false
}
