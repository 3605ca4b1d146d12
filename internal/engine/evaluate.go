package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
	"github.com/alanyoungcy/confluencebot/internal/indicator"
	"github.com/alanyoungcy/confluencebot/internal/position"
	"github.com/alanyoungcy/confluencebot/internal/retry"
)

// evaluate runs one symbol's decision. Market data feeding the decision is
// fetched synchronously; everything it triggers is dispatched asynchronously.
func (e *Engine) evaluate(ctx context.Context, symbol string) error {
	unlock, err := e.lock(ctx, symbol)
	if errors.Is(err, domain.ErrLockHeld) {
		e.logger.DebugContext(ctx, "symbol evaluated elsewhere", slog.String("symbol", symbol))
		return nil
	}
	if err != nil {
		return err
	}
	defer unlock()

	now := e.now()
	_, holding := e.Positions.Get(symbol)
	if !holding && !e.Gate.AllowsEntry(now) {
		return nil
	}

	snap, err := e.snapshot(ctx, symbol, now)
	if err != nil {
		return err
	}
	ind := e.Computer.Compute(snap)

	if holding {
		return e.manage(ctx, symbol, snap, ind, now)
	}
	return e.enter(ctx, snap, ind, now)
}

func (e *Engine) lock(ctx context.Context, symbol string) (func(), error) {
	if e.Locks == nil {
		return func() {}, nil
	}
	unlock, err := e.Locks.Acquire(ctx, "symbol:"+symbol, e.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock: %w", err)
	}
	return unlock, nil
}

func (e *Engine) snapshot(ctx context.Context, symbol string, now time.Time) (domain.MarketSnapshot, error) {
	bars, err := retry.Execute(ctx, e.Retry, func(ctx context.Context) ([]domain.Bar, error) {
		return e.Market.FetchBars(ctx, symbol, e.cfg.Timeframe, e.cfg.BarLimit)
	})
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("fetch bars: %w", err)
	}
	book, err := retry.Execute(ctx, e.Retry, func(ctx context.Context) (domain.OrderBook, error) {
		return e.Market.FetchOrderBook(ctx, symbol, e.cfg.BookDepth)
	})
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("fetch order book: %w", err)
	}
	return domain.MarketSnapshot{Symbol: symbol, Bars: bars, Book: book, Timestamp: now}, nil
}

// manage evaluates an open position. The short-bar and higher-timeframe
// fetches only feed the guards: when they fail the stop and target checks
// still run and the failure is reported to the caller.
func (e *Engine) manage(ctx context.Context, symbol string, snap domain.MarketSnapshot, ind domain.IndicatorSet, now time.Time) error {
	tick := position.Tick{
		Price:       e.price(ctx, symbol, snap, now),
		SessionOpen: e.Gate.InWindow(now),
		Now:         now,
	}

	var errs []error
	if e.cfg.ShortTimeframe != "" {
		bars, err := retry.Execute(ctx, e.Retry, func(ctx context.Context) ([]domain.Bar, error) {
			return e.Market.FetchBars(ctx, symbol, e.cfg.ShortTimeframe, 2)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch short bars: %w", err))
		} else if len(bars) > 0 {
			last := bars[len(bars)-1]
			tick.ShortBar = &last
		}
	}
	if e.cfg.HigherTimeframe != "" {
		bars, err := retry.Execute(ctx, e.Retry, func(ctx context.Context) ([]domain.Bar, error) {
			return e.Market.FetchBars(ctx, symbol, e.cfg.HigherTimeframe, e.cfg.BarLimit)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch higher timeframe: %w", err))
		} else if len(bars) > e.cfg.RSIPeriod {
			closes := make([]float64, len(bars))
			for i, b := range bars {
				closes[i] = b.Close
			}
			tick.HigherRSI = indicator.RSI(closes, e.cfg.RSIPeriod)
			tick.HasHigherRSI = true
		}
	}

	transitions, err := e.Positions.Evaluate(ctx, symbol, tick)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	if len(transitions) > 0 {
		e.dispatch(ctx, transitions, nil, ind)
	}
	if pos, open := e.Positions.Get(symbol); open {
		e.checkRetracement(ctx, pos, tick.Price, now)
	} else {
		e.alerts.forget("retracement:" + symbol)
	}
	return errors.Join(errs...)
}

// price prefers a fresh streamed price over the last bar close.
func (e *Engine) price(ctx context.Context, symbol string, snap domain.MarketSnapshot, now time.Time) float64 {
	last := snap.LastPrice()
	if e.Prices == nil {
		return last
	}
	p, ts, err := e.Prices.GetPrice(ctx, symbol)
	if err != nil || p <= 0 || now.Sub(ts) > e.cfg.PriceMaxAge {
		return last
	}
	return p
}

func (e *Engine) enter(ctx context.Context, snap domain.MarketSnapshot, ind domain.IndicatorSet, now time.Time) error {
	symbol := snap.Symbol
	// An unreadable cooldown blocks the entry, as it does in Positions.Open.
	cooling, err := e.Positions.InCooldown(ctx, symbol, now)
	if err != nil {
		return fmt.Errorf("cooldown lookup: %w", err)
	}
	if cooling {
		return nil
	}

	res := e.Scorer.Score(ind, e.bias(ctx, symbol))
	e.logger.DebugContext(ctx, "confluence scored",
		slog.String("symbol", symbol),
		slog.Float64("score", res.Score),
		slog.String("direction", string(res.Direction)),
		slog.Float64("total", res.Total),
	)

	sig, ok := e.Generator.Generate(res, snap)
	if !ok {
		return nil
	}

	amount, err := e.amount(ctx)
	if err != nil {
		return err
	}
	if amount <= 0 {
		e.logger.WarnContext(ctx, "signal skipped, no free balance",
			slog.String("symbol", symbol),
			slog.String("quote", e.cfg.QuoteAsset),
		)
		return nil
	}

	tr, opened, err := e.Positions.Open(ctx, sig, amount, now)
	if err != nil {
		return err
	}
	if opened {
		e.dispatch(ctx, []domain.Transition{tr}, &sig, ind)
	}
	return nil
}

// bias queries the external providers. A provider that fails or times out
// reports neutral and never blocks the tick.
func (e *Engine) bias(ctx context.Context, symbol string) domain.BiasInputs {
	return domain.BiasInputs{
		Sentiment: e.biasFrom(ctx, "sentiment", e.Sentiment, symbol),
		WhaleFlow: e.biasFrom(ctx, "whale", e.Whale, symbol),
	}
}

func (e *Engine) biasFrom(ctx context.Context, name string, p domain.BiasProvider, symbol string) domain.Bias {
	if p == nil {
		return domain.BiasNeutral
	}
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	b, err := p.Bias(cctx, symbol)
	if err != nil {
		e.logger.DebugContext(ctx, "bias unavailable, using neutral",
			slog.String("provider", name),
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return domain.BiasNeutral
	}
	return b
}

// amount sizes an entry as AmountPct of the free quote balance.
func (e *Engine) amount(ctx context.Context) (float64, error) {
	balances, err := retry.Execute(ctx, e.Retry, func(ctx context.Context) ([]domain.Balance, error) {
		return e.Market.FetchBalance(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("fetch balance: %w", err)
	}
	for _, b := range balances {
		if b.Asset == e.cfg.QuoteAsset {
			return b.Free * e.cfg.AmountPct / 100, nil
		}
	}
	return 0, nil
}

// checkRetracement warns once per TTL when an open position trades beyond
// the alert distance against its entry.
func (e *Engine) checkRetracement(ctx context.Context, pos domain.Position, price float64, now time.Time) {
	if e.cfg.RetracementAlertPct <= 0 || price <= 0 {
		return
	}
	if -pos.PnLPercent(price) < e.cfg.RetracementAlertPct {
		return
	}
	if !e.alerts.first("retracement:"+pos.Symbol, now) {
		return
	}
	msg := fmt.Sprintf("%s %s retracing: price %.4f is %.2f%% against entry %.4f (stop %.4f)",
		pos.Direction, pos.Symbol, price, -pos.PnLPercent(price), pos.EntryPrice, pos.CurrentStopLoss)
	e.notifyAsync(ctx, msg, domain.SeverityWarning)
}
