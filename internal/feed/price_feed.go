// Package feed keeps the latest traded price of each symbol in the price
// cache from a streaming source.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
	"github.com/alanyoungcy/confluencebot/internal/platform/binance"
)

const (
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// TickerSource streams tickers until its connection drops.
type TickerSource interface {
	Run(ctx context.Context, h binance.TickerHandler) error
}

// PriceFeed writes every streamed ticker to the price cache and reconnects
// with exponential backoff when the stream drops.
type PriceFeed struct {
	source TickerSource
	prices domain.PriceCache
	logger *slog.Logger

	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewPriceFeed creates a PriceFeed.
func NewPriceFeed(source TickerSource, prices domain.PriceCache, logger *slog.Logger) *PriceFeed {
	return &PriceFeed{
		source:    source,
		prices:    prices,
		logger:    logger.With(slog.String("component", "price_feed")),
		baseDelay: reconnectDelay,
		maxDelay:  maxReconnectDelay,
	}
}

// Run streams until ctx is cancelled.
func (f *PriceFeed) Run(ctx context.Context) error {
	delay := f.baseDelay
	for {
		started := time.Now()
		err := f.source.Run(ctx, f.onTicker)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A connection that lived a while resets the backoff.
		if time.Since(started) > f.maxDelay {
			delay = f.baseDelay
		}
		attrs := []any{slog.Duration("retry_in", delay)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		f.logger.WarnContext(ctx, "price stream disconnected, reconnecting", attrs...)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, f.maxDelay)
	}
}

func (f *PriceFeed) onTicker(ctx context.Context, t binance.Ticker) {
	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := f.prices.SetPrice(ctx, t.Symbol, t.Price, at); err != nil {
		f.logger.WarnContext(ctx, "price cache write failed",
			slog.String("symbol", t.Symbol),
			slog.String("error", err.Error()),
		)
	}
}
