package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestTradeSignalValidate(t *testing.T) {
	tests := []struct {
		name string
		sig  TradeSignal
		ok   bool
	}{
		{"long ordered", TradeSignal{Direction: DirectionLong, StopLoss: 9, EntryPrice: 10, TakeProfit: 12}, true},
		{"long inverted", TradeSignal{Direction: DirectionLong, StopLoss: 11, EntryPrice: 10, TakeProfit: 12}, false},
		{"short ordered", TradeSignal{Direction: DirectionShort, TakeProfit: 8, EntryPrice: 10, StopLoss: 11}, true},
		{"short inverted", TradeSignal{Direction: DirectionShort, TakeProfit: 12, EntryPrice: 10, StopLoss: 11}, false},
		{"no direction", TradeSignal{StopLoss: 9, EntryPrice: 10, TakeProfit: 12}, false},
		{"negative trail", TradeSignal{Direction: DirectionLong, StopLoss: 9, EntryPrice: 10, TakeProfit: 12, TrailingStopDistance: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sig.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestPositionPnLPercent(t *testing.T) {
	long := Position{Direction: DirectionLong, EntryPrice: 100}
	if got := long.PnLPercent(102); math.Abs(got-2) > 1e-9 {
		t.Errorf("long pnl = %v, want 2", got)
	}
	short := Position{Direction: DirectionShort, EntryPrice: 100}
	if got := short.PnLPercent(102); math.Abs(got+2) > 1e-9 {
		t.Errorf("short pnl = %v, want -2", got)
	}
	if got := (Position{Direction: DirectionLong}).PnLPercent(5); got != 0 {
		t.Errorf("zero entry pnl = %v, want 0", got)
	}
}

func TestIsTransient(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":       {nil, false},
		"transient": {fmt.Errorf("fetch: %w", ErrTransient), true},
		"limited":   {ErrRateLimited, true},
		"deadline":  {context.DeadlineExceeded, true},
		"canceled":  {context.Canceled, false},
		"auth":      {ErrUnauthorized, false},
	}
	for name, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Errorf("%s: IsTransient = %v, want %v", name, got, c.want)
		}
	}
}

func TestSplitSymbol(t *testing.T) {
	base, quote := SplitSymbol("sol/usdt")
	if base != "SOL" || quote != "USDT" {
		t.Fatalf("got %q/%q, want SOL/USDT", base, quote)
	}
	if _, quote := SplitSymbol("SOLUSDT"); quote != "" {
		t.Fatalf("quote = %q, want empty", quote)
	}
}

func TestSnapshotLastPriceAndDepth(t *testing.T) {
	snap := MarketSnapshot{Bars: []Bar{{Close: 1}, {Close: 2}}}
	if snap.LastPrice() != 2 {
		t.Errorf("last price = %v, want 2", snap.LastPrice())
	}
	if (MarketSnapshot{}).LastPrice() != 0 {
		t.Error("empty snapshot should price at 0")
	}

	book := OrderBook{
		Bids: []PriceLevel{{Price: 9, Size: 1}, {Price: 8, Size: 2}, {Price: 7, Size: 4}},
		Asks: []PriceLevel{{Price: 11, Size: 3}},
	}
	if got := book.BidDepth(2); got != 3 {
		t.Errorf("bid depth = %v, want 3", got)
	}
	if got := book.AskDepth(5); got != 3 {
		t.Errorf("ask depth = %v, want 3", got)
	}
}
