package domain

import (
	"strings"
	"time"
)

// Bar is a single OHLCV candle.
type Bar struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// PriceLevel is a single price+size entry in an order book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBook holds bids (best first) and asks (best first).
type OrderBook struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// BidDepth sums the size of the top n bid levels. n <= 0 sums every level.
func (b OrderBook) BidDepth(n int) float64 {
	return depth(b.Bids, n)
}

// AskDepth sums the size of the top n ask levels. n <= 0 sums every level.
func (b OrderBook) AskDepth(n int) float64 {
	return depth(b.Asks, n)
}

func depth(levels []PriceLevel, n int) float64 {
	if n <= 0 || n > len(levels) {
		n = len(levels)
	}
	var sum float64
	for _, l := range levels[:n] {
		sum += l.Size
	}
	return sum
}

// MarketSnapshot is the immutable market view used for one evaluation of a
// symbol. Bars are ordered oldest first.
type MarketSnapshot struct {
	Symbol    string
	Bars      []Bar
	Book      OrderBook
	Timestamp time.Time
}

// LastPrice returns the close of the newest bar, or 0 without bars.
func (s MarketSnapshot) LastPrice() float64 {
	if len(s.Bars) == 0 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Close
}

// Closes returns the close series of the snapshot.
func (s MarketSnapshot) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Balance is a free/locked amount of one asset on the account.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// SplitSymbol splits "SOL/USDT" into base "SOL" and quote "USDT". Symbols
// without a separator yield an empty quote.
func SplitSymbol(symbol string) (base, quote string) {
	base, quote, _ = strings.Cut(strings.ToUpper(symbol), "/")
	return base, quote
}
