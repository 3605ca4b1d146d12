package indicator

import "github.com/alanyoungcy/confluencebot/internal/domain"

// Imbalance returns (bid - ask) / (bid + ask) over the top depth levels, in
// [-1, 1]. An empty book is 0.
func Imbalance(book domain.OrderBook, depth int) float64 {
	bid := book.BidDepth(depth)
	ask := book.AskDepth(depth)
	if bid+ask == 0 {
		return 0
	}
	return (bid - ask) / (bid + ask)
}

// Pressure maps the top depth levels to buy or sell when one side is at least
// ratio times the other, neutral otherwise.
func Pressure(book domain.OrderBook, depth int, ratio float64) domain.BookPressure {
	bid := book.BidDepth(depth)
	ask := book.AskDepth(depth)
	switch {
	case bid > 0 && bid >= ask*ratio:
		return domain.PressureBuy
	case ask > 0 && ask >= bid*ratio:
		return domain.PressureSell
	default:
		return domain.PressureNeutral
	}
}
