package indicator

import "github.com/alanyoungcy/confluencebot/internal/domain"

// Midpoint returns (highest high + lowest low) / 2 over the last period bars,
// the building block of the Ichimoku tenkan and kijun lines. The ok result is
// false when fewer than period bars exist.
func Midpoint(bars []domain.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period {
		return 0, false
	}
	window := bars[len(bars)-period:]
	hi, lo := window[0].High, window[0].Low
	for _, b := range window[1:] {
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}
	return (hi + lo) / 2, true
}
