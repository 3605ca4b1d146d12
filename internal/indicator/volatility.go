package indicator

import (
	"math"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// ATR returns the mean true range over the last period bars. Each true range
// uses the previous bar's close, so period+1 bars are required; otherwise 0.
func ATR(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}
	var sum float64
	for i := len(bars) - period; i < len(bars); i++ {
		sum += TrueRange(bars[i], bars[i-1].Close)
	}
	return sum / float64(period)
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(b domain.Bar, prevClose float64) float64 {
	return math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}

// Bands holds Bollinger band levels.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger returns SMA(period) +/- k standard deviations (population). The
// ok result is false when fewer than period values exist.
func Bollinger(values []float64, period int, k float64) (Bands, bool) {
	if period <= 0 || len(values) < period {
		return Bands{}, false
	}
	mid := SMA(values, period)
	var variance float64
	for _, v := range values[len(values)-period:] {
		d := v - mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	return Bands{Upper: mid + k*sd, Middle: mid, Lower: mid - k*sd}, true
}
