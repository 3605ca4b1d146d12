package indicator

import "github.com/alanyoungcy/confluencebot/internal/domain"

// VWAP returns sum(typical price * volume) / sum(volume) over bars. The ok
// result is false when the window carries no volume.
func VWAP(bars []domain.Bar) (float64, bool) {
	var pv, vol float64
	for _, b := range bars {
		tp := (b.High + b.Low + b.Close) / 3
		pv += tp * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		return 0, false
	}
	return pv / vol, true
}

// VolumeRatio returns the latest volume divided by the mean volume of the last
// period bars (latest included). It is 1 when the window is too short or
// empty of volume.
func VolumeRatio(bars []domain.Bar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 1
	}
	vols := make([]float64, 0, period)
	for _, b := range bars[len(bars)-period:] {
		vols = append(vols, b.Volume)
	}
	avg := SMA(vols, period)
	if avg == 0 {
		return 1
	}
	return bars[len(bars)-1].Volume / avg
}
