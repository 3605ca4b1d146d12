// Package indicator computes technical indicators over OHLCV windows. Every
// function is total: short input yields a neutral value instead of an error.
package indicator

// SMA returns the simple moving average of the last period values, or 0 when
// fewer than period values exist.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMASeries returns the exponential moving average series of values. The
// first element corresponds to values[period-1] and is seeded with the SMA of
// the first period values. It returns nil when fewer than period values exist.
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	ema := SMA(values[:period], period)
	out = append(out, ema)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
		out = append(out, ema)
	}
	return out
}

// EMA returns the latest exponential moving average, or 0 when fewer than
// period values exist.
func EMA(values []float64, period int) float64 {
	s := EMASeries(values, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// MACDResult holds the latest MACD line, signal and histogram.
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD computes EMA(fast) - EMA(slow) and its signal EMA. All fields are 0
// until slow+signal-1 values exist.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	if fast <= 0 || slow <= fast || signal <= 0 || len(values) < slow+signal-1 {
		return MACDResult{}
	}
	fastS := EMASeries(values, fast)
	slowS := EMASeries(values, slow)

	// fastS starts at values[fast-1], slowS at values[slow-1].
	offset := slow - fast
	line := make([]float64, len(slowS))
	for i := range slowS {
		line[i] = fastS[i+offset] - slowS[i]
	}

	sig := EMA(line, signal)
	last := line[len(line)-1]
	return MACDResult{Line: last, Signal: sig, Histogram: last - sig}
}
