package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// floatEquals compares two floats with tolerance
func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// trendingCloses starts at 10, 10.5, 11, 10.8, 11.2 and keeps climbing 1.5%
// per bar with a 0.5% pullback every fourth bar.
func trendingCloses(n int) []float64 {
	c := []float64{10, 10.5, 11, 10.8, 11.2}
	for i := 1; len(c) < n; i++ {
		f := 1.015
		if i%4 == 0 {
			f = 0.995
		}
		c = append(c, math.Round(c[len(c)-1]*f*1e6)/1e6)
	}
	return c
}

func barsFromCloses(closes []float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = domain.Bar{
			OpenTime: t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:     open,
			High:     math.Max(open, c) * 1.002,
			Low:      math.Min(open, c) * 0.998,
			Close:    c,
			Volume:   100,
		}
	}
	return bars
}

func TestRSINeutralOnShortHistory(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	if got := RSI(closes, 14); got != 50 {
		t.Fatalf("expected 50 with %d closes, got %f", len(closes), got)
	}
}

func TestRSISaturatesWithoutLosses(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	if got := RSI(closes, 14); got != 100 {
		t.Fatalf("expected 100 when average loss is zero, got %f", got)
	}
}

func TestRSIFlatSeriesIsNeutral(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 42
	}
	if got := RSI(closes, 14); got != 50 {
		t.Fatalf("expected 50 for a flat series, got %f", got)
	}
}

func TestRSIStaysInRange(t *testing.T) {
	closes := make([]float64, 200)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i%7)
	}
	for n := 15; n <= len(closes); n++ {
		got := RSI(closes[:n], 14)
		if got < 0 || got > 100 {
			t.Fatalf("RSI out of range at n=%d: %f", n, got)
		}
	}
}

func TestRSIFallingSeriesBelowFifty(t *testing.T) {
	closes := trendingCloses(40)
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}
	if got := RSI(closes, 14); got >= 50 {
		t.Errorf("expected RSI < 50 for a falling series, got %f", got)
	}
}

func TestEMAOfConstantIsConstant(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5, 5, 5, 5}
	if got := EMA(values, 3); !floatEquals(got, 5, 1e-12) {
		t.Errorf("expected 5, got %f", got)
	}
	if s := EMASeries(values, 3); len(s) != 6 {
		t.Errorf("expected 6 series points, got %d", len(s))
	}
	if EMA(values, 20) != 0 {
		t.Error("expected 0 for a window shorter than the period")
	}
}

func TestMACDPositiveInUptrend(t *testing.T) {
	m := MACD(trendingCloses(40), 12, 26, 9)
	if m.Line <= 0 {
		t.Errorf("expected positive MACD line, got %f", m.Line)
	}
	if m.Histogram <= 0 {
		t.Errorf("expected positive histogram, got %f", m.Histogram)
	}
	if !floatEquals(m.Histogram, m.Line-m.Signal, 1e-12) {
		t.Errorf("histogram %f != line-signal %f", m.Histogram, m.Line-m.Signal)
	}
}

func TestMACDShortWindowIsZero(t *testing.T) {
	if m := MACD(trendingCloses(33), 12, 26, 9); m != (MACDResult{}) {
		t.Errorf("expected zero MACD for 33 closes, got %+v", m)
	}
}

func TestATRConstantRange(t *testing.T) {
	bars := make([]domain.Bar, 20)
	for i := range bars {
		bars[i] = domain.Bar{Open: 100, High: 101, Low: 99, Close: 100}
	}
	if got := ATR(bars, 14); !floatEquals(got, 2, 1e-12) {
		t.Errorf("expected ATR 2, got %f", got)
	}
	if got := ATR(bars[:14], 14); got != 0 {
		t.Errorf("expected 0 with 14 bars, got %f", got)
	}
}

func TestTrueRangeUsesGap(t *testing.T) {
	b := domain.Bar{High: 105, Low: 104, Close: 104.5}
	if got := TrueRange(b, 100); got != 5 {
		t.Errorf("expected gap-driven true range 5, got %f", got)
	}
}

func TestBollingerKnownValues(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = float64(i + 1)
	}
	b, ok := Bollinger(values, 20, 2)
	if !ok {
		t.Fatal("expected bands for 20 values")
	}
	sd := math.Sqrt(399.0 / 12.0)
	if !floatEquals(b.Middle, 10.5, 1e-12) {
		t.Errorf("middle: expected 10.5, got %f", b.Middle)
	}
	if !floatEquals(b.Upper, 10.5+2*sd, 1e-9) || !floatEquals(b.Lower, 10.5-2*sd, 1e-9) {
		t.Errorf("unexpected bands %+v", b)
	}
	if _, ok := Bollinger(values[:19], 20, 2); ok {
		t.Error("expected no bands for 19 values")
	}
}

func TestVWAP(t *testing.T) {
	bars := []domain.Bar{
		{High: 11, Low: 9, Close: 10, Volume: 1},
		{High: 21, Low: 19, Close: 20, Volume: 3},
	}
	got, ok := VWAP(bars)
	if !ok || !floatEquals(got, 17.5, 1e-12) {
		t.Errorf("expected 17.5, got %f (ok=%v)", got, ok)
	}
	if _, ok := VWAP([]domain.Bar{{Close: 1}}); ok {
		t.Error("expected no VWAP without volume")
	}
}

func TestImbalanceAndPressure(t *testing.T) {
	book := domain.OrderBook{
		Bids: []domain.PriceLevel{{Price: 99, Size: 6}, {Price: 98, Size: 6}, {Price: 97, Size: 100}},
		Asks: []domain.PriceLevel{{Price: 101, Size: 5}, {Price: 102, Size: 5}},
	}
	if got := Imbalance(book, 2); !floatEquals(got, 2.0/22.0, 1e-12) {
		t.Errorf("imbalance: expected %f, got %f", 2.0/22.0, got)
	}
	if got := Pressure(book, 2, 1.2); got != domain.PressureBuy {
		t.Errorf("expected buy pressure at exactly 1.2x, got %s", got)
	}
	if got := Pressure(book, 2, 1.3); got != domain.PressureNeutral {
		t.Errorf("expected neutral pressure below ratio, got %s", got)
	}
	flipped := domain.OrderBook{Bids: book.Asks, Asks: book.Bids}
	if got := Pressure(flipped, 2, 1.2); got != domain.PressureSell {
		t.Errorf("expected sell pressure, got %s", got)
	}
	if Imbalance(domain.OrderBook{}, 5) != 0 {
		t.Error("expected zero imbalance for an empty book")
	}
}

func TestMidpoint(t *testing.T) {
	bars := []domain.Bar{{High: 10, Low: 5}, {High: 12, Low: 8}, {High: 11, Low: 7}}
	got, ok := Midpoint(bars, 3)
	if !ok || got != 8.5 {
		t.Errorf("expected 8.5, got %f (ok=%v)", got, ok)
	}
}

func TestComputeNeutralDefaults(t *testing.T) {
	c := NewComputer(Params{})
	set := c.Compute(domain.MarketSnapshot{Symbol: "SOL/USDT"})
	if set.RSI != 50 {
		t.Errorf("expected RSI 50, got %f", set.RSI)
	}
	if set.OrderBookImbalance != 0 || set.BookPressure != domain.PressureNeutral {
		t.Errorf("expected neutral book, got %f/%s", set.OrderBookImbalance, set.BookPressure)
	}
	if set.VolumeRatio != 1 {
		t.Errorf("expected volume ratio 1, got %f", set.VolumeRatio)
	}
	if set.ATR != 0 || set.ATRPercent != 0 || set.MACDHistogram != 0 {
		t.Errorf("expected zero volatility and momentum, got %+v", set)
	}
}

func TestComputeShortWindowFallsBackToClose(t *testing.T) {
	c := NewComputer(DefaultParams())
	bars := barsFromCloses([]float64{10, 11, 12})
	set := c.Compute(domain.MarketSnapshot{Symbol: "SOL/USDT", Bars: bars})
	if set.SMALong != 12 || set.BollingerMiddle != 12 || set.IchimokuKijun != 12 {
		t.Errorf("expected price fields to fall back to the close, got %+v", set)
	}
	if set.RSI != 50 {
		t.Errorf("expected neutral RSI, got %f", set.RSI)
	}
}

func TestComputeTrendingWindow(t *testing.T) {
	c := NewComputer(DefaultParams())
	bars := barsFromCloses(trendingCloses(40))
	set := c.Compute(domain.MarketSnapshot{Symbol: "SOL/USDT", Bars: bars})
	if set.RSI <= 50 {
		t.Errorf("expected RSI > 50, got %f", set.RSI)
	}
	if set.MACDHistogram <= 0 {
		t.Errorf("expected positive histogram, got %f", set.MACDHistogram)
	}
	if set.EMAFast <= set.EMASlow {
		t.Errorf("expected fast EMA above slow, got %f <= %f", set.EMAFast, set.EMASlow)
	}
	if set.ATR <= 0 || !floatEquals(set.ATRPercent, set.ATR/set.Close*100, 1e-12) {
		t.Errorf("unexpected ATR %f / ATR%% %f", set.ATR, set.ATRPercent)
	}
	if set.IchimokuTenkan <= set.IchimokuKijun {
		t.Errorf("expected tenkan above kijun in an uptrend, got %f <= %f", set.IchimokuTenkan, set.IchimokuKijun)
	}
}

func TestComputeHalfFilledPairsFallBackTogether(t *testing.T) {
	c := NewComputer(DefaultParams())
	closes := trendingCloses(20)
	set := c.Compute(domain.MarketSnapshot{Symbol: "SOL/USDT", Bars: barsFromCloses(closes)})
	last := closes[len(closes)-1]
	if set.EMAFast != last || set.EMASlow != last {
		t.Errorf("expected both EMAs at the close %f without a slow window, got %f/%f", last, set.EMAFast, set.EMASlow)
	}
	if set.IchimokuTenkan != last || set.IchimokuKijun != last {
		t.Errorf("expected tenkan and kijun at the close %f without a kijun window, got %f/%f", last, set.IchimokuTenkan, set.IchimokuKijun)
	}
}
