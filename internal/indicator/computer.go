package indicator

import "github.com/alanyoungcy/confluencebot/internal/domain"

// Params are the lookbacks and thresholds used by Computer.
type Params struct {
	RSIPeriod       int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	EMAFast         int
	EMASlow         int
	SMALong         int
	BollingerPeriod int
	BollingerK      float64
	ATRPeriod       int
	BookDepth       int
	DominanceRatio  float64
	VolumePeriod    int
	TenkanPeriod    int
	KijunPeriod     int
}

// DefaultParams returns the conventional lookbacks.
func DefaultParams() Params {
	return Params{
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		EMAFast:         12,
		EMASlow:         26,
		SMALong:         50,
		BollingerPeriod: 20,
		BollingerK:      2,
		ATRPeriod:       14,
		BookDepth:       5,
		DominanceRatio:  1.2,
		VolumePeriod:    20,
		TenkanPeriod:    9,
		KijunPeriod:     26,
	}
}

// Computer turns a market snapshot into an IndicatorSet.
type Computer struct {
	p Params
}

// NewComputer returns a Computer using p. Zero-valued fields of p fall back to
// DefaultParams.
func NewComputer(p Params) *Computer {
	return &Computer{p: withDefaults(p)}
}

// Compute derives every indicator from snap. It never fails: fields whose
// window is too short hold their neutral value, and price-like fields fall
// back to the latest close. Paired lines (fast/slow EMA, tenkan/kijun) fall
// back together so a half-filled pair never reads as a crossover.
func (c *Computer) Compute(snap domain.MarketSnapshot) domain.IndicatorSet {
	closes := snap.Closes()
	last := snap.LastPrice()

	set := domain.IndicatorSet{
		Symbol:       snap.Symbol,
		Timestamp:    snap.Timestamp,
		Close:        last,
		RSI:          RSI(closes, c.p.RSIPeriod),
		SMALong:      orLast(SMA(closes, c.p.SMALong), last),
		ATR:          ATR(snap.Bars, c.p.ATRPeriod),
		VolumeRatio:  VolumeRatio(snap.Bars, c.p.VolumePeriod),
		BookPressure: Pressure(snap.Book, c.p.BookDepth, c.p.DominanceRatio),
	}
	set.OrderBookImbalance = Imbalance(snap.Book, c.p.BookDepth)

	set.EMAFast, set.EMASlow = last, last
	fast, slow := EMA(closes, c.p.EMAFast), EMA(closes, c.p.EMASlow)
	if fast != 0 && slow != 0 {
		set.EMAFast, set.EMASlow = fast, slow
	}

	m := MACD(closes, c.p.MACDFast, c.p.MACDSlow, c.p.MACDSignal)
	set.MACDLine, set.MACDSignal, set.MACDHistogram = m.Line, m.Signal, m.Histogram

	if b, ok := Bollinger(closes, c.p.BollingerPeriod, c.p.BollingerK); ok {
		set.BollingerUpper, set.BollingerMiddle, set.BollingerLower = b.Upper, b.Middle, b.Lower
	} else {
		set.BollingerUpper, set.BollingerMiddle, set.BollingerLower = last, last, last
	}

	if last > 0 {
		set.ATRPercent = set.ATR / last * 100
	}

	set.VWAP = last
	if v, ok := VWAP(snap.Bars); ok {
		set.VWAP = v
	}

	set.IchimokuTenkan, set.IchimokuKijun = last, last
	tenkan, tok := Midpoint(snap.Bars, c.p.TenkanPeriod)
	kijun, kok := Midpoint(snap.Bars, c.p.KijunPeriod)
	if tok && kok {
		set.IchimokuTenkan, set.IchimokuKijun = tenkan, kijun
	}

	if n := len(snap.Bars); n > 0 {
		set.LastBarBullish = snap.Bars[n-1].Close >= snap.Bars[n-1].Open
	}
	return set
}

func orLast(v, last float64) float64 {
	if v == 0 {
		return last
	}
	return v
}

func withDefaults(p Params) Params {
	d := DefaultParams()
	setInt := func(dst *int, def int) {
		if *dst <= 0 {
			*dst = def
		}
	}
	setFloat := func(dst *float64, def float64) {
		if *dst <= 0 {
			*dst = def
		}
	}
	setInt(&p.RSIPeriod, d.RSIPeriod)
	setInt(&p.MACDFast, d.MACDFast)
	setInt(&p.MACDSlow, d.MACDSlow)
	setInt(&p.MACDSignal, d.MACDSignal)
	setInt(&p.EMAFast, d.EMAFast)
	setInt(&p.EMASlow, d.EMASlow)
	setInt(&p.SMALong, d.SMALong)
	setInt(&p.BollingerPeriod, d.BollingerPeriod)
	setFloat(&p.BollingerK, d.BollingerK)
	setInt(&p.ATRPeriod, d.ATRPeriod)
	setInt(&p.BookDepth, d.BookDepth)
	setFloat(&p.DominanceRatio, d.DominanceRatio)
	setInt(&p.VolumePeriod, d.VolumePeriod)
	setInt(&p.TenkanPeriod, d.TenkanPeriod)
	setInt(&p.KijunPeriod, d.KijunPeriod)
	return p
}
