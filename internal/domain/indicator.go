package domain

import "time"

// BookPressure classifies which side of the order book dominates.
type BookPressure string

const (
	PressureBuy     BookPressure = "buy"
	PressureSell    BookPressure = "sell"
	PressureNeutral BookPressure = "neutral"
)

// IndicatorSet is the technical view of one symbol at one instant. Every
// field holds a neutral value when the source window was too short.
type IndicatorSet struct {
	Symbol    string
	Timestamp time.Time
	Close     float64

	RSI           float64
	MACDLine      float64
	MACDSignal    float64
	MACDHistogram float64

	EMAFast float64
	EMASlow float64
	SMALong float64

	BollingerUpper  float64
	BollingerMiddle float64
	BollingerLower  float64

	ATR        float64
	ATRPercent float64
	VWAP       float64

	OrderBookImbalance float64
	BookPressure       BookPressure

	VolumeRatio    float64
	LastBarBullish bool

	IchimokuTenkan float64
	IchimokuKijun  float64
}
