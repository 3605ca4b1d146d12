// Package confluence combines indicator readings and external bias into a
// single 0-100 confidence score with a directional vote.
package confluence

import (
	"errors"
	"fmt"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// Weights is the fixed magnitude each independent signal casts. A zero weight
// disables the signal.
type Weights struct {
	RSI       float64 `toml:"rsi"`
	MACD      float64 `toml:"macd"`
	Trend     float64 `toml:"trend"`
	EMA       float64 `toml:"ema"`
	Book      float64 `toml:"book"`
	Sentiment float64 `toml:"sentiment"`
	Whale     float64 `toml:"whale"`
	Ichimoku  float64 `toml:"ichimoku"`
	Volume    float64 `toml:"volume"`
}

// Config parameterizes the vote.
type Config struct {
	Weights            Weights
	Base               float64
	MinAgreeingSignals int
	RSIOversold        float64
	RSIOverbought      float64
	VolumeSpike        float64
}

// DefaultConfig returns the stock weights: momentum and book signals count
// double the confirmation signals.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			RSI:       10,
			MACD:      10,
			Trend:     10,
			EMA:       5,
			Book:      10,
			Sentiment: 5,
			Whale:     5,
			Ichimoku:  5,
			Volume:    5,
		},
		Base:               50,
		MinAgreeingSignals: 2,
		RSIOversold:        30,
		RSIOverbought:      70,
		VolumeSpike:        3,
	}
}

// Scorer evaluates the canonical weighted vote.
type Scorer struct {
	cfg Config
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("confluence: %w", err)
	}
	return &Scorer{cfg: cfg}, nil
}

func (c Config) validate() error {
	w := c.Weights
	all := []float64{w.RSI, w.MACD, w.Trend, w.EMA, w.Book, w.Sentiment, w.Whale, w.Ichimoku, w.Volume}
	var sum float64
	for _, v := range all {
		if v < 0 {
			return errors.New("weights must not be negative")
		}
		sum += v
	}
	if sum == 0 {
		return errors.New("at least one weight must be positive")
	}
	if c.MinAgreeingSignals < 1 {
		return errors.New("min agreeing signals must be at least 1")
	}
	if c.RSIOversold >= c.RSIOverbought {
		return fmt.Errorf("rsi oversold %.1f must be below overbought %.1f", c.RSIOversold, c.RSIOverbought)
	}
	return nil
}

// Score casts every enabled vote, sums them and derives score and direction.
// The score is clamped to [0, 100]; the direction is HOLD when the total is
// zero or fewer than MinAgreeingSignals votes agree with its sign.
func (s *Scorer) Score(ind domain.IndicatorSet, bias domain.BiasInputs) domain.ConfluenceResult {
	res := domain.ConfluenceResult{
		Symbol:     ind.Symbol,
		Direction:  domain.DirectionHold,
		Indicators: ind,
		Bias:       bias,
	}

	for _, v := range s.votes(ind, bias) {
		if v.Weight == 0 {
			continue
		}
		res.Votes = append(res.Votes, v)
		res.Total += v.Weight
		if v.Weight > 0 {
			res.Bullish++
		} else {
			res.Bearish++
		}
	}

	abs := res.Total
	if abs < 0 {
		abs = -abs
	}
	res.Score = clamp(abs+s.cfg.Base, 0, 100)

	switch {
	case res.Total > 0 && res.Bullish >= s.cfg.MinAgreeingSignals:
		res.Direction = domain.DirectionLong
	case res.Total < 0 && res.Bearish >= s.cfg.MinAgreeingSignals:
		res.Direction = domain.DirectionShort
	}
	return res
}

func (s *Scorer) votes(ind domain.IndicatorSet, bias domain.BiasInputs) []domain.Vote {
	w := s.cfg.Weights
	return []domain.Vote{
		{Name: "rsi", Weight: w.RSI * rsiSide(ind.RSI, s.cfg.RSIOversold, s.cfg.RSIOverbought)},
		{Name: "macd", Weight: w.MACD * sign(ind.MACDHistogram)},
		{Name: "trend", Weight: w.Trend * sign(ind.Close-ind.SMALong)},
		{Name: "ema", Weight: w.EMA * sign(ind.EMAFast-ind.EMASlow)},
		{Name: "book", Weight: w.Book * pressureSide(ind.BookPressure)},
		{Name: "sentiment", Weight: w.Sentiment * biasSide(bias.Sentiment)},
		{Name: "whale", Weight: w.Whale * biasSide(bias.WhaleFlow)},
		{Name: "ichimoku", Weight: w.Ichimoku * sign(ind.IchimokuTenkan-ind.IchimokuKijun)},
		{Name: "volume", Weight: w.Volume * volumeSide(ind, s.cfg.VolumeSpike)},
	}
}

// rsiSide votes against extremes: oversold is bullish, overbought bearish.
func rsiSide(rsi, oversold, overbought float64) float64 {
	switch {
	case rsi <= oversold:
		return 1
	case rsi >= overbought:
		return -1
	}
	return 0
}

func pressureSide(p domain.BookPressure) float64 {
	switch p {
	case domain.PressureBuy:
		return 1
	case domain.PressureSell:
		return -1
	}
	return 0
}

func biasSide(b domain.Bias) float64 {
	switch b {
	case domain.BiasBullish:
		return 1
	case domain.BiasBearish:
		return -1
	}
	return 0
}

// volumeSide confirms the direction of the last bar when volume spikes.
func volumeSide(ind domain.IndicatorSet, spike float64) float64 {
	if spike <= 0 || ind.VolumeRatio < spike {
		return 0
	}
	if ind.LastBarBullish {
		return 1
	}
	return -1
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
