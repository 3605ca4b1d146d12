package signal

import (
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// LevelMode selects how stop-loss is placed.
type LevelMode string

const (
	LevelsATR       LevelMode = "atr"
	LevelsBollinger LevelMode = "bollinger"
)

// TrailingMode selects how the trailing distance is sized.
type TrailingMode string

const (
	TrailingATR     TrailingMode = "atr"
	TrailingPercent TrailingMode = "percent"
)

// Config holds the entry threshold and the level multiples.
type Config struct {
	MinScore            float64
	LevelMode           LevelMode
	SLATRMultiple       float64
	TPATRMultiple       float64
	BollingerBufferPct  float64
	TrailingMode        TrailingMode
	TrailingATRMultiple float64
	TrailingPct         float64
}

// Generator derives entry, stop-loss, take-profit and trailing distance for a
// confluence result.
type Generator struct {
	cfg   Config
	now   func() time.Time
	newID func() string
}

// NewGenerator returns a Generator for cfg.
func NewGenerator(cfg Config) *Generator {
	if cfg.LevelMode == "" {
		cfg.LevelMode = LevelsATR
	}
	if cfg.TrailingMode == "" {
		cfg.TrailingMode = TrailingATR
	}
	return &Generator{
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// Generate returns a signal when the result clears the threshold and points
// in a direction. Results whose levels cannot satisfy the signal invariant
// (no ATR, no price) are rejected.
func (g *Generator) Generate(res domain.ConfluenceResult, snap domain.MarketSnapshot) (domain.TradeSignal, bool) {
	if res.Direction == domain.DirectionHold || res.Score < g.cfg.MinScore {
		return domain.TradeSignal{}, false
	}

	entry := snap.LastPrice()
	atr := res.Indicators.ATR
	if entry <= 0 || atr <= 0 {
		return domain.TradeSignal{}, false
	}

	sig := domain.TradeSignal{
		ID:                   g.newID(),
		Symbol:               snap.Symbol,
		Direction:            res.Direction,
		EntryPrice:           entry,
		TrailingStopDistance: g.trailingDistance(entry, atr),
		ConfluenceScore:      res.Score,
		CreatedAt:            g.now(),
	}
	sig.StopLoss, sig.TakeProfit = g.levels(res.Direction, entry, atr, res.Indicators)

	if sig.StopLoss <= 0 || sig.TakeProfit <= 0 {
		return domain.TradeSignal{}, false
	}
	if err := sig.Validate(); err != nil {
		return domain.TradeSignal{}, false
	}
	return sig, true
}

func (g *Generator) levels(dir domain.Direction, entry, atr float64, ind domain.IndicatorSet) (sl, tp float64) {
	slDist := g.cfg.SLATRMultiple * atr
	tpDist := g.cfg.TPATRMultiple * atr
	buf := g.cfg.BollingerBufferPct / 100

	if dir == domain.DirectionLong {
		sl, tp = entry-slDist, entry+tpDist
		if g.cfg.LevelMode == LevelsBollinger {
			// A band already breached by price falls back to the ATR stop.
			if band := ind.BollingerLower * (1 - buf); band > 0 && band < entry {
				sl = band
			}
		}
		return sl, tp
	}

	sl, tp = entry+slDist, entry-tpDist
	if g.cfg.LevelMode == LevelsBollinger {
		if band := ind.BollingerUpper * (1 + buf); band > entry {
			sl = band
		}
	}
	return sl, tp
}

func (g *Generator) trailingDistance(entry, atr float64) float64 {
	if g.cfg.TrailingMode == TrailingPercent {
		return entry * g.cfg.TrailingPct / 100
	}
	return g.cfg.TrailingATRMultiple * atr
}
