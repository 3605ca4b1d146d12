package domain

// Bias is an external directional hint.
type Bias string

const (
	BiasNeutral Bias = ""
	BiasBullish Bias = "bullish"
	BiasBearish Bias = "bearish"
)

// String returns "neutral" for the zero value.
func (b Bias) String() string {
	if b == BiasNeutral {
		return "neutral"
	}
	return string(b)
}

// BiasInputs carries the optional external hints. The zero value is neutral
// on every axis.
type BiasInputs struct {
	Sentiment Bias
	WhaleFlow Bias
}

// Direction is the directional vote of a confluence evaluation.
type Direction string

const (
	DirectionHold  Direction = "HOLD"
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Vote is one signal's contribution to a confluence total. Weight is signed:
// positive is bullish, negative bearish.
type Vote struct {
	Name   string
	Weight float64
}

// ConfluenceResult is the outcome of scoring one IndicatorSet. Score is always
// within [0, 100].
type ConfluenceResult struct {
	Symbol     string
	Score      float64
	Direction  Direction
	Total      float64
	Bullish    int
	Bearish    int
	Votes      []Vote
	Indicators IndicatorSet
	Bias       BiasInputs
}
