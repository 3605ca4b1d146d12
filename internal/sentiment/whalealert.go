package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

const (
	whaleAlertURL = "https://api.whale-alert.io/v1/transactions"

	// flowDominance is how many times one direction must exceed the other.
	flowDominance = 3
	whaleLookback = time.Hour
)

// WhaleAlert derives a bias from large transfers into and out of exchanges
// during the last hour.
type WhaleAlert struct {
	baseURL string
	apiKey  string
	minUSD  int64
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

var _ domain.BiasProvider = (*WhaleAlert)(nil)

// NewWhaleAlert creates a WhaleAlert provider. Transfers below minUSD are
// not returned by the API.
func NewWhaleAlert(apiKey string, minUSD int64, logger *slog.Logger) *WhaleAlert {
	if minUSD <= 0 {
		minUSD = 500000
	}
	return &WhaleAlert{
		baseURL: whaleAlertURL,
		apiKey:  apiKey,
		minUSD:  minUSD,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With(slog.String("component", "whale_alert")),
		now:     time.Now,
	}
}

// Bias compares exchange inflow with outflow for the symbol's base asset.
func (w *WhaleAlert) Bias(ctx context.Context, symbol string) (domain.Bias, error) {
	base, _ := domain.SplitSymbol(symbol)
	q := url.Values{}
	q.Set("api_key", w.apiKey)
	q.Set("min_value", strconv.FormatInt(w.minUSD, 10))
	q.Set("start", strconv.FormatInt(w.now().Add(-whaleLookback).Unix(), 10))
	q.Set("currency", strings.ToLower(base))

	body, err := getJSON(ctx, w.client, w.baseURL+"?"+q.Encode())
	if err != nil {
		return domain.BiasNeutral, fmt.Errorf("sentiment: whale alert %s: %w", base, err)
	}

	in, out := exchangeFlows(body, base)
	b := FlowBias(in, out)
	w.logger.DebugContext(ctx, "whale flow",
		slog.String("symbol", symbol),
		slog.Float64("inflow_usd", in),
		slog.Float64("outflow_usd", out),
		slog.String("bias", b.String()),
	)
	return b, nil
}

// exchangeFlows sums the USD value of transfers of asset into exchanges
// (inflow) and out of them (outflow). Exchange-to-exchange moves count as
// neither.
func exchangeFlows(body []byte, asset string) (inflow, outflow float64) {
	gjson.GetBytes(body, "transactions").ForEach(func(_, tx gjson.Result) bool {
		if !strings.EqualFold(tx.Get("symbol").String(), asset) {
			return true
		}
		from := tx.Get("from.owner_type").String() == "exchange"
		to := tx.Get("to.owner_type").String() == "exchange"
		usd := tx.Get("amount_usd").Float()
		switch {
		case to && !from:
			inflow += usd
		case from && !to:
			outflow += usd
		}
		return true
	})
	return inflow, outflow
}

// FlowBias is bearish when inflow exceeds three times outflow (supply
// arriving to be sold) and bullish in the mirrored case.
func FlowBias(inflow, outflow float64) domain.Bias {
	switch {
	case inflow > 0 && inflow > flowDominance*outflow:
		return domain.BiasBearish
	case outflow > 0 && outflow > flowDominance*inflow:
		return domain.BiasBullish
	}
	return domain.BiasNeutral
}
