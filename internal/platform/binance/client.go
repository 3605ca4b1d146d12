// Package binance is the market-data provider backed by the Binance spot
// REST API and its mini-ticker WebSocket stream.
package binance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"github.com/alanyoungcy/confluencebot/internal/crypto"
	"github.com/alanyoungcy/confluencebot/internal/domain"
)

const (
	DefaultBaseURL = "https://api.binance.com"
	DefaultWSURL   = "wss://stream.binance.com:9443"

	rateLimitKey = "binance:rest"
)

// Waiter blocks until a request fits in the shared request budget.
type Waiter interface {
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Auth signs account requests. Nil limits the client to public data.
	Auth       *crypto.HMACAuth
	Limiter    Waiter
	RateLimit  int
	RateWindow time.Duration
	Timeout    time.Duration
}

// Client implements domain.MarketDataProvider.
type Client struct {
	cfg    Config
	http   *fasthttp.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.MarketDataProvider = (*Client)(nil)

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	return &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:                "confluencebot",
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 90 * time.Second,
		},
		logger: logger.With(slog.String("component", "binance")),
		now:    time.Now,
	}
}

// FetchBars returns up to limit klines of timeframe, oldest first.
func (c *Client) FetchBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("symbol", ExchangeSymbol(symbol))
	q.Set("interval", timeframe)
	q.Set("limit", strconv.Itoa(min(max(limit, 1), 1000)))

	body, err := c.get(ctx, "/api/v3/klines", q.Encode(), false)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s %s: %w", symbol, timeframe, err)
	}
	bars, err := parseKlines(body)
	if err != nil {
		return nil, fmt.Errorf("binance: klines %s %s: %w", symbol, timeframe, err)
	}
	return bars, nil
}

// FetchOrderBook returns the top depth levels per side.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.OrderBook, error) {
	q := url.Values{}
	q.Set("symbol", ExchangeSymbol(symbol))
	q.Set("limit", strconv.Itoa(depthLimit(depth)))

	body, err := c.get(ctx, "/api/v3/depth", q.Encode(), false)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance: depth %s: %w", symbol, err)
	}
	book, err := parseDepth(body, depth)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance: depth %s: %w", symbol, err)
	}
	return book, nil
}

// FetchBalance returns the non-zero account balances.
func (c *Client) FetchBalance(ctx context.Context) ([]domain.Balance, error) {
	if c.cfg.Auth == nil {
		return nil, fmt.Errorf("binance: account: no api credentials: %w", domain.ErrUnauthorized)
	}
	q := url.Values{}
	q.Set("omitZeroBalances", "true")

	body, err := c.get(ctx, "/api/v3/account", c.cfg.Auth.SignedQuery(q, c.now()), true)
	if err != nil {
		return nil, fmt.Errorf("binance: account: %w", err)
	}
	balances, err := parseBalances(body)
	if err != nil {
		return nil, fmt.Errorf("binance: account: %w", err)
	}
	return balances, nil
}

func (c *Client) get(ctx context.Context, path, query string, signed bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.cfg.Limiter != nil && c.cfg.RateLimit > 0 {
		if err := c.cfg.Limiter.Wait(ctx, rateLimitKey, c.cfg.RateLimit, c.cfg.RateWindow); err != nil {
			return nil, err
		}
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + path + "?" + query)
	req.Header.SetMethod(fasthttp.MethodGet)
	if signed {
		req.Header.Set(crypto.APIKeyHeader, c.cfg.Auth.Key)
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, transportError(err)
	}

	status := resp.StatusCode()
	body := append([]byte(nil), resp.Body()...)
	if status != fasthttp.StatusOK {
		c.logger.WarnContext(ctx, "binance request failed",
			slog.String("path", path),
			slog.Int("status", status),
		)
		return nil, statusError(status, body)
	}
	return body, nil
}

// ExchangeSymbol converts "SOL/USDT" to "SOLUSDT".
func ExchangeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

// depthLimit rounds n up to a depth size the endpoint accepts.
func depthLimit(n int) int {
	for _, l := range []int{5, 10, 20, 50, 100, 500, 1000, 5000} {
		if n <= l {
			return l
		}
	}
	return 5000
}

func transportError(err error) error {
	if errors.Is(err, fasthttp.ErrTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrTransient, context.DeadlineExceeded)
	}
	return fmt.Errorf("%w: %w", domain.ErrTransient, err)
}

// statusError maps an HTTP status to the error taxonomy. 418 is the ban
// response after ignoring 429s.
func statusError(status int, body []byte) error {
	msg := gjson.GetBytes(body, "msg").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	var kind error
	switch {
	case status == fasthttp.StatusTooManyRequests || status == fasthttp.StatusTeapot:
		kind = domain.ErrRateLimited
	case status >= 500:
		kind = domain.ErrTransient
	case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
		kind = domain.ErrUnauthorized
	case status == fasthttp.StatusNotFound:
		kind = domain.ErrNotFound
	default:
		kind = domain.ErrInvalidRequest
	}
	return fmt.Errorf("status %d: %s: %w", status, msg, kind)
}

func parseKlines(body []byte) ([]domain.Bar, error) {
	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		return nil, fmt.Errorf("unexpected kline response format: %w", domain.ErrInvalidRequest)
	}
	rows := res.Array()
	bars := make([]domain.Bar, 0, len(rows))
	for _, v := range rows {
		row := v.Array()
		if len(row) < 6 {
			continue
		}
		bars = append(bars, domain.Bar{
			OpenTime: time.UnixMilli(row[0].Int()).UTC(),
			Open:     row[1].Float(),
			High:     row[2].Float(),
			Low:      row[3].Float(),
			Close:    row[4].Float(),
			Volume:   row[5].Float(),
		})
	}
	return bars, nil
}

func parseDepth(body []byte, depth int) (domain.OrderBook, error) {
	res := gjson.ParseBytes(body)
	if !res.Get("bids").IsArray() || !res.Get("asks").IsArray() {
		return domain.OrderBook{}, fmt.Errorf("unexpected depth response format: %w", domain.ErrInvalidRequest)
	}
	return domain.OrderBook{
		Bids: parseLevels(res.Get("bids"), depth),
		Asks: parseLevels(res.Get("asks"), depth),
	}, nil
}

func parseLevels(side gjson.Result, depth int) []domain.PriceLevel {
	rows := side.Array()
	if depth > 0 && len(rows) > depth {
		rows = rows[:depth]
	}
	levels := make([]domain.PriceLevel, 0, len(rows))
	for _, r := range rows {
		levels = append(levels, domain.PriceLevel{
			Price: r.Get("0").Float(),
			Size:  r.Get("1").Float(),
		})
	}
	return levels
}

func parseBalances(body []byte) ([]domain.Balance, error) {
	res := gjson.GetBytes(body, "balances")
	if !res.IsArray() {
		return nil, fmt.Errorf("unexpected account response format: %w", domain.ErrInvalidRequest)
	}
	var out []domain.Balance
	res.ForEach(func(_, b gjson.Result) bool {
		free, locked := b.Get("free").Float(), b.Get("locked").Float()
		if free == 0 && locked == 0 {
			return true
		}
		out = append(out, domain.Balance{
			Asset:  b.Get("asset").String(),
			Free:   free,
			Locked: locked,
		})
		return true
	})
	return out, nil
}
