// Package sentiment provides external directional bias for a symbol: news
// sentiment from CryptoPanic and exchange flow of large transfers from
// Whale Alert.
package sentiment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

const (
	cryptoPanicURL = "https://cryptopanic.com/api/v1/posts/"

	bullishRatio = 0.6
	bearishRatio = 0.4
)

// CryptoPanic derives a bias from community votes on recent posts.
type CryptoPanic struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

var _ domain.BiasProvider = (*CryptoPanic)(nil)

// NewCryptoPanic creates a CryptoPanic provider for the given API token.
func NewCryptoPanic(token string, logger *slog.Logger) *CryptoPanic {
	return &CryptoPanic{
		baseURL: cryptoPanicURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With(slog.String("component", "cryptopanic")),
	}
}

// Bias sums positive and negative votes over the returned posts for the
// symbol's base currency.
func (c *CryptoPanic) Bias(ctx context.Context, symbol string) (domain.Bias, error) {
	base, _ := domain.SplitSymbol(symbol)
	q := url.Values{}
	q.Set("auth_token", c.token)
	q.Set("currencies", base)
	q.Set("public", "true")

	body, err := getJSON(ctx, c.client, c.baseURL+"?"+q.Encode())
	if err != nil {
		return domain.BiasNeutral, fmt.Errorf("sentiment: cryptopanic %s: %w", base, err)
	}

	var pos, neg float64
	gjson.GetBytes(body, "results").ForEach(func(_, post gjson.Result) bool {
		pos += post.Get("votes.positive").Float()
		neg += post.Get("votes.negative").Float()
		return true
	})

	b := VoteBias(pos, neg)
	c.logger.DebugContext(ctx, "news sentiment",
		slog.String("symbol", symbol),
		slog.Float64("positive", pos),
		slog.Float64("negative", neg),
		slog.String("bias", b.String()),
	)
	return b, nil
}

// VoteBias maps vote counts to a bias: a positive share of at least 60% is
// bullish, at most 40% bearish. No votes is neutral.
func VoteBias(positive, negative float64) domain.Bias {
	total := positive + negative
	if total <= 0 {
		return domain.BiasNeutral
	}
	ratio := positive / total
	switch {
	case ratio >= bullishRatio:
		return domain.BiasBullish
	case ratio <= bearishRatio:
		return domain.BiasBearish
	}
	return domain.BiasNeutral
}

func getJSON(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w: %w", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %w", domain.ErrTransient, err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrTransient)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrUnauthorized)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrInvalidRequest)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json body: %w", domain.ErrInvalidRequest)
	}
	return body, nil
}
