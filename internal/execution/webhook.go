// Package execution forwards trade instructions to the execution
// collaborator: a signal-bot webhook in live mode, a log in paper mode.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// Pair formats understood by FormatPair.
const (
	PairQuoteBase = "quote_base" // USDT_SOL
	PairBaseQuote = "base_quote" // SOL_USDT
	PairConcat    = "concat"     // SOLUSDT
)

// WebhookConfig configures a WebhookSink.
type WebhookConfig struct {
	URL   string
	BotID string
	// BotIDs overrides BotID per symbol ("SOL/USDT").
	BotIDs     map[string]string
	EmailToken string
	PairFormat string
	Timeout    time.Duration
}

// WebhookSink posts instructions as JSON to a signal-bot webhook.
type WebhookSink struct {
	cfg    WebhookConfig
	client *http.Client
	logger *slog.Logger
}

var _ domain.ExecutionSink = (*WebhookSink)(nil)

// NewWebhookSink creates a WebhookSink.
func NewWebhookSink(cfg WebhookConfig, logger *slog.Logger) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("execution: webhook url is empty: %w", domain.ErrConfig)
	}
	if cfg.PairFormat == "" {
		cfg.PairFormat = PairQuoteBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &WebhookSink{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(slog.String("component", "webhook_sink")),
	}, nil
}

// Payload is the webhook body.
type Payload struct {
	MessageType  string      `json:"message_type"`
	BotID        string      `json:"bot_id,omitempty"`
	EmailToken   string      `json:"email_token,omitempty"`
	DelaySeconds int         `json:"delay_seconds"`
	Pair         string      `json:"pair"`
	Action       string      `json:"action"`
	OrderType    string      `json:"order_type"`
	EntryPrice   json.Number `json:"entry_price,omitempty"`
	Amount       json.Number `json:"amount"`
	AmountType   string      `json:"amount_type"`
	TakeProfit   json.Number `json:"take_profit,omitempty"`
	StopLoss     json.Number `json:"stop_loss,omitempty"`
	Trailing     bool        `json:"trailing_enabled,omitempty"`
	TrailingStop json.Number `json:"trailing_stop,omitempty"`
	Leverage     int         `json:"leverage,omitempty"`
	SignalID     string      `json:"signal_id,omitempty"`
}

// BuildPayload maps an instruction to the webhook body. Prices keep eight
// decimals, percentages and amounts two.
func (w *WebhookSink) BuildPayload(inst domain.ExecutionInstruction) Payload {
	p := Payload{
		MessageType: "bot",
		BotID:       w.botID(inst.Symbol),
		EmailToken:  w.cfg.EmailToken,
		Pair:        FormatPair(inst.Symbol, w.cfg.PairFormat),
		Action:      string(inst.Action),
		OrderType:   string(inst.OrderType),
		Amount:      round(inst.Amount, 2),
		AmountType:  string(inst.AmountType),
		Leverage:    inst.Leverage,
		SignalID:    inst.SignalID,
	}
	if inst.EntryPrice > 0 {
		p.EntryPrice = round(inst.EntryPrice, 8)
	}
	if inst.TakeProfitPct > 0 {
		p.TakeProfit = round(inst.TakeProfitPct, 2)
	}
	if inst.StopLossPct > 0 {
		p.StopLoss = round(inst.StopLossPct, 2)
	}
	if inst.TrailingStopPct > 0 {
		p.Trailing = true
		p.TrailingStop = round(inst.TrailingStopPct, 2)
	}
	return p
}

// Execute posts the instruction. 429 maps to ErrRateLimited, 5xx and network
// failures to ErrTransient.
func (w *WebhookSink) Execute(ctx context.Context, inst domain.ExecutionInstruction) error {
	body, err := json.Marshal(w.BuildPayload(inst))
	if err != nil {
		return fmt.Errorf("execution: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("execution: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("execution: send request: %w: %w", domain.ErrTransient, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("execution: webhook status %d: %s: %w", resp.StatusCode, string(respBody), classify(resp.StatusCode))
	}

	w.logger.InfoContext(ctx, "instruction delivered",
		slog.String("symbol", inst.Symbol),
		slog.String("action", string(inst.Action)),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}

func (w *WebhookSink) botID(symbol string) string {
	if id, ok := w.cfg.BotIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return w.cfg.BotID
}

// FormatPair renders "SOL/USDT" in the requested pair format.
func FormatPair(symbol, format string) string {
	base, quote := domain.SplitSymbol(symbol)
	if quote == "" {
		return base
	}
	switch format {
	case PairBaseQuote:
		return base + "_" + quote
	case PairConcat:
		return base + quote
	default:
		return quote + "_" + base
	}
}

func round(v float64, places int32) json.Number {
	return json.Number(decimal.NewFromFloat(v).Round(places).String())
}

func classify(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case code >= 500:
		return domain.ErrTransient
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrUnauthorized
	default:
		return domain.ErrInvalidRequest
	}
}
