package binance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

const (
	// pongWait bounds the silence tolerated on the stream. Binance pings
	// every few minutes and pushes mini tickers every second.
	pongWait = 60 * time.Second

	handshakeTimeout = 15 * time.Second
)

// Ticker is one last-price update from the mini-ticker stream.
type Ticker struct {
	Symbol string
	Price  float64
	At     time.Time
}

// TickerHandler is called for every parsed ticker.
type TickerHandler func(ctx context.Context, t Ticker)

// TickerStream reads the combined mini-ticker stream for a fixed symbol set.
type TickerStream struct {
	wsURL   string
	symbols map[string]string // exchange symbol -> "BASE/QUOTE"
	logger  *slog.Logger
}

// NewTickerStream creates a stream for symbols given as "SOL/USDT".
func NewTickerStream(wsURL string, symbols []string, logger *slog.Logger) *TickerStream {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	m := make(map[string]string, len(symbols))
	for _, s := range symbols {
		m[ExchangeSymbol(s)] = strings.ToUpper(s)
	}
	return &TickerStream{
		wsURL:   strings.TrimRight(wsURL, "/"),
		symbols: m,
		logger:  logger.With(slog.String("component", "binance_ws")),
	}
}

// StreamURL returns the combined-stream URL for the configured symbols.
func (s *TickerStream) StreamURL() string {
	streams := make([]string, 0, len(s.symbols))
	for ex := range s.symbols {
		streams = append(streams, strings.ToLower(ex)+"@miniTicker")
	}
	sort.Strings(streams)
	return s.wsURL + "/stream?streams=" + strings.Join(streams, "/")
}

// Run connects once and delivers tickers to h until the connection drops
// or ctx is cancelled. Reconnection is the caller's concern.
func (s *TickerStream) Run(ctx context.Context, h TickerHandler) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.StreamURL(), nil)
	if err != nil {
		return fmt.Errorf("binance/ws: connect: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	s.logger.InfoContext(ctx, "ticker stream connected", slog.Int("symbols", len(s.symbols)))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("binance/ws: read: %w: %w", domain.ErrWSDisconnect, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if t, ok := s.parseTicker(msg); ok {
			h(ctx, t)
		}
	}
}

// parseTicker decodes a combined-stream mini-ticker message. Messages for
// unknown symbols or without a positive price are dropped.
func (s *TickerStream) parseTicker(msg []byte) (Ticker, bool) {
	data := gjson.GetBytes(msg, "data")
	if !data.Exists() {
		data = gjson.ParseBytes(msg)
	}
	if data.Get("e").String() != "24hrMiniTicker" {
		return Ticker{}, false
	}
	symbol, ok := s.symbols[data.Get("s").String()]
	if !ok {
		return Ticker{}, false
	}
	price := data.Get("c").Float()
	if price <= 0 {
		return Ticker{}, false
	}
	return Ticker{
		Symbol: symbol,
		Price:  price,
		At:     time.UnixMilli(data.Get("E").Int()).UTC(),
	}, true
}
