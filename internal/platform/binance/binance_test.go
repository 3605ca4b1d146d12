package binance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/confluencebot/internal/crypto"
	"github.com/alanyoungcy/confluencebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const klinesBody = `[
 [1499040000000,"0.01634790","0.80000000","0.01575800","0.01577100","148976.11427815",1499644799999,"2434.19055334",308,"1756.87402397","28.46694368","0"],
 [1499040300000,"0.01577100","0.01600000","0.01570000","0.01590000","1000.5",1499644799999,"15.9",10,"500","8","0"]
]`

const depthBody = `{"lastUpdateId":1027024,
 "bids":[["4.00000000","431.00000000"],["3.99","10"],["3.98","5"]],
 "asks":[["4.00000200","12.00000000"],["4.01","3"],["4.02","1"]]}`

const accountBody = `{"makerCommission":15,"balances":[
 {"asset":"BTC","free":"0.5","locked":"0.1"},
 {"asset":"USDT","free":"1000.00","locked":"0.00"},
 {"asset":"BNB","free":"0.0","locked":"0.0"}]}`

func floatEquals(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	return d < eps && d > -eps
}

func TestParseKlines(t *testing.T) {
	bars, err := parseKlines([]byte(klinesBody))
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars", len(bars))
	}
	b := bars[0]
	if !b.OpenTime.Equal(time.UnixMilli(1499040000000)) {
		t.Errorf("open time = %v", b.OpenTime)
	}
	if !floatEquals(b.Open, 0.0163479) || !floatEquals(b.High, 0.8) || !floatEquals(b.Close, 0.015771) {
		t.Errorf("unexpected bar %+v", b)
	}
	if !floatEquals(bars[1].Volume, 1000.5) {
		t.Errorf("volume = %v", bars[1].Volume)
	}
}

func TestParseKlinesRejectsObject(t *testing.T) {
	if _, err := parseKlines([]byte(`{"code":-1121}`)); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseDepthTruncates(t *testing.T) {
	book, err := parseDepth([]byte(depthBody), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 2 {
		t.Fatalf("levels = %d/%d", len(book.Bids), len(book.Asks))
	}
	if !floatEquals(book.Bids[0].Price, 4) || !floatEquals(book.Bids[0].Size, 431) {
		t.Errorf("best bid %+v", book.Bids[0])
	}
	if !floatEquals(book.Asks[1].Price, 4.01) {
		t.Errorf("second ask %+v", book.Asks[1])
	}
}

func TestParseBalancesSkipsZero(t *testing.T) {
	bals, err := parseBalances([]byte(accountBody))
	if err != nil {
		t.Fatal(err)
	}
	if len(bals) != 2 {
		t.Fatalf("got %+v", bals)
	}
	if bals[1].Asset != "USDT" || !floatEquals(bals[1].Free, 1000) {
		t.Errorf("usdt balance %+v", bals[1])
	}
}

func TestDepthLimit(t *testing.T) {
	cases := map[int]int{1: 5, 5: 5, 6: 10, 20: 20, 21: 50, 900: 1000, 9000: 5000}
	for in, want := range cases {
		if got := depthLimit(in); got != want {
			t.Errorf("depthLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestStatusError(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{429, domain.ErrRateLimited},
		{418, domain.ErrRateLimited},
		{503, domain.ErrTransient},
		{401, domain.ErrUnauthorized},
		{404, domain.ErrNotFound},
		{400, domain.ErrInvalidRequest},
	}
	for _, tc := range cases {
		err := statusError(tc.status, []byte(`{"code":-1,"msg":"boom"}`))
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: %v", tc.status, err)
		}
		if !strings.Contains(err.Error(), "boom") {
			t.Errorf("status %d: message lost: %v", tc.status, err)
		}
	}
}

func TestExchangeSymbol(t *testing.T) {
	if got := ExchangeSymbol("sol/usdt"); got != "SOLUSDT" {
		t.Errorf("got %q", got)
	}
}

type countingWaiter struct{ calls int }

func (w *countingWaiter) Wait(context.Context, string, int, time.Duration) error {
	w.calls++
	return nil
}

func TestFetchBarsQuery(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Path + "?" + r.URL.RawQuery
		_, _ = io.WriteString(w, klinesBody)
	}))
	defer srv.Close()

	limiter := &countingWaiter{}
	c := NewClient(Config{BaseURL: srv.URL, Limiter: limiter, RateLimit: 1200}, testLogger())
	bars, err := c.FetchBars(context.Background(), "SOL/USDT", "5m", 100)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars", len(bars))
	}
	if got != "/api/v3/klines?interval=5m&limit=100&symbol=SOLUSDT" {
		t.Errorf("request = %q", got)
	}
	if limiter.calls != 1 {
		t.Errorf("limiter calls = %d", limiter.calls)
	}
}

func TestFetchOrderBookRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"code":-1003,"msg":"Too many requests"}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, testLogger())
	_, err := c.FetchOrderBook(context.Background(), "SOL/USDT", 5)
	if !errors.Is(err, domain.ErrRateLimited) || !domain.IsTransient(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchBalanceSigned(t *testing.T) {
	var (
		apiKey string
		query  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get(crypto.APIKeyHeader)
		query = r.URL.RawQuery
		_, _ = io.WriteString(w, accountBody)
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL: srv.URL,
		Auth:    &crypto.HMACAuth{Key: "key", Secret: "secret"},
	}, testLogger())
	c.now = func() time.Time { return time.UnixMilli(1499827319559) }

	bals, err := c.FetchBalance(context.Background())
	if err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	if len(bals) != 2 {
		t.Fatalf("balances = %+v", bals)
	}
	if apiKey != "key" {
		t.Errorf("api key header = %q", apiKey)
	}
	want := "omitZeroBalances=true&timestamp=1499827319559"
	if !strings.HasPrefix(query, want+"&signature=") {
		t.Errorf("query = %q", query)
	}
	sig := strings.TrimPrefix(query, want+"&signature=")
	if sig != crypto.Sign("secret", want) {
		t.Errorf("signature mismatch")
	}
}

func TestFetchBalanceWithoutCredentials(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, testLogger())
	if _, err := c.FetchBalance(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchBarsNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, Timeout: time.Second}, testLogger())
	_, err := c.FetchBars(context.Background(), "SOL/USDT", "5m", 10)
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("err = %v", err)
	}
}

func TestStreamURL(t *testing.T) {
	s := NewTickerStream("wss://example.test/", []string{"ZEC/USDT", "SOL/USDT"}, testLogger())
	want := "wss://example.test/stream?streams=solusdt@miniTicker/zecusdt@miniTicker"
	if got := s.StreamURL(); got != want {
		t.Errorf("StreamURL = %q, want %q", got, want)
	}
}

func TestParseTicker(t *testing.T) {
	s := NewTickerStream("", []string{"SOL/USDT"}, testLogger())
	msg := `{"stream":"solusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1700000000000,"s":"SOLUSDT","c":"142.55","o":"140","h":"143","l":"139","v":"1","q":"2"}}`
	tk, ok := s.parseTicker([]byte(msg))
	if !ok {
		t.Fatal("ticker rejected")
	}
	if tk.Symbol != "SOL/USDT" || !floatEquals(tk.Price, 142.55) || tk.At.UnixMilli() != 1700000000000 {
		t.Errorf("ticker = %+v", tk)
	}

	if _, ok := s.parseTicker([]byte(`{"data":{"e":"24hrMiniTicker","s":"BTCUSDT","c":"1"}}`)); ok {
		t.Error("unknown symbol accepted")
	}
	if _, ok := s.parseTicker([]byte(`{"result":null,"id":1}`)); ok {
		t.Error("control message accepted")
	}
}

func TestTickerStreamDeliversAndReportsDisconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("streams") != "solusdt@miniTicker" {
			t.Errorf("streams = %q", r.URL.Query().Get("streams"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"stream":"solusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1700000000000,"s":"SOLUSDT","c":"150.1"}}`))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewTickerStream(wsURL, []string{"SOL/USDT"}, testLogger())

	var got []Ticker
	err := s.Run(context.Background(), func(_ context.Context, tk Ticker) {
		got = append(got, tk)
	})
	if !errors.Is(err, domain.ErrWSDisconnect) {
		t.Fatalf("err = %v, want ErrWSDisconnect", err)
	}
	if len(got) != 1 || !floatEquals(got[0].Price, 150.1) {
		t.Fatalf("tickers = %+v", got)
	}
}
