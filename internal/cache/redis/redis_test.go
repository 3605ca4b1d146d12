package redis

import (
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

func TestNamespacedKey(t *testing.T) {
	cases := []struct {
		ns    string
		parts []string
		want  string
	}{
		{"", []string{"price", "SOL/USDT"}, "price:SOL/USDT"},
		{"bot1", []string{"lock", "symbol:ZEC/USDT"}, "bot1:lock:symbol:ZEC/USDT"},
		{"bot1", []string{"bias", "whale", "SOL/USDT"}, "bot1:bias:whale:SOL/USDT"},
	}
	for _, tc := range cases {
		if got := namespacedKey(tc.ns, tc.parts...); got != tc.want {
			t.Errorf("namespacedKey(%q, %v) = %q, want %q", tc.ns, tc.parts, got, tc.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	price, got, err := parsePrice("SOL/USDT", map[string]string{
		"price": "142.35",
		"ts":    "1714557600000000000",
	})
	if err != nil {
		t.Fatalf("parsePrice: %v", err)
	}
	if price != 142.35 || !got.Equal(ts) {
		t.Errorf("got %f at %s", price, got)
	}

	if _, _, err := parsePrice("SOL/USDT", map[string]string{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty hash, got %v", err)
	}
	if _, _, err := parsePrice("SOL/USDT", map[string]string{"price": "x", "ts": "1"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestDecodeBias(t *testing.T) {
	cases := map[string]domain.Bias{
		"bullish": domain.BiasBullish,
		"bearish": domain.BiasBearish,
		"neutral": domain.BiasNeutral,
		"":        domain.BiasNeutral,
		"garbage": domain.BiasNeutral,
	}
	for in, want := range cases {
		if got := decodeBias(in); got != want {
			t.Errorf("decodeBias(%q) = %q, want %q", in, got, want)
		}
	}
	// Stored form round-trips through String.
	if decodeBias(domain.BiasNeutral.String()) != domain.BiasNeutral {
		t.Error("neutral did not round-trip")
	}
}

func TestStreamPayload(t *testing.T) {
	if b, ok := streamPayload(map[string]any{"payload": "abc"}); !ok || string(b) != "abc" {
		t.Errorf("string payload: %q %v", b, ok)
	}
	if b, ok := streamPayload(map[string]any{"payload": []byte("xyz")}); !ok || string(b) != "xyz" {
		t.Errorf("bytes payload: %q %v", b, ok)
	}
	if _, ok := streamPayload(map[string]any{"other": "x"}); ok {
		t.Error("expected missing payload to be skipped")
	}
}

func TestHasPattern(t *testing.T) {
	if !hasPattern("positions:*") || hasPattern("positions") {
		t.Error("unexpected pattern detection")
	}
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	if slidingWindowLua == "" {
		t.Fatal("sliding window script not embedded")
	}
}
