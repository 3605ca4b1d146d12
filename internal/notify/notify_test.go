package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	name string
	err  error

	mu   sync.Mutex
	msgs []Message
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func TestNotifierFansOutAndJoinsErrors(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	bad := &recordingSender{name: "bad", err: domain.ErrTransient}
	n := NewNotifier([]Sender{bad, ok}, nil, testLogger())

	err := n.Send(context.Background(), "SOL/USDT opened", domain.SeverityWarning)
	if err == nil {
		t.Fatal("expected error from failing sender")
	}
	if !errors.Is(err, domain.ErrTransient) {
		t.Errorf("error %v does not wrap ErrTransient", err)
	}
	if len(ok.msgs) != 1 {
		t.Fatalf("healthy sender got %d messages, want 1", len(ok.msgs))
	}
	if ok.msgs[0].Severity != domain.SeverityWarning || ok.msgs[0].Body != "SOL/USDT opened" {
		t.Errorf("unexpected message %+v", ok.msgs[0])
	}
}

func TestNotifierSeverityFilter(t *testing.T) {
	s := &recordingSender{name: "s"}
	n := NewNotifier([]Sender{s}, []string{"warning", " critical "}, testLogger())

	_ = n.Send(context.Background(), "info", domain.SeverityInfo)
	_ = n.Send(context.Background(), "crit", domain.SeverityCritical)

	if len(s.msgs) != 1 || s.msgs[0].Body != "crit" {
		t.Fatalf("got %+v, want only the critical message", s.msgs)
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]domain.Severity{
		"info":     domain.SeverityInfo,
		"WARN":     domain.SeverityWarning,
		"warning":  domain.SeverityWarning,
		"critical": domain.SeverityCritical,
	}
	for in, want := range cases {
		got, ok := ParseSeverity(in)
		if !ok || got != want {
			t.Errorf("ParseSeverity(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseSeverity("loud"); ok {
		t.Error("unknown severity accepted")
	}
}

func TestDiscordEmbedColor(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL, "confluencebot")
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	err := d.Send(context.Background(), Message{Title: "CRITICAL", Body: "flash crash", Severity: domain.SeverityCritical, At: at})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("got %d embeds", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Color != colorCritical {
		t.Errorf("color = %#x, want %#x", e.Color, colorCritical)
	}
	if e.Description != "flash crash" || e.Timestamp != "2024-03-01T10:00:00Z" {
		t.Errorf("unexpected embed %+v", e)
	}
	if got.Username != "confluencebot" {
		t.Errorf("username = %q", got.Username)
	}
}

func TestEmbedColors(t *testing.T) {
	if embedColor(domain.SeverityInfo) != colorInfo || embedColor(domain.SeverityWarning) != colorWarning {
		t.Error("unexpected embed colors")
	}
}

func TestDiscordStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusBadGateway, domain.ErrTransient},
		{http.StatusBadRequest, domain.ErrInvalidRequest},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		}))
		err := NewDiscordSender(srv.URL, "").Send(context.Background(), Message{Body: "x"})
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestTelegramPlainText(t *testing.T) {
	var (
		path    string
		payload map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegramSender("TOKEN", "42")
	tg.baseURL = srv.URL
	if err := tg.Send(context.Background(), Message{Title: "Warning", Body: "retracing", Severity: domain.SeverityWarning}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if payload["chat_id"] != "42" {
		t.Errorf("chat_id = %q", payload["chat_id"])
	}
	if _, ok := payload["parse_mode"]; ok {
		t.Error("plain text message must not set parse_mode")
	}
	if !strings.HasPrefix(payload["text"], "[WARNING] Warning\nretracing") {
		t.Errorf("text = %q", payload["text"])
	}
}

type countingSink struct{ n int }

func (c *countingSink) Send(context.Context, string, domain.Severity) error {
	c.n++
	return nil
}

func TestNightModeSuppressesInfoOnly(t *testing.T) {
	next := &countingSink{}
	open := false
	nm := NewNightMode(next, func(time.Time) bool { return open }, testLogger())

	ctx := context.Background()
	_ = nm.Send(ctx, "opened", domain.SeverityInfo)
	if next.n != 0 {
		t.Fatal("info passed outside window")
	}
	_ = nm.Send(ctx, "stop hit", domain.SeverityWarning)
	_ = nm.Send(ctx, "breaker", domain.SeverityCritical)
	if next.n != 2 {
		t.Fatalf("got %d deliveries, want 2", next.n)
	}

	open = true
	_ = nm.Send(ctx, "opened", domain.SeverityInfo)
	if next.n != 3 {
		t.Fatal("info suppressed inside window")
	}
}
