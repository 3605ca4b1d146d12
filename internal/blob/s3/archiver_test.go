package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

type memWriter struct {
	objects map[string]string
	err     error
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.err != nil {
		return m.err
	}
	b, _ := io.ReadAll(data)
	m.objects[path] = string(b)
	return nil
}

func (m *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, "")
}

func (m *memWriter) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

type memTrades struct {
	trades   []domain.TradeRecord
	archived map[string]bool
}

func (m *memTrades) ListClosedBefore(_ context.Context, before time.Time) ([]domain.TradeRecord, error) {
	var out []domain.TradeRecord
	for _, t := range m.trades {
		if t.ClosedAt.Before(before) && !m.archived[t.ID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTrades) MarkArchived(_ context.Context, ids []string, _ time.Time) error {
	for _, id := range ids {
		m.archived[id] = true
	}
	return nil
}

func trade(id string, closed time.Time) domain.TradeRecord {
	return domain.TradeRecord{ID: id, Symbol: "SOL/USDT", Direction: domain.DirectionLong,
		EntryPrice: 100, ExitPrice: 102, PnLPercent: 2, Reason: "take_profit", ClosedAt: closed}
}

func newTestArchiver(w *memWriter, src *memTrades) *Archiver {
	return NewArchiver(w, w, src, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestArchiveTradesGroupsByMonth(t *testing.T) {
	w := &memWriter{objects: map[string]string{}}
	src := &memTrades{archived: map[string]bool{}, trades: []domain.TradeRecord{
		trade("a", time.Date(2024, 4, 30, 23, 0, 0, 0, time.UTC)),
		trade("b", time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)),
		trade("c", time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC)),
		trade("d", time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC)),
	}}
	a := newTestArchiver(w, src)

	n, err := a.ArchiveTrades(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ArchiveTrades: %v", err)
	}
	if n != 3 {
		t.Fatalf("archived %d, want 3", n)
	}
	may := w.objects["archive/trades/2024-05.jsonl"]
	if strings.Count(may, "\n") != 2 || !strings.Contains(may, `"id":"b"`) {
		t.Errorf("unexpected May archive %q", may)
	}
	if _, ok := w.objects["archive/trades/2024-04.jsonl"]; !ok {
		t.Error("missing April archive")
	}
	if src.archived["d"] {
		t.Error("June trade archived before its cutoff")
	}

	n, err = a.ArchiveTrades(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || n != 0 {
		t.Fatalf("second run archived %d (err %v), want 0", n, err)
	}
}

func TestArchiveTradesDoesNotOverwrite(t *testing.T) {
	w := &memWriter{objects: map[string]string{"archive/trades/2024-05.jsonl": "old\n"}}
	src := &memTrades{archived: map[string]bool{}, trades: []domain.TradeRecord{
		trade("late", time.Date(2024, 5, 31, 23, 59, 0, 0, time.UTC)),
	}}
	if _, err := newTestArchiver(w, src).ArchiveTrades(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("ArchiveTrades: %v", err)
	}
	if w.objects["archive/trades/2024-05.jsonl"] != "old\n" {
		t.Error("existing archive overwritten")
	}
	if _, ok := w.objects["archive/trades/2024-05.1.jsonl"]; !ok {
		t.Errorf("expected sequenced path, have %v", w.objects)
	}
}

func TestArchiveTradesUploadFailureLeavesTradesUnarchived(t *testing.T) {
	w := &memWriter{objects: map[string]string{}, err: errors.New("boom")}
	src := &memTrades{archived: map[string]bool{}, trades: []domain.TradeRecord{
		trade("x", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
	}}
	if _, err := newTestArchiver(w, src).ArchiveTrades(context.Background(), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("expected upload error")
	}
	if src.archived["x"] {
		t.Error("trade marked archived after failed upload")
	}
}

func TestMarshalJSONL(t *testing.T) {
	b, err := marshalJSONL([]map[string]string{{"a": "<b>"}, {"c": "d"}})
	if err != nil {
		t.Fatalf("marshalJSONL: %v", err)
	}
	if !bytes.Equal(b, []byte("{\"a\":\"<b>\"}\n{\"c\":\"d\"}\n")) {
		t.Errorf("got %q", b)
	}
}

func TestMonthStart(t *testing.T) {
	if got := monthStart(time.Date(2024, 5, 17, 13, 4, 0, 0, time.UTC)); !got.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monthStart = %s", got)
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"minio:9000", false, "http://minio:9000"},
		{"minio:9000", true, "https://minio:9000"},
		{"localhost:9000", false, "http://localhost:9000"},
		{"127.0.0.1:9000", false, "http://127.0.0.1:9000"},
		{"s3.example.com", true, "https://s3.example.com"},
		{"https://s3.example", false, "https://s3.example"},
		{"http://minio:9000", true, "http://minio:9000"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.endpoint, tt.useSSL); got != tt.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.endpoint, tt.useSSL, got, tt.want)
		}
	}
}
