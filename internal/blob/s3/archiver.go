package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// TradeSource is the slice of the trade journal the archiver needs.
type TradeSource interface {
	ListClosedBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error)
	MarkArchived(ctx context.Context, ids []string, at time.Time) error
}

// ObjectChecker reports whether an archive object already exists.
type ObjectChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver implements domain.Archiver. Closed trades are grouped by the
// month they closed in and written as one JSONL object per month and run:
//
//	archive/trades/2024-05.jsonl
//	archive/trades/2024-05.1.jsonl   (later run for the same month)
//
// Trades are flagged archived only after their object was uploaded.
type Archiver struct {
	writer domain.BlobWriter
	exists ObjectChecker
	trades TradeSource
	audit  domain.AuditStore
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, exists ObjectChecker, trades TradeSource, audit domain.AuditStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		exists: exists,
		trades: trades,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ArchiveTrades uploads the unarchived trades closed before the cutoff and
// returns how many were archived.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListClosedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	var archived int64
	for _, month := range groupByMonth(trades) {
		path, err := a.freePath(ctx, month.key)
		if err != nil {
			return archived, err
		}
		buf, err := marshalJSONL(month.trades)
		if err != nil {
			return archived, fmt.Errorf("s3blob: archive trades marshal: %w", err)
		}
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return archived, fmt.Errorf("s3blob: archive trades upload: %w", err)
		}

		ids := make([]string, len(month.trades))
		for i, t := range month.trades {
			ids[i] = t.ID
		}
		if err := a.trades.MarkArchived(ctx, ids, a.now()); err != nil {
			return archived, fmt.Errorf("s3blob: mark archived: %w", err)
		}
		archived += int64(len(ids))

		a.logger.InfoContext(ctx, "trades archived",
			slog.String("path", path),
			slog.Int("count", len(ids)),
		)
		if a.audit != nil {
			if err := a.audit.Log(ctx, "archive.trades", map[string]any{
				"path":   path,
				"count":  len(ids),
				"before": before.Format(time.RFC3339),
			}); err != nil {
				a.logger.WarnContext(ctx, "archive audit failed", slog.String("error", err.Error()))
			}
		}
	}
	return archived, nil
}

// Run archives the previous months' trades every interval until ctx is
// done. The cutoff is the start of the current month, so a month is only
// archived once it is complete.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := a.ArchiveTrades(ctx, monthStart(a.now())); err != nil {
			a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// freePath returns the first archive path for month not already taken.
func (a *Archiver) freePath(ctx context.Context, month string) (string, error) {
	for seq := 0; ; seq++ {
		path := archivePath("trades", month, seq)
		if a.exists == nil {
			return path, nil
		}
		taken, err := a.exists.Exists(ctx, path)
		if err != nil {
			return "", err
		}
		if !taken {
			return path, nil
		}
	}
}

type monthBatch struct {
	key    string
	trades []domain.TradeRecord
}

func groupByMonth(trades []domain.TradeRecord) []monthBatch {
	byMonth := make(map[string][]domain.TradeRecord)
	for _, t := range trades {
		k := t.ClosedAt.UTC().Format("2006-01")
		byMonth[k] = append(byMonth[k], t)
	}
	out := make([]monthBatch, 0, len(byMonth))
	for k, ts := range byMonth {
		out = append(out, monthBatch{key: k, trades: ts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func archivePath(kind, month string, seq int) string {
	if seq == 0 {
		return fmt.Sprintf("archive/%s/%s.jsonl", kind, month)
	}
	return fmt.Sprintf("archive/%s/%s.%d.jsonl", kind, month, seq)
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
