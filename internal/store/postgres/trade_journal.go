package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

const tradeColumns = `id, symbol, direction, entry_price, exit_price, amount,
	partial_taken, pnl_percent, reason, opened_at, closed_at`

// TradeJournal implements domain.TradeJournal over the trades table. Rows
// are keyed by signal ID, so recording the same close twice is harmless.
type TradeJournal struct {
	pool *pgxpool.Pool
}

// NewTradeJournal creates a TradeJournal backed by pool.
func NewTradeJournal(pool *pgxpool.Pool) *TradeJournal {
	return &TradeJournal{pool: pool}
}

// Record stores a closed trade.
func (j *TradeJournal) Record(ctx context.Context, rec domain.TradeRecord) error {
	_, err := j.pool.Exec(ctx, `
		INSERT INTO trades (`+tradeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Symbol, string(rec.Direction), rec.EntryPrice, rec.ExitPrice, rec.Amount,
		rec.PartialTaken, rec.PnLPercent, rec.Reason, rec.OpenedAt, rec.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record trade %s: %w", rec.ID, err)
	}
	return nil
}

// ListClosedBefore returns the not yet archived trades closed before the
// cutoff, oldest first.
func (j *TradeJournal) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE closed_at < $1 AND archived_at IS NULL
		ORDER BY closed_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before.Format(time.RFC3339), err)
	}
	return collectTrades(rows)
}

// List returns trades newest first.
func (j *TradeJournal) List(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query, args := listQuery(`SELECT `+tradeColumns+` FROM trades WHERE 1=1`, "closed_at", nil, opts)
	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	return collectTrades(rows)
}

// MarkArchived flags trades as copied to cold storage.
func (j *TradeJournal) MarkArchived(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := j.pool.Exec(ctx,
		`UPDATE trades SET archived_at = $1 WHERE id = ANY($2)`, at, ids,
	); err != nil {
		return fmt.Errorf("postgres: mark %d trades archived: %w", len(ids), err)
	}
	return nil
}

func collectTrades(rows pgx.Rows) ([]domain.TradeRecord, error) {
	defer rows.Close()
	var out []domain.TradeRecord
	for rows.Next() {
		var (
			r   domain.TradeRecord
			dir string
		)
		if err := rows.Scan(&r.ID, &r.Symbol, &dir, &r.EntryPrice, &r.ExitPrice, &r.Amount,
			&r.PartialTaken, &r.PnLPercent, &r.Reason, &r.OpenedAt, &r.ClosedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		r.Direction = domain.Direction(dir)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: trade rows: %w", err)
	}
	return out, nil
}

var _ domain.TradeJournal = (*TradeJournal)(nil)
