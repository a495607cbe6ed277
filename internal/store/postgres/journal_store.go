package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// JournalStore appends resolved trades to the trade_journal table.
type JournalStore struct {
	client *Client
}

// NewJournalStore creates a JournalStore on the given client.
func NewJournalStore(client *Client) *JournalStore {
	return &JournalStore{client: client}
}

// Append inserts one journal row.
func (j *JournalStore) Append(ctx context.Context, e domain.JournalEntry) error {
	const q = `
		INSERT INTO trade_journal (
			ts, market_id, direction, status, win, strategy,
			entry_price, opposite_price, combined_price, cost, pnl,
			price_to_beat, resolved_price, move_pct, overreaction, loss_streak
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err := j.client.pool.Exec(ctx, q,
		e.Timestamp, e.MarketID, string(e.Direction), string(e.Status), e.Win, e.Strategy,
		e.EntryPrice, e.OppositePrice, e.CombinedPrice, e.Cost, e.PnL,
		e.PriceToBeat, e.ResolvedPrice, e.MovePct, e.Overreaction, e.LossStreak,
	)
	if err != nil {
		return fmt.Errorf("postgres: append journal: %w", err)
	}
	return nil
}

// ListBefore returns all entries resolved strictly before the given time,
// oldest first.
func (j *JournalStore) ListBefore(ctx context.Context, before time.Time) ([]domain.JournalEntry, error) {
	const q = `
		SELECT ts, market_id, direction, status, win, strategy,
		       entry_price, opposite_price, combined_price, cost, pnl,
		       price_to_beat, resolved_price, move_pct, overreaction, loss_streak
		FROM trade_journal
		WHERE ts < $1
		ORDER BY ts`
	rows, err := j.client.pool.Query(ctx, q, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal: %w", err)
	}
	defer rows.Close()

	var out []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var direction, status string
		if err := rows.Scan(
			&e.Timestamp, &e.MarketID, &direction, &status, &e.Win, &e.Strategy,
			&e.EntryPrice, &e.OppositePrice, &e.CombinedPrice, &e.Cost, &e.PnL,
			&e.PriceToBeat, &e.ResolvedPrice, &e.MovePct, &e.Overreaction, &e.LossStreak,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan journal row: %w", err)
		}
		e.Direction = domain.Outcome(direction)
		e.Status = domain.PositionStatus(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate journal: %w", err)
	}
	return out, nil
}
