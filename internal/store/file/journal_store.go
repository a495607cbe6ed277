package file

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

const journalFileName = "trades.csv"

var journalHeader = []string{
	"timestamp", "market_id", "direction", "status", "win", "strategy",
	"entry_price", "opposite_price", "combined_price", "cost", "pnl",
	"price_to_beat", "resolved_price", "move_pct", "overreaction", "loss_streak",
}

// JournalStore appends resolved trades to a CSV file, one row per trade. The
// header row is written when the file is first created.
type JournalStore struct {
	path string
	mu   sync.Mutex
}

// NewJournalStore creates a journal store rooted at dataDir.
func NewJournalStore(dataDir string) (*JournalStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("file: create data dir: %w", err)
	}
	return &JournalStore{path: filepath.Join(dataDir, journalFileName)}, nil
}

// Append writes one journal row.
func (j *JournalStore) Append(_ context.Context, e domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, statErr := os.Stat(j.path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file: open journal: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(journalHeader); err != nil {
			return fmt.Errorf("file: write journal header: %w", err)
		}
	}
	if err := w.Write(journalRow(e)); err != nil {
		return fmt.Errorf("file: write journal row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("file: flush journal: %w", err)
	}
	return nil
}

// ListBefore returns all journal entries resolved strictly before the given
// time, oldest first.
func (j *JournalStore) ListBefore(_ context.Context, before time.Time) ([]domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("file: open journal: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("file: read journal: %w", err)
	}

	var out []domain.JournalEntry
	for i, row := range rows {
		if i == 0 || len(row) != len(journalHeader) {
			continue
		}
		e, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("file: journal row %d: %w", i, err)
		}
		if e.Timestamp.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

func journalRow(e domain.JournalEntry) []string {
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.MarketID,
		string(e.Direction),
		string(e.Status),
		strconv.FormatBool(e.Win),
		e.Strategy,
		formatF(e.EntryPrice),
		formatF(e.OppositePrice),
		formatF(e.CombinedPrice),
		formatF(e.Cost),
		formatF(e.PnL),
		formatF(e.PriceToBeat),
		formatF(e.ResolvedPrice),
		formatF(e.MovePct),
		strconv.FormatBool(e.Overreaction),
		strconv.Itoa(e.LossStreak),
	}
}

func parseRow(row []string) (domain.JournalEntry, error) {
	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return domain.JournalEntry{}, fmt.Errorf("parse timestamp: %w", err)
	}
	e := domain.JournalEntry{
		Timestamp: ts,
		MarketID:  row[1],
		Direction: domain.Outcome(row[2]),
		Status:    domain.PositionStatus(row[3]),
		Strategy:  row[5],
	}
	e.Win, _ = strconv.ParseBool(row[4])
	e.EntryPrice, _ = strconv.ParseFloat(row[6], 64)
	e.OppositePrice, _ = strconv.ParseFloat(row[7], 64)
	e.CombinedPrice, _ = strconv.ParseFloat(row[8], 64)
	e.Cost, _ = strconv.ParseFloat(row[9], 64)
	e.PnL, _ = strconv.ParseFloat(row[10], 64)
	e.PriceToBeat, _ = strconv.ParseFloat(row[11], 64)
	e.ResolvedPrice, _ = strconv.ParseFloat(row[12], 64)
	e.MovePct, _ = strconv.ParseFloat(row[13], 64)
	e.Overreaction, _ = strconv.ParseBool(row[14])
	e.LossStreak, _ = strconv.Atoi(row[15])
	return e, nil
}

func formatF(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
