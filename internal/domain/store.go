package domain

import (
	"context"
	"time"
)

// JournalEntry is one append-only row of the resolved-trade journal.
type JournalEntry struct {
	Timestamp     time.Time      `json:"timestamp"`
	MarketID      string         `json:"market_id"`
	Direction     Outcome        `json:"direction"`
	Status        PositionStatus `json:"status"`
	Win           bool           `json:"win"`
	Strategy      string         `json:"strategy"`
	EntryPrice    float64        `json:"entry_price"`
	OppositePrice float64        `json:"opposite_price"`
	CombinedPrice float64        `json:"combined_price"`
	Cost          float64        `json:"cost"`
	PnL           float64        `json:"pnl"`
	PriceToBeat   float64        `json:"price_to_beat"`
	ResolvedPrice float64        `json:"resolved_price"`
	MovePct       float64        `json:"move_pct"`
	Overreaction  bool           `json:"overreaction"`
	LossStreak    int            `json:"loss_streak"`
}

// StateStore persists TrackerState snapshots. Load returns ErrNotFound when
// no snapshot has ever been written.
type StateStore interface {
	Save(ctx context.Context, state TrackerState) error
	Load(ctx context.Context) (TrackerState, error)
}

// JournalStore is the append-only journal of resolved trades.
type JournalStore interface {
	Append(ctx context.Context, entry JournalEntry) error
	ListBefore(ctx context.Context, before time.Time) ([]JournalEntry, error)
}

// SpotCache publishes the latest underlying price snapshot so independent
// consumers (monitor mode, dashboards) can read it without touching the
// decision loop.
type SpotCache interface {
	SetSpot(ctx context.Context, snap SpotSnapshot) error
	GetSpot(ctx context.Context) (SpotSnapshot, error)
}

// QuoteCache mirrors the latest market quote.
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context) (Quote, error)
}

// SubmitRequest is the order the execution adapter hands to the gateway.
type SubmitRequest struct {
	TokenID string
	Side    Outcome
	Price   float64
	Size    float64 // shares
}

// SubmitResult reports a confirmed order. An empty OrderID is a failure
// regardless of what the gateway returned.
type SubmitResult struct {
	OrderID string
	Status  string
}

// OrderGateway submits orders to the external execution venue. The gateway
// owns its retry policy for transient failures and must never silently
// duplicate a fill.
type OrderGateway interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
}

// BlobWriter uploads objects to blob storage for journal archival.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}
