package domain

import "time"

// PositionStatus tracks the lifecycle of a position. A position is created
// open, becomes resolved exactly once, and is never deleted.
type PositionStatus string

const (
	PositionStatusOpen          PositionStatus = "open"
	PositionStatusResolvedWin   PositionStatus = "resolved_win"
	PositionStatusResolvedLoss  PositionStatus = "resolved_loss"
	PositionStatusResolvedStale PositionStatus = "resolved_stale"
)

// Resolved reports whether the status is one of the terminal states.
func (s PositionStatus) Resolved() bool {
	return s == PositionStatusResolvedWin || s == PositionStatusResolvedLoss || s == PositionStatusResolvedStale
}

// Position is one confirmed fill on one side of a market, carrying all the
// context needed to resolve it after the market ends. Only the resolution
// and stale-cleanup routines mutate a position; once resolved it is moved to
// the closed set and becomes immutable.
type Position struct {
	OrderID       string         `json:"order_id"`
	Direction     Outcome        `json:"direction"`
	Outcome       Outcome        `json:"outcome"`
	EntryPrice    float64        `json:"entry_price"`
	OppositePrice float64        `json:"opposite_price"` // other side's ask at entry
	Size          float64        `json:"size"`
	Cost          float64        `json:"cost"`
	MarketID      string         `json:"market_id"`
	MarketEndTime time.Time      `json:"market_end_time"`
	PriceToBeat   float64        `json:"price_to_beat"`
	Strategy      string         `json:"strategy"`
	EntryDelta3m  float64        `json:"entry_delta_3m"` // momentum at entry, for the journal
	OpenedAt      time.Time      `json:"opened_at"`
	Status        PositionStatus `json:"status"`
	PnL           float64        `json:"pnl"`
	ReturnAmount  float64        `json:"return_amount"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	ResolvedPrice *float64       `json:"resolved_price,omitempty"`
}

// WinningReturn is the payout of a winning position: $1 per share.
func (p Position) WinningReturn() float64 {
	return p.Size * 1.0
}
