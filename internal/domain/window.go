package domain

import "time"

// BuyRecord is one confirmed fill inside a window. Immutable once appended.
type BuyRecord struct {
	Outcome   Outcome   `json:"outcome"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Cost      float64   `json:"cost"`
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Window is the hedge-accumulation state for one market instance. Quantities
// and costs only ever grow for the life of a window; the window is archived,
// never mutated, once a different market id appears.
type Window struct {
	MarketID      string      `json:"market_id"`
	QtyUp         float64     `json:"qty_up"`
	CostUp        float64     `json:"cost_up"`
	QtyDown       float64     `json:"qty_down"`
	CostDown      float64     `json:"cost_down"`
	Buys          []BuyRecord `json:"buys"`
	Locked        bool        `json:"locked"`
	StartPairCost float64     `json:"start_pair_cost"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Qty returns the accumulated share count on one side.
func (w *Window) Qty(o Outcome) float64 {
	if o == OutcomeUp {
		return w.QtyUp
	}
	return w.QtyDown
}

// Cost returns the accumulated spend on one side.
func (w *Window) Cost(o Outcome) float64 {
	if o == OutcomeUp {
		return w.CostUp
	}
	return w.CostDown
}

// TotalCost returns the total spend across both sides.
func (w *Window) TotalCost() float64 {
	return w.CostUp + w.CostDown
}

// HeldSides returns how many sides currently hold inventory (0, 1 or 2).
func (w *Window) HeldSides() int {
	n := 0
	if w.QtyUp > 0 {
		n++
	}
	if w.QtyDown > 0 {
		n++
	}
	return n
}

// PairCost returns the blended per-pair breakeven cost
// (avg up price + avg down price) and whether it is defined. It is undefined
// until both sides hold inventory. A value at or above 1.0 means the hedge
// cannot profit if unwound now.
func (w *Window) PairCost() (float64, bool) {
	if w.QtyUp <= 0 || w.QtyDown <= 0 {
		return 0, false
	}
	return w.CostUp/w.QtyUp + w.CostDown/w.QtyDown, true
}

// MatchedQty returns the hedged share count, min(qtyUp, qtyDown).
func (w *Window) MatchedQty() float64 {
	if w.QtyUp < w.QtyDown {
		return w.QtyUp
	}
	return w.QtyDown
}

// LastBuyAt returns the timestamp of the most recent buy, or the zero time
// when the window has no fills yet.
func (w *Window) LastBuyAt() time.Time {
	if len(w.Buys) == 0 {
		return time.Time{}
	}
	return w.Buys[len(w.Buys)-1].Timestamp
}
