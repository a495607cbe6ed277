package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// historyLimit bounds how many archived windows are kept in memory.
const historyLimit = 64

// WindowManager owns the hedge-accumulation state for the currently active
// market instance. It archives the active window when a new market id is
// first seen; archived windows are never mutated again. All mutation happens
// on the decision loop; the mutex only guards snapshot reads from the
// presentation layer.
type WindowManager struct {
	mu      sync.Mutex
	active  *domain.Window
	history []*domain.Window
	logger  *slog.Logger
}

// NewWindowManager creates an empty WindowManager.
func NewWindowManager(logger *slog.Logger) *WindowManager {
	return &WindowManager{
		logger: logger.With(slog.String("component", "window_manager")),
	}
}

// GetOrCreate returns the active window for marketID, archiving the previous
// window first if the market rolled over.
func (m *WindowManager) GetOrCreate(marketID string, now time.Time) *domain.Window {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.MarketID == marketID {
		return m.active
	}

	if m.active != nil {
		m.archiveLocked()
	}

	m.active = &domain.Window{
		MarketID:  marketID,
		CreatedAt: now,
	}
	m.logger.Info("window opened", slog.String("market_id", marketID))
	return m.active
}

// RecordBuy appends a confirmed fill to the window, updates quantities and
// costs, and recomputes the profit lock. The lock flips true exactly when
// the guaranteed $1 payout of the matched pair exceeds total spend.
func (m *WindowManager) RecordBuy(w *domain.Window, outcome domain.Outcome, price, size, cost float64, orderID string, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w.Buys = append(w.Buys, domain.BuyRecord{
		Outcome:   outcome,
		Price:     price,
		Size:      size,
		Cost:      cost,
		OrderID:   orderID,
		Timestamp: ts,
	})
	if outcome == domain.OutcomeUp {
		w.QtyUp += size
		w.CostUp += cost
	} else {
		w.QtyDown += size
		w.CostDown += cost
	}

	if pc, ok := w.PairCost(); ok && w.StartPairCost == 0 {
		w.StartPairCost = pc
	}

	w.Locked = w.MatchedQty()*1.0 > w.TotalCost()

	m.logger.Info("buy recorded",
		slog.String("market_id", w.MarketID),
		slog.String("outcome", string(outcome)),
		slog.Float64("price", price),
		slog.Float64("size", size),
		slog.Float64("cost", cost),
		slog.Bool("locked", w.Locked),
	)
}

// Active returns a copy of the current window, or nil when no market has
// been seen yet.
func (m *WindowManager) Active() *domain.Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	cp := *m.active
	cp.Buys = append([]domain.BuyRecord(nil), m.active.Buys...)
	return &cp
}

// History returns copies of the archived windows, newest last.
func (m *WindowManager) History() []domain.Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Window, 0, len(m.history))
	for _, w := range m.history {
		cp := *w
		cp.Buys = append([]domain.BuyRecord(nil), w.Buys...)
		out = append(out, cp)
	}
	return out
}

func (m *WindowManager) archiveLocked() {
	m.logger.Info("window archived",
		slog.String("market_id", m.active.MarketID),
		slog.Float64("qty_up", m.active.QtyUp),
		slog.Float64("qty_down", m.active.QtyDown),
		slog.Float64("total_cost", m.active.TotalCost()),
		slog.Bool("locked", m.active.Locked),
	)
	m.history = append(m.history, m.active)
	if overflow := len(m.history) - historyLimit; overflow > 0 {
		m.history = append([]*domain.Window(nil), m.history[overflow:]...)
	}
	m.active = nil
}
