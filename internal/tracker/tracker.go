// Package tracker owns the position lifecycle: open positions, resolution
// against the reference price, aggregate P&L, the recent-outcome ring, and
// durable persistence of all of it. The risk governor (risk.go) derives
// pause/stop decisions from the same state.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/updownbot/internal/config"
	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/engine"
)

// Tracker is the single owner of TrackerState. All mutation is serialized
// behind the mutex; the decision loop is the only writer in practice, the
// mutex additionally guards stats reads from the HTTP layer.
type Tracker struct {
	mu    sync.Mutex
	state domain.TrackerState

	cfg          config.RiskConfig
	overreactPct float64

	store   domain.StateStore
	journal domain.JournalStore
	sink    domain.EventSink
	logger  *slog.Logger
}

// New creates a Tracker. store and journal may not be nil; sink may be.
// overreactPct is the strategy's overreaction threshold, recorded on journal
// rows so post-hoc analysis can segment entries by signal strength.
func New(cfg config.RiskConfig, overreactPct float64, store domain.StateStore, journal domain.JournalStore, sink domain.EventSink, logger *slog.Logger) *Tracker {
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &Tracker{
		cfg:          cfg,
		overreactPct: overreactPct,
		store:        store,
		journal:      journal,
		sink:         sink,
		logger:       logger.With(slog.String("component", "position_tracker")),
	}
}

// Load restores the tracker state from the durable store. A missing
// snapshot is not an error: the tracker starts empty.
func (t *Tracker) Load(ctx context.Context) error {
	state, err := t.store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			t.logger.Info("no snapshot found, starting fresh")
			return nil
		}
		return err
	}
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
	t.logger.Info("state restored",
		slog.Int("open_positions", len(state.OpenPositions)),
		slog.Float64("total_pnl", state.TotalPnL),
	)
	return nil
}

// Open records a newly confirmed position and persists the snapshot. Only a
// confirmed successful order may be passed here.
func (t *Tracker) Open(ctx context.Context, pos domain.Position) {
	t.mu.Lock()
	pos.Status = domain.PositionStatusOpen
	t.state.OpenPositions = append(t.state.OpenPositions, pos)
	t.state.TotalCost += pos.Cost
	t.mu.Unlock()

	t.logger.Info("position opened",
		slog.String("order_id", pos.OrderID),
		slog.String("market_id", pos.MarketID),
		slog.String("direction", string(pos.Direction)),
		slog.Float64("cost", pos.Cost),
	)
	t.persist(ctx)
}

// CheckResolutions resolves every open position of the given market whose
// end time has passed, comparing the resolution price against the
// position's priceToBeat. Up wins iff price > priceToBeat; Down wins iff
// price <= priceToBeat. When priceOK is false, positions are resolved
// conservatively as losses and the event is marked ambiguous. The method is
// idempotent: resolved positions leave the open set, so a second call with
// the same inputs mutates nothing.
func (t *Tracker) CheckResolutions(ctx context.Context, marketID string, price float64, priceOK bool, now time.Time) int {
	t.mu.Lock()
	var resolved []domain.Position
	remaining := t.state.OpenPositions[:0]
	for _, pos := range t.state.OpenPositions {
		if pos.MarketID != marketID || now.Before(pos.MarketEndTime) {
			remaining = append(remaining, pos)
			continue
		}
		win := false
		if priceOK {
			if pos.Direction == domain.OutcomeUp {
				win = price > pos.PriceToBeat
			} else {
				win = price <= pos.PriceToBeat
			}
		}
		status := domain.PositionStatusResolvedLoss
		if win {
			status = domain.PositionStatusResolvedWin
		}
		t.resolveLocked(&pos, status, price, priceOK, now)
		resolved = append(resolved, pos)
	}
	t.state.OpenPositions = remaining
	t.mu.Unlock()

	t.finishResolutions(ctx, resolved, priceOK)
	return len(resolved)
}

// CleanupStale force-resolves positions as stale losses once they are more
// than the configured grace period past their market end with no resolution
// input received.
func (t *Tracker) CleanupStale(ctx context.Context, now time.Time) int {
	t.mu.Lock()
	var resolved []domain.Position
	remaining := t.state.OpenPositions[:0]
	for _, pos := range t.state.OpenPositions {
		if now.Sub(pos.MarketEndTime) <= t.cfg.StaleAfter.Duration {
			remaining = append(remaining, pos)
			continue
		}
		t.resolveLocked(&pos, domain.PositionStatusResolvedStale, 0, false, now)
		resolved = append(resolved, pos)
	}
	t.state.OpenPositions = remaining
	t.mu.Unlock()

	for i := range resolved {
		t.logger.Warn("stale position forced to loss",
			slog.String("order_id", resolved[i].OrderID),
			slog.String("market_id", resolved[i].MarketID),
		)
	}
	t.finishResolutions(ctx, resolved, false)
	return len(resolved)
}

// resolveLocked applies one terminal transition. It is the sole place
// aggregate P&L changes. Callers hold the mutex and pass pos by pointer so
// the resolved copy (with status and pnl set) can be journaled afterwards.
func (t *Tracker) resolveLocked(pos *domain.Position, status domain.PositionStatus, price float64, priceOK bool, now time.Time) {
	pos.Status = status
	pos.ResolvedAt = &now
	if priceOK {
		p := price
		pos.ResolvedPrice = &p
	}

	if status == domain.PositionStatusResolvedWin {
		pos.ReturnAmount = pos.WinningReturn()
		pos.PnL = pos.ReturnAmount - pos.Cost
		t.state.Wins++
	} else {
		pos.ReturnAmount = 0
		pos.PnL = -pos.Cost
		t.state.Losses++
	}

	t.state.TotalPnL += pos.PnL
	t.state.TotalReturn += pos.ReturnAmount
	t.state.ClosedPositions = append(t.state.ClosedPositions, *pos)
	t.state.AppendOutcome(domain.OutcomeRecord{
		Win:        status == domain.PositionStatusResolvedWin,
		Direction:  pos.Direction,
		PnL:        pos.PnL,
		ResolvedAt: now,
	})

	// A win breaking a loss streak lifts the risk pause immediately.
	if status == domain.PositionStatusResolvedWin && t.state.PausedAt != nil {
		t.state.PausedAt = nil
		t.state.PauseReason = ""
		t.logger.Info("risk pause lifted by winning resolution")
	}
}

// finishResolutions journals and publishes the resolved positions, then
// persists the snapshot. Persistence and journal failures are logged and
// swallowed; in-memory state stays authoritative.
func (t *Tracker) finishResolutions(ctx context.Context, resolved []domain.Position, priceOK bool) {
	if len(resolved) == 0 {
		return
	}
	t.mu.Lock()
	lossStreak := t.state.LossStreak()
	t.mu.Unlock()

	for i := range resolved {
		pos := resolved[i]
		resolvedPrice := 0.0
		if pos.ResolvedPrice != nil {
			resolvedPrice = *pos.ResolvedPrice
		}
		movePct := 0.0
		if pos.PriceToBeat > 0 && pos.ResolvedPrice != nil {
			movePct = (resolvedPrice - pos.PriceToBeat) / pos.PriceToBeat * 100
		}

		entry := domain.JournalEntry{
			Timestamp:     *pos.ResolvedAt,
			MarketID:      pos.MarketID,
			Direction:     pos.Direction,
			Status:        pos.Status,
			Win:           pos.Status == domain.PositionStatusResolvedWin,
			Strategy:      pos.Strategy,
			EntryPrice:    pos.EntryPrice,
			OppositePrice: pos.OppositePrice,
			CombinedPrice: pos.EntryPrice + pos.OppositePrice,
			Cost:          pos.Cost,
			PnL:           pos.PnL,
			PriceToBeat:   pos.PriceToBeat,
			ResolvedPrice: resolvedPrice,
			MovePct:       movePct,
			Overreaction:  math.Abs(pos.EntryDelta3m) >= t.overreactPct,
			LossStreak:    lossStreak,
		}
		if err := t.journal.Append(ctx, entry); err != nil {
			t.logger.Error("journal append failed", slog.String("error", err.Error()))
		}

		t.sink.Resolution(domain.ResolutionEvent{
			Time:          *pos.ResolvedAt,
			MarketID:      pos.MarketID,
			OrderID:       pos.OrderID,
			Direction:     pos.Direction,
			Status:        pos.Status,
			PnL:           pos.PnL,
			PriceToBeat:   pos.PriceToBeat,
			ResolvedPrice: resolvedPrice,
			Ambiguous:     !priceOK && pos.Status == domain.PositionStatusResolvedLoss,
		})

		t.logger.Info("position resolved",
			slog.String("order_id", pos.OrderID),
			slog.String("status", string(pos.Status)),
			slog.Float64("pnl", pos.PnL),
		)
	}
	t.persist(ctx)
}

// CheckStopLoss flags open positions whose mark-to-market loss has reached
// the configured fraction of cost, using the current quoted price of the
// position's own outcome. Advisory only: this engine has no mechanism to
// exit a position early, so the condition is reported, never acted on.
func (t *Tracker) CheckStopLoss(quote domain.Quote) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var flagged []string
	for i := range t.state.OpenPositions {
		pos := &t.state.OpenPositions[i]
		if pos.MarketID != quote.MarketID {
			continue
		}
		mark := quote.Price(pos.Direction)
		if mark <= 0 || pos.EntryPrice <= 0 {
			continue
		}
		loss := (pos.EntryPrice - mark) / pos.EntryPrice
		if loss >= t.cfg.StopLossPct {
			flagged = append(flagged, pos.OrderID)
		}
	}
	return flagged
}

// RiskView snapshots the fields the decision engine consumes.
func (t *Tracker) RiskView() engine.RiskView {
	t.mu.Lock()
	defer t.mu.Unlock()

	wins, dir, sameDir := t.state.WinStreak()
	return engine.RiskView{
		OpenExposure: t.state.OpenExposure(),
		LossStreak:   t.state.LossStreak(),
		WinStreak:    wins,
		WinStreakDir: dir,
		SameDir:      sameDir,
	}
}

// Stats builds the read-only snapshot for the presentation layer. window
// may be nil; flagged is the latest stop-loss advisory, if any.
func (t *Tracker) Stats(window *domain.Window, flagged []string, now time.Time) domain.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	rate, _ := t.state.WinRate()
	tradesLastHour := 0
	cutoff := now.Add(-time.Hour)
	for i := range t.state.OpenPositions {
		if t.state.OpenPositions[i].OpenedAt.After(cutoff) {
			tradesLastHour++
		}
	}
	for i := range t.state.ClosedPositions {
		if t.state.ClosedPositions[i].OpenedAt.After(cutoff) {
			tradesLastHour++
		}
	}

	return domain.Stats{
		TotalPnL:        t.state.TotalPnL,
		Wins:            t.state.Wins,
		Losses:          t.state.Losses,
		WinRate:         rate,
		TotalCost:       t.state.TotalCost,
		TotalReturn:     t.state.TotalReturn,
		OpenPositions:   len(t.state.OpenPositions),
		OpenExposure:    t.state.OpenExposure(),
		LossStreak:      t.state.LossStreak(),
		TradesLastHour:  tradesLastHour,
		Paused:          t.state.PausedAt != nil,
		PausedAt:        t.state.PausedAt,
		PauseReason:     t.state.PauseReason,
		StopLossFlagged: flagged,
		Window:          window,
	}
}

// State returns a deep-enough copy of the tracker state for tests and
// diagnostics.
func (t *Tracker) State() domain.TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := t.state
	cp.OpenPositions = append([]domain.Position(nil), t.state.OpenPositions...)
	cp.ClosedPositions = append([]domain.Position(nil), t.state.ClosedPositions...)
	cp.RecentOutcomes = append([]domain.OutcomeRecord(nil), t.state.RecentOutcomes...)
	return cp
}

// persist writes the snapshot. Failures never propagate: the in-memory
// state remains authoritative until the next successful write.
func (t *Tracker) persist(ctx context.Context) {
	t.mu.Lock()
	state := t.state
	state.OpenPositions = append([]domain.Position(nil), t.state.OpenPositions...)
	state.ClosedPositions = append([]domain.Position(nil), t.state.ClosedPositions...)
	state.RecentOutcomes = append([]domain.OutcomeRecord(nil), t.state.RecentOutcomes...)
	t.mu.Unlock()

	if err := t.store.Save(ctx, state); err != nil {
		t.logger.Error("state snapshot save failed", slog.String("error", err.Error()))
	}
}
