// Package engine implements the hedged-pair decision core: the per-market
// window state and the ordered gate sequence that turns a quote snapshot
// into either a buy instruction or a definitive "no trade" reason.
package engine

import (
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/updownbot/internal/config"
	"github.com/alanyoungcy/updownbot/internal/domain"
)

// Gate names, one per rejection point. Each gate owns a distinct reason
// string so rejections are observable and testable.
const (
	GateEnabled      = "enabled"
	GateQuote        = "quote_valid"
	GateExposure     = "exposure"
	GateElapsed      = "elapsed"
	GateCooldown     = "cooldown"
	GateLocked       = "locked"
	GateSpendCap     = "spend_cap"
	GateCombinedAsk  = "combined_ask"
	GateOpenCutoff   = "open_cutoff"
	GateCheapSide    = "cheap_side"
	GateHedgeable    = "hedgeable"
	GateOverreaction = "overreaction"
	GateAlignment    = "alignment"
	GateHedgeWait    = "hedge_wait"
	GateRebalance    = "rebalance"
	GatePairCost     = "pair_cost"
	GateStreakBias   = "streak_bias"
)

// RiskView is the slice of tracker state the decision engine needs. It is a
// value snapshot: the engine never reaches back into the tracker.
type RiskView struct {
	OpenExposure float64
	LossStreak   int
	// WinStreak counts consecutive wins at the tail of the outcome ring;
	// WinStreakDir is their shared direction, valid only when SameDir is true.
	WinStreak    int
	WinStreakDir domain.Outcome
	SameDir      bool
}

// Engine is the trade decision engine. Evaluate is a pure synchronous
// computation over already-fetched inputs; all blocking I/O lives outside.
type Engine struct {
	cfg         config.StrategyConfig
	maxExposure float64
	windows     *WindowManager
	sink        domain.EventSink
	logger      *slog.Logger
}

// New creates an Engine around the given window manager. maxExposureUSD is
// the aggregate open-position cost ceiling from the risk configuration.
// Events for every evaluation are published to sink.
func New(cfg config.StrategyConfig, maxExposureUSD float64, windows *WindowManager, sink domain.EventSink, logger *slog.Logger) *Engine {
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &Engine{
		cfg:         cfg,
		maxExposure: maxExposureUSD,
		windows:     windows,
		sink:        sink,
		logger:      logger.With(slog.String("component", "decision_engine")),
	}
}

// Windows exposes the window manager for the executor and stats layers.
func (e *Engine) Windows() *WindowManager { return e.windows }

// Evaluate runs the ordered gate sequence against the latest quote and
// momentum snapshot and returns either a fully specified buy instruction or
// the first failing gate's reason. It also rolls the window over when a new
// market id appears.
func (e *Engine) Evaluate(quote domain.Quote, hint domain.MomentumHint, risk RiskView, now time.Time) domain.Decision {
	dec := e.evaluate(quote, hint, risk, now)
	e.emit(quote, hint, dec, now)
	return dec
}

func (e *Engine) evaluate(quote domain.Quote, hint domain.MomentumHint, risk RiskView, now time.Time) domain.Decision {
	// Gate 1: trading enabled, quote usable.
	if !e.cfg.Enabled {
		return domain.Reject(GateEnabled, "trading disabled")
	}
	if !quote.Valid() {
		return domain.Reject(GateQuote, "invalid quote")
	}

	// Gate 2: aggregate open exposure ceiling.
	if risk.OpenExposure >= e.maxExposure {
		return domain.Reject(GateExposure, "circuit breaker: open exposure at limit")
	}

	w := e.windows.GetOrCreate(quote.MarketID, now)

	// Gate 3: minimum elapsed time; immature quotes carry no information.
	elapsed := quote.ElapsedMinutes(now, e.cfg.CycleDuration())
	if elapsed < e.cfg.MinElapsedMin {
		return domain.Reject(GateElapsed, "window too young")
	}

	// Gate 4: cooldown since the last buy.
	if last := w.LastBuyAt(); !last.IsZero() && now.Sub(last) < e.cfg.Cooldown() {
		return domain.Reject(GateCooldown, "cooldown active")
	}

	// Gate 5: profit already locked, nothing left to accumulate.
	if w.Locked {
		return domain.Reject(GateLocked, "profit locked")
	}

	// Gate 6: per-window spend ceiling.
	if w.TotalCost() >= e.cfg.MaxWindowSpendUSD {
		return domain.Reject(GateSpendCap, "window spend cap reached")
	}

	// Gate 7: time-scaled cheap-price threshold.
	threshold := e.cfg.CheapThreshold(elapsed)

	// Gate 8: opening only makes sense when the pair is not overpriced.
	if w.HeldSides() == 0 && quote.UpPrice+quote.DownPrice > e.cfg.MaxCombinedOpenPrice {
		return domain.Reject(GateCombinedAsk, "combined ask too high")
	}

	// Gate 9: branch on held inventory.
	var (
		candidate domain.Outcome
		strategy  string
		dec       domain.Decision
	)
	switch w.HeldSides() {
	case 0:
		candidate, dec = e.evaluateOpen(quote, hint, threshold, elapsed)
		strategy = domain.StrategyInitial
	case 1:
		candidate, strategy, dec = e.evaluateHedge(quote, w, threshold, elapsed)
	default:
		candidate, dec = e.evaluateRebalance(quote, w, threshold)
		strategy = domain.StrategyRebalance
	}
	if !dec.Trade && dec.Gate != "" {
		return dec
	}

	price := quote.Price(candidate)
	sizeUSD := e.cfg.BaseOrderUSD

	// Gate 10: simulate the resulting pair cost before committing.
	if rej, ok := e.simulatePairCost(w, candidate, price, sizeUSD, strategy); !ok {
		return rej
	}

	// Gate 11: streak bias block. Hedge buys are exempt.
	if strategy != domain.StrategyHedge && strategy != domain.StrategyLateHedge {
		if risk.SameDir && risk.WinStreak >= e.cfg.StreakBiasWins &&
			candidate == risk.WinStreakDir && price > e.cfg.StreakBiasCeiling {
			return domain.Reject(GateStreakBias, "streak bias block")
		}

		// Gate 12: shrink entries taken against a recent adverse streak.
		if risk.LossStreak >= e.cfg.AdverseStreakLosses {
			sizeUSD *= e.cfg.AdverseStreakSizeFactor
		}
	}

	return domain.Decision{
		Trade:    true,
		Outcome:  candidate,
		Price:    price,
		SizeUSD:  sizeUSD,
		Strategy: strategy,
	}
}

// evaluateOpen handles the no-inventory branch: opening the first side of a
// new pair.
func (e *Engine) evaluateOpen(quote domain.Quote, hint domain.MomentumHint, threshold, elapsed float64) (domain.Outcome, domain.Decision) {
	if elapsed > e.cfg.NewPositionMax {
		return "", domain.Reject(GateOpenCutoff, "too late to open")
	}

	cheapUp := quote.UpPrice <= threshold
	cheapDown := quote.DownPrice <= threshold
	if !cheapUp && !cheapDown {
		return "", domain.Reject(GateCheapSide, "no cheap side")
	}

	dir := hint.Direction()
	var candidate domain.Outcome
	switch {
	case cheapUp && cheapDown:
		// Both sides cheap: take the one agreeing with momentum.
		if dir == "" {
			return "", domain.Reject(GateAlignment, "momentum conflict")
		}
		candidate = dir
	case cheapUp:
		candidate = domain.OutcomeUp
	default:
		candidate = domain.OutcomeDown
	}

	// Hedgeability: never take a side whose opposite could not later be
	// hedged at a sane cost.
	if quote.Price(candidate.Opposite()) > e.cfg.HedgeCeiling {
		return "", domain.Reject(GateHedgeable, "can't hedge")
	}

	// Overreaction: the underlying must show a true excess move, not noise.
	if math.Abs(hint.Delta3m) < e.cfg.OverreactionPct {
		return "", domain.Reject(GateOverreaction, "no overreaction")
	}

	// Alignment: the cheap side must agree with the observed move. Fighting
	// the signal is worse than skipping the tick.
	if candidate != dir {
		return "", domain.Reject(GateAlignment, "momentum conflict")
	}

	return candidate, domain.Decision{}
}

// evaluateHedge handles the one-sided branch: completing the pair, at a
// normal price if possible, at a materially worse one late in the cycle.
func (e *Engine) evaluateHedge(quote domain.Quote, w *domain.Window, threshold, elapsed float64) (domain.Outcome, string, domain.Decision) {
	missing := domain.OutcomeUp
	if w.QtyUp > 0 {
		missing = domain.OutcomeDown
	}
	price := quote.Price(missing)

	if price <= threshold {
		return missing, domain.StrategyHedge, domain.Decision{}
	}
	if elapsed >= e.cfg.LateHedgeMin && price <= e.cfg.LateHedgeCeiling {
		// A bounded loss beats an unhedged total loss.
		return missing, domain.StrategyLateHedge, domain.Decision{}
	}
	return "", "", domain.Reject(GateHedgeWait, "waiting for hedge price")
}

// evaluateRebalance handles the both-sides branch: keep the pair balanced,
// or grow it when both sides are still cheap.
func (e *Engine) evaluateRebalance(quote domain.Quote, w *domain.Window, threshold float64) (domain.Outcome, domain.Decision) {
	switch {
	case w.QtyUp < w.QtyDown:
		if quote.UpPrice <= threshold {
			return domain.OutcomeUp, domain.Decision{}
		}
	case w.QtyDown < w.QtyUp:
		if quote.DownPrice <= threshold {
			return domain.OutcomeDown, domain.Decision{}
		}
	default:
		// Balanced: grow either, provided both sides are still cheap.
		if quote.UpPrice <= threshold && quote.DownPrice <= threshold {
			if quote.UpPrice <= quote.DownPrice {
				return domain.OutcomeUp, domain.Decision{}
			}
			return domain.OutcomeDown, domain.Decision{}
		}
	}
	return "", domain.Reject(GateRebalance, "no side within threshold")
}

// simulatePairCost applies the candidate buy to a copy of the window's
// totals and rejects the instruction when the resulting pair cost breaks the
// profitability invariants: at or above 1.0 the hedge can no longer profit,
// and a non-late-hedge buy must never raise the current pair cost.
func (e *Engine) simulatePairCost(w *domain.Window, outcome domain.Outcome, price, sizeUSD float64, strategy string) (domain.Decision, bool) {
	if price <= 0 {
		return domain.Reject(GateQuote, "invalid quote"), false
	}
	shares := sizeUSD / price

	qtyUp, costUp := w.QtyUp, w.CostUp
	qtyDown, costDown := w.QtyDown, w.CostDown
	if outcome == domain.OutcomeUp {
		qtyUp += shares
		costUp += sizeUSD
	} else {
		qtyDown += shares
		costDown += sizeUSD
	}

	if qtyUp <= 0 || qtyDown <= 0 {
		// Pair cost undefined until both sides are held; nothing to check.
		return domain.Decision{}, true
	}

	sim := costUp/qtyUp + costDown/qtyDown
	if sim >= 1.0 {
		return domain.Reject(GatePairCost, "pair cost would reach 1.0"), false
	}
	if strategy != domain.StrategyLateHedge {
		if cur, ok := w.PairCost(); ok && sim > cur {
			return domain.Reject(GatePairCost, "buy would raise pair cost"), false
		}
	}
	return domain.Decision{}, true
}

func (e *Engine) emit(quote domain.Quote, hint domain.MomentumHint, dec domain.Decision, now time.Time) {
	ev := domain.DecisionEvent{
		Time:       now,
		MarketID:   quote.MarketID,
		Trade:      dec.Trade,
		Gate:       dec.Gate,
		Reason:     dec.Reason,
		Outcome:    dec.Outcome,
		Strategy:   dec.Strategy,
		Price:      dec.Price,
		SizeUSD:    dec.SizeUSD,
		UpPrice:    quote.UpPrice,
		DownPrice:  quote.DownPrice,
		ElapsedMin: quote.ElapsedMinutes(now, e.cfg.CycleDuration()),
		Delta3m:    hint.Delta3m,
	}
	e.sink.Decision(ev)

	if dec.Trade {
		e.logger.Info("buy instruction",
			slog.String("market_id", quote.MarketID),
			slog.String("outcome", string(dec.Outcome)),
			slog.String("strategy", dec.Strategy),
			slog.Float64("price", dec.Price),
			slog.Float64("size_usd", dec.SizeUSD),
		)
	} else {
		e.logger.Debug("no trade",
			slog.String("market_id", quote.MarketID),
			slog.String("gate", dec.Gate),
			slog.String("reason", dec.Reason),
		)
	}
}
