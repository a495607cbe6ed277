// Package executor turns buy instructions from the decision engine into
// priced, sized orders, submits them through the external gateway, and folds
// confirmed fills back into window and position state.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/updownbot/internal/config"
	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/engine"
)

// PositionOpener receives the confirmed position. Implemented by the
// position tracker.
type PositionOpener interface {
	Open(ctx context.Context, pos domain.Position)
}

// Executor is the order execution adapter. A failed submission is abandoned
// for the tick, never queued: the caller retries naturally on the next
// polling cycle with fresh prices.
type Executor struct {
	cfg     config.ExecutionConfig
	gateway domain.OrderGateway
	windows *engine.WindowManager
	opener  PositionOpener
	logger  *slog.Logger
}

// New creates an Executor submitting through gateway and recording fills
// into the window manager and the position opener.
func New(cfg config.ExecutionConfig, gateway domain.OrderGateway, windows *engine.WindowManager, opener PositionOpener, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:     cfg,
		gateway: gateway,
		windows: windows,
		opener:  opener,
		logger:  logger.With(slog.String("component", "executor")),
	}
}

// Execute prices and sizes the instruction then submits it. On success it
// records the buy in the active window and opens a position carrying the
// full resolution context. On failure nothing is persisted and the error
// carries the reason; the tick's instruction is dropped.
func (e *Executor) Execute(ctx context.Context, dec domain.Decision, quote domain.Quote, hint domain.MomentumHint, now time.Time) (domain.Position, error) {
	if !dec.Trade {
		return domain.Position{}, fmt.Errorf("executor: decision is not a trade")
	}

	// Limit price: quoted ask plus a small slippage allowance, capped hard.
	limit := dec.Price + e.cfg.SlippageAllowance
	if limit > e.cfg.MaxLimitPrice {
		limit = e.cfg.MaxLimitPrice
	}
	if limit <= 0 {
		return domain.Position{}, fmt.Errorf("executor: %w: non-positive limit price", domain.ErrInvalidOrder)
	}

	shares := math.Floor(dec.SizeUSD / limit)
	if shares < e.cfg.MinShares {
		return domain.Position{}, fmt.Errorf("executor: %w: %.0f shares below minimum %.0f", domain.ErrInvalidOrder, shares, e.cfg.MinShares)
	}
	cost := shares * limit

	res, err := e.gateway.Submit(ctx, domain.SubmitRequest{
		TokenID: quote.TokenID(dec.Outcome),
		Side:    dec.Outcome,
		Price:   limit,
		Size:    shares,
	})
	if err != nil {
		e.logger.Warn("order submission failed",
			slog.String("market_id", quote.MarketID),
			slog.String("outcome", string(dec.Outcome)),
			slog.String("error", err.Error()),
		)
		return domain.Position{}, fmt.Errorf("executor: submit: %w", err)
	}
	if res.OrderID == "" {
		// A gateway "success" without an order id is still a failure.
		return domain.Position{}, fmt.Errorf("executor: %w", domain.ErrNoOrderID)
	}
	orderID := res.OrderID

	w := e.windows.GetOrCreate(quote.MarketID, now)
	e.windows.RecordBuy(w, dec.Outcome, limit, shares, cost, orderID, now)

	pos := domain.Position{
		OrderID:       orderID,
		Direction:     dec.Outcome,
		Outcome:       dec.Outcome,
		EntryPrice:    limit,
		OppositePrice: quote.Price(dec.Outcome.Opposite()),
		Size:          shares,
		Cost:          cost,
		MarketID:      quote.MarketID,
		MarketEndTime: quote.MarketEndTime,
		PriceToBeat:   quote.PriceToBeat,
		Strategy:      dec.Strategy,
		EntryDelta3m:  hint.Delta3m,
		OpenedAt:      now,
		Status:        domain.PositionStatusOpen,
	}
	e.opener.Open(ctx, pos)

	e.logger.Info("order filled",
		slog.String("order_id", orderID),
		slog.String("market_id", quote.MarketID),
		slog.String("outcome", string(dec.Outcome)),
		slog.String("strategy", dec.Strategy),
		slog.Float64("limit", limit),
		slog.Float64("shares", shares),
		slog.Float64("cost", cost),
	)
	return pos, nil
}
