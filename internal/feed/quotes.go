package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// QuoteSource fetches the active market's quote from the venue.
type QuoteSource interface {
	ActiveQuote(ctx context.Context, now time.Time) (domain.Quote, error)
}

// SpotFunc returns the latest underlying price snapshot.
type SpotFunc func() domain.SpotSnapshot

// QuotePoller polls the venue for the active market's quote and latches the
// reference spot price (the price to beat) once per market, at or after the
// market's start. Once latched the value never changes for that market; a
// rollover to the next market latches fresh.
type QuotePoller struct {
	source   QuoteSource
	spot     SpotFunc
	cache    domain.QuoteCache
	cycle    time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	latest  domain.Quote
	latched map[string]latchedRef
}

// latchedRef is one market's latched reference price together with the
// market's end time, which drives eviction of old entries.
type latchedRef struct {
	price float64
	end   time.Time
}

// NewQuotePoller creates a quote poller. cache may be nil.
func NewQuotePoller(source QuoteSource, spot SpotFunc, cache domain.QuoteCache, cycle, interval time.Duration, logger *slog.Logger) *QuotePoller {
	return &QuotePoller{
		source:   source,
		spot:     spot,
		cache:    cache,
		cycle:    cycle,
		interval: interval,
		logger:   logger.With(slog.String("component", "quote_poller")),
		latched:  make(map[string]latchedRef),
	}
}

// Run polls until ctx is cancelled. Fetch failures are logged and retried on
// the next tick; the previous quote stays available meanwhile.
func (p *QuotePoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			p.poll(ctx, now)
		}
	}
}

func (p *QuotePoller) poll(ctx context.Context, now time.Time) {
	q, err := p.source.ActiveQuote(ctx, now)
	if err != nil {
		p.logger.Warn("quote fetch failed", slog.String("error", err.Error()))
		return
	}
	q.PriceToBeat = p.latchPriceToBeat(q, now)

	p.mu.Lock()
	p.latest = q
	p.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.SetQuote(ctx, q); err != nil {
			p.logger.Debug("quote cache update failed", slog.String("error", err.Error()))
		}
	}
}

// latchPriceToBeat returns the reference price for the quote's market,
// latching it from the spot feed the first time the market is seen at or
// after its start. Zero means the spot feed had nothing yet; the next poll
// retries.
func (p *QuotePoller) latchPriceToBeat(q domain.Quote, now time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ref, ok := p.latched[q.MarketID]; ok {
		return ref.price
	}

	start := q.MarketEndTime.Add(-p.cycle)
	if now.Before(start) {
		return 0
	}
	snap := p.spot()
	if snap.Price <= 0 {
		return 0
	}

	// Drop latches only once their market ended a full cycle ago; a
	// still-running market keeps its latch no matter how many rollovers
	// happen in between.
	for id, ref := range p.latched {
		if !ref.end.After(now.Add(-p.cycle)) {
			delete(p.latched, id)
		}
	}
	p.latched[q.MarketID] = latchedRef{price: snap.Price, end: q.MarketEndTime}
	p.logger.Info("latched price to beat",
		slog.String("market_id", q.MarketID),
		slog.Float64("price", snap.Price),
	)
	return snap.Price
}

// Latest returns the most recent quote, zero if nothing fetched yet.
func (p *QuotePoller) Latest() domain.Quote {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}
