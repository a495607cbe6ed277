package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/updownbot/internal/blob/s3"
	"github.com/alanyoungcy/updownbot/internal/crypto"
	"github.com/alanyoungcy/updownbot/internal/domain"
	"github.com/alanyoungcy/updownbot/internal/engine"
	"github.com/alanyoungcy/updownbot/internal/executor"
	"github.com/alanyoungcy/updownbot/internal/feed"
	"github.com/alanyoungcy/updownbot/internal/platform/polymarket"
	"github.com/alanyoungcy/updownbot/internal/server"
	"github.com/alanyoungcy/updownbot/internal/server/handler"
	"github.com/alanyoungcy/updownbot/internal/tracker"
)

// archiveInterval is how often the journal is uploaded to object storage.
const archiveInterval = time.Hour

// TradeMode runs the full trading loop: feeds, decision engine, execution,
// position tracking, and the HTTP surface.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	metrics := server.NewMetrics()
	sink := domain.MultiSink{deps.EventLog, metrics}

	windows := engine.NewWindowManager(a.logger)
	eng := engine.New(a.cfg.Strategy, a.cfg.Risk.MaxOpenExposureUSD, windows, sink, a.logger)

	trk := tracker.New(a.cfg.Risk, a.cfg.Strategy.OverreactionPct, deps.StateStore, deps.Journal, sink, a.logger)
	if err := trk.Load(ctx); err != nil {
		return fmt.Errorf("app: load tracker state: %w", err)
	}

	// Wallet and order gateway.
	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fmt.Errorf("app: load wallet key: %w", err)
	}
	signer, err := crypto.NewSigner(key, a.cfg.Polymarket.ChainID)
	if err != nil {
		return fmt.Errorf("app: wallet signer: %w", err)
	}
	gateway := polymarket.NewGateway(a.cfg.Polymarket.ClobHost, signer, nil, a.logger)
	if err := gateway.DeriveAPIKey(ctx); err != nil {
		return fmt.Errorf("app: derive api key: %w", err)
	}

	exec := executor.New(a.cfg.Execution, gateway, windows, trk, a.logger)

	// Feeds.
	spotFeed := feed.NewBinanceFeed(a.cfg.Binance.WsHost, a.cfg.Binance.Symbol, deps.SpotCache, a.logger)
	source := polymarket.NewMarketSource(a.cfg.Polymarket.GammaHost, a.cfg.Polymarket.SeriesSlug)
	poller := feed.NewQuotePoller(
		source, spotFeed.Snapshot, deps.QuoteCache,
		a.cfg.Strategy.CycleDuration(), a.cfg.Polymarket.PollInterval.Duration,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return spotFeed.Run(ctx) })
	g.Go(func() error { return poller.Run(ctx) })

	// Journal archival.
	if deps.BlobWriter != nil {
		archiver := s3blob.NewArchiver(deps.BlobWriter, deps.Journal, a.cfg.S3.Prefix, archiveInterval, a.logger)
		g.Go(func() error { return archiver.Run(ctx) })
	}

	// HTTP surface.
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, metrics, statsProvider{
			trk:     trk,
			windows: windows,
			latest:  poller.Latest,
		})
	}

	// Decision loop.
	g.Go(func() error {
		return a.decisionLoop(ctx, eng, exec, trk, windows, poller, spotFeed, metrics)
	})

	return g.Wait()
}

// MonitorMode runs the feeds and the HTTP surface without trading: no
// wallet, no gateway, no state mutation.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	trk := tracker.New(a.cfg.Risk, a.cfg.Strategy.OverreactionPct, deps.StateStore, deps.Journal, domain.NopSink{}, a.logger)
	if err := trk.Load(ctx); err != nil {
		return fmt.Errorf("app: load tracker state: %w", err)
	}

	spotFeed := feed.NewBinanceFeed(a.cfg.Binance.WsHost, a.cfg.Binance.Symbol, deps.SpotCache, a.logger)
	source := polymarket.NewMarketSource(a.cfg.Polymarket.GammaHost, a.cfg.Polymarket.SeriesSlug)
	poller := feed.NewQuotePoller(
		source, spotFeed.Snapshot, deps.QuoteCache,
		a.cfg.Strategy.CycleDuration(), a.cfg.Polymarket.PollInterval.Duration,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return spotFeed.Run(ctx) })
	g.Go(func() error { return poller.Run(ctx) })

	metrics := server.NewMetrics()
	a.startServer(ctx, g, deps, metrics, statsProvider{
		trk:    trk,
		latest: poller.Latest,
	})

	return g.Wait()
}

// decisionLoop is the single-goroutine trading cadence: each tick resolves
// expired positions first, then consults the risk governor, then evaluates
// the gate sequence and executes at most one buy.
func (a *App) decisionLoop(
	ctx context.Context,
	eng *engine.Engine,
	exec *executor.Executor,
	trk *tracker.Tracker,
	windows *engine.WindowManager,
	poller *feed.QuotePoller,
	spotFeed *feed.BinanceFeed,
	metrics *server.Metrics,
) error {
	ticker := time.NewTicker(a.cfg.Execution.TickInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			a.tick(ctx, eng, exec, trk, windows, poller, spotFeed, metrics, now)
		}
	}
}

func (a *App) tick(
	ctx context.Context,
	eng *engine.Engine,
	exec *executor.Executor,
	trk *tracker.Tracker,
	windows *engine.WindowManager,
	poller *feed.QuotePoller,
	spotFeed *feed.BinanceFeed,
	metrics *server.Metrics,
	now time.Time,
) {
	quote := poller.Latest()
	snap := spotFeed.Snapshot()

	// Resolution always runs, even when trading is paused.
	a.resolveExpired(ctx, trk, snap, now)
	trk.CleanupStale(ctx, now)
	metrics.SetExposure(trk.Stats(windows.Active(), nil, now))

	if stop := trk.ShouldStopTrading(now); stop.Stop {
		a.logger.Debug("trading stopped", slog.String("reason", stop.Reason))
		return
	}
	if !quote.Valid() {
		return
	}
	if quote.PriceToBeat <= 0 {
		// Without a latched reference price a position could never be
		// resolved correctly.
		a.logger.Debug("reference price not latched yet", slog.String("market_id", quote.MarketID))
		return
	}

	if flagged := trk.CheckStopLoss(quote); len(flagged) > 0 {
		a.logger.Warn("stop-loss flagged positions", slog.Any("order_ids", flagged))
	}

	dec := eng.Evaluate(quote, snap.Hint, trk.RiskView(), now)
	if !dec.Trade {
		return
	}

	pos, err := exec.Execute(ctx, dec, quote, snap.Hint, now)
	if err != nil {
		a.logger.Error("order execution failed",
			slog.String("market_id", quote.MarketID),
			slog.String("outcome", string(dec.Outcome)),
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.Info("position opened",
		slog.String("order_id", pos.OrderID),
		slog.String("strategy", pos.Strategy),
		slog.Float64("cost", pos.Cost),
	)
}

// resolveExpired resolves open positions whose market has ended, using the
// first spot price observed after expiry. With no spot price available the
// positions stay open; a feed that never recovers leaves them to the stale
// cleanup instead of forcing an ambiguous loss at end time.
func (a *App) resolveExpired(ctx context.Context, trk *tracker.Tracker, snap domain.SpotSnapshot, now time.Time) {
	if snap.Price <= 0 {
		return
	}
	state := trk.State()
	seen := make(map[string]bool)
	for i := range state.OpenPositions {
		pos := &state.OpenPositions[i]
		if seen[pos.MarketID] || now.Before(pos.MarketEndTime) {
			continue
		}
		seen[pos.MarketID] = true
		trk.CheckResolutions(ctx, pos.MarketID, snap.Price, true, now)
	}
}

// startServer registers the HTTP surface on the errgroup with a graceful
// shutdown tied to ctx.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, metrics *server.Metrics, stats statsProvider) {
	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health: handler.NewHealthHandler(deps.HealthChecks),
			Stats:  handler.NewStatsHandler(stats),
		},
		metrics,
		a.logger,
	)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// statsProvider adapts the tracker to the stats endpoint, attaching the
// active window and the current stop-loss advisories.
type statsProvider struct {
	trk     *tracker.Tracker
	windows *engine.WindowManager
	latest  func() domain.Quote
}

func (p statsProvider) Stats(now time.Time) domain.Stats {
	var flagged []string
	if p.latest != nil {
		if q := p.latest(); q.Valid() {
			flagged = p.trk.CheckStopLoss(q)
		}
	}
	var w *domain.Window
	if p.windows != nil {
		w = p.windows.Active()
	}
	return p.trk.Stats(w, flagged, now)
}
