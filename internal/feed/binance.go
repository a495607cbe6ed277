package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

const (
	// sampleRetention bounds the in-memory price history; momentum needs
	// three minutes plus slack for gaps.
	sampleRetention = 5 * time.Minute

	reconnectDelay = 2 * time.Second
	readTimeout    = 90 * time.Second
)

type spotSample struct {
	price float64
	at    time.Time
}

// BinanceFeed streams trade prices for one symbol from the Binance spot
// WebSocket and keeps a short rolling history so momentum deltas can be
// computed. The latest snapshot is also mirrored to a SpotCache when one is
// configured. Consumers read via Snapshot; the feed never blocks on them.
type BinanceFeed struct {
	wsHost string
	symbol string
	cache  domain.SpotCache
	logger *slog.Logger

	mu      sync.RWMutex
	samples []spotSample
	latest  spotSample
}

// NewBinanceFeed creates a spot price feed.
//
// wsHost is the stream root, e.g. "wss://stream.binance.com:9443".
// symbol is the lowercase pair, e.g. "btcusdt". cache may be nil.
func NewBinanceFeed(wsHost, symbol string, cache domain.SpotCache, logger *slog.Logger) *BinanceFeed {
	return &BinanceFeed{
		wsHost: wsHost,
		symbol: strings.ToLower(symbol),
		cache:  cache,
		logger: logger.With(slog.String("component", "binance_feed")),
	}
}

// Run connects and consumes trade events until ctx is cancelled, reconnecting
// with a flat delay on disconnect.
func (f *BinanceFeed) Run(ctx context.Context) error {
	url := fmt.Sprintf("%s/ws/%s@trade", f.wsHost, f.symbol)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.runConnection(ctx, url); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("binance ws disconnected, reconnecting", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *BinanceFeed) runConnection(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", url, err)
	}
	defer conn.Close()

	// Binance pings; answering pongs is handled by the default handler, we
	// just need the read deadline refreshed.
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	f.logger.Info("binance ws connected", slog.String("symbol", f.symbol))

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}

		var ev struct {
			Price     string `json:"p"`
			TradeTime int64  `json:"T"` // milliseconds
		}
		if err := json.Unmarshal(msg, &ev); err != nil || ev.Price == "" {
			continue
		}
		price, err := strconv.ParseFloat(ev.Price, 64)
		if err != nil || price <= 0 {
			continue
		}

		at := time.Now()
		if ev.TradeTime > 0 {
			at = time.UnixMilli(ev.TradeTime)
		}
		f.record(ctx, price, at)
	}
}

func (f *BinanceFeed) record(ctx context.Context, price float64, at time.Time) {
	f.mu.Lock()
	f.latest = spotSample{price: price, at: at}
	f.samples = append(f.samples, f.latest)

	cutoff := at.Add(-sampleRetention)
	drop := 0
	for drop < len(f.samples) && f.samples[drop].at.Before(cutoff) {
		drop++
	}
	f.samples = f.samples[drop:]
	snap := f.snapshotLocked(at)
	f.mu.Unlock()

	if f.cache != nil {
		if err := f.cache.SetSpot(ctx, snap); err != nil {
			f.logger.Debug("spot cache update failed", slog.String("error", err.Error()))
		}
	}
}

// Snapshot returns the latest spot price with momentum deltas. The zero
// snapshot means no trade has been seen yet.
func (f *BinanceFeed) Snapshot() domain.SpotSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshotLocked(f.latest.at)
}

func (f *BinanceFeed) snapshotLocked(now time.Time) domain.SpotSnapshot {
	if f.latest.price <= 0 {
		return domain.SpotSnapshot{}
	}
	return domain.SpotSnapshot{
		Price: f.latest.price,
		Hint: domain.MomentumHint{
			Delta1m: f.deltaPctLocked(now, time.Minute),
			Delta3m: f.deltaPctLocked(now, 3*time.Minute),
		},
		UpdatedAt: f.latest.at,
	}
}

// deltaPctLocked returns the percent move from the oldest sample at or after
// now-age to the latest price. Zero when history is too short.
func (f *BinanceFeed) deltaPctLocked(now time.Time, age time.Duration) float64 {
	target := now.Add(-age)
	var base float64
	for i := range f.samples {
		if !f.samples[i].at.Before(target) {
			base = f.samples[i].price
			break
		}
	}
	if base <= 0 {
		return 0
	}
	return (f.latest.price - base) / base * 100
}
