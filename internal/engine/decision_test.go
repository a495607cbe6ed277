package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/updownbot/internal/config"
	"github.com/alanyoungcy/updownbot/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	decisions   []domain.DecisionEvent
	resolutions []domain.ResolutionEvent
}

func (s *recordingSink) Decision(ev domain.DecisionEvent)     { s.decisions = append(s.decisions, ev) }
func (s *recordingSink) Resolution(ev domain.ResolutionEvent) { s.resolutions = append(s.resolutions, ev) }

func newTestEngine(t *testing.T) (*Engine, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	windows := NewWindowManager(testLogger())
	cfg := config.Defaults()
	eng := New(cfg.Strategy, cfg.Risk.MaxOpenExposureUSD, windows, sink, testLogger())
	return eng, sink
}

// testQuote builds a quote whose cycle has been running for elapsed minutes
// as of testNow.
func testQuote(up, down float64, elapsed time.Duration) domain.Quote {
	return domain.Quote{
		MarketID:      "mkt-1",
		UpPrice:       up,
		DownPrice:     down,
		UpTokenID:     "tok-up",
		DownTokenID:   "tok-down",
		MarketEndTime: testNow.Add(15*time.Minute - elapsed),
		PriceToBeat:   65000,
		FetchedAt:     testNow,
	}
}

func TestEvaluateInitialEntry(t *testing.T) {
	eng, sink := newTestEngine(t)

	// Cheap Up side, hedgeable opposite, clear upward overreaction.
	quote := testQuote(0.30, 0.60, 4*time.Minute)
	hint := domain.MomentumHint{Delta1m: 0.1, Delta3m: 0.3}

	dec := eng.Evaluate(quote, hint, RiskView{}, testNow)

	require.True(t, dec.Trade)
	assert.Equal(t, domain.OutcomeUp, dec.Outcome)
	assert.Equal(t, domain.StrategyInitial, dec.Strategy)
	assert.Equal(t, 0.30, dec.Price)
	assert.Equal(t, 10.0, dec.SizeUSD)

	require.Len(t, sink.decisions, 1)
	assert.True(t, sink.decisions[0].Trade)
	assert.Equal(t, "mkt-1", sink.decisions[0].MarketID)
	assert.InDelta(t, 4.0, sink.decisions[0].ElapsedMin, 1e-9)
}

func TestEvaluateInitialEntryDownSide(t *testing.T) {
	eng, _ := newTestEngine(t)

	quote := testQuote(0.62, 0.33, 4*time.Minute)
	hint := domain.MomentumHint{Delta3m: -0.25}

	dec := eng.Evaluate(quote, hint, RiskView{}, testNow)

	require.True(t, dec.Trade)
	assert.Equal(t, domain.OutcomeDown, dec.Outcome)
	assert.Equal(t, domain.StrategyInitial, dec.Strategy)
}

func TestEvaluateGateRejections(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(t *testing.T, eng *Engine)
		quote   domain.Quote
		hint    domain.MomentumHint
		risk    RiskView
		disable bool
		gate    string
		reason  string
	}{
		{
			name:    "trading disabled",
			quote:   testQuote(0.30, 0.60, 4*time.Minute),
			disable: true,
			gate:    GateEnabled,
			reason:  "trading disabled",
		},
		{
			name:   "invalid quote",
			quote:  domain.Quote{MarketID: "mkt-1"},
			gate:   GateQuote,
			reason: "invalid quote",
		},
		{
			name:   "exposure limit",
			quote:  testQuote(0.30, 0.60, 4*time.Minute),
			risk:   RiskView{OpenExposure: 500},
			gate:   GateExposure,
			reason: "circuit breaker: open exposure at limit",
		},
		{
			name:   "window too young",
			quote:  testQuote(0.30, 0.60, time.Minute),
			gate:   GateElapsed,
			reason: "window too young",
		},
		{
			name: "cooldown active",
			setup: func(t *testing.T, eng *Engine) {
				w := eng.Windows().GetOrCreate("mkt-1", testNow)
				eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.30, 30, 9, "ord-1", testNow.Add(-10*time.Second))
			},
			quote:  testQuote(0.30, 0.60, 4*time.Minute),
			hint:   domain.MomentumHint{Delta3m: 0.3},
			gate:   GateCooldown,
			reason: "cooldown active",
		},
		{
			name: "profit locked",
			setup: func(t *testing.T, eng *Engine) {
				w := eng.Windows().GetOrCreate("mkt-1", testNow)
				eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.30, 30, 9, "ord-1", testNow.Add(-5*time.Minute))
				eng.Windows().RecordBuy(w, domain.OutcomeDown, 0.40, 30, 12, "ord-2", testNow.Add(-2*time.Minute))
				require.True(t, w.Locked)
			},
			quote:  testQuote(0.30, 0.40, 6*time.Minute),
			gate:   GateLocked,
			reason: "profit locked",
		},
		{
			name: "window spend cap",
			setup: func(t *testing.T, eng *Engine) {
				w := eng.Windows().GetOrCreate("mkt-1", testNow)
				eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.60, 250, 150, "ord-1", testNow.Add(-5*time.Minute))
			},
			quote:  testQuote(0.60, 0.42, 6*time.Minute),
			gate:   GateSpendCap,
			reason: "window spend cap reached",
		},
		{
			name:   "combined ask too high",
			quote:  testQuote(0.34, 0.70, 4*time.Minute),
			hint:   domain.MomentumHint{Delta3m: 0.3},
			gate:   GateCombinedAsk,
			reason: "combined ask too high",
		},
		{
			name:   "too late to open",
			quote:  testQuote(0.30, 0.60, 12*time.Minute),
			hint:   domain.MomentumHint{Delta3m: 0.3},
			gate:   GateOpenCutoff,
			reason: "too late to open",
		},
		{
			name:   "no cheap side",
			quote:  testQuote(0.50, 0.50, 4*time.Minute),
			hint:   domain.MomentumHint{Delta3m: 0.3},
			gate:   GateCheapSide,
			reason: "no cheap side",
		},
		{
			name:   "hedgeability",
			quote:  testQuote(0.30, 0.70, 4*time.Minute),
			hint:   domain.MomentumHint{Delta3m: 0.3},
			gate:   GateHedgeable,
			reason: "can't hedge",
		},
		{
			name:   "no overreaction",
			quote:  testQuote(0.30, 0.60, 4*time.Minute),
			hint:   domain.MomentumHint{Delta3m: 0.05},
			gate:   GateOverreaction,
			reason: "no overreaction",
		},
		{
			name:   "momentum conflict",
			quote:  testQuote(0.30, 0.60, 4*time.Minute),
			hint:   domain.MomentumHint{Delta3m: -0.3},
			gate:   GateAlignment,
			reason: "momentum conflict",
		},
		{
			name:   "both cheap with flat momentum",
			quote:  testQuote(0.33, 0.34, 4*time.Minute),
			hint:   domain.MomentumHint{},
			gate:   GateAlignment,
			reason: "momentum conflict",
		},
		{
			name: "waiting for hedge price",
			setup: func(t *testing.T, eng *Engine) {
				w := eng.Windows().GetOrCreate("mkt-1", testNow)
				eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.30, 30, 9, "ord-1", testNow.Add(-5*time.Minute))
			},
			quote:  testQuote(0.30, 0.55, 6*time.Minute),
			gate:   GateHedgeWait,
			reason: "waiting for hedge price",
		},
		{
			name: "no rebalance side within threshold",
			setup: func(t *testing.T, eng *Engine) {
				w := eng.Windows().GetOrCreate("mkt-1", testNow)
				eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.20, 10, 2, "ord-1", testNow.Add(-5*time.Minute))
				eng.Windows().RecordBuy(w, domain.OutcomeDown, 0.30, 20, 6, "ord-2", testNow.Add(-4*time.Minute))
			},
			quote:  testQuote(0.55, 0.50, 6*time.Minute),
			gate:   GateRebalance,
			reason: "no side within threshold",
		},
		{
			name: "streak bias block",
			quote: testQuote(0.32, 0.60, 4*time.Minute),
			hint:  domain.MomentumHint{Delta3m: 0.3},
			risk: RiskView{
				WinStreak:    2,
				WinStreakDir: domain.OutcomeUp,
				SameDir:      true,
			},
			gate:   GateStreakBias,
			reason: "streak bias block",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng, sink := newTestEngine(t)
			if tc.disable {
				eng.cfg.Enabled = false
			}
			if tc.setup != nil {
				tc.setup(t, eng)
			}

			dec := eng.Evaluate(tc.quote, tc.hint, tc.risk, testNow)

			assert.False(t, dec.Trade)
			assert.Equal(t, tc.gate, dec.Gate)
			assert.Equal(t, tc.reason, dec.Reason)

			require.Len(t, sink.decisions, 1)
			assert.Equal(t, tc.gate, sink.decisions[0].Gate)
		})
	}
}

func TestEvaluateHedgeCompletion(t *testing.T) {
	eng, _ := newTestEngine(t)
	w := eng.Windows().GetOrCreate("mkt-1", testNow)
	eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.30, 30, 9, "ord-1", testNow.Add(-5*time.Minute))

	// Six minutes in, threshold relaxes to the mid tier; 0.38 completes the
	// pair at a healthy combined cost.
	quote := testQuote(0.58, 0.38, 6*time.Minute)
	dec := eng.Evaluate(quote, domain.MomentumHint{}, RiskView{}, testNow)

	require.True(t, dec.Trade)
	assert.Equal(t, domain.OutcomeDown, dec.Outcome)
	assert.Equal(t, domain.StrategyHedge, dec.Strategy)
	assert.Equal(t, 0.38, dec.Price)
}

func TestEvaluateLateHedge(t *testing.T) {
	eng, _ := newTestEngine(t)
	w := eng.Windows().GetOrCreate("mkt-1", testNow)
	// Cheap entry leaves room to accept an expensive late hedge.
	eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.20, 50, 10, "ord-1", testNow.Add(-10*time.Minute))

	quote := testQuote(0.32, 0.70, 13*time.Minute)
	dec := eng.Evaluate(quote, domain.MomentumHint{}, RiskView{}, testNow)

	require.True(t, dec.Trade)
	assert.Equal(t, domain.OutcomeDown, dec.Outcome)
	assert.Equal(t, domain.StrategyLateHedge, dec.Strategy)
}

func TestEvaluateLateHedgeCeiling(t *testing.T) {
	eng, _ := newTestEngine(t)
	w := eng.Windows().GetOrCreate("mkt-1", testNow)
	eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.20, 50, 10, "ord-1", testNow.Add(-10*time.Minute))

	quote := testQuote(0.22, 0.80, 13*time.Minute)
	dec := eng.Evaluate(quote, domain.MomentumHint{}, RiskView{}, testNow)

	assert.False(t, dec.Trade)
	assert.Equal(t, GateHedgeWait, dec.Gate)
}

func TestEvaluateRebalance(t *testing.T) {
	t.Run("tops up the smaller side below its average", func(t *testing.T) {
		eng, _ := newTestEngine(t)
		w := eng.Windows().GetOrCreate("mkt-1", testNow)
		eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.20, 10, 2, "ord-1", testNow.Add(-5*time.Minute))
		eng.Windows().RecordBuy(w, domain.OutcomeDown, 0.30, 20, 6, "ord-2", testNow.Add(-4*time.Minute))

		quote := testQuote(0.15, 0.50, 6*time.Minute)
		dec := eng.Evaluate(quote, domain.MomentumHint{}, RiskView{}, testNow)

		require.True(t, dec.Trade)
		assert.Equal(t, domain.OutcomeUp, dec.Outcome)
		assert.Equal(t, domain.StrategyRebalance, dec.Strategy)
	})

	t.Run("balanced pair grows the cheaper side", func(t *testing.T) {
		eng, _ := newTestEngine(t)
		w := eng.Windows().GetOrCreate("mkt-1", testNow)
		eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.30, 20, 6, "ord-1", testNow.Add(-5*time.Minute))
		eng.Windows().RecordBuy(w, domain.OutcomeDown, 0.35, 20, 7, "ord-2", testNow.Add(-4*time.Minute))

		quote := testQuote(0.22, 0.28, 6*time.Minute)
		dec := eng.Evaluate(quote, domain.MomentumHint{}, RiskView{}, testNow)

		require.True(t, dec.Trade)
		assert.Equal(t, domain.OutcomeUp, dec.Outcome)
	})
}

func TestEvaluatePairCostGuards(t *testing.T) {
	t.Run("hedge that pushes pair cost to 1.0 is rejected", func(t *testing.T) {
		eng, _ := newTestEngine(t)
		w := eng.Windows().GetOrCreate("mkt-1", testNow)
		// Expensive one-sided inventory: avg 0.60.
		eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.60, 20, 12, "ord-1", testNow.Add(-5*time.Minute))

		quote := testQuote(0.62, 0.42, 6*time.Minute)
		dec := eng.Evaluate(quote, domain.MomentumHint{}, RiskView{}, testNow)

		assert.False(t, dec.Trade)
		assert.Equal(t, GatePairCost, dec.Gate)
		assert.Equal(t, "pair cost would reach 1.0", dec.Reason)
	})

	t.Run("rebalance that raises pair cost is rejected", func(t *testing.T) {
		eng, _ := newTestEngine(t)
		w := eng.Windows().GetOrCreate("mkt-1", testNow)
		eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.20, 10, 2, "ord-1", testNow.Add(-5*time.Minute))
		eng.Windows().RecordBuy(w, domain.OutcomeDown, 0.30, 20, 6, "ord-2", testNow.Add(-4*time.Minute))

		// Up within threshold but well above its 0.20 average.
		quote := testQuote(0.40, 0.55, 6*time.Minute)
		dec := eng.Evaluate(quote, domain.MomentumHint{}, RiskView{}, testNow)

		assert.False(t, dec.Trade)
		assert.Equal(t, GatePairCost, dec.Gate)
		assert.Equal(t, "buy would raise pair cost", dec.Reason)
	})
}

func TestEvaluateAdverseStreakDiscount(t *testing.T) {
	eng, _ := newTestEngine(t)

	quote := testQuote(0.30, 0.60, 4*time.Minute)
	hint := domain.MomentumHint{Delta3m: 0.3}
	dec := eng.Evaluate(quote, hint, RiskView{LossStreak: 2}, testNow)

	require.True(t, dec.Trade)
	assert.Equal(t, 5.0, dec.SizeUSD)
}

func TestEvaluateHedgeExemptFromStreakBias(t *testing.T) {
	eng, _ := newTestEngine(t)
	w := eng.Windows().GetOrCreate("mkt-1", testNow)
	eng.Windows().RecordBuy(w, domain.OutcomeUp, 0.30, 30, 9, "ord-1", testNow.Add(-5*time.Minute))

	// Down hedge above the streak-bias ceiling still goes through; the
	// bias gate only throttles fresh directional entries.
	quote := testQuote(0.58, 0.38, 6*time.Minute)
	risk := RiskView{WinStreak: 3, WinStreakDir: domain.OutcomeDown, SameDir: true}
	dec := eng.Evaluate(quote, domain.MomentumHint{}, risk, testNow)

	require.True(t, dec.Trade)
	assert.Equal(t, domain.StrategyHedge, dec.Strategy)
	assert.Equal(t, 10.0, dec.SizeUSD)
}
