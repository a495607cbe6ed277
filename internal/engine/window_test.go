package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

func TestGetOrCreate(t *testing.T) {
	m := NewWindowManager(testLogger())

	w1 := m.GetOrCreate("mkt-1", testNow)
	require.NotNil(t, w1)
	assert.Equal(t, "mkt-1", w1.MarketID)
	assert.Equal(t, testNow, w1.CreatedAt)

	// Same market returns the same window.
	w2 := m.GetOrCreate("mkt-1", testNow.Add(time.Minute))
	assert.Same(t, w1, w2)
	assert.Empty(t, m.History())
}

func TestRolloverArchivesWindow(t *testing.T) {
	m := NewWindowManager(testLogger())

	w1 := m.GetOrCreate("mkt-1", testNow)
	m.RecordBuy(w1, domain.OutcomeUp, 0.30, 30, 9, "ord-1", testNow)

	w2 := m.GetOrCreate("mkt-2", testNow.Add(15*time.Minute))
	assert.Equal(t, "mkt-2", w2.MarketID)
	assert.Zero(t, w2.TotalCost())

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, "mkt-1", history[0].MarketID)
	assert.Equal(t, 9.0, history[0].TotalCost())
}

func TestRecordBuyLockInvariant(t *testing.T) {
	m := NewWindowManager(testLogger())
	w := m.GetOrCreate("mkt-1", testNow)

	m.RecordBuy(w, domain.OutcomeUp, 0.30, 30, 9, "ord-1", testNow)
	assert.False(t, w.Locked, "one-sided inventory cannot lock")

	// Matched 30 shares pay $30 against $21 spent: locked.
	m.RecordBuy(w, domain.OutcomeDown, 0.40, 30, 12, "ord-2", testNow.Add(time.Minute))
	assert.True(t, w.Locked)
	assert.Equal(t, 30.0, w.MatchedQty())
	assert.Equal(t, 21.0, w.TotalCost())
}

func TestRecordBuyUnprofitablePairStaysUnlocked(t *testing.T) {
	m := NewWindowManager(testLogger())
	w := m.GetOrCreate("mkt-1", testNow)

	m.RecordBuy(w, domain.OutcomeUp, 0.60, 20, 12, "ord-1", testNow)
	m.RecordBuy(w, domain.OutcomeDown, 0.55, 20, 11, "ord-2", testNow.Add(time.Minute))

	// Matched 20 shares pay $20 against $23 spent.
	assert.False(t, w.Locked)
}

func TestRecordBuyStartPairCostSetOnce(t *testing.T) {
	m := NewWindowManager(testLogger())
	w := m.GetOrCreate("mkt-1", testNow)

	m.RecordBuy(w, domain.OutcomeUp, 0.30, 10, 3, "ord-1", testNow)
	assert.Zero(t, w.StartPairCost)

	m.RecordBuy(w, domain.OutcomeDown, 0.40, 10, 4, "ord-2", testNow.Add(time.Minute))
	assert.InDelta(t, 0.70, w.StartPairCost, 1e-9)

	// Later buys move the live pair cost but not the starting one.
	m.RecordBuy(w, domain.OutcomeUp, 0.20, 10, 2, "ord-3", testNow.Add(2*time.Minute))
	assert.InDelta(t, 0.70, w.StartPairCost, 1e-9)

	pc, ok := w.PairCost()
	require.True(t, ok)
	assert.InDelta(t, 0.65, pc, 1e-9)
}

func TestActiveReturnsCopy(t *testing.T) {
	m := NewWindowManager(testLogger())
	assert.Nil(t, m.Active())

	w := m.GetOrCreate("mkt-1", testNow)
	m.RecordBuy(w, domain.OutcomeUp, 0.30, 30, 9, "ord-1", testNow)

	snap := m.Active()
	require.NotNil(t, snap)
	snap.QtyUp = 999
	snap.Buys[0].OrderID = "mutated"

	assert.Equal(t, 30.0, m.Active().QtyUp)
	assert.Equal(t, "ord-1", m.Active().Buys[0].OrderID)
}
