package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuoteValid(t *testing.T) {
	end := time.Now().Add(10 * time.Minute)
	q := Quote{MarketID: "m1", UpPrice: 0.52, DownPrice: 0.49, MarketEndTime: end}
	assert.True(t, q.Valid())

	assert.False(t, Quote{UpPrice: 0.5, DownPrice: 0.5, MarketEndTime: end}.Valid())
	assert.False(t, Quote{MarketID: "m1", DownPrice: 0.5, MarketEndTime: end}.Valid())
	assert.False(t, Quote{MarketID: "m1", UpPrice: 0.5, DownPrice: 0.5}.Valid())
}

func TestQuoteSideAccessors(t *testing.T) {
	q := Quote{UpPrice: 0.3, DownPrice: 0.6, UpTokenID: "tok-up", DownTokenID: "tok-down"}
	assert.Equal(t, 0.3, q.Price(OutcomeUp))
	assert.Equal(t, 0.6, q.Price(OutcomeDown))
	assert.Equal(t, "tok-up", q.TokenID(OutcomeUp))
	assert.Equal(t, "tok-down", q.TokenID(OutcomeDown))
}

func TestQuoteElapsedMinutes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 4, 0, 0, time.UTC)
	q := Quote{MarketEndTime: now.Add(11 * time.Minute)}
	assert.InDelta(t, 4.0, q.ElapsedMinutes(now, 15*time.Minute), 1e-9)
}

func TestMomentumDirection(t *testing.T) {
	assert.Equal(t, OutcomeUp, MomentumHint{Delta3m: 0.3}.Direction())
	assert.Equal(t, OutcomeDown, MomentumHint{Delta3m: -0.1}.Direction())
	assert.Equal(t, Outcome(""), MomentumHint{}.Direction())
}

func TestOutcomeOpposite(t *testing.T) {
	assert.Equal(t, OutcomeDown, OutcomeUp.Opposite())
	assert.Equal(t, OutcomeUp, OutcomeDown.Opposite())
}
