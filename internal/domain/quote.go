package domain

import "time"

// Outcome identifies one side of a paired Up/Down market.
type Outcome string

const (
	OutcomeUp   Outcome = "Up"
	OutcomeDown Outcome = "Down"
)

// Opposite returns the other side of the pair.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeUp {
		return OutcomeDown
	}
	return OutcomeUp
}

// Quote is a snapshot of a paired Up/Down market. UpPrice and DownPrice are
// the current ask prices of the two outcome tokens in dollars per share.
// PriceToBeat is the reference spot price latched once, at or after the
// market's start time; it is immutable for the life of the market.
type Quote struct {
	MarketID      string
	UpPrice       float64
	DownPrice     float64
	UpTokenID     string
	DownTokenID   string
	MarketEndTime time.Time
	PriceToBeat   float64
	FetchedAt     time.Time
}

// Valid reports whether the quote carries usable prices for both sides.
func (q Quote) Valid() bool {
	return q.MarketID != "" && q.UpPrice > 0 && q.DownPrice > 0 && !q.MarketEndTime.IsZero()
}

// Price returns the ask price for the given outcome.
func (q Quote) Price(o Outcome) float64 {
	if o == OutcomeUp {
		return q.UpPrice
	}
	return q.DownPrice
}

// TokenID returns the outcome token identifier for the given side.
func (q Quote) TokenID(o Outcome) string {
	if o == OutcomeUp {
		return q.UpTokenID
	}
	return q.DownTokenID
}

// ElapsedMinutes returns how many minutes of the market's cycle have passed
// at the given instant, assuming the configured cycle length.
func (q Quote) ElapsedMinutes(now time.Time, cycle time.Duration) float64 {
	start := q.MarketEndTime.Add(-cycle)
	return now.Sub(start).Minutes()
}

// MomentumHint carries signed recent percentage moves of the underlying
// asset. It is a directional/strength filter only, not a probability model.
type MomentumHint struct {
	Delta1m float64 // percent move over the last minute
	Delta3m float64 // percent move over the last three minutes
}

// Direction returns the outcome side the underlying's 3-minute move points
// at, or "" when the hint is flat.
func (m MomentumHint) Direction() Outcome {
	switch {
	case m.Delta3m > 0:
		return OutcomeUp
	case m.Delta3m < 0:
		return OutcomeDown
	default:
		return ""
	}
}

// SpotSnapshot is the latest-known underlying price published by a feed.
type SpotSnapshot struct {
	Price     float64
	Hint      MomentumHint
	UpdatedAt time.Time
}
