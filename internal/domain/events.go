package domain

import "time"

// DecisionEvent is emitted once per decision-engine evaluation. Events are
// the observability surface of the engine: tests and the presentation layer
// consume the same records, decoupled from any log formatting.
type DecisionEvent struct {
	Time       time.Time `json:"time"`
	MarketID   string    `json:"market_id"`
	Trade      bool      `json:"trade"`
	Gate       string    `json:"gate,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Outcome    Outcome   `json:"outcome,omitempty"`
	Strategy   string    `json:"strategy,omitempty"`
	Price      float64   `json:"price,omitempty"`
	SizeUSD    float64   `json:"size_usd,omitempty"`
	UpPrice    float64   `json:"up_price"`
	DownPrice  float64   `json:"down_price"`
	ElapsedMin float64   `json:"elapsed_min"`
	Delta3m    float64   `json:"delta_3m"`
}

// ResolutionEvent is emitted once per position resolution.
type ResolutionEvent struct {
	Time          time.Time      `json:"time"`
	MarketID      string         `json:"market_id"`
	OrderID       string         `json:"order_id"`
	Direction     Outcome        `json:"direction"`
	Status        PositionStatus `json:"status"`
	PnL           float64        `json:"pnl"`
	PriceToBeat   float64        `json:"price_to_beat"`
	ResolvedPrice float64        `json:"resolved_price"`
	// Ambiguous marks a conservative loss taken because no resolution price
	// was available, as opposed to a normal losing resolution.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// EventSink consumes structured engine events. Implementations must be
// non-blocking and must never fail the decision loop.
type EventSink interface {
	Decision(ev DecisionEvent)
	Resolution(ev ResolutionEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Decision(DecisionEvent)     {}
func (NopSink) Resolution(ResolutionEvent) {}

// MultiSink fans events out to every wrapped sink.
type MultiSink []EventSink

func (m MultiSink) Decision(ev DecisionEvent) {
	for _, s := range m {
		s.Decision(ev)
	}
}

func (m MultiSink) Resolution(ev ResolutionEvent) {
	for _, s := range m {
		s.Resolution(ev)
	}
}
