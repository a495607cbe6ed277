package domain

// Strategy tags identify which decision rule path produced a buy
// instruction. They are recorded on positions and in the trade journal for
// post-hoc analysis.
const (
	StrategyInitial   = "INITIAL"
	StrategyHedge     = "HEDGE"
	StrategyLateHedge = "LATE_HEDGE"
	StrategyRebalance = "REBALANCE"
)

// Decision is the output of one decision-engine evaluation: either a fully
// specified buy instruction (Trade true) or a definitive "no trade" with the
// reason of the first failing gate. A rejection is a business outcome, never
// an error.
type Decision struct {
	Trade    bool    `json:"trade"`
	Gate     string  `json:"gate,omitempty"`   // gate that rejected, when Trade is false
	Reason   string  `json:"reason,omitempty"` // distinct per gate
	Outcome  Outcome `json:"outcome,omitempty"`
	Price    float64 `json:"price,omitempty"`    // quoted ask used for the instruction
	SizeUSD  float64 `json:"size_usd,omitempty"` // dollars to spend
	Strategy string  `json:"strategy,omitempty"`
}

// Reject builds a no-trade decision for the named gate.
func Reject(gate, reason string) Decision {
	return Decision{Trade: false, Gate: gate, Reason: reason}
}
