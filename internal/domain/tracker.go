package domain

import "time"

// RecentOutcomeCap bounds the outcome ring buffer used by the risk governor.
const RecentOutcomeCap = 20

// OutcomeRecord is one resolved trade appended to the recent-outcome ring.
type OutcomeRecord struct {
	Win        bool      `json:"win"`
	Direction  Outcome   `json:"direction"`
	PnL        float64   `json:"pnl"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// TrackerState is the aggregate owned by the position tracker and the unit
// of durable persistence. It must survive restarts with no loss of open
// positions or counters.
type TrackerState struct {
	OpenPositions   []Position      `json:"open_positions"`
	ClosedPositions []Position      `json:"closed_positions"`
	TotalPnL        float64         `json:"total_pnl"`
	Wins            int             `json:"wins"`
	Losses          int             `json:"losses"`
	TotalCost       float64         `json:"total_cost"`
	TotalReturn     float64         `json:"total_return"`
	RecentOutcomes  []OutcomeRecord `json:"recent_outcomes"`
	PausedAt        *time.Time      `json:"paused_at,omitempty"`
	PauseReason     string          `json:"pause_reason,omitempty"`
	LastPauseStart  *time.Time      `json:"last_pause_start,omitempty"`
}

// AppendOutcome pushes a record onto the ring, evicting the oldest entry
// once the capacity is reached.
func (s *TrackerState) AppendOutcome(rec OutcomeRecord) {
	s.RecentOutcomes = append(s.RecentOutcomes, rec)
	if overflow := len(s.RecentOutcomes) - RecentOutcomeCap; overflow > 0 {
		s.RecentOutcomes = append([]OutcomeRecord(nil), s.RecentOutcomes[overflow:]...)
	}
}

// LossStreak returns the number of consecutive losses at the tail of the
// recent-outcome ring.
func (s *TrackerState) LossStreak() int {
	n := 0
	for i := len(s.RecentOutcomes) - 1; i >= 0; i-- {
		if s.RecentOutcomes[i].Win {
			break
		}
		n++
	}
	return n
}

// WinStreak returns the consecutive wins at the tail of the ring together
// with their direction. The direction is only meaningful when every win in
// the streak landed on the same side; otherwise ok is false.
func (s *TrackerState) WinStreak() (count int, dir Outcome, ok bool) {
	for i := len(s.RecentOutcomes) - 1; i >= 0; i-- {
		rec := s.RecentOutcomes[i]
		if !rec.Win {
			break
		}
		if count == 0 {
			dir = rec.Direction
			ok = true
		} else if rec.Direction != dir {
			ok = false
		}
		count++
	}
	if count == 0 {
		return 0, "", false
	}
	return count, dir, ok
}

// OpenExposure sums the cost of all open positions.
func (s *TrackerState) OpenExposure() float64 {
	var total float64
	for i := range s.OpenPositions {
		total += s.OpenPositions[i].Cost
	}
	return total
}

// WinRate returns wins / resolved and the resolved count.
func (s *TrackerState) WinRate() (float64, int) {
	resolved := s.Wins + s.Losses
	if resolved == 0 {
		return 0, 0
	}
	return float64(s.Wins) / float64(resolved), resolved
}

// Stats is the read-only snapshot exposed to the presentation layer.
type Stats struct {
	TotalPnL        float64    `json:"total_pnl"`
	Wins            int        `json:"wins"`
	Losses          int        `json:"losses"`
	WinRate         float64    `json:"win_rate"`
	TotalCost       float64    `json:"total_cost"`
	TotalReturn     float64    `json:"total_return"`
	OpenPositions   int        `json:"open_positions"`
	OpenExposure    float64    `json:"open_exposure"`
	LossStreak      int        `json:"loss_streak"`
	TradesLastHour  int        `json:"trades_last_hour"`
	Paused          bool       `json:"paused"`
	PausedAt        *time.Time `json:"paused_at,omitempty"`
	PauseReason     string     `json:"pause_reason,omitempty"`
	StopLossFlagged []string   `json:"stop_loss_flagged,omitempty"` // advisory only
	Window          *Window    `json:"window,omitempty"`
}
