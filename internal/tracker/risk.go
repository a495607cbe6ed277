package tracker

import (
	"fmt"
	"log/slog"
	"time"
)

// StopDecision is the risk governor's verdict for one tick. Callers must
// re-check every tick; the reason is for operators and logs, never for
// programmatic dispatch.
type StopDecision struct {
	Stop   bool   `json:"stop"`
	Reason string `json:"reason,omitempty"`
}

// ShouldStopTrading examines recent outcome history and aggregates.
//
// Three or more consecutive losses start a pause of the configured
// duration, recorded with a timestamp and reason; the pause lifts when the
// duration elapses or immediately when a win breaks the streak (handled in
// resolveLocked). Independently, cumulative P&L below the floor or a win
// rate under the minimum after enough resolved trades also stop trading;
// those two carry no pause timestamp and clear on their own as soon as the
// aggregates recover.
func (t *Tracker) ShouldStopTrading(now time.Time) StopDecision {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Active pause from an earlier loss streak.
	if t.state.PausedAt != nil {
		if now.Sub(*t.state.PausedAt) < t.cfg.PauseDuration.Duration {
			return StopDecision{Stop: true, Reason: t.state.PauseReason}
		}
		t.logger.Info("risk pause expired", slog.String("reason", t.state.PauseReason))
		expired := *t.state.PausedAt
		t.state.LastPauseStart = &expired
		t.state.PausedAt = nil
		t.state.PauseReason = ""
	}

	if streak := t.state.LossStreak(); streak >= t.cfg.PauseLossStreak && t.freshLossSinceLastPause() {
		paused := now
		t.state.PausedAt = &paused
		t.state.PauseReason = fmt.Sprintf("%d consecutive losses", streak)
		t.logger.Warn("risk pause started",
			slog.Int("loss_streak", streak),
			slog.Duration("duration", t.cfg.PauseDuration.Duration),
		)
		return StopDecision{Stop: true, Reason: t.state.PauseReason}
	}

	if t.state.TotalPnL < t.cfg.MinTotalPnLUSD {
		return StopDecision{
			Stop:   true,
			Reason: fmt.Sprintf("cumulative pnl %.2f below floor %.2f", t.state.TotalPnL, t.cfg.MinTotalPnLUSD),
		}
	}

	if rate, resolved := t.state.WinRate(); resolved >= t.cfg.MinResolvedTrades && rate < t.cfg.MinWinRate {
		return StopDecision{
			Stop:   true,
			Reason: fmt.Sprintf("win rate %.0f%% under %.0f%% after %d trades", rate*100, t.cfg.MinWinRate*100, resolved),
		}
	}

	return StopDecision{}
}

// freshLossSinceLastPause reports whether the newest ring entry is a loss
// resolved after the previous pause started. An expired pause must not
// re-arm on the same trailing losses that caused it; only a newer loss
// restarts the clock. Callers hold t.mu.
func (t *Tracker) freshLossSinceLastPause() bool {
	if t.state.LastPauseStart == nil {
		return true
	}
	n := len(t.state.RecentOutcomes)
	if n == 0 {
		return false
	}
	last := t.state.RecentOutcomes[n-1]
	return !last.Win && last.ResolvedAt.After(*t.state.LastPauseStart)
}
