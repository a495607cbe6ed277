package server

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

func TestMetricsDecision(t *testing.T) {
	m := NewMetrics()

	m.Decision(domain.DecisionEvent{
		Trade:    true,
		Outcome:  domain.OutcomeUp,
		Strategy: domain.StrategyInitial,
	})
	m.Decision(domain.DecisionEvent{Gate: "cheap_side", Reason: "no cheap side"})
	m.Decision(domain.DecisionEvent{Gate: "cheap_side", Reason: "no cheap side"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("trade")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("skip")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejections.WithLabelValues("cheap_side")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues(domain.StrategyInitial, "Up")))
}

func TestMetricsResolution(t *testing.T) {
	m := NewMetrics()

	m.Resolution(domain.ResolutionEvent{Status: domain.PositionStatusResolvedWin})
	m.Resolution(domain.ResolutionEvent{Status: domain.PositionStatusResolvedLoss})
	m.Resolution(domain.ResolutionEvent{Status: domain.PositionStatusResolvedLoss})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues(string(domain.PositionStatusResolvedWin))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolutions.WithLabelValues(string(domain.PositionStatusResolvedLoss))))
}

func TestMetricsSetExposure(t *testing.T) {
	m := NewMetrics()

	m.SetExposure(domain.Stats{TotalPnL: -12.5, OpenExposure: 30, LossStreak: 2})

	assert.Equal(t, -12.5, testutil.ToFloat64(m.totalPnL))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.openExposure))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.lossStreak))
}
