package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// Metrics holds the Prometheus instruments the bot updates while trading.
// They are served at /metrics in the standard text exposition format.
type Metrics struct {
	registry *prometheus.Registry

	decisions   *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	orders      *prometheus.CounterVec
	resolutions *prometheus.CounterVec

	totalPnL     prometheus.Gauge
	openExposure prometheus.Gauge
	lossStreak   prometheus.Gauge
}

// NewMetrics creates and registers the bot's metric set on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "updown_decisions_total",
				Help: "Decision evaluations by result (trade|skip)",
			},
			[]string{"result"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "updown_gate_rejections_total",
				Help: "Skipped evaluations by rejecting gate",
			},
			[]string{"gate"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "updown_orders_total",
				Help: "Orders placed by strategy tag and side",
			},
			[]string{"strategy", "side"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "updown_resolutions_total",
				Help: "Position resolutions by status",
			},
			[]string{"status"},
		),
		totalPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "updown_total_pnl_usd",
			Help: "Cumulative realised profit and loss in USD",
		}),
		openExposure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "updown_open_exposure_usd",
			Help: "Cost basis of all open positions in USD",
		}),
		lossStreak: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "updown_loss_streak",
			Help: "Current consecutive-loss count",
		}),
	}

	m.registry.MustRegister(
		m.decisions, m.rejections, m.orders, m.resolutions,
		m.totalPnL, m.openExposure, m.lossStreak,
	)
	return m
}

// Registry returns the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetExposure updates the aggregate gauges from a stats snapshot.
func (m *Metrics) SetExposure(stats domain.Stats) {
	m.totalPnL.Set(stats.TotalPnL)
	m.openExposure.Set(stats.OpenExposure)
	m.lossStreak.Set(float64(stats.LossStreak))
}

// Decision implements domain.EventSink.
func (m *Metrics) Decision(ev domain.DecisionEvent) {
	if ev.Trade {
		m.decisions.WithLabelValues("trade").Inc()
		m.orders.WithLabelValues(ev.Strategy, string(ev.Outcome)).Inc()
		return
	}
	m.decisions.WithLabelValues("skip").Inc()
	if ev.Gate != "" {
		m.rejections.WithLabelValues(ev.Gate).Inc()
	}
}

// Resolution implements domain.EventSink.
func (m *Metrics) Resolution(ev domain.ResolutionEvent) {
	m.resolutions.WithLabelValues(string(ev.Status)).Inc()
}
