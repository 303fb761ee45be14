// Package metrics holds the bot's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric the bot publishes. Each instance carries
// its own Prometheus registry, so tests can build as many as they like
// without colliding on the global one.
type Registry struct {
	reg *prometheus.Registry

	// Monitor loop.
	Ticks        prometheus.Counter
	TickFailures prometheus.Counter
	TickDuration prometheus.Histogram

	// Account and book.
	OpenPositions prometheus.Gauge
	Equity        prometheus.Gauge

	// Order flow and outcomes.
	Orders          *prometheus.CounterVec
	PositionsClosed *prometheus.CounterVec
	Alerts          *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tendbot_ticks_total",
			Help: "Monitor ticks attempted",
		}),
		TickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tendbot_tick_failures_total",
			Help: "Ticks skipped because the exchange fetch failed",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tendbot_tick_duration_seconds",
			Help:    "Wall time of one monitor tick",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tendbot_open_positions",
			Help: "Positions currently tracked by the ledger",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tendbot_account_equity_usd",
			Help: "Last fetched account equity",
		}),

		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tendbot_orders_total",
			Help: "Orders accepted by the exchange, by order type",
		}, []string{"type"}),
		PositionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tendbot_positions_closed_total",
			Help: "Positions closed, by close reason",
		}, []string{"reason"}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tendbot_alerts_total",
			Help: "Alert events emitted, by kind",
		}, []string{"kind"}),
	}

	r.reg.MustRegister(
		r.Ticks,
		r.TickFailures,
		r.TickDuration,
		r.OpenPositions,
		r.Equity,
		r.Orders,
		r.PositionsClosed,
		r.Alerts,
	)
	return r
}

// Handler serves the registry in the Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
