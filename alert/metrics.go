package alert

import "tendbot/internal/metrics"

// WithMetrics wraps an alerter so every event is counted by kind. Close
// events are additionally counted by reason; the labels mirror the
// ledger's close reason strings.
func WithMetrics(next Alerter, m *metrics.Registry) Alerter {
	return &counted{next: next, m: m}
}

type counted struct {
	next Alerter
	m    *metrics.Registry
}

func (c *counted) Notify(e Event) {
	c.m.Alerts.WithLabelValues(string(e.Kind)).Inc()
	switch e.Kind {
	case KindClosedTarget:
		c.m.PositionsClosed.WithLabelValues("target").Inc()
	case KindClosedStop:
		c.m.PositionsClosed.WithLabelValues("stop").Inc()
	case KindClosedTime:
		c.m.PositionsClosed.WithLabelValues("time_limit").Inc()
	}
	c.next.Notify(e)
}
