package alert

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"tendbot/internal/metrics"
)

func TestWithMetricsCountsAndForwards(t *testing.T) {
	t.Parallel()

	reg := metrics.New()
	sink := &recordingSink{}
	al := WithMetrics(sink, reg)

	al.Notify(Event{Kind: KindOpened})
	al.Notify(Event{Kind: KindOpened})
	al.Notify(Event{Kind: KindClosedTarget})
	al.Notify(Event{Kind: KindClosedStop})
	al.Notify(Event{Kind: KindClosedTime})

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `tendbot_alerts_total{kind="opened"} 2`)
	assert.Contains(t, body, `tendbot_alerts_total{kind="closed_target"} 1`)
	assert.Contains(t, body, `tendbot_positions_closed_total{reason="target"} 1`)
	assert.Contains(t, body, `tendbot_positions_closed_total{reason="stop"} 1`)
	assert.Contains(t, body, `tendbot_positions_closed_total{reason="time_limit"} 1`)

	assert.Len(t, sink.snapshot(), 5, "every event still reaches the wrapped alerter")
}
