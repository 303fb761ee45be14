package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryExposesMetrics(t *testing.T) {
	t.Parallel()

	r := New()
	r.Ticks.Inc()
	r.Ticks.Inc()
	r.TickFailures.Inc()
	r.OpenPositions.Set(3)
	r.Equity.Set(287.5)
	r.Orders.WithLabelValues("entry").Inc()
	r.PositionsClosed.WithLabelValues("target").Inc()
	r.Alerts.WithLabelValues("time_warning").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "tendbot_ticks_total 2")
	assert.Contains(t, body, "tendbot_tick_failures_total 1")
	assert.Contains(t, body, "tendbot_open_positions 3")
	assert.Contains(t, body, "tendbot_account_equity_usd 287.5")
	assert.Contains(t, body, `tendbot_orders_total{type="entry"} 1`)
	assert.Contains(t, body, `tendbot_positions_closed_total{reason="target"} 1`)
	assert.Contains(t, body, `tendbot_alerts_total{kind="time_warning"} 1`)
}

func TestRegistriesAreIndependent(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()
	a.Ticks.Inc()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "tendbot_ticks_total 0")
}
