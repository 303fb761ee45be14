package broker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tendbot/internal/metrics"
	"tendbot/market"
)

type stubGateway struct {
	fail bool
}

func (s *stubGateway) ref() (OrderRef, error) {
	if s.fail {
		return OrderRef{}, errors.New("rejected")
	}
	return OrderRef{ID: "ord-1"}, nil
}

func (s *stubGateway) PlaceEntryOrder(context.Context, string, market.Side, float64, float64) (OrderRef, error) {
	return s.ref()
}

func (s *stubGateway) PlaceReduceOrder(context.Context, string, market.Side, float64) (OrderRef, error) {
	return s.ref()
}

func (s *stubGateway) PlaceStopOrder(context.Context, string, market.Side, float64, float64) (OrderRef, error) {
	return s.ref()
}

func (s *stubGateway) CloseMarket(context.Context, string, market.Side, float64) (OrderRef, error) {
	return s.ref()
}

func (s *stubGateway) CancelOrder(context.Context, string, string) error {
	_, err := s.ref()
	return err
}

func (s *stubGateway) FetchPositionsAndPrices(context.Context) (AccountSnapshot, map[string]float64, error) {
	return AccountSnapshot{}, nil, nil
}

func TestWithMetricsCountsAcceptedOrders(t *testing.T) {
	t.Parallel()

	reg := metrics.New()
	stub := &stubGateway{}
	gw := WithMetrics(stub, reg)
	ctx := context.Background()

	_, err := gw.PlaceEntryOrder(ctx, "DOGEUSDT", market.Long, 6000, 0.17)
	require.NoError(t, err)
	_, err = gw.PlaceStopOrder(ctx, "DOGEUSDT", market.Long, 6000, 0.16)
	require.NoError(t, err)
	_, err = gw.PlaceReduceOrder(ctx, "DOGEUSDT", market.Long, 3000)
	require.NoError(t, err)
	_, err = gw.CloseMarket(ctx, "DOGEUSDT", market.Long, 3000)
	require.NoError(t, err)
	require.NoError(t, gw.CancelOrder(ctx, "DOGEUSDT", "ord-1"))

	// Rejected orders are not counted.
	stub.fail = true
	_, err = gw.PlaceEntryOrder(ctx, "DOGEUSDT", market.Long, 6000, 0.17)
	require.Error(t, err)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `tendbot_orders_total{type="entry"} 1`)
	assert.Contains(t, body, `tendbot_orders_total{type="stop"} 1`)
	assert.Contains(t, body, `tendbot_orders_total{type="reduce"} 1`)
	assert.Contains(t, body, `tendbot_orders_total{type="close"} 1`)
	assert.Contains(t, body, `tendbot_orders_total{type="cancel"} 1`)
}
