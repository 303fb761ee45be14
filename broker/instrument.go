package broker

import (
	"context"

	"tendbot/internal/metrics"
	"tendbot/market"
)

// WithMetrics wraps a gateway so every order the exchange accepts is
// counted by type. Rejected calls are not counted; the tick failure and
// alert metrics cover those.
func WithMetrics(g Gateway, m *metrics.Registry) Gateway {
	return &metered{next: g, m: m}
}

type metered struct {
	next Gateway
	m    *metrics.Registry
}

func (g *metered) PlaceEntryOrder(ctx context.Context, symbol string, side market.Side, qty, price float64) (OrderRef, error) {
	ref, err := g.next.PlaceEntryOrder(ctx, symbol, side, qty, price)
	if err == nil {
		g.m.Orders.WithLabelValues("entry").Inc()
	}
	return ref, err
}

func (g *metered) PlaceReduceOrder(ctx context.Context, symbol string, side market.Side, qty float64) (OrderRef, error) {
	ref, err := g.next.PlaceReduceOrder(ctx, symbol, side, qty)
	if err == nil {
		g.m.Orders.WithLabelValues("reduce").Inc()
	}
	return ref, err
}

func (g *metered) PlaceStopOrder(ctx context.Context, symbol string, side market.Side, qty, stopPrice float64) (OrderRef, error) {
	ref, err := g.next.PlaceStopOrder(ctx, symbol, side, qty, stopPrice)
	if err == nil {
		g.m.Orders.WithLabelValues("stop").Inc()
	}
	return ref, err
}

func (g *metered) CloseMarket(ctx context.Context, symbol string, side market.Side, qty float64) (OrderRef, error) {
	ref, err := g.next.CloseMarket(ctx, symbol, side, qty)
	if err == nil {
		g.m.Orders.WithLabelValues("close").Inc()
	}
	return ref, err
}

func (g *metered) CancelOrder(ctx context.Context, symbol, orderID string) error {
	err := g.next.CancelOrder(ctx, symbol, orderID)
	if err == nil {
		g.m.Orders.WithLabelValues("cancel").Inc()
	}
	return err
}

func (g *metered) FetchPositionsAndPrices(ctx context.Context) (AccountSnapshot, map[string]float64, error) {
	return g.next.FetchPositionsAndPrices(ctx)
}
