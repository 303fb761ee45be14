// Package broker defines the exchange surface the position manager drives.
//
// Implementations live in subpackages: paper (simulated, in-process) and
// bitget (USDT-margined futures over signed REST).
package broker

import (
	"context"
	"time"

	"tendbot/market"
)

// Gateway is the set of exchange operations the trading loop needs. The side
// argument is always the side of the POSITION being worked; implementations
// derive the order direction from it (reducing a long means selling).
type Gateway interface {
	// PlaceEntryOrder submits a limit order opening a position at price.
	PlaceEntryOrder(ctx context.Context, symbol string, side market.Side, qty, price float64) (OrderRef, error)

	// PlaceReduceOrder market-closes qty of an open position, leaving the
	// rest working.
	PlaceReduceOrder(ctx context.Context, symbol string, side market.Side, qty float64) (OrderRef, error)

	// PlaceStopOrder sets the protective stop for an open position,
	// replacing any stop previously placed for it.
	PlaceStopOrder(ctx context.Context, symbol string, side market.Side, qty, stopPrice float64) (OrderRef, error)

	// CloseMarket closes qty of an open position at market.
	CloseMarket(ctx context.Context, symbol string, side market.Side, qty float64) (OrderRef, error)

	// CancelOrder withdraws a resting order that has not filled.
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// FetchPositionsAndPrices returns the account snapshot and the latest
	// mark price per symbol the gateway is tracking.
	FetchPositionsAndPrices(ctx context.Context) (AccountSnapshot, map[string]float64, error)
}

// OrderRef identifies an order accepted by the exchange.
type OrderRef struct {
	ID     string
	Symbol string
	Placed time.Time
}

// AccountSnapshot is the per-tick view of the account.
type AccountSnapshot struct {
	Equity            float64
	AvailableMargin   float64
	OpenPositionCount int
}
