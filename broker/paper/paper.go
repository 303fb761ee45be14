// Package paper is an in-memory exchange for dry runs. Every well-formed
// order is accepted and logged; prices and equity only move when pushed in.
// The fill logic lives in the position manager, so the paper exchange stays
// a dumb order sink, the way the real one looks from the outside.
package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tendbot/broker"
	"tendbot/journal"
	"tendbot/market"
)

var ErrOffline = errors.New("paper exchange offline")

// Order is one accepted instruction, kept for inspection.
type Order struct {
	ID     string
	Type   string // entry, reduce, stop, close
	Symbol string
	Side   market.Side
	Qty    float64
	Price  float64
	Placed time.Time
}

type Exchange struct {
	mu      sync.Mutex
	equity  float64
	prices  map[string]float64
	orders  []Order
	resting map[string]Order // unfilled entry orders by ID
	stops   map[string]Order // one standing stop per symbol
	nextID  int
	offline bool
}

func New(startEquity float64) *Exchange {
	return &Exchange{
		equity:  startEquity,
		prices:  make(map[string]float64),
		resting: make(map[string]Order),
		stops:   make(map[string]Order),
	}
}

func (x *Exchange) SetPrice(symbol string, px float64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.prices[symbol] = px
}

func (x *Exchange) SetPrices(prices map[string]float64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for s, px := range prices {
		x.prices[s] = px
	}
}

func (x *Exchange) AddEquity(delta float64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.equity += delta
}

func (x *Exchange) Equity() float64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.equity
}

// SetOffline makes every fetch fail until switched back, simulating an
// unreachable exchange.
func (x *Exchange) SetOffline(offline bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.offline = offline
}

// Orders returns a copy of the accepted-order log, oldest first.
func (x *Exchange) Orders() []Order {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]Order(nil), x.orders...)
}

// StandingStop returns the working stop for a symbol, if any.
func (x *Exchange) StandingStop(symbol string) (Order, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	o, ok := x.stops[symbol]
	return o, ok
}

func (x *Exchange) acceptLocked(typ, symbol string, side market.Side, qty, price float64) Order {
	x.nextID++
	o := Order{
		ID:     fmt.Sprintf("paper-%d", x.nextID),
		Type:   typ,
		Symbol: symbol,
		Side:   side,
		Qty:    qty,
		Price:  price,
		Placed: time.Now(),
	}
	x.orders = append(x.orders, o)
	return o
}

func (x *Exchange) PlaceEntryOrder(_ context.Context, symbol string, side market.Side, qty, price float64) (broker.OrderRef, error) {
	if qty <= 0 || price <= 0 {
		return broker.OrderRef{}, fmt.Errorf("entry order for %s: bad qty %v or price %v", symbol, qty, price)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	o := x.acceptLocked("entry", symbol, side, qty, price)
	x.resting[o.ID] = o
	return broker.OrderRef{ID: o.ID, Symbol: symbol, Placed: o.Placed}, nil
}

func (x *Exchange) PlaceReduceOrder(_ context.Context, symbol string, side market.Side, qty float64) (broker.OrderRef, error) {
	if qty <= 0 {
		return broker.OrderRef{}, fmt.Errorf("reduce order for %s: bad qty %v", symbol, qty)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	o := x.acceptLocked("reduce", symbol, side, qty, 0)
	return broker.OrderRef{ID: o.ID, Symbol: symbol, Placed: o.Placed}, nil
}

func (x *Exchange) PlaceStopOrder(_ context.Context, symbol string, side market.Side, qty, stopPrice float64) (broker.OrderRef, error) {
	if qty <= 0 || stopPrice <= 0 {
		return broker.OrderRef{}, fmt.Errorf("stop order for %s: bad qty %v or stop %v", symbol, qty, stopPrice)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	o := x.acceptLocked("stop", symbol, side, qty, stopPrice)
	x.stops[symbol] = o
	return broker.OrderRef{ID: o.ID, Symbol: symbol, Placed: o.Placed}, nil
}

func (x *Exchange) CloseMarket(_ context.Context, symbol string, side market.Side, qty float64) (broker.OrderRef, error) {
	if qty <= 0 {
		return broker.OrderRef{}, fmt.Errorf("market close for %s: bad qty %v", symbol, qty)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	o := x.acceptLocked("close", symbol, side, qty, 0)
	// A flat symbol has no use for its protective stop.
	delete(x.stops, symbol)
	return broker.OrderRef{ID: o.ID, Symbol: symbol, Placed: o.Placed}, nil
}

func (x *Exchange) CancelOrder(_ context.Context, symbol, orderID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.resting[orderID]; !ok {
		return fmt.Errorf("cancel %s on %s: unknown order", orderID, symbol)
	}
	delete(x.resting, orderID)
	return nil
}

func (x *Exchange) FetchPositionsAndPrices(context.Context) (broker.AccountSnapshot, map[string]float64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.offline {
		return broker.AccountSnapshot{}, nil, ErrOffline
	}
	prices := make(map[string]float64, len(x.prices))
	for s, px := range x.prices {
		prices[s] = px
	}
	return broker.AccountSnapshot{Equity: x.equity, AvailableMargin: x.equity}, prices, nil
}

// Settle is journal middleware that folds each archived position's realized
// PnL back into the paper account, so equity drifts with results over a dry
// run.
type Settle struct {
	Exchange *Exchange
	Next     journal.Journal
}

func (s Settle) RecordPosition(r journal.PositionRecord) error {
	s.Exchange.AddEquity(r.RealizedPnL)
	return s.Next.RecordPosition(r)
}

func (s Settle) RecordEquity(e journal.EquitySnapshot) error { return s.Next.RecordEquity(e) }

func (s Settle) Close() error { return s.Next.Close() }
