// Package bitget is the live gateway to Bitget USDT-margined futures.
//
// It speaks the v1 mix REST API: HMAC-signed requests, a {code,msg,data}
// envelope on every response, and plan (trigger) orders for protective
// stops. Outbound calls run through a rate limiter and a circuit breaker
// so a struggling venue degrades into skipped ticks instead of a pile-up.
package bitget

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"tendbot/broker"
	"tendbot/market"
)

const (
	DefaultBaseURL = "https://api.bitget.com"

	marginCoin  = "USDT"
	productType = "umcbl"
	mixSuffix   = "_UMCBL"

	codeOK = "00000"
)

const (
	pathPlaceOrder  = "/api/mix/v1/order/placeOrder"
	pathCancelOrder = "/api/mix/v1/order/cancel-order"
	pathPlacePlan   = "/api/mix/v1/plan/placePlan"
	pathCancelPlan  = "/api/mix/v1/plan/cancelPlan"
	pathAllPosition = "/api/mix/v1/position/allPosition"
	pathAccounts    = "/api/mix/v1/account/accounts"
	pathTickers     = "/api/mix/v1/market/tickers"
	pathSetLeverage = "/api/mix/v1/account/setLeverage"
	pathServerTime  = "/api/mix/v1/market/time"
)

// Config carries the venue credentials and client tuning.
type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Passphrase string

	// Symbols is the universe the gateway quotes prices for, in plain
	// form ("DOGEUSDT"). The mix suffix is added on the wire.
	Symbols []string

	// RequestsPerSecond caps outbound calls. Zero means 10.
	RequestsPerSecond float64
	// BreakAfter is the consecutive-failure count that opens the
	// circuit. Zero means 5.
	BreakAfter uint32
	// CoolDown is how long an open circuit rejects calls before probing
	// again. Zero means 30 seconds.
	CoolDown time.Duration
}

// Client implements broker.Gateway against the live exchange.
type Client struct {
	baseURL    string
	key        string
	secret     string
	passphrase string
	symbols    []string

	httpc   *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	stream  *Stream
	log     zerolog.Logger

	mu    sync.Mutex
	stops map[string]string // symbol -> working stop plan order id
}

// Quotes from the stream older than this fall back to the REST ticker.
const streamQuoteMaxAge = 10 * time.Second

var _ broker.Gateway = (*Client)(nil)

// APIError is a rejection reported by the exchange itself, as opposed to
// a transport failure. The circuit breaker ignores these: a venue that
// answers with a business error is still up.
type APIError struct {
	Path string
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitget %s: code %s: %s", e.Path, e.Code, e.Msg)
}

func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.BreakAfter == 0 {
		cfg.BreakAfter = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}

	logger := log.With().Str("component", "bitget").Logger()

	st := gobreaker.Settings{Name: "bitget"}
	st.Timeout = cfg.CoolDown
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.BreakAfter
	}
	st.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		var apiErr *APIError
		return errors.As(err, &apiErr)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn().
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state change")
	}

	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		key:        cfg.APIKey,
		secret:     cfg.APISecret,
		passphrase: cfg.Passphrase,
		symbols:    append([]string(nil), cfg.Symbols...),
		httpc:      &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		breaker:    gobreaker.NewCircuitBreaker(st),
		log:        logger,
		stops:      make(map[string]string),
	}
}

// UseStream overlays live websocket quotes onto the prices returned by
// FetchPositionsAndPrices. The caller still runs the stream itself.
func (c *Client) UseStream(s *Stream) {
	c.stream = s
}

// PlaceEntryOrder submits a limit order on the open side.
func (c *Client) PlaceEntryOrder(ctx context.Context, symbol string, side market.Side, qty, price float64) (broker.OrderRef, error) {
	req := placeOrderRequest{
		Symbol:     toMix(symbol),
		MarginCoin: marginCoin,
		Size:       formatNum(qty),
		Price:      formatNum(price),
		Side:       openSide(side),
		OrderType:  "limit",
	}
	var res orderResult
	if err := c.do(ctx, http.MethodPost, pathPlaceOrder, nil, req, &res); err != nil {
		return broker.OrderRef{}, fmt.Errorf("entry %s: %w", symbol, err)
	}
	c.log.Info().
		Str("symbol", symbol).
		Str("side", req.Side).
		Str("size", req.Size).
		Str("price", req.Price).
		Str("order_id", res.OrderID).
		Msg("entry order placed")
	return broker.OrderRef{ID: res.OrderID, Symbol: symbol, Placed: time.Now()}, nil
}

// PlaceReduceOrder market-closes part of an open position.
func (c *Client) PlaceReduceOrder(ctx context.Context, symbol string, side market.Side, qty float64) (broker.OrderRef, error) {
	ref, err := c.marketClose(ctx, symbol, side, qty)
	if err != nil {
		return broker.OrderRef{}, fmt.Errorf("reduce %s: %w", symbol, err)
	}
	return ref, nil
}

// PlaceStopOrder installs a market-on-trigger plan on the close side.
// The fresh trigger goes in before the stale one is withdrawn, so a
// failure anywhere in the exchange still leaves at least one working
// stop. Close-side plans only ever reduce, which makes a briefly
// duplicated stop harmless.
func (c *Client) PlaceStopOrder(ctx context.Context, symbol string, side market.Side, qty, stopPrice float64) (broker.OrderRef, error) {
	req := placePlanRequest{
		Symbol:       toMix(symbol),
		MarginCoin:   marginCoin,
		Size:         formatNum(qty),
		Side:         closeSide(side),
		OrderType:    "market",
		TriggerPrice: formatNum(stopPrice),
		TriggerType:  "market_price",
	}
	var res orderResult
	if err := c.do(ctx, http.MethodPost, pathPlacePlan, nil, req, &res); err != nil {
		return broker.OrderRef{}, fmt.Errorf("stop %s: %w", symbol, err)
	}

	c.mu.Lock()
	prior := c.stops[symbol]
	c.stops[symbol] = res.OrderID
	c.mu.Unlock()

	if prior != "" {
		if err := c.cancelPlan(ctx, symbol, prior); err != nil {
			c.log.Warn().Err(err).
				Str("symbol", symbol).
				Str("plan_id", prior).
				Msg("stale stop plan left on the venue")
		}
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("trigger", req.TriggerPrice).
		Str("size", req.Size).
		Str("plan_id", res.OrderID).
		Msg("stop plan placed")
	return broker.OrderRef{ID: res.OrderID, Symbol: symbol, Placed: time.Now()}, nil
}

// CloseMarket flattens qty of an open position and drops the tracked
// stop plan for the symbol, since there is nothing left to protect.
func (c *Client) CloseMarket(ctx context.Context, symbol string, side market.Side, qty float64) (broker.OrderRef, error) {
	ref, err := c.marketClose(ctx, symbol, side, qty)
	if err != nil {
		return broker.OrderRef{}, fmt.Errorf("close %s: %w", symbol, err)
	}

	c.mu.Lock()
	prior := c.stops[symbol]
	delete(c.stops, symbol)
	c.mu.Unlock()

	if prior != "" {
		if err := c.cancelPlan(ctx, symbol, prior); err != nil {
			c.log.Warn().Err(err).
				Str("symbol", symbol).
				Str("plan_id", prior).
				Msg("stop plan for flat symbol left on the venue")
		}
	}
	return ref, nil
}

// CancelOrder withdraws a resting limit order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	req := cancelOrderRequest{
		Symbol:     toMix(symbol),
		MarginCoin: marginCoin,
		OrderID:    orderID,
	}
	if err := c.do(ctx, http.MethodPost, pathCancelOrder, nil, req, nil); err != nil {
		return fmt.Errorf("cancel %s order %s: %w", symbol, orderID, err)
	}
	return nil
}

// FetchPositionsAndPrices gathers the account snapshot and the last
// price for every tracked symbol in three calls: margin accounts, open
// positions, and the batch ticker feed.
func (c *Client) FetchPositionsAndPrices(ctx context.Context) (broker.AccountSnapshot, map[string]float64, error) {
	var snap broker.AccountSnapshot

	q := url.Values{"productType": {productType}}
	var accounts []accountRow
	if err := c.do(ctx, http.MethodGet, pathAccounts, q, nil, &accounts); err != nil {
		return snap, nil, fmt.Errorf("fetch accounts: %w", err)
	}
	found := false
	for _, row := range accounts {
		if row.MarginCoin != marginCoin {
			continue
		}
		equity, err := parseNum("equity", row.Equity)
		if err != nil {
			return snap, nil, err
		}
		available, err := parseNum("available", row.Available)
		if err != nil {
			return snap, nil, err
		}
		snap.Equity = equity
		snap.AvailableMargin = available
		found = true
		break
	}
	if !found {
		return snap, nil, fmt.Errorf("fetch accounts: no %s margin account", marginCoin)
	}

	q = url.Values{"productType": {productType}, "marginCoin": {marginCoin}}
	var positions []positionRow
	if err := c.do(ctx, http.MethodGet, pathAllPosition, q, nil, &positions); err != nil {
		return snap, nil, fmt.Errorf("fetch positions: %w", err)
	}
	for _, row := range positions {
		total, err := parseNum("position total", row.Total)
		if err != nil {
			return snap, nil, err
		}
		if total > 0 {
			snap.OpenPositionCount++
		}
	}

	q = url.Values{"productType": {productType}}
	var tickers []tickerRow
	if err := c.do(ctx, http.MethodGet, pathTickers, q, nil, &tickers); err != nil {
		return snap, nil, fmt.Errorf("fetch tickers: %w", err)
	}
	tracked := make(map[string]string, len(c.symbols))
	for _, s := range c.symbols {
		tracked[toMix(s)] = s
	}
	prices := make(map[string]float64, len(c.symbols))
	for _, row := range tickers {
		plain, ok := tracked[row.Symbol]
		if !ok {
			continue
		}
		last, err := parseNum("last price", row.Last)
		if err != nil {
			// One broken quote starves one symbol for a tick, not
			// the whole account.
			c.log.Warn().Err(err).Str("symbol", plain).Msg("unreadable ticker")
			continue
		}
		prices[plain] = last
	}

	if c.stream != nil {
		for sym, px := range c.stream.Fresh(streamQuoteMaxAge) {
			if _, ok := tracked[toMix(sym)]; ok {
				prices[sym] = px
			}
		}
	}
	return snap, prices, nil
}

// SetLeverage applies the account leverage for one symbol. Run once per
// tracked symbol at startup.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	req := setLeverageRequest{
		Symbol:     toMix(symbol),
		MarginCoin: marginCoin,
		Leverage:   strconv.Itoa(leverage),
	}
	if err := c.do(ctx, http.MethodPost, pathSetLeverage, nil, req, nil); err != nil {
		return fmt.Errorf("set leverage %s: %w", symbol, err)
	}
	return nil
}

// Ping proves the credentials work by reading the margin accounts, the
// cheapest endpoint that actually validates a signature.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{"productType": {productType}}
	var accounts []accountRow
	if err := c.do(ctx, http.MethodGet, pathAccounts, q, nil, &accounts); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// ServerTime returns the venue clock, for drift checks against the
// signing timestamp.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, pathServerTime, nil, nil, &raw); err != nil {
		return time.Time{}, fmt.Errorf("server time: %w", err)
	}
	ms, err := parseMillis(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("server time: %w", err)
	}
	return time.UnixMilli(ms), nil
}

func (c *Client) marketClose(ctx context.Context, symbol string, side market.Side, qty float64) (broker.OrderRef, error) {
	req := placeOrderRequest{
		Symbol:     toMix(symbol),
		MarginCoin: marginCoin,
		Size:       formatNum(qty),
		Side:       closeSide(side),
		OrderType:  "market",
	}
	var res orderResult
	if err := c.do(ctx, http.MethodPost, pathPlaceOrder, nil, req, &res); err != nil {
		return broker.OrderRef{}, err
	}
	c.log.Info().
		Str("symbol", symbol).
		Str("side", req.Side).
		Str("size", req.Size).
		Str("order_id", res.OrderID).
		Msg("market close placed")
	return broker.OrderRef{ID: res.OrderID, Symbol: symbol, Placed: time.Now()}, nil
}

func (c *Client) cancelPlan(ctx context.Context, symbol, planID string) error {
	req := cancelPlanRequest{
		Symbol:     toMix(symbol),
		MarginCoin: marginCoin,
		OrderID:    planID,
		PlanType:   "normal_plan",
	}
	return c.do(ctx, http.MethodPost, pathCancelPlan, nil, req, nil)
}

// do pushes one call through the limiter and the breaker.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("bitget throttle: %w", err)
	}
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.request(ctx, method, path, query, payload, out)
	})
	return err
}

func (c *Client) request(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("bitget %s: encode: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bitget %s: %w", path, err)
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ACCESS-KEY", c.key)
	req.Header.Set("ACCESS-SIGN", c.sign(ts, method, requestPath, body))
	req.Header.Set("ACCESS-TIMESTAMP", ts)
	req.Header.Set("ACCESS-PASSPHRASE", c.passphrase)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("bitget %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("bitget %s: read response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bitget %s: status %d: %s", path, resp.StatusCode, snippet(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("bitget %s: decode: %w", path, err)
	}
	if env.Code != "" && env.Code != codeOK {
		return &APIError{Path: path, Code: env.Code, Msg: env.Msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("bitget %s: decode data: %w", path, err)
		}
	}
	return nil
}

// sign builds the v1 signature over timestamp + method + request path +
// body. The request path includes the query string; signing without it
// gets a signature error back on every GET that carries parameters.
func (c *Client) sign(ts, method, requestPath string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(method))
	mac.Write([]byte(requestPath))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type placeOrderRequest struct {
	Symbol     string `json:"symbol"`
	MarginCoin string `json:"marginCoin"`
	Size       string `json:"size"`
	Price      string `json:"price,omitempty"`
	Side       string `json:"side"`
	OrderType  string `json:"orderType"`
}

type placePlanRequest struct {
	Symbol       string `json:"symbol"`
	MarginCoin   string `json:"marginCoin"`
	Size         string `json:"size"`
	Side         string `json:"side"`
	OrderType    string `json:"orderType"`
	TriggerPrice string `json:"triggerPrice"`
	TriggerType  string `json:"triggerType"`
}

type cancelOrderRequest struct {
	Symbol     string `json:"symbol"`
	MarginCoin string `json:"marginCoin"`
	OrderID    string `json:"orderId"`
}

type cancelPlanRequest struct {
	Symbol     string `json:"symbol"`
	MarginCoin string `json:"marginCoin"`
	OrderID    string `json:"orderId"`
	PlanType   string `json:"planType"`
}

type setLeverageRequest struct {
	Symbol     string `json:"symbol"`
	MarginCoin string `json:"marginCoin"`
	Leverage   string `json:"leverage"`
}

type orderResult struct {
	OrderID   string `json:"orderId"`
	ClientOID string `json:"clientOid"`
}

type accountRow struct {
	MarginCoin string `json:"marginCoin"`
	Equity     string `json:"equity"`
	Available  string `json:"available"`
}

type positionRow struct {
	Symbol   string `json:"symbol"`
	HoldSide string `json:"holdSide"`
	Total    string `json:"total"`
}

type tickerRow struct {
	Symbol string `json:"symbol"`
	Last   string `json:"last"`
}

// The venue splits every order side into an open and a close family.
// Entries open, everything else closes; plain buy/sell is rejected on
// futures.

func openSide(side market.Side) string {
	if side == market.Short {
		return "open_short"
	}
	return "open_long"
}

func closeSide(side market.Side) string {
	if side == market.Short {
		return "close_short"
	}
	return "close_long"
}

func toMix(symbol string) string {
	if strings.HasSuffix(symbol, mixSuffix) {
		return symbol
	}
	return symbol + mixSuffix
}

// formatNum renders a quantity or price the way the venue wants it:
// plain decimal, shortest form that round-trips.
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseNum(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bitget: bad %s %q", field, s)
	}
	return v, nil
}

func parseMillis(raw json.RawMessage) (int64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad timestamp %q", s)
	}
	return ms, nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
