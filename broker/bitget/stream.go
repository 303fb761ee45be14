package bitget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const DefaultWSURL = "wss://ws.bitget.com/mix/v1/stream"

// The venue keeps the socket alive on a literal ping/pong text exchange
// and drops peers silent for more than two minutes.
const (
	streamPingEvery    = 30 * time.Second
	streamReadDeadline = 60 * time.Second
	streamMaxBackoff   = 30 * time.Second
)

// Stream holds a last-price cache fed by the public ticker channel.
// The REST poller stays the source of truth for the account; the stream
// just keeps the quotes it returns from going stale between polls.
type Stream struct {
	url     string
	symbols []string
	log     zerolog.Logger

	mu   sync.RWMutex
	last map[string]quote
}

type quote struct {
	price float64
	at    time.Time
}

func NewStream(wsURL string, symbols []string, log zerolog.Logger) *Stream {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &Stream{
		url:     wsURL,
		symbols: append([]string(nil), symbols...),
		log:     log.With().Str("component", "bitget_stream").Logger(),
		last:    make(map[string]quote),
	}
}

// Prices returns a copy of the cache regardless of age.
func (s *Stream) Prices() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.last))
	for sym, q := range s.last {
		out[sym] = q.price
	}
	return out
}

// Fresh returns only the quotes updated within maxAge.
func (s *Stream) Fresh(maxAge time.Duration) map[string]float64 {
	cutoff := time.Now().Add(-maxAge)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.last))
	for sym, q := range s.last {
		if q.at.After(cutoff) {
			out[sym] = q.price
		}
	}
	return out
}

// Run keeps a subscription alive until ctx ends, redialing with backoff
// after every drop. The cache survives reconnects.
func (s *Stream) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		start := time.Now()
		err := s.runConn(ctx)
		if ctx.Err() != nil {
			s.log.Info().Msg("ticker stream stopped")
			return nil
		}
		if time.Since(start) > time.Minute {
			backoff = time.Second
		}
		s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("ticker stream dropped")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < streamMaxBackoff {
			backoff *= 2
		}
	}
}

// runConn owns one connection from dial to first error.
func (s *Stream) runConn(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	if err := s.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.log.Info().Int("symbols", len(s.symbols)).Msg("ticker stream subscribed")

	// The keepalive goroutine is the only writer once the subscription
	// is out, and closing the conn is what unblocks ReadMessage.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.keepAlive(connCtx, conn)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(streamReadDeadline)); err != nil {
			return err
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handle(raw)
	}
}

func (s *Stream) subscribe(conn *websocket.Conn) error {
	args := make([]subscribeArg, 0, len(s.symbols))
	for _, sym := range s.symbols {
		args = append(args, subscribeArg{InstType: "mc", Channel: "ticker", InstID: sym})
	}
	if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	return conn.WriteJSON(subscribeRequest{Op: "subscribe", Args: args})
}

func (s *Stream) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(streamPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (s *Stream) handle(raw []byte) {
	if bytes.Equal(raw, []byte("pong")) {
		return
	}
	var msg pushMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.log.Debug().Err(err).Msg("unreadable stream frame")
		return
	}
	if msg.Event != "" || msg.Arg.Channel != "ticker" {
		return
	}
	now := time.Now()
	for _, tick := range msg.Data {
		symbol := tick.InstID
		if symbol == "" {
			symbol = msg.Arg.InstID
		}
		last, err := strconv.ParseFloat(tick.Last, 64)
		if err != nil || last <= 0 {
			continue
		}
		s.mu.Lock()
		s.last[symbol] = quote{price: last, at: now}
		s.mu.Unlock()
	}
}

type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type subscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

type pushMessage struct {
	Event  string `json:"event"`
	Action string `json:"action"`
	Arg    struct {
		InstType string `json:"instType"`
		Channel  string `json:"channel"`
		InstID   string `json:"instId"`
	} `json:"arg"`
	Data []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
	} `json:"data"`
}
