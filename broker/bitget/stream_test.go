package bitget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestStreamHandleUpdatesCache(t *testing.T) {
	t.Parallel()
	s := NewStream("", nil, zerolog.Nop())

	s.handle([]byte(`{"action":"snapshot","arg":{"instType":"mc","channel":"ticker","instId":"DOGEUSDT"},"data":[{"instId":"DOGEUSDT","last":"0.172"}]}`))

	require.Equal(t, map[string]float64{"DOGEUSDT": 0.172}, s.Prices())
	require.Equal(t, map[string]float64{"DOGEUSDT": 0.172}, s.Fresh(time.Minute))
	require.Empty(t, s.Fresh(-time.Second), "age filter must expire quotes")
}

func TestStreamHandleIgnoresNoise(t *testing.T) {
	t.Parallel()
	s := NewStream("", nil, zerolog.Nop())

	frames := [][]byte{
		[]byte("pong"),
		[]byte(`{"event":"subscribe","arg":{"instType":"mc","channel":"ticker","instId":"DOGEUSDT"}}`),
		[]byte(`{"event":"error","code":30003,"msg":"unknown instId"}`),
		[]byte(`not json`),
		[]byte(`{"action":"snapshot","arg":{"channel":"candle1m","instId":"DOGEUSDT"},"data":[{"last":"0.2"}]}`),
		[]byte(`{"action":"snapshot","arg":{"channel":"ticker","instId":"DOGEUSDT"},"data":[{"instId":"DOGEUSDT","last":"0"}]}`),
		[]byte(`{"action":"snapshot","arg":{"channel":"ticker","instId":"DOGEUSDT"},"data":[{"instId":"DOGEUSDT","last":"nope"}]}`),
	}
	for _, f := range frames {
		s.handle(f)
	}

	require.Empty(t, s.Prices())
}

func TestStreamHandleFallsBackToArgInstID(t *testing.T) {
	t.Parallel()
	s := NewStream("", nil, zerolog.Nop())

	s.handle([]byte(`{"action":"update","arg":{"channel":"ticker","instId":"XRPUSDT"},"data":[{"last":"0.51"}]}`))

	require.Equal(t, 0.51, s.Prices()["XRPUSDT"])
}

func TestStreamRunReceivesPushesAndStopsOnCancel(t *testing.T) {
	t.Parallel()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub subscribeRequest
		if json.Unmarshal(raw, &sub) != nil || sub.Op != "subscribe" || len(sub.Args) != 1 {
			return
		}
		if sub.Args[0].InstID != "DOGEUSDT" || sub.Args[0].Channel != "ticker" {
			return
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"subscribe","arg":{"instType":"mc","channel":"ticker","instId":"DOGEUSDT"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"snapshot","arg":{"instType":"mc","channel":"ticker","instId":"DOGEUSDT"},"data":[{"instId":"DOGEUSDT","last":"0.175"}]}`))

		// Hold the connection until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewStream(wsURL, []string{"DOGEUSDT"}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.Prices()["DOGEUSDT"] == 0.175
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop on cancel")
	}
}

func TestFetchOverlaysFreshStreamQuotes(t *testing.T) {
	t.Parallel()
	v := newVenue(t)
	v.reply(pathAccounts, `[{"marginCoin":"USDT","equity":"300","available":"300"}]`)
	v.reply(pathAllPosition, `[]`)
	v.reply(pathTickers, `[
		{"symbol":"DOGEUSDT_UMCBL","last":"0.171"},
		{"symbol":"XRPUSDT_UMCBL","last":"0.5"}
	]`)
	c := testClient(t, v, "DOGEUSDT", "XRPUSDT")

	s := NewStream("", nil, zerolog.Nop())
	s.handle([]byte(`{"action":"snapshot","arg":{"channel":"ticker","instId":"DOGEUSDT"},"data":[{"instId":"DOGEUSDT","last":"0.18"}]}`))
	s.handle([]byte(`{"action":"snapshot","arg":{"channel":"ticker","instId":"BTCUSDT"},"data":[{"instId":"BTCUSDT","last":"60000"}]}`))
	c.UseStream(s)

	_, prices, err := c.FetchPositionsAndPrices(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0.18, prices["DOGEUSDT"], "live quote beats the poll")
	require.Equal(t, 0.5, prices["XRPUSDT"], "symbols without stream quotes keep the poll price")
	require.NotContains(t, prices, "BTCUSDT", "untracked symbols stay out")
}
