package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tendbot/broker"
	"tendbot/internal/clock"
	"tendbot/journal"
	"tendbot/ledger"
	"tendbot/market"
)

type scriptedFetcher struct {
	mu     sync.Mutex
	acct   broker.AccountSnapshot
	prices map[string]float64
	err    error
	calls  int
}

func (f *scriptedFetcher) FetchPositionsAndPrices(context.Context) (broker.AccountSnapshot, map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return broker.AccountSnapshot{}, nil, f.err
	}
	out := make(map[string]float64, len(f.prices))
	for k, v := range f.prices {
		out[k] = v
	}
	return f.acct, out, nil
}

func (f *scriptedFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type evalCall struct {
	id  string
	now time.Time
}

type recordingEvaluator struct {
	mu     sync.Mutex
	calls  []evalCall
	errFor map[string]error
}

func (e *recordingEvaluator) Evaluate(_ context.Context, id string, _ map[string]float64, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, evalCall{id: id, now: now})
	if err, ok := e.errFor[id]; ok {
		return err
	}
	return nil
}

func (e *recordingEvaluator) ids() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	for i, c := range e.calls {
		out[i] = c.id
	}
	return out
}

type recordingJournal struct {
	mu   sync.Mutex
	rows []journal.EquitySnapshot
	err  error
}

func (j *recordingJournal) RecordPosition(journal.PositionRecord) error { return nil }

func (j *recordingJournal) RecordEquity(s journal.EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.rows = append(j.rows, s)
	return nil
}

func (j *recordingJournal) Close() error { return nil }

func (j *recordingJournal) all() []journal.EquitySnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.EquitySnapshot(nil), j.rows...)
}

type admitCall struct {
	acct broker.AccountSnapshot
	now  time.Time
}

type recordingAdmitter struct {
	mu    sync.Mutex
	calls []admitCall
}

func (a *recordingAdmitter) AdmitCandidates(_ context.Context, acct broker.AccountSnapshot, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, admitCall{acct: acct, now: now})
}

func (a *recordingAdmitter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func openPosition(id, symbol string, state ledger.State) ledger.Position {
	return ledger.Position{
		ID: id,
		Candidate: market.Candidate{
			Symbol:        symbol,
			Side:          market.Long,
			EntryPrice:    0.17,
			TargetPrice:   0.18,
			StopLossPrice: 0.16,
			BaseIncrement: 1,
			TickSize:      0.00001,
		},
		SizeOpened:    6000,
		SizeRemaining: 6000,
		StopLoss:      0.16,
		State:         state,
	}
}

func TestTickEvaluatesEachOpenPosition(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	book := ledger.New()
	require.NoError(t, book.Insert(openPosition("p1", "DOGEUSDT", ledger.Active)))
	require.NoError(t, book.Insert(openPosition("p2", "XRPUSDT", ledger.Opening)))
	require.NoError(t, book.Insert(openPosition("p3", "ADAUSDT", ledger.Closed)))

	fetch := &scriptedFetcher{
		acct:   broker.AccountSnapshot{Equity: 287.5, AvailableMargin: 120},
		prices: map[string]float64{"DOGEUSDT": 0.171, "XRPUSDT": 0.5},
	}
	ev := &recordingEvaluator{}
	jn := &recordingJournal{}
	loop := New(Config{}, fetch, ev, book, jn, nil, clock.NewManual(t0), zerolog.Nop())

	loop.Tick(context.Background())

	assert.Equal(t, 1, fetch.count())
	assert.Equal(t, []string{"p1", "p2"}, ev.ids(), "terminal positions are skipped, order preserved")
	for _, c := range ev.calls {
		assert.True(t, c.now.Equal(t0))
	}

	rows := jn.all()
	require.Len(t, rows, 1)
	assert.InDelta(t, 287.5, rows[0].Equity, 1e-12)
	assert.Equal(t, 2, rows[0].OpenPositions)
	assert.True(t, rows[0].Time.Equal(t0))
}

func TestTickFetchFailureSkipsEverything(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	book := ledger.New()
	require.NoError(t, book.Insert(openPosition("p1", "DOGEUSDT", ledger.Active)))

	fetch := &scriptedFetcher{err: errors.New("exchange down")}
	ev := &recordingEvaluator{}
	jn := &recordingJournal{}
	loop := New(Config{}, fetch, ev, book, jn, nil, clock.NewManual(t0), zerolog.Nop())

	loop.Tick(context.Background())

	assert.Empty(t, ev.ids(), "no position is touched on a failed fetch")
	assert.Empty(t, jn.all())

	got, err := book.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Active, got.State)
	assert.Equal(t, 0, got.FailStreak)
}

func TestTickJournalFailureStillEvaluates(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	book := ledger.New()
	require.NoError(t, book.Insert(openPosition("p1", "DOGEUSDT", ledger.Active)))

	fetch := &scriptedFetcher{prices: map[string]float64{"DOGEUSDT": 0.171}}
	ev := &recordingEvaluator{}
	loop := New(Config{}, fetch, ev, book, &recordingJournal{err: errors.New("disk full")}, nil, clock.NewManual(t0), zerolog.Nop())

	loop.Tick(context.Background())
	assert.Equal(t, []string{"p1"}, ev.ids(), "a journal hiccup must not stop trading")
}

func TestTickEvaluationErrorContinues(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	book := ledger.New()
	require.NoError(t, book.Insert(openPosition("p1", "DOGEUSDT", ledger.Active)))
	require.NoError(t, book.Insert(openPosition("p2", "XRPUSDT", ledger.Active)))

	fetch := &scriptedFetcher{prices: map[string]float64{"DOGEUSDT": 0.171, "XRPUSDT": 0.5}}
	ev := &recordingEvaluator{errFor: map[string]error{"p1": errors.New("rate limited")}}
	loop := New(Config{}, fetch, ev, book, nil, nil, clock.NewManual(t0), zerolog.Nop())

	loop.Tick(context.Background())
	assert.Equal(t, []string{"p1", "p2"}, ev.ids(), "one bad position does not block the rest")
}

func TestTickAdmitsAfterEvaluating(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	book := ledger.New()
	require.NoError(t, book.Insert(openPosition("p1", "DOGEUSDT", ledger.Active)))

	fetch := &scriptedFetcher{
		acct:   broker.AccountSnapshot{Equity: 300},
		prices: map[string]float64{"DOGEUSDT": 0.171},
	}
	ev := &recordingEvaluator{}
	adm := &recordingAdmitter{}
	loop := New(Config{Admit: adm}, fetch, ev, book, nil, nil, clock.NewManual(t0), zerolog.Nop())

	loop.Tick(context.Background())

	require.Equal(t, 1, adm.count())
	assert.InDelta(t, 300, adm.calls[0].acct.Equity, 1e-12)
	assert.True(t, adm.calls[0].now.Equal(t0))
	assert.Equal(t, []string{"p1"}, ev.ids(), "existing positions go first")
}

func TestTickFetchFailureSkipsAdmission(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fetch := &scriptedFetcher{err: errors.New("exchange down")}
	adm := &recordingAdmitter{}
	loop := New(Config{Admit: adm}, fetch, &recordingEvaluator{}, ledger.New(), nil, nil, clock.NewManual(t0), zerolog.Nop())

	loop.Tick(context.Background())

	assert.Equal(t, 0, adm.count())
}

func TestRunTicksOnIntervalAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(t0)
	fetch := &scriptedFetcher{prices: map[string]float64{}}
	loop := New(Config{Interval: 30 * time.Second}, fetch, &recordingEvaluator{}, ledger.New(), nil, nil, clk, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// First tick fires only once the interval elapses.
	require.Eventually(t, func() bool { return clk.Waiters() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, fetch.count())
	clk.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return fetch.count() == 1 }, time.Second, time.Millisecond)

	// The next wait starts only after the previous tick finished.
	require.Eventually(t, func() bool { return clk.Waiters() == 1 }, time.Second, time.Millisecond)
	clk.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return fetch.count() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
