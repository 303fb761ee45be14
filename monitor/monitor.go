// Package monitor runs the trading loop: one tick at a fixed interval,
// evaluating every open position against a fresh exchange snapshot.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tendbot/broker"
	"tendbot/internal/clock"
	"tendbot/internal/metrics"
	"tendbot/journal"
	"tendbot/ledger"
)

// Fetcher is the slice of the broker gateway the loop needs.
type Fetcher interface {
	FetchPositionsAndPrices(ctx context.Context) (broker.AccountSnapshot, map[string]float64, error)
}

// Evaluator advances one position by one tick. Satisfied by *manager.Manager.
type Evaluator interface {
	Evaluate(ctx context.Context, positionID string, prices map[string]float64, now time.Time) error
}

// Admitter opens new positions once the tick has dealt with the existing
// ones, so a slot freed by a close is usable straight away. Satisfied by
// *manager.Admission.
type Admitter interface {
	AdmitCandidates(ctx context.Context, acct broker.AccountSnapshot, now time.Time)
}

type Config struct {
	// Interval between ticks. Zero means 30 seconds.
	Interval time.Duration
	// RequestTimeout bounds the exchange fetch inside a tick. Zero means
	// 10 seconds.
	RequestTimeout time.Duration
	// Admit, when set, runs at the end of every successful tick.
	Admit Admitter
}

type Loop struct {
	cfg     Config
	fetch   Fetcher
	eval    Evaluator
	book    *ledger.Ledger
	journal journal.Journal
	metrics *metrics.Registry
	clock   clock.Clock
	log     zerolog.Logger
}

func New(cfg Config, f Fetcher, ev Evaluator, book *ledger.Ledger, jn journal.Journal, reg *metrics.Registry, clk clock.Clock, log zerolog.Logger) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if jn == nil {
		jn = journal.Nop{}
	}
	if reg == nil {
		reg = metrics.New()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Loop{
		cfg:     cfg,
		fetch:   f,
		eval:    ev,
		book:    book,
		journal: jn,
		metrics: reg,
		clock:   clk,
		log:     log.With().Str("component", "monitor").Logger(),
	}
}

// Run ticks until ctx is cancelled, then returns nil. Ticks never overlap:
// the next wait starts only after the previous tick has finished.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().Dur("interval", l.cfg.Interval).Msg("monitor started")
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("monitor stopped")
			return nil
		case <-l.clock.After(l.cfg.Interval):
		}
		l.Tick(ctx)
	}
}

// Tick runs one monitor pass. A failed exchange fetch skips the whole pass:
// no position is evaluated and nothing is written anywhere.
func (l *Loop) Tick(ctx context.Context) {
	start := time.Now()
	l.metrics.Ticks.Inc()

	fetchCtx, cancel := context.WithTimeout(ctx, l.cfg.RequestTimeout)
	acct, prices, err := l.fetch.FetchPositionsAndPrices(fetchCtx)
	cancel()
	if err != nil {
		l.metrics.TickFailures.Inc()
		l.log.Warn().Err(err).Msg("exchange fetch failed, skipping tick")
		return
	}

	now := l.clock.Now()
	open := l.book.AllOpen()

	l.metrics.Equity.Set(acct.Equity)
	l.metrics.OpenPositions.Set(float64(len(open)))

	if err := l.journal.RecordEquity(journal.EquitySnapshot{
		Time:            now,
		Equity:          acct.Equity,
		AvailableMargin: acct.AvailableMargin,
		OpenPositions:   len(open),
	}); err != nil {
		l.log.Warn().Err(err).Msg("equity journal write failed")
	}

	for _, p := range open {
		if err := l.eval.Evaluate(ctx, p.ID, prices, now); err != nil {
			// The manager has already counted the failure against the
			// position; the tick moves on to the next one.
			l.log.Warn().Err(err).Str("position_id", p.ID).Msg("evaluation failed")
		}
	}

	if l.cfg.Admit != nil {
		l.cfg.Admit.AdmitCandidates(ctx, acct, now)
	}

	l.metrics.TickDuration.Observe(time.Since(start).Seconds())
	l.log.Debug().
		Int("open_positions", len(open)).
		Float64("equity", acct.Equity).
		Msg("tick complete")
}
