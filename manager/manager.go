// Package manager drives positions through their lifecycle: Opening on an
// entry order, Active once filled and stopped, a partial profit take at
// halfway to target, break-even protection after it, and a forced close when
// the holding-time limit runs out.
//
// The manager is the only writer of the position ledger. Evaluate works on a
// copy of the record and writes the whole record back at each committed
// transition, so a failed exchange call leaves the position as it was,
// apart from its failure streak.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tendbot/alert"
	"tendbot/broker"
	"tendbot/internal/id"
	"tendbot/journal"
	"tendbot/ledger"
	"tendbot/market"
	"tendbot/risk"
)

// Settings carries the manager's knobs.
type Settings struct {
	Risk risk.Params

	// EntryTimeout cancels an entry order that has not filled. Zero means
	// the one-hour default.
	EntryTimeout time.Duration

	// EscalateAfter is how many consecutive exchange failures on one
	// position raise an alert. Zero means the default of 3.
	EscalateAfter int
}

type Manager struct {
	ledger  *ledger.Ledger
	gateway broker.Gateway
	alerter alert.Alerter
	journal journal.Journal

	params        risk.Params
	entryTimeout  time.Duration
	escalateAfter int

	log zerolog.Logger
}

func New(s Settings, book *ledger.Ledger, gw broker.Gateway, al alert.Alerter, jn journal.Journal, log zerolog.Logger) *Manager {
	if s.EntryTimeout <= 0 {
		s.EntryTimeout = time.Hour
	}
	if s.EscalateAfter <= 0 {
		s.EscalateAfter = 3
	}
	if al == nil {
		al = alert.Nop{}
	}
	if jn == nil {
		jn = journal.Nop{}
	}
	return &Manager{
		ledger:        book,
		gateway:       gw,
		alerter:       al,
		journal:       jn,
		params:        s.Risk,
		entryTimeout:  s.EntryTimeout,
		escalateAfter: s.EscalateAfter,
		log:           log.With().Str("component", "manager").Logger(),
	}
}

// Open sizes a candidate and places its entry order. The position starts in
// Opening and is advanced by Evaluate on subsequent ticks. A placement
// failure cancels the position outright; the symbol has to come back as a
// fresh candidate to be tried again.
func (m *Manager) Open(ctx context.Context, c market.Candidate, equity float64, now time.Time) (ledger.Position, error) {
	size, err := risk.ComputeSize(equity, m.params, c)
	if err != nil {
		if errors.Is(err, risk.ErrInsufficientRisk) {
			m.log.Info().
				Str("symbol", c.Symbol).
				Float64("equity", equity).
				Msg("candidate skipped, sized to zero")
		}
		return ledger.Position{}, err
	}

	p := ledger.Position{
		ID:            id.New(),
		Candidate:     c,
		SizeOpened:    size.Quantity,
		SizeRemaining: size.Quantity,
		StopLoss:      c.StopLossPrice,
		EntryTime:     now,
		State:         ledger.Opening,
	}
	if err := m.ledger.Insert(p); err != nil {
		return ledger.Position{}, fmt.Errorf("insert position: %w", err)
	}

	ref, err := m.gateway.PlaceEntryOrder(ctx, c.Symbol, c.Side, size.Quantity, c.EntryPrice)
	if err != nil {
		p.State = ledger.Cancelled
		p.ClosedAt = now
		_ = m.ledger.Update(p)
		_ = m.ledger.Remove(p.ID)
		m.alerter.Notify(alert.Event{
			PositionID: p.ID,
			Symbol:     c.Symbol,
			Kind:       alert.KindCancelled,
			Detail:     "entry order rejected: " + err.Error(),
		})
		m.log.Warn().Err(err).Str("symbol", c.Symbol).Msg("entry order rejected")
		return ledger.Position{}, fmt.Errorf("place entry order for %s: %w", c.Symbol, err)
	}

	p.EntryOrder = ref
	if err := m.ledger.Update(p); err != nil {
		return ledger.Position{}, err
	}

	m.alerter.Notify(alert.Event{
		PositionID: p.ID,
		Symbol:     c.Symbol,
		Kind:       alert.KindOpened,
		Detail:     fmt.Sprintf("%s %s %.4f @ %.5f", c.Symbol, c.Side, size.Quantity, c.EntryPrice),
	})
	m.log.Info().
		Str("position_id", p.ID).
		Str("symbol", c.Symbol).
		Str("side", c.Side.String()).
		Float64("qty", size.Quantity).
		Float64("entry", c.EntryPrice).
		Float64("risk_usd", size.RiskUSD).
		Msg("entry order placed")
	return p, nil
}

// Evaluate advances one position by one tick. Transitions are checked in a
// fixed order: entry fill, stop touch, target touch, partial take-profit,
// pending break-even arming, time warning, time limit. A gateway error
// is returned wrapped and leaves everything except the failure streak
// unchanged; the same work is retried next tick.
func (m *Manager) Evaluate(ctx context.Context, positionID string, prices map[string]float64, now time.Time) error {
	p, err := m.ledger.Get(positionID)
	if err != nil {
		return err
	}
	// Terminal records are archives. Evaluating one twice emits nothing.
	if p.State.Terminal() {
		return nil
	}

	price, ok := prices[p.Candidate.Symbol]
	if !ok || price <= 0 {
		return m.noteFailure(&p, fmt.Errorf("no price for %s this tick", p.Candidate.Symbol))
	}

	log := m.log.With().
		Str("position_id", p.ID).
		Str("symbol", p.Candidate.Symbol).
		Str("state", p.State.String()).
		Logger()

	if p.State == ledger.Opening {
		return m.evalOpening(ctx, p, price, now, log)
	}
	return m.evalLive(ctx, p, price, now, log)
}

func (m *Manager) evalOpening(ctx context.Context, p ledger.Position, price float64, now time.Time, log zerolog.Logger) error {
	if entryFilled(p, price) {
		// The protective stop must be working before the position counts
		// as live.
		ref, err := m.gateway.PlaceStopOrder(ctx, p.Candidate.Symbol, p.Candidate.Side, p.SizeRemaining, p.StopLoss)
		if err != nil {
			return m.noteFailure(&p, fmt.Errorf("place initial stop: %w", err))
		}
		p.StopOrder = ref
		p.State = ledger.Active
		// The holding clock starts at the fill, not at order placement.
		p.EntryTime = now
		p.FailStreak = 0
		if err := m.ledger.Update(p); err != nil {
			return err
		}
		log.Info().Float64("price", price).Float64("stop", p.StopLoss).Msg("entry filled")
		return nil
	}

	if now.Sub(p.EntryTime) >= m.entryTimeout {
		if err := m.gateway.CancelOrder(ctx, p.Candidate.Symbol, p.EntryOrder.ID); err != nil {
			return m.noteFailure(&p, fmt.Errorf("cancel stale entry: %w", err))
		}
		p.State = ledger.Cancelled
		p.ClosedAt = now
		if err := m.ledger.Update(p); err != nil {
			return err
		}
		m.alerter.Notify(alert.Event{
			PositionID: p.ID,
			Symbol:     p.Candidate.Symbol,
			Kind:       alert.KindCancelled,
			Detail:     fmt.Sprintf("entry unfilled after %s", m.entryTimeout),
		})
		log.Warn().Msg("entry unfilled past timeout, cancelled")
		return m.ledger.Remove(p.ID)
	}
	return nil
}

func (m *Manager) evalLive(ctx context.Context, p ledger.Position, price float64, now time.Time, log zerolog.Logger) error {
	// A touched stop means the standing stop order filled on the exchange;
	// there is nothing to instruct, only bookkeeping.
	if stopTouched(p, price) {
		return m.settleStopFill(p, now, log)
	}
	if targetTouched(p, price) {
		return m.closeAtMarket(ctx, p, price, now, ledger.CloseTarget, log)
	}
	if p.State == ledger.Active && halfwayTouched(p, price) {
		return m.takePartial(ctx, p, price, now, log)
	}
	if p.State == ledger.PartialTaken {
		// Arming break-even is the only business this tick.
		return m.armBreakEven(ctx, &p, log)
	}

	dirty := p.FailStreak != 0
	p.FailStreak = 0

	limit := time.Duration(m.params.TimeLimitHours * float64(time.Hour))
	warnAt := time.Duration(m.params.TimeLimitHours * m.params.TimeWarnThreshold * float64(time.Hour))

	if !p.TimeWarned && p.Age(now) >= warnAt {
		p.TimeWarned = true
		dirty = true
		m.alerter.Notify(alert.Event{
			PositionID: p.ID,
			Symbol:     p.Candidate.Symbol,
			Kind:       alert.KindTimeWarning,
			Detail:     fmt.Sprintf("held %.1fh of %.1fh", p.Age(now).Hours(), m.params.TimeLimitHours),
		})
		log.Warn().Float64("held_hours", p.Age(now).Hours()).Msg("holding time warning")
	}
	if dirty {
		if err := m.ledger.Update(p); err != nil {
			return err
		}
	}

	if p.Age(now) >= limit {
		return m.closeAtMarket(ctx, p, price, now, ledger.CloseTimeLimit, log)
	}
	return nil
}

func (m *Manager) takePartial(ctx context.Context, p ledger.Position, price float64, now time.Time, log zerolog.Logger) error {
	reduceQty := market.FloorToIncrement(p.SizeRemaining*m.params.PartialTPFraction, p.Candidate.BaseIncrement)
	if reduceQty > p.SizeRemaining {
		return m.invariant(p, fmt.Sprintf("partial reduce %.8f exceeds remaining %.8f", reduceQty, p.SizeRemaining))
	}
	if reduceQty > 0 {
		if _, err := m.gateway.PlaceReduceOrder(ctx, p.Candidate.Symbol, p.Candidate.Side, reduceQty); err != nil {
			return m.noteFailure(&p, fmt.Errorf("partial reduce: %w", err))
		}
		pnl := (price - p.Candidate.EntryPrice) * reduceQty * float64(p.Candidate.Side)
		p.SizeRemaining -= reduceQty
		p.RealizedPnLPartial += pnl
		p.RealizedPnL += pnl
		p.FailStreak = 0
	}
	// A reduce that floors to nothing is skipped, but break-even still arms.
	p.State = ledger.PartialTaken
	if err := m.ledger.Update(p); err != nil {
		return err
	}
	m.alerter.Notify(alert.Event{
		PositionID: p.ID,
		Symbol:     p.Candidate.Symbol,
		Kind:       alert.KindPartialTaken,
		Detail:     fmt.Sprintf("took %.4f @ %.5f", reduceQty, price),
	})
	log.Info().
		Float64("qty", reduceQty).
		Float64("price", price).
		Float64("remaining", p.SizeRemaining).
		Msg("partial profit taken")

	return m.armBreakEven(ctx, &p, log)
}

func (m *Manager) armBreakEven(ctx context.Context, p *ledger.Position, log zerolog.Logger) error {
	entry := p.Candidate.EntryPrice
	if err := m.checkStopMove(*p, entry); err != nil {
		return err
	}
	ref, err := m.gateway.PlaceStopOrder(ctx, p.Candidate.Symbol, p.Candidate.Side, p.SizeRemaining, entry)
	if err != nil {
		// Still PartialTaken; arming is retried next tick.
		return m.noteFailure(p, fmt.Errorf("arm break-even stop: %w", err))
	}
	// The stored stop and the state move together or not at all.
	p.StopOrder = ref
	p.StopLoss = entry
	p.State = ledger.BreakEvenArmed
	p.FailStreak = 0
	if err := m.ledger.Update(*p); err != nil {
		return err
	}
	m.alerter.Notify(alert.Event{
		PositionID: p.ID,
		Symbol:     p.Candidate.Symbol,
		Kind:       alert.KindBreakEvenArmed,
		Detail:     fmt.Sprintf("stop moved to entry %.5f", entry),
	})
	log.Info().Float64("stop", entry).Msg("break-even armed")
	return nil
}

func (m *Manager) settleStopFill(p ledger.Position, now time.Time, log zerolog.Logger) error {
	pnl := (p.StopLoss - p.Candidate.EntryPrice) * p.SizeRemaining * float64(p.Candidate.Side)
	p.RealizedPnL += pnl
	p.SizeRemaining = 0
	p.CloseReason = ledger.CloseStop
	p.ClosedAt = now
	p.State = ledger.Closed
	p.FailStreak = 0
	if err := m.ledger.Update(p); err != nil {
		return err
	}
	m.finishClose(p, log)
	return nil
}

func (m *Manager) closeAtMarket(ctx context.Context, p ledger.Position, price float64, now time.Time, reason ledger.CloseReason, log zerolog.Logger) error {
	if _, err := m.gateway.CloseMarket(ctx, p.Candidate.Symbol, p.Candidate.Side, p.SizeRemaining); err != nil {
		return m.noteFailure(&p, fmt.Errorf("close %s at market: %w", p.Candidate.Symbol, err))
	}
	pnl := (price - p.Candidate.EntryPrice) * p.SizeRemaining * float64(p.Candidate.Side)
	p.RealizedPnL += pnl
	p.SizeRemaining = 0
	p.CloseReason = reason
	p.ClosedAt = now
	p.State = ledger.Closed
	p.FailStreak = 0
	if err := m.ledger.Update(p); err != nil {
		return err
	}
	m.finishClose(p, log)
	return nil
}

func (m *Manager) finishClose(p ledger.Position, log zerolog.Logger) {
	kind := alert.KindClosedTarget
	switch p.CloseReason {
	case ledger.CloseStop:
		kind = alert.KindClosedStop
	case ledger.CloseTimeLimit:
		kind = alert.KindClosedTime
	}
	m.alerter.Notify(alert.Event{
		PositionID: p.ID,
		Symbol:     p.Candidate.Symbol,
		Kind:       kind,
		Detail:     fmt.Sprintf("pnl %.2f (%s)", p.RealizedPnL, p.CloseReason),
	})
	if err := m.journal.RecordPosition(archiveRecord(p)); err != nil {
		log.Warn().Err(err).Msg("archive write failed")
	}
	log.Info().
		Str("reason", string(p.CloseReason)).
		Float64("pnl", p.RealizedPnL).
		Msg("position closed")
}

// checkStopMove enforces that a stop only tightens: long stops never move
// down, short stops never move up.
func (m *Manager) checkStopMove(p ledger.Position, newStop float64) error {
	wrongWay := newStop < p.StopLoss
	if p.Candidate.Side == market.Short {
		wrongWay = newStop > p.StopLoss
	}
	if !wrongWay {
		return nil
	}
	return m.invariant(p, fmt.Sprintf("stop move %.5f -> %.5f loosens the stop", p.StopLoss, newStop))
}

func (m *Manager) invariant(p ledger.Position, detail string) error {
	err := &StateInvariantError{PositionID: p.ID, State: p.State, Detail: detail}
	m.alerter.Notify(alert.Event{
		PositionID: p.ID,
		Symbol:     p.Candidate.Symbol,
		Kind:       alert.KindInvariant,
		Detail:     detail,
	})
	m.log.Error().
		Str("position_id", p.ID).
		Str("state", p.State.String()).
		Msg(err.Error())
	return err
}

// noteFailure counts an exchange failure against the position and
// escalates once when the streak reaches the threshold. Nothing else about
// the position changes.
func (m *Manager) noteFailure(p *ledger.Position, cause error) error {
	p.FailStreak++
	if p.FailStreak == m.escalateAfter {
		m.alerter.Notify(alert.Event{
			PositionID: p.ID,
			Symbol:     p.Candidate.Symbol,
			Kind:       alert.KindExchangeTrouble,
			Detail:     fmt.Sprintf("%d consecutive failures: %v", p.FailStreak, cause),
		})
	}
	if err := m.ledger.Update(*p); err != nil {
		return err
	}
	m.log.Warn().
		Err(cause).
		Str("position_id", p.ID).
		Str("symbol", p.Candidate.Symbol).
		Int("fail_streak", p.FailStreak).
		Msg("position evaluation failed")
	return cause
}

func archiveRecord(p ledger.Position) journal.PositionRecord {
	return journal.PositionRecord{
		PositionID:  p.ID,
		Symbol:      p.Candidate.Symbol,
		Side:        p.Candidate.Side.String(),
		Confidence:  p.Candidate.Confidence.String(),
		SizeOpened:  p.SizeOpened,
		EntryPrice:  p.Candidate.EntryPrice,
		TargetPrice: p.Candidate.TargetPrice,
		StopPrice:   p.Candidate.StopLossPrice,
		FinalStop:   p.StopLoss,
		OpenTime:    p.EntryTime,
		CloseTime:   p.ClosedAt,
		PartialPnL:  p.RealizedPnLPartial,
		RealizedPnL: p.RealizedPnL,
		Reason:      string(p.CloseReason),
	}
}
