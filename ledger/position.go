// Package ledger is the in-memory book of positions the trading session is
// working. The position manager is its only writer; the ops server and
// reporting read point-in-time copies.
package ledger

import (
	"time"

	"tendbot/broker"
	"tendbot/market"
)

// State is a position's place in its lifecycle.
type State int

const (
	// Opening: the entry limit order is resting, waiting for a fill.
	Opening State = iota
	// Active: filled, protective stop placed at the candidate stop.
	Active
	// PartialTaken: partial profit taken, break-even stop not yet armed.
	PartialTaken
	// BreakEvenArmed: stop moved to the entry price.
	BreakEvenArmed
	// Closing: a close instruction is in flight.
	Closing
	// Closed: fully exited; the record stays in the ledger as an archive.
	Closed
	// Cancelled: entry never filled or could not be placed.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Opening:
		return "Opening"
	case Active:
		return "Active"
	case PartialTaken:
		return "PartialTaken"
	case BreakEvenArmed:
		return "BreakEvenArmed"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == Closed || s == Cancelled
}

// CloseReason records why a position reached Closed.
type CloseReason string

const (
	CloseTarget    CloseReason = "target"
	CloseStop      CloseReason = "stop"
	CloseTimeLimit CloseReason = "time_limit"
)

// Position is one working trade. It is a plain value: the ledger hands out
// copies, and callers persist changes by writing the whole record back.
type Position struct {
	ID        string
	Candidate market.Candidate

	SizeOpened    float64
	SizeRemaining float64
	// StopLoss is the live protective stop. It starts at the candidate stop
	// and only ever moves toward the entry price.
	StopLoss  float64
	EntryTime time.Time
	State     State

	// TimeWarned flips once when the holding-time warning fires. It is
	// independent of State.
	TimeWarned bool

	RealizedPnLPartial float64
	RealizedPnL        float64

	CloseReason CloseReason
	ClosedAt    time.Time

	EntryOrder broker.OrderRef
	StopOrder  broker.OrderRef

	// FailStreak counts consecutive exchange failures while evaluating
	// this position. Any success resets it.
	FailStreak int
}

// Age is the time the position has been held.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// UnrealizedPnL marks the remaining size to price.
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.Candidate.EntryPrice) * p.SizeRemaining * float64(p.Candidate.Side)
}
