// Package alert delivers operator notifications for position lifecycle
// events. Delivery is fire-and-forget: a slow or broken alerter must never
// stall the trading tick.
package alert

import "github.com/rs/zerolog"

// Kind tags what happened.
type Kind string

const (
	KindOpened          Kind = "opened"
	KindCancelled       Kind = "cancelled"
	KindPartialTaken    Kind = "partial_taken"
	KindBreakEvenArmed  Kind = "break_even_armed"
	KindTimeWarning     Kind = "time_warning"
	KindClosedTarget    Kind = "closed_target"
	KindClosedStop      Kind = "closed_stop"
	KindClosedTime      Kind = "closed_time"
	KindExchangeTrouble Kind = "exchange_trouble"
	KindInvariant       Kind = "invariant_violation"
)

// Event is one notification.
type Event struct {
	PositionID string
	Symbol     string
	Kind       Kind
	Detail     string
}

// Alerter receives events. Implementations must return promptly.
type Alerter interface {
	Notify(Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(Event) {}

// Log writes events to a zerolog logger, mapping severities by kind.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log.With().Str("component", "alert").Logger()}
}

func (a *Log) Notify(e Event) {
	var ev *zerolog.Event
	switch e.Kind {
	case KindInvariant:
		ev = a.log.Error()
	case KindTimeWarning, KindExchangeTrouble, KindCancelled:
		ev = a.log.Warn()
	default:
		ev = a.log.Info()
	}
	ev.Str("position_id", e.PositionID).
		Str("symbol", e.Symbol).
		Str("kind", string(e.Kind)).
		Msg(e.Detail)
}
