// journal/journal.go
package journal

import "time"

// PositionRecord is the archived form of a finished position. Flat
// strings/floats so every backend can store it without conversion.
type PositionRecord struct {
	PositionID  string
	Symbol      string
	Side        string
	Confidence  string
	SizeOpened  float64
	EntryPrice  float64
	TargetPrice float64
	StopPrice   float64
	FinalStop   float64
	OpenTime    time.Time
	CloseTime   time.Time
	PartialPnL  float64
	RealizedPnL float64
	Reason      string
}

// EquitySnapshot is one per-tick account reading.
type EquitySnapshot struct {
	Time            time.Time
	Equity          float64
	AvailableMargin float64
	OpenPositions   int
}

type Journal interface {
	RecordPosition(PositionRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything. Used when journaling is switched off.
type Nop struct{}

func (Nop) RecordPosition(PositionRecord) error { return nil }
func (Nop) RecordEquity(EquitySnapshot) error   { return nil }
func (Nop) Close() error                        { return nil }
