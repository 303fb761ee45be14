package market

import (
	"fmt"
	"strings"
)

// Side is the direction of a trade: +1 long, -1 short.
type Side int8

const (
	Long  Side = 1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return fmt.Sprintf("Side(%d)", int8(s))
}

// ParseSide accepts "long"/"short" (case-insensitive), plus the
// "buy"/"sell" spellings exchanges tend to use.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

// Confidence ranks how strongly a setup is believed in. Higher sorts first.
type Confidence int

const (
	Low Confidence = iota
	Medium
	MediumHigh
	High
)

func (c Confidence) String() string {
	switch c {
	case High:
		return "High"
	case MediumHigh:
		return "Medium-High"
	case Medium:
		return "Medium"
	case Low:
		return "Low"
	}
	return fmt.Sprintf("Confidence(%d)", int(c))
}

func ParseConfidence(s string) (Confidence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return High, nil
	case "medium-high", "mediumhigh":
		return MediumHigh, nil
	case "medium":
		return Medium, nil
	case "low":
		return Low, nil
	}
	return 0, fmt.Errorf("unknown confidence %q", s)
}

// ValidationError is a candidate rejected at load time. Rejected candidates
// never reach the selector.
type ValidationError struct {
	Symbol string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("candidate %s: %s", e.Symbol, e.Reason)
}

// Candidate is one proposed trade setup. Candidates are immutable once
// loaded; a candidate yields at most one open position at a time.
type Candidate struct {
	Symbol        string
	Side          Side
	EntryPrice    float64
	TargetPrice   float64
	StopLossPrice float64
	Confidence    Confidence
	BaseIncrement float64
	TickSize      float64
}

func (c Candidate) Validate() error {
	if c.Symbol == "" {
		return &ValidationError{Symbol: "?", Reason: "symbol is required"}
	}
	if c.Side != Long && c.Side != Short {
		return c.invalid("side must be long or short")
	}
	if c.EntryPrice <= 0 || c.TargetPrice <= 0 || c.StopLossPrice <= 0 {
		return c.invalid("entry, target and stop_loss must be positive")
	}
	if c.BaseIncrement <= 0 {
		return c.invalid("base_increment must be positive")
	}
	if c.TickSize <= 0 {
		return c.invalid("tick_size must be positive")
	}
	if c.Side == Long {
		if !(c.StopLossPrice < c.EntryPrice && c.EntryPrice < c.TargetPrice) {
			return c.invalid("long requires stop_loss < entry < target")
		}
	} else {
		if !(c.TargetPrice < c.EntryPrice && c.EntryPrice < c.StopLossPrice) {
			return c.invalid("short requires target < entry < stop_loss")
		}
	}
	return nil
}

func (c Candidate) invalid(reason string) error {
	return &ValidationError{Symbol: c.Symbol, Reason: reason}
}

// Halfway is the partial take-profit trigger: the midpoint between entry
// and target, rounded to the symbol's tick size.
func (c Candidate) Halfway() float64 {
	mid := c.EntryPrice + (c.TargetPrice-c.EntryPrice)/2
	return RoundToTick(mid, c.TickSize)
}

// StopDistance is the absolute price distance between entry and stop.
func (c Candidate) StopDistance() float64 {
	d := c.EntryPrice - c.StopLossPrice
	if d < 0 {
		return -d
	}
	return d
}
