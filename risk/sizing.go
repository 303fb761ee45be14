package risk

import (
	"errors"

	"tendbot/market"
)

// ErrInsufficientRisk means the sized quantity floored to zero increments:
// the risk budget cannot buy even one increment at this stop distance.
var ErrInsufficientRisk = errors.New("insufficient risk budget for candidate")

// Size is the outcome of sizing one candidate.
type Size struct {
	Quantity     float64 // contracts, a whole multiple of the candidate's base increment
	RiskUSD      float64 // dollars at risk if the stop is hit at 1x
	StopDistance float64 // |entry - stop|
}

// ComputeSize converts equity and risk parameters into a position size.
//
// The per-trade risk is the configured dollar risk, capped by an equal
// split of the account risk ceiling across the maximum position count.
// Quantity is floored to the candidate's base increment; a zero result is
// ErrInsufficientRisk, not a zero-sized order.
func ComputeSize(equity float64, p Params, c market.Candidate) (Size, error) {
	riskUSD := p.RiskPerTradeUSD
	if capUSD := equity * p.MaxAccountRiskPct / float64(p.MaxPositions); capUSD < riskUSD {
		riskUSD = capUSD
	}

	dist := c.StopDistance()
	if riskUSD <= 0 || dist <= 0 {
		return Size{}, ErrInsufficientRisk
	}

	qty := market.FloorToIncrement(riskUSD*p.Leverage/dist, c.BaseIncrement)
	if qty <= 0 {
		return Size{}, ErrInsufficientRisk
	}

	return Size{Quantity: qty, RiskUSD: riskUSD, StopDistance: dist}, nil
}

// WithinCeiling reports whether one more trade's risk fits under the
// account-wide ceiling. Pure; the selector calls it per admission.
func WithinCeiling(equity, committedUSD float64, p Params) bool {
	return committedUSD+p.RiskPerTradeUSD <= equity*p.MaxAccountRiskPct
}
