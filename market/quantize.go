package market

import (
	"math"

	"github.com/shopspring/decimal"
)

// FloorToIncrement truncates qty down to a whole number of increments.
//
// The step count is computed in float with a relative epsilon so dust from
// upstream arithmetic (6*10/(0.17-0.16) is 5999.999999999995) still lands
// on the step it means; the final multiply goes through decimal so the
// returned quantity is exact for 0.1-style increments.
func FloorToIncrement(qty, increment float64) float64 {
	if qty <= 0 || increment <= 0 {
		return 0
	}
	steps := qty / increment
	steps = math.Floor(steps + steps*1e-9 + 1e-9)
	if steps <= 0 {
		return 0
	}
	out, _ := decimal.NewFromFloat(steps).Mul(decimal.NewFromFloat(increment)).Float64()
	return out
}

// RoundToTick rounds price to the nearest tick.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	out, _ := p.Div(t).Round(0).Mul(t).Float64()
	return out
}

// IsIncrementMultiple reports whether qty is a whole number of increments.
func IsIncrementMultiple(qty, increment float64) bool {
	if increment <= 0 {
		return false
	}
	q := decimal.NewFromFloat(qty)
	inc := decimal.NewFromFloat(increment)
	return q.Mod(inc).IsZero()
}
