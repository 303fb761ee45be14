package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorToIncrement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		qty       float64
		increment float64
		want      float64
	}{
		{"whole contracts", 352.9, 1, 352},
		{"already aligned", 350, 1, 350},
		{"tenth increment", 0.3, 0.1, 0.3},
		{"floors partial step", 0.29, 0.1, 0.2},
		{"sub-increment rounds to zero", 0.09, 0.1, 0},
		{"zero qty", 0, 1, 0},
		{"negative qty", -5, 1, 0},
		{"satoshi-sized increment", 0.00012345, 0.00001, 0.00012},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, FloorToIncrement(tt.qty, tt.increment), 1e-12)
		})
	}
}

func TestRoundToTick(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		price float64
		tick  float64
		want  float64
	}{
		{"on tick", 0.175, 0.0001, 0.175},
		{"rounds up", 0.17565, 0.001, 0.176},
		{"rounds down", 0.17544, 0.001, 0.175},
		{"coarse tick", 101.3, 0.5, 101.5},
		{"zero tick passthrough", 0.175, 0, 0.175},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, RoundToTick(tt.price, tt.tick), 1e-12)
		})
	}
}

func TestIsIncrementMultiple(t *testing.T) {
	t.Parallel()

	assert.True(t, IsIncrementMultiple(0.3, 0.1))
	assert.True(t, IsIncrementMultiple(352, 1))
	assert.False(t, IsIncrementMultiple(0.25, 0.1))
	assert.False(t, IsIncrementMultiple(1, 0))

	// Floored output is always a multiple of its increment.
	for _, qty := range []float64{0.29, 352.9, 0.00012345, 7.77} {
		for _, inc := range []float64{0.1, 1, 0.00001, 0.25} {
			got := FloorToIncrement(qty, inc)
			if got > 0 {
				assert.True(t, IsIncrementMultiple(got, inc), "qty=%v inc=%v got=%v", qty, inc, got)
			}
		}
	}
}
