package pricing_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_rates/internal/domain"
	"hotel_rates/internal/pricing"
)

var rules = []domain.RoomDifferentialRule{
	{RoomTypeID: "suite", Operator: domain.DiffPlus, Value: 20},
	{RoomTypeID: "single", Operator: domain.DiffMinus, Value: 15},
	{RoomTypeID: "broken", Operator: domain.DiffPlus, Value: math.NaN()},
	{RoomTypeID: "odd", Operator: "*", Value: 50},
}

func TestComputeDifferential_NoRulesIsIdentity(t *testing.T) {
	got, ok := pricing.ComputeDifferential(123.45, "suite", nil)
	require.True(t, ok)
	assert.Equal(t, 123.45, got)
}

func TestComputeDifferential_InvalidBase(t *testing.T) {
	for _, base := range []float64{0, -1, math.NaN()} {
		_, ok := pricing.ComputeDifferential(base, "suite", rules)
		assert.False(t, ok, "base %v", base)
	}
}

func TestComputeDifferential_AppliesRule(t *testing.T) {
	got, ok := pricing.ComputeDifferential(100, "suite", rules)
	require.True(t, ok)
	assert.Equal(t, 120.0, got)

	got, ok = pricing.ComputeDifferential(99.45, "single", rules)
	require.True(t, ok)
	assert.Equal(t, 84.53, got)
}

func TestComputeDifferential_UnusableRuleReturnsBase(t *testing.T) {
	for _, room := range []string{"broken", "odd", "unknown"} {
		got, ok := pricing.ComputeDifferential(100, room, rules)
		require.True(t, ok, room)
		assert.Equal(t, 100.0, got, room)
	}
}
