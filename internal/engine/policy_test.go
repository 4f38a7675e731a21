package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimumHours(t *testing.T) {
	tests := []struct {
		name string
		want float64
	}{
		{"Refrigerator", FridgeMinHours},
		{"Mini Fridge", FridgeMinHours},
		{"Air Conditioner", AirconMinHours},
		{"Window Aircon", AirconMinHours},
		{"LED Lights", LightingMinHours},
		{"Desk Lamp", LightingMinHours},
		{"Television", 0},
		{"Washing Machine", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinimumHours(tt.name))
		})
	}
}

func TestEffectiveFloor(t *testing.T) {
	fridge := newAppliance("f", "Refrigerator", 1, 150, "08:00", "10:00")
	assert.Equal(t, 24.0, effectiveFloor(fridge))

	ac := newAppliance("a", "Air Conditioner", 1, 1500, "20:00", "21:00")
	assert.Equal(t, 1.0, effectiveFloor(ac), "floor never exceeds current usage")

	tv := newAppliance("t", "Television", 1, 100, "20:00", "23:00")
	assert.Equal(t, 0.0, effectiveFloor(tv))
}

func TestOffPeakPriority(t *testing.T) {
	tests := []struct {
		watt float64
		want float64
	}{
		{2000, 0.95},
		{1500, 0.95},
		{1200, 0.85},
		{600, 0.75},
		{250, 0.65},
		{199, 0.5},
		{10, 0.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OffPeakPriority(tt.watt), "watt %.0f", tt.watt)
	}
}

func TestSuggestSlots(t *testing.T) {
	assert.Equal(t, "14:00-15:30, 22:00-02:00", SuggestSlots(1.5, 4))
	assert.Equal(t, "22:00-23:00", SuggestSlots(0, 1))
	assert.Equal(t, "14:00-14:45", SuggestSlots(0.75, 0))
	assert.Equal(t, "All day", SuggestSlots(8, 16))
	assert.Equal(t, "Not in use", SuggestSlots(0, 0))
}
