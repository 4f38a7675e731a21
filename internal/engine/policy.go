package engine

import "strings"

// Minimum weekday hours kept for service-critical appliance types
const (
	FridgeMinHours   = 24.0
	AirconMinHours   = 2.0
	LightingMinHours = 1.0
)

var (
	fridgeKeywords   = []string{"refrigerator", "fridge"}
	airconKeywords   = []string{"air conditioner", "air-conditioner", "aircon", "air con"}
	lightingKeywords = []string{"light", "lamp", "led"}
)

// IsRefrigeration reports whether an appliance name denotes refrigeration.
// Refrigeration always runs around the clock.
func IsRefrigeration(name string) bool {
	return containsAny(name, fridgeKeywords)
}

// MinimumHours returns the type-specific floor for planned weekday hours
func MinimumHours(name string) float64 {
	switch {
	case IsRefrigeration(name):
		return FridgeMinHours
	case containsAny(name, airconKeywords):
		return AirconMinHours
	case containsAny(name, lightingKeywords):
		return LightingMinHours
	default:
		return 0
	}
}

// effectiveFloor never raises an appliance above what it already uses,
// except refrigeration which is always held at its floor.
func effectiveFloor(a Appliance) float64 {
	floor := MinimumHours(a.Name)
	if IsRefrigeration(a.Name) {
		return floor
	}
	return Round1(min(floor, a.DailyUsageHours))
}

// OffPeakPriority returns the share of an appliance's hours that should be
// pushed into off-peak. Heavier appliances are pushed harder.
func OffPeakPriority(watt float64) float64 {
	switch {
	case watt >= 1500:
		return 0.95
	case watt >= 1000:
		return 0.85
	case watt >= 500:
		return 0.75
	case watt >= 200:
		return 0.65
	default:
		return 0.5
	}
}

func containsAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
