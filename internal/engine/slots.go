package engine

import (
	"fmt"
	"math"
	"strings"
)

// Off-peak runs are suggested from the end of the peak window, peak runs
// from its start.
const (
	offPeakSlotStart = peakEndMinute
	peakSlotStart    = peakStartMinute
)

// SuggestSlots renders planned daily hours as human-readable time slots,
// e.g. "14:00-15:30, 22:00-02:00".
func SuggestSlots(peakHours, offPeakHours float64) string {
	if peakHours+offPeakHours >= 24-epsilon {
		return "All day"
	}

	var slots []string
	if peakHours > 0 {
		slots = append(slots, formatSlot(peakSlotStart, peakHours))
	}
	if offPeakHours > 0 {
		slots = append(slots, formatSlot(offPeakSlotStart, offPeakHours))
	}
	if len(slots) == 0 {
		return "Not in use"
	}
	return strings.Join(slots, ", ")
}

func formatSlot(startMinute int, hours float64) string {
	end := startMinute + int(math.Round(hours*60))
	return fmt.Sprintf("%s-%s", clock(startMinute), clock(end))
}

func clock(minute int) string {
	minute = ((minute % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
