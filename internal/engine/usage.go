package engine

import (
	"math"
	"time"
)

const (
	peakStartMinute = 14 * 60
	peakEndMinute   = 22 * 60
	minutesPerDay   = 24 * 60

	// MaxPeakHours is the length of the daily peak window
	MaxPeakHours = float64(peakEndMinute-peakStartMinute) / 60
	// MaxOffPeakHours is the off-peak remainder of a day
	MaxOffPeakHours = 24 - MaxPeakHours
)

// Breakdown converts a daily HH:MM usage window into peak and off-peak hours.
// Windows whose end is before their start run past midnight. A missing or
// unparseable bound yields an all-zero breakdown.
func Breakdown(start, end string) UsageBreakdown {
	if start == "" || end == "" {
		return UsageBreakdown{}
	}

	// Always-on shortcut: the whole day is reported as 14 peak / 10 off-peak
	if start == "00:00" && end == "23:59" {
		return UsageBreakdown{DailyUsage: 24, PeakUsage: 14, OffPeakUsage: 10}
	}

	startMin, err := minuteOfDay(start)
	if err != nil {
		return UsageBreakdown{}
	}
	endMin, err := minuteOfDay(end)
	if err != nil {
		return UsageBreakdown{}
	}

	if endMin < startMin {
		endMin += minutesPerDay
	}

	total := endMin - startMin
	peak := overlap(startMin, endMin, peakStartMinute, peakEndMinute)
	if endMin > minutesPerDay {
		peak += overlap(startMin, endMin, peakStartMinute+minutesPerDay, peakEndMinute+minutesPerDay)
	}

	daily := Round1(float64(total) / 60)
	peakHours := Round1(float64(peak) / 60)

	return UsageBreakdown{
		DailyUsage:   daily,
		PeakUsage:    peakHours,
		OffPeakUsage: Round1(daily - peakHours),
	}
}

// ValidClock reports whether s is a well-formed HH:MM time of day
func ValidClock(s string) bool {
	_, err := minuteOfDay(s)
	return err == nil
}

func minuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func overlap(aStart, aEnd, bStart, bEnd int) int {
	lo := max(aStart, bStart)
	hi := min(aEnd, bEnd)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Round1 rounds hour figures to one decimal place
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round2 rounds currency figures to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
