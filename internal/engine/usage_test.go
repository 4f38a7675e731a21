package engine

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakdown(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  UsageBreakdown
	}{
		{
			name:  "always on shortcut",
			start: "00:00",
			end:   "23:59",
			want:  UsageBreakdown{DailyUsage: 24, PeakUsage: 14, OffPeakUsage: 10},
		},
		{
			name:  "overnight window misses peak",
			start: "22:00",
			end:   "02:00",
			want:  UsageBreakdown{DailyUsage: 4, PeakUsage: 0, OffPeakUsage: 4},
		},
		{
			name:  "evening inside peak",
			start: "18:00",
			end:   "22:00",
			want:  UsageBreakdown{DailyUsage: 4, PeakUsage: 4, OffPeakUsage: 0},
		},
		{
			name:  "evening running past peak",
			start: "18:00",
			end:   "23:00",
			want:  UsageBreakdown{DailyUsage: 5, PeakUsage: 4, OffPeakUsage: 1},
		},
		{
			name:  "partial overlap at peak start",
			start: "13:00",
			end:   "15:30",
			want:  UsageBreakdown{DailyUsage: 2.5, PeakUsage: 1.5, OffPeakUsage: 1},
		},
		{
			name:  "wrap overlapping peak on both days",
			start: "20:00",
			end:   "16:00",
			want:  UsageBreakdown{DailyUsage: 20, PeakUsage: 4, OffPeakUsage: 16},
		},
		{
			name:  "zero length window",
			start: "08:00",
			end:   "08:00",
			want:  UsageBreakdown{},
		},
		{
			name:  "missing start",
			start: "",
			end:   "10:00",
			want:  UsageBreakdown{},
		},
		{
			name:  "malformed end",
			start: "10:00",
			end:   "25:00",
			want:  UsageBreakdown{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Breakdown(tt.start, tt.end))
		})
	}
}

func TestBreakdown_ConsistentForAllWindows(t *testing.T) {
	for start := 0; start < minutesPerDay; start += 15 {
		for end := 0; end < minutesPerDay; end += 15 {
			s, e := clock(start), clock(end)
			b := Breakdown(s, e)

			msg := fmt.Sprintf("%s-%s", s, e)
			assert.GreaterOrEqual(t, b.DailyUsage, 0.0, msg)
			assert.LessOrEqual(t, b.DailyUsage, 24.0, msg)
			assert.LessOrEqual(t, math.Abs(b.PeakUsage+b.OffPeakUsage-b.DailyUsage), 0.05, msg)
			assert.LessOrEqual(t, b.PeakUsage, MaxPeakHours, msg)
		}
	}
}

func TestApplianceApplyBreakdown(t *testing.T) {
	a := Appliance{Name: "TV", StartTime: "19:00", EndTime: "23:30", PeakUsageHours: 99}
	a.ApplyBreakdown()

	assert.Equal(t, 4.5, a.DailyUsageHours)
	assert.Equal(t, 3.0, a.PeakUsageHours)
	assert.Equal(t, 1.5, a.OffPeakUsageHours)
}

func TestValidClock(t *testing.T) {
	assert.True(t, ValidClock("00:00"))
	assert.True(t, ValidClock("23:59"))
	assert.False(t, ValidClock("24:00"))
	assert.False(t, ValidClock("noon"))
	assert.False(t, ValidClock(""))
}
