package engine

import "time"

// Rates holds the time-of-use tariff in currency units per kWh
type Rates struct {
	Peak    float64 `json:"peak"`
	OffPeak float64 `json:"off_peak"`
}

// DefaultRates is the canonical tariff used when no configuration overrides it
var DefaultRates = Rates{Peak: 0.2583, OffPeak: 0.2443}

// UsageBreakdown splits a daily usage window into peak and off-peak hours
type UsageBreakdown struct {
	DailyUsage   float64 `json:"daily_usage"`
	PeakUsage    float64 `json:"peak_usage"`
	OffPeakUsage float64 `json:"off_peak_usage"`
}

// Appliance represents a registered device class owned by one user
type Appliance struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Name              string    `json:"name"`
	Quantity          int       `json:"quantity"`
	Watt              float64   `json:"watt"`
	StartTime         string    `json:"start_time"` // HH:MM
	EndTime           string    `json:"end_time"`   // HH:MM, may wrap past midnight
	DailyUsageHours   float64   `json:"daily_usage_hours"`
	PeakUsageHours    float64   `json:"peak_usage_hours"`
	OffPeakUsageHours float64   `json:"off_peak_usage_hours"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ApplyBreakdown re-derives the usage hour fields from the usage window.
// Usage hours are never set any other way.
func (a *Appliance) ApplyBreakdown() {
	b := Breakdown(a.StartTime, a.EndTime)
	a.DailyUsageHours = b.DailyUsage
	a.PeakUsageHours = b.PeakUsage
	a.OffPeakUsageHours = b.OffPeakUsage
}

// Profile is the per-user billing profile
type Profile struct {
	UserID              string    `json:"user_id"`
	LastMonthBill       float64   `json:"last_month_bill"`
	LastMonthKWh        float64   `json:"last_month_kwh"`
	TargetBill          float64   `json:"target_bill"`
	ExpectedMonthlyCost float64   `json:"expected_monthly_cost"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PlanSource records which pipeline stage produced a plan
type PlanSource string

const (
	SourceCalculator PlanSource = "calculator" // deterministic generator
	SourceAssistant  PlanSource = "assistant"  // language-model adjustment
	SourceFallback   PlanSource = "fallback"   // deterministic plan served after a model failure
)

// PlanStatus describes how the projected bill relates to the target
type PlanStatus string

const (
	StatusOnTarget   PlanStatus = "on_target"
	StatusOverTarget PlanStatus = "over_target"
	StatusInfeasible PlanStatus = "infeasible" // target below the cost of the minimum-hour floors
)

// StatusFor classifies a projected bill against the target. minimum is the
// unrounded cost of the floors.
func StatusFor(projected, target, minimum float64) PlanStatus {
	switch {
	case target < minimum-epsilon:
		return StatusInfeasible
	case projected > Round2(target):
		return StatusOverTarget
	default:
		return StatusOnTarget
	}
}

// PlanItem is the planned schedule for one appliance.
// Weekends are modeled as entirely off-peak, so PeakHoursWeekend is always 0.
type PlanItem struct {
	ApplianceID          string  `json:"appliance_id,omitempty"`
	Name                 string  `json:"name"`
	PeakHoursWeekday     float64 `json:"planned_peak_hours_weekday"`
	OffPeakHoursWeekday  float64 `json:"planned_off_peak_hours_weekday"`
	PeakHoursWeekend     float64 `json:"planned_peak_hours_weekend"`
	OffPeakHoursWeekend  float64 `json:"planned_off_peak_hours_weekend"`
	SuggestedTimeWeekday string  `json:"suggested_time_weekday,omitempty"`
	SuggestedTimeWeekend string  `json:"suggested_time_weekend,omitempty"`
	AvgPeakHours         float64 `json:"avg_peak_hours"`
	AvgOffPeakHours      float64 `json:"avg_off_peak_hours"`
	MonthlySavings       float64 `json:"monthly_savings"`
	Change               string  `json:"change"`
}

// WeekdayHours returns the planned weekday total
func (p PlanItem) WeekdayHours() float64 {
	return p.PeakHoursWeekday + p.OffPeakHoursWeekday
}

// Plan is an immutable schedule snapshot. A new value is produced for every
// accepted revision and Version increases by one on each write.
type Plan struct {
	Version       int        `json:"version"`
	Items         []PlanItem `json:"items"`
	ProjectedBill float64    `json:"projected_bill"`
	TotalSavings  float64    `json:"total_savings"`
	MinimumBill   float64    `json:"minimum_bill"`
	Explanation   string     `json:"explanation"`
	Source        PlanSource `json:"source"`
	Status        PlanStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Clone returns a deep copy so callers can derive a new plan without
// touching the original.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Items = append([]PlanItem(nil), p.Items...)
	return &cp
}
