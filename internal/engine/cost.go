package engine

const (
	daysPerMonth    = 30
	weekdaysPerWeek = 5
	weekendPerWeek  = 2
)

// WeeklyAverage weights a weekday and a weekend figure into a daily average
func WeeklyAverage(weekday, weekend float64) float64 {
	return (weekday*weekdaysPerWeek + weekend*weekendPerWeek) / (weekdaysPerWeek + weekendPerWeek)
}

// MonthlyCost returns the monthly cost of running quantity units of a watt
// rated appliance for the given daily hours on weekdays and weekends.
func (r Rates) MonthlyCost(quantity int, watt, peakWeekday, offPeakWeekday, peakWeekend, offPeakWeekend float64) float64 {
	avgPeak := WeeklyAverage(peakWeekday, peakWeekend)
	avgOffPeak := WeeklyAverage(offPeakWeekday, offPeakWeekend)
	kw := watt / 1000
	daily := float64(quantity) * kw * (avgPeak*r.Peak + avgOffPeak*r.OffPeak)
	return daily * daysPerMonth
}

// CurrentCost is the monthly cost of an appliance used every day exactly as
// its registered window describes.
func (r Rates) CurrentCost(a Appliance) float64 {
	return r.MonthlyCost(a.Quantity, a.Watt, a.PeakUsageHours, a.OffPeakUsageHours, a.PeakUsageHours, a.OffPeakUsageHours)
}

// CurrentBill sums CurrentCost over all appliances
func (r Rates) CurrentBill(appliances []Appliance) float64 {
	total := 0.0
	for _, a := range appliances {
		total += r.CurrentCost(a)
	}
	return total
}

// ItemCost is the monthly cost of a plan item for the given appliance
func (r Rates) ItemCost(a Appliance, item PlanItem) float64 {
	return r.MonthlyCost(a.Quantity, a.Watt, item.PeakHoursWeekday, item.OffPeakHoursWeekday, item.PeakHoursWeekend, item.OffPeakHoursWeekend)
}

// ItemSavings returns the monthly saving of moving from last month's daily
// peak/off-peak hours to new averaged daily hours. The saving covers all
// quantity units of the appliance, not a single unit.
func (r Rates) ItemSavings(quantity int, watt, lastPeak, lastOffPeak, newPeak, newOffPeak float64) float64 {
	load := watt * float64(quantity)
	peak := (lastPeak - newPeak) * load * r.Peak * daysPerMonth / 1000
	offPeak := (lastOffPeak - newOffPeak) * load * r.OffPeak * daysPerMonth / 1000
	return peak + offPeak
}
