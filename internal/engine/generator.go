package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrNoAppliances  = errors.New("no appliances to plan")
	ErrInvalidTarget = errors.New("target bill must be greater than zero")
)

const (
	// weekend days carry 20% more usage than weekdays, all of it off-peak
	weekendFactor = 1.2
	hourStep      = 0.1
	epsilon       = 1e-9
)

// allocation is the working state of one appliance during generation.
// Hour figures are always kept at one-decimal precision.
type allocation struct {
	appliance Appliance
	floor     float64
	priority  float64
	share     float64
	peak      float64 // weekday
	offPeak   float64 // weekday
}

func (al *allocation) load() float64 {
	return float64(al.appliance.Quantity) * al.appliance.Watt / 1000
}

func (al *allocation) total() float64 {
	return al.peak + al.offPeak
}

func (al *allocation) weekend() float64 {
	return weekendHours(al.total())
}

func (al *allocation) cost(r Rates) float64 {
	a := al.appliance
	return r.MonthlyCost(a.Quantity, a.Watt, al.peak, al.offPeak, 0, al.weekend())
}

// minPeak is the peak share that cannot be avoided at the floor: anything
// beyond the off-peak capacity of a day.
func (al *allocation) minPeak() float64 {
	return math.Max(0, al.floor-MaxOffPeakHours)
}

func (al *allocation) reducible() bool {
	if al.load() <= 0 {
		return false
	}
	return al.total() > al.floor+epsilon || al.peak > al.minPeak()+epsilon
}

// cut removes h weekday hours, peak first, never going below the floor.
// Hours that the floor keeps are moved off-peak where there is room.
func (al *allocation) cut(h float64) {
	newTotal := Round1(math.Max(al.floor, al.total()-h))
	newPeak := Round1(math.Max(0, al.peak-h))
	newPeak = math.Max(newPeak, Round1(math.Max(0, newTotal-MaxOffPeakHours)))
	al.peak = newPeak
	al.offPeak = Round1(newTotal - newPeak)
}

func weekendHours(weekday float64) float64 {
	return Round1(math.Min(weekday*weekendFactor, 24))
}

// split divides daily hours into weekday peak and off-peak using the
// off-peak priority, then enforces the per-bucket caps by moving overflow
// into the other bucket.
func split(hours, priority float64) (peak, offPeak float64) {
	hours = Round1(math.Min(hours, 24))
	offPeak = Round1(hours * priority)
	peak = Round1(hours - offPeak)
	if peak > MaxPeakHours {
		offPeak = Round1(offPeak + peak - MaxPeakHours)
		peak = MaxPeakHours
	}
	if offPeak > MaxOffPeakHours {
		peak = Round1(math.Min(peak+offPeak-MaxOffPeakHours, MaxPeakHours))
		offPeak = MaxOffPeakHours
	}
	return peak, offPeak
}

// Generate computes a weekday/weekend peak/off-peak schedule per appliance
// that tries to bring the monthly bill down to targetBill.
//
// When the target is below MinimumBill the floor plan is returned with
// StatusInfeasible rather than an error.
func Generate(appliances []Appliance, lastMonthBill, targetBill float64, rates Rates) (*Plan, error) {
	if len(appliances) == 0 {
		return nil, ErrNoAppliances
	}
	if targetBill <= 0 {
		return nil, ErrInvalidTarget
	}

	allocs := make([]*allocation, len(appliances))
	currentTotal := 0.0
	for i, a := range appliances {
		allocs[i] = &allocation{
			appliance: a,
			floor:     effectiveFloor(a),
			priority:  OffPeakPriority(a.Watt),
		}
		currentTotal += a.DailyUsageHours
	}

	for _, al := range allocs {
		if currentTotal > 0 {
			al.share = al.appliance.DailyUsageHours / currentTotal
		} else {
			al.share = 1 / float64(len(allocs))
		}
	}

	affordable := affordableHours(allocs, targetBill, rates, currentTotal)
	for _, al := range allocs {
		hours := math.Min(math.Max(affordable*al.share, al.floor), 24)
		al.peak, al.offPeak = split(hours, al.priority)
	}

	projected := billOf(allocs, rates)
	if projected > targetBill {
		projected = correct(allocs, targetBill, rates)
	}

	minimum := MinimumBill(appliances, rates)
	baseline := lastMonthBill
	if baseline <= 0 {
		baseline = rates.CurrentBill(appliances)
	}

	projected = Round2(projected)
	plan := &Plan{
		Items:         make([]PlanItem, 0, len(allocs)),
		ProjectedBill: projected,
		TotalSavings:  Round2(baseline - projected),
		MinimumBill:   Round2(minimum),
		Source:        SourceCalculator,
	}

	plan.Status = StatusFor(plan.ProjectedBill, targetBill, minimum)

	for _, al := range allocs {
		plan.Items = append(plan.Items, al.item(rates))
	}
	plan.Explanation = explain(allocs, plan, targetBill)

	return plan, nil
}

func (al *allocation) item(r Rates) PlanItem {
	a := al.appliance
	weekend := al.weekend()
	avgPeak := WeeklyAverage(al.peak, 0)
	avgOff := WeeklyAverage(al.offPeak, weekend)

	return PlanItem{
		ApplianceID:          a.ID,
		Name:                 a.Name,
		PeakHoursWeekday:     al.peak,
		OffPeakHoursWeekday:  al.offPeak,
		PeakHoursWeekend:     0,
		OffPeakHoursWeekend:  weekend,
		SuggestedTimeWeekday: SuggestSlots(al.peak, al.offPeak),
		SuggestedTimeWeekend: SuggestSlots(0, weekend),
		AvgPeakHours:         Round1(avgPeak),
		AvgOffPeakHours:      Round1(avgOff),
		MonthlySavings:       Round2(r.ItemSavings(a.Quantity, a.Watt, a.PeakUsageHours, a.OffPeakUsageHours, avgPeak, avgOff)),
		Change:               describeChange(a, al.total()),
	}
}

// affordableHours estimates how many appliance-hours per day the target
// bill pays for at a blended rate. With no load to price it keeps the
// current total.
func affordableHours(allocs []*allocation, target float64, r Rates, currentTotal float64) float64 {
	var loadSum, weighted float64
	for _, al := range allocs {
		load := al.load()
		loadSum += load
		weighted += load * al.priority
	}

	avgKWhPerHour := loadSum / float64(len(allocs))
	if avgKWhPerHour <= 0 {
		return currentTotal
	}

	offPeakRatio := weighted / loadSum
	blended := offPeakRatio*r.OffPeak + (1-offPeakRatio)*r.Peak
	if blended <= 0 {
		return currentTotal
	}

	return target / (daysPerMonth * blended * avgKWhPerHour)
}

// correct trims hours from the heaviest appliances first until the bill
// fits the target or every appliance is down to its floor.
func correct(allocs []*allocation, target float64, r Rates) float64 {
	order := append([]*allocation(nil), allocs...)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].load() > order[j].load()
	})

	bill := billOf(allocs, r)
	for _, al := range order {
		for bill > target && al.reducible() {
			al.cut(hoursToCut(al, bill-target, r))
			bill = billOf(allocs, r)
		}
		if bill <= target {
			break
		}
	}
	return bill
}

// hoursToCut converts a residual overage into weekday hours of this
// appliance, priced at the peak rate and rounded up to the next 0.1h.
func hoursToCut(al *allocation, overage float64, r Rates) float64 {
	perHour := al.load() * r.Peak * daysPerMonth * weekdaysPerWeek / (weekdaysPerWeek + weekendPerWeek)
	if perHour <= 0 {
		return hourStep
	}
	h := math.Ceil(overage/perHour*10-epsilon) / 10
	return math.Max(h, hourStep)
}

func billOf(allocs []*allocation, r Rates) float64 {
	total := 0.0
	for _, al := range allocs {
		total += al.cost(r)
	}
	return total
}

// MinimumBill is the monthly bill with every appliance held at its
// minimum-hours floor and as much of it as possible off-peak.
func MinimumBill(appliances []Appliance, rates Rates) float64 {
	total := 0.0
	for _, a := range appliances {
		floor := effectiveFloor(a)
		al := &allocation{
			appliance: a,
			floor:     floor,
			offPeak:   math.Min(floor, MaxOffPeakHours),
			peak:      Round1(math.Max(0, floor-MaxOffPeakHours)),
		}
		total += al.cost(rates)
	}
	return total
}

func describeChange(a Appliance, planned float64) string {
	current := a.DailyUsageHours
	switch {
	case IsRefrigeration(a.Name):
		return "Always on (unchanged)"
	case planned < current-epsilon:
		return fmt.Sprintf("Reduced from %.1fh to %.1fh per weekday", current, planned)
	case planned > current+epsilon:
		return fmt.Sprintf("Increased from %.1fh to %.1fh per weekday", current, planned)
	default:
		return "Shifted towards off-peak"
	}
}

func explain(allocs []*allocation, plan *Plan, target float64) string {
	var loadSum, weighted float64
	for _, al := range allocs {
		loadSum += al.load()
		weighted += al.load() * al.priority
	}
	offPeakShare := 0.0
	if loadSum > 0 {
		offPeakShare = weighted / loadSum * 100
	}

	delta := CompareBills(plan.ProjectedBill+plan.TotalSavings, plan.ProjectedBill)
	msg := fmt.Sprintf("Heavier appliances are moved into off-peak hours first (about %.0f%% of load-weighted usage runs off-peak, peak is 14:00-22:00). "+
		"Projected bill is %.2f against a target of %.2f; %s %.2f per month.",
		offPeakShare, plan.ProjectedBill, target, delta.Label, math.Abs(delta.Amount))

	if plan.Status == StatusInfeasible {
		msg += fmt.Sprintf(" The target cannot be met: keeping essential appliances at their minimum hours already costs %.2f.", plan.MinimumBill)
	}
	return msg
}
