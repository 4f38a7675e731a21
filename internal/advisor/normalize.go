package advisor

import (
	"math"
	"strings"

	"github.com/awaistahir/wattplan/internal/engine"
)

// MatchItem finds the appliance a free-text plan item name refers to. It
// tries exact equality, then case-insensitive equality, then substring
// containment in either direction. Each tier scans all candidates before
// the next tier is tried.
func MatchItem(name string, candidates []engine.Appliance) (engine.Appliance, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return engine.Appliance{}, false
	}

	for _, a := range candidates {
		if a.Name == name {
			return a, true
		}
	}
	for _, a := range candidates {
		if strings.EqualFold(strings.TrimSpace(a.Name), name) {
			return a, true
		}
	}

	lower := squash(name)
	for _, a := range candidates {
		candidate := squash(a.Name)
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, lower) || strings.Contains(lower, candidate) {
			return a, true
		}
	}
	return engine.Appliance{}, false
}

// squash lowercases and drops spaces, hyphens and underscores so "aircon"
// and "Air Conditioner" compare as substrings.
func squash(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(s))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Normalize turns model-proposed items into plan items that respect the
// scheduling rules, priced against the user's appliances:
//
//   - items are joined to appliances by ID, falling back to MatchItem and,
//     for refrigeration, to the first unclaimed refrigeration appliance
//   - hour fields are clamped to their caps and rounded to 0.1h
//   - weekend peak hours are folded into weekend off-peak
//   - refrigeration is forced back to 8/16 weekdays and 24 off-peak weekends
//   - appliances the model left out keep their baseline item
//   - appliances missing from both run at their registered hours
//
// It returns one item per appliance plus any unmatched items, and the
// recomputed projected bill. Items that match no appliance are kept with a
// zero baseline and do not contribute to the bill.
func Normalize(proposed []engine.PlanItem, baseline *engine.Plan, appliances []engine.Appliance, rates engine.Rates) ([]engine.PlanItem, float64) {
	byID := make(map[string]engine.Appliance, len(appliances))
	for _, a := range appliances {
		byID[a.ID] = a
	}

	used := make(map[string]bool, len(appliances))
	remaining := func() []engine.Appliance {
		out := make([]engine.Appliance, 0, len(appliances))
		for _, a := range appliances {
			if !used[a.ID] {
				out = append(out, a)
			}
		}
		return out
	}

	items := make([]engine.PlanItem, 0, len(proposed))
	bill := 0.0

	for _, p := range proposed {
		a, ok := byID[p.ApplianceID]
		if !ok || used[a.ID] {
			a, ok = MatchItem(p.Name, remaining())
		}
		if !ok && engine.IsRefrigeration(p.Name) {
			a, ok = firstRefrigeration(remaining())
		}

		item := normalizeHours(p)
		item.ApplianceID = ""
		if ok {
			used[a.ID] = true
			item.ApplianceID = a.ID
			item.Name = a.Name
		}
		if engine.IsRefrigeration(item.Name) {
			item = alwaysOn(item)
		}
		if ok {
			bill += rates.ItemCost(a, item)
		}
		items = append(items, finishItem(item, a, rates))
	}

	if baseline != nil {
		for _, b := range baseline.Items {
			a, ok := byID[b.ApplianceID]
			if !ok && b.ApplianceID == "" {
				a, ok = MatchItem(b.Name, remaining())
			}
			if !ok || used[a.ID] {
				continue
			}
			used[a.ID] = true
			item := normalizeHours(b)
			item.ApplianceID = a.ID
			item.Name = a.Name
			if engine.IsRefrigeration(a.Name) {
				item = alwaysOn(item)
			}
			item.Change = "No change"
			bill += rates.ItemCost(a, item)
			items = append(items, finishItem(item, a, rates))
		}
	}

	for _, a := range appliances {
		if used[a.ID] {
			continue
		}
		used[a.ID] = true
		item := normalizeHours(engine.PlanItem{
			ApplianceID:         a.ID,
			Name:                a.Name,
			PeakHoursWeekday:    a.PeakUsageHours,
			OffPeakHoursWeekday: a.OffPeakUsageHours,
			OffPeakHoursWeekend: a.DailyUsageHours,
			Change:              "Added at current usage",
		})
		if engine.IsRefrigeration(a.Name) {
			item = alwaysOn(item)
		}
		bill += rates.ItemCost(a, item)
		items = append(items, finishItem(item, a, rates))
	}

	return items, engine.Round2(bill)
}

func firstRefrigeration(candidates []engine.Appliance) (engine.Appliance, bool) {
	for _, a := range candidates {
		if engine.IsRefrigeration(a.Name) {
			return a, true
		}
	}
	return engine.Appliance{}, false
}

func normalizeHours(p engine.PlanItem) engine.PlanItem {
	p.PeakHoursWeekday = engine.Round1(clamp(p.PeakHoursWeekday, 0, engine.MaxPeakHours))
	p.OffPeakHoursWeekday = engine.Round1(clamp(p.OffPeakHoursWeekday, 0, engine.MaxOffPeakHours))
	weekend := clamp(p.OffPeakHoursWeekend, 0, 24) + clamp(p.PeakHoursWeekend, 0, 24)
	p.OffPeakHoursWeekend = engine.Round1(math.Min(weekend, 24))
	p.PeakHoursWeekend = 0
	return p
}

func alwaysOn(p engine.PlanItem) engine.PlanItem {
	p.PeakHoursWeekday = engine.MaxPeakHours
	p.OffPeakHoursWeekday = engine.MaxOffPeakHours
	p.PeakHoursWeekend = 0
	p.OffPeakHoursWeekend = 24
	p.Change = "Always on (unchanged)"
	return p
}

// finishItem recomputes averages, savings and display strings. An empty
// appliance prices the item at zero.
func finishItem(p engine.PlanItem, a engine.Appliance, rates engine.Rates) engine.PlanItem {
	avgPeak := engine.WeeklyAverage(p.PeakHoursWeekday, p.PeakHoursWeekend)
	avgOff := engine.WeeklyAverage(p.OffPeakHoursWeekday, p.OffPeakHoursWeekend)

	p.AvgPeakHours = engine.Round1(avgPeak)
	p.AvgOffPeakHours = engine.Round1(avgOff)
	p.MonthlySavings = engine.Round2(rates.ItemSavings(a.Quantity, a.Watt, a.PeakUsageHours, a.OffPeakUsageHours, avgPeak, avgOff))
	p.SuggestedTimeWeekday = engine.SuggestSlots(p.PeakHoursWeekday, p.OffPeakHoursWeekday)
	p.SuggestedTimeWeekend = engine.SuggestSlots(p.PeakHoursWeekend, p.OffPeakHoursWeekend)
	if strings.TrimSpace(p.Change) == "" {
		p.Change = "Adjusted"
	}
	return p
}
