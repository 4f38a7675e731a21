package advisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/awaistahir/wattplan/internal/engine"
)

// contextItem is a plan item enriched with the appliance facts the model
// needs so it never has to derive them.
type contextItem struct {
	engine.PlanItem
	Watt                   float64 `json:"watt"`
	Quantity               int     `json:"quantity"`
	LastMonthPeakHours     float64 `json:"last_month_peak_hours"`
	LastMonthOffPeakHours  float64 `json:"last_month_off_peak_hours"`
	CurrentAvgPeakHours    float64 `json:"current_avg_peak_hours"`
	CurrentAvgOffPeakHours float64 `json:"current_avg_off_peak_hours"`
}

// modelReply is the JSON object the model is asked to return
type modelReply struct {
	Plan          []engine.PlanItem `json:"plan"`
	ProjectedBill float64           `json:"projected_bill"`
	Explanation   string            `json:"explanation"`
}

func enrich(plan *engine.Plan, appliances []engine.Appliance) []contextItem {
	byID := make(map[string]engine.Appliance, len(appliances))
	for _, a := range appliances {
		byID[a.ID] = a
	}

	items := make([]contextItem, 0, len(plan.Items))
	for _, it := range plan.Items {
		a, ok := byID[it.ApplianceID]
		if !ok {
			a, _ = MatchItem(it.Name, appliances)
		}
		items = append(items, contextItem{
			PlanItem:               it,
			Watt:                   a.Watt,
			Quantity:               a.Quantity,
			LastMonthPeakHours:     a.PeakUsageHours,
			LastMonthOffPeakHours:  a.OffPeakUsageHours,
			CurrentAvgPeakHours:    engine.Round1(engine.WeeklyAverage(it.PeakHoursWeekday, it.PeakHoursWeekend)),
			CurrentAvgOffPeakHours: engine.Round1(engine.WeeklyAverage(it.OffPeakHoursWeekday, it.OffPeakHoursWeekend)),
		})
	}
	return items
}

const systemPrompt = `You are an energy advisor adjusting a household's electricity usage plan.
Peak hours are 14:00-22:00 every weekday; weekends are billed entirely at the off-peak rate.
Reply with a single JSON object and nothing else.`

func buildPrompt(h household, plan *engine.Plan, request string, rates engine.Rates) (string, error) {
	items, err := json.MarshalIndent(enrich(plan, h.appliances), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding plan context: %w", err)
	}

	previous := h.baselineBill(rates)
	target := h.profile.TargetBill

	var b strings.Builder
	fmt.Fprintf(&b, "Billing context:\n")
	fmt.Fprintf(&b, "- previous monthly bill: %.2f\n", previous)
	fmt.Fprintf(&b, "- target monthly bill: %.2f\n", target)
	fmt.Fprintf(&b, "- required savings: %.2f\n", previous-target)
	fmt.Fprintf(&b, "- current plan projected bill: %.2f\n", plan.ProjectedBill)
	fmt.Fprintf(&b, "- rates per kWh: peak %.4f, off-peak %.4f\n\n", rates.Peak, rates.OffPeak)

	fmt.Fprintf(&b, "Current plan (hours per day; avg fields are weighted 5 weekdays + 2 weekend days):\n%s\n\n", items)
	fmt.Fprintf(&b, "User request: %s\n\n", strings.TrimSpace(request))

	b.WriteString(`Rules:
1. Refrigerators and fridges never change: 8 peak + 16 off-peak hours on weekdays, 24 off-peak hours on weekends.
2. planned_peak_hours_weekday must be between 0 and 8.
3. planned_off_peak_hours_weekday must be between 0 and 16.
4. planned_peak_hours_weekend is always 0; planned_off_peak_hours_weekend is between 0 and 24.
5. When the user asks to use an appliance more without a specific amount, increase its total daily hours by 1.0 to 1.5.
6. Offset any increase by reducing other appliances, preferring high-wattage ones.
7. The projected bill must not exceed the target bill by more than a few percent.
8. Keep every appliance in the plan and keep "appliance_id" and "name" exactly as given.

Respond with JSON of the form:
{"plan": [{"appliance_id": "...", "name": "...", "planned_peak_hours_weekday": 0, "planned_off_peak_hours_weekday": 0,
"planned_peak_hours_weekend": 0, "planned_off_peak_hours_weekend": 0, "change": "short description"}],
"projected_bill": 0, "explanation": "one or two sentences for the user"}`)

	return b.String(), nil
}
