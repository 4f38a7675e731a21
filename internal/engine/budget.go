package engine

import "math"

const (
	LabelYouSave      = "you save"
	LabelBillIncrease = "bill increase"
)

// BudgetProgress is the budget gauge shown next to a plan
type BudgetProgress struct {
	DisplayedBill   float64 `json:"displayed_bill"`
	TargetBill      float64 `json:"target_bill"`
	ProgressPercent float64 `json:"progress_percent"`
	UnderBudget     bool    `json:"under_budget"`
}

// BillDelta compares two consecutive projected bills
type BillDelta struct {
	Previous float64 `json:"previous"`
	Latest   float64 `json:"latest"`
	Amount   float64 `json:"amount"` // previous - latest
	Label    string  `json:"label"`
}

// Progress derives the budget gauge. The displayed bill is the plan's
// projected bill, or currentBill when there is no plan. The result never
// carries NaN or Inf.
func Progress(plan *Plan, currentBill, target float64) BudgetProgress {
	displayed := currentBill
	if plan != nil {
		displayed = plan.ProjectedBill
	}
	if math.IsNaN(displayed) || math.IsInf(displayed, 0) {
		displayed = 0
	}
	displayed = Round2(displayed)

	percent := 0.0
	if target > 0 {
		percent = math.Min(displayed/target*100, 100)
	}

	return BudgetProgress{
		DisplayedBill:   displayed,
		TargetBill:      target,
		ProgressPercent: Round1(percent),
		UnderBudget:     target > 0 && displayed <= target,
	}
}

// CompareBills labels the change from previous to latest
func CompareBills(previous, latest float64) BillDelta {
	amount := Round2(previous - latest)
	label := LabelYouSave
	if amount < 0 {
		label = LabelBillIncrease
	}
	return BillDelta{
		Previous: Round2(previous),
		Latest:   Round2(latest),
		Amount:   amount,
		Label:    label,
	}
}

// Conversation tracks the plans accepted during one adjustment conversation.
// The anchor is the bill the next delta is measured against.
type Conversation struct {
	target float64
	anchor float64
	plans  []*Plan
}

// NewConversation starts a conversation anchored at baselineBill
func NewConversation(target, baselineBill float64) *Conversation {
	return &Conversation{target: target, anchor: baselineBill}
}

// Accept records a newly accepted plan and returns its delta against the
// previous anchor.
func (c *Conversation) Accept(plan *Plan) BillDelta {
	delta := CompareBills(c.anchor, plan.ProjectedBill)
	c.plans = append(c.plans, plan)
	c.anchor = plan.ProjectedBill
	return delta
}

// Reset discards every accepted plan after a target change and re-anchors at
// the freshly fetched baseline bill.
func (c *Conversation) Reset(target, baselineBill float64) {
	c.target = target
	c.anchor = baselineBill
	c.plans = nil
}

// Latest returns the most recently accepted plan, or nil
func (c *Conversation) Latest() *Plan {
	if len(c.plans) == 0 {
		return nil
	}
	return c.plans[len(c.plans)-1]
}

// Progress reports the gauge for the latest plan or the anchor bill
func (c *Conversation) Progress() BudgetProgress {
	return Progress(c.Latest(), c.anchor, c.target)
}

// Len returns the number of accepted plans
func (c *Conversation) Len() int {
	return len(c.plans)
}
