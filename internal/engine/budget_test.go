package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		name        string
		plan        *Plan
		currentBill float64
		target      float64
		want        BudgetProgress
	}{
		{
			name:        "no plan shows current bill",
			currentBill: 80,
			target:      100,
			want:        BudgetProgress{DisplayedBill: 80, TargetBill: 100, ProgressPercent: 80, UnderBudget: true},
		},
		{
			name:        "plan overrides current bill",
			plan:        &Plan{ProjectedBill: 45.5},
			currentBill: 300,
			target:      91,
			want:        BudgetProgress{DisplayedBill: 45.5, TargetBill: 91, ProgressPercent: 50, UnderBudget: true},
		},
		{
			name:        "over budget caps at 100",
			plan:        &Plan{ProjectedBill: 150},
			target:      100,
			want:        BudgetProgress{DisplayedBill: 150, TargetBill: 100, ProgressPercent: 100, UnderBudget: false},
		},
		{
			name:        "exactly on budget",
			plan:        &Plan{ProjectedBill: 100},
			target:      100,
			want:        BudgetProgress{DisplayedBill: 100, TargetBill: 100, ProgressPercent: 100, UnderBudget: true},
		},
		{
			name:        "missing target never divides",
			currentBill: 70,
			target:      0,
			want:        BudgetProgress{DisplayedBill: 70, TargetBill: 0, ProgressPercent: 0, UnderBudget: false},
		},
		{
			name:        "NaN bill falls back to zero",
			currentBill: math.NaN(),
			target:      50,
			want:        BudgetProgress{DisplayedBill: 0, TargetBill: 50, ProgressPercent: 0, UnderBudget: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Progress(tt.plan, tt.currentBill, tt.target))
		})
	}
}

func TestCompareBills(t *testing.T) {
	save := CompareBills(120, 95.5)
	assert.Equal(t, 24.5, save.Amount)
	assert.Equal(t, LabelYouSave, save.Label)

	same := CompareBills(80, 80)
	assert.Equal(t, 0.0, same.Amount)
	assert.Equal(t, LabelYouSave, same.Label)

	increase := CompareBills(80, 92.25)
	assert.Equal(t, -12.25, increase.Amount)
	assert.Equal(t, LabelBillIncrease, increase.Label)
}

func TestConversation(t *testing.T) {
	c := NewConversation(100, 140)
	assert.Nil(t, c.Latest())
	assert.Equal(t, 140.0, c.Progress().DisplayedBill)

	first := c.Accept(&Plan{ProjectedBill: 110})
	assert.Equal(t, 30.0, first.Amount)
	assert.Equal(t, LabelYouSave, first.Label)

	second := c.Accept(&Plan{ProjectedBill: 118})
	assert.Equal(t, -8.0, second.Amount)
	assert.Equal(t, LabelBillIncrease, second.Label)

	require.Equal(t, 2, c.Len())
	assert.Equal(t, 118.0, c.Latest().ProjectedBill)
	assert.False(t, c.Progress().UnderBudget)

	c.Reset(150, 95)
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Latest())
	p := c.Progress()
	assert.Equal(t, 95.0, p.DisplayedBill)
	assert.True(t, p.UnderBudget)

	third := c.Accept(&Plan{ProjectedBill: 90})
	assert.Equal(t, 5.0, third.Amount)
}
