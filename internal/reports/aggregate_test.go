package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
	"bilancio/internal/theme"
)

var pal = theme.Resolve("light")

func money(cents int64) core.Money { return core.Money{Cents: cents} }

func TestAggregateEmptyInput(t *testing.T) {
	got := Aggregate(nil, nil, nil, nil, pal)

	assert.Empty(t, got.Categories)
	assert.Empty(t, got.IncomeTypes)
	assert.Equal(t, SummaryTotals{}, got.Totals)
}

func TestAggregateGroupsExpensesByCategory(t *testing.T) {
	expenses := []core.Expense{
		{Category: "Groceries", Budget: money(50000), Actual: money(45000)},
		{Category: "Groceries", Budget: money(10000), Actual: money(12000)},
		{Category: "Rent", Budget: money(120000), Actual: money(120000)},
	}
	categories := []core.Category{{ID: 1, Name: "Groceries", Color: "#4caf50"}}

	got := Aggregate(expenses, nil, categories, nil, pal)

	require.Len(t, got.Categories, 2)

	groceries := got.Categories[0]
	assert.Equal(t, "Groceries", groceries.Category)
	assert.Equal(t, "#4caf50", groceries.Color)
	assert.Equal(t, int64(60000), groceries.Budget.Cents)
	assert.Equal(t, int64(57000), groceries.Actual.Cents)
	assert.False(t, groceries.OverBudget)

	// Unknown category keeps its own group with the fallback color.
	rent := got.Categories[1]
	assert.Equal(t, "Rent", rent.Category)
	assert.Equal(t, pal.Fallback, rent.Color)
	// Spending exactly the budget is not over budget.
	assert.False(t, rent.OverBudget)
}

func TestAggregateOverBudgetIsStrict(t *testing.T) {
	cases := []struct {
		budget, actual int64
		over           bool
	}{
		{100, 99, false},
		{100, 100, false},
		{100, 101, true},
		{0, 0, false},
		{0, 1, true},
	}
	for _, tc := range cases {
		got := Aggregate([]core.Expense{
			{Category: "X", Budget: money(tc.budget), Actual: money(tc.actual)},
		}, nil, nil, nil, pal)
		require.Len(t, got.Categories, 1)
		assert.Equalf(t, tc.over, got.Categories[0].OverBudget,
			"budget=%d actual=%d", tc.budget, tc.actual)
	}
}

func TestAggregatePartitionSumsMatchTotals(t *testing.T) {
	expenses := []core.Expense{
		{Category: "A", Budget: money(100), Actual: money(90)},
		{Category: "B", Budget: money(200), Actual: money(250)},
		{Category: "A", Budget: money(50), Actual: money(60)},
		{Category: "C", Budget: money(0), Actual: money(10)},
	}

	got := Aggregate(expenses, nil, nil, nil, pal)

	var budgetSum, actualSum int64
	for _, cs := range got.Categories {
		budgetSum += cs.Budget.Cents
		actualSum += cs.Actual.Cents
	}
	assert.Equal(t, got.Totals.BudgetedExpenses.Cents, budgetSum)
	assert.Equal(t, got.Totals.CurrentExpenses.Cents, actualSum)
}

func TestAggregateGroupsIncomesByType(t *testing.T) {
	incomes := []core.Income{
		{IncomeTypeID: 1, Budget: money(500000), Actual: money(500000)},
		{IncomeTypeID: 2, Budget: money(100000), Actual: money(300000)},
		{IncomeTypeID: 1, Budget: money(50000), Actual: money(0)},
	}
	types := []core.IncomeType{
		{ID: 1, Name: "Salary", Color: "#2196f3"},
	}

	got := Aggregate(nil, incomes, nil, types, pal)

	require.Len(t, got.IncomeTypes, 2)
	assert.Equal(t, "Salary", got.IncomeTypes[0].Name)
	assert.Equal(t, int64(550000), got.IncomeTypes[0].Budget.Cents)
	assert.Equal(t, int64(500000), got.IncomeTypes[0].Actual.Cents)

	assert.Equal(t, "Unknown", got.IncomeTypes[1].Name)
	assert.Equal(t, pal.Fallback, got.IncomeTypes[1].Color)
}

func TestAggregateTotalsBalance(t *testing.T) {
	incomes := []core.Income{
		{IncomeTypeID: 1, Actual: money(500000)},
		{IncomeTypeID: 1, Actual: money(300000)},
	}
	expenses := []core.Expense{
		{Category: "A", Actual: money(600000)},
	}

	got := Aggregate(expenses, incomes, nil, nil, pal)

	// 8000 - 6000 = 2000 in whole units
	assert.Equal(t, int64(200000), got.Totals.CurrentBalance.Cents)
	assert.Equal(t, got.Totals.BudgetedIncome.Cents-got.Totals.BudgetedExpenses.Cents,
		got.Totals.BudgetedBalance.Cents)
}
