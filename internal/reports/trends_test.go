package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
)

func monthAgg(label string, expenses []core.Expense, incomes []core.Income) MonthAggregate {
	return MonthAggregate{
		Label:   label,
		Summary: Aggregate(expenses, incomes, nil, nil, pal),
	}
}

func TestComposeTrendsEmpty(t *testing.T) {
	got := ComposeTrends(nil)
	assert.Empty(t, got.Labels)
	assert.Empty(t, got.CashFlow)
	assert.Empty(t, got.Categories)
	assert.Empty(t, got.SavingsRate)
	assert.Equal(t, TrendAverages{}, got.Averages)
}

func TestComposeTrendsCashFlow(t *testing.T) {
	months := []MonthAggregate{
		monthAgg("October 2024",
			[]core.Expense{{Category: "A", Actual: money(100000)}},
			[]core.Income{{IncomeTypeID: 1, Actual: money(400000)}}),
		monthAgg("November 2024",
			[]core.Expense{{Category: "A", Actual: money(250000)}},
			[]core.Income{{IncomeTypeID: 1, Actual: money(200000)}}),
	}

	got := ComposeTrends(months)

	require.Len(t, got.CashFlow, 2)
	assert.Equal(t, "October 2024", got.CashFlow[0].Label)
	assert.Equal(t, int64(300000), got.CashFlow[0].Net.Cents)
	assert.Equal(t, int64(-50000), got.CashFlow[1].Net.Cents)
}

func TestComposeTrendsCategoryUnionZeroFilled(t *testing.T) {
	months := []MonthAggregate{
		monthAgg("m1", []core.Expense{
			{Category: "Groceries", Actual: money(100)},
		}, nil),
		monthAgg("m2", []core.Expense{
			{Category: "Travel", Actual: money(500)},
		}, nil),
		monthAgg("m3", []core.Expense{
			{Category: "Groceries", Actual: money(200)},
			{Category: "Travel", Actual: money(300)},
		}, nil),
	}

	got := ComposeTrends(months)

	require.Len(t, got.Categories, 2)
	for _, series := range got.Categories {
		// Every series spans the full window.
		assert.Len(t, series.Points, 3)
	}

	groceries := got.Categories[0]
	assert.Equal(t, "Groceries", groceries.Category)
	assert.Equal(t, []core.Money{money(100), money(0), money(200)}, groceries.Points)

	travel := got.Categories[1]
	assert.Equal(t, []core.Money{money(0), money(500), money(300)}, travel.Points)
}

func TestSavingsRateZeroIncome(t *testing.T) {
	assert.Equal(t, 0.0, SavingsRate(money(0), money(-500)))
	assert.Equal(t, 0.0, SavingsRate(money(0), money(0)))
	assert.Equal(t, 25.0, SavingsRate(money(400), money(100)))
}

func TestComposeTrendsSavingsRateAndAverages(t *testing.T) {
	months := []MonthAggregate{
		monthAgg("m1",
			[]core.Expense{{Category: "A", Actual: money(50000)}},
			[]core.Income{{IncomeTypeID: 1, Actual: money(100000)}}),
		monthAgg("m2",
			[]core.Expense{{Category: "A", Actual: money(100000)}},
			nil), // no income: rate must be 0, not NaN
	}

	got := ComposeTrends(months)

	require.Len(t, got.SavingsRate, 2)
	assert.Equal(t, 50.0, got.SavingsRate[0].Rate)
	assert.Equal(t, 0.0, got.SavingsRate[1].Rate)

	assert.Equal(t, 500.0, got.Averages.MeanIncome)   // (1000 + 0) / 2
	assert.Equal(t, 750.0, got.Averages.MeanExpenses) // (500 + 1000) / 2
	assert.Equal(t, 25.0, got.Averages.MeanSavingsRate)
}
