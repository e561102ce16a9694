// Package reports computes derived summaries over already-fetched
// expense and income records. Everything here is a pure function of its
// inputs; nothing is persisted and nothing blocks.
package reports

import (
	"bilancio/internal/core"
	"bilancio/internal/theme"
)

type (
	// CategorySummary is the per-category budget-vs-actual rollup.
	CategorySummary struct {
		Category   string
		Color      string
		Budget     core.Money
		Actual     core.Money
		OverBudget bool
	}

	// IncomeTypeSummary is the per-income-type rollup.
	IncomeTypeSummary struct {
		IncomeTypeID int64
		Name         string
		Color        string
		Budget       core.Money
		Actual       core.Money
	}

	// SummaryTotals holds the six month-level scalar aggregates.
	SummaryTotals struct {
		BudgetedExpenses core.Money
		CurrentExpenses  core.Money
		BudgetedIncome   core.Money
		CurrentIncome    core.Money
		BudgetedBalance  core.Money // budgeted income - budgeted expenses
		CurrentBalance   core.Money // current income - current expenses
	}

	MonthSummary struct {
		Categories  []CategorySummary
		IncomeTypes []IncomeTypeSummary
		Totals      SummaryTotals
	}
)

// Aggregate reduces a month's records into per-category and
// per-income-type summaries plus scalar totals. Category and income-type
// metadata are consulted for display colors only; records referencing
// unknown categories form their own group with the palette fallback
// color. Group order follows first appearance in the input.
func Aggregate(expenses []core.Expense, incomes []core.Income, categories []core.Category, incomeTypes []core.IncomeType, pal theme.Palette) MonthSummary {
	catColors := make(map[string]string, len(categories))
	for _, c := range categories {
		catColors[c.Name] = c.Color
	}
	typeMeta := make(map[int64]core.IncomeType, len(incomeTypes))
	for _, it := range incomeTypes {
		typeMeta[it.ID] = it
	}

	var out MonthSummary

	catIndex := make(map[string]int)
	for _, e := range expenses {
		i, ok := catIndex[e.Category]
		if !ok {
			color := catColors[e.Category]
			if color == "" {
				color = pal.Fallback
			}
			i = len(out.Categories)
			catIndex[e.Category] = i
			out.Categories = append(out.Categories, CategorySummary{
				Category: e.Category,
				Color:    color,
			})
		}
		out.Categories[i].Budget.Cents += e.Budget.Cents
		out.Categories[i].Actual.Cents += e.Actual.Cents

		out.Totals.BudgetedExpenses.Cents += e.Budget.Cents
		out.Totals.CurrentExpenses.Cents += e.Actual.Cents
	}
	for i := range out.Categories {
		// Strictly greater: spending exactly the budget is not over.
		out.Categories[i].OverBudget = out.Categories[i].Actual.Cents > out.Categories[i].Budget.Cents
	}

	typeIndex := make(map[int64]int)
	for _, in := range incomes {
		i, ok := typeIndex[in.IncomeTypeID]
		if !ok {
			name := "Unknown"
			color := pal.Fallback
			if meta, found := typeMeta[in.IncomeTypeID]; found {
				name = meta.Name
				if meta.Color != "" {
					color = meta.Color
				}
			}
			i = len(out.IncomeTypes)
			typeIndex[in.IncomeTypeID] = i
			out.IncomeTypes = append(out.IncomeTypes, IncomeTypeSummary{
				IncomeTypeID: in.IncomeTypeID,
				Name:         name,
				Color:        color,
			})
		}
		out.IncomeTypes[i].Budget.Cents += in.Budget.Cents
		out.IncomeTypes[i].Actual.Cents += in.Actual.Cents

		out.Totals.BudgetedIncome.Cents += in.Budget.Cents
		out.Totals.CurrentIncome.Cents += in.Actual.Cents
	}

	out.Totals.BudgetedBalance.Cents = out.Totals.BudgetedIncome.Cents - out.Totals.BudgetedExpenses.Cents
	out.Totals.CurrentBalance.Cents = out.Totals.CurrentIncome.Cents - out.Totals.CurrentExpenses.Cents

	return out
}
