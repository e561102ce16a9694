package reports

import "bilancio/internal/core"

type (
	// MonthAggregate pairs one month's label with its computed summary.
	// Callers pass these oldest to newest.
	MonthAggregate struct {
		Label   string
		Year    int
		Month   int
		Summary MonthSummary
	}

	CashFlowPoint struct {
		Label    string
		Income   core.Money
		Expenses core.Money
		Net      core.Money
	}

	// CategorySeries is one category's spend across the whole window.
	// Points always has one entry per month; months where the category
	// had no expenses contribute zero.
	CategorySeries struct {
		Category string
		Color    string
		Points   []core.Money
	}

	RatePoint struct {
		Label string
		Rate  float64 // percent
	}

	TrendAverages struct {
		MeanIncome      float64
		MeanExpenses    float64
		MeanSavingsRate float64
	}

	TrendReport struct {
		Labels      []string
		CashFlow    []CashFlowPoint
		Categories  []CategorySeries
		SavingsRate []RatePoint
		Averages    TrendAverages
	}
)

// SavingsRate returns net savings over income as a percentage. Months
// with no income report 0, never NaN or infinity.
func SavingsRate(income, net core.Money) float64 {
	if income.Cents <= 0 {
		return 0
	}
	return float64(net.Cents) / float64(income.Cents) * 100
}

// ComposeTrends folds ordered monthly aggregates into chart-ready
// series. The category key set is the union across all months, with
// zero-filled gaps, and each category keeps the color it was first
// observed with.
func ComposeTrends(months []MonthAggregate) TrendReport {
	var report TrendReport
	if len(months) == 0 {
		return report
	}

	report.Labels = make([]string, len(months))
	report.CashFlow = make([]CashFlowPoint, len(months))
	report.SavingsRate = make([]RatePoint, len(months))

	catIndex := make(map[string]int)

	var sumIncome, sumExpenses int64
	var sumRate float64

	for i, m := range months {
		totals := m.Summary.Totals
		report.Labels[i] = m.Label
		report.CashFlow[i] = CashFlowPoint{
			Label:    m.Label,
			Income:   totals.CurrentIncome,
			Expenses: totals.CurrentExpenses,
			Net:      totals.CurrentBalance,
		}

		rate := SavingsRate(totals.CurrentIncome, totals.CurrentBalance)
		report.SavingsRate[i] = RatePoint{Label: m.Label, Rate: rate}

		for _, cs := range m.Summary.Categories {
			idx, ok := catIndex[cs.Category]
			if !ok {
				idx = len(report.Categories)
				catIndex[cs.Category] = idx
				report.Categories = append(report.Categories, CategorySeries{
					Category: cs.Category,
					Color:    cs.Color,
					Points:   make([]core.Money, len(months)),
				})
			}
			report.Categories[idx].Points[i] = cs.Actual
		}

		sumIncome += totals.CurrentIncome.Cents
		sumExpenses += totals.CurrentExpenses.Cents
		sumRate += rate
	}

	n := float64(len(months))
	report.Averages = TrendAverages{
		MeanIncome:      float64(sumIncome) / n / 100,
		MeanExpenses:    float64(sumExpenses) / n / 100,
		MeanSavingsRate: sumRate / n,
	}

	return report
}
