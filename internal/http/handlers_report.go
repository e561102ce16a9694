package http

import (
	"fmt"
	"net/http"
	"strconv"

	"bilancio/internal/charts"
	"bilancio/internal/reports"
)

type categorySummaryJSON struct {
	Category   string    `json:"category"`
	Color      string    `json:"color,omitempty"`
	Budget     moneyJSON `json:"budget"`
	Actual     moneyJSON `json:"actual"`
	OverBudget bool      `json:"over_budget"`
}

type incomeTypeSummaryJSON struct {
	IncomeTypeID int64     `json:"income_type_id"`
	Name         string    `json:"name"`
	Color        string    `json:"color,omitempty"`
	Budget       moneyJSON `json:"budget"`
	Actual       moneyJSON `json:"actual"`
}

type summaryTotalsJSON struct {
	BudgetedExpenses moneyJSON `json:"budgeted_expenses"`
	CurrentExpenses  moneyJSON `json:"current_expenses"`
	BudgetedIncome   moneyJSON `json:"budgeted_income"`
	CurrentIncome    moneyJSON `json:"current_income"`
	BudgetedBalance  moneyJSON `json:"budgeted_balance"`
	CurrentBalance   moneyJSON `json:"current_balance"`
}

type summaryResponse struct {
	Categories  []categorySummaryJSON   `json:"categories"`
	IncomeTypes []incomeTypeSummaryJSON `json:"income_types"`
	Totals      summaryTotalsJSON       `json:"totals"`
}

func toSummaryResponse(s reports.MonthSummary) summaryResponse {
	out := summaryResponse{
		Categories:  make([]categorySummaryJSON, 0, len(s.Categories)),
		IncomeTypes: make([]incomeTypeSummaryJSON, 0, len(s.IncomeTypes)),
		Totals: summaryTotalsJSON{
			BudgetedExpenses: toMoneyJSON(s.Totals.BudgetedExpenses),
			CurrentExpenses:  toMoneyJSON(s.Totals.CurrentExpenses),
			BudgetedIncome:   toMoneyJSON(s.Totals.BudgetedIncome),
			CurrentIncome:    toMoneyJSON(s.Totals.CurrentIncome),
			BudgetedBalance:  toMoneyJSON(s.Totals.BudgetedBalance),
			CurrentBalance:   toMoneyJSON(s.Totals.CurrentBalance),
		},
	}
	for _, c := range s.Categories {
		out.Categories = append(out.Categories, categorySummaryJSON{
			Category:   c.Category,
			Color:      c.Color,
			Budget:     toMoneyJSON(c.Budget),
			Actual:     toMoneyJSON(c.Actual),
			OverBudget: c.OverBudget,
		})
	}
	for _, it := range s.IncomeTypes {
		out.IncomeTypes = append(out.IncomeTypes, incomeTypeSummaryJSON{
			IncomeTypeID: it.IncomeTypeID,
			Name:         it.Name,
			Color:        it.Color,
			Budget:       toMoneyJSON(it.Budget),
			Actual:       toMoneyJSON(it.Actual),
		})
	}
	return out
}

type cashFlowPointJSON struct {
	Label    string    `json:"label"`
	Income   moneyJSON `json:"income"`
	Expenses moneyJSON `json:"expenses"`
	Net      moneyJSON `json:"net"`
}

type categorySeriesJSON struct {
	Category string      `json:"category"`
	Color    string      `json:"color,omitempty"`
	Points   []moneyJSON `json:"points"`
}

type ratePointJSON struct {
	Label string  `json:"label"`
	Rate  float64 `json:"rate"`
}

type trendAveragesJSON struct {
	MeanIncome      float64 `json:"mean_income"`
	MeanExpenses    float64 `json:"mean_expenses"`
	MeanSavingsRate float64 `json:"mean_savings_rate"`
}

type trendsResponse struct {
	Labels      []string             `json:"labels"`
	CashFlow    []cashFlowPointJSON  `json:"cash_flow"`
	Categories  []categorySeriesJSON `json:"categories"`
	SavingsRate []ratePointJSON      `json:"savings_rate"`
	Averages    trendAveragesJSON    `json:"averages"`
}

func toTrendsResponse(t reports.TrendReport) trendsResponse {
	out := trendsResponse{
		Labels:      t.Labels,
		CashFlow:    make([]cashFlowPointJSON, 0, len(t.CashFlow)),
		Categories:  make([]categorySeriesJSON, 0, len(t.Categories)),
		SavingsRate: make([]ratePointJSON, 0, len(t.SavingsRate)),
		Averages: trendAveragesJSON{
			MeanIncome:      t.Averages.MeanIncome,
			MeanExpenses:    t.Averages.MeanExpenses,
			MeanSavingsRate: t.Averages.MeanSavingsRate,
		},
	}
	for _, p := range t.CashFlow {
		out.CashFlow = append(out.CashFlow, cashFlowPointJSON{
			Label:    p.Label,
			Income:   toMoneyJSON(p.Income),
			Expenses: toMoneyJSON(p.Expenses),
			Net:      toMoneyJSON(p.Net),
		})
	}
	for _, c := range t.Categories {
		series := categorySeriesJSON{
			Category: c.Category,
			Color:    c.Color,
			Points:   make([]moneyJSON, 0, len(c.Points)),
		}
		for _, p := range c.Points {
			series.Points = append(series.Points, toMoneyJSON(p))
		}
		out.Categories = append(out.Categories, series)
	}
	for _, p := range t.SavingsRate {
		out.SavingsRate = append(out.SavingsRate, ratePointJSON{Label: p.Label, Rate: p.Rate})
	}
	return out
}

// monthSummary serves monthly summaries through the cache.
func (s *Server) monthSummary(r *http.Request, monthID int64) (reports.MonthSummary, error) {
	key := summaryCacheKey(monthID)
	if cached, ok := s.summaryCache.Get(key); ok {
		return cached, nil
	}

	summary, err := s.reports.MonthSummary(r.Context(), monthID)
	if err != nil {
		return reports.MonthSummary{}, err
	}
	s.summaryCache.Set(key, summary)
	return summary, nil
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	monthID, err := queryInt64(r, "month_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if monthID <= 0 {
		writeError(w, r, fmt.Errorf("month_id is required: %w", errBadRequest))
		return
	}

	summary, err := s.monthSummary(r, monthID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toSummaryResponse(summary))
}

// handleCategoriesSummary serves only the per-category slice of the
// month summary. Same computation and cache entry as the full report.
func (s *Server) handleCategoriesSummary(w http.ResponseWriter, r *http.Request) {
	monthID, err := queryInt64(r, "month_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if monthID <= 0 {
		writeError(w, r, fmt.Errorf("month_id is required: %w", errBadRequest))
		return
	}

	summary, err := s.monthSummary(r, monthID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toSummaryResponse(summary).Categories)
}

// allowedTrendWindows are the month counts a trend report accepts.
var allowedTrendWindows = map[int]bool{6: true, 12: true, 18: true, 24: true}

func (s *Server) trendWindowFrom(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return s.trendWindow, nil
	}
	window, err := strconv.Atoi(raw)
	if err != nil || !allowedTrendWindows[window] {
		return 0, fmt.Errorf("window must be one of 6, 12, 18, 24: %w", errBadRequest)
	}
	return window, nil
}

func (s *Server) trendReport(r *http.Request, window int) (reports.TrendReport, error) {
	key := trendsCacheKey(window)
	if cached, ok := s.trendsCache.Get(key); ok {
		return cached, nil
	}

	report, err := s.reports.Trends(r.Context(), window)
	if err != nil {
		return reports.TrendReport{}, err
	}
	s.trendsCache.Set(key, report)
	return report, nil
}

func (s *Server) handleReportTrends(w http.ResponseWriter, r *http.Request) {
	window, err := s.trendWindowFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.trendReport(r, window)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toTrendsResponse(report))
}

func (s *Server) handleReportTrendsChart(w http.ResponseWriter, r *http.Request) {
	window, err := s.trendWindowFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.trendReport(r, window)
	if err != nil {
		writeError(w, r, err)
		return
	}

	png, err := charts.CashFlowPNG(report, s.pal)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
