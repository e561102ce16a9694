package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/core"
	"bilancio/internal/reports"
	"bilancio/internal/storage"
	"bilancio/internal/theme"
)

type ReportStore interface {
	GetMonth(ctx context.Context, id int64) (core.Month, error)
	ListRecentMonths(ctx context.Context, n int) ([]core.Month, error)
	ListExpenses(ctx context.Context, f storage.ExpenseFilter) ([]core.Expense, error)
	ListIncomes(ctx context.Context, f storage.IncomeFilter) ([]core.Income, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	ListIncomeTypes(ctx context.Context) ([]core.IncomeType, error)
}

// ReportService assembles summaries and trends from raw records on
// every call. Derived data is never written back.
type ReportService struct {
	store ReportStore
	pal   theme.Palette
}

func NewReportService(store ReportStore, pal theme.Palette) *ReportService {
	return &ReportService{store: store, pal: pal}
}

// MonthSummary aggregates one month. The four reads are independent
// and fetched concurrently.
func (s *ReportService) MonthSummary(ctx context.Context, monthID int64) (reports.MonthSummary, error) {
	if _, err := s.store.GetMonth(ctx, monthID); err != nil {
		return reports.MonthSummary{}, err
	}

	var (
		expenses    []core.Expense
		incomes     []core.Income
		categories  []core.Category
		incomeTypes []core.IncomeType
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		expenses, err = s.store.ListExpenses(gctx, storage.ExpenseFilter{MonthID: monthID})
		return err
	})
	g.Go(func() (err error) {
		incomes, err = s.store.ListIncomes(gctx, storage.IncomeFilter{MonthID: monthID})
		return err
	})
	g.Go(func() (err error) {
		categories, err = s.store.ListCategories(gctx)
		return err
	})
	g.Go(func() (err error) {
		incomeTypes, err = s.store.ListIncomeTypes(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return reports.MonthSummary{}, fmt.Errorf("load month %d records: %w", monthID, err)
	}

	return reports.Aggregate(expenses, incomes, categories, incomeTypes, s.pal), nil
}

// Trends summarizes the most recent window months, oldest first.
func (s *ReportService) Trends(ctx context.Context, window int) (reports.TrendReport, error) {
	months, err := s.store.ListRecentMonths(ctx, window)
	if err != nil {
		return reports.TrendReport{}, fmt.Errorf("load recent months: %w", err)
	}

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return reports.TrendReport{}, fmt.Errorf("load categories: %w", err)
	}
	incomeTypes, err := s.store.ListIncomeTypes(ctx)
	if err != nil {
		return reports.TrendReport{}, fmt.Errorf("load income types: %w", err)
	}

	aggs := make([]reports.MonthAggregate, len(months))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range months {
		g.Go(func() error {
			expenses, err := s.store.ListExpenses(gctx, storage.ExpenseFilter{MonthID: m.ID})
			if err != nil {
				return err
			}
			incomes, err := s.store.ListIncomes(gctx, storage.IncomeFilter{MonthID: m.ID})
			if err != nil {
				return err
			}
			aggs[i] = reports.MonthAggregate{
				Label:   m.DisplayName(),
				Year:    m.Year,
				Month:   m.Month,
				Summary: reports.Aggregate(expenses, incomes, categories, incomeTypes, s.pal),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports.TrendReport{}, fmt.Errorf("aggregate trend window: %w", err)
	}

	return reports.ComposeTrends(aggs), nil
}
