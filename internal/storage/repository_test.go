package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedMonth(t *testing.T, repo *SQLiteRepository, year, month int) core.Month {
	t.Helper()
	m, err := repo.CreateMonth(context.Background(), year, month)
	require.NoError(t, err)
	return m
}

func TestMonthLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := seedMonth(t, repo, 2025, 3)
	assert.Equal(t, "March 2025", m.DisplayName())

	_, err := repo.CreateMonth(ctx, 2025, 3)
	assert.ErrorIs(t, err, core.ErrConflict)

	got, err := repo.GetMonthByYearMonth(ctx, 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.False(t, got.Closed)

	require.NoError(t, repo.SetMonthClosed(ctx, m.ID, true))
	got, err = repo.GetMonth(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.Closed)

	_, err = repo.GetMonth(ctx, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListRecentMonthsOrder(t *testing.T) {
	repo := newTestRepo(t)

	seedMonth(t, repo, 2024, 11)
	seedMonth(t, repo, 2024, 12)
	seedMonth(t, repo, 2025, 1)
	seedMonth(t, repo, 2025, 2)

	months, err := repo.ListRecentMonths(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, months, 3)

	// Most recent three, oldest first.
	assert.Equal(t, "December 2024", months[0].DisplayName())
	assert.Equal(t, "January 2025", months[1].DisplayName())
	assert.Equal(t, "February 2025", months[2].DisplayName())
}

func TestExpensePurchasesDriveActual(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	m := seedMonth(t, repo, 2025, 4)

	e, err := repo.CreateExpense(ctx, core.Expense{
		MonthID:  m.ID,
		Name:     "Groceries",
		Category: "Food",
		Period:   "Monthly",
		Budget:   core.Money{Cents: 40000},
		Purchases: []core.Purchase{
			{Name: "Market", Amount: core.Money{Cents: 12550}, Date: time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)},
			{Name: "Bakery", Amount: core.Money{Cents: 780}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(13330), e.Actual.Cents)

	got, err := repo.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, got.Purchases, 2)
	assert.Equal(t, int64(13330), got.Actual.Cents)

	version, err := repo.ReplacePurchases(ctx, e.ID, []core.Purchase{
		{Name: "Market", Amount: core.Money{Cents: 9900}},
	})
	require.NoError(t, err)
	// Creation with purchases is one write at version 1; the replace
	// is the first bump.
	assert.Equal(t, int64(2), version)

	got, err = repo.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, got.Purchases, 1)
	assert.Equal(t, int64(9900), got.Actual.Cents)

	require.NoError(t, repo.DeleteExpense(ctx, e.ID))
	_, err = repo.GetExpense(ctx, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListExpensesFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	m1 := seedMonth(t, repo, 2025, 5)
	m2 := seedMonth(t, repo, 2025, 6)

	mk := func(monthID int64, name, category, period string) {
		_, err := repo.CreateExpense(ctx, core.Expense{
			MonthID: monthID, Name: name, Category: category, Period: period,
			Budget: core.Money{Cents: 1000},
		})
		require.NoError(t, err)
	}
	mk(m1.ID, "Rent", "Housing", "Monthly")
	mk(m1.ID, "Netflix", "Leisure", "Monthly")
	mk(m2.ID, "Rent", "Housing", "Monthly")

	byMonth, err := repo.ListExpenses(ctx, ExpenseFilter{MonthID: m1.ID})
	require.NoError(t, err)
	assert.Len(t, byMonth, 2)

	byCategory, err := repo.ListExpenses(ctx, ExpenseFilter{MonthID: m1.ID, Category: "Housing"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Rent", byCategory[0].Name)
}

func TestCloneMonthToNext(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	src := seedMonth(t, repo, 2024, 12)

	it, err := repo.CreateIncomeType(ctx, core.IncomeType{Name: "Salary", Color: "#4caf50"})
	require.NoError(t, err)

	_, err = repo.CreateExpense(ctx, core.Expense{
		MonthID: src.ID, Name: "Rent", Category: "Housing", Period: "Monthly",
		Budget: core.Money{Cents: 120000},
		Purchases: []core.Purchase{
			{Name: "December rent", Amount: core.Money{Cents: 120000}},
		},
		Notes: "lease renews in June",
	})
	require.NoError(t, err)

	_, err = repo.CreateIncome(ctx, core.Income{
		MonthID: src.ID, IncomeTypeID: it.ID, Period: "Monthly",
		Budget: core.Money{Cents: 250000}, Actual: core.Money{Cents: 251000},
	})
	require.NoError(t, err)

	result, err := repo.CloneMonthToNext(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 2025, result.NextMonth.Year)
	assert.Equal(t, 1, result.NextMonth.Month)
	assert.Equal(t, 2, result.ClonedCount)

	expenses, err := repo.ListExpenses(ctx, ExpenseFilter{MonthID: result.NextMonth.ID})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, int64(120000), expenses[0].Budget.Cents)
	assert.Equal(t, int64(0), expenses[0].Actual.Cents)
	assert.Empty(t, expenses[0].Purchases)
	assert.Equal(t, "lease renews in June", expenses[0].Notes)

	incomes, err := repo.ListIncomes(ctx, IncomeFilter{MonthID: result.NextMonth.ID})
	require.NoError(t, err)
	require.Len(t, incomes, 1)
	assert.Equal(t, int64(250000), incomes[0].Budget.Cents)
	assert.Equal(t, int64(0), incomes[0].Actual.Cents)

	// Cloning again targets the existing destination month.
	again, err := repo.CloneMonthToNext(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, result.NextMonth.ID, again.NextMonth.ID)

	require.NoError(t, repo.SetMonthClosed(ctx, result.NextMonth.ID, true))
	_, err = repo.CloneMonthToNext(ctx, src.ID)
	assert.ErrorIs(t, err, core.ErrMonthClosed)

	_, err = repo.CloneMonthToNext(ctx, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMetadataDeleteRejectedWhileInUse(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	m := seedMonth(t, repo, 2025, 7)

	cat, err := repo.CreateCategory(ctx, core.Category{Name: "Transport", Color: "#2196f3"})
	require.NoError(t, err)
	per, err := repo.CreatePeriod(ctx, core.Period{Name: "Monthly", Color: "#fff176"})
	require.NoError(t, err)
	it, err := repo.CreateIncomeType(ctx, core.IncomeType{Name: "Salary", Color: "#4caf50"})
	require.NoError(t, err)

	e, err := repo.CreateExpense(ctx, core.Expense{
		MonthID: m.ID, Name: "Bus pass", Category: cat.Name, Period: per.Name,
		Budget: core.Money{Cents: 5000},
	})
	require.NoError(t, err)
	in, err := repo.CreateIncome(ctx, core.Income{
		MonthID: m.ID, IncomeTypeID: it.ID, Period: per.Name,
		Budget: core.Money{Cents: 100000},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.DeleteCategory(ctx, cat.ID), core.ErrConflict)
	assert.ErrorIs(t, repo.DeletePeriod(ctx, per.ID), core.ErrConflict)
	assert.ErrorIs(t, repo.DeleteIncomeType(ctx, it.ID), core.ErrConflict)

	require.NoError(t, repo.DeleteExpense(ctx, e.ID))
	require.NoError(t, repo.DeleteCategory(ctx, cat.ID))
	assert.ErrorIs(t, repo.DeletePeriod(ctx, per.ID), core.ErrConflict)

	require.NoError(t, repo.DeleteIncome(ctx, in.ID))
	require.NoError(t, repo.DeletePeriod(ctx, per.ID))
	require.NoError(t, repo.DeleteIncomeType(ctx, it.ID))
}

func TestMetadataUniqueNames(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateCategory(ctx, core.Category{Name: "Food", Color: "#e57373"})
	require.NoError(t, err)
	_, err = repo.CreateCategory(ctx, core.Category{Name: "Food", Color: "#000000"})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestSyncStatusTransitions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	m := seedMonth(t, repo, 2025, 8)

	e, err := repo.CreateExpense(ctx, core.Expense{
		MonthID: m.ID, Name: "Gym", Category: "Health", Period: "Monthly",
		Budget: core.Money{Cents: 3000},
	})
	require.NoError(t, err)

	pending, err := repo.GetPendingSyncExpenses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, e.ID, pending[0].ID)

	require.NoError(t, repo.MarkExpenseSynced(ctx, e.ID))
	pending, err = repo.GetPendingSyncExpenses(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Updating a record queues it again and bumps the version.
	e.Budget = core.Money{Cents: 3500}
	version, err := repo.UpdateExpense(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	pending, err = repo.GetPendingSyncExpenses(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, repo.MarkExpenseSyncError(ctx, e.ID))
	pending, err = repo.GetPendingSyncExpenses(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
