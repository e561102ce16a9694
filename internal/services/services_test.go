package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
	"bilancio/internal/theme"
)

type recordEvent struct {
	kind    string
	id      int64
	version int64
}

type cloneEvent struct {
	sourceID int64
	nextID   int64
	count    int
}

type fakePublisher struct {
	records []recordEvent
	clones  []cloneEvent
	err     error
}

func (p *fakePublisher) PublishRecordChanged(_ context.Context, kind string, id, version int64) error {
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, recordEvent{kind: kind, id: id, version: version})
	return nil
}

func (p *fakePublisher) PublishMonthCloned(_ context.Context, sourceID, nextID int64, count int) error {
	if p.err != nil {
		return p.err
	}
	p.clones = append(p.clones, cloneEvent{sourceID: sourceID, nextID: nextID, count: count})
	return nil
}

type fakeStore struct {
	months      map[int64]core.Month
	expenses    map[int64]core.Expense
	incomes     map[int64]core.Income
	categories  []core.Category
	incomeTypes []core.IncomeType
	nextID      int64
	cloneResult storage.CloneResult
	cloneErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		months:   make(map[int64]core.Month),
		expenses: make(map[int64]core.Expense),
		incomes:  make(map[int64]core.Income),
		nextID:   1,
	}
}

func (f *fakeStore) addMonth(id int64, closed bool) core.Month {
	m := core.Month{ID: id, Year: 2025, Month: int(id), Closed: closed}
	f.months[id] = m
	return m
}

func (f *fakeStore) GetMonth(_ context.Context, id int64) (core.Month, error) {
	m, ok := f.months[id]
	if !ok {
		return core.Month{}, fmt.Errorf("month %d: %w", id, core.ErrNotFound)
	}
	return m, nil
}

func (f *fakeStore) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	e.ID = f.nextID
	f.nextID++
	f.expenses[e.ID] = e
	return e, nil
}

func (f *fakeStore) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	e, ok := f.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return e, nil
}

func (f *fakeStore) ListExpenses(_ context.Context, filter storage.ExpenseFilter) ([]core.Expense, error) {
	var out []core.Expense
	for _, e := range f.expenses {
		if filter.MonthID == 0 || e.MonthID == filter.MonthID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateExpense(_ context.Context, e core.Expense) (int64, error) {
	existing, ok := f.expenses[e.ID]
	if !ok {
		return 0, fmt.Errorf("expense %d: %w", e.ID, core.ErrNotFound)
	}
	// Like the real store, the row update never touches purchase lines.
	e.MonthID = existing.MonthID
	e.Purchases = existing.Purchases
	f.expenses[e.ID] = e
	return 2, nil
}

func (f *fakeStore) DeleteExpense(_ context.Context, id int64) error {
	if _, ok := f.expenses[id]; !ok {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	delete(f.expenses, id)
	return nil
}

func (f *fakeStore) ReplacePurchases(_ context.Context, id int64, purchases []core.Purchase) (int64, error) {
	e, ok := f.expenses[id]
	if !ok {
		return 0, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	e.Purchases = purchases
	e.Actual = e.PurchaseTotal()
	f.expenses[id] = e
	return 2, nil
}

func (f *fakeStore) CreateIncome(_ context.Context, in core.Income) (core.Income, error) {
	in.ID = f.nextID
	f.nextID++
	f.incomes[in.ID] = in
	return in, nil
}

func (f *fakeStore) GetIncome(_ context.Context, id int64) (core.Income, error) {
	in, ok := f.incomes[id]
	if !ok {
		return core.Income{}, fmt.Errorf("income %d: %w", id, core.ErrNotFound)
	}
	return in, nil
}

func (f *fakeStore) ListIncomes(_ context.Context, filter storage.IncomeFilter) ([]core.Income, error) {
	var out []core.Income
	for _, in := range f.incomes {
		if filter.MonthID == 0 || in.MonthID == filter.MonthID {
			out = append(out, in)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateIncome(_ context.Context, in core.Income) (int64, error) {
	existing, ok := f.incomes[in.ID]
	if !ok {
		return 0, fmt.Errorf("income %d: %w", in.ID, core.ErrNotFound)
	}
	in.MonthID = existing.MonthID
	f.incomes[in.ID] = in
	return 2, nil
}

func (f *fakeStore) DeleteIncome(_ context.Context, id int64) error {
	if _, ok := f.incomes[id]; !ok {
		return fmt.Errorf("income %d: %w", id, core.ErrNotFound)
	}
	delete(f.incomes, id)
	return nil
}

func (f *fakeStore) CreateMonth(_ context.Context, year, month int) (core.Month, error) {
	m := core.Month{ID: f.nextID, Year: year, Month: month}
	f.nextID++
	f.months[m.ID] = m
	return m, nil
}

func (f *fakeStore) GetMonthByYearMonth(_ context.Context, year, month int) (core.Month, error) {
	for _, m := range f.months {
		if m.Year == year && m.Month == month {
			return m, nil
		}
	}
	return core.Month{}, core.ErrNotFound
}

func (f *fakeStore) ListMonths(_ context.Context) ([]core.Month, error) {
	var out []core.Month
	for _, m := range f.months {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (f *fakeStore) ListRecentMonths(ctx context.Context, _ int) ([]core.Month, error) {
	return f.ListMonths(ctx)
}

func (f *fakeStore) ListCategories(_ context.Context) ([]core.Category, error) {
	return f.categories, nil
}

func (f *fakeStore) ListIncomeTypes(_ context.Context) ([]core.IncomeType, error) {
	return f.incomeTypes, nil
}

func (f *fakeStore) SetMonthClosed(_ context.Context, id int64, closed bool) error {
	m, ok := f.months[id]
	if !ok {
		return fmt.Errorf("month %d: %w", id, core.ErrNotFound)
	}
	m.Closed = closed
	f.months[id] = m
	return nil
}

func (f *fakeStore) CloneMonthToNext(_ context.Context, sourceID int64) (storage.CloneResult, error) {
	if f.cloneErr != nil {
		return storage.CloneResult{}, f.cloneErr
	}
	if _, ok := f.months[sourceID]; !ok {
		return storage.CloneResult{}, core.ErrNotFound
	}
	return f.cloneResult, nil
}

func validExpense(monthID int64) core.Expense {
	return core.Expense{
		MonthID:  monthID,
		Name:     "Groceries",
		Category: "Food",
		Period:   "Monthly",
		Budget:   core.Money{Cents: 40000},
	}
}

func TestExpenseServiceCreatePublishesChange(t *testing.T) {
	store := newFakeStore()
	store.addMonth(1, false)
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub)

	created, err := svc.Create(context.Background(), validExpense(1))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	require.Len(t, pub.records, 1)
	assert.Equal(t, amqp.KindExpense, pub.records[0].kind)
	assert.Equal(t, created.ID, pub.records[0].id)
	assert.Equal(t, int64(1), pub.records[0].version)
}

func TestExpenseServiceUpdateKeepsActualDerivedFromPurchases(t *testing.T) {
	store := newFakeStore()
	store.addMonth(1, false)
	svc := NewExpenseService(store, &fakePublisher{})
	ctx := context.Background()

	e, err := svc.Create(ctx, validExpense(1))
	require.NoError(t, err)
	_, err = svc.ReplacePurchases(ctx, e.ID, []core.Purchase{
		{Name: "Market", Amount: core.Money{Cents: 1000}},
		{Name: "Bakery", Amount: core.Money{Cents: 2000}},
	})
	require.NoError(t, err)

	// A plain update may not pull the actual away from the line sum.
	e.Notes = "weekly run"
	e.Actual = core.Money{Cents: 99900}
	updated, err := svc.Update(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), updated.Actual.Cents)
	assert.Equal(t, "weekly run", updated.Notes)
	require.Len(t, updated.Purchases, 2)

	// Without purchases the client-sent actual stands.
	plain, err := svc.Create(ctx, validExpense(1))
	require.NoError(t, err)
	plain.Actual = core.Money{Cents: 500}
	updated, err = svc.Update(ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, int64(500), updated.Actual.Cents)
}

func TestExpenseServiceClosedMonthRejectsWrites(t *testing.T) {
	store := newFakeStore()
	store.addMonth(1, false)
	store.addMonth(2, true)
	svc := NewExpenseService(store, &fakePublisher{})
	ctx := context.Background()

	_, err := svc.Create(ctx, validExpense(2))
	assert.ErrorIs(t, err, core.ErrMonthClosed)

	// Seed into the open month, then close it.
	e, err := svc.Create(ctx, validExpense(1))
	require.NoError(t, err)
	require.NoError(t, store.SetMonthClosed(ctx, 1, true))

	_, err = svc.Update(ctx, e)
	assert.ErrorIs(t, err, core.ErrMonthClosed)

	_, err = svc.ReplacePurchases(ctx, e.ID, []core.Purchase{
		{Name: "Market", Amount: core.Money{Cents: 100}},
	})
	assert.ErrorIs(t, err, core.ErrMonthClosed)

	assert.ErrorIs(t, svc.Delete(ctx, e.ID), core.ErrMonthClosed)
}

func TestExpenseServiceValidation(t *testing.T) {
	store := newFakeStore()
	store.addMonth(1, false)
	svc := NewExpenseService(store, &fakePublisher{})
	ctx := context.Background()

	bad := validExpense(1)
	bad.Name = "  "
	_, err := svc.Create(ctx, bad)
	assert.ErrorIs(t, err, core.ErrEmptyName)
	assert.Empty(t, store.expenses)

	e, err := svc.Create(ctx, validExpense(1))
	require.NoError(t, err)

	_, err = svc.ReplacePurchases(ctx, e.ID, []core.Purchase{
		{Name: "Bad", Amount: core.Money{Cents: -5}},
	})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestExpenseServicePublishFailureIsNotFatal(t *testing.T) {
	store := newFakeStore()
	store.addMonth(1, false)
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewExpenseService(store, pub)

	created, err := svc.Create(context.Background(), validExpense(1))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
}

func TestExpenseServiceNilPublisher(t *testing.T) {
	store := newFakeStore()
	store.addMonth(1, false)
	svc := NewExpenseService(store, nil)

	_, err := svc.Create(context.Background(), validExpense(1))
	require.NoError(t, err)
}

func TestIncomeServiceCreateAndClosedMonth(t *testing.T) {
	store := newFakeStore()
	store.addMonth(1, false)
	store.addMonth(2, true)
	pub := &fakePublisher{}
	svc := NewIncomeService(store, pub)
	ctx := context.Background()

	in, err := svc.Create(ctx, core.Income{
		MonthID: 1, IncomeTypeID: 5, Period: "Monthly",
		Budget: core.Money{Cents: 250000},
	})
	require.NoError(t, err)
	require.Len(t, pub.records, 1)
	assert.Equal(t, amqp.KindIncome, pub.records[0].kind)
	assert.Equal(t, in.ID, pub.records[0].id)

	_, err = svc.Create(ctx, core.Income{
		MonthID: 2, IncomeTypeID: 5, Period: "Monthly",
	})
	assert.ErrorIs(t, err, core.ErrMonthClosed)
}

func TestMonthServiceCreateValidatesRange(t *testing.T) {
	store := newFakeStore()
	svc := NewMonthService(store, &fakePublisher{})
	ctx := context.Background()

	_, err := svc.Create(ctx, 2025, 13)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
	assert.Empty(t, store.months)

	_, err = svc.Create(ctx, 1800, 5)
	assert.ErrorIs(t, err, core.ErrInvalidYear)

	m, err := svc.Create(ctx, 2025, 5)
	require.NoError(t, err)
	assert.Equal(t, "May 2025", m.DisplayName())
}

func TestMonthServiceCloneToNextPublishes(t *testing.T) {
	store := newFakeStore()
	store.addMonth(1, false)
	store.cloneResult = storage.CloneResult{
		NextMonth:   core.Month{ID: 2, Year: 2025, Month: 2},
		ClonedCount: 7,
	}
	pub := &fakePublisher{}
	svc := NewMonthService(store, pub)

	result, err := svc.CloneToNext(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 7, result.ClonedCount)

	require.Len(t, pub.clones, 1)
	assert.Equal(t, cloneEvent{sourceID: 1, nextID: 2, count: 7}, pub.clones[0])
}

func TestReportServiceMonthSummary(t *testing.T) {
	store := newFakeStore()
	store.addMonth(1, false)
	store.categories = []core.Category{{ID: 1, Name: "Food", Color: "#e57373"}}
	store.incomeTypes = []core.IncomeType{{ID: 10, Name: "Salary", Color: "#4caf50"}}
	store.expenses[100] = core.Expense{
		ID: 100, MonthID: 1, Name: "Groceries", Category: "Food", Period: "Monthly",
		Budget: core.Money{Cents: 50000}, Actual: core.Money{Cents: 60000},
	}
	store.expenses[101] = core.Expense{
		ID: 101, MonthID: 99, Name: "Elsewhere", Category: "Food", Period: "Monthly",
		Budget: core.Money{Cents: 11111}, Actual: core.Money{Cents: 11111},
	}
	store.incomes[200] = core.Income{
		ID: 200, MonthID: 1, IncomeTypeID: 10, Period: "Monthly",
		Budget: core.Money{Cents: 250000}, Actual: core.Money{Cents: 250000},
	}
	svc := NewReportService(store, theme.Resolve("light"))

	summary, err := svc.MonthSummary(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, summary.Categories, 1)
	assert.Equal(t, "Food", summary.Categories[0].Category)
	assert.Equal(t, "#e57373", summary.Categories[0].Color)
	assert.True(t, summary.Categories[0].OverBudget)

	require.Len(t, summary.IncomeTypes, 1)
	assert.Equal(t, "Salary", summary.IncomeTypes[0].Name)

	assert.Equal(t, int64(50000), summary.Totals.BudgetedExpenses.Cents)
	assert.Equal(t, int64(60000), summary.Totals.CurrentExpenses.Cents)
	assert.Equal(t, int64(190000), summary.Totals.CurrentBalance.Cents)

	_, err = svc.MonthSummary(context.Background(), 404)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReportServiceTrends(t *testing.T) {
	store := newFakeStore()
	jan := store.addMonth(1, false)
	feb := store.addMonth(2, false)
	store.categories = []core.Category{{ID: 1, Name: "Food", Color: "#e57373"}}
	store.incomeTypes = []core.IncomeType{{ID: 10, Name: "Salary", Color: "#4caf50"}}
	store.expenses[100] = core.Expense{
		ID: 100, MonthID: jan.ID, Name: "Groceries", Category: "Food", Period: "Monthly",
		Actual: core.Money{Cents: 30000},
	}
	store.incomes[200] = core.Income{
		ID: 200, MonthID: feb.ID, IncomeTypeID: 10, Period: "Monthly",
		Actual: core.Money{Cents: 250000},
	}
	svc := NewReportService(store, theme.Resolve("light"))

	report, err := svc.Trends(context.Background(), 12)
	require.NoError(t, err)

	require.Equal(t, []string{"January 2025", "February 2025"}, report.Labels)
	assert.Equal(t, int64(30000), report.CashFlow[0].Expenses.Cents)
	assert.Equal(t, int64(250000), report.CashFlow[1].Income.Cents)

	// Category series are zero-filled across the window.
	require.Len(t, report.Categories, 1)
	require.Len(t, report.Categories[0].Points, 2)
	assert.Equal(t, int64(30000), report.Categories[0].Points[0].Cents)
	assert.Equal(t, int64(0), report.Categories[0].Points[1].Cents)
}

func TestMonthServiceCloneErrorDoesNotPublish(t *testing.T) {
	store := newFakeStore()
	store.addMonth(1, false)
	store.cloneErr = core.ErrMonthClosed
	pub := &fakePublisher{}
	svc := NewMonthService(store, pub)

	_, err := svc.CloneToNext(context.Background(), 1)
	assert.ErrorIs(t, err, core.ErrMonthClosed)
	assert.Empty(t, pub.clones)
}
