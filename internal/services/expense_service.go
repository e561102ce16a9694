package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// ExpenseStore is the slice of the repository the expense service uses.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context, f storage.ExpenseFilter) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (int64, error)
	DeleteExpense(ctx context.Context, id int64) error
	ReplacePurchases(ctx context.Context, expenseID int64, purchases []core.Purchase) (int64, error)
	GetMonth(ctx context.Context, id int64) (core.Month, error)
}

// ExpenseService orchestrates expense writes: closed-month policy,
// persistence and the backup change event.
type ExpenseService struct {
	store     ExpenseStore
	publisher EventPublisher
}

func NewExpenseService(store ExpenseStore, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{store: store, publisher: publisher}
}

func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := requireOpenMonth(ctx, s.store.GetMonth, e.MonthID); err != nil {
		return core.Expense{}, err
	}

	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	s.publishChange(ctx, created.ID, 1)
	return created, nil
}

func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

func (s *ExpenseService) List(ctx context.Context, f storage.ExpenseFilter) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, f)
}

// Update rewrites the expense's fields. The month assignment is fixed
// at creation; the stored month_id is never touched.
func (s *ExpenseService) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	existing, err := s.store.GetExpense(ctx, e.ID)
	if err != nil {
		return core.Expense{}, err
	}
	if err := requireOpenMonth(ctx, s.store.GetMonth, existing.MonthID); err != nil {
		return core.Expense{}, err
	}

	// While purchase lines exist the actual is derived from them, not
	// client-set. ReplacePurchases is the only way to move it.
	if len(existing.Purchases) > 0 {
		e.Actual = existing.PurchaseTotal()
	}

	version, err := s.store.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.publishChange(ctx, e.ID, version)
	return s.store.GetExpense(ctx, e.ID)
}

func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	existing, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOpenMonth(ctx, s.store.GetMonth, existing.MonthID); err != nil {
		return err
	}
	return s.store.DeleteExpense(ctx, id)
}

// ReplacePurchases swaps the purchase lines and returns the expense
// with its recomputed actual.
func (s *ExpenseService) ReplacePurchases(ctx context.Context, id int64, purchases []core.Purchase) (core.Expense, error) {
	for _, p := range purchases {
		if p.Name == "" {
			return core.Expense{}, fmt.Errorf("purchase name: %w", core.ErrEmptyName)
		}
		if p.Amount.Cents < 0 {
			return core.Expense{}, fmt.Errorf("purchase %q: %w", p.Name, core.ErrInvalidAmount)
		}
	}

	existing, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if err := requireOpenMonth(ctx, s.store.GetMonth, existing.MonthID); err != nil {
		return core.Expense{}, err
	}

	version, err := s.store.ReplacePurchases(ctx, id, purchases)
	if err != nil {
		return core.Expense{}, fmt.Errorf("replace purchases: %w", err)
	}

	s.publishChange(ctx, id, version)
	return s.store.GetExpense(ctx, id)
}

// publishChange emits the backup event. Failures are logged, never
// surfaced: the record is saved locally and sync_status keeps it
// queued for the worker's periodic scan.
func (s *ExpenseService) publishChange(ctx context.Context, id, version int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordChanged(ctx, amqp.KindExpense, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense change",
			log.FieldExpenseID, id,
			"version", version,
			log.FieldError, err)
	}
}
