// Package worker drains record-change events and mirrors the affected
// rows to the Google Sheets backup.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
)

// Store is the repository slice the worker reads and flags.
type Store interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	GetIncome(ctx context.Context, id int64) (core.Income, error)
	GetMonth(ctx context.Context, id int64) (core.Month, error)
	ListIncomeTypes(ctx context.Context) ([]core.IncomeType, error)
	GetPendingSyncExpenses(ctx context.Context, limit int) ([]core.Expense, error)
	GetPendingSyncIncomes(ctx context.Context, limit int) ([]core.Income, error)
	MarkExpenseSynced(ctx context.Context, id int64) error
	MarkExpenseSyncError(ctx context.Context, id int64) error
	MarkIncomeSynced(ctx context.Context, id int64) error
	MarkIncomeSyncError(ctx context.Context, id int64) error
}

// Backup appends rows to the external spreadsheet.
type Backup interface {
	AppendExpenseRow(ctx context.Context, month core.Month, e core.Expense) error
	AppendIncomeRow(ctx context.Context, month core.Month, in core.Income, typeName string) error
}

// Consumer delivers queue messages. Satisfied by the AMQP client.
type Consumer interface {
	ConsumeWithReconnect(ctx context.Context, handlers amqp.ConsumeHandlers) error
}

type BackupWorker struct {
	store     Store
	backup    Backup
	consumer  Consumer
	batchSize int
	interval  time.Duration
}

func NewBackupWorker(store Store, backup Backup, consumer Consumer, batchSize int, interval time.Duration) *BackupWorker {
	return &BackupWorker{
		store:     store,
		backup:    backup,
		consumer:  consumer,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run blocks until ctx is cancelled. Change events are handled as they
// arrive; a periodic scan catches records whose event was lost.
func (w *BackupWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if w.consumer != nil {
		g.Go(func() error {
			err := w.consumer.ConsumeWithReconnect(ctx, amqp.ConsumeHandlers{
				OnRecordChanged: func(msg *amqp.RecordChangedMessage) error {
					return w.handleRecordChanged(ctx, msg)
				},
				OnMonthCloned: func(msg *amqp.MonthClonedMessage) error {
					return w.handleMonthCloned(ctx, msg)
				},
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := w.ProcessPending(ctx); err != nil {
					slog.ErrorContext(ctx, "Pending scan failed", log.FieldError, err)
				}
			}
		}
	})

	return g.Wait()
}

func (w *BackupWorker) handleRecordChanged(ctx context.Context, msg *amqp.RecordChangedMessage) error {
	switch msg.Kind {
	case amqp.KindExpense:
		return w.syncExpenseByID(ctx, msg.ID)
	case amqp.KindIncome:
		return w.syncIncomeByID(ctx, msg.ID)
	default:
		return fmt.Errorf("unknown record kind %q", msg.Kind)
	}
}

// handleMonthCloned triggers an immediate scan: cloned rows arrive in
// bulk and all start out pending.
func (w *BackupWorker) handleMonthCloned(ctx context.Context, msg *amqp.MonthClonedMessage) error {
	slog.InfoContext(ctx, "Backing up cloned month",
		"source_month_id", msg.SourceMonthID,
		"next_month_id", msg.NextMonthID,
		log.FieldClonedCount, msg.ClonedCount)
	return w.ProcessPending(ctx)
}

// ProcessPending mirrors every pending record up to the batch size.
// Records that fail are flagged and skipped so one bad row cannot
// stall the rest of the batch.
func (w *BackupWorker) ProcessPending(ctx context.Context) error {
	expenses, err := w.store.GetPendingSyncExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("load pending expenses: %w", err)
	}
	incomes, err := w.store.GetPendingSyncIncomes(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("load pending incomes: %w", err)
	}
	if len(expenses) == 0 && len(incomes) == 0 {
		return nil
	}

	synced := 0
	for _, e := range expenses {
		if err := w.syncExpense(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Expense backup failed", log.FieldExpenseID, e.ID, log.FieldError, err)
			continue
		}
		synced++
	}
	for _, in := range incomes {
		if err := w.syncIncome(ctx, in); err != nil {
			slog.ErrorContext(ctx, "Income backup failed", log.FieldIncomeID, in.ID, log.FieldError, err)
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Pending scan finished",
		"pending", len(expenses)+len(incomes),
		"synced", synced)
	return nil
}

// A record deleted between publish and delivery is not an error; the
// backup keeps its old rows and there is nothing new to mirror.
func (w *BackupWorker) syncExpenseByID(ctx context.Context, id int64) error {
	e, err := w.store.GetExpense(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Expense gone before backup, skipping", log.FieldExpenseID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load expense %d: %w", id, err)
	}
	return w.syncExpense(ctx, e)
}

func (w *BackupWorker) syncExpense(ctx context.Context, e core.Expense) error {
	month, err := w.store.GetMonth(ctx, e.MonthID)
	if err != nil {
		return fmt.Errorf("load month %d: %w", e.MonthID, err)
	}

	if err := w.backup.AppendExpenseRow(ctx, month, e); err != nil {
		if markErr := w.store.MarkExpenseSyncError(ctx, e.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to flag expense sync error",
				log.FieldExpenseID, e.ID, log.FieldError, markErr)
		}
		return fmt.Errorf("append expense %d: %w", e.ID, err)
	}

	return w.store.MarkExpenseSynced(ctx, e.ID)
}

func (w *BackupWorker) syncIncomeByID(ctx context.Context, id int64) error {
	in, err := w.store.GetIncome(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Income gone before backup, skipping", log.FieldIncomeID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load income %d: %w", id, err)
	}
	return w.syncIncome(ctx, in)
}

func (w *BackupWorker) syncIncome(ctx context.Context, in core.Income) error {
	month, err := w.store.GetMonth(ctx, in.MonthID)
	if err != nil {
		return fmt.Errorf("load month %d: %w", in.MonthID, err)
	}

	typeName, err := w.incomeTypeName(ctx, in.IncomeTypeID)
	if err != nil {
		return err
	}

	if err := w.backup.AppendIncomeRow(ctx, month, in, typeName); err != nil {
		if markErr := w.store.MarkIncomeSyncError(ctx, in.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to flag income sync error",
				log.FieldIncomeID, in.ID, log.FieldError, markErr)
		}
		return fmt.Errorf("append income %d: %w", in.ID, err)
	}

	return w.store.MarkIncomeSynced(ctx, in.ID)
}

func (w *BackupWorker) incomeTypeName(ctx context.Context, typeID int64) (string, error) {
	types, err := w.store.ListIncomeTypes(ctx)
	if err != nil {
		return "", fmt.Errorf("load income types: %w", err)
	}
	for _, t := range types {
		if t.ID == typeID {
			return t.Name, nil
		}
	}
	return "Unknown", nil
}
