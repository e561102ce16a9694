package storage

import (
	"context"
	"fmt"

	"bilancio/internal/core"
)

// Pending records are those whose latest version has not yet been
// mirrored to the backup sheet. The worker drains them in id order so
// retries stay deterministic.

func (r *SQLiteRepository) GetPendingSyncExpenses(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, month_id, name, category, period, budget_cents, actual_cents, notes
		 FROM expenses WHERE sync_status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.ID, &e.MonthID, &e.Name, &e.Category, &e.Period,
			&e.Budget.Cents, &e.Actual.Cents, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan pending expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *SQLiteRepository) GetPendingSyncIncomes(ctx context.Context, limit int) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, month_id, income_type_id, period, budget_cents, actual_cents
		 FROM incomes WHERE sync_status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending incomes: %w", err)
	}
	defer rows.Close()

	var incomes []core.Income
	for rows.Next() {
		var in core.Income
		if err := rows.Scan(&in.ID, &in.MonthID, &in.IncomeTypeID, &in.Period,
			&in.Budget.Cents, &in.Actual.Cents); err != nil {
			return nil, fmt.Errorf("scan pending income: %w", err)
		}
		incomes = append(incomes, in)
	}
	return incomes, rows.Err()
}

func (r *SQLiteRepository) markSync(ctx context.Context, table string, id int64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET sync_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id)
	if err != nil {
		return fmt.Errorf("mark %s %s: %w", table, status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark %s %s: %w", table, status, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %d: %w", table, id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) MarkExpenseSynced(ctx context.Context, id int64) error {
	return r.markSync(ctx, "expenses", id, "synced")
}

func (r *SQLiteRepository) MarkExpenseSyncError(ctx context.Context, id int64) error {
	return r.markSync(ctx, "expenses", id, "error")
}

func (r *SQLiteRepository) MarkIncomeSynced(ctx context.Context, id int64) error {
	return r.markSync(ctx, "incomes", id, "synced")
}

func (r *SQLiteRepository) MarkIncomeSyncError(ctx context.Context, id int64) error {
	return r.markSync(ctx, "incomes", id, "error")
}
