package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// ExpenseFilter narrows ListExpenses. Zero values mean "no filter".
type ExpenseFilter struct {
	MonthID  int64
	Period   string
	Category string
}

// CreateExpense inserts the expense and its purchase lines in one
// transaction, so a failed purchase insert never leaves a bare expense
// row behind. The new row stays at version 1 either way.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin expense transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (month_id, name, category, period, budget_cents, actual_cents, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.MonthID, e.Name, e.Category, e.Period, e.Budget.Cents, e.Actual.Cents, e.Notes)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense id: %w", err)
	}
	e.ID = id

	if len(e.Purchases) > 0 {
		total, err := insertPurchases(ctx, tx, id, e.Purchases)
		if err != nil {
			return core.Expense{}, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE expenses SET actual_cents = ? WHERE id = ?`, total, id); err != nil {
			return core.Expense{}, fmt.Errorf("set expense actual: %w", err)
		}
		e.Actual = core.Money{Cents: total}
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		log.FieldExpenseID, e.ID,
		log.FieldMonthID, e.MonthID,
		log.FieldCategory, e.Category,
		log.FieldBudgetCents, e.Budget.Cents,
		log.FieldActualCents, e.Actual.Cents)

	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, month_id, name, category, period, budget_cents, actual_cents, notes
		 FROM expenses WHERE id = ?`, id)

	var e core.Expense
	err := row.Scan(&e.ID, &e.MonthID, &e.Name, &e.Category, &e.Period,
		&e.Budget.Cents, &e.Actual.Cents, &e.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	purchases, err := r.loadPurchases(ctx, []int64{id})
	if err != nil {
		return core.Expense{}, err
	}
	e.Purchases = purchases[id]
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT id, month_id, name, category, period, budget_cents, actual_cents, notes
	          FROM expenses WHERE 1=1`
	var args []any
	if f.MonthID != 0 {
		query += ` AND month_id = ?`
		args = append(args, f.MonthID)
	}
	if f.Period != "" {
		query += ` AND period = ?`
		args = append(args, f.Period)
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	var ids []int64
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.ID, &e.MonthID, &e.Name, &e.Category, &e.Period,
			&e.Budget.Cents, &e.Actual.Cents, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	if len(ids) > 0 {
		purchases, err := r.loadPurchases(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range expenses {
			expenses[i].Purchases = purchases[expenses[i].ID]
		}
	}

	return expenses, nil
}

// UpdateExpense rewrites the expense row, bumps its version and queues
// it for backup. The new version is returned for the change event.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE expenses
		 SET name = ?, category = ?, period = ?, budget_cents = ?, actual_cents = ?, notes = ?,
		     version = version + 1, sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING version`,
		e.Name, e.Category, e.Period, e.Budget.Cents, e.Actual.Cents, e.Notes, e.ID).
		Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("expense %d: %w", e.ID, core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("update expense: %w", err)
	}
	return version, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id)
	return nil
}

// ReplacePurchases swaps the expense's purchase line items and keeps
// the invariant actual = sum(purchases) inside one transaction.
func (r *SQLiteRepository) ReplacePurchases(ctx context.Context, expenseID int64, purchases []core.Purchase) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purchases transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM purchases WHERE expense_id = ?`, expenseID); err != nil {
		return 0, fmt.Errorf("clear purchases: %w", err)
	}

	total, err := insertPurchases(ctx, tx, expenseID, purchases)
	if err != nil {
		return 0, err
	}

	var version int64
	err = tx.QueryRowContext(ctx,
		`UPDATE expenses
		 SET actual_cents = ?, version = version + 1, sync_status = 'pending',
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING version`, total, expenseID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("expense %d: %w", expenseID, core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("update expense actual: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purchases: %w", err)
	}

	slog.InfoContext(ctx, "Purchases replaced",
		log.FieldExpenseID, expenseID,
		"count", len(purchases),
		log.FieldActualCents, total)
	return version, nil
}

func insertPurchases(ctx context.Context, tx *sql.Tx, expenseID int64, purchases []core.Purchase) (int64, error) {
	var total int64
	for _, p := range purchases {
		var date any
		if !p.Date.IsZero() {
			date = p.Date.Format("2006-01-02")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO purchases (expense_id, name, amount_cents, purchase_date)
			 VALUES (?, ?, ?, ?)`, expenseID, p.Name, p.Amount.Cents, date); err != nil {
			return 0, fmt.Errorf("insert purchase: %w", err)
		}
		total += p.Amount.Cents
	}
	return total, nil
}

func (r *SQLiteRepository) loadPurchases(ctx context.Context, expenseIDs []int64) (map[int64][]core.Purchase, error) {
	query := `SELECT expense_id, name, amount_cents, purchase_date FROM purchases WHERE expense_id IN (`
	args := make([]any, len(expenseIDs))
	for i, id := range expenseIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args[i] = id
	}
	query += `) ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]core.Purchase)
	for rows.Next() {
		var expenseID int64
		var p core.Purchase
		var date sql.NullString
		if err := rows.Scan(&expenseID, &p.Name, &p.Amount.Cents, &date); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		if date.Valid {
			if t, err := time.Parse("2006-01-02", date.String); err == nil {
				p.Date = t
			}
		}
		out[expenseID] = append(out[expenseID], p)
	}
	return out, rows.Err()
}
