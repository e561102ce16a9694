package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// IncomeFilter narrows ListIncomes. Zero values mean "no filter".
type IncomeFilter struct {
	MonthID      int64
	Period       string
	IncomeTypeID int64
}

func (r *SQLiteRepository) CreateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (month_id, income_type_id, period, budget_cents, actual_cents)
		 VALUES (?, ?, ?, ?, ?)`,
		in.MonthID, in.IncomeTypeID, in.Period, in.Budget.Cents, in.Actual.Cents)
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Income{}, fmt.Errorf("create income id: %w", err)
	}
	in.ID = id

	slog.InfoContext(ctx, "Income saved",
		log.FieldIncomeID, in.ID,
		log.FieldMonthID, in.MonthID,
		log.FieldIncomeTypeID, in.IncomeTypeID,
		log.FieldBudgetCents, in.Budget.Cents,
		log.FieldActualCents, in.Actual.Cents)

	return in, nil
}

func (r *SQLiteRepository) GetIncome(ctx context.Context, id int64) (core.Income, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, month_id, income_type_id, period, budget_cents, actual_cents
		 FROM incomes WHERE id = ?`, id)

	var in core.Income
	err := row.Scan(&in.ID, &in.MonthID, &in.IncomeTypeID, &in.Period,
		&in.Budget.Cents, &in.Actual.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Income{}, fmt.Errorf("income %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Income{}, fmt.Errorf("get income: %w", err)
	}
	return in, nil
}

func (r *SQLiteRepository) ListIncomes(ctx context.Context, f IncomeFilter) ([]core.Income, error) {
	query := `SELECT id, month_id, income_type_id, period, budget_cents, actual_cents
	          FROM incomes WHERE 1=1`
	var args []any
	if f.MonthID != 0 {
		query += ` AND month_id = ?`
		args = append(args, f.MonthID)
	}
	if f.Period != "" {
		query += ` AND period = ?`
		args = append(args, f.Period)
	}
	if f.IncomeTypeID != 0 {
		query += ` AND income_type_id = ?`
		args = append(args, f.IncomeTypeID)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var incomes []core.Income
	for rows.Next() {
		var in core.Income
		if err := rows.Scan(&in.ID, &in.MonthID, &in.IncomeTypeID, &in.Period,
			&in.Budget.Cents, &in.Actual.Cents); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		incomes = append(incomes, in)
	}
	return incomes, rows.Err()
}

// UpdateIncome rewrites the income row, bumps its version and queues
// it for backup. The new version is returned for the change event.
func (r *SQLiteRepository) UpdateIncome(ctx context.Context, in core.Income) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE incomes
		 SET income_type_id = ?, period = ?, budget_cents = ?, actual_cents = ?,
		     version = version + 1, sync_status = 'pending', updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING version`,
		in.IncomeTypeID, in.Period, in.Budget.Cents, in.Actual.Cents, in.ID).
		Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("income %d: %w", in.ID, core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("update income: %w", err)
	}
	return version, nil
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM incomes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("income %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Income deleted", log.FieldIncomeID, id)
	return nil
}
