package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// CloneResult reports the outcome of a month clone.
type CloneResult struct {
	NextMonth   core.Month
	ClonedCount int
}

func scanMonth(row interface{ Scan(...any) error }) (core.Month, error) {
	var m core.Month
	var closed int
	if err := row.Scan(&m.ID, &m.Year, &m.Month, &closed); err != nil {
		return core.Month{}, err
	}
	m.Closed = closed != 0
	return m, nil
}

func (r *SQLiteRepository) CreateMonth(ctx context.Context, year, month int) (core.Month, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO months (year, month) VALUES (?, ?)`, year, month)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Month{}, fmt.Errorf("month %d-%02d already exists: %w", year, month, core.ErrConflict)
		}
		return core.Month{}, fmt.Errorf("create month: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Month{}, fmt.Errorf("create month id: %w", err)
	}

	m := core.Month{ID: id, Year: year, Month: month}
	slog.InfoContext(ctx, "Month created", log.FieldMonthID, id, "name", m.DisplayName())
	return m, nil
}

func (r *SQLiteRepository) GetMonth(ctx context.Context, id int64) (core.Month, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, year, month, closed FROM months WHERE id = ?`, id)
	m, err := scanMonth(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Month{}, fmt.Errorf("month %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Month{}, fmt.Errorf("get month: %w", err)
	}
	return m, nil
}

func (r *SQLiteRepository) GetMonthByYearMonth(ctx context.Context, year, month int) (core.Month, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, year, month, closed FROM months WHERE year = ? AND month = ?`, year, month)
	m, err := scanMonth(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Month{}, fmt.Errorf("month %d-%02d: %w", year, month, core.ErrNotFound)
	}
	if err != nil {
		return core.Month{}, fmt.Errorf("get month by year/month: %w", err)
	}
	return m, nil
}

// ListMonths returns all months ordered oldest to newest.
func (r *SQLiteRepository) ListMonths(ctx context.Context) ([]core.Month, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, year, month, closed FROM months ORDER BY year, month`)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()

	var months []core.Month
	for rows.Next() {
		m, err := scanMonth(rows)
		if err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

// ListRecentMonths returns the most recent n months, still ordered
// oldest to newest so trend composition folds them in calendar order.
func (r *SQLiteRepository) ListRecentMonths(ctx context.Context, n int) ([]core.Month, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, year, month, closed FROM (
		     SELECT id, year, month, closed FROM months ORDER BY year DESC, month DESC LIMIT ?
		 ) ORDER BY year, month`, n)
	if err != nil {
		return nil, fmt.Errorf("list recent months: %w", err)
	}
	defer rows.Close()

	var months []core.Month
	for rows.Next() {
		m, err := scanMonth(rows)
		if err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

func (r *SQLiteRepository) SetMonthClosed(ctx context.Context, id int64, closed bool) error {
	v := 0
	if closed {
		v = 1
	}
	res, err := r.db.ExecContext(ctx, `UPDATE months SET closed = ? WHERE id = ?`, v, id)
	if err != nil {
		return fmt.Errorf("set month closed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set month closed: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("month %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Month status changed", log.FieldMonthID, id, "closed", closed)
	return nil
}

// CloneMonthToNext copies every expense and income of the source month
// into the following calendar month, creating that month first when it
// does not exist. Budgets and category/period/type references are
// preserved; actuals reset to zero and purchases are not copied.
//
// The whole operation, destination-month creation included, runs in a
// single transaction: a failure anywhere leaves no partially populated
// month behind.
func (r *SQLiteRepository) CloneMonthToNext(ctx context.Context, sourceID int64) (CloneResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return CloneResult{}, fmt.Errorf("begin clone transaction: %w", err)
	}
	defer tx.Rollback()

	src, err := scanMonth(tx.QueryRowContext(ctx,
		`SELECT id, year, month, closed FROM months WHERE id = ?`, sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return CloneResult{}, fmt.Errorf("source month %d: %w", sourceID, core.ErrNotFound)
	}
	if err != nil {
		return CloneResult{}, fmt.Errorf("load source month: %w", err)
	}

	nextYear, nextMonth := core.NextYearMonth(src.Year, src.Month)

	next, err := scanMonth(tx.QueryRowContext(ctx,
		`SELECT id, year, month, closed FROM months WHERE year = ? AND month = ?`, nextYear, nextMonth))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO months (year, month) VALUES (?, ?)`, nextYear, nextMonth)
		if err != nil {
			return CloneResult{}, fmt.Errorf("create destination month: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return CloneResult{}, fmt.Errorf("destination month id: %w", err)
		}
		next = core.Month{ID: id, Year: nextYear, Month: nextMonth}
	case err != nil:
		return CloneResult{}, fmt.Errorf("load destination month: %w", err)
	case next.Closed:
		return CloneResult{}, fmt.Errorf("destination month %s: %w", next.DisplayName(), core.ErrMonthClosed)
	}

	expRes, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (month_id, name, category, period, budget_cents, actual_cents, notes)
		 SELECT ?, name, category, period, budget_cents, 0, notes
		 FROM expenses WHERE month_id = ?`, next.ID, sourceID)
	if err != nil {
		return CloneResult{}, fmt.Errorf("clone expenses: %w", err)
	}
	expCount, err := expRes.RowsAffected()
	if err != nil {
		return CloneResult{}, fmt.Errorf("clone expenses count: %w", err)
	}

	incRes, err := tx.ExecContext(ctx,
		`INSERT INTO incomes (month_id, income_type_id, period, budget_cents, actual_cents)
		 SELECT ?, income_type_id, period, budget_cents, 0
		 FROM incomes WHERE month_id = ?`, next.ID, sourceID)
	if err != nil {
		return CloneResult{}, fmt.Errorf("clone incomes: %w", err)
	}
	incCount, err := incRes.RowsAffected()
	if err != nil {
		return CloneResult{}, fmt.Errorf("clone incomes count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return CloneResult{}, fmt.Errorf("commit clone: %w", err)
	}

	result := CloneResult{
		NextMonth:   next,
		ClonedCount: int(expCount + incCount),
	}

	slog.InfoContext(ctx, "Month cloned",
		"source_month_id", sourceID,
		"next_month_id", next.ID,
		"next_month", next.DisplayName(),
		log.FieldClonedCount, result.ClonedCount)

	return result, nil
}

// isUniqueViolation matches the sqlite unique-constraint error text;
// modernc.org/sqlite does not export a typed error for it.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
