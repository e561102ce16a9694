package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/core"
)

// Categories, periods and income types share the same {id, name, color}
// shape; the generic helpers below are parameterized on table name and
// the in-use check guarding deletion.

type metaRow struct {
	ID    int64
	Name  string
	Color string
}

func (r *SQLiteRepository) createMeta(ctx context.Context, table, name, color string) (metaRow, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO `+table+` (name, color) VALUES (?, ?)`, name, color)
	if err != nil {
		if isUniqueViolation(err) {
			return metaRow{}, fmt.Errorf("%s %q already exists: %w", table, name, core.ErrConflict)
		}
		return metaRow{}, fmt.Errorf("create %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return metaRow{}, fmt.Errorf("create %s id: %w", table, err)
	}
	slog.InfoContext(ctx, "Metadata created", "table", table, "id", id, "name", name)
	return metaRow{ID: id, Name: name, Color: color}, nil
}

func (r *SQLiteRepository) listMeta(ctx context.Context, table string) ([]metaRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, color FROM `+table+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []metaRow
	for rows.Next() {
		var m metaRow
		if err := rows.Scan(&m.ID, &m.Name, &m.Color); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) getMeta(ctx context.Context, table string, id int64) (metaRow, error) {
	var m metaRow
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, color FROM `+table+` WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &m.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return metaRow{}, fmt.Errorf("%s %d: %w", table, id, core.ErrNotFound)
	}
	if err != nil {
		return metaRow{}, fmt.Errorf("get %s: %w", table, err)
	}
	return m, nil
}

func (r *SQLiteRepository) updateMeta(ctx context.Context, table string, id int64, name, color string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET name = ?, color = ? WHERE id = ?`, name, color, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %q already exists: %w", table, name, core.ErrConflict)
		}
		return fmt.Errorf("update %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %d: %w", table, id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) deleteMeta(ctx context.Context, table string, id int64, inUseQuery string, inUseArgs ...any) error {
	var count int64
	if err := r.db.QueryRowContext(ctx, inUseQuery, inUseArgs...).Scan(&count); err != nil {
		return fmt.Errorf("check %s usage: %w", table, err)
	}
	if count > 0 {
		return fmt.Errorf("%s %d is referenced by %d record(s): %w", table, id, count, core.ErrConflict)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %d: %w", table, id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Metadata deleted", "table", table, "id", id)
	return nil
}

// Categories

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	m, err := r.createMeta(ctx, "categories", c.Name, c.Color)
	if err != nil {
		return core.Category{}, err
	}
	return core.Category{ID: m.ID, Name: m.Name, Color: m.Color}, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.listMeta(ctx, "categories")
	if err != nil {
		return nil, err
	}
	out := make([]core.Category, len(rows))
	for i, m := range rows {
		out[i] = core.Category{ID: m.ID, Name: m.Name, Color: m.Color}
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	return r.updateMeta(ctx, "categories", c.ID, c.Name, c.Color)
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	m, err := r.getMeta(ctx, "categories", id)
	if err != nil {
		return err
	}
	return r.deleteMeta(ctx, "categories", id,
		`SELECT COUNT(*) FROM expenses WHERE category = ?`, m.Name)
}

// Periods

func (r *SQLiteRepository) CreatePeriod(ctx context.Context, p core.Period) (core.Period, error) {
	m, err := r.createMeta(ctx, "periods", p.Name, p.Color)
	if err != nil {
		return core.Period{}, err
	}
	return core.Period{ID: m.ID, Name: m.Name, Color: m.Color}, nil
}

func (r *SQLiteRepository) ListPeriods(ctx context.Context) ([]core.Period, error) {
	rows, err := r.listMeta(ctx, "periods")
	if err != nil {
		return nil, err
	}
	out := make([]core.Period, len(rows))
	for i, m := range rows {
		out[i] = core.Period{ID: m.ID, Name: m.Name, Color: m.Color}
	}
	return out, nil
}

func (r *SQLiteRepository) UpdatePeriod(ctx context.Context, p core.Period) error {
	return r.updateMeta(ctx, "periods", p.ID, p.Name, p.Color)
}

func (r *SQLiteRepository) DeletePeriod(ctx context.Context, id int64) error {
	m, err := r.getMeta(ctx, "periods", id)
	if err != nil {
		return err
	}
	return r.deleteMeta(ctx, "periods", id,
		`SELECT (SELECT COUNT(*) FROM expenses WHERE period = ?) +
		        (SELECT COUNT(*) FROM incomes WHERE period = ?)`, m.Name, m.Name)
}

// Income types

func (r *SQLiteRepository) CreateIncomeType(ctx context.Context, it core.IncomeType) (core.IncomeType, error) {
	m, err := r.createMeta(ctx, "income_types", it.Name, it.Color)
	if err != nil {
		return core.IncomeType{}, err
	}
	return core.IncomeType{ID: m.ID, Name: m.Name, Color: m.Color}, nil
}

func (r *SQLiteRepository) ListIncomeTypes(ctx context.Context) ([]core.IncomeType, error) {
	rows, err := r.listMeta(ctx, "income_types")
	if err != nil {
		return nil, err
	}
	out := make([]core.IncomeType, len(rows))
	for i, m := range rows {
		out[i] = core.IncomeType{ID: m.ID, Name: m.Name, Color: m.Color}
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateIncomeType(ctx context.Context, it core.IncomeType) error {
	return r.updateMeta(ctx, "income_types", it.ID, it.Name, it.Color)
}

func (r *SQLiteRepository) DeleteIncomeType(ctx context.Context, id int64) error {
	return r.deleteMeta(ctx, "income_types", id,
		`SELECT COUNT(*) FROM incomes WHERE income_type_id = ?`, id)
}
