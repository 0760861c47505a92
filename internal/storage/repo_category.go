package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type categoryRepository struct {
	db *sql.DB
}

func (r *categoryRepository) Create(ctx context.Context, category *Category) error {
	if category == nil {
		return fmt.Errorf("create category: category is nil")
	}
	if category.Name == "" {
		return fmt.Errorf("create category: name is required")
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO categories(name, kind) VALUES(?, ?)`, category.Name, string(category.Kind))
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("create category: %w: %v", ErrConstraint, err)
		}
		return fmt.Errorf("create category: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create category: last insert id: %w", err)
	}
	category.ID = id
	return nil
}

func (r *categoryRepository) Update(ctx context.Context, category *Category) (int64, error) {
	if category == nil {
		return 0, fmt.Errorf("update category: category is nil")
	}

	res, err := r.db.ExecContext(ctx, `UPDATE categories SET name = ?, kind = ? WHERE id = ?`, category.Name, string(category.Kind), category.ID)
	if err != nil {
		if isConstraintErr(err) {
			return 0, fmt.Errorf("update category: %w: %v", ErrConstraint, err)
		}
		return 0, fmt.Errorf("update category: %w", err)
	}
	return rowsAffected(res, "update category")
}

// Delete removes only the category row. Transactions referencing the name
// keep it as a plain label; the reference is deliberately soft.
func (r *categoryRepository) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete category: %w", err)
	}
	return rowsAffected(res, "delete category")
}

func (r *categoryRepository) List(ctx context.Context, kind string) ([]Category, error) {
	query := `SELECT id, name, kind FROM categories`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY kind ASC, name ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var (
			category Category
			kindStr  string
		)
		if err := rows.Scan(&category.ID, &category.Name, &kindStr); err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		category.Kind = Kind(kindStr)
		out = append(out, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}
