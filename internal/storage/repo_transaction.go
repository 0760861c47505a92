package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type transactionRepository struct {
	db *sql.DB
}

// transactionUpdateColumns is the fixed allow-list for partial updates.
// Ordered so generated SQL is deterministic.
var transactionUpdateColumns = []string{"amount", "kind", "category", "description", "date"}

func (r *transactionRepository) Insert(ctx context.Context, t *Transaction) error {
	if t == nil {
		return fmt.Errorf("insert transaction: transaction is nil")
	}

	t.CreatedAt = nowUTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions(amount, kind, category, description, date, created_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, t.Amount, t.Kind, t.Category, t.Description, t.Date, fmtTime(t.CreatedAt))
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("insert transaction: %w: %v", ErrConstraint, err)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert transaction: last insert id: %w", err)
	}
	t.ID = id
	return nil
}

func (r *transactionRepository) Get(ctx context.Context, id int64) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, amount, kind, category, description, date, created_at
		FROM transactions
		WHERE id = ?
	`, id)

	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// Update applies the recognized subset of fields and re-stamps created_at.
// Unknown keys are dropped without error; zero affected rows is reported,
// not treated as a failure.
func (r *transactionRepository) Update(ctx context.Context, id int64, fields map[string]any) (int64, error) {
	var (
		sets []string
		args []any
	)
	for _, column := range transactionUpdateColumns {
		value, ok := fields[column]
		if !ok {
			continue
		}
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if len(sets) == 0 {
		return 0, nil
	}

	sets = append(sets, "created_at = ?")
	args = append(args, fmtTime(nowUTC()), id)

	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isConstraintErr(err) {
			return 0, fmt.Errorf("update transaction: %w: %v", ErrConstraint, err)
		}
		return 0, fmt.Errorf("update transaction: %w", err)
	}
	return rowsAffected(res, "update transaction")
}

func (r *transactionRepository) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete transaction: %w", err)
	}
	return rowsAffected(res, "delete transaction")
}

// List orders by date descending, newest id first among equal dates. Dates
// are compared as text; rows with non-ISO dates from old backups sort where
// the collation puts them rather than failing.
func (r *transactionRepository) List(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	query := `
		SELECT id, amount, kind, category, description, date, created_at
		FROM transactions
		WHERE 1=1
	`
	args := []any{}

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.DateFrom != "" {
		query += ` AND date >= ?`
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		query += ` AND date <= ?`
		args = append(args, filter.DateTo)
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		t         Transaction
		createdAt string
	)
	if err := row.Scan(&t.ID, &t.Amount, &t.Kind, &t.Category, &t.Description, &t.Date, &createdAt); err != nil {
		return nil, err
	}
	parsed, err := parseCreatedAt(createdAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = parsed
	return &t, nil
}
