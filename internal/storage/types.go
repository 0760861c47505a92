package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrConstraint   = errors.New("storage: constraint violation")
	ErrMigration    = errors.New("storage: migration failed")
	ErrSchemaTooNew = errors.New("storage: schema version newer than code")
)

type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Transaction keeps Kind as a plain string: the transactions table carries
// no kind constraint, so rows written by newer app versions with kinds this
// build does not know about must still round-trip unchanged.
type Transaction struct {
	ID          int64
	Amount      float64
	Kind        string
	Category    string
	Description string
	Date        string
	CreatedAt   time.Time
}

type Category struct {
	ID   int64
	Name string
	Kind Kind
}

// TransactionFilter is a conjunction; zero values mean "no restriction".
// DateFrom and DateTo are inclusive ISO date bounds.
type TransactionFilter struct {
	Kind     string
	Category string
	DateFrom string
	DateTo   string
}

type TransactionRepository interface {
	Insert(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id int64) (*Transaction, error)
	// Update applies the recognized subset of fields and returns the number
	// of rows affected. Zero rows is not an error at this layer.
	Update(ctx context.Context, id int64, fields map[string]any) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, category *Category) error
	Update(ctx context.Context, category *Category) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context, kind string) ([]Category, error)
}
