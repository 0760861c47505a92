package app

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation          = errors.New("app: validation failed")
	ErrSourceMissing       = errors.New("app: no store file to export")
	ErrRestoreVerification = errors.New("app: restored store failed verification")
)

type InsertTransactionRequest struct {
	Amount      float64
	Kind        string
	Category    string
	Description string
	Date        string
}

// UpdateTransactionRequest carries a partial-field mapping. Only the
// allow-listed keys (amount, kind, category, description, date) are applied;
// anything else is dropped without an error.
type UpdateTransactionRequest struct {
	ID     int64
	Fields map[string]any
}

type ListTransactionsRequest struct {
	Kind     string
	Category string
	DateFrom string
	DateTo   string
}

type AddCategoryRequest struct {
	Name string
	Kind string
}

type UpdateCategoryRequest struct {
	ID   int64
	Name string
	Kind string
}

type ExportOptions struct {
	// Passphrase, when non-empty, wraps the snapshot in an encrypted
	// envelope. Empty means the raw store bytes are returned.
	Passphrase []byte
}

type ImportOptions struct {
	Passphrase []byte
	SkipVerify bool
}

type Summary struct {
	Income     decimal.Decimal
	Expense    decimal.Decimal
	Net        decimal.Decimal
	ByCategory map[string]decimal.Decimal
}
