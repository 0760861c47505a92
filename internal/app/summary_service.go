package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/SudharsunRavi/etracker-drive/internal/storage"
)

// Summarize totals the filtered transactions. Amounts live as REAL in the
// store; accumulation goes through decimals so a long history does not
// drift in the reported totals.
func (s *Service) Summarize(ctx context.Context, req ListTransactionsRequest) (*Summary, error) {
	transactions, err := s.ListTransactions(ctx, req)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Income:     decimal.Zero,
		Expense:    decimal.Zero,
		ByCategory: map[string]decimal.Decimal{},
	}
	for _, tx := range transactions {
		amount := decimal.NewFromFloat(tx.Amount)
		switch storage.Kind(tx.Kind) {
		case storage.KindIncome:
			summary.Income = summary.Income.Add(amount)
		case storage.KindExpense:
			summary.Expense = summary.Expense.Add(amount)
		}
		// Unknown kinds still show up per category; dangling category
		// labels are plain labels, not errors.
		current, ok := summary.ByCategory[tx.Category]
		if !ok {
			current = decimal.Zero
		}
		summary.ByCategory[tx.Category] = current.Add(amount)
	}
	summary.Net = summary.Income.Sub(summary.Expense)
	return summary, nil
}
