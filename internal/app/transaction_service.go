package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/SudharsunRavi/etracker-drive/internal/storage"
)

const dateLayout = "2006-01-02"

func (s *Service) InsertTransaction(ctx context.Context, req InsertTransactionRequest) (*storage.Transaction, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Category) == "" {
		return nil, fmt.Errorf("%w: category is required", ErrValidation)
	}
	date, err := normalizeDate(req.Date)
	if err != nil {
		return nil, err
	}

	// Kind is deliberately not checked against the enum here: the
	// transactions table tolerates kinds this build does not know about,
	// and restored rows must keep doing so.
	tx := &storage.Transaction{
		Amount:      req.Amount,
		Kind:        req.Kind,
		Category:    req.Category,
		Description: req.Description,
		Date:        date,
	}
	if err := s.store.Transactions.Insert(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Service) GetTransaction(ctx context.Context, id int64) (*storage.Transaction, error) {
	return s.store.Transactions.Get(ctx, id)
}

func (s *Service) UpdateTransaction(ctx context.Context, req UpdateTransactionRequest) error {
	fields := make(map[string]any, len(req.Fields))
	for key, value := range req.Fields {
		fields[key] = value
	}

	if raw, ok := fields["amount"]; ok {
		amount, ok := floatValue(raw)
		if !ok {
			return fmt.Errorf("%w: amount must be a number", ErrValidation)
		}
		if err := validateAmount(amount); err != nil {
			return err
		}
		fields["amount"] = amount
	}
	if raw, ok := fields["date"]; ok {
		str, ok := raw.(string)
		if !ok {
			return fmt.Errorf("%w: date must be a string", ErrValidation)
		}
		date, err := normalizeDate(str)
		if err != nil {
			return err
		}
		fields["date"] = date
	}

	affected, err := s.store.Transactions.Update(ctx, req.ID, fields)
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the id is absent or every key was outside the allow-list.
		// Only the former is an error.
		if _, getErr := s.store.Transactions.Get(ctx, req.ID); getErr != nil {
			if errors.Is(getErr, storage.ErrNotFound) {
				return storage.ErrNotFound
			}
			return getErr
		}
	}
	return nil
}

func (s *Service) DeleteTransaction(ctx context.Context, id int64) error {
	affected, err := s.store.Transactions.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, req ListTransactionsRequest) ([]storage.Transaction, error) {
	return s.store.Transactions.List(ctx, storage.TransactionFilter{
		Kind:     req.Kind,
		Category: req.Category,
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
	})
}

func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: amount must be a finite number", ErrValidation)
	}
	return nil
}

// normalizeDate rejects anything that does not parse as an ISO calendar
// date. Free-text dates sort as text in the store, so letting arbitrary
// formats in would silently break ordering and range filters.
func normalizeDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: date is required", ErrValidation)
	}
	parsed, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: date %q is not a valid ISO date (YYYY-MM-DD)", ErrValidation, raw)
	}
	return parsed.Format(dateLayout), nil
}

func floatValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
