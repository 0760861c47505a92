package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "etracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestTransactionInsertAssignsMonotonicIDs(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first := &Transaction{Amount: 100, Kind: "income", Category: "Salary", Description: "Jan pay", Date: "2024-01-05"}
	require.NoError(t, store.Transactions.Insert(ctx, first))
	require.NotZero(t, first.ID)
	require.False(t, first.CreatedAt.IsZero())

	second := &Transaction{Amount: 20, Kind: "expense", Category: "Food", Description: "Lunch", Date: "2024-01-06"}
	require.NoError(t, store.Transactions.Insert(ctx, second))
	require.Greater(t, second.ID, first.ID)
}

func TestTransactionUpdateAppliesOnlyAllowListedFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	tx := &Transaction{Amount: 10, Kind: "expense", Category: "Food", Date: "2024-01-01"}
	require.NoError(t, store.Transactions.Insert(ctx, tx))
	inserted, err := store.Transactions.Get(ctx, tx.ID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	affected, err := store.Transactions.Update(ctx, tx.ID, map[string]any{
		"amount":    50.0,
		"notAField": "x",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	updated, err := store.Transactions.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, 50.0, updated.Amount)
	require.Equal(t, inserted.Kind, updated.Kind)
	require.Equal(t, inserted.Category, updated.Category)
	require.Equal(t, inserted.Date, updated.Date)
	require.True(t, updated.CreatedAt.After(inserted.CreatedAt), "created_at must be re-stamped on update")
}

func TestTransactionUpdateWithOnlyUnknownKeysIsNoOp(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	tx := &Transaction{Amount: 10, Kind: "expense", Category: "Food", Date: "2024-01-01"}
	require.NoError(t, store.Transactions.Insert(ctx, tx))

	affected, err := store.Transactions.Update(ctx, tx.ID, map[string]any{"notAField": "x"})
	require.NoError(t, err)
	require.Zero(t, affected)
}

func TestTransactionUpdateMissingIDAffectsZeroRows(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	affected, err := store.Transactions.Update(context.Background(), 9999, map[string]any{"amount": 1.0})
	require.NoError(t, err)
	require.Zero(t, affected)
}

func TestTransactionDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	tx := &Transaction{Amount: 10, Kind: "expense", Category: "Food", Date: "2024-01-01"}
	require.NoError(t, store.Transactions.Insert(ctx, tx))

	affected, err := store.Transactions.Delete(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	_, err = store.Transactions.Get(ctx, tx.ID)
	require.ErrorIs(t, err, ErrNotFound)

	affected, err = store.Transactions.Delete(ctx, tx.ID)
	require.NoError(t, err)
	require.Zero(t, affected)
}

func TestTransactionListFiltersAndOrdersByDateDescending(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	seed := []Transaction{
		{Amount: 100, Kind: "income", Category: "Salary", Date: "2024-01-05"},
		{Amount: 20, Kind: "expense", Category: "Food", Date: "2024-01-06"},
		{Amount: 35, Kind: "expense", Category: "Transport", Date: "2024-02-01"},
		{Amount: 15, Kind: "expense", Category: "Food", Date: "2023-12-30"},
	}
	for i := range seed {
		require.NoError(t, store.Transactions.Insert(ctx, &seed[i]))
	}

	all, err := store.Transactions.List(ctx, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "2024-02-01", all[0].Date)
	require.Equal(t, "2023-12-30", all[3].Date)

	expenses, err := store.Transactions.List(ctx, TransactionFilter{Kind: "expense"})
	require.NoError(t, err)
	require.Len(t, expenses, 3)

	food, err := store.Transactions.List(ctx, TransactionFilter{Category: "Food"})
	require.NoError(t, err)
	require.Len(t, food, 2)
	require.Equal(t, "2024-01-06", food[0].Date)

	january, err := store.Transactions.List(ctx, TransactionFilter{DateFrom: "2024-01-01", DateTo: "2024-01-31"})
	require.NoError(t, err)
	require.Len(t, january, 2)
}

func TestTransactionKindIsNotConstrained(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	// Deliberate asymmetry with categories: unknown kinds must be accepted
	// so rows written by future app versions survive a restore.
	tx := &Transaction{Amount: 10, Kind: "invalid-kind", Category: "Foo", Description: "desc", Date: "2024-01-01"}
	require.NoError(t, store.Transactions.Insert(ctx, tx))

	loaded, err := store.Transactions.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, "invalid-kind", loaded.Kind)
}

func TestCategoryKindIsConstrained(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	err := store.Categories.Create(context.Background(), &Category{Name: "Foo", Kind: "invalid-kind"})
	require.ErrorIs(t, err, ErrConstraint)
}

func TestCategoryCRUD(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	category := &Category{Name: "Books", Kind: KindExpense}
	require.NoError(t, store.Categories.Create(ctx, category))
	require.NotZero(t, category.ID)

	category.Name = "Reading"
	affected, err := store.Categories.Update(ctx, category)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	listed, err := store.Categories.List(ctx, string(KindExpense))
	require.NoError(t, err)
	names := make([]string, 0, len(listed))
	for _, c := range listed {
		names = append(names, c.Name)
	}
	require.Contains(t, names, "Reading")
	require.NotContains(t, names, "Books")

	affected, err = store.Categories.Delete(ctx, category.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
}

func TestCategoryDuplicateNameAndKindRejected(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	// Same name across kinds is allowed; same (name, kind) pair is not.
	require.NoError(t, store.Categories.Create(ctx, &Category{Name: "Other", Kind: KindExpense}))
	require.NoError(t, store.Categories.Create(ctx, &Category{Name: "Other", Kind: KindIncome}))

	err := store.Categories.Create(ctx, &Category{Name: "Other", Kind: KindExpense})
	require.ErrorIs(t, err, ErrConstraint)
}

func TestCategoryDeleteLeavesTransactionLabels(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	category := &Category{Name: "Gadgets", Kind: KindExpense}
	require.NoError(t, store.Categories.Create(ctx, category))

	tx := &Transaction{Amount: 99, Kind: "expense", Category: "Gadgets", Date: "2024-03-01"}
	require.NoError(t, store.Transactions.Insert(ctx, tx))

	_, err := store.Categories.Delete(ctx, category.ID)
	require.NoError(t, err)

	loaded, err := store.Transactions.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, "Gadgets", loaded.Category)
}

func TestDefaultCategoriesSeededOnOpen(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	income, err := store.Categories.List(context.Background(), string(KindIncome))
	require.NoError(t, err)
	require.Len(t, income, 5)
}
