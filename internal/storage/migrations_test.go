package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestRunMigrationsCreatesCanonicalSchema(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	err := RunMigrations(db, DefaultMigrations())
	require.NoError(t, err)

	require.Equal(t, CurrentSchemaVersion(), mustSchemaVersion(t, db))

	for _, table := range []string{"store_meta", "schema_migrations", "transactions", "categories"} {
		require.Truef(t, testTableExists(t, db, table), "expected table %s to exist", table)
	}
	for _, column := range []string{"id", "amount", "kind", "category", "description", "date", "created_at"} {
		require.Truef(t, testColumnExists(t, db, "transactions", column), "expected transactions.%s to exist", column)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	require.NoError(t, RunMigrations(db, DefaultMigrations()))

	_, err := db.Exec(`INSERT INTO transactions(amount, kind, category, description, date, created_at)
		VALUES(42.5, 'expense', 'Food', 'lunch', '2024-01-06', '')`)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, RunMigrations(db, DefaultMigrations()))
	}

	require.Equal(t, CurrentSchemaVersion(), mustSchemaVersion(t, db))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
	require.Equal(t, 1, count)

	var amount float64
	var category string
	require.NoError(t, db.QueryRow(`SELECT amount, category FROM transactions`).Scan(&amount, &category))
	require.Equal(t, 42.5, amount)
	require.Equal(t, "Food", category)

	var seeded int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&seeded))
	require.Equal(t, len(defaultCategories), seeded)
}

func TestRunMigrationsRebuildsLegacyTransactionsTable(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	// Legacy generation: enum column named "type", no created_at, and a
	// column order that would transpose values under a positional copy.
	_, err := db.Exec(`CREATE TABLE transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT,
		amount REAL NOT NULL,
		category TEXT NOT NULL
	)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO transactions(date, type, description, amount, category) VALUES
		('2024-01-05', 'income', 'Jan pay', 100, 'Salary'),
		('2024-01-06', 'expense', NULL, 20, 'Food')`)
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db, DefaultMigrations()))

	require.False(t, testTableExists(t, db, "transactions_migrate"))
	require.True(t, testColumnExists(t, db, "transactions", "kind"))
	require.False(t, testColumnExists(t, db, "transactions", "type"))

	rows, err := db.Query(`SELECT amount, kind, category, description, date FROM transactions ORDER BY id ASC`)
	require.NoError(t, err)
	defer rows.Close()

	type record struct {
		amount      float64
		kind        string
		category    string
		description string
		date        string
	}
	var got []record
	for rows.Next() {
		var rec record
		require.NoError(t, rows.Scan(&rec.amount, &rec.kind, &rec.category, &rec.description, &rec.date))
		got = append(got, rec)
	}
	require.NoError(t, rows.Err())

	require.Equal(t, []record{
		{amount: 100, kind: "income", category: "Salary", description: "Jan pay", date: "2024-01-05"},
		{amount: 20, kind: "expense", category: "Food", description: "", date: "2024-01-06"},
	}, got)
}

func TestRunMigrationsAddsCreatedAtToCurrentNamedTable(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	// Intermediate generation: already renamed to "kind" but predates the
	// created_at column.
	_, err := db.Exec(`CREATE TABLE transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		amount REAL NOT NULL,
		kind TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO transactions(amount, kind, category, description, date)
		VALUES(10, 'expense', 'Food', '', '2024-02-01')`)
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db, DefaultMigrations()))

	require.True(t, testColumnExists(t, db, "transactions", "created_at"))

	var createdAt string
	require.NoError(t, db.QueryRow(`SELECT created_at FROM transactions`).Scan(&createdAt))
	require.Equal(t, "", createdAt)
}

func TestRunMigrationsSeedsDefaultCategoriesByNameAndKind(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	require.NoError(t, RunMigrations(db, DefaultMigrations()))

	var kind string
	require.NoError(t, db.QueryRow(`SELECT kind FROM categories WHERE name = 'Salary'`).Scan(&kind))
	require.Equal(t, "income", kind)

	var expenses int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM categories WHERE kind = 'expense'`).Scan(&expenses))
	require.Equal(t, 7, expenses)
}

func TestRunMigrationsIsAtomic(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	migrations := []Migration{
		{
			Version:     1,
			Description: "create a",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE test_a (id TEXT PRIMARY KEY)`)
				return err
			},
		},
		{
			Version:     2,
			Description: "create b then fail",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(`CREATE TABLE test_b (id TEXT PRIMARY KEY)`); err != nil {
					return err
				}
				return errors.New("boom")
			},
		},
	}

	err := RunMigrations(db, migrations)
	require.ErrorIs(t, err, ErrMigration)
	require.Equal(t, 1, mustSchemaVersion(t, db))
	require.True(t, testTableExists(t, db, "test_a"))
	require.False(t, testTableExists(t, db, "test_b"))
}

func TestOpenRefusesNewerSchemaVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "etracker.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db, DefaultMigrations()))
	_, err = db.Exec(`UPDATE store_meta SET value = ? WHERE key = 'schema_version'`, CurrentSchemaVersion()+1)
	require.NoError(t, err)
	closeNoErr(t, db)

	store, err := Open(path)
	if store != nil {
		t.Cleanup(func() { _ = store.Close() })
	}
	require.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestOpenMigratesRestoredLegacyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "etracker.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		amount REAL NOT NULL,
		type TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT,
		date TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO transactions(amount, type, category, description, date)
		VALUES(100, 'income', 'Salary', 'Jan pay', '2024-01-05')`)
	require.NoError(t, err)
	closeNoErr(t, db)

	store, err := Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	listed, err := store.Transactions.List(context.Background(), TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "income", listed[0].Kind)
	require.Equal(t, "Salary", listed[0].Category)
}

func openRawTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "etracker.db"))
	require.NoError(t, err)
	return db
}

func closeNoErr(t *testing.T, db *sql.DB) {
	t.Helper()
	require.NoError(t, db.Close())
}

func mustSchemaVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	version, err := readSchemaVersion(db)
	require.NoError(t, err)
	return version
}

func testTableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var found int
	err := db.QueryRow(`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	require.NoError(t, err)
	return true
}

func testColumnExists(t *testing.T, db *sql.DB, table, column string) bool {
	t.Helper()
	rows, err := db.Query(`PRAGMA table_info(` + table + `)`)
	require.NoError(t, err)
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			typeStr string
			notNull int
			dfltVal sql.NullString
			pk      int
		)
		require.NoError(t, rows.Scan(&cid, &name, &typeStr, &notNull, &dfltVal, &pk))
		if name == column {
			return true
		}
	}
	require.NoError(t, rows.Err())
	return false
}
