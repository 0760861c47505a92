package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"
)

const schemaVersionMetaKey = "schema_version"

type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// defaultCategories is the seed set created alongside the categories table.
// Seeding is keyed by (name, kind) so re-running the step never duplicates
// rows, and user deletions after the seed are not resurrected.
var defaultCategories = []Category{
	{Name: "Food", Kind: KindExpense},
	{Name: "Rent", Kind: KindExpense},
	{Name: "Entertainment", Kind: KindExpense},
	{Name: "Transport", Kind: KindExpense},
	{Name: "Shopping", Kind: KindExpense},
	{Name: "Bills", Kind: KindExpense},
	{Name: "Healthcare", Kind: KindExpense},
	{Name: "Salary", Kind: KindIncome},
	{Name: "Investment", Kind: KindIncome},
	{Name: "Freelance", Kind: KindIncome},
	{Name: "Gift", Kind: KindIncome},
	{Name: "Bonus", Kind: KindIncome},
}

const createTransactionsSQL = `CREATE TABLE %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	amount REAL NOT NULL,
	kind TEXT NOT NULL,
	category TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT ''
)`

var defaultMigrations = []Migration{
	{
		Version:     1,
		Description: "create or rebuild transactions table",
		Up: func(tx *sql.Tx) error {
			exists, err := tableExists(tx, "transactions")
			if err != nil {
				return err
			}
			if !exists {
				if _, err := tx.Exec(fmt.Sprintf(createTransactionsSQL, "transactions")); err != nil {
					return fmt.Errorf("create transactions: %w", err)
				}
				return nil
			}

			legacy, err := columnExists(tx, "transactions", "type")
			if err != nil {
				return err
			}
			current, err := columnExists(tx, "transactions", "kind")
			if err != nil {
				return err
			}
			if !legacy || current {
				return nil
			}

			// Legacy generation named the enum column "type" and had no
			// created_at. Rebuild under a temporary name with an explicit
			// field mapping; column order in the old table is unknown, so a
			// positional copy would silently transpose values.
			if _, err := tx.Exec(fmt.Sprintf(createTransactionsSQL, "transactions_migrate")); err != nil {
				return fmt.Errorf("create transactions_migrate: %w", err)
			}
			if _, err := tx.Exec(`
				INSERT INTO transactions_migrate (id, amount, kind, category, description, date, created_at)
				SELECT id, amount, type, category, COALESCE(description, ''), date, ?
				FROM transactions
			`, nowUTCString()); err != nil {
				return fmt.Errorf("copy legacy transactions: %w", err)
			}
			if _, err := tx.Exec(`DROP TABLE transactions`); err != nil {
				return fmt.Errorf("drop legacy transactions: %w", err)
			}
			if _, err := tx.Exec(`ALTER TABLE transactions_migrate RENAME TO transactions`); err != nil {
				return fmt.Errorf("rename transactions_migrate: %w", err)
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "add transactions created_at",
		Up: func(tx *sql.Tx) error {
			ok, err := columnExists(tx, "transactions", "created_at")
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
			if _, err := tx.Exec(`ALTER TABLE transactions ADD COLUMN created_at TEXT NOT NULL DEFAULT ''`); err != nil {
				return fmt.Errorf("add transactions.created_at: %w", err)
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "create categories and seed defaults",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS categories (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				kind TEXT NOT NULL CHECK(kind IN ('income', 'expense')),
				UNIQUE(name, kind)
			)`); err != nil {
				return fmt.Errorf("create categories: %w", err)
			}
			for _, category := range defaultCategories {
				if _, err := tx.Exec(`INSERT OR IGNORE INTO categories(name, kind) VALUES(?, ?)`, category.Name, string(category.Kind)); err != nil {
					return fmt.Errorf("seed category %q: %w", category.Name, err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "index transactions by date",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`); err != nil {
				return fmt.Errorf("create date index: %w", err)
			}
			return nil
		},
	},
}

func DefaultMigrations() []Migration {
	out := make([]Migration, len(defaultMigrations))
	copy(out, defaultMigrations)
	return out
}

func CurrentSchemaVersion() int {
	return maxMigrationVersion(defaultMigrations)
}

// RunMigrations brings the store to the current schema version. Each step
// runs in its own transaction so a failure leaves no partial structural
// change. Safe to call on every open; a current store costs one version probe.
func RunMigrations(db *sql.DB, migrations []Migration) error {
	if db == nil {
		return fmt.Errorf("run migrations: db is nil")
	}

	if err := ensureMigrationTables(db); err != nil {
		return err
	}

	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	current, err := readSchemaVersion(db)
	if err != nil {
		return err
	}

	maxVersion := maxMigrationVersion(ordered)
	if current > maxVersion {
		return fmt.Errorf("%w: db=%d code=%d", ErrSchemaTooNew, current, maxVersion)
	}

	for _, migration := range ordered {
		if migration.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("%w: begin v%d: %v", ErrMigration, migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: v%d (%s): %v", ErrMigration, migration.Version, migration.Description, err)
		}

		if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_migrations(version, applied_at) VALUES (?, ?)`, migration.Version, nowUTCString()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: record v%d: %v", ErrMigration, migration.Version, err)
		}

		if _, err := tx.Exec(`INSERT OR REPLACE INTO store_meta(key, value) VALUES(?, ?)`, schemaVersionMetaKey, strconv.Itoa(migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: update version v%d: %v", ErrMigration, migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit v%d: %v", ErrMigration, migration.Version, err)
		}
	}

	return nil
}

func ensureMigrationTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS store_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`,
		`INSERT OR IGNORE INTO store_meta(key, value) VALUES('` + schemaVersionMetaKey + `', '0')`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: ensure migration tables: %v", ErrMigration, err)
		}
	}
	return nil
}

func readSchemaVersion(db *sql.DB) (int, error) {
	var versionStr string
	if err := db.QueryRow(`SELECT value FROM store_meta WHERE key = ?`, schemaVersionMetaKey).Scan(&versionStr); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", versionStr, err)
	}
	return version, nil
}

func maxMigrationVersion(migrations []Migration) int {
	max := 0
	for _, migration := range migrations {
		if migration.Version > max {
			max = migration.Version
		}
	}
	return max
}

func tableExists(tx *sql.Tx, name string) (bool, error) {
	var found int
	err := tx.QueryRow(`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&found)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("probe table %s: %w", name, err)
	}
	return true, nil
}

func columnExists(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query(`PRAGMA table_info(` + table + `)`)
	if err != nil {
		return false, fmt.Errorf("query table info %s: %w", table, err)
	}
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
		if err := rows.Scan(&cid, &name, &typeStr, &notNull, &dfltVal, &pk); err != nil {
			return false, fmt.Errorf("scan table info %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate table info %s: %w", table, err)
	}
	return false, nil
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
