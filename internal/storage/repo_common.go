package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

// parseCreatedAt tolerates rows migrated from a generation without the
// column; those carry an empty string.
func parseCreatedAt(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return parseTime(raw)
}

// isConstraintErr reports whether the driver error came from a CHECK or
// UNIQUE violation. modernc.org/sqlite exposes these only through the error
// text, so matching the message is the available signal.
func isConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}

func rowsAffected(res sql.Result, op string) (int64, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return affected, nil
}
