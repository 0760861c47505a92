package storage

// Package storage provides the SQLite-backed record store with versioned,
// idempotent schema migrations. It owns the single on-disk database file.
