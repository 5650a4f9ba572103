package store

import (
	// Registers the "sqlite3" database/sql driver.
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLite returns a Store backed by the SQLite file at path. The database
// and tables are created on first use.
func NewSQLite(path string) (*SQLStore, error) {
	// WAL lets the stream hub read while the receiver writes.
	return newSQLStore(sqliteDialect, path+"?_journal_mode=WAL&_busy_timeout=5000")
}
