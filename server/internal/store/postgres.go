package store

import (
	_ "github.com/lib/pq"
)

// NewPostgres returns a Store backed by the Postgres database at dsn.
func NewPostgres(dsn string) (*SQLStore, error) {
	return newSQLStore(postgresDialect, dsn)
}
