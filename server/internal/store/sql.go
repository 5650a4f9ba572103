package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

const (
	eventsTable  = "cc_events"
	matchesTable = "cc_matches"

	sqlOperationTimeout = 5 * time.Second
)

// dialect captures the few differences between the SQL backends.
type dialect struct {
	driver string
	// positional reports whether placeholders are written as "?" instead of "$N".
	positional  bool
	timestampTy string
}

var (
	postgresDialect = dialect{driver: "postgres", timestampTy: "TIMESTAMPTZ"}
	sqliteDialect   = dialect{driver: "sqlite3", positional: true, timestampTy: "TIMESTAMP"}
)

var numberedPlaceholder = regexp.MustCompile(`\$\d+`)

// rebind rewrites "$N" placeholders for drivers that expect "?".
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	return numberedPlaceholder.ReplaceAllString(query, "?")
}

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// SQLStore is a Store backed by database/sql.
type SQLStore struct {
	dsn     string
	dialect dialect
	openDB  sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func newSQLStore(d dialect, dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("store: %s dsn is required", d.driver)
	}
	return &SQLStore{dsn: dsn, dialect: d, openDB: sql.Open}, nil
}

func (s *SQLStore) ensureReady() error {
	s.initOnce.Do(func() {
		db, err := s.openDB(s.dialect.driver, s.dsn)
		if err != nil {
			s.initErr = fmt.Errorf("store: open %s: %w", s.dialect.driver, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), sqlOperationTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			s.initErr = fmt.Errorf("store: ping %s: %w", s.dialect.driver, err)
			return
		}
		for _, stmt := range s.schema() {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				_ = db.Close()
				s.initErr = fmt.Errorf("store: create schema: %w", err)
				return
			}
		}
		s.db = db
	})
	return s.initErr
}

func (s *SQLStore) schema() []string {
	ts := s.dialect.timestampTy
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			session_id TEXT NOT NULL,
			received_at %s NOT NULL,
			payload TEXT NOT NULL
		)`, eventsTable, ts),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_received_idx ON %s (received_at)`, eventsTable, eventsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			article_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			payload TEXT NOT NULL,
			updated_at %s NOT NULL,
			PRIMARY KEY (article_id, position)
		)`, matchesTable, ts),
	}
}

// AppendEvents implements Store. The batch is written in one transaction.
func (s *SQLStore) AppendEvents(ctx context.Context, events []types.StoredEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(fmt.Sprintf(
		`INSERT INTO %s (id, name, session_id, received_at, payload) VALUES ($1, $2, $3, $4, $5)`, eventsTable)))
	if err != nil {
		return fmt.Errorf("store: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("store: encode event %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, string(e.Event), e.SessionID, e.ReceivedAt.UTC(), string(payload)); err != nil {
			return fmt.Errorf("store: insert event %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Events implements Store.
func (s *SQLStore) Events(ctx context.Context, f EventFilter) ([]types.StoredEvent, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if !f.Since.IsZero() {
		args = append(args, f.Since.UTC())
		where = append(where, fmt.Sprintf("received_at >= $%d", len(args)))
	}
	if f.Name != "" {
		args = append(args, string(f.Name))
		where = append(where, fmt.Sprintf("name = $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT payload FROM %s", eventsTable)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// Newest first so LIMIT keeps the most recent; reversed below.
	query += " ORDER BY received_at DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	out := make([]types.StoredEvent, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		var e types.StoredEvent
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("store: decode event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate events: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SaveMatches implements Store. Existing matches for the article are
// replaced in the same transaction.
func (s *SQLStore) SaveMatches(ctx context.Context, articleID string, matches []types.Match) (int, error) {
	if err := s.ensureReady(); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	del := s.dialect.rebind(fmt.Sprintf(`DELETE FROM %s WHERE article_id = $1`, matchesTable))
	if _, err := tx.ExecContext(ctx, del, articleID); err != nil {
		return 0, fmt.Errorf("store: clear matches: %w", err)
	}

	ins := s.dialect.rebind(fmt.Sprintf(
		`INSERT INTO %s (article_id, position, payload, updated_at) VALUES ($1, $2, $3, $4)`, matchesTable))
	now := time.Now().UTC()
	for i, m := range matches {
		m.ArticleID = articleID
		payload, err := json.Marshal(m)
		if err != nil {
			return 0, fmt.Errorf("store: encode match %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, ins, articleID, i, string(payload), now); err != nil {
			return 0, fmt.Errorf("store: insert match %s: %w", m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return len(matches), nil
}

// Matches implements Store.
func (s *SQLStore) Matches(ctx context.Context, articleID string) ([]types.Match, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, sqlOperationTimeout)
	defer cancel()

	query := s.dialect.rebind(fmt.Sprintf(
		`SELECT payload FROM %s WHERE article_id = $1 ORDER BY position`, matchesTable))
	rows, err := s.db.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("store: query matches: %w", err)
	}
	defer rows.Close()

	out := make([]types.Match, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan match: %w", err)
		}
		var m types.Match
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("store: decode match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
