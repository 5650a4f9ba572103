package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("store: unknown backend")

// EventFilter narrows an Events query. Zero values mean "no constraint".
type EventFilter struct {
	// Since keeps events received at or after this instant.
	Since time.Time
	// Name keeps only events of this type.
	Name types.EventName
	// Limit keeps the most recent Limit events.
	Limit int
}

func (f EventFilter) match(e types.StoredEvent) bool {
	if !f.Since.IsZero() && e.ReceivedAt.Before(f.Since) {
		return false
	}
	if f.Name != "" && e.Event != f.Name {
		return false
	}
	return true
}

// Store persists events and approved matches.
type Store interface {
	// AppendEvents records a batch of accepted events.
	AppendEvents(ctx context.Context, events []types.StoredEvent) error

	// Events returns matching events ordered oldest first.
	Events(ctx context.Context, f EventFilter) ([]types.StoredEvent, error)

	// SaveMatches replaces the approved matches for articleID and returns
	// how many were saved.
	SaveMatches(ctx context.Context, articleID string, matches []types.Match) (int, error)

	// Matches returns the approved matches for articleID in saved order.
	Matches(ctx context.Context, articleID string) ([]types.Match, error)

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend   string
	Path      string
	DSN       string
	Retention time.Duration
}

// Open returns the Store described by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.Retention), nil
	case "sqlite":
		s, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
	}
}
