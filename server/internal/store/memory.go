package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

// Memory is a thread-safe in-memory Store. Events older than the retention
// TTL are dropped by Run; matches are kept for the life of the process.
type Memory struct {
	mu      sync.RWMutex
	events  []types.StoredEvent // ordered by ReceivedAt
	matches map[string][]types.Match
	ttl     time.Duration
	now     func() time.Time // injectable for deterministic tests
}

// NewMemory creates a Memory store with the given retention TTL.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		matches: make(map[string][]types.Match),
		ttl:     ttl,
		now:     time.Now,
	}
}

// AppendEvents implements Store.
func (m *Memory) AppendEvents(_ context.Context, events []types.StoredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	less := func(i, j int) bool { return m.events[i].ReceivedAt.Before(m.events[j].ReceivedAt) }
	if !sort.SliceIsSorted(m.events, less) {
		sort.SliceStable(m.events, less)
	}
	return nil
}

// Events implements Store. Entries past the TTL that have not yet been
// evicted are excluded.
func (m *Memory) Events(_ context.Context, f EventFilter) ([]types.StoredEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := m.now().Add(-m.ttl)
	out := make([]types.StoredEvent, 0)
	for _, e := range m.events {
		if !e.ReceivedAt.After(cutoff) || !f.match(e) {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

// SaveMatches implements Store.
func (m *Memory) SaveMatches(_ context.Context, articleID string, matches []types.Match) (int, error) {
	cp := make([]types.Match, len(matches))
	for i, mt := range matches {
		mt.ArticleID = articleID
		cp[i] = mt
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(cp) == 0 {
		delete(m.matches, articleID)
		return 0, nil
	}
	m.matches[articleID] = cp
	return len(cp), nil
}

// Matches implements Store.
func (m *Memory) Matches(_ context.Context, articleID string) ([]types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.Match{}, m.matches[articleID]...), nil
}

// Count returns the number of events held, including ones past the TTL.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

// Evict removes events whose ReceivedAt is at or before now minus TTL.
// It returns the number of events removed.
func (m *Memory) Evict(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := now.Add(-m.ttl)
	i := sort.Search(len(m.events), func(i int) bool {
		return m.events[i].ReceivedAt.After(cutoff)
	})
	if i == 0 {
		return 0
	}
	m.events = append([]types.StoredEvent(nil), m.events[i:]...)
	return i
}

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second) so events are evicted promptly. Run blocks until ctx is
// cancelled.
func (m *Memory) Run(ctx context.Context) {
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := m.Evict(now); n > 0 {
				slog.Debug("store: evicted expired events", "count", n)
			}
		}
	}
}
