package consent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

// Store is a file-backed consent record. It is safe for concurrent use.
type Store struct {
	path string
	now  func() time.Time

	mu     sync.Mutex
	subs   map[int]func(types.ConsentState)
	nextID int
}

// NewStore returns a Store persisting to path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now, subs: make(map[int]func(types.ConsentState))}
}

// Get returns the stored consent. A missing or unreadable file yields
// {tracking: unknown}.
func (s *Store) Get() types.ConsentState {
	unknown := types.ConsentState{Tracking: types.ConsentUnknown}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("consent: read state", "path", s.path, "err", err)
		}
		return unknown
	}
	var st types.ConsentState
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Warn("consent: ignoring unparsable state", "path", s.path, "err", err)
		return unknown
	}
	if _, ok := types.ParseConsentStatus(string(st.Tracking)); !ok {
		return unknown
	}
	return st
}

// Granted reports whether tracking consent is granted.
func (s *Store) Granted() bool {
	return s.Get().Tracking == types.ConsentGranted
}

// Set records status with the current time and notifies subscribers.
func (s *Store) Set(status types.ConsentStatus) (types.ConsentState, error) {
	if _, ok := types.ParseConsentStatus(string(status)); !ok {
		return types.ConsentState{}, fmt.Errorf("consent: unknown status %q", status)
	}
	st := types.ConsentState{
		Tracking:  status,
		UpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(st)
	if err != nil {
		return types.ConsentState{}, err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return types.ConsentState{}, fmt.Errorf("consent: write %q: %w", s.path, err)
	}
	slog.Info("consent: updated", "tracking", st.Tracking)

	s.mu.Lock()
	subs := make([]func(types.ConsentState), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
	return st, nil
}

// Subscribe registers fn to be called after every Set. The returned func
// removes the subscription.
func (s *Store) Subscribe(fn func(types.ConsentState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// writeAtomic replaces path via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".consent-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
