package attribution

import (
	"log/slog"
	"net/url"
	"sync"

	"github.com/contextcommerce/contextcommerce/pkg/types"
)

// FromURL returns the non-empty utm_source, utm_medium and utm_campaign
// values of raw. A URL that cannot be parsed yields a zero Attribution.
func FromURL(raw string) types.Attribution {
	u, err := url.Parse(raw)
	if err != nil {
		slog.Debug("attribution: unparsable landing url", "url", raw, "err", err)
		return types.Attribution{}
	}
	q := u.Query()
	return types.Attribution{
		UTMSource:   q.Get("utm_source"),
		UTMMedium:   q.Get("utm_medium"),
		UTMCampaign: q.Get("utm_campaign"),
	}
}

// Session holds the attribution of one tracking session.
type Session struct {
	mu         sync.Mutex
	landingURL string
	stored     *types.Attribution
}

// NewSession returns a Session that captures from landingURL on first use.
func NewSession(landingURL string) *Session {
	return &Session{landingURL: landingURL}
}

// Get returns the stored attribution. If nothing is stored yet it captures
// from the landing URL, storing the result only when it is non-empty.
func (s *Session) Get() types.Attribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored != nil {
		return *s.stored
	}
	a := FromURL(s.landingURL)
	if a.IsZero() {
		return types.Attribution{}
	}
	s.stored = &a
	return a
}

// SetLanding points later captures at a new landing URL. An attribution that
// was already captured is kept.
func (s *Session) SetLanding(raw string) {
	s.mu.Lock()
	s.landingURL = raw
	s.mu.Unlock()
}
