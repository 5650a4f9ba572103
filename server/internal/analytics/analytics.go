package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/contextcommerce/contextcommerce/pkg/types"
	"github.com/contextcommerce/contextcommerce/server/internal/store"
)

// Bounds for the days window.
const (
	DefaultDays = 7
	MaxDays     = 90
)

// Summary is the analytics payload served by GET /analytics and pushed to
// /ws/stream subscribers.
type Summary struct {
	Daily       []types.AnalyticsDay    `json:"daily"`
	Totals      map[types.EventName]int `json:"totals"`
	Sessions    int                     `json:"sessions"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// EventSource is the subset of store.Store that Build needs.
type EventSource interface {
	Events(ctx context.Context, f store.EventFilter) ([]types.StoredEvent, error)
}

// WindowStart returns midnight UTC of the first day in a window of days
// dates ending on now's date.
func WindowStart(days int, now time.Time) time.Time {
	days = clampDays(days)
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))
}

// Rollup aggregates events into one AnalyticsDay per UTC date in the window,
// oldest first. Days without events are present with zero counts. Events
// outside the window are ignored.
func Rollup(events []types.StoredEvent, days int, now time.Time) Summary {
	days = clampDays(days)
	start := WindowStart(days, now)

	daily := make([]types.AnalyticsDay, days)
	index := make(map[string]int, days)
	for i := range daily {
		date := start.AddDate(0, 0, i).Format(time.DateOnly)
		daily[i].Date = date
		index[date] = i
	}

	totals := make(map[types.EventName]int)
	sessions := make(map[string]struct{})
	for _, e := range events {
		i, ok := index[e.OccurredTime().UTC().Format(time.DateOnly)]
		if !ok {
			continue
		}
		totals[e.Event]++
		if e.SessionID != "" {
			sessions[e.SessionID] = struct{}{}
		}
		switch e.Event {
		case types.EventProductImpression:
			daily[i].Impressions++
		case types.EventProductClick:
			daily[i].Clicks++
		}
	}

	for i := range daily {
		daily[i].CTR = CTR(daily[i].Clicks, daily[i].Impressions)
	}

	return Summary{
		Daily:       daily,
		Totals:      totals,
		Sessions:    len(sessions),
		GeneratedAt: now.UTC(),
	}
}

// Build loads events received since the window start and rolls them up.
func Build(ctx context.Context, src EventSource, days int, now time.Time) (Summary, error) {
	// One extra day of slack catches events received just after midnight
	// that occurred on the first day of the window.
	since := WindowStart(days, now).Add(-24 * time.Hour)
	events, err := src.Events(ctx, store.EventFilter{Since: since})
	if err != nil {
		return Summary{}, fmt.Errorf("analytics: load events: %w", err)
	}
	return Rollup(events, days, now), nil
}

// CTR returns clicks/impressions as a percentage rounded to two decimals,
// or 0 when there are no impressions.
func CTR(clicks, impressions int) float64 {
	if impressions <= 0 {
		return 0
	}
	return math.Round(float64(clicks)/float64(impressions)*100*100) / 100
}

func clampDays(days int) int {
	if days <= 0 {
		return DefaultDays
	}
	return min(days, MaxDays)
}
