package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contextcommerce/contextcommerce/pkg/types"
	"github.com/contextcommerce/contextcommerce/server/internal/store"
)

var now = time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

func ev(name types.EventName, session string, at time.Time) types.StoredEvent {
	return types.StoredEvent{
		QueuedEvent: types.QueuedEvent{
			EventPayload: types.EventPayload{Event: name},
			SessionID:    session,
			OccurredAt:   at.Format(time.RFC3339),
		},
		ReceivedAt: at,
	}
}

func TestCTR(t *testing.T) {
	cases := []struct {
		clicks, impressions int
		want                float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{1, 8, 12.5},
		{10, 10, 100},
	}
	for _, c := range cases {
		if got := CTR(c.clicks, c.impressions); got != c.want {
			t.Errorf("CTR(%d, %d): got %v, want %v", c.clicks, c.impressions, got, c.want)
		}
	}
}

func TestRollup_ZeroFilledWindow(t *testing.T) {
	s := Rollup(nil, 7, now)
	if len(s.Daily) != 7 {
		t.Fatalf("Daily: got %d days, want 7", len(s.Daily))
	}
	if s.Daily[0].Date != "2024-05-04" || s.Daily[6].Date != "2024-05-10" {
		t.Errorf("window: got %s..%s, want 2024-05-04..2024-05-10", s.Daily[0].Date, s.Daily[6].Date)
	}
	for _, d := range s.Daily {
		if d.Impressions != 0 || d.Clicks != 0 || d.CTR != 0 {
			t.Errorf("%s: expected zero row, got %+v", d.Date, d)
		}
	}
	if s.Totals == nil {
		t.Error("Totals should be an empty map, not nil")
	}
}

func TestRollup_Counts(t *testing.T) {
	today := now.Add(-time.Hour)
	yesterday := now.Add(-24 * time.Hour)
	events := []types.StoredEvent{
		ev(types.EventProductImpression, "s1", today),
		ev(types.EventProductImpression, "s1", today),
		ev(types.EventProductImpression, "s2", today),
		ev(types.EventProductClick, "s2", today),
		ev(types.EventProductImpression, "s3", yesterday),
		ev(types.EventPageView, "s3", yesterday),
		// Outside the 7-day window.
		ev(types.EventProductClick, "s9", now.AddDate(0, 0, -10)),
	}

	s := Rollup(events, 7, now)

	last := s.Daily[6]
	if last.Impressions != 3 || last.Clicks != 1 || last.CTR != 33.33 {
		t.Errorf("today: got %+v", last)
	}
	prev := s.Daily[5]
	if prev.Impressions != 1 || prev.Clicks != 0 || prev.CTR != 0 {
		t.Errorf("yesterday: got %+v", prev)
	}
	if s.Totals[types.EventProductImpression] != 4 {
		t.Errorf("impression total: got %d, want 4", s.Totals[types.EventProductImpression])
	}
	if s.Totals[types.EventProductClick] != 1 {
		t.Errorf("click total: got %d, want 1 (out-of-window click excluded)", s.Totals[types.EventProductClick])
	}
	if s.Sessions != 3 {
		t.Errorf("Sessions: got %d, want 3", s.Sessions)
	}
}

func TestRollup_FallsBackToReceivedAt(t *testing.T) {
	e := ev(types.EventProductImpression, "s1", now)
	e.OccurredAt = "not-a-time"
	s := Rollup([]types.StoredEvent{e}, 1, now)
	if len(s.Daily) != 1 || s.Daily[0].Impressions != 1 {
		t.Errorf("got %+v, want one impression today", s.Daily)
	}
}

func TestRollup_DaysClamped(t *testing.T) {
	if got := len(Rollup(nil, 0, now).Daily); got != DefaultDays {
		t.Errorf("days=0: got %d, want %d", got, DefaultDays)
	}
	if got := len(Rollup(nil, 1000, now).Daily); got != MaxDays {
		t.Errorf("days=1000: got %d, want %d", got, MaxDays)
	}
}

type fakeSource struct {
	events []types.StoredEvent
	err    error
	got    store.EventFilter
}

func (f *fakeSource) Events(_ context.Context, filter store.EventFilter) ([]types.StoredEvent, error) {
	f.got = filter
	return f.events, f.err
}

func TestBuild(t *testing.T) {
	src := &fakeSource{events: []types.StoredEvent{ev(types.EventProductClick, "s1", now)}}
	s, err := Build(context.Background(), src, 3, now)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s.Daily[2].Clicks != 1 {
		t.Errorf("clicks today: got %d, want 1", s.Daily[2].Clicks)
	}
	wantSince := time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC)
	if !src.got.Since.Equal(wantSince) {
		t.Errorf("Since: got %v, want %v", src.got.Since, wantSince)
	}
}

func TestBuild_Error(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	if _, err := Build(context.Background(), src, 7, now); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestBuild_MemoryStore(t *testing.T) {
	m := store.NewMemory(30 * 24 * time.Hour)
	ctx := context.Background()
	recent := time.Now().UTC()
	if err := m.AppendEvents(ctx, []types.StoredEvent{
		ev(types.EventProductImpression, "s1", recent),
		ev(types.EventProductClick, "s1", recent),
	}); err != nil {
		t.Fatal(err)
	}
	s, err := Build(ctx, m, 7, recent)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if last := s.Daily[len(s.Daily)-1]; last.CTR != 100 {
		t.Errorf("today CTR: got %v, want 100", last.CTR)
	}
}
