package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const exposition = `# HELP contextcommerce_events_accepted_total Events accepted by /events.
# TYPE contextcommerce_events_accepted_total counter
contextcommerce_events_accepted_total 42
# HELP contextcommerce_events_dropped_total Events dropped by /events.
# TYPE contextcommerce_events_dropped_total counter
contextcommerce_events_dropped_total{reason="no_consent"} 3
contextcommerce_events_dropped_total{reason="invalid"} 1
# HELP contextcommerce_proxy_requests_total Upstream requests.
# TYPE contextcommerce_proxy_requests_total counter
contextcommerce_proxy_requests_total{endpoint="shop",outcome="ok"} 10
contextcommerce_proxy_requests_total{endpoint="datalab_search",outcome="ok"} 5
contextcommerce_proxy_requests_total{endpoint="shop",outcome="fallback"} 2
# HELP contextcommerce_stream_clients Connected stream clients.
# TYPE contextcommerce_stream_clients gauge
contextcommerce_stream_clients 2
`

func metricsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept"), "text/plain") {
			t.Errorf("Accept header: got %q", r.Header.Get("Accept"))
		}
		w.WriteHeader(status)
		w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrape(t *testing.T) {
	srv := metricsServer(t, http.StatusOK, exposition)

	sum, err := New(srv.URL+"/metrics", time.Second).Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if sum.Accepted != 42 {
		t.Errorf("Accepted: got %v, want 42", sum.Accepted)
	}
	if sum.Dropped["no_consent"] != 3 || sum.Dropped["invalid"] != 1 {
		t.Errorf("Dropped: got %v", sum.Dropped)
	}
	if sum.TotalDropped() != 4 {
		t.Errorf("TotalDropped: got %v, want 4", sum.TotalDropped())
	}
	if sum.ProxyRequests["ok"] != 15 || sum.ProxyRequests["fallback"] != 2 {
		t.Errorf("ProxyRequests: got %v", sum.ProxyRequests)
	}
	if sum.StreamClients != 2 {
		t.Errorf("StreamClients: got %v, want 2", sum.StreamClients)
	}
	if sum.ScrapedAt.IsZero() {
		t.Error("ScrapedAt not set")
	}
}

func TestScrape_MissingFamilies(t *testing.T) {
	srv := metricsServer(t, http.StatusOK, "# TYPE go_goroutines gauge\ngo_goroutines 7\n")

	sum, err := New(srv.URL, 0).Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if sum.Accepted != 0 || sum.TotalDropped() != 0 || len(sum.ProxyRequests) != 0 {
		t.Errorf("expected zero summary, got %+v", sum)
	}
}

func TestScrape_BadStatus(t *testing.T) {
	srv := metricsServer(t, http.StatusServiceUnavailable, "")
	if _, err := New(srv.URL, time.Second).Scrape(context.Background()); err == nil {
		t.Fatal("expected error for 503, got nil")
	}
}

func TestParseMetrics_Garbage(t *testing.T) {
	if _, err := parseMetrics(strings.NewReader("{not prometheus")); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestSumByLabel_Unlabelled(t *testing.T) {
	mfs, err := parseMetrics(strings.NewReader("# TYPE x counter\nx 5\n"))
	if err != nil {
		t.Fatal(err)
	}
	got := sumByLabel(mfs["x"], "reason")
	if got[""] != 5 {
		t.Errorf(`sumByLabel[""]: got %v, want 5`, got[""])
	}
}

func TestFetch(t *testing.T) {
	srv := metricsServer(t, http.StatusOK, exposition)

	sum, err := Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if sum.Accepted != 42 {
		t.Errorf("Accepted: got %v, want 42", sum.Accepted)
	}
}

func TestFetch_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := Fetch(ctx, srv.URL); err == nil {
		t.Fatal("expected error when the context deadline passes, got nil")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Fetch ignored the context deadline: took %v", elapsed)
	}
}
