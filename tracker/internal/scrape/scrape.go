package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metric names exported by the server.
const (
	MetricEventsAccepted = "contextcommerce_events_accepted_total"
	MetricEventsDropped  = "contextcommerce_events_dropped_total"
	MetricProxyRequests  = "contextcommerce_proxy_requests_total"
	MetricStreamClients  = "contextcommerce_stream_clients"
)

const defaultTimeout = 10 * time.Second

// Summary is one reading of the server's counters. Counters are raw totals
// since server start.
type Summary struct {
	ScrapedAt time.Time `json:"scrapedAt"`

	Accepted float64 `json:"accepted"`

	// Dropped is keyed by the drop reason label.
	Dropped map[string]float64 `json:"dropped"`

	// ProxyRequests is keyed by the outcome label.
	ProxyRequests map[string]float64 `json:"proxyRequests"`

	StreamClients float64 `json:"streamClients"`
}

// TotalDropped sums Dropped over all reasons.
func (s *Summary) TotalDropped() float64 {
	var total float64
	for _, v := range s.Dropped {
		total += v
	}
	return total
}

// Scraper fetches one metrics URL.
type Scraper struct {
	url    string
	client *http.Client
}

// New returns a Scraper for url. A zero timeout means 10s.
func New(url string, timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Scraper{url: url, client: &http.Client{Timeout: timeout}}
}

// Scrape fetches and summarizes the server's metrics.
func (s *Scraper) Scrape(ctx context.Context) (*Summary, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.url)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", s.url, err)
	}
	return &Summary{
		ScrapedAt:     time.Now().UTC(),
		Accepted:      sumFamily(mfs[MetricEventsAccepted]),
		Dropped:       sumByLabel(mfs[MetricEventsDropped], "reason"),
		ProxyRequests: sumByLabel(mfs[MetricProxyRequests], "outcome"),
		StreamClients: sumFamily(mfs[MetricStreamClients]),
	}, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition. A partial parse that
// produced families is still a success.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge or untyped values in mf.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += value(m)
	}
	return total
}

// sumByLabel groups the values in mf by the given label. Series without the
// label are counted under "".
func sumByLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		key := ""
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				key = lp.GetValue()
				break
			}
		}
		out[key] += value(m)
	}
	return out
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}

// Fetch scrapes url once. The request is bounded by ctx, and by the default
// 10s client timeout when ctx has no deadline.
func Fetch(ctx context.Context, url string) (*Summary, error) {
	return New(url, 0).Scrape(ctx)
}
