package scrape

import "time"

// Rates are per-minute rates derived from two consecutive Summaries.
type Rates struct {
	Elapsed    time.Duration `json:"elapsed"`
	AcceptedPM float64       `json:"acceptedPerMinute"`
	DroppedPM  float64       `json:"droppedPerMinute"`
	ProxyPM    float64       `json:"proxyPerMinute"`

	// DropPct is dropped / (accepted + dropped) over the interval.
	DropPct float64 `json:"dropPct"`

	// FallbackPct is the share of proxy requests served from the local catalog.
	FallbackPct float64 `json:"fallbackPct"`
}

// Rate derives per-minute rates between prev and cur. A counter that went
// backwards (server restart) contributes zero for the interval.
func Rate(prev, cur *Summary) Rates {
	elapsed := cur.ScrapedAt.Sub(prev.ScrapedAt)
	minutes := elapsed.Minutes()
	if minutes <= 0 {
		minutes = 1 // clock went backwards or identical timestamps
	}

	accepted := deltaOf(cur.Accepted, prev.Accepted)
	dropped := deltaOf(cur.TotalDropped(), prev.TotalDropped())

	var proxy, fallback float64
	for outcome, v := range cur.ProxyRequests {
		d := deltaOf(v, prev.ProxyRequests[outcome])
		proxy += d
		if outcome == "fallback" {
			fallback += d
		}
	}

	r := Rates{
		Elapsed:    elapsed,
		AcceptedPM: accepted / minutes,
		DroppedPM:  dropped / minutes,
		ProxyPM:    proxy / minutes,
	}
	if total := accepted + dropped; total > 0 {
		r.DropPct = dropped / total * 100
	}
	if proxy > 0 {
		r.FallbackPct = fallback / proxy * 100
	}
	return r
}

// deltaOf returns the positive counter delta between current and previous.
func deltaOf(current, previous float64) float64 {
	d := current - previous
	if d < 0 {
		return 0
	}
	return d
}
