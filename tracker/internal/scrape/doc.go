// Package scrape reads the server's Prometheus /metrics endpoint and reduces
// it to the few counters the tracker CLI reports: accepted events, dropped
// events by reason, proxy requests by outcome and live stream clients.
package scrape
