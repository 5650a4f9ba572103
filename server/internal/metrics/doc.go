// Package metrics owns the server's Prometheus collectors. They live on a
// dedicated registry served at /metrics so tests can build fresh instances.
package metrics
