// Package config loads the tracker configuration from the `tracker:` section
// of config.yaml. The `server:` key in the same file is ignored.
//
// Fields:
//   - Endpoint       POST /events URL; empty means batches are logged to the console
//   - MetricsURL     server /metrics URL for the stats command (derived from Endpoint when empty)
//   - FlushInterval  how often the queue is flushed (default 15s)
//   - MaxQueue       queue bound; the oldest event is evicted when full (default 1000)
//   - ConsentFile    where the consent decision is persisted
//   - WidgetVersion  stamped on events that do not carry one
//   - LandingURL     URL the session arrived on, for UTM attribution
//   - Timeout        per-request HTTP timeout (default 10s)
//
// Watch reloads the file on change so a running tracker picks up a new
// endpoint or flush interval.
package config
