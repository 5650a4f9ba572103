// Package eventlog is the widget-side analytics queue.
//
// Logger.Log enriches a payload with consent, attribution, session id and
// timestamp and appends it to a bounded in-memory queue. Nothing is queued
// unless tracking consent is granted. When the queue is full the oldest
// event is evicted.
//
// Logger.Run flushes the queue to a Sink every flush interval. A failed
// batch is put back at the front of the queue in its original order and the
// next attempt waits with exponential backoff (1s doubling to 60s, ±25%
// jitter). Batches the server rejects with a 4xx other than 408 or 429 are
// discarded since retrying cannot succeed. Run flushes once more on shutdown.
//
// Two sinks are provided: ConsoleSink logs batches through slog, and HTTPSink
// POSTs {"events":[...]} to the server's /events route.
package eventlog
