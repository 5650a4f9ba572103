// Package receiver implements POST /events, the ingest endpoint the widget
// tracker flushes its queue to.
//
// A request body is {"events":[...]} of at most 1 MiB. The batch is checked
// against the max_batch limit and then validated against a JSON Schema
// (github.com/santhosh-tekuri/jsonschema/v6). Events whose metadata records a
// consent other than "granted" are dropped when consent is required. The
// remaining events get a uuid and a receive timestamp and are appended to the
// store in one call.
package receiver
