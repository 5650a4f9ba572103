// Package types defines the Go types shared by contextcommerce-server and
// contextcommerce-tracker. JSON tags match the wire format used by the web
// client, so the same structs decode browser payloads and stored rows.
package types
