// Package store keeps ingested analytics events and editor-approved article
// matches.
//
// Three backends implement Store:
//
//	memory    maps guarded by a RWMutex; Run evicts events past the retention TTL
//	sqlite    github.com/mattn/go-sqlite3, single file
//	postgres  github.com/lib/pq
//
// The SQL backends share one implementation. Tables are created lazily on
// first use and every statement runs under its own timeout.
package store
