// Package auth provides API-key authentication for the mutating HTTP routes
// (product create/delete and match approval).
//
// When mode is "apikey" and a key is configured, every guarded request must
// carry the key in the configured header. Mode "none", or an empty key,
// disables the check.
package auth
