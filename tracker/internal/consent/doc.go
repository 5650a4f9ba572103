// Package consent persists the visitor's tracking decision in a small JSON
// file and notifies subscribers when it changes.
package consent
