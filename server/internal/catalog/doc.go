// Package catalog holds the local product catalog: the built-in demo seed
// (or a YAML seed file), keyword search with the dashboard's sort orders,
// and create/delete for the admin screens.
//
// Sort keys:
//
//	asc       price ascending
//	dsc       price descending
//	date      updatedAt, newest first
//	sim, pop  aiScore desc, then total content matches desc, then name (default)
//
// Catalog is safe for concurrent use. Watch reloads the seed file when it changes.
package catalog
