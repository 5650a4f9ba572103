// Package analytics rolls stored widget events up into the dashboard
// performance series: impressions, clicks and CTR per UTC day.
//
// Rollup is a pure function of its inputs so tests control the clock.
// Build loads the window from a store.Store and calls Rollup.
package analytics
