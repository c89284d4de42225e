// Package aggregate computes the dashboard views from a slice of rental
// records. Every function is pure and independent of the others, and each
// degrades to an empty result (empty slice, NaN or nil cell) on empty input
// instead of failing.
package aggregate
