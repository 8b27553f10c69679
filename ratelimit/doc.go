// Package ratelimit provides fixed-window request counting keyed by scope.
//
// A scope is either a single client token or the global aggregate. Counters
// for the same scope are mutated under a per-scope lock, so concurrent
// requests never lose an increment; distinct scopes proceed fully
// concurrently. Counters live in memory only and reset on restart, which is
// an accepted trade-off for advisory throttling.
package ratelimit
