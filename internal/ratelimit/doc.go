// Package ratelimit guards every route with a fixed-window request counter
// keyed on two independent dimensions: hashed client IP and hashed principal
// (authenticated session or verified ingest-secret holder).
//
// State is per-process. A multi-instance deployment enforces limits
// independently per instance; that is an accepted degradation, not a
// correctness bug.
package ratelimit
