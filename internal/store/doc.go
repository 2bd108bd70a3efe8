// Package store persists disclosure trades.
//
// Two implementations back the same interface:
//   - Postgres: production storage via pgxpool
//   - Memory: development and test storage, no external dependencies
//
// Batches stage all writes inside a single transaction so a replayed
// ingestion either lands completely or not at all.
package store
