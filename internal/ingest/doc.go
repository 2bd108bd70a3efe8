// Package ingest accepts disclosure-trade batches from upstream scrapers,
// normalizes them, and upserts them idempotently.
//
// The pipeline is deliberately lenient about input shape (aliases, stringly
// numbers, mixed date formats) and strict about outcomes: every item either
// lands as an insert or update, is skipped as empty, or produces a per-item
// error that names the problem. One batch is one transaction.
package ingest
