package store

import (
	"context"

	"github.com/stijnvankasteren/insider-trading-app/internal/model"
)

// Batch stages the writes of one ingestion batch. All operations run inside
// a single transaction; nothing is visible to readers until Commit.
type Batch interface {
	// FindByExternalID returns the stored trade with the given external ID,
	// or (nil, nil) when none exists. Rows staged earlier in the same batch
	// are visible.
	FindByExternalID(ctx context.Context, externalID string) (*model.Trade, error)

	Insert(ctx context.Context, t *model.Trade) error
	Update(ctx context.Context, t *model.Trade) error

	Commit(ctx context.Context) error
	// Rollback discards the batch. Safe to call after Commit.
	Rollback(ctx context.Context) error
}

// TradeStore is the persistence boundary for disclosure trades.
type TradeStore interface {
	BeginBatch(ctx context.Context) (Batch, error)

	// ListTrades returns one page of trades plus the total match count.
	// Ordering is newest-first by filed_at with unfiled rows last, then by
	// created_at.
	ListTrades(ctx context.Context, f model.TradeFilter) ([]model.Trade, int64, error)

	// DeleteByFormPrefix removes trades whose form starts with prefix
	// (case-insensitive). An empty prefix removes every trade. Returns the
	// number of rows deleted.
	DeleteByFormPrefix(ctx context.Context, prefix string) (int64, error)

	Ping(ctx context.Context) error
	Close()
}
