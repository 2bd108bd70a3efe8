// Package model defines shared data types for the disclosure trade service.
//
// Conventions:
//   - Optional columns are pointers; nil means "not known yet".
//   - Money bounds: whole USD as int64, low <= high when both are set.
//   - Prices: exact decimals (shopspring/decimal), never floats.
//   - ExternalID is the idempotency key; unique and immutable once assigned.
package model
