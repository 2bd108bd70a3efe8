package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a persisted disclosure event: an SEC filing row (Form 3/4,
// Schedule 13D, 13F, 8-K, 10-K) or a congressional trade disclosure.
type Trade struct {
	ID int64

	// ExternalID is producer-supplied, or generated ("gen:<hex>") from a
	// content hash when the producer sends none.
	ExternalID string

	Ticker      *string
	CompanyName *string
	PersonName  *string
	PersonSlug  *string

	// TransactionType is free text from the upstream scraper ("A", "D",
	// "BUY", "SELL", ...).
	TransactionType *string
	// Form is a canonical taxonomy label after classification
	// ("FORM 4", "SCHEDULE 13D/A", "CONGRESS", ...).
	Form *string

	TransactionDate *time.Time
	FiledAt         *time.Time

	AmountUSDLow  *int64
	AmountUSDHigh *int64
	Shares        *int64
	PriceUSD      *decimal.Decimal

	URL *string

	// Raw holds the original payload, size-capped before storage.
	Raw map[string]any

	CreatedAt time.Time
}

// MergeFrom overwrites fields from in when they are non-nil. Fields absent
// from a later ingestion never null out previously stored values.
func (t *Trade) MergeFrom(in *Trade) {
	if in.Ticker != nil {
		t.Ticker = in.Ticker
	}
	if in.CompanyName != nil {
		t.CompanyName = in.CompanyName
	}
	if in.PersonName != nil {
		t.PersonName = in.PersonName
	}
	if in.PersonSlug != nil {
		t.PersonSlug = in.PersonSlug
	}
	if in.TransactionType != nil {
		t.TransactionType = in.TransactionType
	}
	if in.Form != nil {
		t.Form = in.Form
	}
	if in.TransactionDate != nil {
		t.TransactionDate = in.TransactionDate
	}
	if in.FiledAt != nil {
		t.FiledAt = in.FiledAt
	}
	if in.AmountUSDLow != nil {
		t.AmountUSDLow = in.AmountUSDLow
	}
	if in.AmountUSDHigh != nil {
		t.AmountUSDHigh = in.AmountUSDHigh
	}
	if in.Shares != nil {
		t.Shares = in.Shares
	}
	if in.PriceUSD != nil {
		t.PriceUSD = in.PriceUSD
	}
	if in.URL != nil {
		t.URL = in.URL
	}
	if in.Raw != nil {
		t.Raw = in.Raw
	}
}

// ItemError reports a single failed item within a batch, by its position in
// the submitted payload.
type ItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchReport is the outcome of one ingestion batch.
type BatchReport struct {
	Inserted     int         `json:"inserted"`
	Updated      int         `json:"updated"`
	SkippedEmpty int         `json:"skipped_empty"`
	Errors       []ItemError `json:"errors"`
}

// TradeFilter selects trades for listing and export. Zero values mean
// "no constraint".
type TradeFilter struct {
	// FormPrefix is a canonical prefix match ("FORM 4" matches "FORM 4/A").
	FormPrefix string
	// FormExact matches the full form string case-insensitively; used when
	// the requested form normalizes but resolves to no canonical prefix.
	FormExact string
	// TickerContains / PersonContains are case-insensitive substring matches.
	TickerContains string
	PersonContains string
	// TxCandidates matches transaction_type or form (lower-cased) against
	// any of the given values.
	TxCandidates []string

	From *time.Time
	To   *time.Time

	Limit  int
	Offset int
}
