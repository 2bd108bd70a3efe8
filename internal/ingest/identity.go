package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// generateExternalID derives a stable idempotency key from the normalized
// trade content. It runs after classification and amount derivation, so two
// payloads that normalize to the same trade hash identically regardless of
// the aliases or formats the producer used.
func generateExternalID(it *item, form string) string {
	stable := map[string]any{
		"ticker":           it.ticker,
		"company_name":     it.companyName,
		"person_name":      it.personName,
		"transaction_type": it.txType,
		"form":             form,
		"transaction_date": isoDate(it.txDate),
		"filed_at":         isoDateTime(it.filedAt),
		"amount_usd_low":   it.amountLow,
		"amount_usd_high":  it.amountHigh,
		"shares":           it.shares,
		"price_usd":        it.price,
		"url":              it.url,
	}

	// Map keys marshal in sorted order, so the projection is byte-stable.
	encoded, _ := json.Marshal(stable)
	digest := sha256.Sum256(encoded)
	return "gen:" + hex.EncodeToString(digest[:])
}

func isoDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func isoDateTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
