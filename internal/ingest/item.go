package ingest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stijnvankasteren/insider-trading-app/internal/coerce"
)

// Field length caps mirror the storage column sizes.
const (
	maxExternalIDLen = 160
	maxTickerLen     = 16
	maxNameLen       = 256
	maxTxTypeLen     = 32
	maxFormLen       = 32
	maxURLLen        = 1024
)

// item is one payload after alias resolution and coercion, before
// classification and amount derivation.
type item struct {
	externalID  *string
	ticker      *string
	companyName *string
	personName  *string
	personSlug  *string
	txType      *string
	form        *string

	txDate  *time.Time
	filedAt *time.Time

	amountLow  *int64
	amountHigh *int64
	amount     *int64
	shares     *int64
	price      *decimal.Decimal

	url *string
}

// knownKeys is every accepted field name, snake_case and camelCase alike.
// Anything else counts as an unknown field.
var knownKeys = map[string]bool{
	"external_id": true, "externalId": true,
	"ticker": true, "symbol": true,
	"company_name": true, "companyName": true,
	"person_name": true, "personName": true,
	"person_slug": true, "personSlug": true,
	"transaction_type": true, "type": true,
	"form": true, "issuerForm": true, "reportingForm": true,
	"transaction_date": true, "transactionDate": true,
	"filed_at": true, "filedAt": true,
	"amount_usd_low": true, "amountUsdLow": true,
	"amount_usd_high": true, "amountUsdHigh": true,
	"amount_usd": true, "amountUsd": true,
	"shares":    true,
	"price_usd": true, "priceUsd": true,
	"url": true,
	"raw": true,
}

// pick returns the value for the first alias present in the payload. A null
// value still claims its alias, matching how producers send explicit nulls.
func pick(payload map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			return v
		}
	}
	return nil
}

type itemProblems []string

func (p *itemProblems) add(field, reason string) {
	*p = append(*p, field+": "+reason)
}

func (p itemProblems) err() error {
	if len(p) == 0 {
		return nil
	}
	capped := p
	if len(capped) > 5 {
		capped = capped[:5]
	}
	return fmt.Errorf("Invalid item: %s", strings.Join(capped, "; "))
}

func (p *itemProblems) str(payload map[string]any, field string, maxLen int, keys ...string) *string {
	v := coerce.Str(pick(payload, keys...))
	if v.Status != coerce.OK {
		return nil
	}
	if len(v.Val) > maxLen {
		p.add(field, fmt.Sprintf("exceeds %d characters", maxLen))
		return nil
	}
	return v.Ptr()
}

func (p *itemProblems) int64(payload map[string]any, field string, keys ...string) *int64 {
	v := coerce.Int(pick(payload, keys...))
	if v.Status == coerce.Invalid {
		p.add(field, v.Reason)
		return nil
	}
	return v.Ptr()
}

// parseItem resolves aliases and coerces every field of one payload. All
// problems are collected so the item error names up to five of them at once.
func parseItem(payload map[string]any, rejectUnknown bool) (*item, error) {
	var problems itemProblems

	it := &item{
		externalID:  problems.str(payload, "external_id", maxExternalIDLen, "external_id", "externalId"),
		ticker:      problems.str(payload, "ticker", maxTickerLen, "ticker", "symbol"),
		companyName: problems.str(payload, "company_name", maxNameLen, "company_name", "companyName"),
		personName:  problems.str(payload, "person_name", maxNameLen, "person_name", "personName"),
		personSlug:  problems.str(payload, "person_slug", maxNameLen, "person_slug", "personSlug"),
		txType:      problems.str(payload, "transaction_type", maxTxTypeLen, "transaction_type", "type"),
		form:        problems.str(payload, "form", maxFormLen, "form", "issuerForm", "reportingForm"),
		amountLow:   problems.int64(payload, "amount_usd_low", "amount_usd_low", "amountUsdLow"),
		amountHigh:  problems.int64(payload, "amount_usd_high", "amount_usd_high", "amountUsdHigh"),
		amount:      problems.int64(payload, "amount_usd", "amount_usd", "amountUsd"),
		shares:      problems.int64(payload, "shares", "shares"),
		url:         problems.str(payload, "url", maxURLLen, "url"),
	}

	if v := coerce.Date(pick(payload, "transaction_date", "transactionDate")); v.Status == coerce.Invalid {
		problems.add("transaction_date", v.Reason)
	} else {
		it.txDate = v.Ptr()
	}
	if v := coerce.DateTime(pick(payload, "filed_at", "filedAt")); v.Status == coerce.Invalid {
		problems.add("filed_at", v.Reason)
	} else {
		it.filedAt = v.Ptr()
	}
	if v := coerce.Decimal(pick(payload, "price_usd", "priceUsd")); v.Status == coerce.Invalid {
		problems.add("price_usd", v.Reason)
	} else {
		it.price = v.Ptr()
	}

	if err := problems.err(); err != nil {
		return nil, err
	}

	if it.ticker != nil {
		upper := strings.ToUpper(*it.ticker)
		it.ticker = &upper
	}
	if it.personSlug != nil {
		if slug := coerce.Slugify(*it.personSlug); slug != "" {
			it.personSlug = &slug
		} else {
			it.personSlug = nil
		}
	}

	if rejectUnknown {
		var extras []string
		for k := range payload {
			if !knownKeys[k] {
				extras = append(extras, k)
			}
		}
		if len(extras) > 0 {
			sort.Strings(extras)
			return nil, fmt.Errorf("Unexpected field(s): %s", strings.Join(extras, ", "))
		}
	}

	return it, nil
}
