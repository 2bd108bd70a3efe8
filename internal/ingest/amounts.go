package ingest

import (
	"errors"

	"github.com/shopspring/decimal"
)

// deriveAmounts fills the USD amount bounds in place.
//
// Form 3/4 filings with both shares and price get an exact computed amount
// that overrides any producer-supplied bounds. Otherwise a single amount_usd
// becomes both bounds, insider forms mirror a lone bound, and congressional
// disclosures must arrive with an explicit range.
func deriveAmounts(prefix string, it *item) error {
	insider := prefix == "FORM 3" || prefix == "FORM 4"

	if insider && it.shares != nil && it.price != nil {
		// Round half away from zero, like the filings themselves.
		amount := it.price.Mul(decimal.NewFromInt(*it.shares)).Round(0).IntPart()
		it.amountLow = &amount
		it.amountHigh = &amount
		return nil
	}

	if it.amountLow == nil && it.amountHigh == nil && it.amount != nil {
		it.amountLow = it.amount
		it.amountHigh = it.amount
	}

	switch {
	case insider:
		if it.amountLow == nil && it.amountHigh != nil {
			it.amountLow = it.amountHigh
		} else if it.amountHigh == nil && it.amountLow != nil {
			it.amountHigh = it.amountLow
		}
	case prefix == "CONGRESS":
		if it.amountLow == nil || it.amountHigh == nil {
			return errors.New("For form=CONGRESS, provide amount_usd_low and amount_usd_high")
		}
	}
	return nil
}
