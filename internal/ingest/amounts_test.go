package ingest

import (
	"testing"

	"github.com/shopspring/decimal"
)

func int64Ptr(n int64) *int64 { return &n }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestDeriveAmounts_ComputedFromSharesAndPrice(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		shares int64
		price  string
		want   int64
	}{
		{"exact product", "FORM 4", 100, "10.00", 1000},
		{"half rounds up", "FORM 4", 100, "10.005", 1001},
		{"below half rounds down", "FORM 4", 100, "10.004", 1000},
		{"form 3 computes too", "FORM 3", 10, "99.99", 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := &item{
				shares: int64Ptr(tt.shares),
				price:  decPtr(tt.price),
				// Producer bounds lose to the computed amount.
				amountLow:  int64Ptr(1),
				amountHigh: int64Ptr(2),
			}
			if err := deriveAmounts(tt.prefix, it); err != nil {
				t.Fatalf("deriveAmounts() error = %v", err)
			}
			if it.amountLow == nil || *it.amountLow != tt.want {
				t.Errorf("amountLow = %v, want %d", it.amountLow, tt.want)
			}
			if it.amountHigh == nil || *it.amountHigh != tt.want {
				t.Errorf("amountHigh = %v, want %d", it.amountHigh, tt.want)
			}
		})
	}
}

func TestDeriveAmounts_MidpointFillsBothBounds(t *testing.T) {
	it := &item{amount: int64Ptr(5000)}
	if err := deriveAmounts("SCHEDULE 13D", it); err != nil {
		t.Fatalf("deriveAmounts() error = %v", err)
	}
	if it.amountLow == nil || *it.amountLow != 5000 {
		t.Errorf("amountLow = %v, want 5000", it.amountLow)
	}
	if it.amountHigh == nil || *it.amountHigh != 5000 {
		t.Errorf("amountHigh = %v, want 5000", it.amountHigh)
	}
}

func TestDeriveAmounts_AmountDoesNotOverrideBounds(t *testing.T) {
	it := &item{amount: int64Ptr(5000), amountLow: int64Ptr(100)}
	if err := deriveAmounts("SCHEDULE 13D", it); err != nil {
		t.Fatalf("deriveAmounts() error = %v", err)
	}
	if *it.amountLow != 100 {
		t.Errorf("amountLow = %d, want 100 (explicit bound wins)", *it.amountLow)
	}
	if it.amountHigh != nil {
		t.Errorf("amountHigh = %v, want nil for non-insider form", *it.amountHigh)
	}
}

func TestDeriveAmounts_InsiderFormsMirrorLoneBound(t *testing.T) {
	it := &item{amountLow: int64Ptr(300)}
	if err := deriveAmounts("FORM 4", it); err != nil {
		t.Fatalf("deriveAmounts() error = %v", err)
	}
	if it.amountHigh == nil || *it.amountHigh != 300 {
		t.Errorf("amountHigh = %v, want mirrored 300", it.amountHigh)
	}

	it = &item{amountHigh: int64Ptr(700)}
	if err := deriveAmounts("FORM 3", it); err != nil {
		t.Fatalf("deriveAmounts() error = %v", err)
	}
	if it.amountLow == nil || *it.amountLow != 700 {
		t.Errorf("amountLow = %v, want mirrored 700", it.amountLow)
	}
}

func TestDeriveAmounts_CongressRequiresRange(t *testing.T) {
	it := &item{amountLow: int64Ptr(1000)}
	if err := deriveAmounts("CONGRESS", it); err == nil {
		t.Error("deriveAmounts() = nil, want error for missing amount_usd_high")
	}

	it = &item{amountLow: int64Ptr(1000), amountHigh: int64Ptr(15000)}
	if err := deriveAmounts("CONGRESS", it); err != nil {
		t.Errorf("deriveAmounts() error = %v, want nil with full range", err)
	}

	// Congress never computes from shares and price.
	it = &item{shares: int64Ptr(10), price: decPtr("100")}
	if err := deriveAmounts("CONGRESS", it); err == nil {
		t.Error("deriveAmounts() = nil, want error (shares/price do not satisfy range)")
	}
}
