package extraction

import (
	"testing"
	"time"
)

func strPtr(s string) *string     { return &s }
func numPtr(f float64) *float64   { return &f }
func currency(f float64) *Amount  { return &Amount{Currency: &f} }
func numAmount(f float64) *Amount { return &Amount{Number: &f} }

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestNormalize_DerivedTax(t *testing.T) {
	tests := []struct {
		name    string
		total   float64
		wantTax float64
	}{
		{"zero total", 0, 0},
		{"simple total", 110.00, 11.00},
		{"rounding up", 33.33, 3.33},
		{"small total", 0.05, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &RawDocument{Total: currency(tt.total)}
			n := Normalize(raw, testNow)
			if n.Tax != tt.wantTax {
				t.Errorf("tax = %v, want %v", n.Tax, tt.wantTax)
			}
		})
	}
}

func TestNormalize_MerchantFallbacks(t *testing.T) {
	tests := []struct {
		name string
		raw  *RawDocument
		want string
	}{
		{"merchant name present", &RawDocument{MerchantName: strPtr("Cafe Nero ")}, "Cafe Nero"},
		{"vendor name fallback", &RawDocument{VendorName: strPtr("Office Supply Co")}, "Office Supply Co"},
		{"merchant wins over vendor", &RawDocument{MerchantName: strPtr("A"), VendorName: strPtr("B")}, "A"},
		{"both absent", &RawDocument{}, "Unknown Vendor"},
		{"blank merchant ignored", &RawDocument{MerchantName: strPtr("   ")}, "Unknown Vendor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Normalize(tt.raw, testNow)
			if n.Merchant != tt.want {
				t.Errorf("merchant = %q, want %q", n.Merchant, tt.want)
			}
		})
	}
}

func TestNormalize_DateDefaultsToNow(t *testing.T) {
	n := Normalize(&RawDocument{}, testNow)
	if !n.TransactionDate.Equal(testNow) {
		t.Errorf("transaction date = %v, want %v", n.TransactionDate, testNow)
	}

	n = Normalize(&RawDocument{TransactionDate: strPtr("2026-01-05")}, testNow)
	want := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if !n.TransactionDate.Equal(want) {
		t.Errorf("transaction date = %v, want %v", n.TransactionDate, want)
	}
}

func TestNormalize_TotalFromEitherField(t *testing.T) {
	n := Normalize(&RawDocument{Total: currency(42.50)}, testNow)
	if n.Total != 42.50 {
		t.Errorf("currency total = %v, want 42.50", n.Total)
	}

	n = Normalize(&RawDocument{Total: numAmount(19.95)}, testNow)
	if n.Total != 19.95 {
		t.Errorf("numeric total = %v, want 19.95", n.Total)
	}
}

func TestNormalize_LineItems(t *testing.T) {
	raw := &RawDocument{
		Items: []RawLineItem{
			{Description: strPtr("Coffee"), Quantity: numPtr(2), TotalPrice: currency(9.00)},
			{Description: strPtr("Muffin"), TotalPrice: numAmount(4.50)},
			{Description: strPtr("No amount")},
			{TotalPrice: currency(3.00)},
		},
	}

	n := Normalize(raw, testNow)
	if len(n.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(n.Items))
	}
	if n.Items[0].Description != "Coffee" || n.Items[0].Quantity != 2 || n.Items[0].UnitAmount != 9.00 {
		t.Errorf("item 0 = %+v", n.Items[0])
	}
	if n.Items[1].Quantity != 1 {
		t.Errorf("quantity default = %v, want 1", n.Items[1].Quantity)
	}
}

func TestNormalize_EmptyDocumentStillSucceeds(t *testing.T) {
	n := Normalize(&RawDocument{}, testNow)
	if n == nil {
		t.Fatal("Normalize() = nil for empty document")
	}
	if len(n.Items) != 0 || n.Total != 0 {
		t.Errorf("empty document normalized to %+v", n)
	}
}
