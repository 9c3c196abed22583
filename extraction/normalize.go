package extraction

import (
	"math"
	"strings"
	"time"

	"github.com/ledgerflowhq/ledgerflow/models"
)

const (
	defaultMerchant = "Unknown Vendor"

	// Single-jurisdiction GST assumption. Tax is always derived from the
	// total, never read from the document.
	taxRate = 0.10
)

// Normalized is the Receipt-shaped result of one extraction.
type Normalized struct {
	Merchant        string
	TransactionDate time.Time
	Total           float64
	Tax             float64
	Items           []models.LineItem
}

// Normalize converts raw extractor output into canonical receipt fields. A
// document that parses but yields no items and no total is still a successful
// extraction; the sync engine later falls back to a synthetic line item.
func Normalize(raw *RawDocument, now time.Time) *Normalized {
	n := &Normalized{Merchant: defaultMerchant, TransactionDate: now.UTC()}
	if raw == nil {
		return n
	}

	if merchant := firstString(raw.MerchantName, raw.VendorName); merchant != "" {
		n.Merchant = merchant
	}

	if raw.TransactionDate != nil {
		if parsed, ok := parseDate(*raw.TransactionDate); ok {
			n.TransactionDate = parsed
		}
	}

	if total, ok := raw.Total.Value(); ok {
		n.Total = total
	}

	for _, item := range raw.Items {
		var li models.LineItem
		if item.Description != nil {
			li.Description = strings.TrimSpace(*item.Description)
		}
		li.Quantity = 1
		if item.Quantity != nil {
			li.Quantity = *item.Quantity
		}
		if amount, ok := item.TotalPrice.Value(); ok {
			li.UnitAmount = amount
		}

		// Rows without both a description and an amount carry no
		// information worth syncing.
		if li.Description == "" || li.UnitAmount == 0 {
			continue
		}
		n.Items = append(n.Items, li)
	}

	n.Tax = DeriveTax(n.Total)
	return n
}

// DeriveTax computes the fixed-rate tax component of a tax-inclusive total.
func DeriveTax(total float64) float64 {
	if total <= 0 {
		return 0
	}
	return Round2(total * taxRate)
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func firstString(values ...*string) string {
	for _, v := range values {
		if v != nil {
			if s := strings.TrimSpace(*v); s != "" {
				return s
			}
		}
	}
	return ""
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
