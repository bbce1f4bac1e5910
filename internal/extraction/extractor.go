// Package extraction turns raw OCR text into invoice header fields and line items.
// Nothing here returns an error: fields that cannot be found fall back to defaults
// and are flagged as low confidence instead.
package extraction

import (
	"strings"
	"time"

	"github.com/invoice-reconciler/internal/config"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// Fields holds the header values extracted from a document
type Fields struct {
	Vendor        string
	InvoiceNumber string
	IssueDate     time.Time
	DueDate       *time.Time
	Amount        decimal.Decimal
	Currency      string
	Confidence    invoice.FieldConfidence
}

// Extractor applies the ordered extraction rules. It is safe for concurrent use.
type Extractor struct {
	defaultCurrency string
}

// NewExtractor creates an extractor using the configured fallback currency
func NewExtractor(cfg config.ExtractionConfig) *Extractor {
	currency := strings.ToUpper(cfg.DefaultCurrency)
	if currency == "" {
		currency = "GBP"
	}
	return &Extractor{defaultCurrency: currency}
}

// Extract reads header fields from rawText. processedAt supplies the default issue date.
func (e *Extractor) Extract(rawText string, processedAt time.Time) Fields {
	f := Fields{
		InvoiceNumber: invoice.UnknownInvoiceNumber,
		Amount:        decimal.Zero,
		Currency:      e.defaultCurrency,
		IssueDate:     dateOf(processedAt),
	}

	if number, ok := firstMatch(invoiceNumberRules, rawText); ok {
		f.InvoiceNumber = number
		f.Confidence.InvoiceNumber = true
	}

	if amount, ok := maxAmount(allMatches(amountRules, rawText)); ok {
		f.Amount = amount.value
		f.Confidence.Amount = true
		if currency, ok := symbolCurrency(amount.symbol); ok {
			f.Currency = currency
		} else if currency, ok := firstMatch(currencyRules, rawText); ok {
			f.Currency = currency
		}
	} else if currency, ok := firstMatch(currencyRules, rawText); ok {
		f.Currency = currency
	}

	if issued, ok := firstMatch(issueDateRules, rawText); ok {
		f.IssueDate = issued
		f.Confidence.IssueDate = true
	}
	if due, ok := firstMatch(dueDateRules, rawText); ok {
		f.DueDate = &due
		f.Confidence.DueDate = true
	}

	if vendor, ok := firstMatch(vendorRules, rawText); ok {
		f.Vendor = vendor
		f.Confidence.Vendor = true
	} else {
		f.Vendor = firstContentLine(rawText)
	}

	return f
}

func maxAmount(matches []amountMatch) (amountMatch, bool) {
	if len(matches) == 0 {
		return amountMatch{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.value.GreaterThan(best.value) {
			best = m
		}
	}
	return best, true
}

// firstContentLine is the vendor fallback: the first line that is not a boilerplate label
func firstContentLine(rawText string) string {
	for _, line := range strings.Split(rawText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isBoilerplate(line) {
			continue
		}
		return line
	}
	return ""
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
