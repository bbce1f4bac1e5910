package extraction

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// rule pairs a pattern with the function that turns one of its submatches into a value.
// Rules are evaluated in order; the first accepted match wins unless the caller collects all.
type rule[T any] struct {
	pattern *regexp.Regexp
	accept  func(text string, loc []int) (T, bool)
}

func firstMatch[T any](rules []rule[T], text string) (T, bool) {
	for _, r := range rules {
		for _, loc := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
			if v, ok := r.accept(text, loc); ok {
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

func allMatches[T any](rules []rule[T], text string) []T {
	var out []T
	for _, r := range rules {
		for _, loc := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
			if v, ok := r.accept(text, loc); ok {
				out = append(out, v)
			}
		}
	}
	return out
}

func group(text string, loc []int, n int) string {
	if 2*n+1 >= len(loc) || loc[2*n] < 0 {
		return ""
	}
	return text[loc[2*n]:loc[2*n+1]]
}

var digit = regexp.MustCompile(`\d`)

func acceptInvoiceNumber(text string, loc []int) (string, bool) {
	v := strings.Trim(group(text, loc, 1), "-/_.")
	if v == "" || !digit.MatchString(v) {
		return "", false
	}
	return strings.ToUpper(v), true
}

var invoiceNumberRules = []rule[string]{
	{regexp.MustCompile(`(?i)invoice[ \t]*(?:no\.?|number|num\.?|#)[ \t]*[:#]?[ \t]*([A-Z0-9][A-Z0-9\-/_.]*)`), acceptInvoiceNumber},
	{regexp.MustCompile(`(?i)\b(INV[-_/]?[A-Z0-9][A-Z0-9\-/_]*)`), acceptInvoiceNumber},
	{regexp.MustCompile(`(?i)invoice[ \t]*:[ \t]*([A-Z0-9][A-Z0-9\-/_.]*)`), acceptInvoiceNumber},
}

type amountMatch struct {
	value  decimal.Decimal
	symbol string
}

func acceptAmount(text string, loc []int) (amountMatch, bool) {
	raw := strings.ReplaceAll(group(text, loc, 2), ",", "")
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		return amountMatch{}, false
	}
	return amountMatch{value: v, symbol: group(text, loc, 1)}, true
}

const amountValue = `[ \t]*(?:\([^)\n]*\))?[ \t]*:?[ \t]*([£$€]|GBP|USD|EUR)?[ \t]*(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`

var amountRules = []rule[amountMatch]{
	{regexp.MustCompile(`(?i)grand[ \t]+total` + amountValue), acceptAmount},
	{regexp.MustCompile(`(?i)(?:total|balance)[ \t]+due` + amountValue), acceptAmount},
	{regexp.MustCompile(`(?i)amount[ \t]+due` + amountValue), acceptAmount},
	{regexp.MustCompile(`(?i)total` + amountValue), acceptAmount},
	{regexp.MustCompile(`(?i)\b(?:amount|sum)` + amountValue), acceptAmount},
}

var currencyRules = []rule[string]{
	{regexp.MustCompile(`\b(GBP|USD|EUR)\b`), func(text string, loc []int) (string, bool) {
		return group(text, loc, 1), true
	}},
	{regexp.MustCompile(`([£$€])`), func(text string, loc []int) (string, bool) {
		return symbolCurrency(group(text, loc, 1))
	}},
}

func symbolCurrency(symbol string) (string, bool) {
	switch strings.ToUpper(symbol) {
	case "£", "GBP":
		return "GBP", true
	case "$", "USD":
		return "USD", true
	case "€", "EUR":
		return "EUR", true
	}
	return "", false
}

const datePattern = `(\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}|\d{1,2}(?:st|nd|rd|th)?[ \t]+[A-Za-z]{3,9}\.?,?[ \t]+\d{4}|[A-Za-z]{3,9}\.?[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4})`

var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
	"2.1.06",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
}

var (
	ordinalSuffix = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)`)
	spaceRun      = regexp.MustCompile(`[ \t]+`)
)

// parseDate normalizes a date string to UTC midnight of its calendar day.
// Numeric dates are read day first.
func parseDate(s string) (time.Time, bool) {
	s = ordinalSuffix.ReplaceAllString(strings.TrimSpace(s), "$1")
	if containsLetter(s) {
		s = strings.NewReplacer(",", " ", ".", " ").Replace(s)
	}
	s = spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func containsLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func acceptDate(text string, loc []int) (time.Time, bool) {
	return parseDate(group(text, loc, 1))
}

// acceptIssueDate rejects dates that sit on a line after a "due" label
func acceptIssueDate(text string, loc []int) (time.Time, bool) {
	lineStart := strings.LastIndex(text[:loc[0]], "\n") + 1
	if strings.Contains(strings.ToLower(text[lineStart:loc[0]]), "due") {
		return time.Time{}, false
	}
	return acceptDate(text, loc)
}

var issueDateRules = []rule[time.Time]{
	{regexp.MustCompile(`(?i)(?:invoice|issue|tax\s+point)[ \t]+date[ \t]*:?[ \t]*` + datePattern), acceptIssueDate},
	{regexp.MustCompile(`(?i)date[ \t]+of[ \t]+issue[ \t]*:?[ \t]*` + datePattern), acceptIssueDate},
	{regexp.MustCompile(`(?i)\b(?:date|issued|dated)[ \t]*:?[ \t]*` + datePattern), acceptIssueDate},
	{regexp.MustCompile(datePattern), acceptIssueDate},
}

var dueDateRules = []rule[time.Time]{
	{regexp.MustCompile(`(?i)(?:due[ \t]+date|payment[ \t]+due|due[ \t]+by|due)[ \t]*:?[ \t]*` + datePattern), acceptDate},
}

func acceptVendor(text string, loc []int) (string, bool) {
	v := strings.TrimSpace(group(text, loc, 1))
	v = strings.TrimRight(v, " ,;")
	if v == "" || !containsLetter(v) {
		return "", false
	}
	return v, true
}

var vendorRules = []rule[string]{
	{regexp.MustCompile(`(?im)^[ \t]*(?:vendor|supplier|seller|billed[ \t]+by)[ \t]*:[ \t]*([^\n]+)$`), acceptVendor},
	{regexp.MustCompile(`(?im)^[ \t]*(?:from|company)[ \t]*:[ \t]*([^\n]+)$`), acceptVendor},
}

var boilerplateLabels = map[string]struct{}{
	"invoice":        {},
	"tax invoice":    {},
	"vat invoice":    {},
	"sales invoice":  {},
	"bill to":        {},
	"billed to":      {},
	"ship to":        {},
	"sold to":        {},
	"date":           {},
	"invoice date":   {},
	"due date":       {},
	"invoice number": {},
	"invoice no":     {},
	"invoice #":      {},
	"page":           {},
	"receipt":        {},
	"statement":      {},
	"original":       {},
	"copy":           {},
	"to":             {},
	"from":           {},
}

// isBoilerplate reports lines that are labels rather than a vendor name
func isBoilerplate(line string) bool {
	l := strings.ToLower(strings.TrimSpace(line))
	if !containsLetter(l) || strings.HasPrefix(l, "page ") {
		return true
	}
	if first := strings.Trim(strings.Fields(l)[0], ":#."); first == "invoice" {
		return true
	}
	if _, ok := firstMatch(invoiceNumberRules[1:2], line); ok && !strings.Contains(l, " ") {
		return true
	}
	label := l
	if i := strings.Index(l, ":"); i >= 0 {
		label = strings.TrimSpace(l[:i])
	}
	_, ok := boilerplateLabels[strings.TrimRight(label, ".")]
	return ok
}
