// Package matching scores ledger transactions against an extracted invoice.
package matching

import (
	"math"
	"strings"
	"time"

	"github.com/invoice-reconciler/internal/config"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Sub-score weights
const (
	AmountWeight = 0.4
	DateWeight   = 0.3
	VendorWeight = 0.3
)

const day = 24 * time.Hour

// Candidate is one ledger transaction considered during matching
type Candidate struct {
	ID               string          `json:"id"`
	Reference        string          `json:"reference,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Date             time.Time       `json:"date"`
	CounterpartyName string          `json:"counterparty_name,omitempty"`

	Confidence  float64  `json:"confidence"`
	AmountScore float64  `json:"amount_score"`
	DateScore   float64  `json:"date_score"`
	VendorScore *float64 `json:"vendor_score,omitempty"` // nil when the candidate has no counterparty
}

// ToMatch converts a scored candidate into the invoice's match record
func (c Candidate) ToMatch() invoice.Match {
	return invoice.Match{
		TransactionID: c.ID,
		Reference:     c.Reference,
		Amount:        c.Amount,
		Date:          c.Date,
		Confidence:    c.Confidence,
	}
}

// Result is the outcome of matching one invoice
type Result struct {
	Matches        []Candidate        `json:"matches"`
	Confidence     float64            `json:"confidence"`
	RequiresReview bool               `json:"requires_review"`
	Action         shared.MatchAction `json:"action"`
	Eligible       int                `json:"eligible"`
}

// Matcher filters and scores candidates. It holds no mutable state.
type Matcher struct {
	autoThreshold   float64
	reviewThreshold float64
	amountTolerance decimal.Decimal
	dateWindow      time.Duration
}

// NewMatcher creates a matcher using the configured thresholds. Zero values fall back to
// 0.95 / 0.70 / 1% / 7 days.
func NewMatcher(cfg config.ReconciliationConfig) *Matcher {
	if cfg.AutoReconcileThreshold <= 0 {
		cfg.AutoReconcileThreshold = 0.95
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = 0.70
	}
	if cfg.AmountTolerance <= 0 {
		cfg.AmountTolerance = 0.01
	}
	if cfg.DateWindow <= 0 {
		cfg.DateWindow = 7 * day
	}
	return &Matcher{
		autoThreshold:   cfg.AutoReconcileThreshold,
		reviewThreshold: cfg.ReviewThreshold,
		amountTolerance: decimal.NewFromFloat(cfg.AmountTolerance),
		dateWindow:      cfg.DateWindow,
	}
}

// Match keeps the candidates within amount, date and vendor tolerance and scores the first
// of them. Zero eligible candidates yield confidence 0 and the no-match action.
func (m *Matcher) Match(inv *invoice.Invoice, candidates []Candidate) Result {
	var eligible []Candidate
	for _, c := range candidates {
		if m.eligible(inv, c) {
			eligible = append(eligible, c)
		}
	}

	result := Result{
		Matches:        []Candidate{},
		RequiresReview: true,
		Action:         shared.MatchActionNoMatch,
		Eligible:       len(eligible),
	}
	if len(eligible) == 0 {
		return result
	}

	best := m.score(inv, eligible[0])
	result.Matches = append(result.Matches, best)
	result.Confidence = best.Confidence
	result.RequiresReview = best.Confidence < m.autoThreshold
	result.Action = m.action(result.Confidence, result.RequiresReview)
	return result
}

func (m *Matcher) action(confidence float64, requiresReview bool) shared.MatchAction {
	switch {
	case !requiresReview:
		return shared.MatchActionAutoReconcile
	case confidence > m.reviewThreshold:
		return shared.MatchActionNeedsReview
	default:
		return shared.MatchActionNoMatch
	}
}

func (m *Matcher) eligible(inv *invoice.Invoice, c Candidate) bool {
	if inv.Amount.IsZero() {
		if !c.Amount.IsZero() {
			return false
		}
	} else if relativeDiff(inv.Amount, c.Amount).GreaterThanOrEqual(m.amountTolerance) {
		return false
	}

	if absDuration(c.Date.Sub(inv.IssueDate)) >= m.dateWindow {
		return false
	}

	// The counterparty must contain the vendor, not the other way round
	return strings.Contains(strings.ToLower(c.CounterpartyName), strings.ToLower(inv.Vendor))
}

func (m *Matcher) score(inv *invoice.Invoice, c Candidate) Candidate {
	c.AmountScore = 1
	if !inv.Amount.IsZero() {
		diff, _ := relativeDiff(inv.Amount, c.Amount).Float64()
		c.AmountScore = math.Max(0, 1-diff)
	}

	days := absDuration(c.Date.Sub(inv.IssueDate)).Hours() / 24
	c.DateScore = math.Max(0, 1-days/(m.dateWindow.Hours()/24))

	total := AmountWeight*c.AmountScore + DateWeight*c.DateScore
	if strings.TrimSpace(c.CounterpartyName) != "" {
		vendor := tokenOverlap(inv.Vendor, c.CounterpartyName)
		c.VendorScore = &vendor
		total += VendorWeight * vendor
	} else {
		total /= 2
	}

	c.Confidence = round(total)
	return c
}

// tokenOverlap counts shared lower-cased whitespace tokens over the larger token set
func tokenOverlap(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	larger := max(len(setA), len(setB))
	if larger == 0 {
		return 0
	}
	common := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			common++
		}
	}
	return float64(common) / float64(larger)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

func relativeDiff(base, other decimal.Decimal) decimal.Decimal {
	return other.Sub(base).Abs().Div(base)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// round trims float noise so an exact match scores exactly 1.0
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
