package costcenter

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCode = errors.New("cost center code cannot be empty")
	ErrEmptyName = errors.New("cost center name cannot be empty")
)

// CostCenter is reference data an invoice or line item can be attributed to
type CostCenter struct {
	Code      string    `json:"code" yaml:"code"`
	Name      string    `json:"name" yaml:"name"`
	Keywords  []string  `json:"keywords" yaml:"keywords"` // Ordered; matched as case-insensitive substrings
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// NewCostCenter validates and normalizes a cost center definition
func NewCostCenter(code, name string, keywords []string) (*CostCenter, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, ErrEmptyCode
	}
	if name == "" {
		return nil, ErrEmptyName
	}
	now := time.Now()
	return &CostCenter{
		Code:      code,
		Name:      name,
		Keywords:  NormalizeKeywords(keywords),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NormalizeKeywords lower-cases, trims and de-duplicates keywords while keeping their order
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// HasKeyword reports whether keyword is already known, ignoring case
func (c *CostCenter) HasKeyword(keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	for _, k := range c.Keywords {
		if k == keyword {
			return true
		}
	}
	return false
}

// AddKeyword appends a keyword and reports whether the set changed
func (c *CostCenter) AddKeyword(keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" || c.HasKeyword(keyword) {
		return false
	}
	c.Keywords = append(c.Keywords, keyword)
	c.UpdatedAt = time.Now()
	return true
}

// Correction is an operator-supplied training signal for the classifier
type Correction struct {
	ID                  int64           `json:"id"`
	InvoiceID           uuid.UUID       `json:"invoice_id"`
	LineItemIndex       *int            `json:"line_item_index,omitempty"`
	Description         string          `json:"description"`
	Vendor              string          `json:"vendor"`
	Amount              decimal.Decimal `json:"amount"`
	CorrectedCostCenter string          `json:"corrected_cost_center"`
	CreatedAt           time.Time       `json:"created_at"`
}
