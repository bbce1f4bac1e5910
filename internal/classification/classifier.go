package classification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/invoice-reconciler/internal/config"
	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/platform/locks"
)

// Source records which rule produced a classification
type Source string

const (
	SourceVendor   Source = "vendor"
	SourceFreeText Source = "free_text"
	SourceDefault  Source = "default"
)

// Fixed confidences for automatic keyword classification
const (
	VendorConfidence   = 0.9
	FreeTextConfidence = 0.7
	DefaultConfidence  = 0.5
)

// Decision is the outcome of a successful classification
type Decision struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

// Info summarises what the classifier currently knows
type Info struct {
	Strategy           string   `json:"strategy"`
	CostCenters        []string `json:"cost_centers"`
	KeywordCount       int      `json:"keyword_count"`
	CorrectionsLearned int64    `json:"corrections_learned"`
	DefaultCostCenter  string   `json:"default_cost_center,omitempty"`
}

// Classifier assigns cost centers by keyword and learns keywords from corrections.
// Reads use an immutable snapshot; writes are serialized per cost center code.
type Classifier struct {
	centers     costcenter.Repository
	corrections costcenter.CorrectionRepository
	logger      *slog.Logger
	defaultCode string

	mu       sync.RWMutex
	snapshot []costcenter.CostCenter

	writes *locks.KeyedMutex
}

// NewClassifier creates a classifier with an empty snapshot; call Refresh to load it
func NewClassifier(
	logger *slog.Logger,
	cfg config.ClassifierConfig,
	centers costcenter.Repository,
	corrections costcenter.CorrectionRepository,
) *Classifier {
	return &Classifier{
		centers:     centers,
		corrections: corrections,
		logger:      logger,
		defaultCode: strings.TrimSpace(cfg.DefaultCostCenter),
		writes:      locks.NewKeyedMutex(),
	}
}

// Classify returns the cost center code for an invoice or line item, or false when none applies.
// Priority: vendor keyword match, free-text keyword match, configured default.
func (c *Classifier) Classify(vendor, freeText string, centers []costcenter.CostCenter) (string, bool) {
	d, ok := c.Decide(vendor, freeText, centers)
	return d.Code, ok
}

// Decide is Classify with the display name, confidence and matching rule
func (c *Classifier) Decide(vendor, freeText string, centers []costcenter.CostCenter) (Decision, bool) {
	if vendor = strings.ToLower(strings.TrimSpace(vendor)); vendor != "" {
		for _, cc := range centers {
			for _, kw := range cc.Keywords {
				if kw != "" && strings.Contains(vendor, strings.ToLower(kw)) {
					return Decision{Code: cc.Code, Name: cc.Name, Confidence: VendorConfidence, Source: SourceVendor}, true
				}
			}
		}
	}

	if text := strings.ToLower(freeText); text != "" {
		for _, cc := range centers {
			for _, kw := range cc.Keywords {
				if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
					return Decision{Code: cc.Code, Name: cc.Name, Confidence: FreeTextConfidence, Source: SourceFreeText}, true
				}
			}
		}
	}

	if c.defaultCode != "" {
		d := Decision{Code: c.defaultCode, Confidence: DefaultConfidence, Source: SourceDefault}
		for _, cc := range centers {
			if cc.Code == c.defaultCode {
				d.Name = cc.Name
				break
			}
		}
		return d, true
	}

	return Decision{}, false
}

// Snapshot returns the cost centers currently used for classification
func (c *Classifier) Snapshot() []costcenter.CostCenter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Lookup finds a cost center in the current snapshot
func (c *Classifier) Lookup(code string) (costcenter.CostCenter, bool) {
	for _, cc := range c.Snapshot() {
		if cc.Code == code {
			return cc, true
		}
	}
	return costcenter.CostCenter{}, false
}

// Refresh reloads cost centers from the repository so edits made by other
// processes are picked up without a restart
func (c *Classifier) Refresh(ctx context.Context) ([]costcenter.CostCenter, error) {
	list, err := c.centers.List(ctx)
	if err != nil {
		return c.Snapshot(), fmt.Errorf("failed to load cost centers: %w", err)
	}

	snapshot := make([]costcenter.CostCenter, 0, len(list))
	for _, cc := range list {
		snapshot = append(snapshot, *cc)
	}

	c.mu.Lock()
	c.snapshot = snapshot
	c.mu.Unlock()

	return snapshot, nil
}

// Learn feeds a correction into the classifier, effective immediately. An invoice-level
// correction teaches the vendor name; a line item correction teaches the item description
// and leaves the vendor alone.
func (c *Classifier) Learn(ctx context.Context, correction *costcenter.Correction) error {
	var keyword, vendor, freeText string
	if correction.LineItemIndex != nil {
		keyword = strings.ToLower(strings.Join(strings.Fields(correction.Description), " "))
		freeText = keyword
	} else {
		keyword = strings.ToLower(strings.TrimSpace(correction.Vendor))
		vendor = keyword
	}
	if keyword == "" {
		return nil
	}

	updated, err := c.mutate(ctx, correction.CorrectedCostCenter, func(cc *costcenter.CostCenter) bool {
		return cc.AddKeyword(keyword)
	})
	if err != nil {
		return err
	}
	if updated {
		c.logger.Info("Learned cost center keyword from correction",
			"cost_center", correction.CorrectedCostCenter,
			"keyword", keyword,
			"invoice_id", correction.InvoiceID.String(),
		)
	}

	// Cost center order decides ties, so an earlier cost center can keep winning
	if d, ok := c.Decide(vendor, freeText, c.Snapshot()); ok && d.Code != correction.CorrectedCostCenter {
		c.logger.Warn("Learned keyword is shadowed by an earlier cost center",
			"keyword", keyword,
			"corrected_cost_center", correction.CorrectedCostCenter,
			"winning_cost_center", d.Code,
			"invoice_id", correction.InvoiceID.String(),
		)
	}
	return nil
}

// Create adds a cost center
func (c *Classifier) Create(ctx context.Context, cc *costcenter.CostCenter) error {
	unlock := c.writes.Lock(cc.Code)
	defer unlock()

	if err := c.centers.Create(ctx, cc); err != nil {
		return err
	}
	c.replace(*cc)
	return nil
}

// Update replaces name and keywords of an existing cost center
func (c *Classifier) Update(ctx context.Context, code, name string, keywords []string) (*costcenter.CostCenter, error) {
	var result *costcenter.CostCenter
	_, err := c.mutate(ctx, code, func(cc *costcenter.CostCenter) bool {
		if name != "" {
			cc.Name = name
		}
		if keywords != nil {
			cc.Keywords = costcenter.NormalizeKeywords(keywords)
		}
		result = cc
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a cost center
func (c *Classifier) Delete(ctx context.Context, code string) error {
	unlock := c.writes.Lock(code)
	defer unlock()

	if err := c.centers.Delete(ctx, code); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	next := make([]costcenter.CostCenter, 0, len(c.snapshot))
	for _, cc := range c.snapshot {
		if cc.Code != code {
			next = append(next, cc)
		}
	}
	c.snapshot = next
	return nil
}

// Info reports the known cost centers and how many corrections have been recorded
func (c *Classifier) Info(ctx context.Context) (*Info, error) {
	count, err := c.corrections.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count corrections: %w", err)
	}

	snapshot := c.Snapshot()
	info := &Info{
		Strategy:           "keyword",
		CostCenters:        make([]string, 0, len(snapshot)),
		CorrectionsLearned: count,
		DefaultCostCenter:  c.defaultCode,
	}
	for _, cc := range snapshot {
		info.CostCenters = append(info.CostCenters, cc.Code)
		info.KeywordCount += len(cc.Keywords)
	}
	sort.Strings(info.CostCenters)
	return info, nil
}

// mutate performs a read-modify-write of one cost center under its code lock
func (c *Classifier) mutate(ctx context.Context, code string, change func(cc *costcenter.CostCenter) bool) (bool, error) {
	unlock := c.writes.Lock(code)
	defer unlock()

	cc, err := c.centers.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, costcenter.ErrCostCenterNotFound{}) {
			return false, err
		}
		return false, fmt.Errorf("failed to load cost center %s: %w", code, err)
	}

	if !change(cc) {
		return false, nil
	}
	if err := c.centers.Update(ctx, cc); err != nil {
		return false, fmt.Errorf("failed to update cost center %s: %w", code, err)
	}
	c.replace(*cc)
	return true, nil
}

// replace swaps one entry in a fresh copy of the snapshot, appending unknown codes
func (c *Classifier) replace(cc costcenter.CostCenter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]costcenter.CostCenter, len(c.snapshot), len(c.snapshot)+1)
	copy(next, c.snapshot)
	for i := range next {
		if next[i].Code == cc.Code {
			next[i] = cc
			c.snapshot = next
			return
		}
	}
	c.snapshot = append(next, cc)
}
