package invoice

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnknownInvoiceNumber is stored when no invoice number could be extracted
const UnknownInvoiceNumber = "UNKNOWN"

var ErrEmptyTransactionID = errors.New("transaction id cannot be empty")

// CostCenterAssignment records which cost center an invoice or line item was attributed to
type CostCenterAssignment struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Confidence  float64   `json:"confidence"`
	AssignedAt  time.Time `json:"assigned_at"`
	ManuallySet bool      `json:"manually_set"`
}

// FieldConfidence is true for each header field that came from a genuine pattern match
type FieldConfidence struct {
	Vendor        bool `json:"vendor"`
	InvoiceNumber bool `json:"invoice_number"`
	IssueDate     bool `json:"issue_date"`
	DueDate       bool `json:"due_date"`
	Amount        bool `json:"amount"`
}

// LowConfidenceFields lists the fields that fell back to defaults
func (f FieldConfidence) LowConfidenceFields() []string {
	var fields []string
	if !f.Vendor {
		fields = append(fields, "vendor")
	}
	if !f.InvoiceNumber {
		fields = append(fields, "invoice_number")
	}
	if !f.IssueDate {
		fields = append(fields, "issue_date")
	}
	if !f.Amount {
		fields = append(fields, "amount")
	}
	return fields
}

// LineItem is owned by its invoice and has no identity of its own
type LineItem struct {
	Position    int                   `json:"position"`
	Quantity    int                   `json:"quantity"`
	UnitPrice   decimal.Decimal       `json:"unit_price"`
	Amount      decimal.Decimal       `json:"amount"`
	Description string                `json:"description"`
	CostCenter  *CostCenterAssignment `json:"cost_center,omitempty"`
}

// Match references a ledger transaction the invoice was matched against
type Match struct {
	TransactionID string          `json:"transaction_id"`
	Reference     string          `json:"reference,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	Confidence    float64         `json:"confidence"`
	Manual        bool            `json:"manual"`
}

// Invoice is the central reconciliation entity
type Invoice struct {
	ID              uuid.UUID             `json:"id"`
	TenantID        string                `json:"tenant_id"`
	InvoiceNumber   string                `json:"invoice_number"`
	Vendor          string                `json:"vendor"`
	Currency        string                `json:"currency"`
	Amount          decimal.Decimal       `json:"amount"`
	IssueDate       time.Time             `json:"issue_date"`
	DueDate         *time.Time            `json:"due_date,omitempty"`
	CostCenter      *CostCenterAssignment `json:"cost_center,omitempty"`
	ProcessingNotes []string              `json:"processing_notes"`
	FileName        string                `json:"file_name,omitempty"`
	DocumentHash    string                `json:"document_hash"`
	RawText         string                `json:"raw_text"`
	OCRConfidence   float64               `json:"ocr_confidence"`
	FieldConfidence FieldConfidence       `json:"field_confidence"`
	LineItems       []LineItem            `json:"line_items"`
	Status          Status                `json:"status"`
	Matches         []Match               `json:"matches"`
	MatchConfidence float64               `json:"match_confidence"`
	ReconciledAt    *time.Time            `json:"reconciled_at,omitempty"`
	ReconciledBy    string                `json:"reconciled_by,omitempty"`
	Version         int                   `json:"version"` // For optimistic locking
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// NewInvoice creates a pending invoice for the given tenant
func NewInvoice(tenantID string, now time.Time) *Invoice {
	return &Invoice{
		ID:              uuid.New(),
		TenantID:        tenantID,
		InvoiceNumber:   UnknownInvoiceNumber,
		Amount:          decimal.Zero,
		Status:          StatusPending,
		ProcessingNotes: []string{},
		Matches:         []Match{},
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// AddNote appends to the audit trail. Notes are never removed.
func (i *Invoice) AddNote(note string) {
	i.ProcessingNotes = append(i.ProcessingNotes, note)
}

// Apply runs event through the lifecycle and stamps the reconciliation date on entry to reconciled
func (i *Invoice) Apply(event Event, at time.Time) error {
	to, err := Transition(i.Status, event)
	if err != nil {
		return err
	}
	if to == StatusReconciled {
		reconciledAt := at
		i.ReconciledAt = &reconciledAt
	}
	i.Status = to
	i.UpdatedAt = at
	return nil
}

// RecordAutoMatch stores the matched transactions without changing status
func (i *Invoice) RecordAutoMatch(matches []Match, confidence float64) {
	i.Matches = matches
	i.MatchConfidence = confidence
}

// ReconcileManually overwrites any prior match with a single operator-confirmed entry
func (i *Invoice) ReconcileManually(match Match, by string, at time.Time) error {
	if match.TransactionID == "" {
		return ErrEmptyTransactionID
	}
	if err := i.Apply(EventManualReconcile, at); err != nil {
		return err
	}
	match.Confidence = 1.0
	match.Manual = true
	i.Matches = []Match{match}
	i.MatchConfidence = 1.0
	i.ReconciledBy = by
	return nil
}

// AutoAssignCostCenter sets an automatic assignment unless an operator already chose one
func (i *Invoice) AutoAssignCostCenter(code, name string, confidence float64, at time.Time) bool {
	return autoAssign(&i.CostCenter, code, name, confidence, at)
}

// AssignCostCenterManually always wins and locks the field against automatic classification
func (i *Invoice) AssignCostCenterManually(code, name string, at time.Time) {
	i.CostCenter = manualAssignment(code, name, at)
	i.UpdatedAt = at
}

// AutoAssignCostCenter sets an automatic assignment on the line item unless it was set manually
func (l *LineItem) AutoAssignCostCenter(code, name string, confidence float64, at time.Time) bool {
	return autoAssign(&l.CostCenter, code, name, confidence, at)
}

// AssignCostCenterManually locks the line item assignment
func (l *LineItem) AssignCostCenterManually(code, name string, at time.Time) {
	l.CostCenter = manualAssignment(code, name, at)
}

// LineItemTotal is informational; it is never required to equal Amount
func (i *Invoice) LineItemTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range i.LineItems {
		total = total.Add(item.Amount)
	}
	return total
}

func autoAssign(current **CostCenterAssignment, code, name string, confidence float64, at time.Time) bool {
	if *current != nil && (*current).ManuallySet {
		return false
	}
	*current = &CostCenterAssignment{
		Code:       code,
		Name:       name,
		Confidence: confidence,
		AssignedAt: at,
	}
	return true
}

func manualAssignment(code, name string, at time.Time) *CostCenterAssignment {
	return &CostCenterAssignment{
		Code:        code,
		Name:        name,
		Confidence:  1.0,
		AssignedAt:  at,
		ManuallySet: true,
	}
}

// OwnedBy reports whether the invoice belongs to tenantID
func (i *Invoice) OwnedBy(tenantID string) bool {
	return tenantID != "" && i.TenantID == tenantID
}

// Clone returns a deep copy that shares no slices or pointers with i
func (i *Invoice) Clone() *Invoice {
	c := *i
	c.ProcessingNotes = append([]string{}, i.ProcessingNotes...)
	c.Matches = append([]Match{}, i.Matches...)
	c.LineItems = make([]LineItem, len(i.LineItems))
	for n, item := range i.LineItems {
		if item.CostCenter != nil {
			assignment := *item.CostCenter
			item.CostCenter = &assignment
		}
		c.LineItems[n] = item
	}
	if i.CostCenter != nil {
		assignment := *i.CostCenter
		c.CostCenter = &assignment
	}
	if i.DueDate != nil {
		due := *i.DueDate
		c.DueDate = &due
	}
	if i.ReconciledAt != nil {
		at := *i.ReconciledAt
		c.ReconciledAt = &at
	}
	return &c
}

// HeaderUpdate carries operator edits to the extracted header fields. Nil fields are left alone.
type HeaderUpdate struct {
	Vendor        *string
	InvoiceNumber *string
	Currency      *string
	Amount        *decimal.Decimal
	IssueDate     *time.Time
	DueDate       *time.Time
}

// IsEmpty reports whether the update touches no field
func (u HeaderUpdate) IsEmpty() bool {
	return u.Vendor == nil && u.InvoiceNumber == nil && u.Currency == nil &&
		u.Amount == nil && u.IssueDate == nil && u.DueDate == nil
}

// UpdateHeader applies operator edits and returns the names of the fields that changed.
// Edited fields count as confirmed, so they are no longer reported as low confidence.
func (i *Invoice) UpdateHeader(u HeaderUpdate, at time.Time) []string {
	var changed []string
	if u.Vendor != nil {
		i.FieldConfidence.Vendor = true
		if v := strings.TrimSpace(*u.Vendor); v != i.Vendor {
			i.Vendor = v
			changed = append(changed, "vendor")
		}
	}
	if u.InvoiceNumber != nil {
		i.FieldConfidence.InvoiceNumber = true
		if n := strings.TrimSpace(*u.InvoiceNumber); n != i.InvoiceNumber {
			i.InvoiceNumber = n
			changed = append(changed, "invoice_number")
		}
	}
	if u.Currency != nil {
		if c := strings.ToUpper(strings.TrimSpace(*u.Currency)); c != i.Currency {
			i.Currency = c
			changed = append(changed, "currency")
		}
	}
	if u.Amount != nil {
		i.FieldConfidence.Amount = true
		if !u.Amount.Equal(i.Amount) {
			i.Amount = *u.Amount
			changed = append(changed, "amount")
		}
	}
	if u.IssueDate != nil {
		i.FieldConfidence.IssueDate = true
		if !u.IssueDate.Equal(i.IssueDate) {
			i.IssueDate = *u.IssueDate
			changed = append(changed, "issue_date")
		}
	}
	if u.DueDate != nil {
		i.FieldConfidence.DueDate = true
		if i.DueDate == nil || !u.DueDate.Equal(*i.DueDate) {
			due := *u.DueDate
			i.DueDate = &due
			changed = append(changed, "due_date")
		}
	}
	if len(changed) > 0 {
		i.UpdatedAt = at
	}
	return changed
}
