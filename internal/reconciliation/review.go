package reconciliation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/invoice-reconciler/internal/classification"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/matching"
)

// Classification previews what the classifier would assign today, without persisting anything
type Classification struct {
	InvoiceID uuid.UUID                `json:"invoice_id"`
	Invoice   *classification.Decision `json:"invoice,omitempty"`
	LineItems []LineItemClassification `json:"line_items"`
}

// LineItemClassification is the preview for one line item. Inherited is set when the
// item takes the invoice decision because its own description matched nothing.
type LineItemClassification struct {
	Position    int                      `json:"position"`
	Description string                   `json:"description"`
	Decision    *classification.Decision `json:"decision,omitempty"`
	Inherited   bool                     `json:"inherited"`
}

// rematchFields are the header fields the matcher scores on
var rematchFields = []string{"vendor", "amount", "issue_date"}

// UpdateHeader applies operator edits to the extracted header. A vendor change re-runs
// classification; a change to a scored field re-runs matching unless the invoice is
// already reconciled. Ledger problems become processing notes.
func (w *Workflow) UpdateHeader(ctx context.Context, tenantID string, invoiceID uuid.UUID, update invoice.HeaderUpdate) (*Result, error) {
	if update.IsEmpty() {
		return nil, ErrEmptyHeaderUpdate
	}

	release, ok := w.inFlight.TryAcquire(invoiceKey(invoiceID))
	if !ok {
		return nil, ErrReconciliationInProgress
	}
	defer release()

	inv, err := w.load(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}

	now := w.now()
	changed := inv.UpdateHeader(update, now)
	if len(changed) == 0 {
		inv.AddNote("header confirmed without changes")
	} else {
		inv.AddNote("header updated: " + strings.Join(changed, ", "))
	}

	if slices.Contains(changed, "vendor") {
		centers, err := w.classifier.Refresh(ctx)
		if err != nil {
			w.logger.Warn("Using cached cost centers", "error", err)
		}
		previous := ""
		if inv.CostCenter != nil {
			previous = inv.CostCenter.Code
		}
		if d, ok := w.classifier.Decide(inv.Vendor, inv.RawText, centers); ok {
			if inv.AutoAssignCostCenter(d.Code, d.Name, d.Confidence, now) && d.Code != previous {
				inv.AddNote(fmt.Sprintf("cost center re-assigned to %s", d.Code))
			}
		}
	}

	var matchResult *matching.Result
	if needsRematch(inv, changed) {
		if w.ledger == nil {
			inv.AddNote("matching skipped: ledger not configured")
		} else if transactions, err := w.fetchTransactions(ctx, inv.TenantID); err != nil {
			w.logger.Warn("Ledger unavailable, match not refreshed", "invoice_id", invoiceID.String(), "error", err)
			inv.AddNote("matching unavailable: " + unavailableReason(err))
		} else {
			result := w.matcher.Match(inv, toCandidates(transactions))
			matchResult = &result
			if err := applyMatch(inv, result, len(transactions), now); err != nil {
				w.logger.Error("Failed to apply match result", "invoice_id", invoiceID.String(), "error", err)
				inv.AddNote("match result not applied: " + err.Error())
			}
		}
	}

	if err := w.save(ctx, inv, nil); err != nil {
		w.logger.Error("Failed to save header update", "invoice_id", invoiceID.String(), "error", err)
		return nil, fmt.Errorf("failed to save header update: %w", err)
	}

	w.logger.Info("Invoice header updated",
		"invoice_id", invoiceID.String(),
		"changed", changed,
		"status", string(inv.Status),
	)
	return &Result{Invoice: inv, Match: matchResult}, nil
}

func needsRematch(inv *invoice.Invoice, changed []string) bool {
	if inv.Status == invoice.StatusReconciled {
		return false
	}
	for _, f := range rematchFields {
		if slices.Contains(changed, f) {
			return true
		}
	}
	return false
}

// PreviewClassification runs the classifier over a stored invoice with the current cost
// center list. Manual assignments on the invoice are not consulted.
func (w *Workflow) PreviewClassification(ctx context.Context, tenantID string, invoiceID uuid.UUID) (*Classification, error) {
	inv, err := w.load(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}

	centers, err := w.classifier.Refresh(ctx)
	if err != nil {
		w.logger.Warn("Using cached cost centers", "error", err)
	}

	out := &Classification{
		InvoiceID: inv.ID,
		LineItems: make([]LineItemClassification, 0, len(inv.LineItems)),
	}
	if d, ok := w.classifier.Decide(inv.Vendor, inv.RawText, centers); ok {
		out.Invoice = &d
	}
	for i, item := range inv.LineItems {
		preview := LineItemClassification{Position: i, Description: item.Description}
		if d, ok, inherited := w.decideLineItem(item.Description, out.Invoice, centers); ok {
			preview.Decision = &d
			preview.Inherited = inherited
		}
		out.LineItems = append(out.LineItems, preview)
	}
	return out, nil
}
