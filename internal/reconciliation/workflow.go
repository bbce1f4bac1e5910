// Package reconciliation orchestrates extraction, classification and matching and owns
// every write to an invoice's lifecycle.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoice-reconciler/internal/classification"
	"github.com/invoice-reconciler/internal/config"
	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/domain/document"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/domain/outbox"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/extraction"
	"github.com/invoice-reconciler/internal/matching"
	"github.com/invoice-reconciler/internal/platform/ledger"
	"github.com/invoice-reconciler/internal/platform/locks"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// Document is the OCR output of one scanned invoice
type Document struct {
	RawText       string
	OCRConfidence float64
	FileName      string
	Logos         []document.Logo
	Payload       map[string]interface{} // Raw engine response, archived but never read back
}

// Metadata describes where a document came from
type Metadata struct {
	TenantID      string
	CorrelationID string
	ProcessedAt   time.Time
}

// Result is returned by ProcessDocument. Match is nil when matching was not attempted.
type Result struct {
	Invoice *invoice.Invoice `json:"invoice"`
	Match   *matching.Result `json:"match,omitempty"`
}

// Options tune a manual reconciliation
type Options struct {
	UpdateCostCenter bool   // Propagate the invoice cost center onto the ledger transaction
	Reference        string
	ReconciledBy     string
}

// Dependencies are the collaborators of a Workflow. Ledger and Documents are optional.
type Dependencies struct {
	DB          TxRunner
	Extractor   FieldExtractor
	Classifier  CostCenterClassifier
	Matcher     TransactionMatcher
	Ledger      LedgerReader
	Invoices    invoice.Repository
	Corrections costcenter.CorrectionRepository
	Outbox      outbox.Repository
	Documents   document.Repository
}

// Workflow is the single writer of invoice state
type Workflow struct {
	db            TxRunner
	extractor     FieldExtractor
	classifier    CostCenterClassifier
	matcher       TransactionMatcher
	ledger        LedgerReader
	invoices      invoice.Repository
	corrections   costcenter.CorrectionRepository
	outbox        outbox.Repository
	documents     document.Repository
	inFlight      *locks.InFlight
	ledgerTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

func NewWorkflow(
	logger *slog.Logger,
	reconciliationCfg config.ReconciliationConfig,
	ledgerCfg config.LedgerConfig,
	deps Dependencies,
) *Workflow {
	return &Workflow{
		db:            deps.DB,
		extractor:     deps.Extractor,
		classifier:    deps.Classifier,
		matcher:       deps.Matcher,
		ledger:        deps.Ledger,
		invoices:      deps.Invoices,
		corrections:   deps.Corrections,
		outbox:        deps.Outbox,
		documents:     deps.Documents,
		inFlight:      locks.NewInFlight(reconciliationCfg.LockTTL),
		ledgerTimeout: ledgerCfg.Timeout,
		logger:        logger,
		now:           time.Now,
	}
}

// ProcessDocument creates an invoice from OCR text and tries to reconcile it against the ledger.
// Extraction, classification and matching problems end up in the processing notes;
// only persistence failures are returned.
func (w *Workflow) ProcessDocument(ctx context.Context, doc Document, meta Metadata) (*Result, error) {
	if meta.TenantID == "" {
		return nil, shared.ErrMissingTenant
	}

	processedAt := meta.ProcessedAt
	if processedAt.IsZero() {
		processedAt = w.now()
	}
	logger := w.logger
	if meta.CorrelationID != "" {
		logger = w.logger.With("correlation_id", meta.CorrelationID)
	}

	inv := invoice.NewInvoice(meta.TenantID, processedAt)
	inv.DocumentHash = document.Hash(doc.RawText)

	release, ok := w.inFlight.TryAcquire(documentKey(meta.TenantID, inv.DocumentHash), invoiceKey(inv.ID))
	if !ok {
		logger.Warn("Document is already being processed", "tenant_id", meta.TenantID, "document_hash", inv.DocumentHash)
		return nil, ErrReconciliationInProgress
	}
	defer release()

	w.populate(ctx, inv, doc, processedAt, logger)

	err := w.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return w.invoices.WithTx(tx).Create(ctx, inv)
	})
	if err != nil {
		logger.Error("Failed to create invoice", "invoice_id", inv.ID.String(), "error", err)
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	logger.Info("Invoice created",
		"invoice_id", inv.ID.String(),
		"invoice_number", inv.InvoiceNumber,
		"line_items", len(inv.LineItems),
	)
	persisted := inv.Clone()

	var (
		g            errgroup.Group
		archiveErr   error
		transactions []ledger.Transaction
		ledgerErr    error
	)
	if w.documents != nil {
		g.Go(func() error {
			archiveErr = w.documents.Save(ctx, &document.Document{
				InvoiceID:     inv.ID,
				TenantID:      inv.TenantID,
				FileName:      doc.FileName,
				DocumentHash:  inv.DocumentHash,
				RawText:       doc.RawText,
				OCRConfidence: doc.OCRConfidence,
				Logos:         doc.Logos,
				Payload:       doc.Payload,
				CorrelationID: meta.CorrelationID,
				CreatedAt:     processedAt,
			})
			return nil
		})
	}
	if w.ledger != nil {
		g.Go(func() error {
			transactions, ledgerErr = w.fetchTransactions(ctx, inv.TenantID)
			return nil
		})
	}
	_ = g.Wait()

	if archiveErr != nil {
		logger.Warn("Failed to archive raw document", "invoice_id", inv.ID.String(), "error", archiveErr)
		inv.AddNote("raw document not archived: " + archiveErr.Error())
	}

	var matchResult *matching.Result
	switch {
	case w.ledger == nil:
		inv.AddNote("matching skipped: ledger not configured")
	case ledgerErr != nil:
		logger.Warn("Ledger unavailable, invoice left pending", "invoice_id", inv.ID.String(), "error", ledgerErr)
		inv.AddNote("matching unavailable: " + unavailableReason(ledgerErr))
	default:
		result := w.matcher.Match(inv, toCandidates(transactions))
		matchResult = &result
		if err := applyMatch(inv, result, len(transactions), w.now()); err != nil {
			logger.Error("Failed to apply match result", "invoice_id", inv.ID.String(), "error", err)
			inv.AddNote("match result not applied: " + err.Error())
		}
	}

	// The invoice already exists, so a failed final write must not make callers retry and
	// create it twice. The stored pending invoice is returned instead.
	if err := w.save(ctx, inv, nil); err != nil {
		logger.Error("Failed to save reconciliation result, invoice left pending", "invoice_id", inv.ID.String(), "error", err)
		persisted.AddNote("reconciliation result not saved: " + err.Error())
		return &Result{Invoice: persisted}, nil
	}

	logger.Info("Document processed",
		"invoice_id", inv.ID.String(),
		"status", string(inv.Status),
		"match_confidence", inv.MatchConfidence,
	)
	return &Result{Invoice: inv, Match: matchResult}, nil
}

// ReconcileManually links the invoice to an operator-chosen ledger transaction. The
// optional ledger cost center update is stored as an outbox effect in the same transaction.
func (w *Workflow) ReconcileManually(ctx context.Context, tenantID string, invoiceID uuid.UUID, transactionID string, opts Options) (*invoice.Invoice, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManualReconciliation, invoice.ErrEmptyTransactionID)
	}

	release, ok := w.inFlight.TryAcquire(invoiceKey(invoiceID))
	if !ok {
		return nil, ErrReconciliationInProgress
	}
	defer release()

	inv, err := w.load(ctx, tenantID, invoiceID)
	if err != nil {
		if errors.Is(err, invoice.ErrInvoiceNotFound{}) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidManualReconciliation, err)
		}
		return nil, err
	}

	now := w.now()
	match := invoice.Match{
		TransactionID: transactionID,
		Reference:     opts.Reference,
		Amount:        inv.Amount,
		Date:          now,
	}
	if err := inv.ReconcileManually(match, opts.ReconciledBy, now); err != nil {
		return nil, err
	}
	by := opts.ReconciledBy
	if by == "" {
		by = "operator"
	}
	inv.AddNote(fmt.Sprintf("manually reconciled with ledger transaction %s by %s", transactionID, by))

	var effect *outbox.Message
	if opts.UpdateCostCenter {
		if inv.CostCenter == nil {
			inv.AddNote("cost center not propagated to ledger: invoice has no cost center")
		} else {
			effect, err = outbox.NewLedgerUpdateMessage(inv.ID, outbox.LedgerCostCenterUpdate{
				TransactionID: transactionID,
				CostCenter:    inv.CostCenter.Code,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to build ledger update: %w", err)
			}
			inv.AddNote(fmt.Sprintf("cost center %s scheduled for ledger transaction %s", inv.CostCenter.Code, transactionID))
		}
	}

	if err := w.save(ctx, inv, effect); err != nil {
		w.logger.Error("Failed to save manual reconciliation", "invoice_id", invoiceID.String(), "error", err)
		return nil, fmt.Errorf("failed to save manual reconciliation: %w", err)
	}

	w.logger.Info("Invoice reconciled manually",
		"invoice_id", invoiceID.String(),
		"transaction_id", transactionID,
		"ledger_update", effect != nil,
	)
	return inv, nil
}

// SubmitCorrection overrides the cost center of the invoice, or of one line item when
// lineItemIndex is set, records the correction and teaches it to the classifier.
func (w *Workflow) SubmitCorrection(ctx context.Context, tenantID string, invoiceID uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, *costcenter.Correction, error) {
	return w.assign(ctx, tenantID, invoiceID, lineItemIndex, code, true)
}

// AssignCostCenter sets a manual cost center without recording a training correction
func (w *Workflow) AssignCostCenter(ctx context.Context, tenantID string, invoiceID uuid.UUID, lineItemIndex *int, code string) (*invoice.Invoice, error) {
	inv, _, err := w.assign(ctx, tenantID, invoiceID, lineItemIndex, code, false)
	return inv, err
}

func (w *Workflow) assign(ctx context.Context, tenantID string, invoiceID uuid.UUID, lineItemIndex *int, code string, learn bool) (*invoice.Invoice, *costcenter.Correction, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, costcenter.ErrEmptyCode
	}

	release, ok := w.inFlight.TryAcquire(invoiceKey(invoiceID))
	if !ok {
		return nil, nil, ErrReconciliationInProgress
	}
	defer release()

	inv, err := w.load(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, nil, err
	}

	centers, err := w.classifier.Refresh(ctx)
	if err != nil {
		w.logger.Warn("Using cached cost centers", "error", err)
	}
	var cc *costcenter.CostCenter
	for i := range centers {
		if centers[i].Code == code {
			cc = &centers[i]
			break
		}
	}
	if cc == nil {
		return nil, nil, costcenter.ErrCostCenterNotFound{Code: code}
	}

	now := w.now()
	description, amount := inv.InvoiceNumber, inv.Amount
	if lineItemIndex != nil {
		idx := *lineItemIndex
		if idx < 0 || idx >= len(inv.LineItems) {
			return nil, nil, fmt.Errorf("%w: index %d", ErrLineItemNotFound, idx)
		}
		item := &inv.LineItems[idx]
		item.AssignCostCenterManually(cc.Code, cc.Name, now)
		inv.UpdatedAt = now
		description, amount = item.Description, item.Amount
		inv.AddNote(fmt.Sprintf("line item %d cost center set to %s", idx, cc.Code))
	} else {
		inv.AssignCostCenterManually(cc.Code, cc.Name, now)
		inv.AddNote(fmt.Sprintf("cost center set to %s", cc.Code))
	}

	var correction *costcenter.Correction
	if learn {
		correction = &costcenter.Correction{
			InvoiceID:           inv.ID,
			LineItemIndex:       lineItemIndex,
			Description:         description,
			Vendor:              inv.Vendor,
			Amount:              amount,
			CorrectedCostCenter: cc.Code,
			CreatedAt:           now,
		}
	}

	err = w.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := w.invoices.WithTx(tx).Update(ctx, inv); err != nil {
			return err
		}
		if correction != nil {
			return w.corrections.WithTx(tx).Create(ctx, correction)
		}
		return nil
	})
	if err != nil {
		w.logger.Error("Failed to save cost center assignment", "invoice_id", invoiceID.String(), "error", err)
		return nil, nil, fmt.Errorf("failed to save cost center assignment: %w", err)
	}

	if correction != nil {
		if err := w.classifier.Learn(ctx, correction); err != nil {
			w.logger.Warn("Correction stored but not learned", "invoice_id", invoiceID.String(), "error", err)
		}
	}
	return inv, correction, nil
}

// populate fills the invoice from the document. It never fails.
func (w *Workflow) populate(ctx context.Context, inv *invoice.Invoice, doc Document, processedAt time.Time, logger *slog.Logger) {
	fields := w.extractor.Extract(doc.RawText, processedAt)
	inv.Vendor = fields.Vendor
	inv.InvoiceNumber = fields.InvoiceNumber
	inv.Amount = fields.Amount
	inv.Currency = fields.Currency
	inv.IssueDate = fields.IssueDate
	inv.DueDate = fields.DueDate
	inv.FieldConfidence = fields.Confidence
	inv.RawText = doc.RawText
	inv.OCRConfidence = doc.OCRConfidence
	inv.FileName = doc.FileName
	inv.LineItems = extraction.ParseLineItems(doc.RawText)

	if strings.TrimSpace(doc.RawText) == "" {
		inv.AddNote("no text recognised")
	}

	if low := fields.Confidence.LowConfidenceFields(); len(low) > 0 {
		inv.AddNote("low confidence fields: " + strings.Join(low, ", "))
	}

	centers, err := w.classifier.Refresh(ctx)
	if err != nil {
		logger.Warn("Failed to refresh cost centers, using cached list", "error", err)
		inv.AddNote("cost centers could not be refreshed, cached list used")
	}

	var inherited *classification.Decision
	if d, ok := w.classifier.Decide(inv.Vendor, doc.RawText, centers); ok {
		inv.AutoAssignCostCenter(d.Code, d.Name, d.Confidence, processedAt)
		inherited = &d
	} else {
		inv.AddNote("no cost center matched")
	}

	unassigned := 0
	for i := range inv.LineItems {
		item := &inv.LineItems[i]
		if d, ok, _ := w.decideLineItem(item.Description, inherited, centers); ok {
			item.AutoAssignCostCenter(d.Code, d.Name, d.Confidence, processedAt)
		} else {
			unassigned++
		}
	}
	if unassigned > 0 {
		inv.AddNote(fmt.Sprintf("%d line item(s) without cost center", unassigned))
	}
}

// decideLineItem lets a line item's own description win; otherwise the item inherits the
// invoice decision, then falls back to the default. inheritedUsed reports the second case.
func (w *Workflow) decideLineItem(description string, inherited *classification.Decision, centers []costcenter.CostCenter) (d classification.Decision, ok bool, inheritedUsed bool) {
	d, ok = w.classifier.Decide("", description, centers)
	switch {
	case ok && d.Source == classification.SourceFreeText:
		return d, true, false
	case inherited != nil:
		return *inherited, true, true
	default:
		return d, ok, false
	}
}

// load returns the invoice only when it belongs to tenantID; other tenants' invoices
// are reported as not found
func (w *Workflow) load(ctx context.Context, tenantID string, id uuid.UUID) (*invoice.Invoice, error) {
	inv, err := w.invoices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, invoice.ErrInvoiceNotFound{}) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load invoice %s: %w", id, err)
	}
	if !inv.OwnedBy(tenantID) {
		return nil, invoice.ErrInvoiceNotFound{ID: id}
	}
	return inv, nil
}

func (w *Workflow) fetchTransactions(ctx context.Context, tenantID string) ([]ledger.Transaction, error) {
	if w.ledgerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.ledgerTimeout)
		defer cancel()
	}
	return w.ledger.ListTransactions(ctx, tenantID)
}

// save persists the invoice and, when given, an outbox effect atomically
func (w *Workflow) save(ctx context.Context, inv *invoice.Invoice, effect *outbox.Message) error {
	return w.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := w.invoices.WithTx(tx).Update(ctx, inv); err != nil {
			return err
		}
		if effect != nil {
			return w.outbox.WithTx(tx).Create(ctx, effect)
		}
		return nil
	})
}

// applyMatch maps the matcher's recommendation onto the lifecycle
func applyMatch(inv *invoice.Invoice, result matching.Result, candidates int, at time.Time) error {
	if len(result.Matches) == 0 {
		inv.RecordAutoMatch([]invoice.Match{}, 0)
		inv.AddNote(fmt.Sprintf("no eligible ledger transaction among %d candidates", candidates))
		return nil
	}

	best := result.Matches[0]
	inv.RecordAutoMatch(toMatches(result.Matches), result.Confidence)

	switch result.Action {
	case shared.MatchActionAutoReconcile:
		if err := inv.Apply(invoice.EventAutoMatchHigh, at); err != nil {
			return err
		}
		inv.AddNote(fmt.Sprintf("auto-reconciled with ledger transaction %s (confidence %.2f)", best.ID, result.Confidence))
	case shared.MatchActionNeedsReview:
		if err := inv.Apply(invoice.EventAutoMatchReview, at); err != nil {
			return err
		}
		inv.AddNote(fmt.Sprintf("ledger transaction %s needs review (confidence %.2f)", best.ID, result.Confidence))
	default:
		inv.AddNote(fmt.Sprintf("weak match with ledger transaction %s (confidence %.2f), left pending", best.ID, result.Confidence))
	}
	return nil
}

func toCandidates(transactions []ledger.Transaction) []matching.Candidate {
	candidates := make([]matching.Candidate, 0, len(transactions))
	for _, tx := range transactions {
		candidates = append(candidates, matching.Candidate{
			ID:               tx.ID,
			Reference:        tx.Reference,
			Amount:           tx.Total,
			Date:             tx.Date.Time,
			CounterpartyName: tx.CounterpartyName,
		})
	}
	return candidates
}

func toMatches(candidates []matching.Candidate) []invoice.Match {
	matches := make([]invoice.Match, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, c.ToMatch())
	}
	return matches
}

func unavailableReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "ledger request timed out"
	}
	return err.Error()
}

func invoiceKey(id uuid.UUID) string {
	return "invoice:" + id.String()
}

func documentKey(tenantID, hash string) string {
	return "document:" + tenantID + ":" + hash
}
