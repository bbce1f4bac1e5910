package handler

import (
	"fmt"
	"time"

	"github.com/invoice-reconciler/internal/api_gateway/service"
	"github.com/invoice-reconciler/internal/classification"
	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/domain/document"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/matching"
	"github.com/invoice-reconciler/internal/reconciliation"
)

const dateLayout = "2006-01-02"

// ProcessDocumentRequest carries OCR text produced by the client
type ProcessDocumentRequest struct {
	RawText       string  `json:"raw_text"`
	FileName      string  `json:"file_name"`
	OCRConfidence float64 `json:"ocr_confidence" binding:"gte=0,lte=1"`
}

// ReconcileRequest links an invoice to a ledger transaction chosen by an operator
type ReconcileRequest struct {
	TransactionID    string `json:"transaction_id" binding:"required"`
	Reference        string `json:"reference"`
	UpdateCostCenter bool   `json:"update_cost_center"`
	ReconciledBy     string `json:"reconciled_by"`
}

// UpdateInvoiceRequest edits extracted header fields. Amount and dates are strings so a
// malformed value gets a precise message.
type UpdateInvoiceRequest struct {
	Vendor        *string `json:"vendor"`
	InvoiceNumber *string `json:"invoice_number"`
	Currency      *string `json:"currency" binding:"omitempty,len=3"`
	Amount        *string `json:"amount"`
	IssueDate     *string `json:"issue_date"`
	DueDate       *string `json:"due_date"`
}

func (r UpdateInvoiceRequest) toHeaderUpdate() (invoice.HeaderUpdate, error) {
	update := invoice.HeaderUpdate{
		Vendor:        r.Vendor,
		InvoiceNumber: r.InvoiceNumber,
		Currency:      r.Currency,
	}
	var err error
	if r.Amount != nil {
		if update.Amount, err = parseAmount("amount", *r.Amount); err != nil {
			return update, err
		}
		if update.Amount == nil || update.Amount.IsNegative() {
			return update, fmt.Errorf("invalid amount %q", *r.Amount)
		}
	}
	if r.IssueDate != nil {
		if update.IssueDate, err = parseDate("issue_date", *r.IssueDate); err != nil {
			return update, err
		}
		if update.IssueDate == nil {
			return update, fmt.Errorf("invalid issue_date %q, expected YYYY-MM-DD", *r.IssueDate)
		}
	}
	if r.DueDate != nil {
		if update.DueDate, err = parseDate("due_date", *r.DueDate); err != nil {
			return update, err
		}
		if update.DueDate == nil {
			return update, fmt.Errorf("invalid due_date %q, expected YYYY-MM-DD", *r.DueDate)
		}
	}
	return update, nil
}

// CostCenterAssignmentRequest targets the invoice, or one line item when LineItemIndex is set.
// Used for both manual assignments and classifier corrections.
type CostCenterAssignmentRequest struct {
	CostCenter    string `json:"cost_center" binding:"required"`
	LineItemIndex *int   `json:"line_item_index" binding:"omitempty,min=0"`
}

// CreateCostCenterRequest represents a request to create a cost center
type CreateCostCenterRequest struct {
	Code     string   `json:"code" binding:"required,max=32"`
	Name     string   `json:"name" binding:"required"`
	Keywords []string `json:"keywords"`
}

// UpdateCostCenterRequest leaves the name unchanged when empty and the keywords when omitted
type UpdateCostCenterRequest struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

func (p PaginationParams) offset() int {
	return (p.Page - 1) * p.PerPage
}

// InvoiceListParams are the query parameters of GET /invoices. Amounts and dates are
// parsed by the handler so malformed values produce a precise message.
type InvoiceListParams struct {
	PaginationParams
	InvoiceNumber string `form:"invoice_number"`
	Vendor        string `form:"vendor"`
	Status        string `form:"status"`
	MinAmount     string `form:"min_amount"`
	MaxAmount     string `form:"max_amount"`
	DateFrom      string `form:"date_from"`
	DateTo        string `form:"date_to"`
	Reconciled    string `form:"reconciled"`
	CostCenter    string `form:"cost_center"`
	SortBy        string `form:"sort_by,default=created_at"`
	Order         string `form:"order,default=desc" binding:"oneof=asc desc"`
}

// AssignmentResponse is a cost center attribution
type AssignmentResponse struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	AssignedAt  string  `json:"assigned_at"`
	ManuallySet bool    `json:"manually_set"`
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	Index       int                 `json:"index"`
	Quantity    int                 `json:"quantity"`
	UnitPrice   string              `json:"unit_price"`
	Amount      string              `json:"amount"`
	Description string              `json:"description"`
	CostCenter  *AssignmentResponse `json:"cost_center,omitempty"`
}

// MatchResponse is a ledger transaction linked to an invoice
type MatchResponse struct {
	TransactionID string  `json:"transaction_id"`
	Reference     string  `json:"reference,omitempty"`
	Amount        string  `json:"amount"`
	Date          string  `json:"date"`
	Confidence    float64 `json:"confidence"`
	Manual        bool    `json:"manual"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                  string              `json:"id"`
	TenantID            string              `json:"tenant_id"`
	InvoiceNumber       string              `json:"invoice_number"`
	Vendor              string              `json:"vendor"`
	Currency            string              `json:"currency"`
	Amount              string              `json:"amount"`
	IssueDate           string              `json:"issue_date"`
	DueDate             string              `json:"due_date,omitempty"`
	Status              string              `json:"status"`
	CostCenter          *AssignmentResponse `json:"cost_center,omitempty"`
	LineItems           []LineItemResponse  `json:"line_items"`
	LineItemTotal       string              `json:"line_item_total"`
	Matches             []MatchResponse     `json:"matches"`
	MatchConfidence     float64             `json:"match_confidence"`
	OCRConfidence       float64             `json:"ocr_confidence"`
	LowConfidenceFields []string            `json:"low_confidence_fields,omitempty"`
	ProcessingNotes     []string            `json:"processing_notes"`
	FileName            string              `json:"file_name,omitempty"`
	DocumentHash        string              `json:"document_hash"`
	ReconciledAt        string              `json:"reconciled_at,omitempty"`
	ReconciledBy        string              `json:"reconciled_by,omitempty"`
	CreatedAt           string              `json:"created_at"`
	UpdatedAt           string              `json:"updated_at"`
}

// MatchSummaryResponse explains the outcome of automatic matching
type MatchSummaryResponse struct {
	Action         string               `json:"action"`
	Confidence     float64              `json:"confidence"`
	RequiresReview bool                 `json:"requires_review"`
	Eligible       int                  `json:"eligible"`
	Candidates     []matching.Candidate `json:"candidates"`
}

// ProcessDocumentResponse is returned by the synchronous document endpoints
type ProcessDocumentResponse struct {
	Invoice InvoiceResponse       `json:"invoice"`
	Match   *MatchSummaryResponse `json:"match,omitempty"`
}

// IngestResponse acknowledges a queued document
type IngestResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// DocumentResponse is the archived OCR output of an invoice
type DocumentResponse struct {
	InvoiceID     string          `json:"invoice_id"`
	FileName      string          `json:"file_name,omitempty"`
	DocumentHash  string          `json:"document_hash"`
	RawText       string          `json:"raw_text"`
	OCRConfidence float64         `json:"ocr_confidence"`
	Logos         []document.Logo `json:"logos,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// ClassificationResponse is a classifier preview for one invoice
type ClassificationResponse struct {
	InvoiceID string                           `json:"invoice_id"`
	Invoice   *classification.Decision         `json:"invoice,omitempty"`
	LineItems []LineItemClassificationResponse `json:"line_items"`
}

// LineItemClassificationResponse is the preview for one line item
type LineItemClassificationResponse struct {
	Index       int                      `json:"index"`
	Description string                   `json:"description"`
	Decision    *classification.Decision `json:"decision,omitempty"`
	Inherited   bool                     `json:"inherited"`
}

// CorrectionResponse represents a classifier correction
type CorrectionResponse struct {
	ID                  int64  `json:"id"`
	InvoiceID           string `json:"invoice_id"`
	LineItemIndex       *int   `json:"line_item_index,omitempty"`
	Description         string `json:"description"`
	Vendor              string `json:"vendor"`
	Amount              string `json:"amount"`
	CorrectedCostCenter string `json:"corrected_cost_center"`
	CreatedAt           string `json:"created_at"`
}

// CorrectionResultResponse is returned after a correction was applied
type CorrectionResultResponse struct {
	Invoice    InvoiceResponse    `json:"invoice"`
	Correction CorrectionResponse `json:"correction"`
}

// CostCenterResponse represents a cost center in API responses
type CostCenterResponse struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Keywords  []string `json:"keywords"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// DashboardResponse summarises reconciliation progress
type DashboardResponse struct {
	Total           int64             `json:"total"`
	Pending         int64             `json:"pending"`
	Review          int64             `json:"review"`
	Reconciled      int64             `json:"reconciled"`
	TotalAmount     string            `json:"total_amount"`
	Documents       int64             `json:"documents"`
	Corrections     int64             `json:"corrections"`
	LedgerConnected bool              `json:"ledger_connected"`
	RecentInvoices  []InvoiceResponse `json:"recent_invoices"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func mapAssignment(a *invoice.CostCenterAssignment) *AssignmentResponse {
	if a == nil {
		return nil
	}
	return &AssignmentResponse{
		Code:        a.Code,
		Name:        a.Name,
		Confidence:  a.Confidence,
		AssignedAt:  formatTime(a.AssignedAt),
		ManuallySet: a.ManuallySet,
	}
}

// mapInvoiceToResponse maps an invoice to its response DTO
func mapInvoiceToResponse(inv *invoice.Invoice) InvoiceResponse {
	response := InvoiceResponse{
		ID:                  inv.ID.String(),
		TenantID:            inv.TenantID,
		InvoiceNumber:       inv.InvoiceNumber,
		Vendor:              inv.Vendor,
		Currency:            inv.Currency,
		Amount:              inv.Amount.StringFixed(2),
		Status:              string(inv.Status),
		CostCenter:          mapAssignment(inv.CostCenter),
		LineItems:           make([]LineItemResponse, 0, len(inv.LineItems)),
		LineItemTotal:       inv.LineItemTotal().StringFixed(2),
		Matches:             make([]MatchResponse, 0, len(inv.Matches)),
		MatchConfidence:     inv.MatchConfidence,
		OCRConfidence:       inv.OCRConfidence,
		LowConfidenceFields: inv.FieldConfidence.LowConfidenceFields(),
		ProcessingNotes:     inv.ProcessingNotes,
		FileName:            inv.FileName,
		DocumentHash:        inv.DocumentHash,
		ReconciledBy:        inv.ReconciledBy,
		CreatedAt:           formatTime(inv.CreatedAt),
		UpdatedAt:           formatTime(inv.UpdatedAt),
	}
	if !inv.IssueDate.IsZero() {
		response.IssueDate = inv.IssueDate.Format(dateLayout)
	}
	if inv.DueDate != nil {
		response.DueDate = inv.DueDate.Format(dateLayout)
	}
	if inv.ReconciledAt != nil {
		response.ReconciledAt = formatTime(*inv.ReconciledAt)
	}
	if response.ProcessingNotes == nil {
		response.ProcessingNotes = []string{}
	}

	for i, item := range inv.LineItems {
		response.LineItems = append(response.LineItems, LineItemResponse{
			Index:       i,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Amount:      item.Amount.StringFixed(2),
			Description: item.Description,
			CostCenter:  mapAssignment(item.CostCenter),
		})
	}
	for _, m := range inv.Matches {
		response.Matches = append(response.Matches, MatchResponse{
			TransactionID: m.TransactionID,
			Reference:     m.Reference,
			Amount:        m.Amount.StringFixed(2),
			Date:          formatTime(m.Date),
			Confidence:    m.Confidence,
			Manual:        m.Manual,
		})
	}
	return response
}

func mapInvoicesToResponse(invoices []*invoice.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, mapInvoiceToResponse(inv))
	}
	return out
}

func mapResultToResponse(result *reconciliation.Result) ProcessDocumentResponse {
	response := ProcessDocumentResponse{Invoice: mapInvoiceToResponse(result.Invoice)}
	if result.Match != nil {
		candidates := result.Match.Matches
		if candidates == nil {
			candidates = []matching.Candidate{}
		}
		response.Match = &MatchSummaryResponse{
			Action:         string(result.Match.Action),
			Confidence:     result.Match.Confidence,
			RequiresReview: result.Match.RequiresReview,
			Eligible:       result.Match.Eligible,
			Candidates:     candidates,
		}
	}
	return response
}

func mapClassificationToResponse(c *reconciliation.Classification) ClassificationResponse {
	response := ClassificationResponse{
		InvoiceID: c.InvoiceID.String(),
		Invoice:   c.Invoice,
		LineItems: make([]LineItemClassificationResponse, 0, len(c.LineItems)),
	}
	for _, item := range c.LineItems {
		response.LineItems = append(response.LineItems, LineItemClassificationResponse{
			Index:       item.Position,
			Description: item.Description,
			Decision:    item.Decision,
			Inherited:   item.Inherited,
		})
	}
	return response
}

func mapDocumentToResponse(doc *document.Document) DocumentResponse {
	return DocumentResponse{
		InvoiceID:     doc.InvoiceID.String(),
		FileName:      doc.FileName,
		DocumentHash:  doc.DocumentHash,
		RawText:       doc.RawText,
		OCRConfidence: doc.OCRConfidence,
		Logos:         doc.Logos,
		CreatedAt:     formatTime(doc.CreatedAt),
	}
}

func mapCorrectionToResponse(c *costcenter.Correction) CorrectionResponse {
	return CorrectionResponse{
		ID:                  c.ID,
		InvoiceID:           c.InvoiceID.String(),
		LineItemIndex:       c.LineItemIndex,
		Description:         c.Description,
		Vendor:              c.Vendor,
		Amount:              c.Amount.StringFixed(2),
		CorrectedCostCenter: c.CorrectedCostCenter,
		CreatedAt:           formatTime(c.CreatedAt),
	}
}

func mapCostCenterToResponse(cc *costcenter.CostCenter) CostCenterResponse {
	keywords := cc.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return CostCenterResponse{
		Code:      cc.Code,
		Name:      cc.Name,
		Keywords:  keywords,
		CreatedAt: formatTime(cc.CreatedAt),
		UpdatedAt: formatTime(cc.UpdatedAt),
	}
}

func mapDashboardToResponse(d *service.Dashboard) DashboardResponse {
	response := DashboardResponse{
		Documents:       d.Documents,
		Corrections:     d.Corrections,
		LedgerConnected: d.LedgerConnected,
		RecentInvoices:  mapInvoicesToResponse(d.RecentInvoices),
		TotalAmount:     "0.00",
	}
	if d.Invoices != nil {
		response.Total = d.Invoices.Total
		response.Pending = d.Invoices.Pending
		response.Review = d.Invoices.Review
		response.Reconciled = d.Invoices.Reconciled
		response.TotalAmount = d.Invoices.TotalAmount.StringFixed(2)
	}
	return response
}

// ClassifierInfoResponse is returned as is; the classifier already shapes it for clients
type ClassifierInfoResponse = classification.Info
