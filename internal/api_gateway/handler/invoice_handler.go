package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoice-reconciler/internal/api_gateway/middleware"
	"github.com/invoice-reconciler/internal/api_gateway/service"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/reconciliation"
	"github.com/shopspring/decimal"
)

var sortFields = map[string]invoice.SortField{
	"created_at":     invoice.SortByCreatedAt,
	"issue_date":     invoice.SortByIssueDate,
	"amount":         invoice.SortByAmount,
	"vendor":         invoice.SortByVendor,
	"invoice_number": invoice.SortByInvoiceNumber,
}

// InvoiceHandler handles HTTP requests for invoices and operator actions on them
type InvoiceHandler struct {
	invoiceService service.InvoiceService
	logger         *slog.Logger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(logger *slog.Logger, invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		logger:         logger,
	}
}

// List returns a filtered, sorted page of the tenant's invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var params InvoiceListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter, err := buildListFilter(params, middleware.GetTenantID(c))
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list invoices")
		return
	}

	RespondWithPaginatedData(c, http.StatusOK, mapInvoicesToResponse(invoices), params.Page, params.PerPage, int(total))
}

// GetByID returns one invoice, or 404
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.GetInvoice(c.Request.Context(), middleware.GetTenantID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get invoice", "invoice_id", id.String())
		return
	}

	RespondOK(c, mapInvoiceToResponse(inv))
}

// GetDocument returns the raw OCR document the invoice was extracted from
func (h *InvoiceHandler) GetDocument(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	doc, err := h.invoiceService.GetDocument(c.Request.Context(), middleware.GetTenantID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get invoice document", "invoice_id", id.String())
		return
	}

	RespondOK(c, mapDocumentToResponse(doc))
}

// Update applies operator edits to the header fields. Omitted fields are left alone.
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	var req UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	update, err := req.toHeaderUpdate()
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.invoiceService.UpdateInvoice(c.Request.Context(), middleware.GetTenantID(c), id, update)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update invoice", "invoice_id", id.String())
		return
	}

	RespondOK(c, mapResultToResponse(result))
}

// Classification previews the cost centers the classifier would pick now
func (h *InvoiceHandler) Classification(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	preview, err := h.invoiceService.ClassifyInvoice(c.Request.Context(), middleware.GetTenantID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to classify invoice", "invoice_id", id.String())
		return
	}

	RespondOK(c, mapClassificationToResponse(preview))
}

// Reconcile links the invoice to a ledger transaction. A concurrent attempt on the same
// invoice is rejected with 409.
func (h *InvoiceHandler) Reconcile(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	inv, err := h.invoiceService.Reconcile(c.Request.Context(), middleware.GetTenantID(c), id, req.TransactionID, reconciliation.Options{
		UpdateCostCenter: req.UpdateCostCenter,
		Reference:        req.Reference,
		ReconciledBy:     req.ReconciledBy,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to reconcile invoice",
			"invoice_id", id.String(),
			"transaction_id", req.TransactionID,
		)
		return
	}

	RespondOK(c, mapInvoiceToResponse(inv))
}

// AssignCostCenter sets a manual cost center without teaching the classifier
func (h *InvoiceHandler) AssignCostCenter(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	var req CostCenterAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	inv, err := h.invoiceService.AssignCostCenter(c.Request.Context(), middleware.GetTenantID(c), id, req.LineItemIndex, req.CostCenter)
	if err != nil {
		respondError(c, h.logger, err, "Failed to assign cost center",
			"invoice_id", id.String(),
			"cost_center", req.CostCenter,
		)
		return
	}

	RespondOK(c, mapInvoiceToResponse(inv))
}

// SubmitCorrection overrides a classification and records it as training data
func (h *InvoiceHandler) SubmitCorrection(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	var req CostCenterAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	inv, correction, err := h.invoiceService.SubmitCorrection(c.Request.Context(), middleware.GetTenantID(c), id, req.LineItemIndex, req.CostCenter)
	if err != nil {
		respondError(c, h.logger, err, "Failed to submit correction",
			"invoice_id", id.String(),
			"cost_center", req.CostCenter,
		)
		return
	}

	RespondCreated(c, CorrectionResultResponse{
		Invoice:    mapInvoiceToResponse(inv),
		Correction: mapCorrectionToResponse(correction),
	})
}

// ListCorrections returns recorded corrections, newest first
func (h *InvoiceHandler) ListCorrections(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	corrections, total, err := h.invoiceService.ListCorrections(c.Request.Context(), pagination.PerPage, pagination.offset())
	if err != nil {
		respondError(c, h.logger, err, "Failed to list corrections")
		return
	}

	response := make([]CorrectionResponse, 0, len(corrections))
	for _, correction := range corrections {
		response = append(response, mapCorrectionToResponse(correction))
	}
	RespondWithPaginatedData(c, http.StatusOK, response, pagination.Page, pagination.PerPage, int(total))
}

// Dashboard returns reconciliation counts for the tenant
func (h *InvoiceHandler) Dashboard(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	dashboard, err := h.invoiceService.Dashboard(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to build dashboard", "tenant_id", tenantID)
		return
	}

	RespondOK(c, mapDashboardToResponse(dashboard))
}

func (h *InvoiceHandler) invoiceID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid invoice ID")
		return uuid.Nil, false
	}
	return id, true
}

// buildListFilter validates query parameters and converts them to a repository filter
func buildListFilter(params InvoiceListParams, tenantID string) (invoice.ListFilter, error) {
	filter := invoice.ListFilter{
		TenantID:      tenantID,
		InvoiceNumber: strings.TrimSpace(params.InvoiceNumber),
		Vendor:        strings.TrimSpace(params.Vendor),
		CostCenter:    strings.TrimSpace(params.CostCenter),
		SortDesc:      params.Order != "asc",
		Limit:         params.PerPage,
		Offset:        params.offset(),
	}

	sortBy, ok := sortFields[params.SortBy]
	if !ok {
		return filter, fmt.Errorf("invalid sort_by %q", params.SortBy)
	}
	filter.SortBy = sortBy

	if params.Status != "" {
		status, err := invoice.ParseStatus(params.Status)
		if err != nil {
			return filter, fmt.Errorf("invalid status %q", params.Status)
		}
		filter.Status = status
	}

	var err error
	if filter.MinAmount, err = parseAmount("min_amount", params.MinAmount); err != nil {
		return filter, err
	}
	if filter.MaxAmount, err = parseAmount("max_amount", params.MaxAmount); err != nil {
		return filter, err
	}
	if filter.DateFrom, err = parseDate("date_from", params.DateFrom); err != nil {
		return filter, err
	}
	if filter.DateTo, err = parseDate("date_to", params.DateTo); err != nil {
		return filter, err
	}

	if params.Reconciled != "" {
		reconciled, err := strconv.ParseBool(params.Reconciled)
		if err != nil {
			return filter, fmt.Errorf("invalid reconciled %q", params.Reconciled)
		}
		filter.Reconciled = &reconciled
	}
	return filter, nil
}

func parseAmount(name, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, value)
	}
	return &d, nil
}

func parseDate(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q, expected YYYY-MM-DD", name, value)
	}
	return &t, nil
}
