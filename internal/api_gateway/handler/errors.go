package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/invoice-reconciler/internal/api_gateway/middleware"
	"github.com/invoice-reconciler/internal/api_gateway/service"
	"github.com/invoice-reconciler/internal/domain/costcenter"
	"github.com/invoice-reconciler/internal/domain/document"
	"github.com/invoice-reconciler/internal/domain/invoice"
	"github.com/invoice-reconciler/internal/domain/shared"
	"github.com/invoice-reconciler/internal/platform/ocr"
	"github.com/invoice-reconciler/internal/reconciliation"
)

// respondError maps domain and workflow errors to HTTP statuses. Anything unknown is
// logged and reported as a 500 without details.
func respondError(c *gin.Context, logger *slog.Logger, err error, msg string, attrs ...any) {
	switch {
	case errors.Is(err, invoice.ErrInvoiceNotFound{}),
		errors.Is(err, costcenter.ErrCostCenterNotFound{}),
		errors.Is(err, document.ErrDocumentNotFound{}),
		errors.Is(err, reconciliation.ErrLineItemNotFound):
		RespondNotFound(c, err.Error())

	case errors.Is(err, reconciliation.ErrReconciliationInProgress),
		errors.Is(err, invoice.ErrConcurrentModification{}),
		errors.Is(err, costcenter.ErrDuplicateCostCenter{}),
		errors.Is(err, invoice.ErrInvalidTransition{}):
		RespondConflict(c, err.Error())

	case errors.Is(err, reconciliation.ErrInvalidManualReconciliation),
		errors.Is(err, shared.ErrMissingTenant),
		errors.Is(err, costcenter.ErrEmptyCode),
		errors.Is(err, costcenter.ErrEmptyName),
		errors.Is(err, reconciliation.ErrEmptyHeaderUpdate),
		errors.Is(err, ocr.ErrEmptyImage):
		RespondBadRequest(c, err.Error())

	case errors.Is(err, service.ErrOCRDisabled),
		errors.Is(err, service.ErrIngestDisabled):
		RespondServiceUnavailable(c, err.Error())

	default:
		logger.Error(msg, append(attrs, "correlation_id", middleware.GetCorrelationID(c), "error", err)...)
		RespondInternalError(c)
	}
}
