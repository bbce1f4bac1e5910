package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoice-reconciler/internal/api_gateway/middleware"
	"github.com/invoice-reconciler/internal/api_gateway/service"
	"github.com/invoice-reconciler/internal/domain/shared"
)

// ScanFormField is the multipart field holding the scanned image
const ScanFormField = "file"

// DocumentHandler handles HTTP requests that submit scanned invoices
type DocumentHandler struct {
	documentService service.DocumentService
	maxUploadSize   int64
	logger          *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(logger *slog.Logger, documentService service.DocumentService, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		maxUploadSize:   maxUploadSize,
		logger:          logger,
	}
}

// Process reconciles OCR text synchronously and returns the resulting invoice
func (h *DocumentHandler) Process(c *gin.Context) {
	var req ProcessDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.documentService.ProcessText(c.Request.Context(), service.TextInput{
		TenantID:      middleware.GetTenantID(c),
		FileName:      req.FileName,
		RawText:       req.RawText,
		OCRConfidence: req.OCRConfidence,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to process document", "file_name", req.FileName)
		return
	}

	RespondCreated(c, mapResultToResponse(result))
}

// Scan accepts a multipart image, recognizes it and reconciles the text
func (h *DocumentHandler) Scan(c *gin.Context) {
	fileHeader, err := c.FormFile(ScanFormField)
	if err != nil {
		RespondBadRequest(c, fmt.Sprintf("Missing %q file field", ScanFormField))
		return
	}
	if h.maxUploadSize > 0 && fileHeader.Size > h.maxUploadSize {
		RespondWithError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			fmt.Sprintf("File exceeds %d bytes", h.maxUploadSize))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", "file_name", fileHeader.Filename, "error", err)
		RespondBadRequest(c, "Unreadable file")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", "file_name", fileHeader.Filename, "error", err)
		RespondBadRequest(c, "Unreadable file")
		return
	}

	result, err := h.documentService.ProcessScan(c.Request.Context(), service.ScanInput{
		TenantID:      middleware.GetTenantID(c),
		FileName:      fileHeader.Filename,
		Image:         image,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to process scan", "file_name", fileHeader.Filename)
		return
	}

	RespondCreated(c, mapResultToResponse(result))
}

// Ingest queues OCR text for the document processor and returns immediately
func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req ProcessDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	request := &shared.DocumentRequest{
		TenantID:      middleware.GetTenantID(c),
		FileName:      req.FileName,
		RawText:       req.RawText,
		OCRConfidence: req.OCRConfidence,
		CorrelationID: middleware.GetCorrelationID(c),
	}
	if err := h.documentService.Ingest(c.Request.Context(), request); err != nil {
		respondError(c, h.logger, err, "Failed to queue document", "file_name", req.FileName)
		return
	}

	RespondAccepted(c, IngestResponse{
		RequestID: request.RequestID.String(),
		Status:    "QUEUED",
	})
}
