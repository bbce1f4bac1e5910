package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/invoice-reconciler/internal/api_gateway/service"
)

// CostCenterHandler handles HTTP requests for cost center reference data
type CostCenterHandler struct {
	costCenterService service.CostCenterService
	logger            *slog.Logger
}

// NewCostCenterHandler creates a new cost center handler
func NewCostCenterHandler(logger *slog.Logger, costCenterService service.CostCenterService) *CostCenterHandler {
	return &CostCenterHandler{
		costCenterService: costCenterService,
		logger:            logger,
	}
}

// List returns every cost center in classifier priority order
func (h *CostCenterHandler) List(c *gin.Context) {
	centers, err := h.costCenterService.ListCostCenters(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to list cost centers")
		return
	}

	response := make([]CostCenterResponse, 0, len(centers))
	for i := range centers {
		response = append(response, mapCostCenterToResponse(&centers[i]))
	}
	RespondOK(c, response)
}

// Create adds a cost center; a duplicate code is a 409
func (h *CostCenterHandler) Create(c *gin.Context) {
	var req CreateCostCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	cc, err := h.costCenterService.CreateCostCenter(c.Request.Context(), req.Code, req.Name, req.Keywords)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create cost center", "code", req.Code)
		return
	}

	RespondCreated(c, mapCostCenterToResponse(cc))
}

func (h *CostCenterHandler) Update(c *gin.Context) {
	code := c.Param("code")

	var req UpdateCostCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	cc, err := h.costCenterService.UpdateCostCenter(c.Request.Context(), code, req.Name, req.Keywords)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update cost center", "code", code)
		return
	}

	RespondOK(c, mapCostCenterToResponse(cc))
}

func (h *CostCenterHandler) Delete(c *gin.Context) {
	code := c.Param("code")
	if err := h.costCenterService.DeleteCostCenter(c.Request.Context(), code); err != nil {
		respondError(c, h.logger, err, "Failed to delete cost center", "code", code)
		return
	}

	RespondNoContent(c)
}

// ClassifierInfo reports the classifier strategy and what it has learned
func (h *CostCenterHandler) ClassifierInfo(c *gin.Context) {
	info, err := h.costCenterService.ClassifierInfo(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to read classifier info")
		return
	}

	RespondOK(c, info)
}
