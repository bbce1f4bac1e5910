package api_gateway

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/invoice-reconciler/internal/api_gateway/handler"
	"github.com/invoice-reconciler/internal/api_gateway/middleware"
)

const healthPath = "/health"

// handlers groups everything the router mounts
type handlers struct {
	documents   *handler.DocumentHandler
	invoices    *handler.InvoiceHandler
	costCenters *handler.CostCenterHandler
	health      *handler.HealthHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, defaultTenant string, h handlers) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Tenant(defaultTenant))
	r.Use(middleware.Logger(logger, healthPath))
	r.Use(middleware.Recovery(logger))

	v1 := r.Group("/api/v1")
	{
		documents := v1.Group("/documents")
		{
			documents.POST("", h.documents.Process)
			documents.POST("/scan", h.documents.Scan)
			documents.POST("/ingest", h.documents.Ingest)
		}

		invoices := v1.Group("/invoices")
		{
			invoices.GET("", h.invoices.List)
			invoices.GET("/:id", h.invoices.GetByID)
			invoices.PUT("/:id", h.invoices.Update)
			invoices.GET("/:id/classification", h.invoices.Classification)
			invoices.GET("/:id/document", h.invoices.GetDocument)
			invoices.POST("/:id/reconcile", h.invoices.Reconcile)
			invoices.PUT("/:id/cost-center", h.invoices.AssignCostCenter)
			invoices.POST("/:id/corrections", h.invoices.SubmitCorrection)
		}

		v1.GET("/corrections", h.invoices.ListCorrections)
		v1.GET("/dashboard", h.invoices.Dashboard)

		costCenters := v1.Group("/cost-centers")
		{
			costCenters.GET("", h.costCenters.List)
			costCenters.POST("", h.costCenters.Create)
			costCenters.PUT("/:code", h.costCenters.Update)
			costCenters.DELETE("/:code", h.costCenters.Delete)
		}

		v1.GET("/classifier/info", h.costCenters.ClassifierInfo)
	}

	r.GET(healthPath, h.health.Check)
}
