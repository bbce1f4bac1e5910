package api_gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoice-reconciler/internal/api_gateway/handler"
	"github.com/invoice-reconciler/internal/api_gateway/middleware"
	"github.com/invoice-reconciler/internal/config"
	"github.com/stretchr/testify/assert"
)

type okChecker struct{}

func (okChecker) Ping(context.Context) error { return nil }

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Server: config.ServerConfig{Port: 0, ReadTimeout: time.Second, MaxUploadSize: 1 << 20},
		Ledger: config.LedgerConfig{TenantID: "default-tenant"},
	}
	return NewServer(logger, cfg, Services{
		Health: map[string]handler.HealthChecker{"postgres": okChecker{}},
	})
}

func TestSetupRouter_Routes(t *testing.T) {
	server := newTestServer()

	registered := make(map[string]bool)
	for _, route := range server.httpRouter.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	expected := []string{
		"POST /api/v1/documents",
		"POST /api/v1/documents/scan",
		"POST /api/v1/documents/ingest",
		"GET /api/v1/invoices",
		"GET /api/v1/invoices/:id",
		"PUT /api/v1/invoices/:id",
		"GET /api/v1/invoices/:id/classification",
		"GET /api/v1/invoices/:id/document",
		"POST /api/v1/invoices/:id/reconcile",
		"PUT /api/v1/invoices/:id/cost-center",
		"POST /api/v1/invoices/:id/corrections",
		"GET /api/v1/corrections",
		"GET /api/v1/dashboard",
		"GET /api/v1/cost-centers",
		"POST /api/v1/cost-centers",
		"PUT /api/v1/cost-centers/:code",
		"DELETE /api/v1/cost-centers/:code",
		"GET /api/v1/classifier/info",
		"GET /health",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "route %s not registered", route)
	}
}

func TestServer_Health(t *testing.T) {
	server := newTestServer()

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(middleware.CorrelationIDHeader))
	assert.Contains(t, rr.Body.String(), `"postgres":"ok"`)
}

func TestServer_UnknownRoute(t *testing.T) {
	server := newTestServer()

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_Stop(t *testing.T) {
	server := newTestServer()
	assert.NoError(t, server.Stop(context.Background(), time.Second))
}
