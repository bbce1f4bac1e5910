package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecoveryRouter(logs *bytes.Buffer, withCorrelation bool, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := gin.New()
	if withCorrelation {
		router.Use(CorrelationID(), Tenant("acme"))
	}
	router.Use(Recovery(log))
	router.POST("/api/v1/invoices/:id/reconcile", handler)
	return router
}

func TestRecovery_PanicBecomesInternalError(t *testing.T) {
	tests := []struct {
		name      string
		value     interface{}
		wantError string
	}{
		{"string panic", "matcher exploded", "matcher exploded"},
		{"error panic", errors.New("nil line item"), "nil line item"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			router := newRecoveryRouter(&logs, true, func(c *gin.Context) {
				panic(tt.value)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/42/reconcile", nil)
			req.Header.Set(CorrelationIDHeader, "corr-recover")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			require.Equal(t, http.StatusInternalServerError, rr.Code)

			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
				CorrelationID string `json:"correlation_id"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Error.Code)
			assert.Equal(t, "corr-recover", body.CorrelationID)
			assert.NotContains(t, rr.Body.String(), tt.wantError, "panic details must not leak to the client")

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
			assert.Equal(t, "ERROR", entry["level"])
			assert.Equal(t, "Panic recovered", entry["msg"])
			assert.Contains(t, entry["error"], tt.wantError)
			assert.Equal(t, "/api/v1/invoices/42/reconcile", entry["path"])
			assert.Equal(t, http.MethodPost, entry["method"])
			assert.Equal(t, "corr-recover", entry["correlation_id"])
			assert.Equal(t, "acme", entry["tenant_id"])
			assert.NotEmpty(t, entry["stack"])
		})
	}
}

func TestRecovery_WithoutCorrelationMiddleware(t *testing.T) {
	var logs bytes.Buffer
	router := newRecoveryRouter(&logs, false, func(c *gin.Context) {
		panic("boom")
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/7/reconcile", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "correlation_id")
}

func TestRecovery_PassesThroughWithoutPanic(t *testing.T) {
	var logs bytes.Buffer
	router := newRecoveryRouter(&logs, true, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "reconciled"})
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/7/reconcile", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"reconciled"}`, rr.Body.String())
	assert.Empty(t, logs.String())
}
