package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader is the HTTP header for correlation ID
	CorrelationIDHeader = "X-Correlation-ID"

	// RequestIDHeader is accepted when no correlation id was sent
	RequestIDHeader = "X-Request-ID"

	// TenantIDHeader selects the tenant whose invoices and ledger are used
	TenantIDHeader = "X-Tenant-ID"

	CorrelationIDKey = "correlation_id"
	TenantIDKey      = "tenant_id"
)

// CorrelationID middleware ensures each request has an identifier that follows the
// document through Kafka and the workflow logs
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := strings.TrimSpace(c.GetHeader(CorrelationIDHeader))
		if correlationID == "" {
			correlationID = strings.TrimSpace(c.GetHeader(RequestIDHeader))
		}
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Header(CorrelationIDHeader, correlationID)
		c.Set(CorrelationIDKey, correlationID)

		c.Next()
	}
}

// Tenant resolves the tenant from the X-Tenant-ID header, falling back to defaultTenant.
// Requests without any tenant keep an empty value; handlers that need one reject them.
func Tenant(defaultTenant string) gin.HandlerFunc {
	defaultTenant = strings.TrimSpace(defaultTenant)
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(TenantIDHeader))
		if tenantID == "" {
			tenantID = defaultTenant
		}
		c.Set(TenantIDKey, tenantID)
		c.Next()
	}
}

// GetCorrelationID retrieves the correlation ID from the gin context if present
func GetCorrelationID(c *gin.Context) string {
	return getString(c, CorrelationIDKey)
}

// GetTenantID retrieves the tenant resolved by the Tenant middleware
func GetTenantID(c *gin.Context) string {
	return getString(c, TenantIDKey)
}

func getString(c *gin.Context, key string) string {
	if v, exists := c.Get(key); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
