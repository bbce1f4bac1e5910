package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// HealthChecker is a dependency the service needs to be able to reach
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the reachability of the databases
type HealthHandler struct {
	checks  map[string]HealthChecker
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a health handler. Each check gets timeout to answer.
func NewHealthHandler(logger *slog.Logger, checks map[string]HealthChecker, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{
		checks:  checks,
		timeout: timeout,
		logger:  logger,
	}
}

// Check pings every dependency concurrently. Any failure turns the answer into a 503.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		g          errgroup.Group
		mu         sync.Mutex
		components = make(map[string]string, len(names))
		healthy    = true
	)
	for _, name := range names {
		check := h.checks[name]
		g.Go(func() error {
			status := "ok"
			if err := check.Ping(ctx); err != nil {
				h.logger.Warn("Health check failed", "component", name, "error", err)
				status = "unavailable"
			}
			mu.Lock()
			defer mu.Unlock()
			components[name] = status
			if status != "ok" {
				healthy = false
			}
			return nil
		})
	}
	_ = g.Wait()

	code, status := http.StatusOK, "ok"
	if !healthy {
		code, status = http.StatusServiceUnavailable, "degraded"
	}
	c.JSON(code, gin.H{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC(),
	})
}
