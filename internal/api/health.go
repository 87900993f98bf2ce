package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/ayman-boop/ub-chat/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// HealthHandler is public so load balancers can probe it without a token.
type HealthHandler struct {
	checks map[string]repository.HealthChecker
	logger *zap.Logger
}

func NewHealthHandler(checks map[string]repository.HealthChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// Check handles GET /v1/health. It answers 503 and names the failing
// dependencies when any check fails.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	var failing []string
	for name, check := range h.checks {
		if err := check.Health(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			failing = append(failing, name)
		}
	}

	if len(failing) > 0 {
		sort.Strings(failing)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failing": failing})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
