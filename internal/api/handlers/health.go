package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheckFunc 외부 의존성 상태 확인 (Redis ping, DB ping 등)
type HealthCheckFunc func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheckFunc
}

func NewHealthHandler(checks map[string]HealthCheckFunc) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthCheckFunc{}
	}
	return &HealthHandler{checks: checks}
}

// HealthCheck godoc
// @Summary Health check
// @Description Check if the API server and its backing stores are reachable
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Server is healthy"
// @Failure 503 {object} map[string]interface{} "A dependency is down"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":     overall,
		"service":    "lingoarena-backend",
		"components": components,
	})
}
