package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tesseract-hub/ingestion-service/internal/config"
	"github.com/tesseract-hub/ingestion-service/internal/database"
	natsClient "github.com/tesseract-hub/ingestion-service/internal/nats"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	dbCfg *config.DatabaseConfig
	nats  *natsClient.Client
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(dbCfg *config.DatabaseConfig, nats *natsClient.Client) *HealthHandler {
	return &HealthHandler{dbCfg: dbCfg, nats: nats}
}

// Health handles the liveness check
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "ingestion-service",
	})
}

// Ready handles the readiness check. The administrative database must be
// reachable; NATS is reported but optional since jobs in flight can finish
// without it.
func (h *HealthHandler) Ready(c *gin.Context) {
	ready := true
	checks := make(map[string]string)

	if err := database.HealthCheck(c.Request.Context(), h.dbCfg); err == nil {
		checks["database"] = "connected"
	} else {
		checks["database"] = "disconnected"
		ready = false
	}

	if h.nats != nil && h.nats.IsConnected() {
		checks["nats"] = "connected"
	} else {
		checks["nats"] = "disconnected"
	}

	status := http.StatusOK
	statusText := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		statusText = "not_ready"
	}

	c.JSON(status, gin.H{
		"status":  statusText,
		"service": "ingestion-service",
		"checks":  checks,
	})
}
