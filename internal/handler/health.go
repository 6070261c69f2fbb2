package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	version string
	pingDB  func() error
}

// NewHealthHandler creates a HealthHandler with a database ping check.
func NewHealthHandler(version string, pingDB func() error) *HealthHandler {
	return &HealthHandler{version: version, pingDB: pingDB}
}

// Health reports service health including the database connection.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := gin.H{}
	status := "healthy"
	code := http.StatusOK

	if err := h.pingDB(); err != nil {
		checks["database"] = err.Error()
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": "paylink",
		"version": h.version,
		"checks":  checks,
	})
}
