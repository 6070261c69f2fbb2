// Package handler provides the gin HTTP handlers for the service.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
)

// respondError maps service errors onto HTTP responses. Validation and
// ineligibility errors carry a specific, user-readable reason; everything
// else is a generic "try again" with full detail logged internally.
func respondError(c *gin.Context, log logger.Logger, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
		return
	}

	if in, ok := domain.AsIneligibility(err); ok {
		body := gin.H{"error": in.Reason}
		if in.Remediation != "" {
			body["remediation"] = in.Remediation
		}
		if len(in.Missing) > 0 {
			body["missing"] = in.Missing
		}
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrWithdrawalInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrDuplicateRef):
		c.JSON(http.StatusConflict, gin.H{"error": "payment already recorded"})
	default:
		log.Error("Request failed", logger.String("path", c.FullPath()), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong, please try again"})
	}
}
