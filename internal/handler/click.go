package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/metrics"
	"github.com/calebhrenchir/granted.gg-sub001/internal/repository"
)

// ClickHandler records link views on the public endpoint.
type ClickHandler struct {
	links      *repository.LinkRepository
	activities *repository.ActivityRepository
	metrics    *metrics.Metrics
	log        logger.Logger
}

// NewClickHandler creates a ClickHandler.
func NewClickHandler(
	links *repository.LinkRepository,
	activities *repository.ActivityRepository,
	m *metrics.Metrics,
	log logger.Logger,
) *ClickHandler {
	return &ClickHandler{links: links, activities: activities, metrics: m, log: log}
}

// Record appends a click activity for the link behind the slug. The
// activity insert and the counter increment commit together; on failure
// nothing is recorded and the client may retry.
func (h *ClickHandler) Record(c *gin.Context) {
	link, err := h.links.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if _, err := h.activities.RecordClick(c.Request.Context(), link.ID); err != nil {
		respondError(c, h.log, err)
		return
	}

	h.metrics.ClicksRecorded.Inc()
	c.Status(http.StatusNoContent)
}
