package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/ledger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/middleware"
	"github.com/calebhrenchir/granted.gg-sub001/internal/money"
	"github.com/calebhrenchir/granted.gg-sub001/internal/repository"
)

// LinkHandler serves link CRUD and the public link view.
type LinkHandler struct {
	links  *repository.LinkRepository
	users  *repository.UserRepository
	ledger *ledger.Service
	log    logger.Logger
}

// NewLinkHandler creates a LinkHandler.
func NewLinkHandler(
	links *repository.LinkRepository,
	users *repository.UserRepository,
	ledgerSvc *ledger.Service,
	log logger.Logger,
) *LinkHandler {
	return &LinkHandler{links: links, users: users, ledger: ledgerSvc, log: log}
}

type createLinkRequest struct {
	Slug  string          `binding:"required" json:"slug"`
	Name  string          `json:"name"`
	Price decimal.Decimal `binding:"required" json:"price"`
}

// Create publishes a new link for the authenticated seller.
func (h *LinkHandler) Create(c *gin.Context) {
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	link := &domain.Link{
		OwnerID: middleware.UserID(c),
		Slug:    req.Slug,
		Name:    req.Name,
		Price:   req.Price,
	}
	if err := h.links.Create(c.Request.Context(), link); err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info("Link created",
		logger.String("link_id", link.ID),
		logger.String("slug", link.Slug),
	)
	c.JSON(http.StatusCreated, link)
}

// GetBySlug serves the public buyer view of a link: the base price plus
// the buyer's half of the platform fee, as the checkout will charge it.
func (h *LinkHandler) GetBySlug(c *gin.Context) {
	link, err := h.links.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !link.Sellable() {
		c.JSON(http.StatusGone, gin.H{"error": "link is no longer for sale"})
		return
	}

	owner, err := h.users.GetByID(c.Request.Context(), link.OwnerID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	baseCents := money.ToCents(link.Price)
	totalCents := money.PriceWithBuyerSurcharge(baseCents, owner.FeePercent())

	c.JSON(http.StatusOK, gin.H{
		"slug":        link.Slug,
		"name":        link.Name,
		"price":       link.Price,
		"total_cents": totalCents,
	})
}

// List returns the authenticated seller's links with their aggregates.
func (h *LinkHandler) List(c *gin.Context) {
	links, err := h.links.ListByOwner(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"links": links,
		"count": len(links),
	})
}

// Delete soft-deletes a link. Its activities and earnings survive.
func (h *LinkHandler) Delete(c *gin.Context) {
	err := h.links.SoftDelete(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Recompute re-derives a link's aggregates from its activity history and
// reports any drift that was repaired.
func (h *LinkHandler) Recompute(c *gin.Context) {
	link, err := h.links.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if link.OwnerID != middleware.UserID(c) {
		respondError(c, h.log, domain.ErrNotFound)
		return
	}

	report, err := h.ledger.Reconcile(c.Request.Context(), link.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
