package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/metrics"
	"github.com/calebhrenchir/granted.gg-sub001/internal/money"
	"github.com/calebhrenchir/granted.gg-sub001/internal/rail"
	"github.com/calebhrenchir/granted.gg-sub001/internal/repository"
)

// Metadata keys stamped onto checkout sessions so confirmation can rebuild
// the purchase without a second price lookup.
const (
	metaLinkID     = "link_id"
	metaBaseCents  = "base_cents"
	metaFeePercent = "fee_percent"
)

// CheckoutHandler bridges the hosted checkout to the activity recorder.
type CheckoutHandler struct {
	links      *repository.LinkRepository
	users      *repository.UserRepository
	activities *repository.ActivityRepository
	rail       rail.Rail
	metrics    *metrics.Metrics
	log        logger.Logger
}

// NewCheckoutHandler creates a CheckoutHandler.
func NewCheckoutHandler(
	links *repository.LinkRepository,
	users *repository.UserRepository,
	activities *repository.ActivityRepository,
	railClient rail.Rail,
	m *metrics.Metrics,
	log logger.Logger,
) *CheckoutHandler {
	return &CheckoutHandler{
		links:      links,
		users:      users,
		activities: activities,
		rail:       railClient,
		metrics:    m,
		log:        log,
	}
}

type createCheckoutRequest struct {
	SuccessURL string `binding:"required,url" json:"success_url"`
	CancelURL  string `binding:"required,url" json:"cancel_url"`
}

// Create opens a hosted checkout session for a link. The buyer is charged
// the base price plus their half of the platform fee; the split inputs are
// stamped into the session metadata for confirmation.
func (h *CheckoutHandler) Create(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()

	link, err := h.links.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !link.Sellable() {
		c.JSON(http.StatusGone, gin.H{"error": "link is no longer for sale"})
		return
	}

	owner, err := h.users.GetByID(ctx, link.OwnerID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if owner.Frozen {
		c.JSON(http.StatusGone, gin.H{"error": "link is no longer for sale"})
		return
	}

	feePercent := owner.FeePercent()
	baseCents := money.ToCents(link.Price)
	totalCents := money.PriceWithBuyerSurcharge(baseCents, feePercent)

	sessionRef, err := h.rail.CreateCheckout(ctx, totalCents, req.SuccessURL, req.CancelURL, map[string]string{
		metaLinkID:     link.ID,
		metaBaseCents:  strconv.FormatInt(baseCents, 10),
		metaFeePercent: strconv.Itoa(feePercent),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_ref": sessionRef,
		"total_cents": totalCents,
	})
}

// Confirm retrieves a checkout session and, if it is paid, records the
// purchase. The external-ref unique index makes this idempotent: a
// retried confirmation of an already-recorded session returns 200 without
// crediting the seller twice.
func (h *CheckoutHandler) Confirm(c *gin.Context) {
	ctx := c.Request.Context()
	sessionRef := c.Param("session")

	checkout, err := h.rail.RetrieveCheckout(ctx, sessionRef)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !checkout.Paid {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment not completed"})
		return
	}

	in, err := purchaseFromCheckout(checkout)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	activity, err := h.activities.RecordPurchase(ctx, *in)
	if errors.Is(err, domain.ErrDuplicateRef) {
		h.metrics.PurchaseDuplicates.Inc()
		c.JSON(http.StatusOK, gin.H{"status": "already recorded"})
		return
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.metrics.PurchasesRecorded.Inc()
	c.JSON(http.StatusCreated, activity)
}

// purchaseFromCheckout rebuilds the recorder input from the session
// metadata stamped at checkout creation.
func purchaseFromCheckout(checkout *rail.Checkout) (*repository.PurchaseInput, error) {
	linkID := checkout.Metadata[metaLinkID]
	if linkID == "" {
		return nil, &domain.ValidationError{Field: metaLinkID, Message: "missing from checkout metadata"}
	}

	baseCents, err := strconv.ParseInt(checkout.Metadata[metaBaseCents], 10, 64)
	if err != nil {
		return nil, &domain.ValidationError{Field: metaBaseCents, Message: "missing from checkout metadata"}
	}

	feePercent, err := strconv.Atoi(checkout.Metadata[metaFeePercent])
	if err != nil {
		return nil, &domain.ValidationError{Field: metaFeePercent, Message: "missing from checkout metadata"}
	}

	return &repository.PurchaseInput{
		LinkID:          linkID,
		BaseAmountCents: baseCents,
		FeePercent:      feePercent,
		ExternalRef:     checkout.Ref,
		BuyerEmail:      checkout.BuyerEmail,
	}, nil
}
