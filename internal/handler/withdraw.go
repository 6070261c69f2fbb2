package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calebhrenchir/granted.gg-sub001/internal/ledger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/middleware"
	"github.com/calebhrenchir/granted.gg-sub001/internal/money"
	"github.com/calebhrenchir/granted.gg-sub001/internal/payout"
	"github.com/calebhrenchir/granted.gg-sub001/internal/rail"
)

// WithdrawHandler serves balance queries and withdrawals.
type WithdrawHandler struct {
	ledger *ledger.Service
	payout *payout.Service
	log    logger.Logger
}

// NewWithdrawHandler creates a WithdrawHandler.
func NewWithdrawHandler(ledgerSvc *ledger.Service, payoutSvc *payout.Service, log logger.Logger) *WithdrawHandler {
	return &WithdrawHandler{ledger: ledgerSvc, payout: payoutSvc, log: log}
}

// Balance returns the seller's withdrawable balance, with the instant-fee
// preview the withdrawal screen displays. Display and settlement use the
// same formula.
func (h *WithdrawHandler) Balance(c *gin.Context) {
	balance, err := h.ledger.AvailableBalance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	cents := money.ToCents(balance)
	body := gin.H{
		"balance":       balance,
		"balance_cents": cents,
	}
	if cents > 0 {
		fee := money.InstantPayoutFee(cents)
		body["instant_fee_cents"] = fee
		body["instant_net_cents"] = cents - fee
	}

	c.JSON(http.StatusOK, body)
}

type withdrawRequest struct {
	Method rail.Method `json:"method"`
}

// Withdraw settles the seller's full available balance to their bank
// account using the requested payout method.
func (h *WithdrawHandler) Withdraw(c *gin.Context) {
	var req withdrawRequest
	// An empty body means the default method; only reject bodies that were
	// actually sent and failed to parse.
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.Method == "" {
		req.Method = rail.MethodStandard
	}

	receipt, err := h.payout.Withdraw(c.Request.Context(), middleware.UserID(c), req.Method)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}
