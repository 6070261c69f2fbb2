package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calebhrenchir/granted.gg-sub001/internal/account"
	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/middleware"
	"github.com/calebhrenchir/granted.gg-sub001/internal/repository"
)

// AccountHandler serves onboarding and connected-account management.
type AccountHandler struct {
	users   *repository.UserRepository
	account *account.Service
	log     logger.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(users *repository.UserRepository, accountSvc *account.Service, log logger.Logger) *AccountHandler {
	return &AccountHandler{users: users, account: accountSvc, log: log}
}

type onboardingRequest struct {
	LegalName   string `binding:"required" json:"legal_name"`
	DateOfBirth string `binding:"required" json:"date_of_birth"`
	Phone       string `binding:"required" json:"phone"`
	AddressLine string `binding:"required" json:"address_line"`
	City        string `binding:"required" json:"city"`
	PostalCode  string `binding:"required" json:"postal_code"`
	State       string `binding:"required" json:"state"`
}

// UpdateOnboarding stores the identity fields required before the
// connected account can be created.
func (h *AccountHandler) UpdateOnboarding(c *gin.Context) {
	var req onboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	user := &domain.User{
		ID:          middleware.UserID(c),
		LegalName:   req.LegalName,
		DateOfBirth: req.DateOfBirth,
		Phone:       req.Phone,
		AddressLine: req.AddressLine,
		City:        req.City,
		PostalCode:  req.PostalCode,
		State:       req.State,
	}
	if err := h.users.UpdateOnboarding(c.Request.Context(), user); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createAccountRequest struct {
	BankToken string `json:"bank_token"`
}

// Create opens the seller's connected account on the payout rail.
func (h *AccountHandler) Create(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	accountRef, err := h.account.Create(c.Request.Context(), middleware.UserID(c), req.BankToken)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account_ref": accountRef})
}

// Remediate auto-fixes outstanding requirements with platform defaults
// and reports what still needs seller input.
func (h *AccountHandler) Remediate(c *gin.Context) {
	result, err := h.account.Remediate(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type ssnRequest struct {
	SSNLast4 string `binding:"required" json:"ssn_last_4"`
}

// SubmitSSN forwards the seller-supplied SSN last four to the rail.
func (h *AccountHandler) SubmitSSN(c *gin.Context) {
	var req ssnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	if err := h.account.SubmitSSNLast4(c.Request.Context(), middleware.UserID(c), req.SSNLast4); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bankAccountRequest struct {
	RoutingNumber string `binding:"required" json:"routing_number"`
	AccountNumber string `binding:"required" json:"account_number"`
}

// UpdateBank rotates the seller's payout destination.
func (h *AccountHandler) UpdateBank(c *gin.Context) {
	var req bankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	err := h.account.UpdateBankAccount(c.Request.Context(), middleware.UserID(c), req.RoutingNumber, req.AccountNumber)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
