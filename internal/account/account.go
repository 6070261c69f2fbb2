// Package account manages the seller's connected account on the payout
// rail: creation, requirement remediation, and bank-account rotation.
package account

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/rail"
)

// Platform defaults used to auto-fix requirements that need no user input.
const (
	// defaultMCC is the merchant category code for digital goods.
	defaultMCC = "5815"
	// defaultBusinessURL is the platform storefront filed for every seller.
	defaultBusinessURL = "https://granted.gg"
	// tosAcceptanceIP is the recorded platform IP for terms acceptance.
	tosAcceptanceIP = "127.0.0.1"
)

// autoFixable maps requirement keys the platform can satisfy without user
// input onto the account fields that satisfy them. Anything not listed
// here must be surfaced to the seller.
var autoFixable = map[string]func() map[string]string{
	"business_profile.mcc": func() map[string]string {
		return map[string]string{"business_profile[mcc]": defaultMCC}
	},
	"business_profile.url": func() map[string]string {
		return map[string]string{"business_profile[url]": defaultBusinessURL}
	},
	"tos_acceptance.date": func() map[string]string {
		return map[string]string{
			"tos_acceptance[date]": strconv.FormatInt(time.Now().Unix(), 10),
			"tos_acceptance[ip]":   tosAcceptanceIP,
		}
	},
}

// UserStore is the slice of the user repository this service needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	SetConnectedAccount(ctx context.Context, userID, accountRef string) error
}

// Service drives the connected-account lifecycle.
type Service struct {
	users UserStore
	rail  rail.Rail
	log   logger.Logger
}

// NewService creates an account service.
func NewService(users UserStore, railClient rail.Rail, log logger.Logger) *Service {
	return &Service{users: users, rail: railClient, log: log}
}

// Create opens the seller's connected account on the rail. It requires
// completed onboarding fields and a completed identity verification;
// any missing field blocks creation with a specific error.
func (s *Service) Create(ctx context.Context, userID, bankToken string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.ConnectedAccountRef != nil {
		return *user.ConnectedAccountRef, nil
	}
	if !user.IdentityVerified {
		return "", domain.Ineligible("identity verification must be completed first")
	}
	if err := validateOnboarding(user); err != nil {
		return "", err
	}

	accountRef, err := s.rail.CreateConnectedAccount(ctx, rail.Identity{
		Email:       user.Email,
		LegalName:   user.LegalName,
		DateOfBirth: user.DateOfBirth,
		Phone:       user.Phone,
		AddressLine: user.AddressLine,
		City:        user.City,
		PostalCode:  user.PostalCode,
		State:       user.State,
	}, bankToken)
	if err != nil {
		return "", fmt.Errorf("create connected account: %w", err)
	}

	if err := s.users.SetConnectedAccount(ctx, userID, accountRef); err != nil {
		// The rail account exists but the reference was not stored; the
		// next creation attempt returns the stored ref or recreates.
		return "", fmt.Errorf("store account ref %s: %w", accountRef, err)
	}

	return accountRef, nil
}

// validateOnboarding reports the first missing onboarding field.
func validateOnboarding(user *domain.User) error {
	required := []struct {
		field, value string
	}{
		{"legal_name", user.LegalName},
		{"date_of_birth", user.DateOfBirth},
		{"phone", user.Phone},
		{"address_line", user.AddressLine},
		{"city", user.City},
		{"postal_code", user.PostalCode},
		{"state", user.State},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &domain.ValidationError{Field: r.field, Message: "is required before creating a payout account"}
		}
	}
	return nil
}

// RemediationResult reports what remediation did and what remains.
type RemediationResult struct {
	PayoutsEnabled bool `json:"payouts_enabled"`
	// AutoFixed lists the requirements satisfied with platform defaults.
	AutoFixed []string `json:"auto_fixed,omitempty"`
	// NeedsInput lists the requirements that need the seller, e.g. the
	// SSN last four.
	NeedsInput []string `json:"needs_input,omitempty"`
}

// Remediate clears as many outstanding requirements as possible with
// platform defaults, then reports what still needs the seller. Auto-fix
// always runs before anything is surfaced to the user.
func (s *Service) Remediate(ctx context.Context, userID string) (*RemediationResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ConnectedAccountRef == nil {
		return nil, domain.Ineligible("no payout account is configured")
	}
	accountRef := *user.ConnectedAccountRef

	reqs, err := s.rail.RetrieveAccountRequirements(ctx, accountRef)
	if err != nil {
		return nil, fmt.Errorf("retrieve requirements: %w", err)
	}

	result := &RemediationResult{PayoutsEnabled: reqs.PayoutsEnabled}

	fields := map[string]string{}
	for _, missing := range reqs.Missing {
		if fill, ok := autoFixable[missing]; ok {
			for k, v := range fill() {
				fields[k] = v
			}
			result.AutoFixed = append(result.AutoFixed, missing)
			continue
		}
		result.NeedsInput = append(result.NeedsInput, missing)
	}

	if len(fields) > 0 {
		if err := s.rail.UpdateAccount(ctx, accountRef, fields); err != nil {
			return nil, fmt.Errorf("apply platform defaults: %w", err)
		}

		// Re-read: the auto-fix may have been enough to enable payouts.
		reqs, err = s.rail.RetrieveAccountRequirements(ctx, accountRef)
		if err != nil {
			return nil, fmt.Errorf("re-check requirements: %w", err)
		}
		result.PayoutsEnabled = reqs.PayoutsEnabled

		s.log.Info("Applied platform defaults to payout account",
			logger.String("user_id", userID),
			logger.Strings("auto_fixed", result.AutoFixed),
		)
	}

	return result, nil
}

// SubmitSSNLast4 forwards the seller-supplied SSN last four to the rail.
func (s *Service) SubmitSSNLast4(ctx context.Context, userID, last4 string) error {
	if len(last4) != 4 || strings.Trim(last4, "0123456789") != "" {
		return &domain.ValidationError{Field: "ssn_last_4", Message: "must be exactly four digits"}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.ConnectedAccountRef == nil {
		return domain.Ineligible("no payout account is configured")
	}

	if err := s.rail.UpdateAccount(ctx, *user.ConnectedAccountRef, map[string]string{
		"individual[ssn_last_4]": last4,
	}); err != nil {
		return fmt.Errorf("submit ssn last 4: %w", err)
	}
	return nil
}

// UpdateBankAccount rotates the seller's payout destination: tokenize the
// new details, attach the token as the new default, and only then delete
// the previous default. The old account is never removed before the new
// one is confirmed attached, so there is no window with zero valid
// destinations.
func (s *Service) UpdateBankAccount(ctx context.Context, userID, routing, accountNumber string) error {
	if strings.TrimSpace(routing) == "" {
		return &domain.ValidationError{Field: "routing_number", Message: "is required"}
	}
	if strings.TrimSpace(accountNumber) == "" {
		return &domain.ValidationError{Field: "account_number", Message: "is required"}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.ConnectedAccountRef == nil {
		return domain.Ineligible("no payout account is configured")
	}
	accountRef := *user.ConnectedAccountRef

	previous, err := s.rail.ListExternalAccounts(ctx, accountRef)
	if err != nil {
		return fmt.Errorf("list external accounts: %w", err)
	}

	token, err := s.rail.TokenizeBankAccount(ctx, routing, accountNumber, "individual")
	if err != nil {
		return fmt.Errorf("tokenize bank account: %w", err)
	}

	newRef, err := s.rail.AttachExternalAccount(ctx, accountRef, token)
	if err != nil {
		return fmt.Errorf("attach external account: %w", err)
	}

	for _, old := range previous {
		if old == newRef {
			continue
		}
		if err := s.rail.DeleteExternalAccount(ctx, accountRef, old); err != nil {
			// The new default is already attached; a stale destination is
			// harmless and can be cleaned up later.
			s.log.Warn("Failed to delete previous external account",
				logger.String("user_id", userID),
				logger.String("external_ref", old),
				logger.Error(err),
			)
		}
	}

	s.log.Info("Bank account updated",
		logger.String("user_id", userID),
		logger.String("external_ref", newRef),
	)
	return nil
}
