// Package payout implements withdrawal settlement: the staged flow that
// moves a seller's accumulated earnings out through the payout rail and
// then settles the ledger.
package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/calebhrenchir/granted.gg-sub001/internal/domain"
	"github.com/calebhrenchir/granted.gg-sub001/internal/logger"
	"github.com/calebhrenchir/granted.gg-sub001/internal/metrics"
	"github.com/calebhrenchir/granted.gg-sub001/internal/money"
	"github.com/calebhrenchir/granted.gg-sub001/internal/rail"
	"github.com/calebhrenchir/granted.gg-sub001/internal/repository"
)

// Receipt summarizes a completed withdrawal.
type Receipt struct {
	// GrossCents is the full amount drained from the ledger and moved to
	// the connected account.
	GrossCents int64 `json:"gross_cents"`
	// InstantFeeCents is the informational instant-payout fee; zero for
	// the standard method. The rail bills it, the ledger does not.
	InstantFeeCents int64 `json:"instant_fee_cents"`
	// NetCents is gross minus the instant fee.
	NetCents int64       `json:"net_cents"`
	Method   rail.Method `json:"method"`

	TransferRef string `json:"transfer_ref"`
	PayoutRef   string `json:"payout_ref,omitempty"`
	// PayoutPending is true when the bank payout failed after the
	// transfer succeeded; the rail retries it independently and the
	// withdrawal is still settled.
	PayoutPending bool `json:"payout_pending,omitempty"`
}

// UserStore is the slice of the user repository the orchestrator needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// SettlementStore is the ledger half of a withdrawal.
type SettlementStore interface {
	AcquireWithdrawalLock(ctx context.Context, userID string) (release func(), err error)
	EarningLinks(ctx context.Context, userID string) ([]repository.EarningLink, error)
	Settle(ctx context.Context, userID string, links []repository.EarningLink) error
}

// Service orchestrates withdrawals.
//
// Stage order is load-bearing: eligibility and account readiness are
// checked before any funds move; the external transfer is the durability
// boundary; the ledger settlement runs last and never shares a database
// transaction with a rail call.
type Service struct {
	users      UserStore
	settlement SettlementStore
	rail       rail.Rail
	// remediationURL is handed to sellers whose connected account still
	// has outstanding requirements.
	remediationURL string
	metrics        *metrics.Metrics
	log            logger.Logger
}

// NewService creates a payout service.
func NewService(
	users UserStore,
	settlement SettlementStore,
	railClient rail.Rail,
	remediationURL string,
	m *metrics.Metrics,
	log logger.Logger,
) *Service {
	return &Service{
		users:          users,
		settlement:     settlement,
		rail:           railClient,
		remediationURL: remediationURL,
		metrics:        m,
		log:            log,
	}
}

// Withdraw drains the user's available balance to their bank account.
//
// At most one withdrawal per user runs at a time: the whole flow holds a
// per-user advisory lock, and settlement additionally re-checks each
// link's earnings against the snapshot taken under the lock.
func (s *Service) Withdraw(ctx context.Context, userID string, method rail.Method) (*Receipt, error) {
	if !method.Valid() {
		return nil, &domain.ValidationError{Field: "method", Message: "must be standard or instant"}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkEligibility(user); err != nil {
		s.metrics.Withdrawals.WithLabelValues("ineligible").Inc()
		return nil, err
	}

	release, err := s.settlement.AcquireWithdrawalLock(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrWithdrawalInProgress) {
			s.metrics.Withdrawals.WithLabelValues("concurrent").Inc()
		}
		return nil, err
	}
	defer release()

	receipt, err := s.withdrawLocked(ctx, user, method)
	if err != nil {
		return nil, err
	}

	s.metrics.Withdrawals.WithLabelValues("settled").Inc()
	return receipt, nil
}

// checkEligibility rejects sellers who cannot withdraw, before any
// external call. Each rejection names the unmet requirement.
func (s *Service) checkEligibility(user *domain.User) error {
	if user.Frozen {
		return domain.Ineligible("account is frozen; payouts are disabled")
	}
	if !user.IdentityVerified {
		return &domain.Ineligibility{
			Reason:      "identity verification is not complete",
			Remediation: s.remediationURL,
		}
	}
	if user.ConnectedAccountRef == nil {
		return &domain.Ineligibility{
			Reason:      "no payout account is configured",
			Remediation: s.remediationURL,
		}
	}
	return nil
}

func (s *Service) withdrawLocked(ctx context.Context, user *domain.User, method rail.Method) (*Receipt, error) {
	// Snapshot taken under the lock; it is both the balance check and the
	// settlement plan.
	links, err := s.settlement.EarningLinks(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("snapshot earnings: %w", err)
	}

	var grossCents int64
	for _, l := range links {
		grossCents += money.ToCents(l.Earnings)
	}
	if grossCents <= 0 {
		return nil, domain.Ineligible("no balance available to withdraw")
	}

	accountRef := *user.ConnectedAccountRef

	// Account readiness. Still no funds movement.
	reqs, err := s.rail.RetrieveAccountRequirements(ctx, accountRef)
	if err != nil {
		return nil, fmt.Errorf("check account readiness: %w", err)
	}
	if !reqs.PayoutsEnabled {
		return nil, &domain.Ineligibility{
			Reason:      "payout account is not ready",
			Remediation: s.remediationURL,
			Missing:     reqs.Missing,
		}
	}

	// Transfer: pool -> connected account. This is the durability
	// boundary. A clean failure aborts with nothing moved; an ambiguous
	// one must not settle and must not be reported as a clean failure.
	transferRef, err := s.rail.CreateTransfer(ctx, accountRef, grossCents, method)
	if err != nil {
		if rail.IsAmbiguous(err) {
			s.metrics.Withdrawals.WithLabelValues("ambiguous").Inc()
			s.log.Error("Transfer state unknown after timeout",
				logger.String("user_id", user.ID),
				logger.Int64("gross_cents", grossCents),
				logger.Error(err),
			)
			return nil, fmt.Errorf("%w: %w", domain.ErrTransferStateUnknown, err)
		}
		s.metrics.Withdrawals.WithLabelValues("transfer_failed").Inc()
		return nil, fmt.Errorf("create transfer: %w", err)
	}

	receipt := &Receipt{
		GrossCents:  grossCents,
		NetCents:    grossCents,
		Method:      method,
		TransferRef: transferRef,
	}
	if method == rail.MethodInstant {
		receipt.InstantFeeCents = money.InstantPayoutFee(grossCents)
		receipt.NetCents = grossCents - receipt.InstantFeeCents
	}

	// Payout: connected account -> bank. Failure here does not roll back
	// the transfer; the funds sit on the seller's rail balance and the
	// payout is a recoverable follow-up. Log loudly and keep going.
	payoutRef, err := s.rail.CreatePayout(ctx, accountRef, receipt.NetCents, method)
	if err != nil {
		receipt.PayoutPending = true
		s.metrics.PayoutFailures.Inc()
		s.log.Error("Payout failed after successful transfer; settlement continues",
			logger.String("user_id", user.ID),
			logger.String("transfer_ref", transferRef),
			logger.Int64("net_cents", receipt.NetCents),
			logger.Error(err),
		)
	} else {
		receipt.PayoutRef = payoutRef
	}

	// Ledger settlement: all links zeroed and withdraw activities written
	// in one transaction. Failing here is the severe case: money already
	// left the pool.
	if err := s.settlement.Settle(ctx, user.ID, links); err != nil {
		s.metrics.SettlementFailures.Inc()
		s.log.Error("CRITICAL: ledger settlement failed after successful transfer; manual reconciliation required",
			logger.String("user_id", user.ID),
			logger.String("transfer_ref", transferRef),
			logger.Int64("gross_cents", grossCents),
			logger.Bool("critical", true),
			logger.Error(err),
		)
		return nil, fmt.Errorf("settle ledger after transfer %s: %w", transferRef, err)
	}

	s.log.Info("Withdrawal complete",
		logger.String("user_id", user.ID),
		logger.Int64("gross_cents", grossCents),
		logger.Int64("net_cents", receipt.NetCents),
		logger.String("method", string(method)),
		logger.String("transfer_ref", transferRef),
		logger.Bool("payout_pending", receipt.PayoutPending),
	)
	return receipt, nil
}
