package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the service.
var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateRef is returned when a purchase activity with the same
	// external payment reference already exists.
	ErrDuplicateRef = errors.New("external reference already recorded")

	// ErrWithdrawalInProgress is returned when another withdrawal for the
	// same user currently holds the settlement lock.
	ErrWithdrawalInProgress = errors.New("a withdrawal for this user is already in progress")

	// ErrBalanceChanged is returned when a link's earnings changed between
	// the balance read and the settlement write; the settlement transaction
	// rolls back and the caller may retry.
	ErrBalanceChanged = errors.New("balance changed during settlement")

	// ErrTransferStateUnknown is returned when the external transfer call
	// timed out ambiguously. Settlement must not proceed; the case needs
	// manual reconciliation against the rail's records.
	ErrTransferStateUnknown = errors.New("transfer state unknown, manual reconciliation required")

	// ErrNothingToSettle is returned when a settlement is attempted over an
	// empty earnings snapshot. The orchestrator rejects zero balances before
	// any external call, so seeing this means a caller skipped that check.
	ErrNothingToSettle = errors.New("nothing to settle")
)

// Ineligibility explains why a withdrawal (or account operation) was
// rejected before any external call. Reason is safe to show to the user;
// Remediation, when set, points at the action that unblocks the seller.
type Ineligibility struct {
	Reason      string
	Remediation string
	// Missing lists the payout-rail requirements still outstanding, when
	// the rail reported them.
	Missing []string
}

func (e *Ineligibility) Error() string {
	return e.Reason
}

// Ineligible builds an Ineligibility error with a formatted reason.
func Ineligible(format string, args ...any) *Ineligibility {
	return &Ineligibility{Reason: fmt.Sprintf(format, args...)}
}

// AsIneligibility unwraps err into an *Ineligibility if it is one.
func AsIneligibility(err error) (*Ineligibility, bool) {
	var in *Ineligibility
	if errors.As(err, &in) {
		return in, true
	}
	return nil, false
}

// ValidationError marks user-correctable input problems. No storage or
// external calls happen once one is raised.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
