// Package rail defines the contract this service consumes from the
// external payment/payout processor. The core never depends on a concrete
// provider's client types; tests substitute a deterministic fake.
package rail

import (
	"context"
	"errors"
	"fmt"
)

// Method selects how a payout reaches the seller's bank account.
type Method string

const (
	// MethodStandard is the default multi-day payout.
	MethodStandard Method = "standard"
	// MethodInstant is the fee-bearing instant payout.
	MethodInstant Method = "instant"
)

// Valid reports whether m is a known payout method.
func (m Method) Valid() bool {
	return m == MethodStandard || m == MethodInstant
}

// Checkout is the state of a hosted checkout session.
type Checkout struct {
	Ref         string
	Paid        bool
	AmountCents int64
	// BuyerEmail is collected by the hosted checkout page.
	BuyerEmail string
	Metadata   map[string]string
}

// AccountRequirements is the payout readiness of a connected account.
type AccountRequirements struct {
	PayoutsEnabled bool
	// Missing lists the requirement keys the rail still needs, e.g.
	// "external_account" or "individual.ssn_last_4".
	Missing []string
}

// Identity carries the seller fields needed to open a connected account.
type Identity struct {
	Email       string
	LegalName   string
	DateOfBirth string
	Phone       string
	AddressLine string
	City        string
	PostalCode  string
	State       string
}

// Rail is the payment/payout processor boundary.
type Rail interface {
	// CreateCheckout opens a hosted checkout session for the given total
	// (buyer surcharge included) and returns the session reference.
	CreateCheckout(ctx context.Context, amountCents int64, successURL, cancelURL string, metadata map[string]string) (string, error)
	// RetrieveCheckout fetches the session's payment state.
	RetrieveCheckout(ctx context.Context, sessionRef string) (*Checkout, error)

	// CreateConnectedAccount opens the seller's account on the rail.
	CreateConnectedAccount(ctx context.Context, identity Identity, bankToken string) (string, error)
	// UpdateAccount patches fields on a connected account (requirement
	// remediation: platform defaults or user-supplied values like the
	// SSN last four).
	UpdateAccount(ctx context.Context, accountRef string, fields map[string]string) error
	// RetrieveAccountRequirements reports payout readiness.
	RetrieveAccountRequirements(ctx context.Context, accountRef string) (*AccountRequirements, error)

	// CreateTransfer moves funds from the platform pool to the connected
	// account. Never auto-retried: an ambiguous failure must surface.
	CreateTransfer(ctx context.Context, accountRef string, amountCents int64, method Method) (string, error)
	// CreatePayout pushes transferred funds to the seller's bank account.
	CreatePayout(ctx context.Context, accountRef string, amountCents int64, method Method) (string, error)

	// TokenizeBankAccount turns raw bank details into a single-use token.
	TokenizeBankAccount(ctx context.Context, routing, account, holderType string) (string, error)
	// AttachExternalAccount attaches a tokenized bank account as the new
	// default payout destination and returns its reference.
	AttachExternalAccount(ctx context.Context, accountRef, bankToken string) (string, error)
	// ListExternalAccounts returns the references of the account's payout
	// destinations, default first.
	ListExternalAccounts(ctx context.Context, accountRef string) ([]string, error)
	// DeleteExternalAccount removes a payout destination.
	DeleteExternalAccount(ctx context.Context, accountRef, externalRef string) error
}

// Error is a structured failure from the rail's API.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("rail error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("rail error (%d): %s", e.StatusCode, e.Message)
}

// IsAmbiguous reports whether err leaves the remote state unknown: the
// request may or may not have been applied. Funds-moving callers must not
// treat such an error as a clean failure.
func IsAmbiguous(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
