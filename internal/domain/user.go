package domain

import "time"

// DefaultPlatformFeePercent applies when a seller has no fee override.
const DefaultPlatformFeePercent = 20

// User is a seller. Identity issuance (login, OAuth) belongs to the auth
// service; this service only consumes the stable user id.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	// PlatformFeePercent overrides the default platform fee for this
	// seller. Nil means DefaultPlatformFeePercent. The effective percent
	// is snapshotted onto each purchase activity, so changing it never
	// rewrites history.
	PlatformFeePercent *int `json:"platform_fee_percent,omitempty"`

	// ConnectedAccountRef is the seller's account on the payout rail.
	// Nil until onboarding completes.
	ConnectedAccountRef *string `json:"connected_account_ref,omitempty"`
	// VerificationSessionRef tracks the external identity-verification
	// session, if one was started.
	VerificationSessionRef *string `json:"verification_session_ref,omitempty"`
	IdentityVerified       bool    `json:"identity_verified"`

	// Frozen disables payouts and new sales for this seller.
	Frozen bool `json:"frozen"`

	// Onboarding fields required before a connected account can be created.
	LegalName   string `json:"legal_name,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Phone       string `json:"phone,omitempty"`
	AddressLine string `json:"address_line,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	State       string `json:"state,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FeePercent returns the seller's effective platform fee percent.
func (u *User) FeePercent() int {
	if u.PlatformFeePercent != nil {
		return *u.PlatformFeePercent
	}
	return DefaultPlatformFeePercent
}
