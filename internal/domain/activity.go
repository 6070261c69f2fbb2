// Package domain defines the core entities of the earnings ledger.
package domain

import "time"

// ActivityType identifies the kind of ledger entry.
type ActivityType string

const (
	// ActivityClick records a view of a link. Carries no amount.
	ActivityClick ActivityType = "click"
	// ActivityPurchase records a confirmed sale. Amount is the base price
	// in cents (gross minus buyer surcharge); PlatformFee is the seller's
	// fee percent snapshotted at purchase time.
	ActivityPurchase ActivityType = "purchase"
	// ActivityWithdraw records a settled payout. Amount is the seller-net
	// cents paid out for one link.
	ActivityWithdraw ActivityType = "withdraw"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityClick, ActivityPurchase, ActivityWithdraw:
		return true
	}
	return false
}

// Activity is an immutable, append-only ledger entry. Rows are inserted
// once and never updated or deleted; corrections happen by appending.
type Activity struct {
	ID     string       `json:"id"`
	LinkID string       `json:"link_id"`
	Type   ActivityType `json:"type"`

	// AmountCents is nil for clicks, required for purchases and withdrawals.
	AmountCents *int64 `json:"amount_cents,omitempty"`
	// PlatformFee is the fee percent snapshot, set only on purchases.
	PlatformFee *int `json:"platform_fee,omitempty"`
	// ExternalRef is the payment-rail transaction reference, set only on
	// purchases. Unique where present, which makes purchase recording
	// idempotent per checkout session.
	ExternalRef *string `json:"external_ref,omitempty"`
	// BuyerEmail is set only on purchases.
	BuyerEmail *string `json:"buyer_email,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
