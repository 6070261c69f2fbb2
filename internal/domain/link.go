package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinPriceDollars is the lowest price a link may be sold for.
var MinPriceDollars = decimal.NewFromInt(5)

// Link is a priced, shareable unit of content with cached aggregate
// counters. TotalEarnings/TotalClicks/TotalSales are a materialized view
// over the link's activities: they are mutated only inside the activity
// recorder's and the payout settlement's transactions, and can be rebuilt
// from the activity history at any time.
type Link struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Slug    string `json:"slug"`
	Name    string `json:"name,omitempty"`

	// Price is the base price in dollars, before the buyer surcharge.
	Price decimal.Decimal `json:"price"`

	// TotalEarnings is the seller-net dollars accumulated since the last
	// withdrawal. It is never decremented except by a full-zero settlement.
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalClicks   int64           `json:"total_clicks"`
	TotalSales    int64           `json:"total_sales"`

	Deleted  bool `json:"deleted"`
	Disabled bool `json:"disabled"`
	Archived bool `json:"archived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sellable reports whether the link can currently be purchased.
func (l *Link) Sellable() bool {
	return !l.Deleted && !l.Disabled && !l.Archived
}

// LinkTotals holds the aggregate counters derived from a link's activity
// history, as produced by reconciliation.
type LinkTotals struct {
	TotalClicks   int64           `json:"total_clicks"`
	TotalSales    int64           `json:"total_sales"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
}
