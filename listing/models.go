package listing

import (
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/types"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSold      Status = "sold"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Listing offers an invoice token for sale on the marketplace.
type Listing struct {
	types.Entity
	ID          id.ListingID `json:"id"`
	TokenID     id.InvoiceID `json:"invoice_token_id"`
	Seller      string       `json:"seller"`
	Price       uint64       `json:"price"`
	ExpiryClock uint64       `json:"expiry_clock"`
	MinPurchase uint64       `json:"min_purchase"`
	MaxPurchase uint64       `json:"max_purchase"`
	Terms       string       `json:"terms,omitempty"`
	Status      Status       `json:"status"`
	ListedAt    uint64       `json:"listed_at"`
}

// Expired reports whether the listing can no longer be purchased at clock now.
func (l *Listing) Expired(now uint64) bool {
	return l.ExpiryClock <= now
}
