package agreement

import (
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusDefaulted Status = "defaulted"
)

// Agreement is a buyer's commitment to purchase a listed invoice token by a
// settlement deadline.
type Agreement struct {
	types.Entity
	ID              id.AgreementID `json:"id"`
	ListingID       id.ListingID   `json:"listing_id"`
	TokenID         id.InvoiceID   `json:"invoice_token_id"`
	Buyer           string         `json:"buyer"`
	Seller          string         `json:"seller"`
	PurchaseAmount  uint64         `json:"purchase_amount"`
	AgreedPrice     uint64         `json:"agreed_price"`
	PlatformFee     uint64         `json:"platform_fee"`
	AgreementClock  uint64         `json:"agreement_clock"`
	SettlementClock uint64         `json:"settlement_clock"`
	Status          Status         `json:"status"`
	Terms           string         `json:"terms,omitempty"`
	CompletedAt     uint64         `json:"completed_at,omitempty"`
}

// Overdue reports whether the settlement deadline has passed at clock now.
func (a *Agreement) Overdue(now uint64) bool {
	return now > a.SettlementClock
}
