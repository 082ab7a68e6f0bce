package discount

import (
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/types"
)

// Curve is an issuer's early-payment discount schedule. The suggested rate
// grows with the time remaining until the due date, capped at MaxRateBps.
type Curve struct {
	types.Entity
	Issuer      string `json:"issuer"`
	BaseRateBps uint64 `json:"base_rate_bps"`
	MaxRateBps  uint64 `json:"max_rate_bps"`
	TimeFactor  uint64 `json:"time_factor"`
	Active      bool   `json:"active"`
}

// Proposal offers early payment of an invoice at a discount.
type Proposal struct {
	types.Entity
	ID              id.ProposalID `json:"id"`
	InvoiceID       id.InvoiceID  `json:"invoice_id"`
	Proposer        string        `json:"proposer"`
	Counterparty    string        `json:"counterparty"`
	DiscountRateBps uint64        `json:"discount_rate_bps"`
	ValidUntil      uint64        `json:"valid_until"`
	Accepted        bool          `json:"accepted"`
	AcceptedAt      uint64        `json:"accepted_at,omitempty"`
	ProposedAt      uint64        `json:"proposed_at"`
}
