package invoice

import (
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/types"
)

// Invoice is a receivable issued by a supplier against a payer. Once verified
// it can be tokenized into fungible shares held by any principal.
type Invoice struct {
	types.Entity
	ID            id.InvoiceID `json:"id"`
	Number        string       `json:"invoice_number"`
	Issuer        string       `json:"issuer"`
	Payer         string       `json:"payer"`
	Amount        uint64       `json:"amount"`
	DueDate       uint64       `json:"due_date"`
	DocumentHash  string       `json:"document_hash"`
	FractionCount uint64       `json:"fraction_count"`
	TotalSupply   uint64       `json:"total_supply"`
	Verified      bool         `json:"verified"`
	VerifiedAt    uint64       `json:"verified_at,omitempty"`
	Paid          bool         `json:"paid"`
	PaidAt        uint64       `json:"paid_at,omitempty"`
	IssuedAt      uint64       `json:"issued_at"`
}

// Tokenized reports whether shares have been minted for the invoice.
func (i *Invoice) Tokenized() bool {
	return i.FractionCount > 0
}

// Holding is a share balance of one principal in one invoice. A zero balance
// is never stored.
type Holding struct {
	InvoiceID id.InvoiceID `json:"invoice_id"`
	Holder    string       `json:"holder"`
	Shares    uint64       `json:"shares"`
}
