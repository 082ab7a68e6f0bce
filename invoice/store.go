package invoice

import (
	"context"

	"github.com/xraph/factoring/id"
)

// Store persists invoices and their share balances.
type Store interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error)
	ListInvoices(ctx context.Context, opts ListOpts) ([]*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error

	// GetHolding returns the balance of holder, or zero when absent.
	GetHolding(ctx context.Context, invID id.InvoiceID, holder string) (uint64, error)
	// SetHolding writes a balance. Zero deletes the row.
	SetHolding(ctx context.Context, invID id.InvoiceID, holder string, shares uint64) error
	ListHoldings(ctx context.Context, invID id.InvoiceID) ([]*Holding, error)
}

type ListOpts struct {
	Issuer   string
	Payer    string
	Verified *bool
	Limit    int
	Offset   int
}
