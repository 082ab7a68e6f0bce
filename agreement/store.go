package agreement

import (
	"context"

	"github.com/xraph/factoring/id"
)

type Store interface {
	CreateAgreement(ctx context.Context, a *Agreement) error
	GetAgreement(ctx context.Context, agreementID id.AgreementID) (*Agreement, error)
	ListAgreements(ctx context.Context, opts ListOpts) ([]*Agreement, error)
	UpdateAgreement(ctx context.Context, a *Agreement) error
}

type ListOpts struct {
	Buyer     string
	Seller    string
	ListingID id.ListingID
	Status    Status
	// SettlesBefore selects agreements with SettlementClock < SettlesBefore when non-zero.
	SettlesBefore uint64
	Limit         int
	Offset        int
}
