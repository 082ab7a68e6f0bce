package discount

import (
	"context"

	"github.com/xraph/factoring/id"
)

type Store interface {
	PutCurve(ctx context.Context, c *Curve) error
	GetCurve(ctx context.Context, issuer string) (*Curve, error)

	CreateProposal(ctx context.Context, p *Proposal) error
	GetProposal(ctx context.Context, proposalID id.ProposalID) (*Proposal, error)
	ListProposals(ctx context.Context, invID id.InvoiceID) ([]*Proposal, error)
	UpdateProposal(ctx context.Context, p *Proposal) error
}
