package main

import (
	"context"

	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/capability/mock"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/plugin"
)

// devKit holds the in-process collaborators the daemon runs against.
type devKit struct {
	access   *mock.Access
	owners   *mock.Ownership
	payments *mock.Payments
	chains   *mock.Chains

	signatures capability.Signatures
}

func newDevKit(cfg Config) *devKit {
	d := &devKit{
		access:   mock.NewAccess(),
		owners:   mock.NewOwnership(),
		payments: mock.NewPayments(),
		chains:   mock.NewChains(append([]uint64{cfg.LocalChainID}, cfg.Chains...)...),

		signatures: capability.AcceptAnySignature,
	}
	grants := map[string][]string{
		capability.RoleIssuer:   cfg.Issuers,
		capability.RoleVerifier: cfg.Verifiers,
		capability.RoleAdmin:    cfg.Admins,
		capability.RoleOracle:   cfg.Oracles,
	}
	for role, principals := range grants {
		for _, p := range principals {
			d.access.Grant(p, role)
		}
	}
	for principal, amount := range cfg.Balances {
		d.payments.Fund(principal, amount)
	}
	for chainID, bridge := range cfg.Bridges {
		d.chains.SetBridge(chainID, bridge)
	}
	return d
}

// ownershipSync registers each tokenized invoice's token with its issuer so
// it can be listed on the marketplace.
func (d *devKit) ownershipSync() plugin.Plugin {
	return &ownershipSync{owners: d.owners}
}

type ownershipSync struct {
	owners *mock.Ownership
}

var _ plugin.OnInvoiceTokenized = (*ownershipSync)(nil)

func (s *ownershipSync) Name() string { return "dev-ownership-sync" }

func (s *ownershipSync) OnInvoiceTokenized(_ context.Context, inv *invoice.Invoice) error {
	s.owners.SetOwner(inv.ID, inv.Issuer)
	return nil
}
