// Package capability declares the external collaborators the factoring engine
// consumes: token ownership, value transfer, role management, the chain
// registry and signature validation. The engine never implements these
// itself; callers inject concrete adapters at wiring time.
package capability

import (
	"context"

	"github.com/xraph/factoring/id"
)

// Role names checked through Access.
const (
	RoleIssuer   = "issuer"
	RoleVerifier = "verifier"
	RoleAdmin    = "admin"
	RoleOracle   = "oracle"
)

// Ownership is the registry of invoice token ownership.
type Ownership interface {
	OwnerOf(ctx context.Context, tokenID id.InvoiceID) (string, error)
	Transfer(ctx context.Context, tokenID id.InvoiceID, from, to string) error
}

// Payments moves settlement value between principals.
type Payments interface {
	Transfer(ctx context.Context, amount uint64, from, to string) error
}

// BalanceReporter is implemented by Payments adapters that can report a
// principal's spendable balance. When present, settlement pre-checks funds.
type BalanceReporter interface {
	BalanceOf(ctx context.Context, principal string) (uint64, error)
}

// Access answers role membership questions.
type Access interface {
	HasRole(ctx context.Context, role, principal string) (bool, error)
}

// ChainRegistry describes the chains that swaps may settle on.
type ChainRegistry interface {
	IsChainActive(ctx context.Context, chainID uint64) (bool, error)
	// BridgeAddress returns "" when the chain has no bridge.
	BridgeAddress(ctx context.Context, chainID uint64) (string, error)
}

// Signatures validates a verifier's signature over an invoice.
type Signatures interface {
	IsValid(ctx context.Context, invoiceID id.InvoiceID, documentHash, signature, signer string) (bool, error)
}

// AccessFunc is an adapter to use a plain function as Access.
type AccessFunc func(ctx context.Context, role, principal string) (bool, error)

// HasRole implements Access.
func (f AccessFunc) HasRole(ctx context.Context, role, principal string) (bool, error) {
	return f(ctx, role, principal)
}

// PaymentsFunc is an adapter to use a plain function as Payments.
type PaymentsFunc func(ctx context.Context, amount uint64, from, to string) error

// Transfer implements Payments.
func (f PaymentsFunc) Transfer(ctx context.Context, amount uint64, from, to string) error {
	return f(ctx, amount, from, to)
}

// SignaturesFunc is an adapter to use a plain function as Signatures.
type SignaturesFunc func(ctx context.Context, invoiceID id.InvoiceID, documentHash, signature, signer string) (bool, error)

// IsValid implements Signatures.
func (f SignaturesFunc) IsValid(ctx context.Context, invoiceID id.InvoiceID, documentHash, signature, signer string) (bool, error) {
	return f(ctx, invoiceID, documentHash, signature, signer)
}

// DenyAll grants no role to any principal.
var DenyAll Access = AccessFunc(func(context.Context, string, string) (bool, error) {
	return false, nil
})

// RejectAllSignatures treats every signature as invalid.
var RejectAllSignatures Signatures = SignaturesFunc(func(context.Context, id.InvoiceID, string, string, string) (bool, error) {
	return false, nil
})

// AcceptAnySignature treats every non-empty signature as valid. It is meant
// for development deployments only.
var AcceptAnySignature Signatures = SignaturesFunc(func(_ context.Context, _ id.InvoiceID, _, signature, _ string) (bool, error) {
	return signature != "", nil
})
