// Package plugin provides an extensible plugin system for Factoring.
// Plugins hook into lifecycle events and are notified after the state change
// they describe has been committed.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/factoring/agreement"
	"github.com/xraph/factoring/discount"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/listing"
	"github.com/xraph/factoring/pool"
	"github.com/xraph/factoring/swap"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Invoice ledger hooks
// ──────────────────────────────────────────────────

// OnInvoiceCreated is called when an invoice is issued.
type OnInvoiceCreated interface {
	Plugin
	OnInvoiceCreated(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceVerified is called when an invoice passes verification.
type OnInvoiceVerified interface {
	Plugin
	OnInvoiceVerified(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceTokenized is called when an invoice is split into shares.
type OnInvoiceTokenized interface {
	Plugin
	OnInvoiceTokenized(ctx context.Context, inv *invoice.Invoice) error
}

// OnSharesTransferred is called after shares move between holders.
type OnSharesTransferred interface {
	Plugin
	OnSharesTransferred(ctx context.Context, invID id.InvoiceID, from, to string, amount uint64) error
}

// OnInvoicePaid is called when the payer settles an invoice.
type OnInvoicePaid interface {
	Plugin
	OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error
}

// ──────────────────────────────────────────────────
// Marketplace hooks
// ──────────────────────────────────────────────────

// OnListingCreated is called when a token is listed for sale.
type OnListingCreated interface {
	Plugin
	OnListingCreated(ctx context.Context, l *listing.Listing) error
}

// OnListingCancelled is called when a seller withdraws a listing.
type OnListingCancelled interface {
	Plugin
	OnListingCancelled(ctx context.Context, l *listing.Listing) error
}

// OnListingExpired is called when the sweeper expires a listing.
type OnListingExpired interface {
	Plugin
	OnListingExpired(ctx context.Context, l *listing.Listing) error
}

// OnAgreementCreated is called when a buyer commits to a listing.
type OnAgreementCreated interface {
	Plugin
	OnAgreementCreated(ctx context.Context, a *agreement.Agreement) error
}

// OnSettlementCompleted is called after payment and delivery both succeed.
type OnSettlementCompleted interface {
	Plugin
	OnSettlementCompleted(ctx context.Context, a *agreement.Agreement) error
}

// OnSettlementFailed is called when a settlement is rolled back.
type OnSettlementFailed interface {
	Plugin
	OnSettlementFailed(ctx context.Context, a *agreement.Agreement, err error) error
}

// OnAgreementDefaulted is called when an overdue agreement is defaulted.
type OnAgreementDefaulted interface {
	Plugin
	OnAgreementDefaulted(ctx context.Context, a *agreement.Agreement) error
}

// OnSweepCompleted is called after each default/expiry sweep.
type OnSweepCompleted interface {
	Plugin
	OnSweepCompleted(ctx context.Context, defaulted, expired int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Swap hooks
// ──────────────────────────────────────────────────

// OnPoolCreated is called when a liquidity pool is registered.
type OnPoolCreated interface {
	Plugin
	OnPoolCreated(ctx context.Context, p *pool.Pool) error
}

// OnReservesUpdated is called whenever pool reserves change, swaps included.
type OnReservesUpdated interface {
	Plugin
	OnReservesUpdated(ctx context.Context, p *pool.Pool) error
}

// OnPoolStatusChanged is called when a pool is enabled or disabled.
type OnPoolStatusChanged interface {
	Plugin
	OnPoolStatusChanged(ctx context.Context, p *pool.Pool) error
}

// OnRouteQuoted is called when a route is stored.
type OnRouteQuoted interface {
	Plugin
	OnRouteQuoted(ctx context.Context, r *swap.Route) error
}

// OnSwapExecuted is called after a swap has been applied to its pool.
type OnSwapExecuted interface {
	Plugin
	OnSwapExecuted(ctx context.Context, s *swap.Swap) error
}

// ──────────────────────────────────────────────────
// Discount hooks
// ──────────────────────────────────────────────────

// OnDiscountProposed is called when an early-payment discount is offered.
type OnDiscountProposed interface {
	Plugin
	OnDiscountProposed(ctx context.Context, p *discount.Proposal) error
}

// OnDiscountAccepted is called when the counterparty accepts a discount.
type OnDiscountAccepted interface {
	Plugin
	OnDiscountAccepted(ctx context.Context, p *discount.Proposal) error
}
