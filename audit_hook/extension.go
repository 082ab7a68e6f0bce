// Package audithook bridges factoring lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/agreement"
	"github.com/xraph/factoring/discount"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/listing"
	"github.com/xraph/factoring/plugin"
	"github.com/xraph/factoring/pool"
	"github.com/xraph/factoring/swap"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnInvoiceCreated      = (*Extension)(nil)
	_ plugin.OnInvoiceVerified     = (*Extension)(nil)
	_ plugin.OnInvoiceTokenized    = (*Extension)(nil)
	_ plugin.OnSharesTransferred   = (*Extension)(nil)
	_ plugin.OnInvoicePaid         = (*Extension)(nil)
	_ plugin.OnListingCreated      = (*Extension)(nil)
	_ plugin.OnListingCancelled    = (*Extension)(nil)
	_ plugin.OnListingExpired      = (*Extension)(nil)
	_ plugin.OnAgreementCreated    = (*Extension)(nil)
	_ plugin.OnSettlementCompleted = (*Extension)(nil)
	_ plugin.OnSettlementFailed    = (*Extension)(nil)
	_ plugin.OnAgreementDefaulted  = (*Extension)(nil)
	_ plugin.OnPoolCreated         = (*Extension)(nil)
	_ plugin.OnReservesUpdated     = (*Extension)(nil)
	_ plugin.OnPoolStatusChanged   = (*Extension)(nil)
	_ plugin.OnSwapExecuted        = (*Extension)(nil)
	_ plugin.OnDiscountProposed    = (*Extension)(nil)
	_ plugin.OnDiscountAccepted    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly. Callers inject
// the concrete recorder at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges factoring lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Invoice ledger hooks
// ──────────────────────────────────────────────────

// OnInvoiceCreated implements plugin.OnInvoiceCreated.
func (e *Extension) OnInvoiceCreated(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceCreated, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryIssuance, nil,
		"invoice_number", inv.Number,
		"issuer", inv.Issuer,
		"payer", inv.Payer,
		"amount", inv.Amount,
		"due_date", inv.DueDate,
	)
}

// OnInvoiceVerified implements plugin.OnInvoiceVerified.
func (e *Extension) OnInvoiceVerified(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceVerified, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryIssuance, nil,
		"verified_at", inv.VerifiedAt,
	)
}

// OnInvoiceTokenized implements plugin.OnInvoiceTokenized.
func (e *Extension) OnInvoiceTokenized(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceTokenized, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryIssuance, nil,
		"fraction_count", inv.FractionCount,
		"total_supply", inv.TotalSupply,
	)
}

// OnSharesTransferred implements plugin.OnSharesTransferred.
func (e *Extension) OnSharesTransferred(ctx context.Context, invID id.InvoiceID, from, to string, amount uint64) error {
	return e.record(ctx, ActionSharesTransferred, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, invID.String(), CategoryIssuance, nil,
		"from", from,
		"to", to,
		"amount", amount,
	)
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (e *Extension) OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoicePaid, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryFinancing, nil,
		"payer", inv.Payer,
		"paid_at", inv.PaidAt,
	)
}

// ──────────────────────────────────────────────────
// Marketplace hooks
// ──────────────────────────────────────────────────

// OnListingCreated implements plugin.OnListingCreated.
func (e *Extension) OnListingCreated(ctx context.Context, l *listing.Listing) error {
	return e.record(ctx, ActionListingCreated, SeverityInfo, OutcomeSuccess,
		ResourceListing, l.ID.String(), CategoryMarketplace, nil,
		"invoice_id", l.TokenID.String(),
		"seller", l.Seller,
		"price", l.Price,
		"expiry_clock", l.ExpiryClock,
	)
}

// OnListingCancelled implements plugin.OnListingCancelled.
func (e *Extension) OnListingCancelled(ctx context.Context, l *listing.Listing) error {
	return e.record(ctx, ActionListingCancelled, SeverityInfo, OutcomeSuccess,
		ResourceListing, l.ID.String(), CategoryMarketplace, nil,
		"seller", l.Seller,
	)
}

// OnListingExpired implements plugin.OnListingExpired.
func (e *Extension) OnListingExpired(ctx context.Context, l *listing.Listing) error {
	return e.record(ctx, ActionListingExpired, SeverityInfo, OutcomeSuccess,
		ResourceListing, l.ID.String(), CategoryMarketplace, nil,
		"expiry_clock", l.ExpiryClock,
	)
}

// OnAgreementCreated implements plugin.OnAgreementCreated.
func (e *Extension) OnAgreementCreated(ctx context.Context, a *agreement.Agreement) error {
	return e.record(ctx, ActionAgreementCreated, SeverityInfo, OutcomeSuccess,
		ResourceAgreement, a.ID.String(), CategoryMarketplace, nil,
		"listing_id", a.ListingID.String(),
		"buyer", a.Buyer,
		"agreed_price", a.AgreedPrice,
		"settlement_clock", a.SettlementClock,
	)
}

// OnSettlementCompleted implements plugin.OnSettlementCompleted.
func (e *Extension) OnSettlementCompleted(ctx context.Context, a *agreement.Agreement) error {
	return e.record(ctx, ActionSettlementCompleted, SeverityInfo, OutcomeSuccess,
		ResourceAgreement, a.ID.String(), CategorySettlement, nil,
		"buyer", a.Buyer,
		"seller", a.Seller,
		"agreed_price", a.AgreedPrice,
		"platform_fee", a.PlatformFee,
	)
}

// OnSettlementFailed implements plugin.OnSettlementFailed. A settlement whose
// compensation also failed is recorded as critical with a partial outcome.
func (e *Extension) OnSettlementFailed(ctx context.Context, a *agreement.Agreement, err error) error {
	severity, outcome := SeverityError, OutcomeFailure
	step := ""
	var serr *factoring.SettlementError
	if errors.As(err, &serr) {
		step = serr.Step
		if len(serr.Compensation.Errors) > 0 {
			severity, outcome = SeverityCritical, OutcomePartial
		}
	}
	return e.record(ctx, ActionSettlementFailed, severity, outcome,
		ResourceAgreement, a.ID.String(), CategorySettlement, err,
		"buyer", a.Buyer,
		"seller", a.Seller,
		"step", step,
	)
}

// OnAgreementDefaulted implements plugin.OnAgreementDefaulted.
func (e *Extension) OnAgreementDefaulted(ctx context.Context, a *agreement.Agreement) error {
	return e.record(ctx, ActionAgreementDefaulted, SeverityWarning, OutcomeSuccess,
		ResourceAgreement, a.ID.String(), CategorySettlement, nil,
		"buyer", a.Buyer,
		"settlement_clock", a.SettlementClock,
	)
}

// ──────────────────────────────────────────────────
// Swap hooks
// ──────────────────────────────────────────────────

// OnPoolCreated implements plugin.OnPoolCreated.
func (e *Extension) OnPoolCreated(ctx context.Context, p *pool.Pool) error {
	return e.record(ctx, ActionPoolCreated, SeverityInfo, OutcomeSuccess,
		ResourcePool, p.ID.String(), CategoryLiquidity, nil,
		"token_a", p.TokenA,
		"token_b", p.TokenB,
		"chain_id", p.ChainID,
	)
}

// OnReservesUpdated implements plugin.OnReservesUpdated.
func (e *Extension) OnReservesUpdated(ctx context.Context, p *pool.Pool) error {
	return e.record(ctx, ActionReservesUpdated, SeverityInfo, OutcomeSuccess,
		ResourcePool, p.ID.String(), CategoryLiquidity, nil,
		"reserve_a", p.ReserveA,
		"reserve_b", p.ReserveB,
	)
}

// OnPoolStatusChanged implements plugin.OnPoolStatusChanged.
func (e *Extension) OnPoolStatusChanged(ctx context.Context, p *pool.Pool) error {
	return e.record(ctx, ActionPoolStatusChanged, SeverityInfo, OutcomeSuccess,
		ResourcePool, p.ID.String(), CategoryLiquidity, nil,
		"enabled", p.Enabled,
	)
}

// OnSwapExecuted implements plugin.OnSwapExecuted.
func (e *Extension) OnSwapExecuted(ctx context.Context, s *swap.Swap) error {
	return e.record(ctx, ActionSwapExecuted, SeverityInfo, OutcomeSuccess,
		ResourceSwap, s.ID.String(), CategoryLiquidity, nil,
		"route_id", s.RouteID.String(),
		"trader", s.Trader,
		"input_amount", s.InputAmount,
		"output_amount", s.OutputAmount,
		"slippage_bps", s.SlippageBps,
	)
}

// ──────────────────────────────────────────────────
// Discount hooks
// ──────────────────────────────────────────────────

// OnDiscountProposed implements plugin.OnDiscountProposed.
func (e *Extension) OnDiscountProposed(ctx context.Context, p *discount.Proposal) error {
	return e.record(ctx, ActionDiscountProposed, SeverityInfo, OutcomeSuccess,
		ResourceProposal, p.ID.String(), CategoryFinancing, nil,
		"invoice_id", p.InvoiceID.String(),
		"proposer", p.Proposer,
		"rate_bps", p.DiscountRateBps,
	)
}

// OnDiscountAccepted implements plugin.OnDiscountAccepted.
func (e *Extension) OnDiscountAccepted(ctx context.Context, p *discount.Proposal) error {
	return e.record(ctx, ActionDiscountAccepted, SeverityInfo, OutcomeSuccess,
		ResourceProposal, p.ID.String(), CategoryFinancing, nil,
		"invoice_id", p.InvoiceID.String(),
		"counterparty", p.Counterparty,
		"rate_bps", p.DiscountRateBps,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
