// Package observability provides a metrics extension for the factoring engine
// that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"errors"
	"time"

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

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceCreated      = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceVerified     = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceTokenized    = (*MetricsExtension)(nil)
	_ plugin.OnSharesTransferred   = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePaid         = (*MetricsExtension)(nil)
	_ plugin.OnListingCreated      = (*MetricsExtension)(nil)
	_ plugin.OnListingCancelled    = (*MetricsExtension)(nil)
	_ plugin.OnListingExpired      = (*MetricsExtension)(nil)
	_ plugin.OnAgreementCreated    = (*MetricsExtension)(nil)
	_ plugin.OnSettlementCompleted = (*MetricsExtension)(nil)
	_ plugin.OnSettlementFailed    = (*MetricsExtension)(nil)
	_ plugin.OnAgreementDefaulted  = (*MetricsExtension)(nil)
	_ plugin.OnSweepCompleted      = (*MetricsExtension)(nil)
	_ plugin.OnPoolCreated         = (*MetricsExtension)(nil)
	_ plugin.OnRouteQuoted         = (*MetricsExtension)(nil)
	_ plugin.OnSwapExecuted        = (*MetricsExtension)(nil)
	_ plugin.OnDiscountProposed    = (*MetricsExtension)(nil)
	_ plugin.OnDiscountAccepted    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to track protocol activity.
type MetricsExtension struct {
	factory MetricFactory

	// Invoice metrics
	InvoiceCreated    Counter
	InvoiceVerified   Counter
	InvoiceTokenized  Counter
	InvoicePaid       Counter
	InvoiceAmount     Histogram
	SharesTransferred Counter

	// Marketplace metrics
	ListingCreated      Counter
	ListingCancelled    Counter
	ListingExpired      Counter
	AgreementCreated    Counter
	SettlementCompleted Counter
	SettlementFailed    Counter
	CompensationFailed  Counter
	SettlementVolume    Histogram
	AgreementDefaulted  Counter
	SweepLatency        Histogram

	// Swap metrics
	PoolCreated     Counter
	RouteQuoted     Counter
	SwapExecuted    Counter
	SwapSlippageBps Histogram

	// Discount metrics
	DiscountProposed Counter
	DiscountAccepted Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions or NewPrometheusFactory elsewhere.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		InvoiceCreated:    factory.Counter("factoring.invoice.created"),
		InvoiceVerified:   factory.Counter("factoring.invoice.verified"),
		InvoiceTokenized:  factory.Counter("factoring.invoice.tokenized"),
		InvoicePaid:       factory.Counter("factoring.invoice.paid"),
		InvoiceAmount:     factory.Histogram("factoring.invoice.amount"),
		SharesTransferred: factory.Counter("factoring.shares.transferred"),

		ListingCreated:      factory.Counter("factoring.listing.created"),
		ListingCancelled:    factory.Counter("factoring.listing.cancelled"),
		ListingExpired:      factory.Counter("factoring.listing.expired"),
		AgreementCreated:    factory.Counter("factoring.agreement.created"),
		SettlementCompleted: factory.Counter("factoring.settlement.completed"),
		SettlementFailed:    factory.Counter("factoring.settlement.failed"),
		CompensationFailed:  factory.Counter("factoring.settlement.compensation_failed"),
		SettlementVolume:    factory.Histogram("factoring.settlement.volume"),
		AgreementDefaulted:  factory.Counter("factoring.agreement.defaulted"),
		SweepLatency:        factory.Histogram("factoring.sweep.latency_ms"),

		PoolCreated:     factory.Counter("factoring.pool.created"),
		RouteQuoted:     factory.Counter("factoring.route.quoted"),
		SwapExecuted:    factory.Counter("factoring.swap.executed"),
		SwapSlippageBps: factory.Histogram("factoring.swap.slippage_bps"),

		DiscountProposed: factory.Counter("factoring.discount.proposed"),
		DiscountAccepted: factory.Counter("factoring.discount.accepted"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Invoice ledger hooks
// ──────────────────────────────────────────────────

// OnInvoiceCreated implements plugin.OnInvoiceCreated.
func (m *MetricsExtension) OnInvoiceCreated(_ context.Context, inv *invoice.Invoice) error {
	m.InvoiceCreated.Inc()
	m.InvoiceAmount.Observe(float64(inv.Amount))
	return nil
}

// OnInvoiceVerified implements plugin.OnInvoiceVerified.
func (m *MetricsExtension) OnInvoiceVerified(_ context.Context, _ *invoice.Invoice) error {
	m.InvoiceVerified.Inc()
	return nil
}

// OnInvoiceTokenized implements plugin.OnInvoiceTokenized.
func (m *MetricsExtension) OnInvoiceTokenized(_ context.Context, _ *invoice.Invoice) error {
	m.InvoiceTokenized.Inc()
	return nil
}

// OnSharesTransferred implements plugin.OnSharesTransferred.
func (m *MetricsExtension) OnSharesTransferred(_ context.Context, _ id.InvoiceID, _, _ string, amount uint64) error {
	m.SharesTransferred.Add(float64(amount))
	return nil
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (m *MetricsExtension) OnInvoicePaid(_ context.Context, _ *invoice.Invoice) error {
	m.InvoicePaid.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Marketplace hooks
// ──────────────────────────────────────────────────

// OnListingCreated implements plugin.OnListingCreated.
func (m *MetricsExtension) OnListingCreated(_ context.Context, _ *listing.Listing) error {
	m.ListingCreated.Inc()
	return nil
}

// OnListingCancelled implements plugin.OnListingCancelled.
func (m *MetricsExtension) OnListingCancelled(_ context.Context, _ *listing.Listing) error {
	m.ListingCancelled.Inc()
	return nil
}

// OnListingExpired implements plugin.OnListingExpired.
func (m *MetricsExtension) OnListingExpired(_ context.Context, _ *listing.Listing) error {
	m.ListingExpired.Inc()
	return nil
}

// OnAgreementCreated implements plugin.OnAgreementCreated.
func (m *MetricsExtension) OnAgreementCreated(_ context.Context, _ *agreement.Agreement) error {
	m.AgreementCreated.Inc()
	return nil
}

// OnSettlementCompleted implements plugin.OnSettlementCompleted.
func (m *MetricsExtension) OnSettlementCompleted(_ context.Context, a *agreement.Agreement) error {
	m.SettlementCompleted.Inc()
	m.SettlementVolume.Observe(float64(a.AgreedPrice))
	return nil
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (m *MetricsExtension) OnSettlementFailed(_ context.Context, _ *agreement.Agreement, err error) error {
	m.SettlementFailed.Inc()
	var serr *factoring.SettlementError
	if errors.As(err, &serr) && len(serr.Compensation.Errors) > 0 {
		m.CompensationFailed.Inc()
	}
	return nil
}

// OnAgreementDefaulted implements plugin.OnAgreementDefaulted.
func (m *MetricsExtension) OnAgreementDefaulted(_ context.Context, _ *agreement.Agreement) error {
	m.AgreementDefaulted.Inc()
	return nil
}

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(_ context.Context, _, _ int, elapsed time.Duration) error {
	m.SweepLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Swap hooks
// ──────────────────────────────────────────────────

// OnPoolCreated implements plugin.OnPoolCreated.
func (m *MetricsExtension) OnPoolCreated(_ context.Context, _ *pool.Pool) error {
	m.PoolCreated.Inc()
	return nil
}

// OnRouteQuoted implements plugin.OnRouteQuoted.
func (m *MetricsExtension) OnRouteQuoted(_ context.Context, _ *swap.Route) error {
	m.RouteQuoted.Inc()
	return nil
}

// OnSwapExecuted implements plugin.OnSwapExecuted.
func (m *MetricsExtension) OnSwapExecuted(_ context.Context, s *swap.Swap) error {
	m.SwapExecuted.Inc()
	m.SwapSlippageBps.Observe(float64(s.SlippageBps))
	return nil
}

// ──────────────────────────────────────────────────
// Discount hooks
// ──────────────────────────────────────────────────

// OnDiscountProposed implements plugin.OnDiscountProposed.
func (m *MetricsExtension) OnDiscountProposed(_ context.Context, _ *discount.Proposal) error {
	m.DiscountProposed.Inc()
	return nil
}

// OnDiscountAccepted implements plugin.OnDiscountAccepted.
func (m *MetricsExtension) OnDiscountAccepted(_ context.Context, _ *discount.Proposal) error {
	m.DiscountAccepted.Inc()
	return nil
}
