package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/factoring/agreement"
	"github.com/xraph/factoring/discount"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/listing"
	"github.com/xraph/factoring/pool"
	"github.com/xraph/factoring/swap"
)

// DefaultTimeout bounds a single plugin callback.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                []OnInit
	onShutdown            []OnShutdown
	onInvoiceCreated      []OnInvoiceCreated
	onInvoiceVerified     []OnInvoiceVerified
	onInvoiceTokenized    []OnInvoiceTokenized
	onSharesTransferred   []OnSharesTransferred
	onInvoicePaid         []OnInvoicePaid
	onListingCreated      []OnListingCreated
	onListingCancelled    []OnListingCancelled
	onListingExpired      []OnListingExpired
	onAgreementCreated    []OnAgreementCreated
	onSettlementCompleted []OnSettlementCompleted
	onSettlementFailed    []OnSettlementFailed
	onAgreementDefaulted  []OnAgreementDefaulted
	onSweepCompleted      []OnSweepCompleted
	onPoolCreated         []OnPoolCreated
	onReservesUpdated     []OnReservesUpdated
	onPoolStatusChanged   []OnPoolStatusChanged
	onRouteQuoted         []OnRouteQuoted
	onSwapExecuted        []OnSwapExecuted
	onDiscountProposed    []OnDiscountProposed
	onDiscountAccepted    []OnDiscountAccepted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-callback timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	add := func(ok bool, name string) bool {
		if ok {
			hooks = append(hooks, name)
		}
		return ok
	}

	if v, ok := p.(OnInit); add(ok, "OnInit") {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); add(ok, "OnShutdown") {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnInvoiceCreated); add(ok, "OnInvoiceCreated") {
		r.onInvoiceCreated = append(r.onInvoiceCreated, v)
	}
	if v, ok := p.(OnInvoiceVerified); add(ok, "OnInvoiceVerified") {
		r.onInvoiceVerified = append(r.onInvoiceVerified, v)
	}
	if v, ok := p.(OnInvoiceTokenized); add(ok, "OnInvoiceTokenized") {
		r.onInvoiceTokenized = append(r.onInvoiceTokenized, v)
	}
	if v, ok := p.(OnSharesTransferred); add(ok, "OnSharesTransferred") {
		r.onSharesTransferred = append(r.onSharesTransferred, v)
	}
	if v, ok := p.(OnInvoicePaid); add(ok, "OnInvoicePaid") {
		r.onInvoicePaid = append(r.onInvoicePaid, v)
	}
	if v, ok := p.(OnListingCreated); add(ok, "OnListingCreated") {
		r.onListingCreated = append(r.onListingCreated, v)
	}
	if v, ok := p.(OnListingCancelled); add(ok, "OnListingCancelled") {
		r.onListingCancelled = append(r.onListingCancelled, v)
	}
	if v, ok := p.(OnListingExpired); add(ok, "OnListingExpired") {
		r.onListingExpired = append(r.onListingExpired, v)
	}
	if v, ok := p.(OnAgreementCreated); add(ok, "OnAgreementCreated") {
		r.onAgreementCreated = append(r.onAgreementCreated, v)
	}
	if v, ok := p.(OnSettlementCompleted); add(ok, "OnSettlementCompleted") {
		r.onSettlementCompleted = append(r.onSettlementCompleted, v)
	}
	if v, ok := p.(OnSettlementFailed); add(ok, "OnSettlementFailed") {
		r.onSettlementFailed = append(r.onSettlementFailed, v)
	}
	if v, ok := p.(OnAgreementDefaulted); add(ok, "OnAgreementDefaulted") {
		r.onAgreementDefaulted = append(r.onAgreementDefaulted, v)
	}
	if v, ok := p.(OnSweepCompleted); add(ok, "OnSweepCompleted") {
		r.onSweepCompleted = append(r.onSweepCompleted, v)
	}
	if v, ok := p.(OnPoolCreated); add(ok, "OnPoolCreated") {
		r.onPoolCreated = append(r.onPoolCreated, v)
	}
	if v, ok := p.(OnReservesUpdated); add(ok, "OnReservesUpdated") {
		r.onReservesUpdated = append(r.onReservesUpdated, v)
	}
	if v, ok := p.(OnPoolStatusChanged); add(ok, "OnPoolStatusChanged") {
		r.onPoolStatusChanged = append(r.onPoolStatusChanged, v)
	}
	if v, ok := p.(OnRouteQuoted); add(ok, "OnRouteQuoted") {
		r.onRouteQuoted = append(r.onRouteQuoted, v)
	}
	if v, ok := p.(OnSwapExecuted); add(ok, "OnSwapExecuted") {
		r.onSwapExecuted = append(r.onSwapExecuted, v)
	}
	if v, ok := p.(OnDiscountProposed); add(ok, "OnDiscountProposed") {
		r.onDiscountProposed = append(r.onDiscountProposed, v)
	}
	if v, ok := p.(OnDiscountAccepted); add(ok, "OnDiscountAccepted") {
		r.onDiscountAccepted = append(r.onDiscountAccepted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit snapshots the cached hook list under the read lock and invokes call
// for each entry. Failures are logged and never propagate.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, list *[]T, call func(T) error) {
	r.mu.RLock()
	plugins := *list
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return call(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", &r.onInit, func(p OnInit) error { return p.OnInit(ctx, engine) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", &r.onShutdown, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitInvoiceCreated emits an invoice created event.
func (r *Registry) EmitInvoiceCreated(ctx context.Context, inv *invoice.Invoice) {
	emit(ctx, r, "OnInvoiceCreated", &r.onInvoiceCreated, func(p OnInvoiceCreated) error {
		return p.OnInvoiceCreated(ctx, inv)
	})
}

// EmitInvoiceVerified emits an invoice verified event.
func (r *Registry) EmitInvoiceVerified(ctx context.Context, inv *invoice.Invoice) {
	emit(ctx, r, "OnInvoiceVerified", &r.onInvoiceVerified, func(p OnInvoiceVerified) error {
		return p.OnInvoiceVerified(ctx, inv)
	})
}

// EmitInvoiceTokenized emits an invoice tokenized event.
func (r *Registry) EmitInvoiceTokenized(ctx context.Context, inv *invoice.Invoice) {
	emit(ctx, r, "OnInvoiceTokenized", &r.onInvoiceTokenized, func(p OnInvoiceTokenized) error {
		return p.OnInvoiceTokenized(ctx, inv)
	})
}

// EmitSharesTransferred emits a share transfer event.
func (r *Registry) EmitSharesTransferred(ctx context.Context, invID id.InvoiceID, from, to string, amount uint64) {
	emit(ctx, r, "OnSharesTransferred", &r.onSharesTransferred, func(p OnSharesTransferred) error {
		return p.OnSharesTransferred(ctx, invID, from, to, amount)
	})
}

// EmitInvoicePaid emits an invoice paid event.
func (r *Registry) EmitInvoicePaid(ctx context.Context, inv *invoice.Invoice) {
	emit(ctx, r, "OnInvoicePaid", &r.onInvoicePaid, func(p OnInvoicePaid) error {
		return p.OnInvoicePaid(ctx, inv)
	})
}

// EmitListingCreated emits a listing created event.
func (r *Registry) EmitListingCreated(ctx context.Context, l *listing.Listing) {
	emit(ctx, r, "OnListingCreated", &r.onListingCreated, func(p OnListingCreated) error {
		return p.OnListingCreated(ctx, l)
	})
}

// EmitListingCancelled emits a listing cancelled event.
func (r *Registry) EmitListingCancelled(ctx context.Context, l *listing.Listing) {
	emit(ctx, r, "OnListingCancelled", &r.onListingCancelled, func(p OnListingCancelled) error {
		return p.OnListingCancelled(ctx, l)
	})
}

// EmitListingExpired emits a listing expired event.
func (r *Registry) EmitListingExpired(ctx context.Context, l *listing.Listing) {
	emit(ctx, r, "OnListingExpired", &r.onListingExpired, func(p OnListingExpired) error {
		return p.OnListingExpired(ctx, l)
	})
}

// EmitAgreementCreated emits an agreement created event.
func (r *Registry) EmitAgreementCreated(ctx context.Context, a *agreement.Agreement) {
	emit(ctx, r, "OnAgreementCreated", &r.onAgreementCreated, func(p OnAgreementCreated) error {
		return p.OnAgreementCreated(ctx, a)
	})
}

// EmitSettlementCompleted emits a settlement completed event.
func (r *Registry) EmitSettlementCompleted(ctx context.Context, a *agreement.Agreement) {
	emit(ctx, r, "OnSettlementCompleted", &r.onSettlementCompleted, func(p OnSettlementCompleted) error {
		return p.OnSettlementCompleted(ctx, a)
	})
}

// EmitSettlementFailed emits a settlement failed event.
func (r *Registry) EmitSettlementFailed(ctx context.Context, a *agreement.Agreement, cause error) {
	emit(ctx, r, "OnSettlementFailed", &r.onSettlementFailed, func(p OnSettlementFailed) error {
		return p.OnSettlementFailed(ctx, a, cause)
	})
}

// EmitAgreementDefaulted emits an agreement defaulted event.
func (r *Registry) EmitAgreementDefaulted(ctx context.Context, a *agreement.Agreement) {
	emit(ctx, r, "OnAgreementDefaulted", &r.onAgreementDefaulted, func(p OnAgreementDefaulted) error {
		return p.OnAgreementDefaulted(ctx, a)
	})
}

// EmitSweepCompleted emits a sweep completed event.
func (r *Registry) EmitSweepCompleted(ctx context.Context, defaulted, expired int, elapsed time.Duration) {
	emit(ctx, r, "OnSweepCompleted", &r.onSweepCompleted, func(p OnSweepCompleted) error {
		return p.OnSweepCompleted(ctx, defaulted, expired, elapsed)
	})
}

// EmitPoolCreated emits a pool created event.
func (r *Registry) EmitPoolCreated(ctx context.Context, pl *pool.Pool) {
	emit(ctx, r, "OnPoolCreated", &r.onPoolCreated, func(p OnPoolCreated) error {
		return p.OnPoolCreated(ctx, pl)
	})
}

// EmitReservesUpdated emits a reserves updated event.
func (r *Registry) EmitReservesUpdated(ctx context.Context, pl *pool.Pool) {
	emit(ctx, r, "OnReservesUpdated", &r.onReservesUpdated, func(p OnReservesUpdated) error {
		return p.OnReservesUpdated(ctx, pl)
	})
}

// EmitPoolStatusChanged emits a pool enabled or disabled event.
func (r *Registry) EmitPoolStatusChanged(ctx context.Context, pl *pool.Pool) {
	emit(ctx, r, "OnPoolStatusChanged", &r.onPoolStatusChanged, func(p OnPoolStatusChanged) error {
		return p.OnPoolStatusChanged(ctx, pl)
	})
}

// EmitRouteQuoted emits a route quoted event.
func (r *Registry) EmitRouteQuoted(ctx context.Context, rt *swap.Route) {
	emit(ctx, r, "OnRouteQuoted", &r.onRouteQuoted, func(p OnRouteQuoted) error {
		return p.OnRouteQuoted(ctx, rt)
	})
}

// EmitSwapExecuted emits a swap executed event.
func (r *Registry) EmitSwapExecuted(ctx context.Context, s *swap.Swap) {
	emit(ctx, r, "OnSwapExecuted", &r.onSwapExecuted, func(p OnSwapExecuted) error {
		return p.OnSwapExecuted(ctx, s)
	})
}

// EmitDiscountProposed emits a discount proposed event.
func (r *Registry) EmitDiscountProposed(ctx context.Context, prop *discount.Proposal) {
	emit(ctx, r, "OnDiscountProposed", &r.onDiscountProposed, func(p OnDiscountProposed) error {
		return p.OnDiscountProposed(ctx, prop)
	})
}

// EmitDiscountAccepted emits a discount accepted event.
func (r *Registry) EmitDiscountAccepted(ctx context.Context, prop *discount.Proposal) {
	emit(ctx, r, "OnDiscountAccepted", &r.onDiscountAccepted, func(p OnDiscountAccepted) error {
		return p.OnDiscountAccepted(ctx, prop)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the settlement pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
