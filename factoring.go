package factoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/clock"
	"github.com/xraph/factoring/plugin"
	"github.com/xraph/factoring/pricing"
	"github.com/xraph/factoring/settings"
	"github.com/xraph/factoring/store"
)

// TracerName is the instrumentation scope of engine spans.
const TracerName = "github.com/xraph/factoring"

// ErrNotConfigured is returned when an operation needs a capability that was
// not supplied to New.
var ErrNotConfigured = errors.New("factoring: capability not configured")

// DefaultSettings returns the protocol settings used until an admin changes
// them.
func DefaultSettings() settings.Settings {
	return settings.Settings{
		MarketplaceFeeBps: 250,
		PlatformAddress:   "platform",
		AggregatorEnabled: true,
		MaxSlippageBps:    pricing.MaxSlippageBps,
		LocalChainID:      1,
	}
}

// Engine is the factoring ledger engine. Mutating calls are serialised by a
// single writer lock and each runs in one store transaction; reads go
// straight to the store.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	tracer  trace.Tracer

	clock      clock.Clock
	access     capability.Access
	ownership  capability.Ownership
	payments   capability.Payments
	chains     capability.ChainRegistry
	signatures capability.Signatures

	gas      pricing.GasSchedule
	defaults settings.Settings

	// Writer lock
	mu sync.Mutex

	// Background workers
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	sweepInterval time.Duration
	autoMigrate   bool
}

// New creates a new Engine. Access defaults to capability.DenyAll and
// Signatures to capability.RejectAllSignatures, so role-gated operations fail
// until real adapters are supplied. Ownership, Payments and the chain
// registry must be supplied for the operations that use them.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		tracer:        otel.Tracer(TracerName),
		clock:         clock.NewManual(0),
		access:        capability.DenyAll,
		signatures:    capability.RejectAllSignatures,
		gas:           pricing.DefaultGasSchedule(),
		defaults:      DefaultSettings(),
		stopChan:      make(chan struct{}),
		sweepInterval: 30 * time.Second,
		autoMigrate:   true,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for engine
// spans. The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(TracerName)
	}
}

// WithClock sets the logical clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithAccess sets the role manager.
func WithAccess(a capability.Access) Option {
	return func(e *Engine) { e.access = a }
}

// WithOwnership sets the invoice token ownership registry.
func WithOwnership(o capability.Ownership) Option {
	return func(e *Engine) { e.ownership = o }
}

// WithPayments sets the value transfer capability.
func WithPayments(p capability.Payments) Option {
	return func(e *Engine) { e.payments = p }
}

// WithChains sets the chain registry.
func WithChains(c capability.ChainRegistry) Option {
	return func(e *Engine) { e.chains = c }
}

// WithSignatures sets the signature validator.
func WithSignatures(s capability.Signatures) Option {
	return func(e *Engine) { e.signatures = s }
}

// WithGasSchedule overrides the gas estimation constants.
func WithGasSchedule(g pricing.GasSchedule) Option {
	return func(e *Engine) { e.gas = g }
}

// WithDefaultSettings sets the settings used until an admin persists new
// ones.
func WithDefaultSettings(s settings.Settings) Option {
	return func(e *Engine) { e.defaults = s }
}

// WithSweepInterval sets how often the sweeper defaults overdue agreements
// and expires listings. Zero disables the sweeper.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Engine) { e.sweepInterval = d }
}

// WithAutoMigrate controls whether Start migrates the store. It is on by
// default.
func WithAutoMigrate(enabled bool) Option {
	return func(e *Engine) { e.autoMigrate = enabled }
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if e.autoMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	if e.sweepInterval > 0 {
		e.wg.Add(1)
		go e.sweepWorker(context.WithoutCancel(ctx))
	}

	e.logger.Info("factoring engine started",
		"sweep_interval", e.sweepInterval,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down background workers and closes the store.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()

	e.plugins.EmitShutdown(context.Background())

	return e.store.Close()
}

// sweepWorker periodically defaults overdue agreements and expires listings.
func (e *Engine) sweepWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			if _, err := e.SweepDefaults(ctx); err != nil {
				e.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// mutate runs fn under the writer lock inside a span, handing it the current
// logical time.
func (e *Engine) mutate(ctx context.Context, op string, fn func(ctx context.Context, now uint64) error, attrs ...attribute.KeyValue) (err error) {
	ctx, span := e.tracer.Start(ctx, "factoring."+op, trace.WithAttributes(attrs...))
	defer func() { endSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	now, err := e.clock.Now(ctx)
	if err != nil {
		return fmt.Errorf("factoring: read clock: %w", err)
	}
	return fn(ctx, now)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (e *Engine) now(ctx context.Context) (uint64, error) {
	now, err := e.clock.Now(ctx)
	if err != nil {
		return 0, fmt.Errorf("factoring: read clock: %w", err)
	}
	return now, nil
}

func (e *Engine) requireRole(ctx context.Context, principal string, roles ...string) error {
	for _, role := range roles {
		ok, err := e.access.HasRole(ctx, role, principal)
		if err != nil {
			return fmt.Errorf("factoring: role check %s: %w", role, err)
		}
		if ok {
			return nil
		}
	}
	return ErrUnauthorized
}

// loadSettings returns the persisted settings or the engine defaults.
func (e *Engine) loadSettings(ctx context.Context, tx store.Tx) (*settings.Settings, error) {
	s, err := tx.GetSettings(ctx)
	if errors.Is(err, ErrSettingsNotFound) {
		d := e.defaults
		return &d, nil
	}
	return s, err
}

// Settings returns the protocol settings in force.
func (e *Engine) Settings(ctx context.Context) (*settings.Settings, error) {
	var s *settings.Settings
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		s, err = e.loadSettings(ctx, tx)
		return err
	})
	return s, err
}

// updateSettings applies fn to the current settings as an admin.
func (e *Engine) updateSettings(ctx context.Context, op string, fn func(s *settings.Settings) error) error {
	caller, err := callerOf(ctx)
	if err != nil {
		return err
	}
	return e.mutate(ctx, op, func(ctx context.Context, _ uint64) error {
		if err := e.requireRole(ctx, caller, capability.RoleAdmin); err != nil {
			return err
		}
		err := e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			s, err := e.loadSettings(ctx, tx)
			if err != nil {
				return err
			}
			if err := fn(s); err != nil {
				return err
			}
			return tx.PutSettings(ctx, s)
		})
		if err != nil {
			return err
		}
		e.logger.Info("settings updated", "op", op, "admin", caller)
		return nil
	})
}
