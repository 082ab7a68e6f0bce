package extension

import (
	"time"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/plugin"
	"github.com/xraph/factoring/store"
)

// Option configures the Factoring Forge extension.
type Option func(*Extension)

// WithStore sets the store for the factoring engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a factoring.Option through to the underlying engine.
func WithEngineOption(opt factoring.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a factoring plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, factoring.WithPlugin(p))
	}
}

// WithAccess sets the role manager. Without it every role check fails.
func WithAccess(a capability.Access) Option {
	return WithEngineOption(factoring.WithAccess(a))
}

// WithSignatures sets the invoice signature validator. Without it every
// verification is rejected.
func WithSignatures(s capability.Signatures) Option {
	return WithEngineOption(factoring.WithSignatures(s))
}

// WithOwnership sets the token ownership registry used by the marketplace.
func WithOwnership(o capability.Ownership) Option {
	return WithEngineOption(factoring.WithOwnership(o))
}

// WithPayments sets the value transfer adapter used by settlement.
func WithPayments(p capability.Payments) Option {
	return WithEngineOption(factoring.WithPayments(p))
}

// WithChains sets the chain registry used by pools and gas estimates.
func WithChains(c capability.ChainRegistry) Option {
	return WithEngineOption(factoring.WithChains(c))
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix of the HTTP API.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithSweepInterval sets how often the sweeper runs.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.SweepInterval = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
