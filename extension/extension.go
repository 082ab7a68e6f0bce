// Package extension provides the Forge extension adapter for Factoring.
//
// It implements the forge.Extension interface to integrate the factoring
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.factoring" or
// "factoring" keys.
package extension

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/api"
	"github.com/xraph/factoring/settings"
	"github.com/xraph/factoring/store"
	"github.com/xraph/factoring/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "factoring"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Invoice factoring ledger, marketplace and swap router"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the factoring engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *factoring.Engine
	store      store.Store
	engineOpts []factoring.Option
}

// New creates a new Factoring Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *factoring.Engine { return e.engine }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = factoring.New(e.store, e.config.engineOptions(e.engineOpts...)...)

	return vessel.Provide(fapp.Container(), func() (*factoring.Engine, error) {
		return e.engine, nil
	})
}

// Handler returns the HTTP API mounted under the configured base path.
func (e *Extension) Handler() http.Handler {
	r := chi.NewRouter()
	r.Mount(e.config.BasePath, api.NewRouter(e.engine, nil))
	return r
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("factoring: extension not initialized")
	}
	if err := e.engine.Start(ctx); err != nil {
		return err
	}
	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("factoring: store not initialized")
	}
	return e.store.Ping(ctx)
}

// engineOptions turns the resolved config into engine options. Pass-through
// options come last so they win.
func (c Config) engineOptions(extra ...factoring.Option) []factoring.Option {
	sweep := c.SweepInterval
	if sweep < 0 {
		sweep = 0
	}
	opts := []factoring.Option{
		factoring.WithSweepInterval(sweep),
		factoring.WithAutoMigrate(!c.DisableMigrate),
		factoring.WithGasSchedule(c.Gas),
		factoring.WithDefaultSettings(settings.Settings{
			MarketplaceFeeBps: c.MarketplaceFeeBps,
			PlatformAddress:   c.PlatformAddress,
			AggregatorEnabled: !c.DisableAggregator,
			MaxSlippageBps:    c.MaxSlippageBps,
			LocalChainID:      c.LocalChainID,
		}),
	}
	return append(opts, extra...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("factoring: configuration is required but not found in config files; " +
				"ensure 'extensions.factoring' or 'factoring' key exists in your config")
		}
		e.config = programmaticConfig.withDefaults()
	} else {
		e.config = merge(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("factoring: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("sweep_interval", e.config.SweepInterval),
		forge.F("marketplace_fee_bps", e.config.MarketplaceFeeBps),
		forge.F("max_slippage_bps", e.config.MaxSlippageBps),
		forge.F("local_chain_id", e.config.LocalChainID),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.factoring", "factoring"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("factoring: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("factoring: failed to bind config",
			forge.F("key", key),
		)
	}

	return Config{}, false
}
