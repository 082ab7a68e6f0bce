package extension

import (
	"time"

	"github.com/xraph/factoring/pricing"
)

// Config holds the Factoring extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.factoring" or "factoring" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix of the HTTP API (default: "/factoring").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// SweepInterval is how often overdue agreements are defaulted and stale
	// listings expired (default: 30s). A negative value disables the sweeper.
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// MarketplaceFeeBps is the initial platform fee on settlements
	// (default: 250).
	MarketplaceFeeBps uint64 `json:"marketplace_fee_bps" mapstructure:"marketplace_fee_bps" yaml:"marketplace_fee_bps"`

	// PlatformAddress receives marketplace fees (default: "platform").
	PlatformAddress string `json:"platform_address" mapstructure:"platform_address" yaml:"platform_address"`

	// MaxSlippageBps is the initial protocol slippage ceiling (default: 500).
	MaxSlippageBps uint64 `json:"max_slippage_bps" mapstructure:"max_slippage_bps" yaml:"max_slippage_bps"`

	// LocalChainID identifies the chain pools default to (default: 1).
	LocalChainID uint64 `json:"local_chain_id" mapstructure:"local_chain_id" yaml:"local_chain_id"`

	// DisableAggregator starts with swap execution switched off.
	DisableAggregator bool `json:"disable_aggregator" mapstructure:"disable_aggregator" yaml:"disable_aggregator"`

	// Gas overrides the gas estimation constants. Zero fields keep their
	// defaults.
	Gas pricing.GasSchedule `json:"gas" mapstructure:"gas" yaml:"gas"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:          "/factoring",
		SweepInterval:     30 * time.Second,
		MarketplaceFeeBps: 250,
		PlatformAddress:   "platform",
		MaxSlippageBps:    pricing.MaxSlippageBps,
		LocalChainID:      1,
		Gas:               pricing.DefaultGasSchedule(),
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BasePath == "" {
		c.BasePath = d.BasePath
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.MarketplaceFeeBps == 0 {
		c.MarketplaceFeeBps = d.MarketplaceFeeBps
	}
	if c.PlatformAddress == "" {
		c.PlatformAddress = d.PlatformAddress
	}
	if c.MaxSlippageBps == 0 {
		c.MaxSlippageBps = d.MaxSlippageBps
	}
	if c.LocalChainID == 0 {
		c.LocalChainID = d.LocalChainID
	}
	if c.Gas.SameChain == 0 {
		c.Gas.SameChain = d.Gas.SameChain
	}
	if c.Gas.CrossChainBase == 0 {
		c.Gas.CrossChainBase = d.Gas.CrossChainBase
	}
	if c.Gas.PerHop == 0 {
		c.Gas.PerHop = d.Gas.PerHop
	}
	return c
}

// merge overlays programmatic options onto a file config. File values take
// precedence; programmatic values fill gaps and bool flags override when set.
func merge(file, programmatic Config) Config {
	if programmatic.DisableMigrate {
		file.DisableMigrate = true
	}
	if programmatic.DisableAggregator {
		file.DisableAggregator = true
	}
	if file.BasePath == "" {
		file.BasePath = programmatic.BasePath
	}
	if file.SweepInterval == 0 {
		file.SweepInterval = programmatic.SweepInterval
	}
	if file.MarketplaceFeeBps == 0 {
		file.MarketplaceFeeBps = programmatic.MarketplaceFeeBps
	}
	if file.PlatformAddress == "" {
		file.PlatformAddress = programmatic.PlatformAddress
	}
	if file.MaxSlippageBps == 0 {
		file.MaxSlippageBps = programmatic.MaxSlippageBps
	}
	if file.LocalChainID == 0 {
		file.LocalChainID = programmatic.LocalChainID
	}
	if file.Gas.SameChain == 0 {
		file.Gas.SameChain = programmatic.Gas.SameChain
	}
	if file.Gas.CrossChainBase == 0 {
		file.Gas.CrossChainBase = programmatic.Gas.CrossChainBase
	}
	if file.Gas.PerHop == 0 {
		file.Gas.PerHop = programmatic.Gas.PerHop
	}
	return file.withDefaults()
}
