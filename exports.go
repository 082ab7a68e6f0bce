package factoring

import (
	"github.com/xraph/factoring/pricing"
	"github.com/xraph/factoring/types"
)

// Re-export common types for convenience so users don't have to import the
// subpackages for everyday use.

// Entity is re-exported from types package.
type Entity = types.Entity

// Quote is re-exported from pricing package.
type Quote = pricing.Quote

// GasSchedule is re-exported from pricing package.
type GasSchedule = pricing.GasSchedule

// Re-export pricing helpers
var (
	CalculateOutput    = pricing.CalculateOutput
	PriceImpact        = pricing.PriceImpact
	DefaultGasSchedule = pricing.DefaultGasSchedule
)

// MaxSlippageBps is the protocol-wide slippage hard cap.
const MaxSlippageBps = pricing.MaxSlippageBps

// Re-export Entity constructor
var NewEntity = types.NewEntity
