package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/factoring/capability"
)

// ErrChainInactive is returned when a remote chain is inactive or has no
// bridge.
var ErrChainInactive = errors.New("factoring: chain inactive")

// GasSchedule parameterises gas estimation.
type GasSchedule struct {
	SameChain      uint64 `json:"same_chain" mapstructure:"same_chain" yaml:"same_chain"`
	CrossChainBase uint64 `json:"cross_chain_base" mapstructure:"cross_chain_base" yaml:"cross_chain_base"`
	PerHop         uint64 `json:"per_hop" mapstructure:"per_hop" yaml:"per_hop"`
}

// DefaultGasSchedule returns the default gas costs.
func DefaultGasSchedule() GasSchedule {
	return GasSchedule{
		SameChain:      100_000,
		CrossChainBase: 250_000,
		PerHop:         50_000,
	}
}

// Estimate returns the gas cost of settling a path of the given complexity on
// chainID. Settling on the local chain costs a flat amount. Any other chain
// must be active and bridged.
func (g GasSchedule) Estimate(ctx context.Context, chains capability.ChainRegistry, localChain, chainID, complexity uint64) (uint64, error) {
	if chainID == localChain {
		return g.SameChain, nil
	}
	if err := RequireBridge(ctx, chains, chainID); err != nil {
		return 0, err
	}
	return g.CrossChainBase + g.PerHop*complexity, nil
}

// RequireBridge fails with ErrChainInactive unless chainID is active and
// has a bridge address.
func RequireBridge(ctx context.Context, chains capability.ChainRegistry, chainID uint64) error {
	active, err := chains.IsChainActive(ctx, chainID)
	if err != nil {
		return fmt.Errorf("pricing: chain %d status: %w", chainID, err)
	}
	if !active {
		return ErrChainInactive
	}
	bridge, err := chains.BridgeAddress(ctx, chainID)
	if err != nil {
		return fmt.Errorf("pricing: chain %d bridge: %w", chainID, err)
	}
	if bridge == "" {
		return ErrChainInactive
	}
	return nil
}
