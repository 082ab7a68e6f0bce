package factoring

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/pool"
	"github.com/xraph/factoring/pricing"
	"github.com/xraph/factoring/settings"
	"github.com/xraph/factoring/store"
	"github.com/xraph/factoring/swap"
	"github.com/xraph/factoring/types"
)

// maxMarketplaceFeeBps caps the marketplace fee at 10%.
const maxMarketplaceFeeBps uint64 = 1000

// CreatePoolInput describes a liquidity pool. A zero ChainID means the local
// chain.
type CreatePoolInput struct {
	TokenA     string `json:"token_a"`
	TokenB     string `json:"token_b"`
	ReserveA   uint64 `json:"reserve_a"`
	ReserveB   uint64 `json:"reserve_b"`
	FeeRateBps uint64 `json:"fee_rate_bps"`
	ChainID    uint64 `json:"chain_id"`
}

// RouteInput asks for the best single-hop route. A zero ChainID means the
// local chain.
type RouteInput struct {
	InputToken  string `json:"input_token"`
	OutputToken string `json:"output_token"`
	InputAmount uint64 `json:"input_amount"`
	ChainID     uint64 `json:"chain_id"`
}

// Stats summarises protocol activity and the settings in force.
type Stats struct {
	Invoices          uint64 `json:"invoices"`
	Listings          uint64 `json:"listings"`
	Agreements        uint64 `json:"agreements"`
	Pools             uint64 `json:"pools"`
	Routes            uint64 `json:"routes"`
	Swaps             uint64 `json:"swaps"`
	Proposals         uint64 `json:"proposals"`
	MarketplaceFeeBps uint64 `json:"marketplace_fee_bps"`
	MaxSlippageBps    uint64 `json:"max_slippage_bps"`
	AggregatorEnabled bool   `json:"aggregator_enabled"`
}

// ──────────────────────────────────────────────────
// Pools
// ──────────────────────────────────────────────────

// CreatePool registers an enabled constant-product pool. The caller must be
// an admin. Pools on a remote chain require that chain to be active and
// bridged.
func (e *Engine) CreatePool(ctx context.Context, in CreatePoolInput) (*pool.Pool, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	tokenA, tokenB := strings.TrimSpace(in.TokenA), strings.TrimSpace(in.TokenB)
	switch {
	case tokenA == "" || tokenB == "":
		return nil, invalid("token", "must not be empty")
	case tokenA == tokenB:
		return nil, invalid("token_b", "must differ from token_a")
	case in.ReserveA == 0 || in.ReserveB == 0:
		return nil, invalid("reserve", "must be positive")
	case in.FeeRateBps >= types.BpsDenominator:
		return nil, invalid("fee_rate_bps", "must be below 10000")
	}

	var p *pool.Pool
	err = e.mutate(ctx, "CreatePool", func(ctx context.Context, _ uint64) error {
		if err := e.requireRole(ctx, caller, capability.RoleAdmin); err != nil {
			return err
		}
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			s, err := e.loadSettings(ctx, tx)
			if err != nil {
				return err
			}
			chainID := in.ChainID
			if chainID == 0 {
				chainID = s.LocalChainID
			}
			if chainID != s.LocalChainID {
				if err := e.requireBridge(ctx, chainID); err != nil {
					return err
				}
			}

			p = &pool.Pool{
				Entity:     types.NewEntity(),
				ID:         id.NewPoolID(),
				TokenA:     tokenA,
				TokenB:     tokenB,
				ReserveA:   in.ReserveA,
				ReserveB:   in.ReserveB,
				FeeRateBps: in.FeeRateBps,
				ChainID:    chainID,
				Enabled:    true,
			}
			if err := tx.CreatePool(ctx, p); err != nil {
				return err
			}
			_, err = tx.IncrementCounter(ctx, settings.CounterPools)
			return err
		})
	}, attribute.String("pool.token_a", tokenA), attribute.String("pool.token_b", tokenB))
	if err != nil {
		return nil, err
	}

	e.logger.Info("pool created",
		"pool_id", p.ID.String(),
		"token_a", p.TokenA,
		"token_b", p.TokenB,
		"chain_id", p.ChainID,
	)
	e.plugins.EmitPoolCreated(ctx, p)
	return p, nil
}

// UpdateReserves overwrites a pool's reserves. The caller must be an admin
// or an oracle. Enabled pools must keep positive reserves.
func (e *Engine) UpdateReserves(ctx context.Context, poolID id.PoolID, reserveA, reserveB uint64) (*pool.Pool, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	var p *pool.Pool
	err = e.mutate(ctx, "UpdateReserves", func(ctx context.Context, _ uint64) error {
		if err := e.requireRole(ctx, caller, capability.RoleAdmin, capability.RoleOracle); err != nil {
			return err
		}
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			if p, err = tx.GetPool(ctx, poolID); err != nil {
				return err
			}
			if p.Enabled && (reserveA == 0 || reserveB == 0) {
				return invalid("reserve", "must be positive while the pool is enabled")
			}
			p.ReserveA, p.ReserveB = reserveA, reserveB
			p.Touch()
			return tx.UpdatePool(ctx, p)
		})
	}, attribute.String("pool.id", poolID.String()))
	if err != nil {
		return nil, err
	}

	e.logger.Info("reserves updated",
		"pool_id", p.ID.String(),
		"reserve_a", p.ReserveA,
		"reserve_b", p.ReserveB,
	)
	e.plugins.EmitReservesUpdated(ctx, p)
	return p, nil
}

// SetPoolEnabled enables or disables a pool. Enabling requires positive
// reserves.
func (e *Engine) SetPoolEnabled(ctx context.Context, poolID id.PoolID, enabled bool) (*pool.Pool, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	var p *pool.Pool
	err = e.mutate(ctx, "SetPoolEnabled", func(ctx context.Context, _ uint64) error {
		if err := e.requireRole(ctx, caller, capability.RoleAdmin); err != nil {
			return err
		}
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			if p, err = tx.GetPool(ctx, poolID); err != nil {
				return err
			}
			if enabled && (p.ReserveA == 0 || p.ReserveB == 0) {
				return invalid("reserve", "must be positive to enable the pool")
			}
			p.Enabled = enabled
			p.Touch()
			return tx.UpdatePool(ctx, p)
		})
	}, attribute.String("pool.id", poolID.String()), attribute.Bool("pool.enabled", enabled))
	if err != nil {
		return nil, err
	}

	e.logger.Info("pool status changed", "pool_id", p.ID.String(), "enabled", p.Enabled)
	e.plugins.EmitPoolStatusChanged(ctx, p)
	return p, nil
}

// ──────────────────────────────────────────────────
// Routing & Execution
// ──────────────────────────────────────────────────

// GetBestRoute quotes every enabled pool holding the pair on the chain and
// stores the best single-hop route. Each call creates a new route.
func (e *Engine) GetBestRoute(ctx context.Context, in RouteInput) (*swap.Route, error) {
	switch {
	case in.InputToken == "" || in.OutputToken == "":
		return nil, invalid("token", "must not be empty")
	case in.InputToken == in.OutputToken:
		return nil, invalid("output_token", "must differ from input_token")
	case in.InputAmount == 0:
		return nil, invalid("input_amount", "must be positive")
	}

	var rt *swap.Route
	err := e.mutate(ctx, "GetBestRoute", func(ctx context.Context, now uint64) error {
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			s, err := e.loadSettings(ctx, tx)
			if err != nil {
				return err
			}
			chainID := in.ChainID
			if chainID == 0 {
				chainID = s.LocalChainID
			}

			pools, err := tx.ListPools(ctx, pool.ListOpts{ChainID: chainID, EnabledOnly: true})
			if err != nil {
				return err
			}
			candidates := pools[:0]
			for _, p := range pools {
				if p.Enabled && p.Holds(in.InputToken, in.OutputToken) {
					candidates = append(candidates, p)
				}
			}
			if len(candidates) == 0 {
				return ErrNoRoute
			}

			q, err := pricing.BestQuote(candidates, in.InputToken, in.OutputToken, in.InputAmount)
			if err != nil {
				return err
			}
			gas, err := e.estimateGas(ctx, s.LocalChainID, chainID, 1)
			if err != nil {
				return err
			}

			rt = &swap.Route{
				Entity:          types.NewEntity(),
				ID:              id.NewRouteID(),
				InputToken:      in.InputToken,
				OutputToken:     in.OutputToken,
				InputAmount:     in.InputAmount,
				PoolPath:        []id.PoolID{q.PoolID},
				EstimatedOutput: q.Output,
				TotalFees:       q.Fee,
				GasCost:         gas,
				SlippageBps:     q.SlippageBps,
				ChainID:         chainID,
				QuotedAt:        now,
			}
			if err := tx.CreateRoute(ctx, rt); err != nil {
				return err
			}
			_, err = tx.IncrementCounter(ctx, settings.CounterRoutes)
			return err
		})
	}, attribute.String("route.input_token", in.InputToken), attribute.String("route.output_token", in.OutputToken))
	if err != nil {
		return nil, err
	}

	e.logger.Debug("route quoted",
		"route_id", rt.ID.String(),
		"pool_id", rt.PoolPath[0].String(),
		"estimated_output", rt.EstimatedOutput,
		"slippage_bps", rt.SlippageBps,
	)
	e.plugins.EmitRouteQuoted(ctx, rt)
	return rt, nil
}

// ExecuteSwap executes a quoted route for the caller. The route is re-quoted
// against live reserves and both the stored and the fresh quote must satisfy
// minOutput and the slippage ceiling. On success the pool reserves move, the
// route is consumed and the swap is recorded, all in one transaction.
func (e *Engine) ExecuteSwap(ctx context.Context, routeID id.RouteID, minOutput, maxSlippageBps uint64) (*swap.Swap, error) {
	trader, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}

	var sw *swap.Swap
	var p *pool.Pool
	err = e.mutate(ctx, "ExecuteSwap", func(ctx context.Context, now uint64) error {
		return e.store.Update(ctx, func(ctx context.Context, tx store.Tx) error {
			s, err := e.loadSettings(ctx, tx)
			if err != nil {
				return err
			}
			if !s.AggregatorEnabled {
				return ErrAggregatorDisabled
			}

			rt, err := tx.GetRoute(ctx, routeID)
			if err != nil {
				return err
			}
			if rt.Consumed {
				return ErrRouteConsumed
			}
			if rt.EstimatedOutput < minOutput ||
				rt.SlippageBps > pricing.EffectiveCeiling(maxSlippageBps, s.MaxSlippageBps) {
				return ErrSlippageTooHigh
			}
			if len(rt.PoolPath) == 0 {
				return ErrNoRoute
			}

			if p, err = tx.GetPool(ctx, rt.PoolPath[0]); err != nil {
				return err
			}
			if !p.Enabled {
				return ErrPoolDisabled
			}
			q, err := pricing.QuotePool(p, rt.InputToken, rt.InputAmount)
			if err != nil {
				return err
			}
			if err := pricing.CheckSlippage(q, minOutput, maxSlippageBps, s.MaxSlippageBps); err != nil {
				return err
			}

			newIn, err := types.Add(q.ReserveIn, q.InputAmount)
			if err != nil {
				return err
			}
			newOut, err := types.Sub(q.ReserveOut, q.Output)
			if err != nil {
				return err
			}
			p.SetReserves(rt.InputToken, newIn, newOut)
			p.Touch()
			if err := tx.UpdatePool(ctx, p); err != nil {
				return err
			}

			rt.Consumed = true
			rt.Touch()
			if err := tx.UpdateRoute(ctx, rt); err != nil {
				return err
			}

			sw = &swap.Swap{
				Entity:       types.NewEntity(),
				ID:           id.NewSwapID(),
				RouteID:      rt.ID,
				Trader:       trader,
				InputToken:   rt.InputToken,
				OutputToken:  rt.OutputToken,
				InputAmount:  q.InputAmount,
				OutputAmount: q.Output,
				FeeAmount:    q.Fee,
				SlippageBps:  q.SlippageBps,
				ExecutedAt:   now,
			}
			if err := tx.CreateSwap(ctx, sw); err != nil {
				return err
			}
			_, err = tx.IncrementCounter(ctx, settings.CounterSwaps)
			return err
		})
	}, attribute.String("route.id", routeID.String()))
	if err != nil {
		return nil, err
	}

	e.logger.Info("swap executed",
		"swap_id", sw.ID.String(),
		"trader", sw.Trader,
		"input", sw.InputAmount,
		"output", sw.OutputAmount,
		"slippage_bps", sw.SlippageBps,
	)
	e.plugins.EmitReservesUpdated(ctx, p)
	e.plugins.EmitSwapExecuted(ctx, sw)
	return sw, nil
}

// Quote prices a trade against a pool without persisting anything.
func (e *Engine) Quote(ctx context.Context, poolID id.PoolID, tokenIn string, amount uint64) (*Quote, error) {
	p, err := e.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if tokenIn != p.TokenA && tokenIn != p.TokenB {
		return nil, invalid("token_in", "not traded by this pool")
	}
	if amount == 0 {
		return nil, invalid("amount", "must be positive")
	}
	return pricing.QuotePool(p, tokenIn, amount)
}

// EstimateGas returns the gas cost of settling a path of the given
// complexity on chainID. A zero chainID means the local chain.
func (e *Engine) EstimateGas(ctx context.Context, chainID, complexity uint64) (uint64, error) {
	s, err := e.Settings(ctx)
	if err != nil {
		return 0, err
	}
	if chainID == 0 {
		chainID = s.LocalChainID
	}
	return e.estimateGas(ctx, s.LocalChainID, chainID, complexity)
}

func (e *Engine) estimateGas(ctx context.Context, localChain, chainID, complexity uint64) (uint64, error) {
	if chainID != localChain && e.chains == nil {
		return 0, fmt.Errorf("%w: chains", ErrNotConfigured)
	}
	return e.gas.Estimate(ctx, e.chains, localChain, chainID, complexity)
}

func (e *Engine) requireBridge(ctx context.Context, chainID uint64) error {
	if e.chains == nil {
		return fmt.Errorf("%w: chains", ErrNotConfigured)
	}
	return pricing.RequireBridge(ctx, e.chains, chainID)
}

// ──────────────────────────────────────────────────
// Protocol Settings
// ──────────────────────────────────────────────────

// SetAggregatorEnabled turns swap execution on or off.
func (e *Engine) SetAggregatorEnabled(ctx context.Context, enabled bool) error {
	return e.updateSettings(ctx, "SetAggregatorEnabled", func(s *settings.Settings) error {
		s.AggregatorEnabled = enabled
		return nil
	})
}

// SetMaxSlippage sets the protocol slippage ceiling, at most MaxSlippageBps.
func (e *Engine) SetMaxSlippage(ctx context.Context, bps uint64) error {
	return e.updateSettings(ctx, "SetMaxSlippage", func(s *settings.Settings) error {
		if bps > pricing.MaxSlippageBps {
			return invalid("max_slippage_bps", fmt.Sprintf("must not exceed %d", pricing.MaxSlippageBps))
		}
		s.MaxSlippageBps = bps
		return nil
	})
}

// SetMarketplaceFee sets the platform fee taken on settlements, at most
// 1000 bps.
func (e *Engine) SetMarketplaceFee(ctx context.Context, bps uint64) error {
	return e.updateSettings(ctx, "SetMarketplaceFee", func(s *settings.Settings) error {
		if bps > maxMarketplaceFeeBps {
			return invalid("marketplace_fee_bps", fmt.Sprintf("must not exceed %d", maxMarketplaceFeeBps))
		}
		s.MarketplaceFeeBps = bps
		return nil
	})
}

// SetPlatformAddress sets the principal that receives marketplace fees.
func (e *Engine) SetPlatformAddress(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	return e.updateSettings(ctx, "SetPlatformAddress", func(s *settings.Settings) error {
		if address == "" {
			return invalid("platform_address", "must not be empty")
		}
		s.PlatformAddress = address
		return nil
	})
}

// ──────────────────────────────────────────────────
// Swap Reads
// ──────────────────────────────────────────────────

// GetPool retrieves a pool by ID.
func (e *Engine) GetPool(ctx context.Context, poolID id.PoolID) (*pool.Pool, error) {
	var p *pool.Pool
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = tx.GetPool(ctx, poolID)
		return err
	})
	return p, err
}

// ListPools lists pools matching opts.
func (e *Engine) ListPools(ctx context.Context, opts pool.ListOpts) ([]*pool.Pool, error) {
	var result []*pool.Pool
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		result, err = tx.ListPools(ctx, opts)
		return err
	})
	return result, err
}

// GetRoute retrieves a route by ID.
func (e *Engine) GetRoute(ctx context.Context, routeID id.RouteID) (*swap.Route, error) {
	var rt *swap.Route
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rt, err = tx.GetRoute(ctx, routeID)
		return err
	})
	return rt, err
}

// GetSwap retrieves an executed swap by ID.
func (e *Engine) GetSwap(ctx context.Context, swapID id.SwapID) (*swap.Swap, error) {
	var sw *swap.Swap
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		sw, err = tx.GetSwap(ctx, swapID)
		return err
	})
	return sw, err
}

// ListSwaps lists executed swaps matching opts.
func (e *Engine) ListSwaps(ctx context.Context, opts swap.ListOpts) ([]*swap.Swap, error) {
	var result []*swap.Swap
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		result, err = tx.ListSwaps(ctx, opts)
		return err
	})
	return result, err
}

// Stats returns the entity counters and the protocol settings in force.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	err := e.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		counters := []struct {
			name string
			dst  *uint64
		}{
			{settings.CounterInvoices, &st.Invoices},
			{settings.CounterListings, &st.Listings},
			{settings.CounterAgreements, &st.Agreements},
			{settings.CounterPools, &st.Pools},
			{settings.CounterRoutes, &st.Routes},
			{settings.CounterSwaps, &st.Swaps},
			{settings.CounterProposals, &st.Proposals},
		}
		for _, c := range counters {
			v, err := tx.Counter(ctx, c.name)
			if err != nil {
				return fmt.Errorf("factoring: counter %s: %w", c.name, err)
			}
			*c.dst = v
		}
		s, err := e.loadSettings(ctx, tx)
		if err != nil {
			return err
		}
		st.MarketplaceFeeBps = s.MarketplaceFeeBps
		st.MaxSlippageBps = s.MaxSlippageBps
		st.AggregatorEnabled = s.AggregatorEnabled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
