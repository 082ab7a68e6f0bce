// Package pricing implements constant-product swap pricing, price impact,
// gas estimation and single-hop route selection.
//
// All arithmetic is integer with floor division; intermediate products are
// computed in 128 bits so that large reserves cannot overflow.
package pricing

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/pool"
	"github.com/xraph/factoring/types"
)

// MaxSlippageBps is the protocol-wide hard cap on tolerated price impact.
const MaxSlippageBps uint64 = 500

var (
	// ErrInsufficientLiquidity is returned when a pool cannot price a trade.
	ErrInsufficientLiquidity = errors.New("factoring: insufficient liquidity")

	// ErrSlippageTooHigh is returned when a quote trips a slippage guard.
	ErrSlippageTooHigh = errors.New("factoring: slippage too high")

	// ErrInvalidParams is returned for out-of-range arguments.
	ErrInvalidParams = errors.New("factoring: invalid params")
)

// CalculateOutput prices a trade of input against reserveIn/reserveOut with
// the pool fee taken from the input side. It returns the output amount and
// the fee withheld.
func CalculateOutput(input, reserveIn, reserveOut, feeBps uint64) (output, fee uint64, err error) {
	if !types.ValidBps(feeBps) {
		return 0, 0, fmt.Errorf("%w: fee above %d bps", ErrInvalidParams, types.BpsDenominator)
	}
	fee, err = types.ApplyBps(input, feeBps)
	if err != nil {
		return 0, 0, err
	}
	inputWithFee := input - fee

	denominator, err := types.Add(reserveIn, inputWithFee)
	if err != nil {
		return 0, 0, err
	}
	if denominator == 0 {
		return 0, 0, ErrInsufficientLiquidity
	}

	output, err = types.MulDiv(inputWithFee, reserveOut, denominator)
	if err != nil {
		return 0, 0, err
	}
	return output, fee, nil
}

// PriceImpact returns how far the execution price of a trade lies above the
// pool's spot price, in basis points. Both prices are expressed as input units
// per output unit. When the output token is so plentiful that the spot price
// floors to zero basis points, the impact is taken from the exact cross
// product instead.
func PriceImpact(input, output, reserveIn, reserveOut uint64) (uint64, error) {
	if output == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0, ErrInsufficientLiquidity
	}

	spot, err := types.MulDiv(reserveIn, types.BpsDenominator, reserveOut)
	if err != nil {
		return 0, err
	}
	if spot == 0 {
		return crossImpact(input, output, reserveIn, reserveOut)
	}

	exec, err := types.MulDiv(input, types.BpsDenominator, output)
	if err != nil {
		return 0, err
	}
	if exec <= spot {
		return 0, nil
	}

	return types.MulDiv(exec-spot, types.BpsDenominator, spot)
}

// crossImpact returns (input*reserveOut - output*reserveIn)*10000 /
// (output*reserveIn), floored and clamped at zero.
func crossImpact(input, output, reserveIn, reserveOut uint64) (uint64, error) {
	u := func(v uint64) *big.Int { return new(big.Int).SetUint64(v) }
	paid := new(big.Int).Mul(u(input), u(reserveOut))
	fair := new(big.Int).Mul(u(output), u(reserveIn))
	if paid.Cmp(fair) <= 0 {
		return 0, nil
	}
	impact := paid.Sub(paid, fair)
	impact.Mul(impact, u(types.BpsDenominator))
	impact.Quo(impact, fair)
	if !impact.IsUint64() {
		return 0, types.ErrOverflow
	}
	return impact.Uint64(), nil
}

// Quote is a priced trade against a single pool.
type Quote struct {
	PoolID      id.PoolID `json:"pool_id"`
	InputToken  string    `json:"input_token"`
	OutputToken string    `json:"output_token"`
	InputAmount uint64    `json:"input_amount"`
	Output      uint64    `json:"output"`
	Fee         uint64    `json:"fee"`
	SlippageBps uint64    `json:"slippage_bps"`
	ReserveIn   uint64    `json:"reserve_in"`
	ReserveOut  uint64    `json:"reserve_out"`
}

// QuotePool prices a trade of amount tokenIn against p.
func QuotePool(p *pool.Pool, tokenIn string, amount uint64) (*Quote, error) {
	tokenOut := p.TokenB
	if p.TokenB == tokenIn {
		tokenOut = p.TokenA
	}
	reserveIn, reserveOut := p.Reserves(tokenIn)

	output, fee, err := CalculateOutput(amount, reserveIn, reserveOut, p.FeeRateBps)
	if err != nil {
		return nil, err
	}
	if output == 0 {
		return nil, ErrInsufficientLiquidity
	}

	slippage, err := PriceImpact(amount, output, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}

	return &Quote{
		PoolID:      p.ID,
		InputToken:  tokenIn,
		OutputToken: tokenOut,
		InputAmount: amount,
		Output:      output,
		Fee:         fee,
		SlippageBps: slippage,
		ReserveIn:   reserveIn,
		ReserveOut:  reserveOut,
	}, nil
}

// BestQuote evaluates every enabled pool that trades tokenIn for tokenOut and
// returns the quote with the largest output. Ties go to the pool listed
// first. It is a single-hop search and makes no claim of optimality across
// multi-pool paths.
func BestQuote(pools []*pool.Pool, tokenIn, tokenOut string, amount uint64) (*Quote, error) {
	var best *Quote
	for _, p := range pools {
		if !p.Enabled || !p.Holds(tokenIn, tokenOut) {
			continue
		}
		q, err := QuotePool(p, tokenIn, amount)
		if err != nil {
			continue
		}
		if best == nil || q.Output > best.Output {
			best = q
		}
	}
	if best == nil {
		return nil, ErrInsufficientLiquidity
	}
	return best, nil
}

// CheckSlippage applies the execution guards: the output must reach
// minOutput and the price impact may not exceed the smaller of the caller's
// ceiling and the protocol ceiling.
func CheckSlippage(q *Quote, minOutput, callerMaxBps, protocolMaxBps uint64) error {
	if q.Output < minOutput {
		return ErrSlippageTooHigh
	}
	if q.SlippageBps > EffectiveCeiling(callerMaxBps, protocolMaxBps) {
		return ErrSlippageTooHigh
	}
	return nil
}

// EffectiveCeiling returns the slippage ceiling in force. The protocol value
// is itself clamped to MaxSlippageBps.
func EffectiveCeiling(callerMaxBps, protocolMaxBps uint64) uint64 {
	return min(callerMaxBps, protocolMaxBps, MaxSlippageBps)
}
