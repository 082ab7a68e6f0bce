package pool

import (
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/types"
)

// Pool is a constant-product liquidity pool between two tokens on one chain.
type Pool struct {
	types.Entity
	ID         id.PoolID `json:"id"`
	TokenA     string    `json:"token_a"`
	TokenB     string    `json:"token_b"`
	ReserveA   uint64    `json:"reserve_a"`
	ReserveB   uint64    `json:"reserve_b"`
	FeeRateBps uint64    `json:"fee_rate_bps"`
	ChainID    uint64    `json:"chain_id"`
	Enabled    bool      `json:"enabled"`
}

// Holds reports whether the pool trades the pair in either orientation.
func (p *Pool) Holds(tokenIn, tokenOut string) bool {
	return (p.TokenA == tokenIn && p.TokenB == tokenOut) ||
		(p.TokenB == tokenIn && p.TokenA == tokenOut)
}

// Reserves returns the reserves oriented for a trade of tokenIn.
func (p *Pool) Reserves(tokenIn string) (reserveIn, reserveOut uint64) {
	if p.TokenA == tokenIn {
		return p.ReserveA, p.ReserveB
	}
	return p.ReserveB, p.ReserveA
}

// SetReserves writes reserves given in the orientation of tokenIn.
func (p *Pool) SetReserves(tokenIn string, reserveIn, reserveOut uint64) {
	if p.TokenA == tokenIn {
		p.ReserveA, p.ReserveB = reserveIn, reserveOut
		return
	}
	p.ReserveB, p.ReserveA = reserveIn, reserveOut
}
