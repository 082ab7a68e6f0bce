package swap

import (
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/types"
)

// Route is a quoted path for a swap. Routes are single-use and are re-quoted
// against live reserves at execution.
type Route struct {
	types.Entity
	ID              id.RouteID  `json:"id"`
	InputToken      string      `json:"input_token"`
	OutputToken     string      `json:"output_token"`
	InputAmount     uint64      `json:"input_amount"`
	PoolPath        []id.PoolID `json:"pool_path"`
	EstimatedOutput uint64      `json:"estimated_output"`
	TotalFees       uint64      `json:"total_fees"`
	GasCost         uint64      `json:"gas_cost"`
	SlippageBps     uint64      `json:"slippage_bps"`
	ChainID         uint64      `json:"chain_id"`
	QuotedAt        uint64      `json:"quoted_at"`
	Consumed        bool        `json:"consumed"`
}

// Swap is an executed trade against a route.
type Swap struct {
	types.Entity
	ID           id.SwapID  `json:"id"`
	RouteID      id.RouteID `json:"route_id"`
	Trader       string     `json:"trader"`
	InputToken   string     `json:"input_token"`
	OutputToken  string     `json:"output_token"`
	InputAmount  uint64     `json:"input_amount"`
	OutputAmount uint64     `json:"output_amount"`
	FeeAmount    uint64     `json:"fee_amount"`
	SlippageBps  uint64     `json:"slippage_bps"`
	ExecutedAt   uint64     `json:"executed_at"`
}
