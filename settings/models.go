package settings

// Settings holds the protocol parameters that admins can change at runtime.
type Settings struct {
	MarketplaceFeeBps uint64 `json:"marketplace_fee_bps"`
	PlatformAddress   string `json:"platform_address"`
	AggregatorEnabled bool   `json:"aggregator_enabled"`
	MaxSlippageBps    uint64 `json:"max_slippage_bps"`
	LocalChainID      uint64 `json:"local_chain_id"`
}

// Counter names. Each counter is advanced in the same transaction that
// creates the entity it counts.
const (
	CounterInvoices   = "invoices"
	CounterListings   = "listings"
	CounterAgreements = "agreements"
	CounterPools      = "pools"
	CounterRoutes     = "routes"
	CounterSwaps      = "swaps"
	CounterProposals  = "proposals"
)
