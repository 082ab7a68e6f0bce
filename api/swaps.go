package api

import (
	"net/http"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/pool"
	"github.com/xraph/factoring/swap"
	"github.com/xraph/factoring/types"
)

// poolView decorates a pool with display prices.
type poolView struct {
	*pool.Pool
	// SpotPrice is TokenA per TokenB.
	SpotPrice string `json:"spot_price"`
	Fee       string `json:"fee"`
}

func viewPool(p *pool.Pool) poolView {
	return poolView{
		Pool:      p,
		SpotPrice: types.Ratio(p.ReserveA, p.ReserveB).String(),
		Fee:       types.BpsPercent(p.FeeRateBps),
	}
}

type quoteView struct {
	*factoring.Quote
	// ExecutionPrice is input per output.
	ExecutionPrice string `json:"execution_price"`
	Slippage       string `json:"slippage"`
}

// CreatePool registers a liquidity pool.
// POST /pools
func (h *Handler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var in factoring.CreatePoolInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.engine.CreatePool(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewPool(p))
}

// ListPools lists pools, optionally for one chain or enabled only.
// GET /pools
func (h *Handler) ListPools(w http.ResponseWriter, r *http.Request) {
	var (
		opts pool.ListOpts
		err  error
	)
	if opts.ChainID, err = queryUint(r, "chain_id"); err != nil {
		h.fail(w, r, err)
		return
	}
	opts.EnabledOnly = r.URL.Query().Get("enabled") == "true"
	if opts.Limit, err = queryInt(r, "limit"); err != nil {
		h.fail(w, r, err)
		return
	}
	if opts.Offset, err = queryInt(r, "offset"); err != nil {
		h.fail(w, r, err)
		return
	}
	pools, err := h.engine.ListPools(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]poolView, 0, len(pools))
	for _, p := range pools {
		views = append(views, viewPool(p))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetPool returns one pool.
// GET /pools/{id}
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	poolID, err := pathID(r, id.ParsePoolID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.engine.GetPool(r.Context(), poolID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPool(p))
}

// UpdateReserves replaces a pool's reserves.
// PUT /pools/{id}/reserves
func (h *Handler) UpdateReserves(w http.ResponseWriter, r *http.Request) {
	poolID, err := pathID(r, id.ParsePoolID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body struct {
		ReserveA uint64 `json:"reserve_a"`
		ReserveB uint64 `json:"reserve_b"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.engine.UpdateReserves(r.Context(), poolID, body.ReserveA, body.ReserveB)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPool(p))
}

// SetPoolEnabled enables or disables a pool.
// PUT /pools/{id}/enabled
func (h *Handler) SetPoolEnabled(w http.ResponseWriter, r *http.Request) {
	poolID, err := pathID(r, id.ParsePoolID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.engine.SetPoolEnabled(r.Context(), poolID, body.Enabled)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPool(p))
}

// QuotePool prices a trade against one pool without persisting it.
// GET /pools/{id}/quote?token_in=&amount=
func (h *Handler) QuotePool(w http.ResponseWriter, r *http.Request) {
	poolID, err := pathID(r, id.ParsePoolID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	amount, err := queryUint(r, "amount")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.engine.Quote(r.Context(), poolID, r.URL.Query().Get("token_in"), amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteView{
		Quote:          q,
		ExecutionPrice: types.Ratio(q.InputAmount, q.Output).String(),
		Slippage:       types.BpsPercent(q.SlippageBps),
	})
}

// GetBestRoute quotes the best pool for a trade and stores the route.
// POST /routes
func (h *Handler) GetBestRoute(w http.ResponseWriter, r *http.Request) {
	var in factoring.RouteInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	rt, err := h.engine.GetBestRoute(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rt)
}

// GetRoute returns one route.
// GET /routes/{id}
func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	routeID, err := pathID(r, id.ParseRouteID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rt, err := h.engine.GetRoute(r.Context(), routeID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// ExecuteSwap executes a quoted route as the caller.
// POST /routes/{id}/execute
func (h *Handler) ExecuteSwap(w http.ResponseWriter, r *http.Request) {
	routeID, err := pathID(r, id.ParseRouteID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var body struct {
		MinOutput      uint64 `json:"min_output"`
		MaxSlippageBps uint64 `json:"max_slippage_bps"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	sw, err := h.engine.ExecuteSwap(r.Context(), routeID, body.MinOutput, body.MaxSlippageBps)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sw)
}

// ListSwaps lists executed swaps, optionally for one trader.
// GET /swaps
func (h *Handler) ListSwaps(w http.ResponseWriter, r *http.Request) {
	opts := swap.ListOpts{Trader: r.URL.Query().Get("trader")}
	var err error
	if opts.Limit, err = queryInt(r, "limit"); err != nil {
		h.fail(w, r, err)
		return
	}
	if opts.Offset, err = queryInt(r, "offset"); err != nil {
		h.fail(w, r, err)
		return
	}
	swaps, err := h.engine.ListSwaps(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, swaps)
}

// GetSwap returns one executed swap.
// GET /swaps/{id}
func (h *Handler) GetSwap(w http.ResponseWriter, r *http.Request) {
	swapID, err := pathID(r, id.ParseSwapID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sw, err := h.engine.GetSwap(r.Context(), swapID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sw)
}

// EstimateGas returns the settlement gas for a chain and path complexity.
// GET /gas?chain_id=&complexity=
func (h *Handler) EstimateGas(w http.ResponseWriter, r *http.Request) {
	chainID, err := queryUint(r, "chain_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	complexity, err := queryUint(r, "complexity")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if complexity == 0 {
		complexity = 1
	}
	gas, err := h.engine.EstimateGas(r.Context(), chainID, complexity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"gas": gas})
}

// Stats returns protocol counters and settings.
// GET /stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetSettings returns the protocol settings in force.
// GET /settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Settings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSettings applies the fields present in the body, each as its own
// admin operation.
// PATCH /settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MarketplaceFeeBps *uint64 `json:"marketplace_fee_bps"`
		PlatformAddress   *string `json:"platform_address"`
		AggregatorEnabled *bool   `json:"aggregator_enabled"`
		MaxSlippageBps    *uint64 `json:"max_slippage_bps"`
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	var updates []func() error
	if body.MarketplaceFeeBps != nil {
		updates = append(updates, func() error { return h.engine.SetMarketplaceFee(ctx, *body.MarketplaceFeeBps) })
	}
	if body.PlatformAddress != nil {
		updates = append(updates, func() error { return h.engine.SetPlatformAddress(ctx, *body.PlatformAddress) })
	}
	if body.AggregatorEnabled != nil {
		updates = append(updates, func() error { return h.engine.SetAggregatorEnabled(ctx, *body.AggregatorEnabled) })
	}
	if body.MaxSlippageBps != nil {
		updates = append(updates, func() error { return h.engine.SetMaxSlippage(ctx, *body.MaxSlippageBps) })
	}
	for _, update := range updates {
		if err := update(); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	h.GetSettings(w, r)
}
