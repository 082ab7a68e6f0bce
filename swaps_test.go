package factoring_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/pool"
	"github.com/xraph/factoring/swap"
)

func (f *fixture) pool(t *testing.T, reserveA, reserveB, feeBps uint64) *pool.Pool {
	t.Helper()
	p, err := f.engine.CreatePool(as(admin), factoring.CreatePoolInput{
		TokenA:     "USDC",
		TokenB:     "INVT",
		ReserveA:   reserveA,
		ReserveB:   reserveB,
		FeeRateBps: feeBps,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) route(t *testing.T, amount uint64) *swap.Route {
	t.Helper()
	rt, err := f.engine.GetBestRoute(context.Background(), factoring.RouteInput{
		InputToken:  "USDC",
		OutputToken: "INVT",
		InputAmount: amount,
	})
	require.NoError(t, err)
	return rt
}

func TestCalculateOutputReference(t *testing.T) {
	out, fee, err := factoring.CalculateOutput(1000, 10_000, 10_000, 30)
	require.NoError(t, err)
	assert.Equal(t, uint64(906), out)
	assert.Equal(t, uint64(3), fee)
}

func TestCreatePool(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		caller string
		in     factoring.CreatePoolInput
		want   error
	}{
		{"NotAdmin", oracle, factoring.CreatePoolInput{TokenA: "A", TokenB: "B", ReserveA: 1, ReserveB: 1}, factoring.ErrUnauthorized},
		{"SameToken", admin, factoring.CreatePoolInput{TokenA: "A", TokenB: "A", ReserveA: 1, ReserveB: 1}, factoring.ErrInvalidParams},
		{"ZeroReserve", admin, factoring.CreatePoolInput{TokenA: "A", TokenB: "B", ReserveA: 1}, factoring.ErrInvalidParams},
		{"FeeTooHigh", admin, factoring.CreatePoolInput{TokenA: "A", TokenB: "B", ReserveA: 1, ReserveB: 1, FeeRateBps: 10_000}, factoring.ErrInvalidParams},
		{"InactiveChain", admin, factoring.CreatePoolInput{TokenA: "A", TokenB: "B", ReserveA: 1, ReserveB: 1, ChainID: 5}, factoring.ErrChainInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreatePool(as(tt.caller), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("RemoteChainNeedsBridge", func(t *testing.T) {
		in := factoring.CreatePoolInput{TokenA: "A", TokenB: "B", ReserveA: 1, ReserveB: 1, ChainID: 5}
		f.chains.SetActive(5, true)
		_, err := f.engine.CreatePool(as(admin), in)
		require.ErrorIs(t, err, factoring.ErrChainInactive)

		f.chains.SetBridge(5, "bridge-5")
		p, err := f.engine.CreatePool(as(admin), in)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), p.ChainID)
	})

	p := f.pool(t, 1_000, 2_000, 30)
	assert.Equal(t, uint64(1), p.ChainID)
	assert.True(t, p.Enabled)

	stats, err := f.engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Pools)
}

// poolRecorder captures pool status hooks.
type poolRecorder struct {
	mu      sync.Mutex
	enabled []bool
}

func (r *poolRecorder) Name() string { return "pool-recorder" }

func (r *poolRecorder) OnPoolStatusChanged(_ context.Context, p *pool.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = append(r.enabled, p.Enabled)
	return nil
}

func TestUpdateReserves(t *testing.T) {
	rec := &poolRecorder{}
	f := newFixture(t, factoring.WithPlugin(rec))
	p := f.pool(t, 1_000, 1_000, 30)

	_, err := f.engine.UpdateReserves(as(buyer), p.ID, 5, 5)
	require.ErrorIs(t, err, factoring.ErrUnauthorized)

	got, err := f.engine.UpdateReserves(as(oracle), p.ID, 5_000, 6_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), got.ReserveA)
	assert.Equal(t, uint64(6_000), got.ReserveB)

	_, err = f.engine.UpdateReserves(as(admin), p.ID, 0, 6_000)
	require.ErrorIs(t, err, factoring.ErrInvalidParams)

	_, err = f.engine.SetPoolEnabled(as(admin), p.ID, false)
	require.NoError(t, err)
	_, err = f.engine.UpdateReserves(as(admin), p.ID, 0, 6_000)
	require.NoError(t, err)

	_, err = f.engine.SetPoolEnabled(as(admin), p.ID, true)
	require.ErrorIs(t, err, factoring.ErrInvalidParams)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []bool{false}, rec.enabled)
}

func TestGetBestRoute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shallow := f.pool(t, 10_000, 10_000, 30)
	deep := f.pool(t, 1_000_000, 1_000_000, 30)

	rt := f.route(t, 1_000)
	assert.Equal(t, []factoring.ID{deep.ID}, rt.PoolPath)
	assert.Equal(t, uint64(996), rt.EstimatedOutput)
	assert.Equal(t, uint64(3), rt.TotalFees)
	assert.Equal(t, uint64(40), rt.SlippageBps)
	assert.Equal(t, uint64(100_000), rt.GasCost)
	assert.False(t, rt.Consumed)

	t.Run("ReverseOrientation", func(t *testing.T) {
		rev, err := f.engine.GetBestRoute(ctx, factoring.RouteInput{InputToken: "INVT", OutputToken: "USDC", InputAmount: 1_000})
		require.NoError(t, err)
		assert.Equal(t, []factoring.ID{deep.ID}, rev.PoolPath)
	})

	t.Run("DisabledPoolIgnored", func(t *testing.T) {
		_, err := f.engine.SetPoolEnabled(as(admin), deep.ID, false)
		require.NoError(t, err)
		defer func() {
			_, err := f.engine.SetPoolEnabled(as(admin), deep.ID, true)
			require.NoError(t, err)
		}()
		rt := f.route(t, 1_000)
		assert.Equal(t, []factoring.ID{shallow.ID}, rt.PoolPath)
	})

	t.Run("NoPool", func(t *testing.T) {
		_, err := f.engine.GetBestRoute(ctx, factoring.RouteInput{InputToken: "USDC", OutputToken: "EURC", InputAmount: 1})
		assert.ErrorIs(t, err, factoring.ErrNoRoute)
	})

	t.Run("NewRouteEachCall", func(t *testing.T) {
		again := f.route(t, 1_000)
		assert.NotEqual(t, rt.ID, again.ID)
	})
}

func TestExecuteSwap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pool(t, 1_000_000, 1_000_000, 30)
	rt := f.route(t, 1_000)

	sw, err := f.engine.ExecuteSwap(as(buyer), rt.ID, 990, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(996), sw.OutputAmount)
	assert.Equal(t, uint64(3), sw.FeeAmount)
	assert.Equal(t, buyer, sw.Trader)

	got, err := f.engine.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_001_000), got.ReserveA)
	assert.Equal(t, uint64(999_004), got.ReserveB)

	consumed, err := f.engine.GetRoute(ctx, rt.ID)
	require.NoError(t, err)
	assert.True(t, consumed.Consumed)

	_, err = f.engine.ExecuteSwap(as(buyer), rt.ID, 0, 500)
	require.ErrorIs(t, err, factoring.ErrRouteConsumed)

	swaps, err := f.engine.ListSwaps(ctx, swap.ListOpts{Trader: buyer})
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	assert.Equal(t, sw.ID, swaps[0].ID)

	stats, err := f.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Swaps)
	assert.Equal(t, uint64(1), stats.Routes)
	assert.True(t, stats.AggregatorEnabled)
}

func TestExecuteSwapSlippageCeiling(t *testing.T) {
	f := newFixture(t)
	f.pool(t, 10_000, 10_000, 30)
	rt := f.route(t, 1_000)
	require.Equal(t, uint64(906), rt.EstimatedOutput)
	require.Greater(t, rt.SlippageBps, uint64(500))

	_, err := f.engine.ExecuteSwap(as(buyer), rt.ID, 0, 10_000)
	require.ErrorIs(t, err, factoring.ErrSlippageTooHigh)

	f.pool(t, 1_000_000, 1_000_000, 30)
	small := f.route(t, 1_000)

	t.Run("MinOutput", func(t *testing.T) {
		_, err := f.engine.ExecuteSwap(as(buyer), small.ID, 997, 500)
		assert.ErrorIs(t, err, factoring.ErrSlippageTooHigh)
	})

	t.Run("ProtocolCeiling", func(t *testing.T) {
		require.NoError(t, f.engine.SetMaxSlippage(as(admin), 10))
		defer func() { require.NoError(t, f.engine.SetMaxSlippage(as(admin), 500)) }()
		_, err := f.engine.ExecuteSwap(as(buyer), small.ID, 0, 500)
		assert.ErrorIs(t, err, factoring.ErrSlippageTooHigh)
	})

	t.Run("CapCannotBeRaised", func(t *testing.T) {
		err := f.engine.SetMaxSlippage(as(admin), 501)
		assert.ErrorIs(t, err, factoring.ErrInvalidParams)
	})

	_, err = f.engine.ExecuteSwap(as(buyer), small.ID, 0, 500)
	require.NoError(t, err)
}

func TestExecuteSwapRequotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pool(t, 1_000_000, 1_000_000, 30)
	rt := f.route(t, 1_000)

	_, err := f.engine.UpdateReserves(as(oracle), p.ID, 1_000_000, 500_000)
	require.NoError(t, err)

	_, err = f.engine.ExecuteSwap(as(buyer), rt.ID, rt.EstimatedOutput, 500)
	require.ErrorIs(t, err, factoring.ErrSlippageTooHigh)

	stale, err := f.engine.GetRoute(ctx, rt.ID)
	require.NoError(t, err)
	assert.False(t, stale.Consumed)

	sw, err := f.engine.ExecuteSwap(as(buyer), rt.ID, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(498), sw.OutputAmount)
}

func TestExecuteSwapGuards(t *testing.T) {
	f := newFixture(t)
	p := f.pool(t, 1_000_000, 1_000_000, 30)
	rt := f.route(t, 1_000)

	require.NoError(t, f.engine.SetAggregatorEnabled(as(admin), false))
	_, err := f.engine.ExecuteSwap(as(buyer), rt.ID, 0, 500)
	require.ErrorIs(t, err, factoring.ErrAggregatorDisabled)
	require.NoError(t, f.engine.SetAggregatorEnabled(as(admin), true))

	_, err = f.engine.SetPoolEnabled(as(admin), p.ID, false)
	require.NoError(t, err)
	_, err = f.engine.ExecuteSwap(as(buyer), rt.ID, 0, 500)
	require.ErrorIs(t, err, factoring.ErrPoolDisabled)

	_, err = f.engine.ExecuteSwap(context.Background(), rt.ID, 0, 500)
	require.ErrorIs(t, err, factoring.ErrUnauthorized)

	_, err = f.engine.ExecuteSwap(as(buyer), factoring.ID{}, 0, 500)
	assert.True(t, factoring.IsNotFound(err))
}

func TestEstimateGas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gas, err := f.engine.EstimateGas(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), gas)

	_, err = f.engine.EstimateGas(ctx, 7, 1)
	require.ErrorIs(t, err, factoring.ErrChainInactive)

	f.chains.SetActive(7, true)
	f.chains.SetBridge(7, "bridge-7")
	gas, err = f.engine.EstimateGas(ctx, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(350_000), gas)
}

func TestProtocolSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.engine.SetMarketplaceFee(as(buyer), 100), factoring.ErrUnauthorized)
	assert.ErrorIs(t, f.engine.SetMarketplaceFee(as(admin), 1_001), factoring.ErrInvalidParams)
	assert.ErrorIs(t, f.engine.SetPlatformAddress(as(admin), " "), factoring.ErrInvalidParams)

	require.NoError(t, f.engine.SetMarketplaceFee(as(admin), 1_000))
	require.NoError(t, f.engine.SetPlatformAddress(as(admin), "treasury"))

	s, err := f.engine.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), s.MarketplaceFeeBps)
	assert.Equal(t, "treasury", s.PlatformAddress)
	assert.Equal(t, uint64(500), s.MaxSlippageBps)
}
