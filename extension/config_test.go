package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/capability/mock"
	"github.com/xraph/factoring/pricing"
	"github.com/xraph/factoring/store/memory"
)

func TestWithDefaults(t *testing.T) {
	cfg := Config{PlatformAddress: "treasury", Gas: pricing.GasSchedule{PerHop: 10}}.withDefaults()

	assert.Equal(t, "/factoring", cfg.BasePath)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, uint64(250), cfg.MarketplaceFeeBps)
	assert.Equal(t, "treasury", cfg.PlatformAddress)
	assert.Equal(t, uint64(pricing.MaxSlippageBps), cfg.MaxSlippageBps)
	assert.Equal(t, uint64(1), cfg.LocalChainID)
	assert.Equal(t, uint64(100_000), cfg.Gas.SameChain)
	assert.Equal(t, uint64(10), cfg.Gas.PerHop)
}

func TestMergeFilePrecedence(t *testing.T) {
	file := Config{BasePath: "/api", MarketplaceFeeBps: 100}
	programmatic := Config{
		BasePath:          "/ignored",
		MarketplaceFeeBps: 300,
		PlatformAddress:   "treasury",
		DisableMigrate:    true,
		SweepInterval:     time.Minute,
	}

	cfg := merge(file, programmatic)

	assert.Equal(t, "/api", cfg.BasePath)
	assert.Equal(t, uint64(100), cfg.MarketplaceFeeBps)
	assert.Equal(t, "treasury", cfg.PlatformAddress)
	assert.True(t, cfg.DisableMigrate)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, uint64(1), cfg.LocalChainID)
}

func TestEngineOptions(t *testing.T) {
	cfg := Config{SweepInterval: -1}.withDefaults()
	assert.Len(t, cfg.engineOptions(), 4)
	assert.Len(t, cfg.engineOptions(nil, nil), 6)
}

func TestCapabilityOptions(t *testing.T) {
	ctx := context.Background()
	newEngine := func(opts ...Option) *factoring.Engine {
		e := New(opts...)
		cfg := DefaultConfig()
		return factoring.New(memory.New(), cfg.engineOptions(e.engineOpts...)...)
	}
	in := factoring.CreatePoolInput{
		TokenA:     "USDC",
		TokenB:     "INV",
		ReserveA:   10_000,
		ReserveB:   10_000,
		FeeRateBps: 30,
		ChainID:    1,
	}
	admin := factoring.WithCaller(ctx, "ops")

	_, err := newEngine().CreatePool(admin, in)
	assert.ErrorIs(t, err, factoring.ErrUnauthorized)

	roles := mock.NewAccess()
	roles.Grant("ops", capability.RoleAdmin)
	_, err = newEngine(WithAccess(roles), WithChains(mock.NewChains(1))).CreatePool(admin, in)
	require.NoError(t, err)
}
