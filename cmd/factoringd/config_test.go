package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/store/memory"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, uint64(250), cfg.MarketplaceFeeBps)
	assert.Equal(t, uint64(1), cfg.LocalChainID)
	assert.Empty(t, cfg.Balances)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FACTORING_ADMINS", "ops,treasury")
	t.Setenv("FACTORING_BALANCES", "fund-one=5000,fund-two=70")
	t.Setenv("FACTORING_BRIDGES", "7=bridge-7")
	t.Setenv("FACTORING_SWEEP_INTERVAL", "1m")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"ops", "treasury"}, cfg.Admins)
	assert.Equal(t, map[string]uint64{"fund-one": 5000, "fund-two": 70}, cfg.Balances)
	assert.Equal(t, map[uint64]string{7: "bridge-7"}, cfg.Bridges)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestLoadConfigDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FACTORING_PLATFORM_ADDRESS=treasury\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("FACTORING_PLATFORM_ADDRESS") })

	cfg, err := loadConfig(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "treasury", cfg.PlatformAddress)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"FACTORING_STORE": "redis"}},
		{"postgres without dsn", map[string]string{"FACTORING_STORE": "postgres"}},
		{"mongo without uri", map[string]string{"FACTORING_STORE": "mongo"}},
		{"zero chain", map[string]string{"FACTORING_LOCAL_CHAIN_ID": "0"}},
		{"bad balance", map[string]string{"FACTORING_BALANCES": "fund-one"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig()
			assert.Error(t, err)
		})
	}
}

func TestOpenStoreMemory(t *testing.T) {
	s, err := openStore(context.Background(), Config{Store: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
}

func TestDevKitSeeding(t *testing.T) {
	ctx := context.Background()
	d := newDevKit(Config{
		LocalChainID: 1,
		Issuers:      []string{"acme"},
		Admins:       []string{"ops"},
		Balances:     map[string]uint64{"fund-one": 900},
		Chains:       []uint64{7},
		Bridges:      map[uint64]string{7: "bridge-7"},
	})

	ok, err := d.access.HasRole(ctx, capability.RoleIssuer, "acme")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.access.HasRole(ctx, capability.RoleAdmin, "acme")
	require.NoError(t, err)
	assert.False(t, ok)

	balance, err := d.payments.BalanceOf(ctx, "fund-one")
	require.NoError(t, err)
	assert.Equal(t, uint64(900), balance)

	for _, chainID := range []uint64{1, 7} {
		active, err := d.chains.IsChainActive(ctx, chainID)
		require.NoError(t, err)
		assert.True(t, active)
	}
	bridge, err := d.chains.BridgeAddress(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "bridge-7", bridge)

	inv := &invoice.Invoice{ID: id.NewInvoiceID(), Issuer: "acme"}
	sync := d.ownershipSync().(*ownershipSync)
	require.NoError(t, sync.OnInvoiceTokenized(ctx, inv))
	owner, err := d.owners.OwnerOf(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
}
