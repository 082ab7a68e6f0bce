package mock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring/capability/mock"
	"github.com/xraph/factoring/id"
)

func TestOwnership(t *testing.T) {
	ctx := context.Background()
	o := mock.NewOwnership()
	token := id.NewInvoiceID()

	_, err := o.OwnerOf(ctx, token)
	require.Error(t, err)

	o.SetOwner(token, "alice")
	require.ErrorIs(t, o.Transfer(ctx, token, "bob", "carol"), mock.ErrNotOwner)
	require.NoError(t, o.Transfer(ctx, token, "alice", "bob"))

	o.FailTransfer(2)
	require.NoError(t, o.Transfer(ctx, token, "bob", "carol"))
	require.ErrorIs(t, o.Transfer(ctx, token, "carol", "dave"), mock.ErrInjected)
	require.NoError(t, o.Transfer(ctx, token, "carol", "dave"))

	owner, err := o.OwnerOf(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "dave", owner)
}

func TestPayments(t *testing.T) {
	ctx := context.Background()
	p := mock.NewPayments()
	p.Fund("alice", 100)

	require.ErrorIs(t, p.Transfer(ctx, 101, "alice", "bob"), mock.ErrNoFunds)
	require.NoError(t, p.Transfer(ctx, 60, "alice", "bob"))

	p.FailTransfer(1)
	require.ErrorIs(t, p.Transfer(ctx, 10, "alice", "bob"), mock.ErrInjected)

	alice, err := p.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	bob, err := p.BalanceOf(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), alice)
	assert.Equal(t, uint64(60), bob)
}

func TestAccessAndChains(t *testing.T) {
	ctx := context.Background()
	a := mock.NewAccess()
	a.Grant("alice", "issuer", "admin")
	a.Revoke("alice", "admin")

	ok, err := a.HasRole(ctx, "issuer", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = a.HasRole(ctx, "admin", "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	c := mock.NewChains(1)
	active, err := c.IsChainActive(ctx, 1)
	require.NoError(t, err)
	assert.True(t, active)

	c.SetBridge(2, "0xbridge")
	bridge, err := c.BridgeAddress(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "0xbridge", bridge)
	active, err = c.IsChainActive(ctx, 2)
	require.NoError(t, err)
	assert.False(t, active)
}
