package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/plugin"
	"github.com/xraph/factoring/swap"
)

type counter struct {
	name    string
	created atomic.Int32
	swaps   atomic.Int32
	fail    bool
}

func (c *counter) Name() string { return c.name }

func (c *counter) OnInvoiceCreated(context.Context, *invoice.Invoice) error {
	c.created.Add(1)
	if c.fail {
		return errors.New("boom")
	}
	return nil
}

func (c *counter) OnSwapExecuted(context.Context, *swap.Swap) error {
	c.swaps.Add(1)
	return nil
}

type sleeper struct{}

func (sleeper) Name() string { return "sleeper" }

func (sleeper) OnInvoiceCreated(ctx context.Context, _ *invoice.Invoice) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func newRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegister(t *testing.T) {
	r := newRegistry()
	require.NoError(t, r.Register(&counter{name: "a"}))
	require.NoError(t, r.Register(&counter{name: "b"}))
	assert.Error(t, r.Register(&counter{name: "a"}))

	assert.Equal(t, 2, r.Count())
	assert.Equal(t, "b", r.Get("b").Name())
	assert.Nil(t, r.Get("missing"))
	assert.Len(t, r.List(), 2)
}

func TestEmitDispatchesToImplementers(t *testing.T) {
	r := newRegistry()
	failing := &counter{name: "failing", fail: true}
	healthy := &counter{name: "healthy"}
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(healthy))
	require.NoError(t, r.Register(bare{}))

	ctx := context.Background()
	r.EmitInvoiceCreated(ctx, &invoice.Invoice{Number: "INV-1"})
	r.EmitSwapExecuted(ctx, &swap.Swap{})
	r.EmitSwapExecuted(ctx, &swap.Swap{})

	assert.Equal(t, int32(1), failing.created.Load())
	assert.Equal(t, int32(1), healthy.created.Load())
	assert.Equal(t, int32(2), healthy.swaps.Load())
}

// bare implements only the base interface.
type bare struct{}

func (bare) Name() string { return "bare" }

func TestEmitTimeout(t *testing.T) {
	r := newRegistry().WithTimeout(20 * time.Millisecond)
	after := &counter{name: "after"}
	require.NoError(t, r.Register(sleeper{}))
	require.NoError(t, r.Register(after))

	start := time.Now()
	r.EmitInvoiceCreated(context.Background(), &invoice.Invoice{})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int32(1), after.created.Load())
}
