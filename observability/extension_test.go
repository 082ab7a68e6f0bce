package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/agreement"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/observability"
	"github.com/xraph/factoring/swap"
)

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))
	ctx := context.Background()

	require.NoError(t, m.OnInvoiceCreated(ctx, &invoice.Invoice{Amount: 1_000}))
	require.NoError(t, m.OnInvoiceCreated(ctx, &invoice.Invoice{Amount: 2_000}))
	require.NoError(t, m.OnSwapExecuted(ctx, &swap.Swap{SlippageBps: 40}))

	failed := &factoring.SettlementError{
		Step:         factoring.StepDeliverToken,
		Err:          errors.New("locked"),
		Compensation: factoring.MultiError{Errors: []error{errors.New("refund failed")}},
	}
	require.NoError(t, m.OnSettlementFailed(ctx, &agreement.Agreement{}, failed))
	require.NoError(t, m.OnSettlementFailed(ctx, &agreement.Agreement{}, &factoring.SettlementError{Err: errors.New("x")}))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.InvoiceCreated.(prometheus.Counter)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SwapExecuted.(prometheus.Counter)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SettlementFailed.(prometheus.Counter)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CompensationFailed.(prometheus.Counter)))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["factoring_invoice_created_total"])
	assert.True(t, names["factoring_invoice_amount"])
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)

	a := f.Counter("factoring.pool.created")
	b := f.Counter("factoring.pool.created")
	a.Inc()
	b.Inc()
	assert.Equal(t, float64(2), testutil.ToFloat64(a.(prometheus.Counter)))
}
