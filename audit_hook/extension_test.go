package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/agreement"
	audithook "github.com/xraph/factoring/audit_hook"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/invoice"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, evt *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func TestInvoiceCreatedEvent(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)
	inv := &invoice.Invoice{ID: id.NewInvoiceID(), Number: "INV-1", Issuer: "acme", Amount: 500}

	require.NoError(t, ext.OnInvoiceCreated(context.Background(), inv))
	require.Len(t, s.events, 1)
	evt := s.events[0]
	assert.Equal(t, audithook.ActionInvoiceCreated, evt.Action)
	assert.Equal(t, audithook.ResourceInvoice, evt.Resource)
	assert.Equal(t, inv.ID.String(), evt.ResourceID)
	assert.Equal(t, "INV-1", evt.Metadata["invoice_number"])
	assert.Equal(t, uint64(500), evt.Metadata["amount"])
}

func TestSettlementFailedSeverity(t *testing.T) {
	a := &agreement.Agreement{ID: id.NewAgreementID(), Buyer: "fund", Seller: "acme"}
	ctx := context.Background()

	tests := []struct {
		name     string
		err      error
		severity string
		outcome  string
		step     string
	}{
		{
			name:     "Compensated",
			err:      &factoring.SettlementError{Step: factoring.StepPayPlatform, Err: errors.New("declined")},
			severity: audithook.SeverityError,
			outcome:  audithook.OutcomeFailure,
			step:     factoring.StepPayPlatform,
		},
		{
			name: "CompensationFailed",
			err: &factoring.SettlementError{
				Step:         factoring.StepDeliverToken,
				Err:          errors.New("locked"),
				Compensation: factoring.MultiError{Errors: []error{errors.New("refund failed")}},
			},
			severity: audithook.SeverityCritical,
			outcome:  audithook.OutcomePartial,
			step:     factoring.StepDeliverToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &sink{}
			require.NoError(t, audithook.New(s).OnSettlementFailed(ctx, a, tt.err))
			require.Len(t, s.events, 1)
			assert.Equal(t, tt.severity, s.events[0].Severity)
			assert.Equal(t, tt.outcome, s.events[0].Outcome)
			assert.Equal(t, tt.step, s.events[0].Metadata["step"])
			assert.NotEmpty(t, s.events[0].Reason)
		})
	}
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()
	inv := &invoice.Invoice{ID: id.NewInvoiceID()}

	s := &sink{}
	ext := audithook.New(s, audithook.WithEnabledActions(audithook.ActionInvoicePaid))
	require.NoError(t, ext.OnInvoiceCreated(ctx, inv))
	require.NoError(t, ext.OnInvoicePaid(ctx, inv))
	require.Len(t, s.events, 1)
	assert.Equal(t, audithook.ActionInvoicePaid, s.events[0].Action)

	s = &sink{}
	ext = audithook.New(s, audithook.WithDisabledActions(audithook.ActionInvoicePaid))
	require.NoError(t, ext.OnInvoiceCreated(ctx, inv))
	require.NoError(t, ext.OnInvoicePaid(ctx, inv))
	require.Len(t, s.events, 1)
	assert.Equal(t, audithook.ActionInvoiceCreated, s.events[0].Action)
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	assert.NoError(t, ext.OnInvoicePaid(context.Background(), &invoice.Invoice{ID: id.NewInvoiceID()}))
}
