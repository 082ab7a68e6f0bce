package factoring_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/agreement"
	"github.com/xraph/factoring/capability/mock"
	"github.com/xraph/factoring/clock"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/listing"
)

// settlementRecorder captures settlement and sweep hooks.
type settlementRecorder struct {
	mu        sync.Mutex
	completed []string
	failed    []error
	statuses  []agreement.Status
	sweeps    int
}

func (r *settlementRecorder) Name() string { return "settlement-recorder" }

func (r *settlementRecorder) OnSettlementCompleted(_ context.Context, a *agreement.Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, a.ID.String())
	return nil
}

func (r *settlementRecorder) OnSettlementFailed(_ context.Context, a *agreement.Agreement, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
	r.statuses = append(r.statuses, a.Status)
	return nil
}

func (r *settlementRecorder) OnSweepCompleted(_ context.Context, _, _ int, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps++
	return nil
}

func (f *fixture) list(t *testing.T, inv *invoice.Invoice, expiry uint64) *listing.Listing {
	t.Helper()
	l, err := f.engine.ListInvoice(as(issuer), factoring.ListInvoiceInput{
		TokenID:     inv.ID,
		Price:       10_000,
		ExpiryClock: expiry,
		MinPurchase: 1,
		MaxPurchase: 100,
		Terms:       "net-30",
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) agree(t *testing.T, l *listing.Listing, settleBy uint64) *agreement.Agreement {
	t.Helper()
	a, err := f.engine.CreatePurchaseAgreement(as(buyer), factoring.PurchaseInput{
		ListingID:       l.ID,
		PurchaseAmount:  50,
		SettlementClock: settleBy,
	})
	require.NoError(t, err)
	return a
}

func TestListInvoice(t *testing.T) {
	f := newFixture(t)
	inv := f.tokenized(t, "INV-500", 100)
	ctx := context.Background()

	t.Run("NotOwner", func(t *testing.T) {
		_, err := f.engine.ListInvoice(as(buyer), factoring.ListInvoiceInput{
			TokenID: inv.ID, Price: 1, ExpiryClock: 500, MaxPurchase: 1,
		})
		assert.ErrorIs(t, err, factoring.ErrUnauthorized)
	})

	t.Run("ExpiryInPast", func(t *testing.T) {
		_, err := f.engine.ListInvoice(as(issuer), factoring.ListInvoiceInput{
			TokenID: inv.ID, Price: 1, ExpiryClock: 100, MaxPurchase: 1,
		})
		assert.ErrorIs(t, err, factoring.ErrExpired)
	})

	t.Run("InvalidRange", func(t *testing.T) {
		_, err := f.engine.ListInvoice(as(issuer), factoring.ListInvoiceInput{
			TokenID: inv.ID, Price: 1, ExpiryClock: 500, MinPurchase: 5, MaxPurchase: 1,
		})
		assert.ErrorIs(t, err, factoring.ErrInvalidParams)
	})

	l := f.list(t, inv, 500)
	assert.Equal(t, listing.StatusActive, l.Status)
	assert.Equal(t, uint64(100), l.ListedAt)

	t.Run("Exclusive", func(t *testing.T) {
		_, err := f.engine.ListInvoice(as(issuer), factoring.ListInvoiceInput{
			TokenID: inv.ID, Price: 2, ExpiryClock: 600, MaxPurchase: 1,
		})
		assert.ErrorIs(t, err, factoring.ErrAlreadyListed)

		got, err := f.engine.ListingForToken(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, l.ID, got.ID)
	})

	t.Run("Cancel", func(t *testing.T) {
		_, err := f.engine.CancelListing(as(buyer), l.ID)
		assert.ErrorIs(t, err, factoring.ErrUnauthorized)

		got, err := f.engine.CancelListing(as(issuer), l.ID)
		require.NoError(t, err)
		assert.Equal(t, listing.StatusCancelled, got.Status)

		_, err = f.engine.CancelListing(as(issuer), l.ID)
		assert.ErrorIs(t, err, factoring.ErrListingNotActive)

		_, err = f.engine.ListingForToken(ctx, inv.ID)
		assert.True(t, factoring.IsNotFound(err))

		relisted := f.list(t, inv, 700)
		assert.NotEqual(t, l.ID, relisted.ID)
	})
}

func TestCreatePurchaseAgreement(t *testing.T) {
	f := newFixture(t)
	inv := f.tokenized(t, "INV-600", 100)
	l := f.list(t, inv, 500)

	tests := []struct {
		name   string
		caller string
		in     factoring.PurchaseInput
		want   error
	}{
		{"SellerBuys", issuer, factoring.PurchaseInput{ListingID: l.ID, PurchaseAmount: 10, SettlementClock: 300}, factoring.ErrInvalidParams},
		{"BelowMinimum", buyer, factoring.PurchaseInput{ListingID: l.ID, PurchaseAmount: 0, SettlementClock: 300}, factoring.ErrInvalidParams},
		{"AboveMaximum", buyer, factoring.PurchaseInput{ListingID: l.ID, PurchaseAmount: 101, SettlementClock: 300}, factoring.ErrInvalidParams},
		{"SettlementInPast", buyer, factoring.PurchaseInput{ListingID: l.ID, PurchaseAmount: 10, SettlementClock: 100}, factoring.ErrInvalidParams},
		{"UnknownListing", buyer, factoring.PurchaseInput{PurchaseAmount: 10, SettlementClock: 300}, factoring.ErrListingNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreatePurchaseAgreement(as(tt.caller), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	a := f.agree(t, l, 300)
	assert.Equal(t, agreement.StatusPending, a.Status)
	assert.Equal(t, l.Price, a.AgreedPrice)
	assert.Equal(t, issuer, a.Seller)
	assert.Equal(t, uint64(100), a.AgreementClock)
}

func TestExecutePurchase(t *testing.T) {
	rec := &settlementRecorder{}
	f := newFixture(t, factoring.WithPlugin(rec))
	inv := f.tokenized(t, "INV-700", 100)
	l := f.list(t, inv, 500)
	a := f.agree(t, l, 300)
	f.payments.Fund(buyer, 10_000)
	ctx := context.Background()

	_, err := f.engine.ExecutePurchase(as(payer), a.ID)
	require.ErrorIs(t, err, factoring.ErrUnauthorized)

	got, err := f.engine.ExecutePurchase(as(buyer), a.ID)
	require.NoError(t, err)
	assert.Equal(t, agreement.StatusCompleted, got.Status)
	assert.Equal(t, uint64(250), got.PlatformFee)
	assert.Equal(t, uint64(100), got.CompletedAt)

	assert.Equal(t, uint64(0), f.balance(t, buyer))
	assert.Equal(t, uint64(9_750), f.balance(t, issuer))
	assert.Equal(t, uint64(250), f.balance(t, platform))
	assert.Equal(t, buyer, f.owner(t, inv))

	sold, err := f.engine.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusSold, sold.Status)
	_, err = f.engine.ListingForToken(ctx, inv.ID)
	assert.True(t, factoring.IsNotFound(err))

	_, err = f.engine.ExecutePurchase(as(buyer), a.ID)
	assert.ErrorIs(t, err, factoring.ErrAgreementNotPending)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{a.ID.String()}, rec.completed)
	assert.Empty(t, rec.failed)
}

func TestExecutePurchaseAtomicity(t *testing.T) {
	tests := []struct {
		name   string
		inject func(f *fixture)
		step   string
	}{
		{
			name:   "PaymentFails",
			inject: func(f *fixture) { f.payments.FailTransfer(2) },
			step:   factoring.StepPayPlatform,
		},
		{
			name:   "TokenTransferFails",
			inject: func(f *fixture) { f.owners.FailTransfer(1) },
			step:   factoring.StepDeliverToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &settlementRecorder{}
			f := newFixture(t, factoring.WithPlugin(rec))
			inv := f.tokenized(t, "INV-800", 100)
			l := f.list(t, inv, 500)
			a := f.agree(t, l, 300)
			f.payments.Fund(buyer, 10_000)
			tt.inject(f)

			_, err := f.engine.ExecutePurchase(as(buyer), a.ID)
			require.ErrorIs(t, err, factoring.ErrSettlementFailed)
			require.ErrorIs(t, err, mock.ErrInjected)

			var serr *factoring.SettlementError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.step, serr.Step)
			assert.Empty(t, serr.Compensation.Errors)

			assert.Equal(t, uint64(10_000), f.balance(t, buyer))
			assert.Equal(t, uint64(0), f.balance(t, issuer))
			assert.Equal(t, uint64(0), f.balance(t, platform))
			assert.Equal(t, issuer, f.owner(t, inv))

			ctx := context.Background()
			got, err := f.engine.GetAgreement(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, agreement.StatusPending, got.Status)
			active, err := f.engine.GetListing(ctx, l.ID)
			require.NoError(t, err)
			assert.Equal(t, listing.StatusActive, active.Status)

			rec.mu.Lock()
			assert.Len(t, rec.failed, 1)
			assert.Equal(t, []agreement.Status{agreement.StatusPending}, rec.statuses)
			assert.Empty(t, rec.completed)
			rec.mu.Unlock()

			// The agreement can still settle once the collaborator recovers.
			_, err = f.engine.ExecutePurchase(as(buyer), a.ID)
			require.NoError(t, err)
			assert.Equal(t, buyer, f.owner(t, inv))
		})
	}
}

func TestExecutePurchaseCommitFailure(t *testing.T) {
	rec := &settlementRecorder{}
	f := newFixture(t, factoring.WithPlugin(rec))
	inv := f.tokenized(t, "INV-810", 100)
	l := f.list(t, inv, 500)
	a := f.agree(t, l, 300)
	f.payments.Fund(buyer, 10_000)

	diskFull := errors.New("disk full")
	f.store.failUpdates(diskFull)
	_, err := f.engine.ExecutePurchase(as(buyer), a.ID)
	f.store.failUpdates(nil)

	require.ErrorIs(t, err, factoring.ErrSettlementFailed)
	require.ErrorIs(t, err, diskFull)
	var serr *factoring.SettlementError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, factoring.StepCommit, serr.Step)
	assert.Empty(t, serr.Compensation.Errors)

	assert.Equal(t, uint64(10_000), f.balance(t, buyer))
	assert.Equal(t, uint64(0), f.balance(t, issuer))
	assert.Equal(t, uint64(0), f.balance(t, platform))
	assert.Equal(t, issuer, f.owner(t, inv))

	ctx := context.Background()
	got, err := f.engine.GetAgreement(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, agreement.StatusPending, got.Status)
	assert.Zero(t, got.PlatformFee)
	active, err := f.engine.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.StatusActive, active.Status)

	rec.mu.Lock()
	assert.Equal(t, []agreement.Status{agreement.StatusPending}, rec.statuses)
	assert.Empty(t, rec.completed)
	rec.mu.Unlock()

	got, err = f.engine.ExecutePurchase(as(buyer), a.ID)
	require.NoError(t, err)
	assert.Equal(t, agreement.StatusCompleted, got.Status)
	assert.Equal(t, buyer, f.owner(t, inv))
}

func TestExecutePurchaseCompensationFailure(t *testing.T) {
	f := newFixture(t)
	inv := f.tokenized(t, "INV-820", 100)
	a := f.agree(t, f.list(t, inv, 500), 300)
	f.payments.Fund(buyer, 10_000)

	// Token delivery fails, then the refund of the platform fee (the third
	// payment call) fails while the seller refund goes through.
	f.owners.FailTransfer(1)
	f.payments.FailTransfer(3)

	_, err := f.engine.ExecutePurchase(as(buyer), a.ID)
	require.ErrorIs(t, err, factoring.ErrSettlementFailed)

	var serr *factoring.SettlementError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, factoring.StepDeliverToken, serr.Step)
	require.Len(t, serr.Compensation.Errors, 1)
	assert.ErrorIs(t, serr.Compensation.Errors[0], mock.ErrInjected)
	assert.Contains(t, serr.Compensation.Errors[0].Error(), factoring.StepPayPlatform)

	assert.Equal(t, uint64(9_750), f.balance(t, buyer))
	assert.Equal(t, uint64(0), f.balance(t, issuer))
	assert.Equal(t, uint64(250), f.balance(t, platform))
	assert.Equal(t, issuer, f.owner(t, inv))

	got, err := f.engine.GetAgreement(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, agreement.StatusPending, got.Status)
}

func TestExecutePurchaseInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	inv := f.tokenized(t, "INV-900", 100)
	a := f.agree(t, f.list(t, inv, 500), 300)
	f.payments.Fund(buyer, 9_999)

	_, err := f.engine.ExecutePurchase(as(buyer), a.ID)
	require.ErrorIs(t, err, factoring.ErrInsufficientFunds)
	assert.True(t, factoring.IsInsufficient(err))
	assert.Equal(t, uint64(9_999), f.balance(t, buyer))
	assert.Equal(t, issuer, f.owner(t, inv))
}

func TestListingExpiryIsMonotonic(t *testing.T) {
	f := newFixture(t)
	inv := f.tokenized(t, "INV-1000", 100)
	l := f.list(t, inv, 200)

	require.NoError(t, f.clock.Set(199))
	f.agree(t, l, 300)

	require.NoError(t, f.clock.Set(200))
	purchase := factoring.PurchaseInput{ListingID: l.ID, PurchaseAmount: 10, SettlementClock: 300}
	_, err := f.engine.CreatePurchaseAgreement(as(buyer), purchase)
	require.ErrorIs(t, err, factoring.ErrExpired)

	f.clock.Advance(50)
	_, err = f.engine.CreatePurchaseAgreement(as(buyer), purchase)
	require.ErrorIs(t, err, factoring.ErrExpired)

	res, err := f.engine.SweepDefaults(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Expired, 1)
	assert.Equal(t, l.ID, res.Expired[0].ID)

	_, err = f.engine.CreatePurchaseAgreement(as(buyer), purchase)
	require.ErrorIs(t, err, factoring.ErrExpired)

	assert.ErrorIs(t, f.clock.Set(10), clock.ErrRewind)
}

func TestDefaultAgreement(t *testing.T) {
	f := newFixture(t)
	inv := f.tokenized(t, "INV-1100", 100)
	a := f.agree(t, f.list(t, inv, 1000), 300)
	f.payments.Fund(buyer, 10_000)

	_, err := f.engine.DefaultAgreement(context.Background(), a.ID)
	require.ErrorIs(t, err, factoring.ErrNotOverdue)

	require.NoError(t, f.clock.Set(300))
	_, err = f.engine.DefaultAgreement(context.Background(), a.ID)
	require.ErrorIs(t, err, factoring.ErrNotOverdue)

	require.NoError(t, f.clock.Set(301))
	_, err = f.engine.ExecutePurchase(as(buyer), a.ID)
	require.ErrorIs(t, err, factoring.ErrExpired)

	got, err := f.engine.DefaultAgreement(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, agreement.StatusDefaulted, got.Status)

	_, err = f.engine.DefaultAgreement(context.Background(), a.ID)
	assert.ErrorIs(t, err, factoring.ErrAgreementNotPending)
}

func TestSweepDefaults(t *testing.T) {
	rec := &settlementRecorder{}
	f := newFixture(t, factoring.WithPlugin(rec))
	ctx := context.Background()

	l1 := f.list(t, f.tokenized(t, "INV-1200", 100), 1000)
	l2 := f.list(t, f.tokenized(t, "INV-1201", 100), 250)
	early := f.agree(t, l1, 200)
	late := f.agree(t, l1, 900)

	res, err := f.engine.SweepDefaults(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Defaulted)
	assert.Empty(t, res.Expired)

	require.NoError(t, f.clock.Set(260))
	res, err = f.engine.SweepDefaults(ctx)
	require.NoError(t, err)
	require.Len(t, res.Defaulted, 1)
	assert.Equal(t, early.ID, res.Defaulted[0].ID)
	require.Len(t, res.Expired, 1)
	assert.Equal(t, l2.ID, res.Expired[0].ID)

	pending, err := f.engine.ListAgreements(ctx, agreement.ListOpts{Status: agreement.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, late.ID, pending[0].ID)

	expired, err := f.engine.ListListings(ctx, listing.ListOpts{Status: listing.StatusExpired})
	require.NoError(t, err)
	assert.Len(t, expired, 1)

	rec.mu.Lock()
	assert.Equal(t, 2, rec.sweeps)
	rec.mu.Unlock()
}
