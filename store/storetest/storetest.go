// Package storetest is a conformance suite for store.Store implementations.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/agreement"
	"github.com/xraph/factoring/discount"
	"github.com/xraph/factoring/id"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/listing"
	"github.com/xraph/factoring/pool"
	"github.com/xraph/factoring/settings"
	"github.com/xraph/factoring/store"
	"github.com/xraph/factoring/swap"
	"github.com/xraph/factoring/types"
)

// Factory returns a fresh, migrated store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises every store operation against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Invoices", testInvoices},
		{"Holdings", testHoldings},
		{"Listings", testListings},
		{"TokenIndex", testTokenIndex},
		{"Agreements", testAgreements},
		{"Pools", testPools},
		{"RoutesAndSwaps", testRoutesAndSwaps},
		{"Discounts", testDiscounts},
		{"SettingsAndCounters", testSettingsAndCounters},
		{"Rollback", testRollback},
		{"ReadOnlyView", testReadOnlyView},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, s.Ping(context.Background()))
			tt.fn(t, s)
		})
	}
}

func update(t *testing.T, s store.Store, fn store.TxFunc) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), fn))
}

func view(t *testing.T, s store.Store, fn store.TxFunc) {
	t.Helper()
	require.NoError(t, s.View(context.Background(), fn))
}

func newInvoice(number, issuer string) *invoice.Invoice {
	return &invoice.Invoice{
		Entity:       types.NewEntity(),
		ID:           id.NewInvoiceID(),
		Number:       number,
		Issuer:       issuer,
		Payer:        "payer",
		Amount:       1_000_000,
		DueDate:      500,
		DocumentHash: "hash-" + number,
		IssuedAt:     10,
	}
}

func testInvoices(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newInvoice("INV-1", "alice")
	b := newInvoice("INV-2", "bob")

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateInvoice(ctx, a); err != nil {
			return err
		}
		return tx.CreateInvoice(ctx, b)
	})

	err := s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateInvoice(ctx, newInvoice("INV-1", "carol"))
	})
	assert.ErrorIs(t, err, factoring.ErrDuplicateInvoice)

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetInvoice(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID.String(), got.ID.String())
		assert.Equal(t, "INV-1", got.Number)
		assert.Equal(t, "alice", got.Issuer)
		assert.Equal(t, uint64(1_000_000), got.Amount)
		assert.Equal(t, uint64(500), got.DueDate)
		assert.Equal(t, uint64(10), got.IssuedAt)
		assert.False(t, got.Verified)

		byNumber, err := tx.GetInvoiceByNumber(ctx, "INV-2")
		require.NoError(t, err)
		assert.Equal(t, b.ID.String(), byNumber.ID.String())

		_, err = tx.GetInvoice(ctx, id.NewInvoiceID())
		assert.ErrorIs(t, err, factoring.ErrInvoiceNotFound)
		_, err = tx.GetInvoiceByNumber(ctx, "missing")
		assert.ErrorIs(t, err, factoring.ErrInvoiceNotFound)

		all, err := tx.ListInvoices(ctx, invoice.ListOpts{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		mine, err := tx.ListInvoices(ctx, invoice.ListOpts{Issuer: "bob"})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, b.ID.String(), mine[0].ID.String())

		limited, err := tx.ListInvoices(ctx, invoice.ListOpts{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
		return nil
	})

	a.Verified = true
	a.VerifiedAt = 20
	a.FractionCount = 100
	a.TotalSupply = 100
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateInvoice(ctx, a)
	})

	verified := true
	view(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetInvoice(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.Verified)
		assert.Equal(t, uint64(20), got.VerifiedAt)
		assert.Equal(t, uint64(100), got.TotalSupply)

		list, err := tx.ListInvoices(ctx, invoice.ListOpts{Verified: &verified})
		require.NoError(t, err)
		assert.Len(t, list, 1)
		return nil
	})

	err = s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateInvoice(ctx, newInvoice("INV-9", "nobody"))
	})
	assert.ErrorIs(t, err, factoring.ErrInvoiceNotFound)
}

func testHoldings(t *testing.T, s store.Store) {
	inv := newInvoice("INV-H", "alice")

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateInvoice(ctx, inv); err != nil {
			return err
		}
		if err := tx.SetHolding(ctx, inv.ID, "bob", 30); err != nil {
			return err
		}
		if err := tx.SetHolding(ctx, inv.ID, "alice", 70); err != nil {
			return err
		}
		// Overwrite, not add.
		return tx.SetHolding(ctx, inv.ID, "bob", 25)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		bal, err := tx.GetHolding(ctx, inv.ID, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(25), bal)

		bal, err = tx.GetHolding(ctx, inv.ID, "nobody")
		require.NoError(t, err)
		assert.Zero(t, bal)

		holdings, err := tx.ListHoldings(ctx, inv.ID)
		require.NoError(t, err)
		require.Len(t, holdings, 2)
		assert.Equal(t, "alice", holdings[0].Holder)
		assert.Equal(t, "bob", holdings[1].Holder)
		return nil
	})

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.SetHolding(ctx, inv.ID, "bob", 0)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		holdings, err := tx.ListHoldings(ctx, inv.ID)
		require.NoError(t, err)
		require.Len(t, holdings, 1)
		assert.Equal(t, "alice", holdings[0].Holder)
		return nil
	})
}

func newListing(tokenID id.InvoiceID, seller string, expiry uint64) *listing.Listing {
	return &listing.Listing{
		Entity:      types.NewEntity(),
		ID:          id.NewListingID(),
		TokenID:     tokenID,
		Seller:      seller,
		Price:       49_000,
		ExpiryClock: expiry,
		MinPurchase: 1,
		MaxPurchase: 100,
		Terms:       "net-30",
		Status:      listing.StatusActive,
		ListedAt:    5,
	}
}

func testListings(t *testing.T, s store.Store) {
	ctx := context.Background()
	early := newListing(id.NewInvoiceID(), "alice", 100)
	late := newListing(id.NewInvoiceID(), "bob", 900)

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateListing(ctx, early); err != nil {
			return err
		}
		return tx.CreateListing(ctx, late)
	})

	early.Status = listing.StatusCancelled
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateListing(ctx, early)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetListing(ctx, early.ID)
		require.NoError(t, err)
		assert.Equal(t, listing.StatusCancelled, got.Status)
		assert.Equal(t, early.TokenID.String(), got.TokenID.String())
		assert.Equal(t, "net-30", got.Terms)

		_, err = tx.GetListing(ctx, id.NewListingID())
		assert.ErrorIs(t, err, factoring.ErrListingNotFound)

		active, err := tx.ListListings(ctx, listing.ListOpts{Status: listing.StatusActive})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, late.ID.String(), active[0].ID.String())

		expired, err := tx.ListListings(ctx, listing.ListOpts{ExpiredBy: 100})
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, early.ID.String(), expired[0].ID.String())

		bySeller, err := tx.ListListings(ctx, listing.ListOpts{Seller: "bob"})
		require.NoError(t, err)
		assert.Len(t, bySeller, 1)
		return nil
	})

	err := s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateListing(ctx, newListing(id.NewInvoiceID(), "x", 1))
	})
	assert.ErrorIs(t, err, factoring.ErrListingNotFound)
}

func testTokenIndex(t *testing.T, s store.Store) {
	ctx := context.Background()
	token := id.NewInvoiceID()
	first := id.NewListingID()

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.IndexToken(ctx, token, first)
	})

	err := s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.IndexToken(ctx, token, id.NewListingID())
	})
	assert.ErrorIs(t, err, factoring.ErrAlreadyListed)

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.ListingForToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, first.String(), got.String())
		return nil
	})

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.UnindexToken(ctx, token)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.ListingForToken(ctx, token)
		assert.ErrorIs(t, err, factoring.ErrListingNotFound)
		return nil
	})

	// The token can be listed again once unindexed.
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.IndexToken(ctx, token, id.NewListingID())
	})
}

func testAgreements(t *testing.T, s store.Store) {
	listingID := id.NewListingID()
	mk := func(buyer string, settle uint64) *agreement.Agreement {
		return &agreement.Agreement{
			Entity:          types.NewEntity(),
			ID:              id.NewAgreementID(),
			ListingID:       listingID,
			TokenID:         id.NewInvoiceID(),
			Buyer:           buyer,
			Seller:          "alice",
			PurchaseAmount:  10,
			AgreedPrice:     49_000,
			AgreementClock:  5,
			SettlementClock: settle,
			Status:          agreement.StatusPending,
		}
	}
	soon := mk("bob", 50)
	later := mk("carol", 500)

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateAgreement(ctx, soon); err != nil {
			return err
		}
		return tx.CreateAgreement(ctx, later)
	})

	soon.Status = agreement.StatusCompleted
	soon.PlatformFee = 1225
	soon.CompletedAt = 40
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateAgreement(ctx, soon)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetAgreement(ctx, soon.ID)
		require.NoError(t, err)
		assert.Equal(t, agreement.StatusCompleted, got.Status)
		assert.Equal(t, uint64(1225), got.PlatformFee)
		assert.Equal(t, uint64(40), got.CompletedAt)

		_, err = tx.GetAgreement(ctx, id.NewAgreementID())
		assert.ErrorIs(t, err, factoring.ErrAgreementNotFound)

		overdue, err := tx.ListAgreements(ctx, agreement.ListOpts{Status: agreement.StatusPending, SettlesBefore: 501})
		require.NoError(t, err)
		require.Len(t, overdue, 1)
		assert.Equal(t, later.ID.String(), overdue[0].ID.String())

		none, err := tx.ListAgreements(ctx, agreement.ListOpts{Status: agreement.StatusPending, SettlesBefore: 500})
		require.NoError(t, err)
		assert.Empty(t, none)

		byListing, err := tx.ListAgreements(ctx, agreement.ListOpts{ListingID: listingID})
		require.NoError(t, err)
		assert.Len(t, byListing, 2)

		byBuyer, err := tx.ListAgreements(ctx, agreement.ListOpts{Buyer: "carol"})
		require.NoError(t, err)
		assert.Len(t, byBuyer, 1)
		return nil
	})
}

func newPool(chainID uint64) *pool.Pool {
	return &pool.Pool{
		Entity:     types.NewEntity(),
		ID:         id.NewPoolID(),
		TokenA:     "USDC",
		TokenB:     "INV",
		ReserveA:   10_000,
		ReserveB:   10_000,
		FeeRateBps: 30,
		ChainID:    chainID,
		Enabled:    true,
	}
}

func testPools(t *testing.T, s store.Store) {
	local := newPool(1)
	remote := newPool(137)

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreatePool(ctx, local); err != nil {
			return err
		}
		return tx.CreatePool(ctx, remote)
	})

	remote.Enabled = false
	local.ReserveA = 11_000
	local.ReserveB = 9_094
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.UpdatePool(ctx, remote); err != nil {
			return err
		}
		return tx.UpdatePool(ctx, local)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetPool(ctx, local.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(11_000), got.ReserveA)
		assert.Equal(t, uint64(9_094), got.ReserveB)
		assert.Equal(t, uint64(30), got.FeeRateBps)

		_, err = tx.GetPool(ctx, id.NewPoolID())
		assert.ErrorIs(t, err, factoring.ErrPoolNotFound)

		enabled, err := tx.ListPools(ctx, pool.ListOpts{EnabledOnly: true})
		require.NoError(t, err)
		require.Len(t, enabled, 1)
		assert.Equal(t, local.ID.String(), enabled[0].ID.String())

		onChain, err := tx.ListPools(ctx, pool.ListOpts{ChainID: 137})
		require.NoError(t, err)
		require.Len(t, onChain, 1)
		assert.False(t, onChain[0].Enabled)
		return nil
	})
}

func testRoutesAndSwaps(t *testing.T, s store.Store) {
	path := []id.PoolID{id.NewPoolID(), id.NewPoolID()}
	r := &swap.Route{
		Entity:          types.NewEntity(),
		ID:              id.NewRouteID(),
		InputToken:      "USDC",
		OutputToken:     "INV",
		InputAmount:     1000,
		PoolPath:        path,
		EstimatedOutput: 906,
		TotalFees:       3,
		GasCost:         100_000,
		SlippageBps:     1037,
		ChainID:         1,
		QuotedAt:        7,
	}

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.CreateRoute(ctx, r)
	})

	// Mutating the caller's slice must not leak into the store.
	r.PoolPath[0] = id.NewPoolID()

	var stored *swap.Route
	view(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetRoute(ctx, r.ID)
		require.NoError(t, err)
		stored = got
		return nil
	})
	require.Len(t, stored.PoolPath, 2)
	assert.NotEqual(t, r.PoolPath[0].String(), stored.PoolPath[0].String())
	assert.Equal(t, path[1].String(), stored.PoolPath[1].String())
	assert.Equal(t, uint64(906), stored.EstimatedOutput)
	assert.False(t, stored.Consumed)

	stored.Consumed = true
	sw := &swap.Swap{
		Entity:       types.NewEntity(),
		ID:           id.NewSwapID(),
		RouteID:      r.ID,
		Trader:       "dave",
		InputToken:   "USDC",
		OutputToken:  "INV",
		InputAmount:  1000,
		OutputAmount: 906,
		FeeAmount:    3,
		SlippageBps:  1037,
		ExecutedAt:   8,
	}
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.UpdateRoute(ctx, stored); err != nil {
			return err
		}
		return tx.CreateSwap(ctx, sw)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetRoute(ctx, r.ID)
		require.NoError(t, err)
		assert.True(t, got.Consumed)

		gotSwap, err := tx.GetSwap(ctx, sw.ID)
		require.NoError(t, err)
		assert.Equal(t, r.ID.String(), gotSwap.RouteID.String())
		assert.Equal(t, uint64(906), gotSwap.OutputAmount)

		_, err = tx.GetSwap(ctx, id.NewSwapID())
		assert.ErrorIs(t, err, factoring.ErrSwapNotFound)
		_, err = tx.GetRoute(ctx, id.NewRouteID())
		assert.ErrorIs(t, err, factoring.ErrRouteNotFound)

		swaps, err := tx.ListSwaps(ctx, swap.ListOpts{Trader: "dave"})
		require.NoError(t, err)
		assert.Len(t, swaps, 1)
		return nil
	})
}

func testDiscounts(t *testing.T, s store.Store) {
	invID := id.NewInvoiceID()
	curve := &discount.Curve{
		Entity:      types.NewEntity(),
		Issuer:      "alice",
		BaseRateBps: 100,
		MaxRateBps:  800,
		TimeFactor:  50,
		Active:      true,
	}
	p := &discount.Proposal{
		Entity:          types.NewEntity(),
		ID:              id.NewProposalID(),
		InvoiceID:       invID,
		Proposer:        "alice",
		Counterparty:    "payer",
		DiscountRateBps: 200,
		ValidUntil:      99,
		ProposedAt:      3,
	}

	update(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutCurve(ctx, curve); err != nil {
			return err
		}
		return tx.CreateProposal(ctx, p)
	})

	curve.MaxRateBps = 900
	p.Accepted = true
	p.AcceptedAt = 50
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutCurve(ctx, curve); err != nil {
			return err
		}
		return tx.UpdateProposal(ctx, p)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetCurve(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(900), got.MaxRateBps)
		assert.True(t, got.Active)

		_, err = tx.GetCurve(ctx, "bob")
		assert.ErrorIs(t, err, factoring.ErrCurveNotFound)

		gotP, err := tx.GetProposal(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, gotP.Accepted)
		assert.Equal(t, uint64(50), gotP.AcceptedAt)

		_, err = tx.GetProposal(ctx, id.NewProposalID())
		assert.ErrorIs(t, err, factoring.ErrProposalNotFound)

		list, err := tx.ListProposals(ctx, invID)
		require.NoError(t, err)
		assert.Len(t, list, 1)
		return nil
	})
}

func testSettingsAndCounters(t *testing.T, s store.Store) {
	view(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetSettings(ctx)
		assert.ErrorIs(t, err, factoring.ErrSettingsNotFound)

		n, err := tx.Counter(ctx, settings.CounterSwaps)
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})

	want := &settings.Settings{
		MarketplaceFeeBps: 250,
		PlatformAddress:   "platform",
		AggregatorEnabled: true,
		MaxSlippageBps:    500,
		LocalChainID:      1,
	}
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		if err := tx.PutSettings(ctx, want); err != nil {
			return err
		}
		for range 3 {
			if _, err := tx.IncrementCounter(ctx, settings.CounterSwaps); err != nil {
				return err
			}
		}
		_, err := tx.IncrementCounter(ctx, settings.CounterPools)
		return err
	})

	want.MarketplaceFeeBps = 300
	update(t, s, func(ctx context.Context, tx store.Tx) error {
		return tx.PutSettings(ctx, want)
	})

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, *want, *got)

		n, err := tx.Counter(ctx, settings.CounterSwaps)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), n)

		n, err = tx.Counter(ctx, settings.CounterPools)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)
		return nil
	})
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := newInvoice("INV-R", "alice")
	boom := errors.New("boom")

	err := s.Update(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateInvoice(ctx, inv); err != nil {
			return err
		}
		if err := tx.SetHolding(ctx, inv.ID, "alice", 10); err != nil {
			return err
		}
		if _, err := tx.IncrementCounter(ctx, settings.CounterInvoices); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	view(t, s, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetInvoice(ctx, inv.ID)
		assert.ErrorIs(t, err, factoring.ErrInvoiceNotFound)

		bal, err := tx.GetHolding(ctx, inv.ID, "alice")
		require.NoError(t, err)
		assert.Zero(t, bal)

		n, err := tx.Counter(ctx, settings.CounterInvoices)
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
}

func testReadOnlyView(t *testing.T, s store.Store) {
	err := s.View(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.CreateInvoice(ctx, newInvoice("INV-RO", "alice"))
	})
	assert.ErrorIs(t, err, factoring.ErrReadOnly)
}
