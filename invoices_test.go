package factoring_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/invoice"
)

func TestCreateInvoice(t *testing.T) {
	f := newFixture(t)

	inv := f.issue(t, "INV-001")
	assert.Equal(t, issuer, inv.Issuer)
	assert.Equal(t, uint64(100), inv.IssuedAt)
	assert.False(t, inv.Verified)
	assert.False(t, inv.Tokenized())

	got, err := f.engine.GetInvoiceByNumber(context.Background(), "INV-001")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)

	t.Run("DuplicateNumber", func(t *testing.T) {
		_, err := f.engine.CreateInvoice(as(issuer), factoring.CreateInvoiceInput{
			Number: "INV-001", Payer: payer, Amount: 1, DueDate: 500,
		})
		assert.ErrorIs(t, err, factoring.ErrDuplicateInvoice)
		assert.True(t, factoring.IsConflict(err))
	})

	t.Run("NoCaller", func(t *testing.T) {
		_, err := f.engine.CreateInvoice(context.Background(), factoring.CreateInvoiceInput{
			Number: "INV-002", Payer: payer, Amount: 1, DueDate: 500,
		})
		assert.ErrorIs(t, err, factoring.ErrUnauthorized)
	})

	t.Run("NotIssuer", func(t *testing.T) {
		_, err := f.engine.CreateInvoice(as(buyer), factoring.CreateInvoiceInput{
			Number: "INV-002", Payer: payer, Amount: 1, DueDate: 500,
		})
		assert.True(t, factoring.IsAuthorization(err))
	})

	t.Run("Validation", func(t *testing.T) {
		tests := []struct {
			name  string
			in    factoring.CreateInvoiceInput
			field string
		}{
			{"EmptyNumber", factoring.CreateInvoiceInput{Number: " ", Payer: payer, Amount: 1, DueDate: 500}, "invoice_number"},
			{"NoPayer", factoring.CreateInvoiceInput{Number: "X", Amount: 1, DueDate: 500}, "payer"},
			{"ZeroAmount", factoring.CreateInvoiceInput{Number: "X", Payer: payer, DueDate: 500}, "amount"},
			{"PastDue", factoring.CreateInvoiceInput{Number: "X", Payer: payer, Amount: 1, DueDate: 100}, "due_date"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.engine.CreateInvoice(as(issuer), tt.in)
				require.ErrorIs(t, err, factoring.ErrInvalidParams)
				var verr factoring.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.field, verr.Field)
			})
		}
	})
}

func TestVerifyInvoice(t *testing.T) {
	rejectBad := capability.SignaturesFunc(func(_ context.Context, _ factoring.ID, _, signature, _ string) (bool, error) {
		return signature == "good", nil
	})
	f := newFixture(t, factoring.WithSignatures(rejectBad))
	inv := f.issue(t, "INV-100")

	_, err := f.engine.VerifyInvoice(as(issuer), inv.ID, "good")
	assert.ErrorIs(t, err, factoring.ErrUnauthorized)

	_, err = f.engine.VerifyInvoice(as(verifier), inv.ID, "bad")
	assert.ErrorIs(t, err, factoring.ErrInvalidSignature)

	f.clock.Advance(5)
	got, err := f.engine.VerifyInvoice(as(verifier), inv.ID, "good")
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.Equal(t, uint64(105), got.VerifiedAt)

	_, err = f.engine.VerifyInvoice(as(verifier), inv.ID, "good")
	assert.ErrorIs(t, err, factoring.ErrAlreadyVerified)
}

func TestTokenizeInvoiceOnce(t *testing.T) {
	f := newFixture(t)
	inv := f.issue(t, "INV-200")
	ctx := context.Background()

	_, err := f.engine.TokenizeInvoice(as(issuer), inv.ID, 100)
	require.ErrorIs(t, err, factoring.ErrNotVerified)

	_, err = f.engine.VerifyInvoice(as(verifier), inv.ID, "sig")
	require.NoError(t, err)

	_, err = f.engine.TokenizeInvoice(as(issuer), inv.ID, 0)
	require.ErrorIs(t, err, factoring.ErrInvalidParams)

	f.access.Grant(buyer, capability.RoleIssuer)
	_, err = f.engine.TokenizeInvoice(as(buyer), inv.ID, 100)
	require.ErrorIs(t, err, factoring.ErrUnauthorized)

	got, err := f.engine.TokenizeInvoice(as(issuer), inv.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got.TotalSupply)
	assert.True(t, got.Tokenized())

	bal, err := f.engine.BalanceOf(ctx, inv.ID, issuer)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), bal)

	_, err = f.engine.TokenizeInvoice(as(issuer), inv.ID, 50)
	require.ErrorIs(t, err, factoring.ErrAlreadyTokenized)

	supply, err := f.engine.TotalSupply(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), supply)
}

func TestTransferSharesConservation(t *testing.T) {
	f := newFixture(t)
	inv := f.tokenized(t, "INV-300", 1000)
	ctx := context.Background()

	require.NoError(t, f.engine.TransferShares(as(issuer), inv.ID, buyer, 400))
	require.NoError(t, f.engine.TransferShares(as(buyer), inv.ID, payer, 150))
	require.NoError(t, f.engine.TransferShares(as(payer), inv.ID, issuer, 50))
	require.NoError(t, f.engine.CheckConservation(ctx, inv.ID))

	balances := map[string]uint64{}
	holdings, err := f.engine.Holdings(ctx, inv.ID)
	require.NoError(t, err)
	for _, h := range holdings {
		balances[h.Holder] = h.Shares
	}
	assert.Equal(t, map[string]uint64{issuer: 650, buyer: 250, payer: 100}, balances)

	t.Run("Insufficient", func(t *testing.T) {
		err := f.engine.TransferShares(as(buyer), inv.ID, payer, 251)
		require.ErrorIs(t, err, factoring.ErrInsufficientShares)
		assert.True(t, factoring.IsInsufficient(err))

		bal, err := f.engine.BalanceOf(ctx, inv.ID, buyer)
		require.NoError(t, err)
		assert.Equal(t, uint64(250), bal)
	})

	t.Run("NoOps", func(t *testing.T) {
		require.NoError(t, f.engine.TransferShares(as(buyer), inv.ID, payer, 0))
		require.NoError(t, f.engine.TransferShares(as(buyer), inv.ID, buyer, 250))
		bal, err := f.engine.BalanceOf(ctx, inv.ID, buyer)
		require.NoError(t, err)
		assert.Equal(t, uint64(250), bal)
	})

	t.Run("FullBalanceDropsHolding", func(t *testing.T) {
		require.NoError(t, f.engine.TransferShares(as(payer), inv.ID, issuer, 100))
		holdings, err := f.engine.Holdings(ctx, inv.ID)
		require.NoError(t, err)
		assert.Len(t, holdings, 2)
		require.NoError(t, f.engine.CheckConservation(ctx, inv.ID))
	})

	t.Run("UnknownInvoice", func(t *testing.T) {
		err := f.engine.TransferShares(as(issuer), factoring.ID{}, buyer, 1)
		assert.True(t, factoring.IsNotFound(err))
	})
}

func TestMarkInvoicePaid(t *testing.T) {
	f := newFixture(t)
	inv := f.issue(t, "INV-400")

	_, err := f.engine.MarkInvoicePaid(as(issuer), inv.ID)
	require.ErrorIs(t, err, factoring.ErrUnauthorized)

	f.clock.Advance(10)
	got, err := f.engine.MarkInvoicePaid(as(payer), inv.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.Equal(t, uint64(110), got.PaidAt)

	_, err = f.engine.MarkInvoicePaid(as(payer), inv.ID)
	require.ErrorIs(t, err, factoring.ErrInvoicePaid)

	verified := true
	list, err := f.engine.ListInvoices(context.Background(), invoice.ListOpts{Verified: &verified})
	require.NoError(t, err)
	assert.Empty(t, list)
}
