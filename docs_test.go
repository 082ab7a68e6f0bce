package factoring_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/capability/mock"
	"github.com/xraph/factoring/clock"
	"github.com/xraph/factoring/store/sqlite"
)

// TestDocumentationExamples walks the package documentation end to end on a
// real SQLite store.
func TestDocumentationExamples(t *testing.T) {
	ctx := context.Background()

	s, err := sqlite.OpenMemory()
	require.NoError(t, err)

	roles := mock.NewAccess()
	roles.Grant("0xissuer", capability.RoleIssuer)
	roles.Grant("0xverifier", capability.RoleVerifier)
	registry := mock.NewOwnership()
	payments := mock.NewPayments()
	chainClock := clock.NewManual(10)

	engine := factoring.New(s,
		factoring.WithClock(chainClock),
		factoring.WithAccess(roles),
		factoring.WithSignatures(capability.AcceptAnySignature),
		factoring.WithOwnership(registry),
		factoring.WithPayments(payments),
		factoring.WithSweepInterval(0),
	)
	require.NoError(t, engine.Start(ctx))
	defer engine.Stop()

	issuerCtx := factoring.WithCaller(ctx, "0xissuer")
	inv, err := engine.CreateInvoice(issuerCtx, factoring.CreateInvoiceInput{
		Number:  "INV-2024-001",
		Payer:   "0xbuyer",
		Amount:  1_000_000,
		DueDate: 5_000,
	})
	require.NoError(t, err)

	_, err = engine.VerifyInvoice(factoring.WithCaller(ctx, "0xverifier"), inv.ID, "sig")
	require.NoError(t, err)
	_, err = engine.TokenizeInvoice(issuerCtx, inv.ID, 100)
	require.NoError(t, err)
	require.NoError(t, engine.CheckConservation(ctx, inv.ID))

	registry.SetOwner(inv.ID, "0xissuer")
	l, err := engine.ListInvoice(issuerCtx, factoring.ListInvoiceInput{
		TokenID:     inv.ID,
		Price:       900_000,
		ExpiryClock: 1_000,
		MinPurchase: 1,
		MaxPurchase: 100,
	})
	require.NoError(t, err)

	fundCtx := factoring.WithCaller(ctx, "0xfund")
	payments.Fund("0xfund", 900_000)
	a, err := engine.CreatePurchaseAgreement(fundCtx, factoring.PurchaseInput{
		ListingID:       l.ID,
		PurchaseAmount:  100,
		SettlementClock: 500,
	})
	require.NoError(t, err)

	a, err = engine.ExecutePurchase(fundCtx, a.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(22_500), a.PlatformFee)

	owner, err := registry.OwnerOf(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, "0xfund", owner)
}
