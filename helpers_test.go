package factoring_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/factoring"
	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/capability/mock"
	"github.com/xraph/factoring/clock"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/store"
	"github.com/xraph/factoring/store/memory"
)

const (
	issuer   = "acme-supplies"
	payer    = "bigbox-retail"
	verifier = "audit-co"
	admin    = "ops-admin"
	oracle   = "price-oracle"
	buyer    = "fund-one"
	platform = "platform"
)

// gatedStore wraps a store and fails every Update while an error is armed.
type gatedStore struct {
	store.Store

	mu   sync.Mutex
	fail error
}

func (s *gatedStore) failUpdates(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *gatedStore) Update(ctx context.Context, fn store.TxFunc) error {
	s.mu.Lock()
	err := s.fail
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Update(ctx, fn)
}

type fixture struct {
	engine   *factoring.Engine
	store    *gatedStore
	clock    *clock.Manual
	access   *mock.Access
	owners   *mock.Ownership
	payments *mock.Payments
	chains   *mock.Chains
}

func newFixture(t *testing.T, opts ...factoring.Option) *fixture {
	t.Helper()

	f := &fixture{
		store:    &gatedStore{Store: memory.New()},
		clock:    clock.NewManual(100),
		access:   mock.NewAccess(),
		owners:   mock.NewOwnership(),
		payments: mock.NewPayments(),
		chains:   mock.NewChains(1),
	}
	f.access.Grant(issuer, capability.RoleIssuer)
	f.access.Grant(verifier, capability.RoleVerifier)
	f.access.Grant(admin, capability.RoleAdmin)
	f.access.Grant(oracle, capability.RoleOracle)

	base := []factoring.Option{
		factoring.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		factoring.WithClock(f.clock),
		factoring.WithAccess(f.access),
		factoring.WithSignatures(capability.AcceptAnySignature),
		factoring.WithOwnership(f.owners),
		factoring.WithPayments(f.payments),
		factoring.WithChains(f.chains),
		factoring.WithSweepInterval(0),
	}
	f.engine = factoring.New(f.store, append(base, opts...)...)
	require.NoError(t, f.engine.Start(context.Background()))
	t.Cleanup(func() { _ = f.engine.Stop() })
	return f
}

func as(principal string) context.Context {
	return factoring.WithCaller(context.Background(), principal)
}

// issue creates an unverified invoice due at clock 1000.
func (f *fixture) issue(t *testing.T, number string) *invoice.Invoice {
	t.Helper()
	inv, err := f.engine.CreateInvoice(as(issuer), factoring.CreateInvoiceInput{
		Number:       number,
		Payer:        payer,
		Amount:       100_000,
		DueDate:      1000,
		DocumentHash: "sha256:" + number,
	})
	require.NoError(t, err)
	return inv
}

// tokenized creates, verifies and tokenizes an invoice and registers the
// issuer as the token owner.
func (f *fixture) tokenized(t *testing.T, number string, fractions uint64) *invoice.Invoice {
	t.Helper()
	inv := f.issue(t, number)
	_, err := f.engine.VerifyInvoice(as(verifier), inv.ID, "sig")
	require.NoError(t, err)
	inv, err = f.engine.TokenizeInvoice(as(issuer), inv.ID, fractions)
	require.NoError(t, err)
	f.owners.SetOwner(inv.ID, issuer)
	return inv
}

func (f *fixture) balance(t *testing.T, principal string) uint64 {
	t.Helper()
	b, err := f.payments.BalanceOf(context.Background(), principal)
	require.NoError(t, err)
	return b
}

func (f *fixture) owner(t *testing.T, inv *invoice.Invoice) string {
	t.Helper()
	o, err := f.owners.OwnerOf(context.Background(), inv.ID)
	require.NoError(t, err)
	return o
}
