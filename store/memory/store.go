// Package memory provides an in-memory store.Store. Transactions stage
// their writes on a copy of the state and publish it only on success.
//
// Every Update copies all tables, so a write costs time proportional to the
// whole state. The store is meant for development and tests.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

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
)

// Compile-time interface checks.
var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*tx)(nil)
)

type holdingKey struct {
	invoice string
	holder  string
}

type state struct {
	invoices       map[string]invoice.Invoice
	invoiceNumbers map[string]id.InvoiceID
	holdings       map[holdingKey]uint64
	listings       map[string]listing.Listing
	tokenIndex     map[string]id.ListingID
	agreements     map[string]agreement.Agreement
	pools          map[string]pool.Pool
	routes         map[string]swap.Route
	swaps          map[string]swap.Swap
	curves         map[string]discount.Curve
	proposals      map[string]discount.Proposal
	settings       *settings.Settings
	counters       map[string]uint64
}

func newState() *state {
	return &state{
		invoices:       make(map[string]invoice.Invoice),
		invoiceNumbers: make(map[string]id.InvoiceID),
		holdings:       make(map[holdingKey]uint64),
		listings:       make(map[string]listing.Listing),
		tokenIndex:     make(map[string]id.ListingID),
		agreements:     make(map[string]agreement.Agreement),
		pools:          make(map[string]pool.Pool),
		routes:         make(map[string]swap.Route),
		swaps:          make(map[string]swap.Swap),
		curves:         make(map[string]discount.Curve),
		proposals:      make(map[string]discount.Proposal),
		counters:       make(map[string]uint64),
	}
}

// clone copies every map. Entities are held by value, so a shallow map copy
// isolates the staged state from the published one.
func (s *state) clone() *state {
	c := &state{
		invoices:       maps.Clone(s.invoices),
		invoiceNumbers: maps.Clone(s.invoiceNumbers),
		holdings:       maps.Clone(s.holdings),
		listings:       maps.Clone(s.listings),
		tokenIndex:     maps.Clone(s.tokenIndex),
		agreements:     maps.Clone(s.agreements),
		pools:          maps.Clone(s.pools),
		routes:         maps.Clone(s.routes),
		swaps:          maps.Clone(s.swaps),
		curves:         maps.Clone(s.curves),
		proposals:      maps.Clone(s.proposals),
		counters:       maps.Clone(s.counters),
	}
	if s.settings != nil {
		cp := *s.settings
		c.settings = &cp
	}
	return c
}

// Store is an in-memory store.Store.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{state: newState()}
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn store.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(ctx, &tx{state: staged, writable: true}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn store.TxFunc) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(ctx, &tx{state: s.state})
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(context.Context) error { return nil }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

type tx struct {
	state    *state
	writable bool
}

func (t *tx) write() error {
	if !t.writable {
		return factoring.ErrReadOnly
	}
	return nil
}

// page applies offset/limit to an already sorted slice.
func page[T any](items []T, limit, offset int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}

// sortedValues returns map values ordered by key. Keys are TypeIDs, which sort
// by creation time.
func sortedValues[V any](m map[string]V, keep func(*V) bool) []*V {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]*V, 0, len(keys))
	for _, k := range keys {
		v := m[k]
		if keep == nil || keep(&v) {
			out = append(out, &v)
		}
	}
	return out
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

func (t *tx) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	if err := t.write(); err != nil {
		return err
	}
	key := inv.ID.String()
	if _, exists := t.state.invoices[key]; exists {
		return factoring.ErrAlreadyExists
	}
	if _, exists := t.state.invoiceNumbers[inv.Number]; exists {
		return factoring.ErrDuplicateInvoice
	}
	t.state.invoices[key] = *inv
	t.state.invoiceNumbers[inv.Number] = inv.ID
	return nil
}

func (t *tx) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	inv, ok := t.state.invoices[invID.String()]
	if !ok {
		return nil, factoring.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (t *tx) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	invID, ok := t.state.invoiceNumbers[number]
	if !ok {
		return nil, factoring.ErrInvoiceNotFound
	}
	return t.GetInvoice(ctx, invID)
}

func (t *tx) ListInvoices(_ context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	result := sortedValues(t.state.invoices, func(inv *invoice.Invoice) bool {
		if opts.Issuer != "" && inv.Issuer != opts.Issuer {
			return false
		}
		if opts.Payer != "" && inv.Payer != opts.Payer {
			return false
		}
		return opts.Verified == nil || inv.Verified == *opts.Verified
	})
	return page(result, opts.Limit, opts.Offset), nil
}

func (t *tx) UpdateInvoice(_ context.Context, inv *invoice.Invoice) error {
	if err := t.write(); err != nil {
		return err
	}
	key := inv.ID.String()
	if _, exists := t.state.invoices[key]; !exists {
		return factoring.ErrInvoiceNotFound
	}
	t.state.invoices[key] = *inv
	return nil
}

func (t *tx) GetHolding(_ context.Context, invID id.InvoiceID, holder string) (uint64, error) {
	return t.state.holdings[holdingKey{invID.String(), holder}], nil
}

func (t *tx) SetHolding(_ context.Context, invID id.InvoiceID, holder string, shares uint64) error {
	if err := t.write(); err != nil {
		return err
	}
	key := holdingKey{invID.String(), holder}
	if shares == 0 {
		delete(t.state.holdings, key)
		return nil
	}
	t.state.holdings[key] = shares
	return nil
}

func (t *tx) ListHoldings(_ context.Context, invID id.InvoiceID) ([]*invoice.Holding, error) {
	want := invID.String()
	result := make([]*invoice.Holding, 0)
	for k, shares := range t.state.holdings {
		if k.invoice == want {
			result = append(result, &invoice.Holding{InvoiceID: invID, Holder: k.holder, Shares: shares})
		}
	}
	slices.SortFunc(result, func(a, b *invoice.Holding) int {
		return cmp.Compare(a.Holder, b.Holder)
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// Listings
// ──────────────────────────────────────────────────

func (t *tx) CreateListing(_ context.Context, l *listing.Listing) error {
	if err := t.write(); err != nil {
		return err
	}
	key := l.ID.String()
	if _, exists := t.state.listings[key]; exists {
		return factoring.ErrAlreadyExists
	}
	t.state.listings[key] = *l
	return nil
}

func (t *tx) GetListing(_ context.Context, listingID id.ListingID) (*listing.Listing, error) {
	l, ok := t.state.listings[listingID.String()]
	if !ok {
		return nil, factoring.ErrListingNotFound
	}
	return &l, nil
}

func (t *tx) ListListings(_ context.Context, opts listing.ListOpts) ([]*listing.Listing, error) {
	result := sortedValues(t.state.listings, func(l *listing.Listing) bool {
		if opts.Seller != "" && l.Seller != opts.Seller {
			return false
		}
		if opts.Status != "" && l.Status != opts.Status {
			return false
		}
		return opts.ExpiredBy == 0 || l.ExpiryClock <= opts.ExpiredBy
	})
	return page(result, opts.Limit, opts.Offset), nil
}

func (t *tx) UpdateListing(_ context.Context, l *listing.Listing) error {
	if err := t.write(); err != nil {
		return err
	}
	key := l.ID.String()
	if _, exists := t.state.listings[key]; !exists {
		return factoring.ErrListingNotFound
	}
	t.state.listings[key] = *l
	return nil
}

func (t *tx) IndexToken(_ context.Context, tokenID id.InvoiceID, listingID id.ListingID) error {
	if err := t.write(); err != nil {
		return err
	}
	key := tokenID.String()
	if _, exists := t.state.tokenIndex[key]; exists {
		return factoring.ErrAlreadyListed
	}
	t.state.tokenIndex[key] = listingID
	return nil
}

func (t *tx) UnindexToken(_ context.Context, tokenID id.InvoiceID) error {
	if err := t.write(); err != nil {
		return err
	}
	delete(t.state.tokenIndex, tokenID.String())
	return nil
}

func (t *tx) ListingForToken(_ context.Context, tokenID id.InvoiceID) (id.ListingID, error) {
	listingID, ok := t.state.tokenIndex[tokenID.String()]
	if !ok {
		return id.Nil, factoring.ErrListingNotFound
	}
	return listingID, nil
}

// ──────────────────────────────────────────────────
// Agreements
// ──────────────────────────────────────────────────

func (t *tx) CreateAgreement(_ context.Context, a *agreement.Agreement) error {
	if err := t.write(); err != nil {
		return err
	}
	key := a.ID.String()
	if _, exists := t.state.agreements[key]; exists {
		return factoring.ErrAlreadyExists
	}
	t.state.agreements[key] = *a
	return nil
}

func (t *tx) GetAgreement(_ context.Context, agreementID id.AgreementID) (*agreement.Agreement, error) {
	a, ok := t.state.agreements[agreementID.String()]
	if !ok {
		return nil, factoring.ErrAgreementNotFound
	}
	return &a, nil
}

func (t *tx) ListAgreements(_ context.Context, opts agreement.ListOpts) ([]*agreement.Agreement, error) {
	result := sortedValues(t.state.agreements, func(a *agreement.Agreement) bool {
		if opts.Buyer != "" && a.Buyer != opts.Buyer {
			return false
		}
		if opts.Seller != "" && a.Seller != opts.Seller {
			return false
		}
		if !opts.ListingID.IsNil() && a.ListingID.String() != opts.ListingID.String() {
			return false
		}
		if opts.Status != "" && a.Status != opts.Status {
			return false
		}
		return opts.SettlesBefore == 0 || a.SettlementClock < opts.SettlesBefore
	})
	return page(result, opts.Limit, opts.Offset), nil
}

func (t *tx) UpdateAgreement(_ context.Context, a *agreement.Agreement) error {
	if err := t.write(); err != nil {
		return err
	}
	key := a.ID.String()
	if _, exists := t.state.agreements[key]; !exists {
		return factoring.ErrAgreementNotFound
	}
	t.state.agreements[key] = *a
	return nil
}

// ──────────────────────────────────────────────────
// Pools
// ──────────────────────────────────────────────────

func (t *tx) CreatePool(_ context.Context, p *pool.Pool) error {
	if err := t.write(); err != nil {
		return err
	}
	key := p.ID.String()
	if _, exists := t.state.pools[key]; exists {
		return factoring.ErrAlreadyExists
	}
	t.state.pools[key] = *p
	return nil
}

func (t *tx) GetPool(_ context.Context, poolID id.PoolID) (*pool.Pool, error) {
	p, ok := t.state.pools[poolID.String()]
	if !ok {
		return nil, factoring.ErrPoolNotFound
	}
	return &p, nil
}

func (t *tx) ListPools(_ context.Context, opts pool.ListOpts) ([]*pool.Pool, error) {
	result := sortedValues(t.state.pools, func(p *pool.Pool) bool {
		if opts.ChainID != 0 && p.ChainID != opts.ChainID {
			return false
		}
		return !opts.EnabledOnly || p.Enabled
	})
	return page(result, opts.Limit, opts.Offset), nil
}

func (t *tx) UpdatePool(_ context.Context, p *pool.Pool) error {
	if err := t.write(); err != nil {
		return err
	}
	key := p.ID.String()
	if _, exists := t.state.pools[key]; !exists {
		return factoring.ErrPoolNotFound
	}
	t.state.pools[key] = *p
	return nil
}

// ──────────────────────────────────────────────────
// Routes and swaps
// ──────────────────────────────────────────────────

func (t *tx) CreateRoute(_ context.Context, r *swap.Route) error {
	if err := t.write(); err != nil {
		return err
	}
	key := r.ID.String()
	if _, exists := t.state.routes[key]; exists {
		return factoring.ErrAlreadyExists
	}
	cp := *r
	cp.PoolPath = slices.Clone(r.PoolPath)
	t.state.routes[key] = cp
	return nil
}

func (t *tx) GetRoute(_ context.Context, routeID id.RouteID) (*swap.Route, error) {
	r, ok := t.state.routes[routeID.String()]
	if !ok {
		return nil, factoring.ErrRouteNotFound
	}
	r.PoolPath = slices.Clone(r.PoolPath)
	return &r, nil
}

func (t *tx) UpdateRoute(_ context.Context, r *swap.Route) error {
	if err := t.write(); err != nil {
		return err
	}
	key := r.ID.String()
	if _, exists := t.state.routes[key]; !exists {
		return factoring.ErrRouteNotFound
	}
	cp := *r
	cp.PoolPath = slices.Clone(r.PoolPath)
	t.state.routes[key] = cp
	return nil
}

func (t *tx) CreateSwap(_ context.Context, s *swap.Swap) error {
	if err := t.write(); err != nil {
		return err
	}
	key := s.ID.String()
	if _, exists := t.state.swaps[key]; exists {
		return factoring.ErrAlreadyExists
	}
	t.state.swaps[key] = *s
	return nil
}

func (t *tx) GetSwap(_ context.Context, swapID id.SwapID) (*swap.Swap, error) {
	s, ok := t.state.swaps[swapID.String()]
	if !ok {
		return nil, factoring.ErrSwapNotFound
	}
	return &s, nil
}

func (t *tx) ListSwaps(_ context.Context, opts swap.ListOpts) ([]*swap.Swap, error) {
	result := sortedValues(t.state.swaps, func(s *swap.Swap) bool {
		return opts.Trader == "" || s.Trader == opts.Trader
	})
	return page(result, opts.Limit, opts.Offset), nil
}

// ──────────────────────────────────────────────────
// Discounts
// ──────────────────────────────────────────────────

func (t *tx) PutCurve(_ context.Context, c *discount.Curve) error {
	if err := t.write(); err != nil {
		return err
	}
	t.state.curves[c.Issuer] = *c
	return nil
}

func (t *tx) GetCurve(_ context.Context, issuer string) (*discount.Curve, error) {
	c, ok := t.state.curves[issuer]
	if !ok {
		return nil, factoring.ErrCurveNotFound
	}
	return &c, nil
}

func (t *tx) CreateProposal(_ context.Context, p *discount.Proposal) error {
	if err := t.write(); err != nil {
		return err
	}
	key := p.ID.String()
	if _, exists := t.state.proposals[key]; exists {
		return factoring.ErrAlreadyExists
	}
	t.state.proposals[key] = *p
	return nil
}

func (t *tx) GetProposal(_ context.Context, proposalID id.ProposalID) (*discount.Proposal, error) {
	p, ok := t.state.proposals[proposalID.String()]
	if !ok {
		return nil, factoring.ErrProposalNotFound
	}
	return &p, nil
}

func (t *tx) ListProposals(_ context.Context, invID id.InvoiceID) ([]*discount.Proposal, error) {
	want := invID.String()
	return sortedValues(t.state.proposals, func(p *discount.Proposal) bool {
		return p.InvoiceID.String() == want
	}), nil
}

func (t *tx) UpdateProposal(_ context.Context, p *discount.Proposal) error {
	if err := t.write(); err != nil {
		return err
	}
	key := p.ID.String()
	if _, exists := t.state.proposals[key]; !exists {
		return factoring.ErrProposalNotFound
	}
	t.state.proposals[key] = *p
	return nil
}

// ──────────────────────────────────────────────────
// Settings and counters
// ──────────────────────────────────────────────────

func (t *tx) GetSettings(context.Context) (*settings.Settings, error) {
	if t.state.settings == nil {
		return nil, factoring.ErrSettingsNotFound
	}
	cp := *t.state.settings
	return &cp, nil
}

func (t *tx) PutSettings(_ context.Context, s *settings.Settings) error {
	if err := t.write(); err != nil {
		return err
	}
	cp := *s
	t.state.settings = &cp
	return nil
}

func (t *tx) IncrementCounter(_ context.Context, name string) (uint64, error) {
	if err := t.write(); err != nil {
		return 0, err
	}
	t.state.counters[name]++
	return t.state.counters[name], nil
}

func (t *tx) Counter(_ context.Context, name string) (uint64, error) {
	return t.state.counters[name], nil
}
