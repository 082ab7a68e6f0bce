package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jmoiron/sqlx"

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

var _ store.Tx = (*tx)(nil)

type tx struct {
	tx       *sqlx.Tx
	writable bool
	dialect  Dialect
}

func (t *tx) write() error {
	if !t.writable {
		return factoring.ErrReadOnly
	}
	return nil
}

func (t *tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := t.write(); err != nil {
		return nil, err
	}
	args, err := bindArgs(args)
	if err != nil {
		return nil, err
	}
	return t.tx.ExecContext(ctx, t.tx.Rebind(query), args...)
}

func (t *tx) get(ctx context.Context, dest any, query string, args ...any) error {
	args, err := bindArgs(args)
	if err != nil {
		return err
	}
	return t.tx.GetContext(ctx, dest, t.tx.Rebind(query), args...)
}

func (t *tx) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	args, err := bindArgs(args)
	if err != nil {
		return err
	}
	return t.tx.SelectContext(ctx, dest, t.tx.Rebind(query), args...)
}

// bindArgs converts unsigned amounts to int64. Both backends store amounts
// in signed 64-bit columns.
func bindArgs(args []any) ([]any, error) {
	for i, arg := range args {
		if v, ok := arg.(uint64); ok {
			if v > math.MaxInt64 {
				return nil, fmt.Errorf("factoring/sql: value %d exceeds column range: %w", v, factoring.ErrInvalidParams)
			}
			args[i] = int64(v)
		}
	}
	return args, nil
}

// insert runs an INSERT and maps a unique violation to onConflict.
func (t *tx) insert(ctx context.Context, onConflict error, query string, args ...any) error {
	_, err := t.exec(ctx, query, args...)
	if err != nil && t.dialect.IsUniqueViolation(err) {
		return onConflict
	}
	return err
}

// updateOne runs an UPDATE and returns notFound when no row matched.
func (t *tx) updateOne(ctx context.Context, notFound error, query string, args ...any) error {
	res, err := t.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// where accumulates AND-ed filter clauses.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, arg)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func paginate(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	} else if offset > 0 {
		// Both dialects accept LIMIT -1 / ALL differently; a large limit is portable.
		query += " LIMIT ? OFFSET ?"
		args = append(args, int64(1<<62), offset)
	}
	return query, args
}

// ==================== Invoice Store ====================

const invoiceColumns = `id, invoice_number, issuer, payer, amount, due_date, document_hash,
	fraction_count, total_supply, verified, verified_at, paid, paid_at, issued_at, created_at, updated_at`

func (t *tx) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if _, err := t.GetInvoiceByNumber(ctx, inv.Number); err == nil {
		return factoring.ErrDuplicateInvoice
	} else if !errors.Is(err, factoring.ErrInvoiceNotFound) {
		return err
	}
	r := toInvoiceRow(inv)
	return t.insert(ctx, factoring.ErrAlreadyExists,
		`INSERT INTO factoring_invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Number, r.Issuer, r.Payer, r.Amount, r.DueDate, r.DocumentHash,
		r.FractionCount, r.TotalSupply, r.Verified, r.VerifiedAt, r.Paid, r.PaidAt, r.IssuedAt,
		r.CreatedAt, r.UpdatedAt,
	)
}

func (t *tx) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var r invoiceRow
	if err := t.get(ctx, &r, `SELECT `+invoiceColumns+` FROM factoring_invoices WHERE id = ?`, invID); err != nil {
		if isNoRows(err) {
			return nil, factoring.ErrInvoiceNotFound
		}
		return nil, err
	}
	return fromInvoiceRow(&r), nil
}

func (t *tx) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	var r invoiceRow
	if err := t.get(ctx, &r, `SELECT `+invoiceColumns+` FROM factoring_invoices WHERE invoice_number = ?`, number); err != nil {
		if isNoRows(err) {
			return nil, factoring.ErrInvoiceNotFound
		}
		return nil, err
	}
	return fromInvoiceRow(&r), nil
}

func (t *tx) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var w where
	if opts.Issuer != "" {
		w.add("issuer = ?", opts.Issuer)
	}
	if opts.Payer != "" {
		w.add("payer = ?", opts.Payer)
	}
	if opts.Verified != nil {
		w.add("verified = ?", *opts.Verified)
	}
	query, args := paginate(`SELECT `+invoiceColumns+` FROM factoring_invoices`+w.String()+` ORDER BY id ASC`,
		w.args, opts.Limit, opts.Offset)

	var rows []invoiceRow
	if err := t.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]*invoice.Invoice, len(rows))
	for i := range rows {
		result[i] = fromInvoiceRow(&rows[i])
	}
	return result, nil
}

func (t *tx) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	r := toInvoiceRow(inv)
	return t.updateOne(ctx, factoring.ErrInvoiceNotFound,
		`UPDATE factoring_invoices SET issuer = ?, payer = ?, amount = ?, due_date = ?, document_hash = ?,
		fraction_count = ?, total_supply = ?, verified = ?, verified_at = ?, paid = ?, paid_at = ?,
		updated_at = ? WHERE id = ?`,
		r.Issuer, r.Payer, r.Amount, r.DueDate, r.DocumentHash,
		r.FractionCount, r.TotalSupply, r.Verified, r.VerifiedAt, r.Paid, r.PaidAt,
		r.UpdatedAt, r.ID,
	)
}

func (t *tx) GetHolding(ctx context.Context, invID id.InvoiceID, holder string) (uint64, error) {
	var shares uint64
	err := t.get(ctx, &shares,
		`SELECT shares FROM factoring_holdings WHERE invoice_id = ? AND holder = ?`, invID, holder)
	if isNoRows(err) {
		return 0, nil
	}
	return shares, err
}

func (t *tx) SetHolding(ctx context.Context, invID id.InvoiceID, holder string, shares uint64) error {
	if shares == 0 {
		_, err := t.exec(ctx, `DELETE FROM factoring_holdings WHERE invoice_id = ? AND holder = ?`, invID, holder)
		return err
	}
	_, err := t.exec(ctx,
		`INSERT INTO factoring_holdings (invoice_id, holder, shares) VALUES (?, ?, ?)
		ON CONFLICT (invoice_id, holder) DO UPDATE SET shares = excluded.shares`,
		invID, holder, shares)
	return err
}

func (t *tx) ListHoldings(ctx context.Context, invID id.InvoiceID) ([]*invoice.Holding, error) {
	var rows []holdingRow
	if err := t.selectAll(ctx, &rows,
		`SELECT invoice_id, holder, shares FROM factoring_holdings WHERE invoice_id = ? ORDER BY holder ASC`,
		invID); err != nil {
		return nil, err
	}
	result := make([]*invoice.Holding, len(rows))
	for i, r := range rows {
		result[i] = &invoice.Holding{InvoiceID: r.InvoiceID, Holder: r.Holder, Shares: r.Shares}
	}
	return result, nil
}

// ==================== Listing Store ====================

const listingColumns = `id, token_id, seller, price, expiry_clock, min_purchase, max_purchase,
	terms, status, listed_at, created_at, updated_at`

func (t *tx) CreateListing(ctx context.Context, l *listing.Listing) error {
	r := toListingRow(l)
	return t.insert(ctx, factoring.ErrAlreadyExists,
		`INSERT INTO factoring_listings (`+listingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TokenID, r.Seller, r.Price, r.ExpiryClock, r.MinPurchase, r.MaxPurchase,
		r.Terms, r.Status, r.ListedAt, r.CreatedAt, r.UpdatedAt,
	)
}

func (t *tx) GetListing(ctx context.Context, listingID id.ListingID) (*listing.Listing, error) {
	var r listingRow
	if err := t.get(ctx, &r, `SELECT `+listingColumns+` FROM factoring_listings WHERE id = ?`, listingID); err != nil {
		if isNoRows(err) {
			return nil, factoring.ErrListingNotFound
		}
		return nil, err
	}
	return fromListingRow(&r), nil
}

func (t *tx) ListListings(ctx context.Context, opts listing.ListOpts) ([]*listing.Listing, error) {
	var w where
	if opts.Seller != "" {
		w.add("seller = ?", opts.Seller)
	}
	if opts.Status != "" {
		w.add("status = ?", string(opts.Status))
	}
	if opts.ExpiredBy != 0 {
		w.add("expiry_clock <= ?", opts.ExpiredBy)
	}
	query, args := paginate(`SELECT `+listingColumns+` FROM factoring_listings`+w.String()+` ORDER BY id ASC`,
		w.args, opts.Limit, opts.Offset)

	var rows []listingRow
	if err := t.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]*listing.Listing, len(rows))
	for i := range rows {
		result[i] = fromListingRow(&rows[i])
	}
	return result, nil
}

func (t *tx) UpdateListing(ctx context.Context, l *listing.Listing) error {
	r := toListingRow(l)
	return t.updateOne(ctx, factoring.ErrListingNotFound,
		`UPDATE factoring_listings SET price = ?, expiry_clock = ?, min_purchase = ?, max_purchase = ?,
		terms = ?, status = ?, updated_at = ? WHERE id = ?`,
		r.Price, r.ExpiryClock, r.MinPurchase, r.MaxPurchase, r.Terms, r.Status, r.UpdatedAt, r.ID,
	)
}

func (t *tx) IndexToken(ctx context.Context, tokenID id.InvoiceID, listingID id.ListingID) error {
	return t.insert(ctx, factoring.ErrAlreadyListed,
		`INSERT INTO factoring_token_index (token_id, listing_id) VALUES (?, ?)`, tokenID, listingID)
}

func (t *tx) UnindexToken(ctx context.Context, tokenID id.InvoiceID) error {
	_, err := t.exec(ctx, `DELETE FROM factoring_token_index WHERE token_id = ?`, tokenID)
	return err
}

func (t *tx) ListingForToken(ctx context.Context, tokenID id.InvoiceID) (id.ListingID, error) {
	var listingID id.ListingID
	if err := t.get(ctx, &listingID, `SELECT listing_id FROM factoring_token_index WHERE token_id = ?`, tokenID); err != nil {
		if isNoRows(err) {
			return id.Nil, factoring.ErrListingNotFound
		}
		return id.Nil, err
	}
	return listingID, nil
}

// ==================== Agreement Store ====================

const agreementColumns = `id, listing_id, token_id, buyer, seller, purchase_amount, agreed_price, platform_fee,
	agreement_clock, settlement_clock, status, terms, completed_at, created_at, updated_at`

func (t *tx) CreateAgreement(ctx context.Context, a *agreement.Agreement) error {
	r := toAgreementRow(a)
	return t.insert(ctx, factoring.ErrAlreadyExists,
		`INSERT INTO factoring_agreements (`+agreementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ListingID, r.TokenID, r.Buyer, r.Seller, r.PurchaseAmount, r.AgreedPrice, r.PlatformFee,
		r.AgreementClock, r.SettlementClock, r.Status, r.Terms, r.CompletedAt, r.CreatedAt, r.UpdatedAt,
	)
}

func (t *tx) GetAgreement(ctx context.Context, agreementID id.AgreementID) (*agreement.Agreement, error) {
	var r agreementRow
	if err := t.get(ctx, &r, `SELECT `+agreementColumns+` FROM factoring_agreements WHERE id = ?`, agreementID); err != nil {
		if isNoRows(err) {
			return nil, factoring.ErrAgreementNotFound
		}
		return nil, err
	}
	return fromAgreementRow(&r), nil
}

func (t *tx) ListAgreements(ctx context.Context, opts agreement.ListOpts) ([]*agreement.Agreement, error) {
	var w where
	if opts.Buyer != "" {
		w.add("buyer = ?", opts.Buyer)
	}
	if opts.Seller != "" {
		w.add("seller = ?", opts.Seller)
	}
	if !opts.ListingID.IsNil() {
		w.add("listing_id = ?", opts.ListingID)
	}
	if opts.Status != "" {
		w.add("status = ?", string(opts.Status))
	}
	if opts.SettlesBefore != 0 {
		w.add("settlement_clock < ?", opts.SettlesBefore)
	}
	query, args := paginate(`SELECT `+agreementColumns+` FROM factoring_agreements`+w.String()+` ORDER BY id ASC`,
		w.args, opts.Limit, opts.Offset)

	var rows []agreementRow
	if err := t.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]*agreement.Agreement, len(rows))
	for i := range rows {
		result[i] = fromAgreementRow(&rows[i])
	}
	return result, nil
}

func (t *tx) UpdateAgreement(ctx context.Context, a *agreement.Agreement) error {
	r := toAgreementRow(a)
	return t.updateOne(ctx, factoring.ErrAgreementNotFound,
		`UPDATE factoring_agreements SET platform_fee = ?, status = ?, terms = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`,
		r.PlatformFee, r.Status, r.Terms, r.CompletedAt, r.UpdatedAt, r.ID,
	)
}

// ==================== Pool Store ====================

const poolColumns = `id, token_a, token_b, reserve_a, reserve_b, fee_rate_bps, chain_id, enabled, created_at, updated_at`

func (t *tx) CreatePool(ctx context.Context, p *pool.Pool) error {
	r := toPoolRow(p)
	return t.insert(ctx, factoring.ErrAlreadyExists,
		`INSERT INTO factoring_pools (`+poolColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TokenA, r.TokenB, r.ReserveA, r.ReserveB, r.FeeRateBps, r.ChainID, r.Enabled,
		r.CreatedAt, r.UpdatedAt,
	)
}

func (t *tx) GetPool(ctx context.Context, poolID id.PoolID) (*pool.Pool, error) {
	var r poolRow
	if err := t.get(ctx, &r, `SELECT `+poolColumns+` FROM factoring_pools WHERE id = ?`, poolID); err != nil {
		if isNoRows(err) {
			return nil, factoring.ErrPoolNotFound
		}
		return nil, err
	}
	return fromPoolRow(&r), nil
}

func (t *tx) ListPools(ctx context.Context, opts pool.ListOpts) ([]*pool.Pool, error) {
	var w where
	if opts.ChainID != 0 {
		w.add("chain_id = ?", opts.ChainID)
	}
	if opts.EnabledOnly {
		w.add("enabled = ?", true)
	}
	query, args := paginate(`SELECT `+poolColumns+` FROM factoring_pools`+w.String()+` ORDER BY id ASC`,
		w.args, opts.Limit, opts.Offset)

	var rows []poolRow
	if err := t.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]*pool.Pool, len(rows))
	for i := range rows {
		result[i] = fromPoolRow(&rows[i])
	}
	return result, nil
}

func (t *tx) UpdatePool(ctx context.Context, p *pool.Pool) error {
	r := toPoolRow(p)
	return t.updateOne(ctx, factoring.ErrPoolNotFound,
		`UPDATE factoring_pools SET reserve_a = ?, reserve_b = ?, fee_rate_bps = ?, enabled = ?, updated_at = ?
		WHERE id = ?`,
		r.ReserveA, r.ReserveB, r.FeeRateBps, r.Enabled, r.UpdatedAt, r.ID,
	)
}

// ==================== Route and Swap Store ====================

const routeColumns = `id, input_token, output_token, input_amount, pool_path, estimated_output, total_fees,
	gas_cost, slippage_bps, chain_id, quoted_at, consumed, created_at, updated_at`

func (t *tx) CreateRoute(ctx context.Context, rt *swap.Route) error {
	r, err := toRouteRow(rt)
	if err != nil {
		return err
	}
	return t.insert(ctx, factoring.ErrAlreadyExists,
		`INSERT INTO factoring_routes (`+routeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.InputToken, r.OutputToken, r.InputAmount, r.PoolPath, r.EstimatedOutput, r.TotalFees,
		r.GasCost, r.SlippageBps, r.ChainID, r.QuotedAt, r.Consumed, r.CreatedAt, r.UpdatedAt,
	)
}

func (t *tx) GetRoute(ctx context.Context, routeID id.RouteID) (*swap.Route, error) {
	var r routeRow
	if err := t.get(ctx, &r, `SELECT `+routeColumns+` FROM factoring_routes WHERE id = ?`, routeID); err != nil {
		if isNoRows(err) {
			return nil, factoring.ErrRouteNotFound
		}
		return nil, err
	}
	return fromRouteRow(&r)
}

func (t *tx) UpdateRoute(ctx context.Context, rt *swap.Route) error {
	r, err := toRouteRow(rt)
	if err != nil {
		return err
	}
	return t.updateOne(ctx, factoring.ErrRouteNotFound,
		`UPDATE factoring_routes SET pool_path = ?, estimated_output = ?, total_fees = ?, gas_cost = ?,
		slippage_bps = ?, consumed = ?, updated_at = ? WHERE id = ?`,
		r.PoolPath, r.EstimatedOutput, r.TotalFees, r.GasCost, r.SlippageBps, r.Consumed, r.UpdatedAt, r.ID,
	)
}

const swapColumns = `id, route_id, trader, input_token, output_token, input_amount, output_amount,
	fee_amount, slippage_bps, executed_at, created_at, updated_at`

func (t *tx) CreateSwap(ctx context.Context, s *swap.Swap) error {
	r := toSwapRow(s)
	return t.insert(ctx, factoring.ErrAlreadyExists,
		`INSERT INTO factoring_swaps (`+swapColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RouteID, r.Trader, r.InputToken, r.OutputToken, r.InputAmount, r.OutputAmount,
		r.FeeAmount, r.SlippageBps, r.ExecutedAt, r.CreatedAt, r.UpdatedAt,
	)
}

func (t *tx) GetSwap(ctx context.Context, swapID id.SwapID) (*swap.Swap, error) {
	var r swapRow
	if err := t.get(ctx, &r, `SELECT `+swapColumns+` FROM factoring_swaps WHERE id = ?`, swapID); err != nil {
		if isNoRows(err) {
			return nil, factoring.ErrSwapNotFound
		}
		return nil, err
	}
	return fromSwapRow(&r), nil
}

func (t *tx) ListSwaps(ctx context.Context, opts swap.ListOpts) ([]*swap.Swap, error) {
	var w where
	if opts.Trader != "" {
		w.add("trader = ?", opts.Trader)
	}
	query, args := paginate(`SELECT `+swapColumns+` FROM factoring_swaps`+w.String()+` ORDER BY id ASC`,
		w.args, opts.Limit, opts.Offset)

	var rows []swapRow
	if err := t.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]*swap.Swap, len(rows))
	for i := range rows {
		result[i] = fromSwapRow(&rows[i])
	}
	return result, nil
}

// ==================== Discount Store ====================

const curveColumns = `issuer, base_rate_bps, max_rate_bps, time_factor, active, created_at, updated_at`

func (t *tx) PutCurve(ctx context.Context, c *discount.Curve) error {
	r := toCurveRow(c)
	_, err := t.exec(ctx,
		`INSERT INTO factoring_discount_curves (`+curveColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (issuer) DO UPDATE SET base_rate_bps = excluded.base_rate_bps,
		max_rate_bps = excluded.max_rate_bps, time_factor = excluded.time_factor,
		active = excluded.active, updated_at = excluded.updated_at`,
		r.Issuer, r.BaseRateBps, r.MaxRateBps, r.TimeFactor, r.Active, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (t *tx) GetCurve(ctx context.Context, issuer string) (*discount.Curve, error) {
	var r curveRow
	if err := t.get(ctx, &r, `SELECT `+curveColumns+` FROM factoring_discount_curves WHERE issuer = ?`, issuer); err != nil {
		if isNoRows(err) {
			return nil, factoring.ErrCurveNotFound
		}
		return nil, err
	}
	return fromCurveRow(&r), nil
}

const proposalColumns = `id, invoice_id, proposer, counterparty, discount_rate_bps, valid_until,
	accepted, accepted_at, proposed_at, created_at, updated_at`

func (t *tx) CreateProposal(ctx context.Context, p *discount.Proposal) error {
	r := toProposalRow(p)
	return t.insert(ctx, factoring.ErrAlreadyExists,
		`INSERT INTO factoring_discount_proposals (`+proposalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.InvoiceID, r.Proposer, r.Counterparty, r.DiscountRateBps, r.ValidUntil,
		r.Accepted, r.AcceptedAt, r.ProposedAt, r.CreatedAt, r.UpdatedAt,
	)
}

func (t *tx) GetProposal(ctx context.Context, proposalID id.ProposalID) (*discount.Proposal, error) {
	var r proposalRow
	if err := t.get(ctx, &r, `SELECT `+proposalColumns+` FROM factoring_discount_proposals WHERE id = ?`, proposalID); err != nil {
		if isNoRows(err) {
			return nil, factoring.ErrProposalNotFound
		}
		return nil, err
	}
	return fromProposalRow(&r), nil
}

func (t *tx) ListProposals(ctx context.Context, invID id.InvoiceID) ([]*discount.Proposal, error) {
	var rows []proposalRow
	if err := t.selectAll(ctx, &rows,
		`SELECT `+proposalColumns+` FROM factoring_discount_proposals WHERE invoice_id = ? ORDER BY id ASC`,
		invID); err != nil {
		return nil, err
	}
	result := make([]*discount.Proposal, len(rows))
	for i := range rows {
		result[i] = fromProposalRow(&rows[i])
	}
	return result, nil
}

func (t *tx) UpdateProposal(ctx context.Context, p *discount.Proposal) error {
	r := toProposalRow(p)
	return t.updateOne(ctx, factoring.ErrProposalNotFound,
		`UPDATE factoring_discount_proposals SET discount_rate_bps = ?, valid_until = ?, accepted = ?,
		accepted_at = ?, updated_at = ? WHERE id = ?`,
		r.DiscountRateBps, r.ValidUntil, r.Accepted, r.AcceptedAt, r.UpdatedAt, r.ID,
	)
}

// ==================== Settings Store ====================

func (t *tx) GetSettings(ctx context.Context) (*settings.Settings, error) {
	var r settingsRow
	if err := t.get(ctx, &r,
		`SELECT marketplace_fee_bps, platform_address, aggregator_enabled, max_slippage_bps, local_chain_id
		FROM factoring_settings WHERE id = 1`); err != nil {
		if isNoRows(err) {
			return nil, factoring.ErrSettingsNotFound
		}
		return nil, err
	}
	return fromSettingsRow(&r), nil
}

func (t *tx) PutSettings(ctx context.Context, s *settings.Settings) error {
	_, err := t.exec(ctx,
		`INSERT INTO factoring_settings (id, marketplace_fee_bps, platform_address, aggregator_enabled,
		max_slippage_bps, local_chain_id) VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET marketplace_fee_bps = excluded.marketplace_fee_bps,
		platform_address = excluded.platform_address, aggregator_enabled = excluded.aggregator_enabled,
		max_slippage_bps = excluded.max_slippage_bps, local_chain_id = excluded.local_chain_id`,
		s.MarketplaceFeeBps, s.PlatformAddress, s.AggregatorEnabled, s.MaxSlippageBps, s.LocalChainID,
	)
	return err
}

func (t *tx) IncrementCounter(ctx context.Context, name string) (uint64, error) {
	if _, err := t.exec(ctx,
		`INSERT INTO factoring_counters (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = factoring_counters.value + 1`, name); err != nil {
		return 0, err
	}
	return t.Counter(ctx, name)
}

func (t *tx) Counter(ctx context.Context, name string) (uint64, error) {
	var value uint64
	err := t.get(ctx, &value, `SELECT value FROM factoring_counters WHERE name = ?`, name)
	if isNoRows(err) {
		return 0, nil
	}
	return value, err
}
