package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

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

// tx issues operations with the context handed to the transaction callback,
// which carries the session.
type tx struct {
	db       *mongo.Database
	writable bool
}

func (t *tx) write() error {
	if !t.writable {
		return factoring.ErrReadOnly
	}
	return nil
}

func (t *tx) col(name string) *mongo.Collection {
	return t.db.Collection(name)
}

func (t *tx) insert(ctx context.Context, col string, doc any, onConflict error) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, err := t.col(col).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return onConflict
		}
		return fmt.Errorf("factoring/mongo: insert %s: %w", col, err)
	}
	return nil
}

func (t *tx) replace(ctx context.Context, col, docID string, doc any, notFound error) error {
	if err := t.write(); err != nil {
		return err
	}
	res, err := t.col(col).ReplaceOne(ctx, bson.M{"_id": docID}, doc)
	if err != nil {
		return fmt.Errorf("factoring/mongo: update %s: %w", col, err)
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

func (t *tx) upsert(ctx context.Context, col, docID string, doc any) error {
	if err := t.write(); err != nil {
		return err
	}
	_, err := t.col(col).ReplaceOne(ctx, bson.M{"_id": docID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("factoring/mongo: upsert %s: %w", col, err)
	}
	return nil
}

func findOne[T any](ctx context.Context, c *mongo.Collection, filter bson.M, notFound error) (*T, error) {
	var m T
	if err := c.FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, notFound
		}
		return nil, fmt.Errorf("factoring/mongo: find %s: %w", c.Name(), err)
	}
	return &m, nil
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter bson.M, sort bson.D, limit, offset int) ([]T, error) {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	cursor, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("factoring/mongo: list %s: %w", c.Name(), err)
	}
	var models []T
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("factoring/mongo: decode %s: %w", c.Name(), err)
	}
	return models, nil
}

func convertAll[M, E any](models []M, conv func(*M) (*E, error)) ([]*E, error) {
	result := make([]*E, 0, len(models))
	for i := range models {
		e, err := conv(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

var byID = bson.D{{Key: "_id", Value: 1}}

// ==================== Invoice Store ====================

func (t *tx) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if _, err := t.GetInvoiceByNumber(ctx, inv.Number); err == nil {
		return factoring.ErrDuplicateInvoice
	} else if err != factoring.ErrInvoiceNotFound {
		return err
	}
	return t.insert(ctx, colInvoices, toInvoiceModel(inv), factoring.ErrAlreadyExists)
}

func (t *tx) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m, err := findOne[invoiceModel](ctx, t.col(colInvoices), bson.M{"_id": invID.String()}, factoring.ErrInvoiceNotFound)
	if err != nil {
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (t *tx) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	m, err := findOne[invoiceModel](ctx, t.col(colInvoices), bson.M{"invoice_number": number}, factoring.ErrInvoiceNotFound)
	if err != nil {
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (t *tx) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	filter := bson.M{}
	if opts.Issuer != "" {
		filter["issuer"] = opts.Issuer
	}
	if opts.Payer != "" {
		filter["payer"] = opts.Payer
	}
	if opts.Verified != nil {
		filter["verified"] = *opts.Verified
	}
	models, err := findAll[invoiceModel](ctx, t.col(colInvoices), filter, byID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	return convertAll(models, fromInvoiceModel)
}

func (t *tx) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	return t.replace(ctx, colInvoices, inv.ID.String(), toInvoiceModel(inv), factoring.ErrInvoiceNotFound)
}

func (t *tx) GetHolding(ctx context.Context, invID id.InvoiceID, holder string) (uint64, error) {
	m, err := findOne[holdingModel](ctx, t.col(colHoldings),
		bson.M{"invoice_id": invID.String(), "holder": holder}, factoring.ErrNotFound)
	if err == factoring.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return m.Shares, nil
}

func (t *tx) SetHolding(ctx context.Context, invID id.InvoiceID, holder string, shares uint64) error {
	if err := t.write(); err != nil {
		return err
	}
	filter := bson.M{"invoice_id": invID.String(), "holder": holder}
	if shares == 0 {
		if _, err := t.col(colHoldings).DeleteOne(ctx, filter); err != nil {
			return fmt.Errorf("factoring/mongo: delete holding: %w", err)
		}
		return nil
	}
	_, err := t.col(colHoldings).UpdateOne(ctx, filter,
		bson.M{"$set": bson.M{"shares": shares}}, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("factoring/mongo: set holding: %w", err)
	}
	return nil
}

func (t *tx) ListHoldings(ctx context.Context, invID id.InvoiceID) ([]*invoice.Holding, error) {
	models, err := findAll[holdingModel](ctx, t.col(colHoldings), bson.M{"invoice_id": invID.String()},
		bson.D{{Key: "holder", Value: 1}}, 0, 0)
	if err != nil {
		return nil, err
	}
	return convertAll(models, func(m *holdingModel) (*invoice.Holding, error) {
		return &invoice.Holding{InvoiceID: invID, Holder: m.Holder, Shares: m.Shares}, nil
	})
}

// ==================== Listing Store ====================

func (t *tx) CreateListing(ctx context.Context, l *listing.Listing) error {
	return t.insert(ctx, colListings, toListingModel(l), factoring.ErrAlreadyExists)
}

func (t *tx) GetListing(ctx context.Context, listingID id.ListingID) (*listing.Listing, error) {
	m, err := findOne[listingModel](ctx, t.col(colListings), bson.M{"_id": listingID.String()}, factoring.ErrListingNotFound)
	if err != nil {
		return nil, err
	}
	return fromListingModel(m)
}

func (t *tx) ListListings(ctx context.Context, opts listing.ListOpts) ([]*listing.Listing, error) {
	filter := bson.M{}
	if opts.Seller != "" {
		filter["seller"] = opts.Seller
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.ExpiredBy > 0 {
		filter["expiry_clock"] = bson.M{"$lte": opts.ExpiredBy}
	}
	models, err := findAll[listingModel](ctx, t.col(colListings), filter, byID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	return convertAll(models, fromListingModel)
}

func (t *tx) UpdateListing(ctx context.Context, l *listing.Listing) error {
	return t.replace(ctx, colListings, l.ID.String(), toListingModel(l), factoring.ErrListingNotFound)
}

func (t *tx) IndexToken(ctx context.Context, tokenID id.InvoiceID, listingID id.ListingID) error {
	return t.insert(ctx, colTokenIndex,
		&tokenIndexModel{TokenID: tokenID.String(), ListingID: listingID.String()}, factoring.ErrAlreadyListed)
}

func (t *tx) UnindexToken(ctx context.Context, tokenID id.InvoiceID) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, err := t.col(colTokenIndex).DeleteOne(ctx, bson.M{"_id": tokenID.String()}); err != nil {
		return fmt.Errorf("factoring/mongo: unindex token: %w", err)
	}
	return nil
}

func (t *tx) ListingForToken(ctx context.Context, tokenID id.InvoiceID) (id.ListingID, error) {
	m, err := findOne[tokenIndexModel](ctx, t.col(colTokenIndex), bson.M{"_id": tokenID.String()}, factoring.ErrListingNotFound)
	if err != nil {
		return id.Nil, err
	}
	return id.ParseListingID(m.ListingID)
}

// ==================== Agreement Store ====================

func (t *tx) CreateAgreement(ctx context.Context, a *agreement.Agreement) error {
	return t.insert(ctx, colAgreements, toAgreementModel(a), factoring.ErrAlreadyExists)
}

func (t *tx) GetAgreement(ctx context.Context, agreementID id.AgreementID) (*agreement.Agreement, error) {
	m, err := findOne[agreementModel](ctx, t.col(colAgreements), bson.M{"_id": agreementID.String()}, factoring.ErrAgreementNotFound)
	if err != nil {
		return nil, err
	}
	return fromAgreementModel(m)
}

func (t *tx) ListAgreements(ctx context.Context, opts agreement.ListOpts) ([]*agreement.Agreement, error) {
	filter := bson.M{}
	if opts.Buyer != "" {
		filter["buyer"] = opts.Buyer
	}
	if opts.Seller != "" {
		filter["seller"] = opts.Seller
	}
	if !opts.ListingID.IsNil() {
		filter["listing_id"] = opts.ListingID.String()
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.SettlesBefore > 0 {
		filter["settlement_clock"] = bson.M{"$lt": opts.SettlesBefore}
	}
	models, err := findAll[agreementModel](ctx, t.col(colAgreements), filter, byID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	return convertAll(models, fromAgreementModel)
}

func (t *tx) UpdateAgreement(ctx context.Context, a *agreement.Agreement) error {
	return t.replace(ctx, colAgreements, a.ID.String(), toAgreementModel(a), factoring.ErrAgreementNotFound)
}

// ==================== Pool Store ====================

func (t *tx) CreatePool(ctx context.Context, p *pool.Pool) error {
	return t.insert(ctx, colPools, toPoolModel(p), factoring.ErrAlreadyExists)
}

func (t *tx) GetPool(ctx context.Context, poolID id.PoolID) (*pool.Pool, error) {
	m, err := findOne[poolModel](ctx, t.col(colPools), bson.M{"_id": poolID.String()}, factoring.ErrPoolNotFound)
	if err != nil {
		return nil, err
	}
	return fromPoolModel(m)
}

func (t *tx) ListPools(ctx context.Context, opts pool.ListOpts) ([]*pool.Pool, error) {
	filter := bson.M{}
	if opts.ChainID != 0 {
		filter["chain_id"] = opts.ChainID
	}
	if opts.EnabledOnly {
		filter["enabled"] = true
	}
	models, err := findAll[poolModel](ctx, t.col(colPools), filter, byID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	return convertAll(models, fromPoolModel)
}

func (t *tx) UpdatePool(ctx context.Context, p *pool.Pool) error {
	return t.replace(ctx, colPools, p.ID.String(), toPoolModel(p), factoring.ErrPoolNotFound)
}

// ==================== Swap Store ====================

func (t *tx) CreateRoute(ctx context.Context, r *swap.Route) error {
	return t.insert(ctx, colRoutes, toRouteModel(r), factoring.ErrAlreadyExists)
}

func (t *tx) GetRoute(ctx context.Context, routeID id.RouteID) (*swap.Route, error) {
	m, err := findOne[routeModel](ctx, t.col(colRoutes), bson.M{"_id": routeID.String()}, factoring.ErrRouteNotFound)
	if err != nil {
		return nil, err
	}
	return fromRouteModel(m)
}

func (t *tx) UpdateRoute(ctx context.Context, r *swap.Route) error {
	return t.replace(ctx, colRoutes, r.ID.String(), toRouteModel(r), factoring.ErrRouteNotFound)
}

func (t *tx) CreateSwap(ctx context.Context, s *swap.Swap) error {
	return t.insert(ctx, colSwaps, toSwapModel(s), factoring.ErrAlreadyExists)
}

func (t *tx) GetSwap(ctx context.Context, swapID id.SwapID) (*swap.Swap, error) {
	m, err := findOne[swapModel](ctx, t.col(colSwaps), bson.M{"_id": swapID.String()}, factoring.ErrSwapNotFound)
	if err != nil {
		return nil, err
	}
	return fromSwapModel(m)
}

func (t *tx) ListSwaps(ctx context.Context, opts swap.ListOpts) ([]*swap.Swap, error) {
	filter := bson.M{}
	if opts.Trader != "" {
		filter["trader"] = opts.Trader
	}
	models, err := findAll[swapModel](ctx, t.col(colSwaps), filter, byID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	return convertAll(models, fromSwapModel)
}

// ==================== Discount Store ====================

func (t *tx) PutCurve(ctx context.Context, c *discount.Curve) error {
	return t.upsert(ctx, colCurves, c.Issuer, toCurveModel(c))
}

func (t *tx) GetCurve(ctx context.Context, issuer string) (*discount.Curve, error) {
	m, err := findOne[curveModel](ctx, t.col(colCurves), bson.M{"_id": issuer}, factoring.ErrCurveNotFound)
	if err != nil {
		return nil, err
	}
	return fromCurveModel(m), nil
}

func (t *tx) CreateProposal(ctx context.Context, p *discount.Proposal) error {
	return t.insert(ctx, colProposals, toProposalModel(p), factoring.ErrAlreadyExists)
}

func (t *tx) GetProposal(ctx context.Context, proposalID id.ProposalID) (*discount.Proposal, error) {
	m, err := findOne[proposalModel](ctx, t.col(colProposals), bson.M{"_id": proposalID.String()}, factoring.ErrProposalNotFound)
	if err != nil {
		return nil, err
	}
	return fromProposalModel(m)
}

func (t *tx) ListProposals(ctx context.Context, invID id.InvoiceID) ([]*discount.Proposal, error) {
	models, err := findAll[proposalModel](ctx, t.col(colProposals), bson.M{"invoice_id": invID.String()}, byID, 0, 0)
	if err != nil {
		return nil, err
	}
	return convertAll(models, fromProposalModel)
}

func (t *tx) UpdateProposal(ctx context.Context, p *discount.Proposal) error {
	return t.replace(ctx, colProposals, p.ID.String(), toProposalModel(p), factoring.ErrProposalNotFound)
}

// ==================== Settings Store ====================

func (t *tx) GetSettings(ctx context.Context) (*settings.Settings, error) {
	m, err := findOne[settingsModel](ctx, t.col(colSettings), bson.M{"_id": settingsDocID}, factoring.ErrSettingsNotFound)
	if err != nil {
		return nil, err
	}
	return fromSettingsModel(m), nil
}

func (t *tx) PutSettings(ctx context.Context, s *settings.Settings) error {
	return t.upsert(ctx, colSettings, settingsDocID, toSettingsModel(s))
}

func (t *tx) IncrementCounter(ctx context.Context, name string) (uint64, error) {
	if err := t.write(); err != nil {
		return 0, err
	}
	var m counterModel
	err := t.col(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		return 0, fmt.Errorf("factoring/mongo: increment %s: %w", name, err)
	}
	return m.Value, nil
}

func (t *tx) Counter(ctx context.Context, name string) (uint64, error) {
	m, err := findOne[counterModel](ctx, t.col(colCounters), bson.M{"_id": name}, factoring.ErrNotFound)
	if err == factoring.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return m.Value, nil
}
