// Package mongo provides a MongoDB-backed store.Store.
//
// Update runs inside a multi-document transaction, which requires a replica
// set or sharded cluster. Call Migrate before use; it creates every
// collection and its indexes up front so transactions never create them
// implicitly.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/factoring/store"
)

// Collection name constants.
const (
	colInvoices   = "factoring_invoices"
	colHoldings   = "factoring_holdings"
	colListings   = "factoring_listings"
	colTokenIndex = "factoring_token_index"
	colAgreements = "factoring_agreements"
	colPools      = "factoring_pools"
	colRoutes     = "factoring_routes"
	colSwaps      = "factoring_swaps"
	colCurves     = "factoring_discount_curves"
	colProposals  = "factoring_discount_proposals"
	colSettings   = "factoring_settings"
	colCounters   = "factoring_counters"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a store over an existing client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Open connects to uri and uses the named database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" || database == "" {
		return nil, fmt.Errorf("factoring/mongo: uri and database are required")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("factoring/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("factoring/mongo: ping: %w", err)
	}
	return New(client, database), nil
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates collections and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			if err := s.ensureCollection(ctx, col); err != nil {
				return err
			}
			continue
		}
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("factoring/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

func (s *Store) ensureCollection(ctx context.Context, name string) error {
	names, err := s.db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return fmt.Errorf("factoring/mongo: list collections: %w", err)
	}
	if len(names) > 0 {
		return nil
	}
	if err := s.db.CreateCollection(ctx, name); err != nil {
		return fmt.Errorf("factoring/mongo: create %s: %w", name, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn store.TxFunc) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("factoring/mongo: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc context.Context) (any, error) {
		return nil, fn(sc, &tx{db: s.db, writable: true})
	})
	return err
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn store.TxFunc) error {
	return fn(ctx, &tx{db: s.db})
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colInvoices: {
			{
				Keys:    bson.D{{Key: "invoice_number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "issuer", Value: 1}}},
			{Keys: bson.D{{Key: "payer", Value: 1}}},
		},
		colHoldings: {
			{
				Keys:    bson.D{{Key: "invoice_id", Value: 1}, {Key: "holder", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colListings: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expiry_clock", Value: 1}}},
			{Keys: bson.D{{Key: "seller", Value: 1}}},
		},
		colTokenIndex: {},
		colAgreements: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "settlement_clock", Value: 1}}},
			{Keys: bson.D{{Key: "buyer", Value: 1}}},
			{Keys: bson.D{{Key: "seller", Value: 1}}},
			{Keys: bson.D{{Key: "listing_id", Value: 1}}},
		},
		colPools: {
			{Keys: bson.D{{Key: "chain_id", Value: 1}, {Key: "enabled", Value: 1}}},
		},
		colRoutes: {},
		colSwaps: {
			{Keys: bson.D{{Key: "trader", Value: 1}}},
			{Keys: bson.D{{Key: "route_id", Value: 1}}},
		},
		colCurves: {},
		colProposals: {
			{Keys: bson.D{{Key: "invoice_id", Value: 1}}},
		},
		colSettings: {},
		colCounters: {},
	}
}
