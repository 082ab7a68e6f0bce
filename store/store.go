// Package store defines the aggregate persistence interface for Factoring.
//
// Every mutating engine call runs inside a single Update transaction so that
// a failed call leaves no partial state behind. Backends live in the
// subpackages: memory, sqlite, postgres and mongo.
package store

import (
	"context"

	"github.com/xraph/factoring/agreement"
	"github.com/xraph/factoring/discount"
	"github.com/xraph/factoring/invoice"
	"github.com/xraph/factoring/listing"
	"github.com/xraph/factoring/pool"
	"github.com/xraph/factoring/settings"
	"github.com/xraph/factoring/swap"
)

// Tx is the set of entity operations available inside a transaction. The
// per-entity store interfaces use distinct method names so they can be
// embedded together.
type Tx interface {
	invoice.Store
	listing.Store
	agreement.Store
	pool.Store
	swap.Store
	discount.Store
	settings.Store
}

// TxFunc is the body of a transaction.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the unified storage interface for all Factoring entities.
type Store interface {
	// Update runs fn in a read-write transaction. If fn returns an error
	// nothing it wrote is kept.
	Update(ctx context.Context, fn TxFunc) error

	// View runs fn in a read-only transaction. Writes fail with
	// factoring.ErrReadOnly.
	View(ctx context.Context, fn TxFunc) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
