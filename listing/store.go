package listing

import (
	"context"

	"github.com/xraph/factoring/id"
)

// Store persists listings and the token index, which maps an invoice token to
// at most one listing.
type Store interface {
	CreateListing(ctx context.Context, l *Listing) error
	GetListing(ctx context.Context, listingID id.ListingID) (*Listing, error)
	ListListings(ctx context.Context, opts ListOpts) ([]*Listing, error)
	UpdateListing(ctx context.Context, l *Listing) error

	// IndexToken fails with an already-listed error if tokenID is indexed.
	IndexToken(ctx context.Context, tokenID id.InvoiceID, listingID id.ListingID) error
	UnindexToken(ctx context.Context, tokenID id.InvoiceID) error
	ListingForToken(ctx context.Context, tokenID id.InvoiceID) (id.ListingID, error)
}

type ListOpts struct {
	Seller string
	Status Status
	// ExpiredBy selects listings with ExpiryClock <= ExpiredBy when non-zero.
	ExpiredBy uint64
	Limit     int
	Offset    int
}
