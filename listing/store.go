package listing

import (
	"context"

	"github.com/xraph/rental/asset"
)

// Store persists listings. Implementations return listings ordered by Seq.
type Store interface {
	// CreateListing stores l and assigns its Seq. Fails with
	// rental.ErrAlreadyListed when l.Asset is already listed.
	CreateListing(ctx context.Context, l *Listing) error
	// GetListing returns rental.ErrListingNotFound when ref is not listed.
	GetListing(ctx context.Context, ref asset.Ref) (*Listing, error)
	ListListings(ctx context.Context, opts ListOpts) ([]*Listing, error)
	// DeleteListing returns rental.ErrListingNotFound when ref is not listed.
	DeleteListing(ctx context.Context, ref asset.Ref) error
	// ListCollections returns each collection with at least one listing,
	// ordered by its earliest listing.
	ListCollections(ctx context.Context) ([]asset.Address, error)
}
