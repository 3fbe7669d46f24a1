// Package listing holds the listing record: an asset offered for rent at a
// daily price within a day-count window.
package listing

import (
	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/id"
	"github.com/xraph/rental/types"
)

// Listing is an asset held in marketplace custody and offered for rent.
// The zero Listing is the "not listed" sentinel returned by reads.
type Listing struct {
	types.Entity

	ID            id.ID         `json:"id"`
	Seq           int64         `json:"seq"`
	Lender        asset.Address `json:"lender"`
	Asset         asset.Ref     `json:"asset"`
	PricePerDay   types.Money   `json:"price_per_day"`
	MinRentalDays int64         `json:"min_rental_days"`
	MaxRentalDays int64         `json:"max_rental_days"`
}

// Exists reports whether l is a stored listing rather than the sentinel.
func (l Listing) Exists() bool { return !l.Lender.IsZero() }

// AllowsDays reports whether a booking of days days fits the window.
func (l Listing) AllowsDays(days int64) bool {
	return days >= l.MinRentalDays && days <= l.MaxRentalDays
}

// ListOpts filters ListListings. Zero fields match everything.
type ListOpts struct {
	Lender     asset.Address
	Collection asset.Address
}
