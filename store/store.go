// Package store defines the aggregate persistence contract for the rental
// engine. Backends live in the sub-packages.
package store

import (
	"context"

	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/earning"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/refund"
)

// TxFunc runs against a transactional view of the store.
type TxFunc func(ctx context.Context, tx Store) error

// Store is the unified storage interface for listings, bookings, earnings
// and refunds.
type Store interface {
	listing.Store
	booking.Store
	earning.Store
	refund.Store

	// RunInTx runs fn inside one transaction. A non-nil error from fn, or
	// from commit, discards every write made through tx.
	RunInTx(ctx context.Context, fn TxFunc) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
