package booking

import (
	"context"

	"github.com/xraph/rental/asset"
)

// Store persists bookings as one append-only sequence per asset.
type Store interface {
	// AppendBooking assigns b.Seq as the next position for b.Asset.
	AppendBooking(ctx context.Context, b *Booking) error
	// ListBookings returns the full sequence for ref in Seq order.
	ListBookings(ctx context.Context, ref asset.Ref) ([]*Booking, error)
	// ListBookingsByRenter returns renter's bookings across all assets,
	// oldest first.
	ListBookingsByRenter(ctx context.Context, renter asset.Address) ([]*Booking, error)
	// MarkBookingStarted returns rental.ErrBookingNotFound for an unknown position.
	MarkBookingStarted(ctx context.Context, ref asset.Ref, seq int) error
	// MarkBookingCancelled returns rental.ErrBookingNotFound for an unknown position.
	MarkBookingCancelled(ctx context.Context, ref asset.Ref, seq int) error
}
