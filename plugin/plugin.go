// Package plugin provides an extensible plugin system for the rental engine.
// Plugins hook into marketplace events by implementing one or more of the
// interfaces below.
package plugin

import (
	"context"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/payout"
	"github.com/xraph/rental/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *rental.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Listing hooks
// ──────────────────────────────────────────────────

// OnListed is called after an asset is listed and held in custody.
type OnListed interface {
	Plugin
	OnListed(ctx context.Context, l *listing.Listing) error
}

// OnUnlisted is called after a listing is removed and custody returned.
// by is the lender or operator that unlisted it.
type OnUnlisted interface {
	Plugin
	OnUnlisted(ctx context.Context, l *listing.Listing, by asset.Address) error
}

// ──────────────────────────────────────────────────
// Booking hooks
// ──────────────────────────────────────────────────

// OnBooked is called after a booking and its earnings are recorded.
type OnBooked interface {
	Plugin
	OnBooked(ctx context.Context, b *booking.Booking, price types.Money) error
}

// OnRentingStarted is called after usage rights are granted to a renter.
type OnRentingStarted interface {
	Plugin
	OnRentingStarted(ctx context.Context, b *booking.Booking) error
}

// OnBookingCancelled is called for every booking cancelled by an unlist.
// refunded is the amount credited to the renter for it.
type OnBookingCancelled interface {
	Plugin
	OnBookingCancelled(ctx context.Context, b *booking.Booking, refunded types.Money) error
}

// ──────────────────────────────────────────────────
// Funds hooks
// ──────────────────────────────────────────────────

// OnFundsSent is called after value leaves the marketplace.
type OnFundsSent interface {
	Plugin
	OnFundsSent(ctx context.Context, t *payout.Transfer) error
}

// OnTransferFailed is called when the payout sender rejects a transfer.
type OnTransferFailed interface {
	Plugin
	OnTransferFailed(ctx context.Context, t *payout.Transfer, err error) error
}
