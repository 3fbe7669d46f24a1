// Package observability provides a metrics extension for the rental engine
// that records marketplace event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/payout"
	"github.com/xraph/rental/plugin"
	"github.com/xraph/rental/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnListed           = (*MetricsExtension)(nil)
	_ plugin.OnUnlisted         = (*MetricsExtension)(nil)
	_ plugin.OnBooked           = (*MetricsExtension)(nil)
	_ plugin.OnRentingStarted   = (*MetricsExtension)(nil)
	_ plugin.OnBookingCancelled = (*MetricsExtension)(nil)
	_ plugin.OnFundsSent        = (*MetricsExtension)(nil)
	_ plugin.OnTransferFailed   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records marketplace metrics.
// Register it as an engine plugin to track listings, bookings and payouts.
// Amount histograms observe minor units.
type MetricsExtension struct {
	factory MetricFactory

	// Listing metrics
	Listed   Counter
	Unlisted Counter

	// Booking metrics
	Booked           Counter
	BookingDays      Histogram
	BookingPrice     Histogram
	RentingStarted   Counter
	BookingCancelled Counter
	RefundCredited   Histogram

	// Payout metrics
	FundsSent       Counter
	EarningsPaid    Histogram
	RefundsPaid     Histogram
	ExcessReturned  Histogram
	TransfersFailed Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Listing metrics
		Listed:   factory.Counter("rental.listing.created"),
		Unlisted: factory.Counter("rental.listing.removed"),

		// Booking metrics
		Booked:           factory.Counter("rental.booking.created"),
		BookingDays:      factory.Histogram("rental.booking.days"),
		BookingPrice:     factory.Histogram("rental.booking.price"),
		RentingStarted:   factory.Counter("rental.booking.started"),
		BookingCancelled: factory.Counter("rental.booking.cancelled"),
		RefundCredited:   factory.Histogram("rental.refund.credited"),

		// Payout metrics
		FundsSent:       factory.Counter("rental.funds.sent"),
		EarningsPaid:    factory.Histogram("rental.funds.earnings"),
		RefundsPaid:     factory.Histogram("rental.funds.refunds"),
		ExcessReturned:  factory.Histogram("rental.funds.excess"),
		TransfersFailed: factory.Counter("rental.funds.failed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Listing hooks
// ──────────────────────────────────────────────────

// OnListed implements plugin.OnListed.
func (m *MetricsExtension) OnListed(_ context.Context, _ *listing.Listing) error {
	m.Listed.Inc()
	return nil
}

// OnUnlisted implements plugin.OnUnlisted.
func (m *MetricsExtension) OnUnlisted(_ context.Context, _ *listing.Listing, _ asset.Address) error {
	m.Unlisted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Booking hooks
// ──────────────────────────────────────────────────

// OnBooked implements plugin.OnBooked.
func (m *MetricsExtension) OnBooked(_ context.Context, b *booking.Booking, price types.Money) error {
	m.Booked.Inc()
	m.BookingDays.Observe(float64(b.Days()))
	m.BookingPrice.Observe(float64(price.Amount))
	return nil
}

// OnRentingStarted implements plugin.OnRentingStarted.
func (m *MetricsExtension) OnRentingStarted(_ context.Context, _ *booking.Booking) error {
	m.RentingStarted.Inc()
	return nil
}

// OnBookingCancelled implements plugin.OnBookingCancelled.
func (m *MetricsExtension) OnBookingCancelled(_ context.Context, _ *booking.Booking, refunded types.Money) error {
	m.BookingCancelled.Inc()
	m.RefundCredited.Observe(float64(refunded.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Funds hooks
// ──────────────────────────────────────────────────

// OnFundsSent implements plugin.OnFundsSent.
func (m *MetricsExtension) OnFundsSent(_ context.Context, t *payout.Transfer) error {
	m.FundsSent.Inc()
	amount := float64(t.Amount.Amount)
	switch t.Reason {
	case payout.ReasonEarnings:
		m.EarningsPaid.Observe(amount)
	case payout.ReasonRefund:
		m.RefundsPaid.Observe(amount)
	case payout.ReasonExcessPayment:
		m.ExcessReturned.Observe(amount)
	}
	return nil
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (m *MetricsExtension) OnTransferFailed(_ context.Context, _ *payout.Transfer, _ error) error {
	m.TransfersFailed.Inc()
	return nil
}
