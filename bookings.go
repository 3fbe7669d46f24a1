package rental

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/earning"
	"github.com/xraph/rental/id"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/payout"
	"github.com/xraph/rental/store"
	"github.com/xraph/rental/types"
)

// ──────────────────────────────────────────────────
// Booking scheduler
// ──────────────────────────────────────────────────

// Book reserves ref from start to end, both inclusive and truncated to the
// second. A zero start means now. paid must cover the rental price; any
// excess is sent back to the caller once the booking is recorded.
func (e *Engine) Book(ctx context.Context, ref asset.Ref, start, end time.Time, paid types.Money) (*booking.Booking, error) {
	caller, unlock, err := e.writer(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ref = ref.Normalize()
	l, err := e.listed(ctx, ref)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	if start.IsZero() {
		start = now
	}
	start = start.UTC().Truncate(time.Second)
	end = end.UTC().Truncate(time.Second)

	days, err := checkWindow(l, start, end, now)
	if err != nil {
		return nil, err
	}

	existing, err := e.store.ListBookings(ctx, ref)
	if err != nil {
		return nil, err
	}
	for _, b := range existing {
		if b.Active() && b.Overlaps(start, end) {
			return nil, ErrNotAvailable
		}
	}

	paid = paid.Normalize()
	price, err := l.PricePerDay.MultiplyExact(days)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrice, err)
	}
	if !paid.SameCurrency(price) {
		return nil, ErrCurrencyMismatch
	}
	if paid.LessThan(price) {
		return nil, ErrInsufficientPayment
	}
	fee := price.Percent(e.feePercent)

	b := &booking.Booking{
		Entity:         types.NewEntityAt(now),
		ID:             id.NewBookingID(),
		Asset:          ref,
		Lender:         l.Lender,
		Renter:         caller,
		StartDate:      start,
		EndDate:        end,
		FeeBeneficiary: e.operator,
	}
	lenderEarning := &earning.Earning{
		Entity:         types.NewEntityAt(now),
		ID:             id.NewEarningID(),
		Beneficiary:    l.Lender,
		BookingID:      b.ID,
		Amount:         price.Subtract(fee),
		RedeemableDate: start,
	}
	feeEarning := &earning.Earning{
		Entity:         types.NewEntityAt(now),
		ID:             id.NewEarningID(),
		Beneficiary:    e.operator,
		BookingID:      b.ID,
		Amount:         fee,
		RedeemableDate: start,
	}

	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.AppendEarning(ctx, lenderEarning); err != nil {
			return err
		}
		if err := tx.AppendEarning(ctx, feeEarning); err != nil {
			return err
		}
		b.EarningIndex = lenderEarning.Index
		b.FeesIndex = feeEarning.Index
		return tx.AppendBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("asset booked",
		"asset", ref.String(),
		"renter", caller,
		"start", start,
		"end", end,
		"days", days,
		"price", price.String(),
		"fee", fee.String(),
	)
	e.plugins.EmitBooked(ctx, b, price)

	if excess := paid.Subtract(price); excess.IsPositive() {
		e.returnExcess(ctx, caller, excess)
	}
	return b, nil
}

// checkWindow validates a booking window against now and the listing's
// day bounds and returns its length in days.
func checkWindow(l *listing.Listing, start, end, now time.Time) (int64, error) {
	switch {
	case start.Before(now):
		return 0, ErrStartInPast
	case end.Before(now):
		return 0, ErrEndInPast
	case !start.Before(end):
		return 0, ErrStartNotBeforeEnd
	}
	days := booking.Days(start, end)
	if !l.AllowsDays(days) {
		return 0, ErrOutOfRentalBounds
	}
	return days, nil
}

// returnExcess sends an overpayment back. If the transfer fails the amount
// is credited to the payer's refund balance instead.
func (e *Engine) returnExcess(ctx context.Context, to asset.Address, excess types.Money) {
	err := e.send(ctx, to, excess, payout.ReasonExcessPayment)
	if err == nil {
		return
	}

	e.logger.Warn("excess payment transfer failed, crediting refund",
		"to", to,
		"amount", excess.String(),
		"error", err,
	)
	ctx = context.WithoutCancel(ctx)
	if err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		return tx.AddRefund(ctx, to, excess)
	}); err != nil {
		e.logger.Error("excess payment credit failed",
			"to", to,
			"amount", excess.String(),
			"error", err,
		)
	}
}

// StartRenting grants the caller usage of ref until the end of their
// booking that covers now.
func (e *Engine) StartRenting(ctx context.Context, ref asset.Ref) (*booking.Booking, error) {
	caller, unlock, err := e.writer(ctx, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ref = ref.Normalize()
	if _, err := e.listed(ctx, ref); err != nil {
		return nil, err
	}

	bookings, err := e.store.ListBookings(ctx, ref)
	if err != nil {
		return nil, err
	}
	now := e.clock()
	var current *booking.Booking
	for _, b := range bookings {
		if b.Active() && b.Renter.Equal(caller) && b.Covers(now) {
			current = b
			break
		}
	}
	if current == nil {
		return nil, ErrNotYourBookingWindow
	}
	if current.Started {
		return nil, ErrAlreadyStarted
	}

	var granted bool
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.MarkBookingStarted(ctx, ref, current.Seq); err != nil {
			return err
		}
		if err := e.registry.GrantUsageRight(ctx, ref, caller, current.EndDate); err != nil {
			return fmt.Errorf("rental: grant usage of %s: %w", ref, err)
		}
		granted = true
		return nil
	})
	if err != nil {
		if granted {
			e.revokeUsage(ctx, ref)
		}
		return nil, err
	}
	current.Started = true

	e.logger.Debug("renting started",
		"asset", ref.String(),
		"renter", caller,
		"until", current.EndDate,
	)
	e.plugins.EmitRentingStarted(ctx, current)
	return current, nil
}

// revokeUsage undoes a usage grant whose transaction failed to commit.
func (e *Engine) revokeUsage(ctx context.Context, ref asset.Ref) {
	if err := e.registry.GrantUsageRight(context.WithoutCancel(ctx), ref, asset.ZeroAddress, time.Unix(0, 0)); err != nil {
		e.logger.Error("usage compensation failed",
			"asset", ref.String(),
			"error", err,
		)
	}
}

func (e *Engine) listed(ctx context.Context, ref asset.Ref) (*listing.Listing, error) {
	l, err := e.store.GetListing(ctx, ref)
	if errors.Is(err, ErrListingNotFound) {
		return nil, ErrNotListed
	}
	return l, err
}

func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Second)
}

// ──────────────────────────────────────────────────
// Booking reads
// ──────────────────────────────────────────────────

// GetBookings returns every booking of ref in booking order, cancelled
// ones included.
func (e *Engine) GetBookings(ctx context.Context, ref asset.Ref) ([]*booking.Booking, error) {
	return e.store.ListBookings(ctx, ref.Normalize())
}

// GetMyBookings returns the caller's bookings across all assets.
func (e *Engine) GetMyBookings(ctx context.Context) ([]*booking.Booking, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	return e.store.ListBookingsByRenter(ctx, caller)
}
