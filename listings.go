package rental

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/id"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/store"
	"github.com/xraph/rental/types"
)

// ──────────────────────────────────────────────────
// Listing registrar
// ──────────────────────────────────────────────────

// List offers ref for rent at pricePerDay for between minDays and maxDays
// days. The caller must own ref and have approved the marketplace; custody
// moves to the marketplace until the asset is unlisted.
func (e *Engine) List(ctx context.Context, ref asset.Ref, pricePerDay types.Money, minDays, maxDays int64) (*listing.Listing, error) {
	caller, unlock, err := e.writer(ctx, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ref = ref.Normalize()
	pricePerDay = pricePerDay.Normalize()
	if err := e.checkListable(ctx, caller, ref, pricePerDay, minDays, maxDays); err != nil {
		return nil, err
	}

	l := &listing.Listing{
		Entity:        types.NewEntityAt(e.now()),
		ID:            id.NewListingID(),
		Lender:        caller,
		Asset:         ref,
		PricePerDay:   pricePerDay,
		MinRentalDays: minDays,
		MaxRentalDays: maxDays,
	}

	var custody bool
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateListing(ctx, l); err != nil {
			return err
		}
		if err := e.registry.TransferCustody(ctx, ref, caller, e.marketplace); err != nil {
			return fmt.Errorf("rental: take custody of %s: %w", ref, err)
		}
		custody = true
		return nil
	})
	if err != nil {
		if custody {
			e.restoreCustody(ctx, ref, e.marketplace, caller)
		}
		return nil, err
	}

	e.logger.Debug("asset listed",
		"asset", ref.String(),
		"lender", caller,
		"price_per_day", pricePerDay.String(),
		"min_days", minDays,
		"max_days", maxDays,
	)
	e.plugins.EmitListed(ctx, l)
	return l, nil
}

func (e *Engine) checkListable(ctx context.Context, caller asset.Address, ref asset.Ref, price types.Money, minDays, maxDays int64) error {
	supported, err := e.registry.SupportsTimeBoundUsage(ctx, ref.Collection)
	if err != nil {
		return fmt.Errorf("rental: check usage support for %s: %w", ref.Collection, err)
	}
	if !supported {
		return ErrUnsupportedAsset
	}

	if _, err := e.store.GetListing(ctx, ref); err == nil {
		return ErrAlreadyListed
	} else if !errors.Is(err, ErrListingNotFound) {
		return err
	}

	owner, err := e.registry.OwnerOf(ctx, ref)
	if err != nil {
		return fmt.Errorf("rental: owner of %s: %w", ref, err)
	}
	if !owner.Equal(caller) {
		return ErrNotOwner
	}

	approved, err := e.registry.IsApprovedForAll(ctx, ref.Collection, caller, e.marketplace)
	if err != nil {
		return fmt.Errorf("rental: approval on %s: %w", ref.Collection, err)
	}
	if !approved {
		return ErrOperatorNotApproved
	}

	holder, err := e.registry.CurrentUsageHolder(ctx, ref)
	if err != nil {
		return fmt.Errorf("rental: usage holder of %s: %w", ref, err)
	}
	if !holder.IsZero() {
		return ErrUsageRightActive
	}

	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	if price.Currency != e.currency {
		return ErrCurrencyMismatch
	}
	if minDays <= 0 || maxDays <= 0 || minDays > maxDays {
		return ErrInvalidBoundaries
	}
	// The longest booking must be priceable.
	if _, err := price.MultiplyExact(maxDays); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPrice, err)
	}
	return nil
}

type cancellation struct {
	booking  *booking.Booking
	refunded types.Money
}

// Unlist withdraws ref. Only its lender or the operator may do so, and
// not while a usage right is active. Bookings whose earnings are still
// outstanding are cancelled and their renters credited with a refund.
func (e *Engine) Unlist(ctx context.Context, ref asset.Ref) error {
	caller, unlock, err := e.writer(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	ref = ref.Normalize()
	l, err := e.store.GetListing(ctx, ref)
	if errors.Is(err, ErrListingNotFound) {
		return ErrNotListed
	} else if err != nil {
		return err
	}

	if !caller.Equal(l.Lender) && !caller.Equal(e.operator) {
		return ErrUnauthorized
	}

	holder, err := e.registry.CurrentUsageHolder(ctx, ref)
	if err != nil {
		return fmt.Errorf("rental: usage holder of %s: %w", ref, err)
	}
	if !holder.IsZero() {
		return ErrCurrentlyRented
	}

	var (
		cancelled []cancellation
		returned  bool
	)
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		if cancelled, err = e.cancelOutstanding(ctx, tx, ref); err != nil {
			return err
		}
		if err := tx.DeleteListing(ctx, ref); err != nil {
			return err
		}
		if err := e.registry.TransferCustody(ctx, ref, e.marketplace, l.Lender); err != nil {
			return fmt.Errorf("rental: return custody of %s: %w", ref, err)
		}
		returned = true
		return nil
	})
	if err != nil {
		if returned {
			e.restoreCustody(ctx, ref, l.Lender, e.marketplace)
		}
		return err
	}

	e.logger.Debug("asset unlisted",
		"asset", ref.String(),
		"lender", l.Lender,
		"by", caller,
		"cancelled_bookings", len(cancelled),
	)
	for _, c := range cancelled {
		e.plugins.EmitBookingCancelled(ctx, c.booking, c.refunded)
	}
	e.plugins.EmitUnlisted(ctx, l, caller)
	return nil
}

// cancelOutstanding cancels every booking on ref whose lender and fee
// earnings are both unsettled and credits each renter once with the sum.
func (e *Engine) cancelOutstanding(ctx context.Context, tx store.Store, ref asset.Ref) ([]cancellation, error) {
	bookings, err := tx.ListBookings(ctx, ref)
	if err != nil {
		return nil, err
	}

	var (
		cancelled []cancellation
		renters   []asset.Address
		refunds   = make(map[asset.Address]types.Money)
	)
	for _, b := range bookings {
		if b.Cancelled {
			continue
		}
		lenderEarning, err := tx.GetEarning(ctx, b.Lender, b.EarningIndex)
		if err != nil {
			return nil, err
		}
		feeEarning, err := tx.GetEarning(ctx, b.FeeBeneficiary, b.FeesIndex)
		if err != nil {
			return nil, err
		}
		if lenderEarning.Settled() || feeEarning.Settled() {
			continue
		}

		if err := tx.CancelEarning(ctx, b.Lender, b.EarningIndex); err != nil {
			return nil, err
		}
		if err := tx.CancelEarning(ctx, b.FeeBeneficiary, b.FeesIndex); err != nil {
			return nil, err
		}
		if err := tx.MarkBookingCancelled(ctx, ref, b.Seq); err != nil {
			return nil, err
		}
		b.Cancelled = true

		amount := lenderEarning.Amount.Add(feeEarning.Amount)
		renter := b.Renter.Normalize()
		if sum, ok := refunds[renter]; ok {
			refunds[renter] = sum.Add(amount)
		} else {
			renters = append(renters, renter)
			refunds[renter] = amount
		}
		cancelled = append(cancelled, cancellation{booking: b, refunded: amount})
	}

	for _, renter := range renters {
		if err := tx.AddRefund(ctx, renter, refunds[renter]); err != nil {
			return nil, err
		}
	}
	return cancelled, nil
}

// restoreCustody undoes a custody move whose transaction failed to commit.
func (e *Engine) restoreCustody(ctx context.Context, ref asset.Ref, from, to asset.Address) {
	if err := e.registry.TransferCustody(context.WithoutCancel(ctx), ref, from, to); err != nil {
		e.logger.Error("custody compensation failed",
			"asset", ref.String(),
			"from", from,
			"to", to,
			"error", err,
		)
	}
}

// ──────────────────────────────────────────────────
// Listing reads
// ──────────────────────────────────────────────────

// GetListing returns the listing of ref, or the zero Listing when ref is
// not listed.
func (e *Engine) GetListing(ctx context.Context, ref asset.Ref) (listing.Listing, error) {
	l, err := e.store.GetListing(ctx, ref.Normalize())
	if errors.Is(err, ErrListingNotFound) {
		return listing.Listing{}, nil
	}
	if err != nil {
		return listing.Listing{}, err
	}
	return *l, nil
}

// GetAllListings returns every listing in listing order.
func (e *Engine) GetAllListings(ctx context.Context) ([]*listing.Listing, error) {
	return e.store.ListListings(ctx, listing.ListOpts{})
}

// GetMyListings returns the caller's listings.
func (e *Engine) GetMyListings(ctx context.Context) ([]*listing.Listing, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	return e.store.ListListings(ctx, listing.ListOpts{Lender: caller})
}

// GetListedCollections returns every collection with at least one listing.
func (e *Engine) GetListedCollections(ctx context.Context) ([]asset.Address, error) {
	return e.store.ListCollections(ctx)
}

// GetListedAssets returns the listed token ids of collection.
func (e *Engine) GetListedAssets(ctx context.Context, collection asset.Address) ([]asset.TokenID, error) {
	listings, err := e.store.ListListings(ctx, listing.ListOpts{Collection: collection.Normalize()})
	if err != nil {
		return nil, err
	}
	tokens := make([]asset.TokenID, len(listings))
	for i, l := range listings {
		tokens[i] = l.Asset.TokenID
	}
	return tokens, nil
}
