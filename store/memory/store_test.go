package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rental"
	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/earning"
	"github.com/xraph/rental/id"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/store"
	"github.com/xraph/rental/types"
)

const (
	lender     = asset.Address("0xaaaa")
	renter     = asset.Address("0xbbbb")
	collection = asset.Address("0xC0FFEE")
)

func newListing(token asset.TokenID) *listing.Listing {
	return &listing.Listing{
		Entity:        types.NewEntity(),
		ID:            id.NewListingID(),
		Lender:        lender,
		Asset:         asset.NewRef(collection, token),
		PricePerDay:   types.ETH(1_000_000_000),
		MinRentalDays: 1,
		MaxRentalDays: 10,
	}
}

func TestListingLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateListing(ctx, newListing(1)))
	require.NoError(t, s.CreateListing(ctx, newListing(2)))
	assert.ErrorIs(t, s.CreateListing(ctx, newListing(1)), rental.ErrAlreadyListed)

	got, err := s.GetListing(ctx, asset.NewRef("0xc0ffee", 2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Seq)

	all, err := s.ListListings(ctx, listing.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, asset.TokenID(1), all[0].Asset.TokenID)

	cols, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []asset.Address{"0xc0ffee"}, cols)

	require.NoError(t, s.DeleteListing(ctx, asset.NewRef(collection, 1)))
	require.NoError(t, s.DeleteListing(ctx, asset.NewRef(collection, 2)))
	assert.ErrorIs(t, s.DeleteListing(ctx, asset.NewRef(collection, 2)), rental.ErrListingNotFound)

	cols, err = s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestBookingSequence(t *testing.T) {
	ctx := context.Background()
	s := New()
	ref := asset.NewRef(collection, 7)

	for i := 0; i < 3; i++ {
		b := &booking.Booking{ID: id.NewBookingID(), Asset: ref, Renter: renter, Lender: lender}
		require.NoError(t, s.AppendBooking(ctx, b))
		assert.Equal(t, i, b.Seq)
	}

	require.NoError(t, s.MarkBookingStarted(ctx, ref, 1))
	require.NoError(t, s.MarkBookingCancelled(ctx, ref, 2))
	assert.ErrorIs(t, s.MarkBookingStarted(ctx, ref, 3), rental.ErrBookingNotFound)

	list, err := s.ListBookings(ctx, ref)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[1].Started)
	assert.True(t, list[2].Cancelled)

	mine, err := s.ListBookingsByRenter(ctx, "0xBBBB")
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestEarningTransitions(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 3; i++ {
		e := &earning.Earning{ID: id.NewEarningID(), Beneficiary: lender, Amount: types.ETH(int64(i + 1))}
		require.NoError(t, s.AppendEarning(ctx, e))
		assert.Equal(t, i, e.Index)
	}

	require.NoError(t, s.CancelEarning(ctx, lender, 0))
	assert.ErrorIs(t, s.CancelEarning(ctx, lender, 0), rental.ErrEarningSettled)
	assert.ErrorIs(t, s.RedeemEarnings(ctx, lender, []int{0, 1}), rental.ErrEarningSettled)

	// The failed batch must not have redeemed index 1.
	e, err := s.GetEarning(ctx, lender, 1)
	require.NoError(t, err)
	assert.False(t, e.Redeemed)

	require.NoError(t, s.RedeemEarnings(ctx, lender, []int{1, 2}))
	require.NoError(t, s.RevertRedemption(ctx, lender, []int{2}))

	list, err := s.ListEarnings(ctx, lender)
	require.NoError(t, err)
	assert.True(t, list[0].Cancelled)
	assert.True(t, list[1].Redeemed)
	assert.False(t, list[2].Redeemed)

	_, err = s.GetEarning(ctx, lender, 9)
	assert.ErrorIs(t, err, rental.ErrEarningNotFound)
}

func TestRefunds(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetRefund(ctx, renter)
	assert.ErrorIs(t, err, rental.ErrRefundNotFound)

	require.NoError(t, s.AddRefund(ctx, renter, types.ETH(10)))
	require.NoError(t, s.AddRefund(ctx, renter, types.ETH(5)))
	assert.ErrorIs(t, s.AddRefund(ctx, renter, types.USD(1)), rental.ErrCurrencyMismatch)

	r, err := s.GetRefund(ctx, renter)
	require.NoError(t, err)
	assert.Equal(t, int64(15), r.Balance.Amount)

	require.NoError(t, s.ResetRefund(ctx, renter))
	r, err = s.GetRefund(ctx, renter)
	require.NoError(t, err)
	assert.True(t, r.Balance.IsZero())
}

func TestRunInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateListing(ctx, newListing(1)))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		require.NoError(t, tx.DeleteListing(ctx, asset.NewRef(collection, 1)))
		require.NoError(t, tx.CreateListing(ctx, newListing(2)))
		require.NoError(t, tx.AddRefund(ctx, renter, types.ETH(3)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetListing(ctx, asset.NewRef(collection, 1))
	assert.NoError(t, err)
	_, err = s.GetListing(ctx, asset.NewRef(collection, 2))
	assert.ErrorIs(t, err, rental.ErrListingNotFound)
	_, err = s.GetRefund(ctx, renter)
	assert.ErrorIs(t, err, rental.ErrRefundNotFound)

	// The sequence counter is restored too.
	l := newListing(3)
	require.NoError(t, s.CreateListing(ctx, l))
	assert.Equal(t, int64(2), l.Seq)
}

func TestRunInTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		return tx.CreateListing(ctx, newListing(1))
	})
	require.NoError(t, err)

	_, err = s.GetListing(ctx, asset.NewRef(collection, 1))
	assert.NoError(t, err)
}

func TestRunInTxHidesUncommittedWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	ref := asset.NewRef(collection, 1)

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		require.NoError(t, tx.CreateListing(ctx, newListing(1)))
		require.NoError(t, tx.AddRefund(ctx, renter, types.ETH(3)))

		_, err := s.GetListing(ctx, ref)
		assert.ErrorIs(t, err, rental.ErrListingNotFound)
		all, err := s.ListListings(ctx, listing.ListOpts{})
		require.NoError(t, err)
		assert.Empty(t, all)
		_, err = s.GetRefund(ctx, renter)
		assert.ErrorIs(t, err, rental.ErrRefundNotFound)

		// A nested transaction joins the open one.
		return tx.RunInTx(ctx, func(ctx context.Context, inner store.Store) error {
			_, err := inner.GetListing(ctx, ref)
			return err
		})
	})
	require.NoError(t, err)

	_, err = s.GetListing(ctx, ref)
	assert.NoError(t, err)
	got, err := s.GetRefund(ctx, renter)
	require.NoError(t, err)
	assert.Equal(t, types.ETH(3), got.Balance)
}

func TestAddRefundCurrencyMismatchLeavesNoBalance(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.AddRefund(ctx, renter, types.ETH(5)))
	err := s.AddRefund(ctx, renter, types.USD(5))
	assert.ErrorIs(t, err, rental.ErrCurrencyMismatch)

	got, err := s.GetRefund(ctx, renter)
	require.NoError(t, err)
	assert.Equal(t, types.ETH(5), got.Balance)
}
