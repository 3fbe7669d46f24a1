package rental_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rental"
	"github.com/xraph/rental/asset"
	assetmem "github.com/xraph/rental/asset/memory"
	"github.com/xraph/rental/id"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/payout"
	"github.com/xraph/rental/store/memory"
	"github.com/xraph/rental/types"
)

const (
	day = 24 * time.Hour

	operator   = asset.Address("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	custody    = asset.Address("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512")
	lender     = asset.Address("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	renter     = asset.Address("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
	stranger   = asset.Address("0x90f79bf6eb2c4f870365e785982e1f101e93b906")
	collection = asset.Address("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	plainNFTs  = asset.Address("0xcf7ed3acca5a467e9e704c703e8d87f634fb0fc9")
)

// oneETH is 1 ETH in gwei.
const oneETH = 1_000_000_000

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine   *rental.Engine
	store    *memory.Store
	registry *assetmem.Registry
	wallet   *payout.Wallet
	clock    *clock
	today    time.Time
	ctx      context.Context
}

func ref(token asset.TokenID) asset.Ref { return asset.NewRef(collection, token) }

func newFixture(t *testing.T, opts ...rental.Option) *fixture {
	t.Helper()

	c := &clock{now: time.Unix(1_700_000_000, 0).UTC()}
	registry := assetmem.New(assetmem.WithClock(c.Now))
	registry.AddCollection(collection, true)
	registry.AddCollection(plainNFTs, false)
	for token := asset.TokenID(1); token <= 3; token++ {
		require.NoError(t, registry.Mint(ref(token), lender))
	}
	require.NoError(t, registry.Mint(asset.NewRef(plainNFTs, 1), lender))
	require.NoError(t, registry.SetApprovalForAll(collection, lender, custody, true))
	require.NoError(t, registry.SetApprovalForAll(plainNFTs, lender, custody, true))

	s := memory.New()
	wallet := payout.NewWallet()
	base := []rental.Option{
		rental.WithRegistry(registry),
		rental.WithOperator(operator),
		rental.WithMarketplace(custody),
		rental.WithClock(c.Now),
		rental.WithSender(wallet),
	}
	e := rental.New(s, append(base, opts...)...)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Stop() })

	return &fixture{
		engine:   e,
		store:    s,
		registry: registry,
		wallet:   wallet,
		clock:    c,
		today:    c.Now(),
		ctx:      context.Background(),
	}
}

func (f *fixture) as(addr asset.Address) context.Context {
	return rental.WithCaller(f.ctx, addr)
}

func (f *fixture) list(t *testing.T, token asset.TokenID) {
	t.Helper()
	_, err := f.engine.List(f.as(lender), ref(token), types.ETH(oneETH), 3, 10)
	require.NoError(t, err)
}

func TestGetFeePercent(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, int64(5), f.engine.GetFeePercent())
}

func TestStartValidatesConfig(t *testing.T) {
	tests := []struct {
		name  string
		opts  []rental.Option
		field string
	}{
		{"no operator", []rental.Option{rental.WithMarketplace(custody)}, "operator"},
		{"no marketplace", []rental.Option{rental.WithOperator(operator)}, "marketplace"},
		{"fee too high", []rental.Option{rental.WithOperator(operator), rental.WithMarketplace(custody), rental.WithFeePercent(101)}, "fee_percent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := rental.New(memory.New(), tt.opts...)
			var verr rental.ValidationError
			require.ErrorAs(t, e.Start(context.Background()), &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

// ──────────────────────────────────────────────────
// Listing
// ──────────────────────────────────────────────────

func TestList(t *testing.T) {
	f := newFixture(t)

	l, err := f.engine.List(f.as(lender), ref(1), types.ETH(oneETH), 3, 10)
	require.NoError(t, err)
	assert.Equal(t, lender, l.Lender)
	assert.Equal(t, ref(1), l.Asset)
	assert.Equal(t, types.ETH(oneETH), l.PricePerDay)
	assert.Equal(t, int64(3), l.MinRentalDays)
	assert.Equal(t, int64(10), l.MaxRentalDays)

	owner, err := f.registry.OwnerOf(f.ctx, ref(1))
	require.NoError(t, err)
	assert.Equal(t, custody, owner)

	got, err := f.engine.GetListing(f.ctx, ref(1))
	require.NoError(t, err)
	assert.True(t, got.Exists())
	assert.Equal(t, l.ID, got.ID)
}

func TestListPreconditions(t *testing.T) {
	alreadyListed := func(t *testing.T, f *fixture) { f.list(t, 1) }
	revokeApproval := func(t *testing.T, f *fixture) {
		require.NoError(t, f.registry.SetApprovalForAll(collection, lender, custody, false))
	}
	grantUsage := func(t *testing.T, f *fixture) {
		require.NoError(t, f.registry.GrantUsageRight(f.ctx, ref(1), renter, f.today.Add(day)))
	}
	price := types.ETH(oneETH)

	tests := []struct {
		name     string
		setup    func(t *testing.T, f *fixture)
		caller   asset.Address
		asset    asset.Ref
		price    types.Money
		min, max int64
		wantErr  error
	}{
		{"unsupported collection", nil, lender, asset.NewRef(plainNFTs, 1), price, 3, 10, rental.ErrUnsupportedAsset},
		{"already listed", alreadyListed, lender, ref(1), price, 3, 10, rental.ErrAlreadyListed},
		{"not owner", nil, renter, ref(1), price, 3, 10, rental.ErrNotOwner},
		{"marketplace not approved", revokeApproval, lender, ref(1), price, 3, 10, rental.ErrOperatorNotApproved},
		{"usage right active", grantUsage, lender, ref(1), price, 3, 10, rental.ErrUsageRightActive},
		{"zero price", nil, lender, ref(1), types.ETH(0), 3, 10, rental.ErrInvalidPrice},
		{"wrong currency", nil, lender, ref(1), types.USD(100), 3, 10, rental.ErrCurrencyMismatch},
		{"zero min", nil, lender, ref(1), price, 0, 10, rental.ErrInvalidBoundaries},
		{"zero max", nil, lender, ref(1), price, 3, 0, rental.ErrInvalidBoundaries},
		{"min above max", nil, lender, ref(1), price, 10, 3, rental.ErrInvalidBoundaries},
		{"longest booking overflows", nil, lender, ref(1), types.ETH(math.MaxInt64 / 4), 3, 10, rental.ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			_, err := f.engine.List(f.as(tt.caller), tt.asset, tt.price, tt.min, tt.max)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, rental.IsPreconditionError(err))
		})
	}
}

func TestListRequiresCallerAndRegistry(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.List(f.ctx, ref(1), types.ETH(oneETH), 3, 10)
	assert.ErrorIs(t, err, rental.ErrMissingCaller)

	readOnly := rental.New(memory.New(), rental.WithOperator(operator), rental.WithMarketplace(custody))
	_, err = readOnly.List(f.as(lender), ref(1), types.ETH(oneETH), 3, 10)
	assert.ErrorIs(t, err, rental.ErrRegistryNotConfigured)
}

func TestListRollsBackOnRegistryFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("registry down")
	f.registry.SetFailure(boom)

	_, err := f.engine.List(f.as(lender), ref(1), types.ETH(oneETH), 3, 10)
	require.ErrorIs(t, err, boom)

	got, err := f.engine.GetListing(f.ctx, ref(1))
	require.NoError(t, err)
	assert.False(t, got.Exists())

	all, err := f.engine.GetAllListings(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestListingReads(t *testing.T) {
	f := newFixture(t)
	f.list(t, 2)
	f.list(t, 1)

	all, err := f.engine.GetAllListings(f.ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, asset.TokenID(2), all[0].Asset.TokenID)

	mine, err := f.engine.GetMyListings(f.as(lender))
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := f.engine.GetMyListings(f.as(renter))
	require.NoError(t, err)
	assert.Empty(t, theirs)

	cols, err := f.engine.GetListedCollections(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []asset.Address{collection.Normalize()}, cols)

	tokens, err := f.engine.GetListedAssets(f.ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, []asset.TokenID{2, 1}, tokens)

	require.NoError(t, f.engine.Unlist(f.as(lender), ref(2)))
	require.NoError(t, f.engine.Unlist(f.as(lender), ref(1)))

	cols, err = f.engine.GetListedCollections(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, cols)
}

// ──────────────────────────────────────────────────
// Booking
// ──────────────────────────────────────────────────

func TestBookSplitsPaymentAndReturnsExcess(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)

	b, err := f.engine.Book(f.as(renter), ref(1), f.today.Add(day), f.today.Add(5*day), types.ETH(10*oneETH))
	require.NoError(t, err)
	assert.Equal(t, renter, b.Renter)
	assert.Equal(t, 0, b.Seq)
	assert.Equal(t, 0, b.EarningIndex)
	assert.Equal(t, 0, b.FeesIndex)
	assert.Equal(t, operator, b.FeeBeneficiary)
	assert.Equal(t, int64(5), b.Days())

	lenderEarnings, err := f.engine.GetMyEarnings(f.as(lender))
	require.NoError(t, err)
	require.Len(t, lenderEarnings, 1)
	assert.Equal(t, types.ETH(4_750_000_000), lenderEarnings[0].Amount)
	assert.Equal(t, f.today.Add(day), lenderEarnings[0].RedeemableDate)
	assert.False(t, lenderEarnings[0].Cancelled)
	assert.False(t, lenderEarnings[0].Redeemed)

	fees, err := f.engine.GetMyEarnings(f.as(operator))
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.Equal(t, types.ETH(250_000_000), fees[0].Amount)

	assert.Equal(t, types.ETH(5*oneETH), f.wallet.Balance(renter))
	transfers := f.wallet.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, payout.ReasonExcessPayment, transfers[0].Reason)

	bookings, err := f.engine.GetBookings(f.ctx, ref(1))
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	mine, err := f.engine.GetMyBookings(f.as(renter))
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestBookExactPaymentSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)

	_, err := f.engine.Book(f.as(renter), ref(1), f.today.Add(day), f.today.Add(3*day), types.ETH(3*oneETH))
	require.NoError(t, err)
	assert.Empty(t, f.wallet.Transfers())
}

func TestBookPreconditions(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	f.list(t, 2)
	_, err := f.engine.Book(f.as(renter), ref(2), time.Time{}, f.today.Add(5*day), types.ETH(10*oneETH))
	require.NoError(t, err)

	yesterday := f.today.Add(-day)
	tomorrow := f.today.Add(day)
	inFive := f.today.Add(5 * day)

	tests := []struct {
		name       string
		asset      asset.Ref
		start, end time.Time
		paid       types.Money
		wantErr    error
	}{
		{"not listed", ref(3), tomorrow, inFive, types.ETH(10 * oneETH), rental.ErrNotListed},
		{"start in past", ref(1), yesterday, inFive, types.ETH(10 * oneETH), rental.ErrStartInPast},
		{"end in past", ref(1), inFive, yesterday, types.ETH(10 * oneETH), rental.ErrEndInPast},
		{"start after end", ref(1), inFive, tomorrow, types.ETH(10 * oneETH), rental.ErrStartNotBeforeEnd},
		{"too short", ref(1), time.Time{}, tomorrow, types.ETH(10 * oneETH), rental.ErrOutOfRentalBounds},
		{"too long", ref(1), tomorrow, f.today.Add(20 * day), types.ETH(30 * oneETH), rental.ErrOutOfRentalBounds},
		{"overlap", ref(2), tomorrow, inFive, types.ETH(10 * oneETH), rental.ErrNotAvailable},
		{"insufficient", ref(1), tomorrow, inFive, types.ETH(2_500_000_000), rental.ErrInsufficientPayment},
		{"wrong currency", ref(1), tomorrow, inFive, types.USD(1000), rental.ErrCurrencyMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Book(f.as(renter), tt.asset, tt.start, tt.end, tt.paid)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	earnings, err := f.engine.GetMyEarnings(f.as(lender))
	require.NoError(t, err)
	assert.Len(t, earnings, 1, "failed bookings must not record earnings")
}

func TestBookRejectsPriceOverflow(t *testing.T) {
	f := newFixture(t)
	// Stored directly: List refuses prices whose longest booking overflows.
	require.NoError(t, f.store.CreateListing(f.ctx, &listing.Listing{
		Entity:        types.NewEntityAt(f.today),
		ID:            id.NewListingID(),
		Lender:        lender,
		Asset:         ref(3),
		PricePerDay:   types.ETH(math.MaxInt64 / 2),
		MinRentalDays: 1,
		MaxRentalDays: 10,
	}))

	_, err := f.engine.Book(f.as(renter), ref(3), f.today.Add(day), f.today.Add(4*day), types.ETH(1))
	require.ErrorIs(t, err, rental.ErrInvalidPrice)
	require.ErrorIs(t, err, types.ErrOverflow)

	assert.Empty(t, f.wallet.Transfers())
	earnings, err := f.engine.GetMyEarnings(f.as(lender))
	require.NoError(t, err)
	assert.Empty(t, earnings)
}

func TestBookAcceptsMixedCaseCurrency(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)

	paid := types.Money{Amount: 10 * oneETH, Currency: "ETH"}
	_, err := f.engine.Book(f.as(renter), ref(1), f.today.Add(day), f.today.Add(5*day), paid)
	require.NoError(t, err)

	earnings, err := f.engine.GetMyEarnings(f.as(lender))
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, types.ETH(4_750_000_000), earnings[0].Amount)
	assert.Equal(t, types.ETH(5*oneETH), f.wallet.Balance(renter))
}

func TestUppercaseCurrencyOption(t *testing.T) {
	f := newFixture(t, rental.WithCurrency(" ETH "))
	assert.Equal(t, "eth", f.engine.Currency())

	_, err := f.engine.List(f.as(lender), ref(1), types.Money{Amount: oneETH, Currency: "ETH"}, 3, 10)
	require.NoError(t, err)
	l, err := f.engine.GetListing(f.ctx, ref(1))
	require.NoError(t, err)
	assert.Equal(t, "eth", l.PricePerDay.Currency)

	_, err = f.engine.Book(f.as(renter), ref(1), time.Time{}, f.today.Add(4*day), types.ETH(5*oneETH))
	require.NoError(t, err)
	_, err = f.engine.StartRenting(f.as(renter), ref(1))
	require.NoError(t, err)

	paid, err := f.engine.RedeemEarnings(f.as(lender))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(4_750_000_000), paid)
}

func TestBookAdjacentWindows(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)

	first, err := f.engine.Book(f.as(renter), ref(1), f.today.Add(day), f.today.Add(4*day), types.ETH(4*oneETH))
	require.NoError(t, err)

	// Inclusive bounds: sharing the end second is an overlap.
	_, err = f.engine.Book(f.as(stranger), ref(1), first.EndDate, first.EndDate.Add(3*day), types.ETH(4*oneETH))
	require.ErrorIs(t, err, rental.ErrNotAvailable)

	second, err := f.engine.Book(f.as(stranger), ref(1), first.EndDate.Add(time.Second), first.EndDate.Add(3*day), types.ETH(4*oneETH))
	require.NoError(t, err)
	assert.Equal(t, 1, second.Seq)
	assert.Equal(t, 1, second.EarningIndex)
	assert.Equal(t, 1, second.FeesIndex)
}

func TestBookCreditsExcessWhenTransferFails(t *testing.T) {
	sender := payout.SenderFunc(func(context.Context, *payout.Transfer) error {
		return errors.New("node unreachable")
	})
	f := newFixture(t, rental.WithSender(sender))
	f.list(t, 1)

	_, err := f.engine.Book(f.as(renter), ref(1), f.today.Add(day), f.today.Add(5*day), types.ETH(10*oneETH))
	require.NoError(t, err)

	balance, err := f.engine.GetMyRefund(f.as(renter))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(5*oneETH), balance)
}

// ──────────────────────────────────────────────────
// Renting
// ──────────────────────────────────────────────────

func TestStartRenting(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	f.list(t, 2)
	_, err := f.engine.Book(f.as(renter), ref(1), time.Time{}, f.today.Add(5*day), types.ETH(10*oneETH))
	require.NoError(t, err)
	_, err = f.engine.Book(f.as(renter), ref(2), f.today.Add(day), f.today.Add(5*day), types.ETH(10*oneETH))
	require.NoError(t, err)

	b, err := f.engine.StartRenting(f.as(renter), ref(1))
	require.NoError(t, err)
	assert.True(t, b.Started)

	user, err := f.registry.CurrentUsageHolder(f.ctx, ref(1))
	require.NoError(t, err)
	assert.Equal(t, renter, user)

	_, err = f.engine.StartRenting(f.as(renter), ref(1))
	assert.ErrorIs(t, err, rental.ErrAlreadyStarted)

	_, err = f.engine.StartRenting(f.as(renter), ref(2))
	assert.ErrorIs(t, err, rental.ErrNotYourBookingWindow)

	_, err = f.engine.StartRenting(f.as(stranger), ref(1))
	assert.ErrorIs(t, err, rental.ErrNotYourBookingWindow)

	_, err = f.engine.StartRenting(f.as(renter), ref(3))
	assert.ErrorIs(t, err, rental.ErrNotListed)

	// The usage right lapses with the booking.
	f.clock.Advance(6 * day)
	user, err = f.registry.CurrentUsageHolder(f.ctx, ref(1))
	require.NoError(t, err)
	assert.True(t, user.IsZero())
}

func TestStartRentingRollsBackOnRegistryFailure(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	_, err := f.engine.Book(f.as(renter), ref(1), time.Time{}, f.today.Add(5*day), types.ETH(10*oneETH))
	require.NoError(t, err)

	f.registry.SetFailure(errors.New("registry down"))
	_, err = f.engine.StartRenting(f.as(renter), ref(1))
	require.Error(t, err)

	bookings, err := f.engine.GetBookings(f.ctx, ref(1))
	require.NoError(t, err)
	assert.False(t, bookings[0].Started)
}

// ──────────────────────────────────────────────────
// Redemption
// ──────────────────────────────────────────────────

func TestRedeemEarnings(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	f.list(t, 2)
	_, err := f.engine.Book(f.as(renter), ref(1), time.Time{}, f.today.Add(5*day), types.ETH(10*oneETH))
	require.NoError(t, err)
	_, err = f.engine.Book(f.as(renter), ref(2), f.today.Add(day), f.today.Add(5*day), types.ETH(10*oneETH))
	require.NoError(t, err)
	_, err = f.engine.StartRenting(f.as(renter), ref(1))
	require.NoError(t, err)

	// 6 days at 1 ETH, 5% fee. The ref(2) booking has not started yet.
	fee, err := f.engine.RedeemEarnings(f.as(operator))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(300_000_000), fee)

	paid, err := f.engine.RedeemEarnings(f.as(lender))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(5_700_000_000), paid)
	assert.Equal(t, types.ETH(5_700_000_000), f.wallet.Balance(lender))

	earnings, err := f.engine.GetMyEarnings(f.as(lender))
	require.NoError(t, err)
	assert.True(t, earnings[0].Redeemed)
	assert.False(t, earnings[1].Redeemed)

	summary, err := f.engine.GetMyEarningsSummary(f.as(lender))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(5_700_000_000), summary.Redeemed)
	assert.Equal(t, types.ETH(4_750_000_000), summary.Upcoming)
	assert.True(t, summary.Available.IsZero())

	_, err = f.engine.RedeemEarnings(f.as(lender))
	assert.ErrorIs(t, err, rental.ErrNothingToRedeem)
	_, err = f.engine.RedeemEarnings(f.as(renter))
	assert.ErrorIs(t, err, rental.ErrNothingToRedeem)

	f.clock.Advance(day)
	paid, err = f.engine.RedeemEarnings(f.as(lender))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(4_750_000_000), paid)
}

func TestRedeemBeforeStart(t *testing.T) {
	f := newFixture(t, rental.WithRedeemBeforeStart(true))
	f.list(t, 1)
	_, err := f.engine.Book(f.as(renter), ref(1), f.today.Add(day), f.today.Add(5*day), types.ETH(10*oneETH))
	require.NoError(t, err)

	paid, err := f.engine.RedeemEarnings(f.as(lender))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(4_750_000_000), paid)
}

func TestRedeemEarningsRevertsOnTransferFailure(t *testing.T) {
	var fail bool
	wallet := payout.NewWallet()
	sender := payout.SenderFunc(func(ctx context.Context, tr *payout.Transfer) error {
		if fail {
			return errors.New("node unreachable")
		}
		return wallet.Send(ctx, tr)
	})
	f := newFixture(t, rental.WithSender(sender))
	f.list(t, 1)
	_, err := f.engine.Book(f.as(renter), ref(1), time.Time{}, f.today.Add(5*day), types.ETH(6*oneETH))
	require.NoError(t, err)

	fail = true
	_, err = f.engine.RedeemEarnings(f.as(lender))
	require.ErrorIs(t, err, rental.ErrTransferFailed)
	assert.True(t, rental.IsRetryable(err))

	earnings, err := f.engine.GetMyEarnings(f.as(lender))
	require.NoError(t, err)
	assert.False(t, earnings[0].Redeemed)

	fail = false
	paid, err := f.engine.RedeemEarnings(f.as(lender))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(5_700_000_000), paid)
}

// ──────────────────────────────────────────────────
// Unlisting and refunds
// ──────────────────────────────────────────────────

func TestUnlist(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)

	require.NoError(t, f.engine.Unlist(f.as(lender), ref(1)))

	got, err := f.engine.GetListing(f.ctx, ref(1))
	require.NoError(t, err)
	assert.False(t, got.Exists())
	assert.True(t, got.Lender.IsZero())
	assert.True(t, got.PricePerDay.IsZero())

	owner, err := f.registry.OwnerOf(f.ctx, ref(1))
	require.NoError(t, err)
	assert.Equal(t, lender, owner)

	assert.ErrorIs(t, f.engine.Unlist(f.as(lender), ref(1)), rental.ErrNotListed)
}

func TestUnlistPreconditions(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	f.list(t, 2)
	_, err := f.engine.Book(f.as(renter), ref(1), time.Time{}, f.today.Add(5*day), types.ETH(10*oneETH))
	require.NoError(t, err)
	_, err = f.engine.StartRenting(f.as(renter), ref(1))
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.Unlist(f.as(renter), ref(2)), rental.ErrUnauthorized)
	assert.ErrorIs(t, f.engine.Unlist(f.as(lender), ref(1)), rental.ErrCurrentlyRented)
	assert.ErrorIs(t, f.engine.Unlist(f.as(lender), ref(3)), rental.ErrNotListed)

	// The operator may unlist anyone's asset.
	require.NoError(t, f.engine.Unlist(f.as(operator), ref(2)))
}

func TestUnlistCancelsBookingsAndCreditsRefund(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	_, err := f.engine.Book(f.as(renter), ref(1), f.today.Add(day), f.today.Add(5*day), types.ETH(10*oneETH))
	require.NoError(t, err)

	require.NoError(t, f.engine.Unlist(f.as(lender), ref(1)))

	balance, err := f.engine.GetMyRefund(f.as(renter))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(5*oneETH), balance)

	lenderEarnings, err := f.engine.GetMyEarnings(f.as(lender))
	require.NoError(t, err)
	assert.True(t, lenderEarnings[0].Cancelled)
	fees, err := f.engine.GetMyEarnings(f.as(operator))
	require.NoError(t, err)
	assert.True(t, fees[0].Cancelled)

	bookings, err := f.engine.GetBookings(f.ctx, ref(1))
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.True(t, bookings[0].Cancelled)

	_, err = f.engine.RedeemEarnings(f.as(lender))
	assert.ErrorIs(t, err, rental.ErrNothingToRedeem)

	paid, err := f.engine.RedeemRefund(f.as(renter))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(5*oneETH), paid)

	_, err = f.engine.RedeemRefund(f.as(renter))
	assert.ErrorIs(t, err, rental.ErrNothingToRedeem)
	_, err = f.engine.RedeemRefund(f.as(stranger))
	assert.ErrorIs(t, err, rental.ErrNothingToRedeem)

	// Relisting starts a fresh booking history for the window.
	f.list(t, 1)
	_, err = f.engine.Book(f.as(stranger), ref(1), f.today.Add(day), f.today.Add(5*day), types.ETH(5*oneETH))
	require.NoError(t, err)
}

func TestUnlistSumsRefundsPerRenter(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	_, err := f.engine.Book(f.as(renter), ref(1), f.today.Add(day), f.today.Add(3*day), types.ETH(3*oneETH))
	require.NoError(t, err)
	_, err = f.engine.Book(f.as(renter), ref(1), f.today.Add(4*day), f.today.Add(6*day), types.ETH(3*oneETH))
	require.NoError(t, err)
	_, err = f.engine.Book(f.as(stranger), ref(1), f.today.Add(7*day), f.today.Add(10*day), types.ETH(4*oneETH))
	require.NoError(t, err)

	require.NoError(t, f.engine.Unlist(f.as(operator), ref(1)))

	mine, err := f.engine.GetMyRefund(f.as(renter))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(6*oneETH), mine)

	theirs, err := f.engine.GetMyRefund(f.as(stranger))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(4*oneETH), theirs)

	refunds, err := f.engine.GetRefunds(f.ctx)
	require.NoError(t, err)
	assert.Len(t, refunds, 2)
}

func TestUnlistSkipsRedeemedBookings(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	_, err := f.engine.Book(f.as(renter), ref(1), time.Time{}, f.today.Add(3*day), types.ETH(4*oneETH))
	require.NoError(t, err)
	_, err = f.engine.RedeemEarnings(f.as(lender))
	require.NoError(t, err)

	// Move past the booking so no usage right blocks the unlist.
	f.clock.Advance(5 * day)
	require.NoError(t, f.engine.Unlist(f.as(lender), ref(1)))

	balance, err := f.engine.GetMyRefund(f.as(renter))
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	bookings, err := f.engine.GetBookings(f.ctx, ref(1))
	require.NoError(t, err)
	assert.False(t, bookings[0].Cancelled)
}

func TestUnlistRollsBackOnRegistryFailure(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	_, err := f.engine.Book(f.as(renter), ref(1), f.today.Add(day), f.today.Add(5*day), types.ETH(5*oneETH))
	require.NoError(t, err)

	f.registry.SetFailure(errors.New("registry down"))
	require.Error(t, f.engine.Unlist(f.as(lender), ref(1)))

	got, err := f.engine.GetListing(f.ctx, ref(1))
	require.NoError(t, err)
	assert.True(t, got.Exists())

	balance, err := f.engine.GetMyRefund(f.as(renter))
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	earnings, err := f.engine.GetMyEarnings(f.as(lender))
	require.NoError(t, err)
	assert.False(t, earnings[0].Cancelled)
}

func TestUnlistAfterOperatorChange(t *testing.T) {
	f := newFixture(t)
	f.list(t, 1)
	_, err := f.engine.Book(f.as(renter), ref(1), f.today.Add(day), f.today.Add(5*day), types.ETH(5*oneETH))
	require.NoError(t, err)

	// A second engine on the same store with a new operator.
	newOperator := asset.Address("0x15d34aaf54267db7d7c367839aaf71a00a2c6a65")
	e2 := rental.New(f.store,
		rental.WithRegistry(f.registry),
		rental.WithOperator(newOperator),
		rental.WithMarketplace(custody),
		rental.WithClock(f.clock.Now),
		rental.WithSender(f.wallet),
	)
	require.NoError(t, e2.Start(f.ctx))
	t.Cleanup(func() { _ = e2.Stop() })

	// The new operator owns an unrelated fee at the same index.
	_, err = e2.List(f.as(lender), ref(2), types.ETH(oneETH), 3, 10)
	require.NoError(t, err)
	_, err = e2.Book(f.as(stranger), ref(2), f.today.Add(day), f.today.Add(5*day), types.ETH(5*oneETH))
	require.NoError(t, err)

	require.NoError(t, e2.Unlist(f.as(lender), ref(1)))

	oldFees, err := f.engine.GetMyEarnings(f.as(operator))
	require.NoError(t, err)
	require.Len(t, oldFees, 1)
	assert.True(t, oldFees[0].Cancelled)

	newFees, err := e2.GetMyEarnings(f.as(newOperator))
	require.NoError(t, err)
	require.Len(t, newFees, 1)
	assert.False(t, newFees[0].Cancelled)

	balance, err := e2.GetMyRefund(f.as(renter))
	require.NoError(t, err)
	assert.Equal(t, types.ETH(5*oneETH), balance)
}
