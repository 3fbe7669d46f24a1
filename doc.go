// Package rental provides a rental marketplace engine for time-bound usage
// rights over unique assets.
//
// Rental is designed as a library, not a service. Lenders list assets they
// own, renters book non-overlapping day windows and pay up front, and the
// engine keeps a pull-based ledger of what every participant may withdraw:
//
//   - Listings move asset custody to the marketplace until unlisted
//   - Bookings split each rental price into a lender earning and a platform fee
//   - Starting a rental grants the renter a usage right until the booking ends
//   - Unlisting cancels outstanding bookings and credits renters a refund
//   - Earnings and refunds are paid out on demand through a payout.Sender
//
// # Quick Start
//
// Create an engine with a store and an asset registry:
//
//	import (
//	    "github.com/xraph/rental"
//	    "github.com/xraph/rental/store/postgres"
//	)
//
//	e := rental.New(store,
//	    rental.WithRegistry(registry),
//	    rental.WithOperator(operator),
//	    rental.WithMarketplace(custody),
//	)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// Every operation acts on behalf of the address carried by the context:
//
//	ctx = rental.WithCaller(ctx, lender)
//	l, err := e.List(ctx, rental.NewRef(collection, 1), rental.ETH(1_000_000_000), 3, 10)
//
//	ctx = rental.WithCaller(ctx, renter)
//	b, err := e.Book(ctx, l.Asset, start, end, rental.ETH(10_000_000_000))
//
// # Consistency
//
// Writes are serialized through a lock.Locker (lock/redislock when several
// processes share a store) and each runs inside one store transaction.
// Asset Registry calls are made inside that transaction, so a failing
// registry leaves no ledger change behind. Funds are sent only after the
// transaction commits.
//
// # Money
//
// Amounts are integer minor units. Native chain currencies such as "eth"
// are counted in gwei; the platform fee is floor(price * fee / 100).
//
// # TypeID
//
// Listings, bookings, earnings and payouts carry TypeIDs:
//
//	lst_01h2xcejqtf2nbrexx3vqjhp41  // Listing ID
//	bkg_01h2xcejqtf2nbrexx3vqjhp41  // Booking ID
//	ern_01h455vb4pex5vsknk084sn02q  // Earning ID
package rental
