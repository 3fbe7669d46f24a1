package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	rental "github.com/xraph/rental"
	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/earning"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/refund"
	rentalstore "github.com/xraph/rental/store"
	"github.com/xraph/rental/types"
)

// Collection name constants.
const (
	colListings = "rental_listings"
	colBookings = "rental_bookings"
	colEarnings = "rental_earnings"
	colRefunds  = "rental_refunds"
)

// compile-time interface check
var _ rentalstore.Store = (*Store)(nil)

// querier is satisfied by both *mongodriver.MongoDB and *mongodriver.MongoTx.
type querier interface {
	NewFind(model ...any) *mongodriver.FindQuery
	NewInsert(model any) *mongodriver.InsertQuery
	NewUpdate(model any) *mongodriver.UpdateQuery
	NewDelete(model any) *mongodriver.DeleteQuery
}

// Store implements store.Store using MongoDB via Grove ORM. Transactions
// need a replica set or sharded cluster.
type Store struct {
	db   *grove.DB
	mdb  *mongodriver.MongoDB
	q    querier
	inTx bool
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	mdb := mongodriver.Unwrap(db)
	return &Store{
		db:  db,
		mdb: mdb,
		q:   mdb,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// RunInTx runs fn inside a session transaction. Nested calls reuse the
// outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn rentalstore.TxFunc) error {
	if s.inTx {
		return fn(ctx, s)
	}

	raw, err := s.mdb.GroveTx(ctx, 0, false)
	if err != nil {
		return fmt.Errorf("%w: %w", rental.ErrTransactionFailed, err)
	}
	tx, ok := raw.(*mongodriver.MongoTx)
	if !ok {
		return fmt.Errorf("%w: unexpected transaction type %T", rental.ErrTransactionFailed, raw)
	}
	txStore := &Store{db: s.db, mdb: s.mdb, q: tx, inTx: true}

	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", rental.ErrTransactionFailed, err)
	}
	return nil
}

// Migrate creates indexes for all rental collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: %s indexes: %w", rental.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Listing Store ====================

func (s *Store) CreateListing(ctx context.Context, l *listing.Listing) error {
	exists, err := s.q.NewFind((*listingModel)(nil)).
		Filter(bson.M{"asset_key": l.Asset.Key()}).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("rental/mongo: check listing: %w", err)
	}
	if exists > 0 {
		return rental.ErrAlreadyListed
	}

	var last listingModel
	err = s.q.NewFind(&last).
		Sort(bson.D{{Key: "seq", Value: -1}}).
		Limit(1).
		Scan(ctx)
	switch {
	case err == nil:
		l.Seq = last.Seq + 1
	case isNoDocuments(err):
		l.Seq = 1
	default:
		return fmt.Errorf("rental/mongo: next listing seq: %w", err)
	}

	if _, err := s.q.NewInsert(toListingModel(l)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return rental.ErrAlreadyListed
		}
		return fmt.Errorf("rental/mongo: create listing: %w", err)
	}
	return nil
}

func (s *Store) GetListing(ctx context.Context, ref asset.Ref) (*listing.Listing, error) {
	var m listingModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"asset_key": ref.Key()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, rental.ErrListingNotFound
		}
		return nil, fmt.Errorf("rental/mongo: get listing: %w", err)
	}
	return fromListingModel(&m)
}

func (s *Store) ListListings(ctx context.Context, opts listing.ListOpts) ([]*listing.Listing, error) {
	var models []listingModel

	filter := bson.M{}
	if opts.Lender != "" {
		filter["lender"] = string(opts.Lender.Normalize())
	}
	if opts.Collection != "" {
		filter["collection"] = string(opts.Collection.Normalize())
	}

	err := s.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "seq", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rental/mongo: list listings: %w", err)
	}

	result := make([]*listing.Listing, len(models))
	for i := range models {
		l, err := fromListingModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

func (s *Store) DeleteListing(ctx context.Context, ref asset.Ref) error {
	res, err := s.q.NewDelete((*listingModel)(nil)).
		Filter(bson.M{"asset_key": ref.Key()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rental/mongo: delete listing: %w", err)
	}
	if res.DeletedCount() == 0 {
		return rental.ErrListingNotFound
	}
	return nil
}

func (s *Store) ListCollections(ctx context.Context) ([]asset.Address, error) {
	listings, err := s.ListListings(ctx, listing.ListOpts{})
	if err != nil {
		return nil, err
	}
	seen := make(map[asset.Address]struct{}, len(listings))
	var result []asset.Address
	for _, l := range listings {
		if _, ok := seen[l.Asset.Collection]; ok {
			continue
		}
		seen[l.Asset.Collection] = struct{}{}
		result = append(result, l.Asset.Collection)
	}
	return result, nil
}

// ==================== Booking Store ====================

func (s *Store) AppendBooking(ctx context.Context, b *booking.Booking) error {
	var last bookingModel
	err := s.q.NewFind(&last).
		Filter(bson.M{"asset_key": b.Asset.Key()}).
		Sort(bson.D{{Key: "seq", Value: -1}}).
		Limit(1).
		Scan(ctx)
	switch {
	case err == nil:
		b.Seq = last.Seq + 1
	case isNoDocuments(err):
		b.Seq = 0
	default:
		return fmt.Errorf("rental/mongo: next booking seq: %w", err)
	}

	if _, err := s.q.NewInsert(toBookingModel(b)).Exec(ctx); err != nil {
		return fmt.Errorf("rental/mongo: append booking: %w", err)
	}
	return nil
}

func (s *Store) ListBookings(ctx context.Context, ref asset.Ref) ([]*booking.Booking, error) {
	var models []bookingModel
	err := s.q.NewFind(&models).
		Filter(bson.M{"asset_key": ref.Key()}).
		Sort(bson.D{{Key: "seq", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rental/mongo: list bookings: %w", err)
	}
	return fromBookingModels(models)
}

func (s *Store) ListBookingsByRenter(ctx context.Context, renter asset.Address) ([]*booking.Booking, error) {
	var models []bookingModel
	err := s.q.NewFind(&models).
		Filter(bson.M{"renter": string(renter.Normalize())}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rental/mongo: list renter bookings: %w", err)
	}
	return fromBookingModels(models)
}

func (s *Store) MarkBookingStarted(ctx context.Context, ref asset.Ref, seq int) error {
	return s.flagBooking(ctx, "started", ref, seq)
}

func (s *Store) MarkBookingCancelled(ctx context.Context, ref asset.Ref, seq int) error {
	return s.flagBooking(ctx, "cancelled", ref, seq)
}

func (s *Store) flagBooking(ctx context.Context, field string, ref asset.Ref, seq int) error {
	res, err := s.q.NewUpdate((*bookingModel)(nil)).
		Filter(bson.M{"asset_key": ref.Key(), "seq": seq}).
		Set(field, true).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rental/mongo: mark booking %s: %w", field, err)
	}
	if res.MatchedCount() == 0 {
		return rental.ErrBookingNotFound
	}
	return nil
}

func fromBookingModels(models []bookingModel) ([]*booking.Booking, error) {
	result := make([]*booking.Booking, len(models))
	for i := range models {
		b, err := fromBookingModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

// ==================== Earning Store ====================

func (s *Store) AppendEarning(ctx context.Context, e *earning.Earning) error {
	var last earningModel
	err := s.q.NewFind(&last).
		Filter(bson.M{"beneficiary": string(e.Beneficiary.Normalize())}).
		Sort(bson.D{{Key: "idx", Value: -1}}).
		Limit(1).
		Scan(ctx)
	switch {
	case err == nil:
		e.Index = last.Idx + 1
	case isNoDocuments(err):
		e.Index = 0
	default:
		return fmt.Errorf("rental/mongo: next earning index: %w", err)
	}

	if _, err := s.q.NewInsert(toEarningModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("rental/mongo: append earning: %w", err)
	}
	return nil
}

func (s *Store) ListEarnings(ctx context.Context, beneficiary asset.Address) ([]*earning.Earning, error) {
	var models []earningModel
	err := s.q.NewFind(&models).
		Filter(bson.M{"beneficiary": string(beneficiary.Normalize())}).
		Sort(bson.D{{Key: "idx", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rental/mongo: list earnings: %w", err)
	}

	result := make([]*earning.Earning, len(models))
	for i := range models {
		e, err := fromEarningModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) GetEarning(ctx context.Context, beneficiary asset.Address, index int) (*earning.Earning, error) {
	var m earningModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"beneficiary": string(beneficiary.Normalize()), "idx": index}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, rental.ErrEarningNotFound
		}
		return nil, fmt.Errorf("rental/mongo: get earning: %w", err)
	}
	return fromEarningModel(&m)
}

func (s *Store) CancelEarning(ctx context.Context, beneficiary asset.Address, index int) error {
	e, err := s.GetEarning(ctx, beneficiary, index)
	if err != nil {
		return err
	}
	if e.Settled() {
		return rental.ErrEarningSettled
	}
	return s.setEarningFlag(ctx, "cancelled", true, beneficiary, index)
}

func (s *Store) RedeemEarnings(ctx context.Context, beneficiary asset.Address, indexes []int) error {
	for _, index := range indexes {
		e, err := s.GetEarning(ctx, beneficiary, index)
		if err != nil {
			return err
		}
		if e.Settled() {
			return rental.ErrEarningSettled
		}
	}
	if len(indexes) == 0 {
		return nil
	}

	_, err := s.q.NewUpdate((*earningModel)(nil)).
		Filter(bson.M{
			"beneficiary": string(beneficiary.Normalize()),
			"idx":         bson.M{"$in": indexes},
		}).
		Set("redeemed", true).
		Set("updated_at", now()).
		Many().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rental/mongo: redeem earnings: %w", err)
	}
	return nil
}

func (s *Store) RevertRedemption(ctx context.Context, beneficiary asset.Address, indexes []int) error {
	if len(indexes) == 0 {
		return nil
	}
	_, err := s.q.NewUpdate((*earningModel)(nil)).
		Filter(bson.M{
			"beneficiary": string(beneficiary.Normalize()),
			"idx":         bson.M{"$in": indexes},
		}).
		Set("redeemed", false).
		Set("updated_at", now()).
		Many().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rental/mongo: revert redemption: %w", err)
	}
	return nil
}

func (s *Store) setEarningFlag(ctx context.Context, field string, value bool, beneficiary asset.Address, index int) error {
	res, err := s.q.NewUpdate((*earningModel)(nil)).
		Filter(bson.M{"beneficiary": string(beneficiary.Normalize()), "idx": index}).
		Set(field, value).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rental/mongo: set earning %s: %w", field, err)
	}
	if res.MatchedCount() == 0 {
		return rental.ErrEarningNotFound
	}
	return nil
}

// ==================== Refund Store ====================

func (s *Store) AddRefund(ctx context.Context, renter asset.Address, amount types.Money) error {
	key := string(renter.Normalize())

	current, err := s.GetRefund(ctx, renter)
	if errors.Is(err, rental.ErrRefundNotFound) {
		m := &refundModel{
			Renter:    key,
			Amount:    amount.Amount,
			Currency:  amount.Currency,
			UpdatedAt: now(),
		}
		if _, err := s.q.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("rental/mongo: create refund: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if !current.Balance.SameCurrency(amount) {
		return rental.ErrCurrencyMismatch
	}

	_, err = s.q.NewUpdate((*refundModel)(nil)).
		Filter(bson.M{"_id": key}).
		SetUpdate(bson.M{
			"$inc": bson.M{"amount": amount.Amount},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rental/mongo: add refund: %w", err)
	}
	return nil
}

func (s *Store) GetRefund(ctx context.Context, renter asset.Address) (*refund.Refund, error) {
	var m refundModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"_id": string(renter.Normalize())}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, rental.ErrRefundNotFound
		}
		return nil, fmt.Errorf("rental/mongo: get refund: %w", err)
	}
	return fromRefundModel(&m), nil
}

func (s *Store) ResetRefund(ctx context.Context, renter asset.Address) error {
	res, err := s.q.NewUpdate((*refundModel)(nil)).
		Filter(bson.M{"_id": string(renter.Normalize())}).
		Set("amount", int64(0)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rental/mongo: reset refund: %w", err)
	}
	if res.MatchedCount() == 0 {
		return rental.ErrRefundNotFound
	}
	return nil
}

func (s *Store) ListRefunds(ctx context.Context) ([]*refund.Refund, error) {
	var models []refundModel
	err := s.q.NewFind(&models).
		Filter(bson.M{"amount": bson.M{"$gt": 0}}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rental/mongo: list refunds: %w", err)
	}

	result := make([]*refund.Refund, len(models))
	for i := range models {
		result[i] = fromRefundModel(&models[i])
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all rental collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colListings: {
			{
				Keys:    bson.D{{Key: "asset_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "lender", Value: 1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "collection", Value: 1}, {Key: "seq", Value: 1}}},
		},
		colBookings: {
			{
				Keys:    bson.D{{Key: "asset_key", Value: 1}, {Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "renter", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colEarnings: {
			{
				Keys:    bson.D{{Key: "beneficiary", Value: 1}, {Key: "idx", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colRefunds: {
			{Keys: bson.D{{Key: "amount", Value: 1}}},
		},
	}
}
