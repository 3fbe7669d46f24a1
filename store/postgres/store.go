package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	rental "github.com/xraph/rental"
	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/earning"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/refund"
	rentalstore "github.com/xraph/rental/store"
	"github.com/xraph/rental/types"
)

// compile-time interface check
var _ rentalstore.Store = (*Store)(nil)

// querier is satisfied by both *pgdriver.PgDB and *pgdriver.PgTx.
type querier interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
	NewInsert(model any) *pgdriver.InsertQuery
	NewUpdate(model any) *pgdriver.UpdateQuery
	NewDelete(model any) *pgdriver.DeleteQuery
	NewRaw(query string, args ...any) *pgdriver.RawQuery
}

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db   *grove.DB
	pg   *pgdriver.PgDB
	q    querier
	inTx bool
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	pg := pgdriver.Unwrap(db)
	return &Store{
		db: db,
		pg: pg,
		q:  pg,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// RunInTx runs fn in a serializable transaction. Nested calls reuse the
// outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn rentalstore.TxFunc) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.pg.BeginTxQuery(ctx, &driver.TxOptions{IsolationLevel: driver.LevelSerializable})
	if err != nil {
		return fmt.Errorf("%w: begin: %w", rental.ErrTransactionFailed, err)
	}
	txStore := &Store{db: s.db, pg: s.pg, q: tx, inTx: true}

	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: commit: %w", rental.ErrTransactionFailed, err)
	}
	return nil
}

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("rental/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", rental.ErrMigrationFailed, err)
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
	var exists int64
	err := s.q.NewRaw(`SELECT COUNT(*) FROM rental_listings WHERE asset_key = $1`, l.Asset.Key()).
		Scan(ctx, &exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return rental.ErrAlreadyListed
	}

	var seq int64
	if err := s.q.NewRaw(`SELECT COALESCE(MAX(seq), 0) + 1 FROM rental_listings`).Scan(ctx, &seq); err != nil {
		return err
	}
	l.Seq = seq

	_, err = s.q.NewInsert(toListingModel(l)).Exec(ctx)
	return err
}

func (s *Store) GetListing(ctx context.Context, ref asset.Ref) (*listing.Listing, error) {
	m := new(listingModel)
	err := s.q.NewSelect(m).
		Where("asset_key = $1", ref.Key()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, rental.ErrListingNotFound
		}
		return nil, err
	}
	return fromListingModel(m)
}

func (s *Store) ListListings(ctx context.Context, opts listing.ListOpts) ([]*listing.Listing, error) {
	var models []listingModel
	q := s.q.NewSelect(&models)

	argIdx := 0
	if opts.Lender != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("lender = $%d", argIdx), string(opts.Lender.Normalize()))
	}
	if opts.Collection != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("collection = $%d", argIdx), string(opts.Collection.Normalize()))
	}
	q = q.OrderExpr("seq ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
		Where("asset_key = $1", ref.Key()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
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
	var seq int
	err := s.q.NewRaw(`SELECT COALESCE(MAX(seq) + 1, 0) FROM rental_bookings WHERE asset_key = $1`, b.Asset.Key()).
		Scan(ctx, &seq)
	if err != nil {
		return err
	}
	b.Seq = seq

	_, err = s.q.NewInsert(toBookingModel(b)).Exec(ctx)
	return err
}

func (s *Store) ListBookings(ctx context.Context, ref asset.Ref) ([]*booking.Booking, error) {
	var models []bookingModel
	err := s.q.NewSelect(&models).
		Where("asset_key = $1", ref.Key()).
		OrderExpr("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromBookingModels(models)
}

func (s *Store) ListBookingsByRenter(ctx context.Context, renter asset.Address) ([]*booking.Booking, error) {
	var models []bookingModel
	err := s.q.NewSelect(&models).
		Where("renter = $1", string(renter.Normalize())).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromBookingModels(models)
}

func (s *Store) MarkBookingStarted(ctx context.Context, ref asset.Ref, seq int) error {
	return s.flagBooking(ctx, "started", ref, seq)
}

func (s *Store) MarkBookingCancelled(ctx context.Context, ref asset.Ref, seq int) error {
	return s.flagBooking(ctx, "cancelled", ref, seq)
}

func (s *Store) flagBooking(ctx context.Context, column string, ref asset.Ref, seq int) error {
	res, err := s.q.NewUpdate((*bookingModel)(nil)).
		Set(column+" = $1", true).
		Set("updated_at = $2", now()).
		Where("asset_key = $3", ref.Key()).
		Where("seq = $4", seq).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
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
	beneficiary := string(e.Beneficiary.Normalize())
	var idx int
	err := s.q.NewRaw(`SELECT COALESCE(MAX(idx) + 1, 0) FROM rental_earnings WHERE beneficiary = $1`, beneficiary).
		Scan(ctx, &idx)
	if err != nil {
		return err
	}
	e.Index = idx

	_, err = s.q.NewInsert(toEarningModel(e)).Exec(ctx)
	return err
}

func (s *Store) ListEarnings(ctx context.Context, beneficiary asset.Address) ([]*earning.Earning, error) {
	var models []earningModel
	err := s.q.NewSelect(&models).
		Where("beneficiary = $1", string(beneficiary.Normalize())).
		OrderExpr("idx ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	m := new(earningModel)
	err := s.q.NewSelect(m).
		Where("beneficiary = $1", string(beneficiary.Normalize())).
		Where("idx = $2", index).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, rental.ErrEarningNotFound
		}
		return nil, err
	}
	return fromEarningModel(m)
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
	for _, index := range indexes {
		if err := s.setEarningFlag(ctx, "redeemed", true, beneficiary, index); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) RevertRedemption(ctx context.Context, beneficiary asset.Address, indexes []int) error {
	for _, index := range indexes {
		if err := s.setEarningFlag(ctx, "redeemed", false, beneficiary, index); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) setEarningFlag(ctx context.Context, column string, value bool, beneficiary asset.Address, index int) error {
	res, err := s.q.NewUpdate((*earningModel)(nil)).
		Set(column+" = $1", value).
		Set("updated_at = $2", now()).
		Where("beneficiary = $3", string(beneficiary.Normalize())).
		Where("idx = $4", index).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return rental.ErrEarningNotFound
	}
	return nil
}

// ==================== Refund Store ====================

func (s *Store) AddRefund(ctx context.Context, renter asset.Address, amount types.Money) error {
	res, err := s.q.NewRaw(`
		INSERT INTO rental_refunds (renter, amount, currency, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (renter) DO UPDATE
		SET amount = rental_refunds.amount + EXCLUDED.amount, updated_at = EXCLUDED.updated_at
		WHERE rental_refunds.currency = EXCLUDED.currency
	`, string(renter.Normalize()), amount.Amount, amount.Currency, now()).Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return rental.ErrCurrencyMismatch
	}
	return nil
}

func (s *Store) GetRefund(ctx context.Context, renter asset.Address) (*refund.Refund, error) {
	m := new(refundModel)
	err := s.q.NewSelect(m).
		Where("renter = $1", string(renter.Normalize())).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, rental.ErrRefundNotFound
		}
		return nil, err
	}
	return fromRefundModel(m), nil
}

func (s *Store) ResetRefund(ctx context.Context, renter asset.Address) error {
	res, err := s.q.NewUpdate((*refundModel)(nil)).
		Set("amount = $1", 0).
		Set("updated_at = $2", now()).
		Where("renter = $3", string(renter.Normalize())).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return rental.ErrRefundNotFound
	}
	return nil
}

func (s *Store) ListRefunds(ctx context.Context) ([]*refund.Refund, error) {
	var models []refundModel
	err := s.q.NewSelect(&models).
		Where("amount > $1", 0).
		OrderExpr("renter ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*refund.Refund, len(models))
	for i := range models {
		result[i] = fromRefundModel(&models[i])
	}
	return result, nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
