// Package memory provides an in-process store.Store. Transactions work by
// snapshotting every table and restoring the snapshot when the callback fails.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xraph/rental"
	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/earning"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/refund"
	"github.com/xraph/rental/store"
	"github.com/xraph/rental/types"
)

var _ store.Store = (*Store)(nil)

type state struct {
	// Listing storage, keyed by asset.Ref.Key
	listings   map[string]*listing.Listing
	listingSeq int64

	// Booking sequences per asset
	bookings map[string][]*booking.Booking

	// Earnings ledger per beneficiary
	earnings map[asset.Address][]*earning.Earning

	// Refund ledger per renter
	refunds map[asset.Address]*refund.Refund
}

func newState() *state {
	return &state{
		listings: make(map[string]*listing.Listing),
		bookings: make(map[string][]*booking.Booking),
		earnings: make(map[asset.Address][]*earning.Earning),
		refunds:  make(map[asset.Address]*refund.Refund),
	}
}

func (st *state) clone() *state {
	c := newState()
	c.listingSeq = st.listingSeq
	for k, l := range st.listings {
		cp := *l
		c.listings[k] = &cp
	}
	for k, seq := range st.bookings {
		out := make([]*booking.Booking, len(seq))
		for i, b := range seq {
			cp := *b
			out[i] = &cp
		}
		c.bookings[k] = out
	}
	for k, seq := range st.earnings {
		out := make([]*earning.Earning, len(seq))
		for i, e := range seq {
			cp := *e
			out[i] = &cp
		}
		c.earnings[k] = out
	}
	for k, r := range st.refunds {
		cp := *r
		c.refunds[k] = &cp
	}
	return c
}

// Store keeps all state in maps guarded by a RWMutex.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	st   *state
	now  func() time.Time
	inTx bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// RunInTx runs fn against a private copy of every table. The copy replaces
// the live state only when fn succeeds, so readers never observe a partial
// write. Transactions are serialized and a nested call joins the outer one.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tx := &Store{st: s.st.clone(), now: s.now, inTx: true}
	s.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = tx.st
	s.mu.Unlock()
	return nil
}

// lockWrite holds the transaction lock as well as the table lock, so a
// direct write never lands while a transaction copy is open.
func (s *Store) lockWrite() (unlock func()) {
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// Listing Store implementation
func (s *Store) CreateListing(_ context.Context, l *listing.Listing) error {
	defer s.lockWrite()()

	key := l.Asset.Key()
	if _, exists := s.st.listings[key]; exists {
		return rental.ErrAlreadyListed
	}
	s.st.listingSeq++
	l.Seq = s.st.listingSeq
	cp := *l
	s.st.listings[key] = &cp
	return nil
}

func (s *Store) GetListing(_ context.Context, ref asset.Ref) (*listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.st.listings[ref.Key()]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, rental.ErrListingNotFound
}

func (s *Store) ListListings(_ context.Context, opts listing.ListOpts) ([]*listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*listing.Listing, 0)
	for _, l := range s.st.listings {
		if !opts.Lender.IsZero() && !l.Lender.Equal(opts.Lender) {
			continue
		}
		if !opts.Collection.IsZero() && !l.Asset.Collection.Equal(opts.Collection) {
			continue
		}
		cp := *l
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}

func (s *Store) DeleteListing(_ context.Context, ref asset.Ref) error {
	defer s.lockWrite()()

	if _, ok := s.st.listings[ref.Key()]; !ok {
		return rental.ErrListingNotFound
	}
	delete(s.st.listings, ref.Key())
	return nil
}

func (s *Store) ListCollections(ctx context.Context) ([]asset.Address, error) {
	listings, err := s.ListListings(ctx, listing.ListOpts{})
	if err != nil {
		return nil, err
	}
	result := make([]asset.Address, 0)
	for _, l := range listings {
		if !slices.Contains(result, l.Asset.Collection) {
			result = append(result, l.Asset.Collection)
		}
	}
	return result, nil
}

// Booking Store implementation
func (s *Store) AppendBooking(_ context.Context, b *booking.Booking) error {
	defer s.lockWrite()()

	key := b.Asset.Key()
	b.Seq = len(s.st.bookings[key])
	cp := *b
	s.st.bookings[key] = append(s.st.bookings[key], &cp)
	return nil
}

func (s *Store) ListBookings(_ context.Context, ref asset.Ref) ([]*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.st.bookings[ref.Key()]
	result := make([]*booking.Booking, len(seq))
	for i, b := range seq {
		cp := *b
		result[i] = &cp
	}
	return result, nil
}

func (s *Store) ListBookingsByRenter(_ context.Context, renter asset.Address) ([]*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*booking.Booking, 0)
	for _, seq := range s.st.bookings {
		for _, b := range seq {
			if b.Renter.Equal(renter) {
				cp := *b
				result = append(result, &cp)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (s *Store) MarkBookingStarted(_ context.Context, ref asset.Ref, seq int) error {
	return s.updateBooking(ref, seq, func(b *booking.Booking) { b.Started = true })
}

func (s *Store) MarkBookingCancelled(_ context.Context, ref asset.Ref, seq int) error {
	return s.updateBooking(ref, seq, func(b *booking.Booking) { b.Cancelled = true })
}

func (s *Store) updateBooking(ref asset.Ref, seq int, fn func(*booking.Booking)) error {
	defer s.lockWrite()()

	bookings := s.st.bookings[ref.Key()]
	if seq < 0 || seq >= len(bookings) {
		return fmt.Errorf("%w: %s #%d", rental.ErrBookingNotFound, ref, seq)
	}
	b := bookings[seq]
	fn(b)
	b.Touch(s.now())
	return nil
}

// Earning Store implementation
func (s *Store) AppendEarning(_ context.Context, e *earning.Earning) error {
	defer s.lockWrite()()

	key := e.Beneficiary.Normalize()
	e.Index = len(s.st.earnings[key])
	cp := *e
	s.st.earnings[key] = append(s.st.earnings[key], &cp)
	return nil
}

func (s *Store) ListEarnings(_ context.Context, beneficiary asset.Address) ([]*earning.Earning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.st.earnings[beneficiary.Normalize()]
	result := make([]*earning.Earning, len(seq))
	for i, e := range seq {
		cp := *e
		result[i] = &cp
	}
	return result, nil
}

func (s *Store) GetEarning(_ context.Context, beneficiary asset.Address, index int) (*earning.Earning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.earningAt(beneficiary, index)
	if err != nil {
		return nil, err
	}
	cp := *e
	return &cp, nil
}

func (s *Store) CancelEarning(_ context.Context, beneficiary asset.Address, index int) error {
	defer s.lockWrite()()

	e, err := s.earningAt(beneficiary, index)
	if err != nil {
		return err
	}
	if e.Settled() {
		return rental.ErrEarningSettled
	}
	e.Cancelled = true
	e.Touch(s.now())
	return nil
}

func (s *Store) RedeemEarnings(_ context.Context, beneficiary asset.Address, indexes []int) error {
	defer s.lockWrite()()

	// Validate everything first so a bad index leaves no partial update.
	for _, i := range indexes {
		e, err := s.earningAt(beneficiary, i)
		if err != nil {
			return err
		}
		if e.Settled() {
			return rental.ErrEarningSettled
		}
	}
	now := s.now()
	for _, i := range indexes {
		e := s.st.earnings[beneficiary.Normalize()][i]
		e.Redeemed = true
		e.Touch(now)
	}
	return nil
}

func (s *Store) RevertRedemption(_ context.Context, beneficiary asset.Address, indexes []int) error {
	defer s.lockWrite()()

	for _, i := range indexes {
		if _, err := s.earningAt(beneficiary, i); err != nil {
			return err
		}
	}
	now := s.now()
	for _, i := range indexes {
		e := s.st.earnings[beneficiary.Normalize()][i]
		e.Redeemed = false
		e.Touch(now)
	}
	return nil
}

func (s *Store) earningAt(beneficiary asset.Address, index int) (*earning.Earning, error) {
	seq := s.st.earnings[beneficiary.Normalize()]
	if index < 0 || index >= len(seq) {
		return nil, fmt.Errorf("%w: %s #%d", rental.ErrEarningNotFound, beneficiary, index)
	}
	return seq[index], nil
}

// Refund Store implementation
func (s *Store) AddRefund(_ context.Context, renter asset.Address, amount types.Money) error {
	defer s.lockWrite()()

	key := renter.Normalize()
	r, ok := s.st.refunds[key]
	if !ok {
		r = &refund.Refund{Renter: key, Balance: types.Zero(amount.Currency)}
	}
	if !r.Balance.SameCurrency(amount) {
		return fmt.Errorf("%w: refund in %s, balance in %s", rental.ErrCurrencyMismatch, amount.Currency, r.Balance.Currency)
	}
	r.Balance = r.Balance.Add(amount)
	r.UpdatedAt = s.now().UTC()
	s.st.refunds[key] = r
	return nil
}

func (s *Store) GetRefund(_ context.Context, renter asset.Address) (*refund.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.st.refunds[renter.Normalize()]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, rental.ErrRefundNotFound
}

func (s *Store) ResetRefund(_ context.Context, renter asset.Address) error {
	defer s.lockWrite()()

	r, ok := s.st.refunds[renter.Normalize()]
	if !ok {
		return rental.ErrRefundNotFound
	}
	r.Balance = types.Zero(r.Balance.Currency)
	r.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) ListRefunds(_ context.Context) ([]*refund.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*refund.Refund, 0, len(s.st.refunds))
	for _, r := range s.st.refunds {
		cp := *r
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Renter < result[j].Renter })
	return result, nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
