// Package natshook publishes rental marketplace events to NATS as JSON.
package natshook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/payout"
	"github.com/xraph/rental/plugin"
	"github.com/xraph/rental/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnShutdown         = (*Extension)(nil)
	_ plugin.OnListed           = (*Extension)(nil)
	_ plugin.OnUnlisted         = (*Extension)(nil)
	_ plugin.OnBooked           = (*Extension)(nil)
	_ plugin.OnRentingStarted   = (*Extension)(nil)
	_ plugin.OnBookingCancelled = (*Extension)(nil)
	_ plugin.OnFundsSent        = (*Extension)(nil)
	_ plugin.OnTransferFailed   = (*Extension)(nil)
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "rental"

// Subject suffixes, appended to the prefix with a dot.
const (
	SubjectListed           = "listing.created"
	SubjectUnlisted         = "listing.removed"
	SubjectBooked           = "booking.created"
	SubjectRentingStarted   = "booking.started"
	SubjectBookingCancelled = "booking.cancelled"
	SubjectFundsSent        = "funds.sent"
	SubjectTransferFailed   = "funds.failed"
)

const (
	connectWait   = 5 * time.Second
	maxReconnects = 5
	reconnectWait = 2 * time.Second
)

// Publisher is the subset of *nats.Conn the extension needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type flusher interface {
	Flush() error
}

// Message is the JSON envelope of every published event.
type Message struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Option configures an Extension.
type Option func(*Extension)

// WithPrefix sets the subject prefix.
func WithPrefix(prefix string) Option {
	return func(e *Extension) { e.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithClock sets the time source for OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(e *Extension) { e.now = now }
}

// Extension publishes one message per marketplace event.
type Extension struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Extension publishing through pub, usually a *nats.Conn.
func New(pub Publisher, opts ...Option) (*Extension, error) {
	if pub == nil {
		return nil, fmt.Errorf("natshook: publisher cannot be nil")
	}
	e := &Extension{
		pub:    pub,
		prefix: DefaultPrefix,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Connect dials a NATS server with reconnect settings suited to a
// long-running publisher.
func Connect(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(connectWait),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("natshook: disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("natshook: reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("natshook: connect to %s: %w", url, err)
	}
	return nc, nil
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "nats-hook" }

// OnShutdown flushes buffered messages when the publisher supports it.
func (e *Extension) OnShutdown(_ context.Context) error {
	if f, ok := e.pub.(flusher); ok {
		return f.Flush()
	}
	return nil
}

type listingEvent struct {
	ListingID     string `json:"listing_id"`
	Asset         string `json:"asset"`
	Lender        string `json:"lender"`
	PricePerDay   string `json:"price_per_day"`
	MinRentalDays int64  `json:"min_rental_days"`
	MaxRentalDays int64  `json:"max_rental_days"`
	By            string `json:"by,omitempty"`
}

func newListingEvent(l *listing.Listing) listingEvent {
	return listingEvent{
		ListingID:     l.ID.String(),
		Asset:         l.Asset.String(),
		Lender:        l.Lender.String(),
		PricePerDay:   l.PricePerDay.String(),
		MinRentalDays: l.MinRentalDays,
		MaxRentalDays: l.MaxRentalDays,
	}
}

type bookingEvent struct {
	BookingID string    `json:"booking_id"`
	Asset     string    `json:"asset"`
	Seq       int       `json:"seq"`
	Lender    string    `json:"lender"`
	Renter    string    `json:"renter"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Price     string    `json:"price,omitempty"`
	Refunded  string    `json:"refunded,omitempty"`
}

func newBookingEvent(b *booking.Booking) bookingEvent {
	return bookingEvent{
		BookingID: b.ID.String(),
		Asset:     b.Asset.String(),
		Seq:       b.Seq,
		Lender:    b.Lender.String(),
		Renter:    b.Renter.String(),
		StartDate: b.StartDate,
		EndDate:   b.EndDate,
	}
}

type transferEvent struct {
	TransferID string `json:"transfer_id"`
	To         string `json:"to"`
	Amount     string `json:"amount"`
	Reason     string `json:"reason"`
	Error      string `json:"error,omitempty"`
}

func newTransferEvent(t *payout.Transfer) transferEvent {
	return transferEvent{
		TransferID: t.ID.String(),
		To:         t.To.String(),
		Amount:     t.Amount.String(),
		Reason:     string(t.Reason),
	}
}

// OnListed implements plugin.OnListed.
func (e *Extension) OnListed(_ context.Context, l *listing.Listing) error {
	return e.publish(SubjectListed, newListingEvent(l))
}

// OnUnlisted implements plugin.OnUnlisted.
func (e *Extension) OnUnlisted(_ context.Context, l *listing.Listing, by asset.Address) error {
	evt := newListingEvent(l)
	evt.By = by.String()
	return e.publish(SubjectUnlisted, evt)
}

// OnBooked implements plugin.OnBooked.
func (e *Extension) OnBooked(_ context.Context, b *booking.Booking, price types.Money) error {
	evt := newBookingEvent(b)
	evt.Price = price.String()
	return e.publish(SubjectBooked, evt)
}

// OnRentingStarted implements plugin.OnRentingStarted.
func (e *Extension) OnRentingStarted(_ context.Context, b *booking.Booking) error {
	return e.publish(SubjectRentingStarted, newBookingEvent(b))
}

// OnBookingCancelled implements plugin.OnBookingCancelled.
func (e *Extension) OnBookingCancelled(_ context.Context, b *booking.Booking, refunded types.Money) error {
	evt := newBookingEvent(b)
	evt.Refunded = refunded.String()
	return e.publish(SubjectBookingCancelled, evt)
}

// OnFundsSent implements plugin.OnFundsSent.
func (e *Extension) OnFundsSent(_ context.Context, t *payout.Transfer) error {
	return e.publish(SubjectFundsSent, newTransferEvent(t))
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (e *Extension) OnTransferFailed(_ context.Context, t *payout.Transfer, err error) error {
	evt := newTransferEvent(t)
	if err != nil {
		evt.Error = err.Error()
	}
	return e.publish(SubjectTransferFailed, evt)
}

// publish marshals data into a Message and sends it. Failures are returned
// so the plugin registry logs them.
func (e *Extension) publish(suffix string, data any) error {
	subject := e.prefix + "." + suffix
	msg := Message{
		Type:       suffix,
		OccurredAt: e.now().UTC(),
		Data:       data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("natshook: marshal message for subject %s: %w", subject, err)
	}
	if err := e.pub.Publish(subject, payload); err != nil {
		return fmt.Errorf("natshook: publish to subject %s: %w", subject, err)
	}
	e.logger.Debug("natshook: event published", "subject", subject)
	return nil
}
