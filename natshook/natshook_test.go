package natshook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/id"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/payout"
	"github.com/xraph/rental/types"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

type flushingPublisher struct {
	mockPublisher
	flushed bool
}

func (f *flushingPublisher) Flush() error {
	f.flushed = true
	return nil
}

var fixed = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestExtension(t *testing.T, pub Publisher, opts ...Option) *Extension {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	ext, err := New(pub, opts...)
	require.NoError(t, err)
	return ext
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestNewRejectsNilPublisher(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestOnListedPublishesEnvelope(t *testing.T) {
	pub := new(mockPublisher)
	var payload []byte
	pub.On("Publish", "rental.listing.created", mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(1).([]byte) }).
		Return(nil)

	l := &listing.Listing{
		ID:            id.NewListingID(),
		Lender:        "0xLender",
		Asset:         asset.NewRef("0xC011", 4),
		PricePerDay:   types.New(1_000, "eth"),
		MinRentalDays: 1,
		MaxRentalDays: 7,
	}
	ext := newTestExtension(t, pub)
	require.NoError(t, ext.OnListed(context.Background(), l))
	pub.AssertExpectations(t)

	msg := decode(t, payload)
	assert.Equal(t, SubjectListed, msg["type"])
	assert.Equal(t, fixed.Format(time.RFC3339), msg["occurred_at"])
	data := msg["data"].(map[string]any)
	assert.Equal(t, l.ID.String(), data["listing_id"])
	assert.Equal(t, "0xc011/4", data["asset"])
	assert.Equal(t, "0xlender", data["lender"])
	assert.Equal(t, float64(7), data["max_rental_days"])
}

func TestCustomPrefix(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", "market.booking.started", mock.Anything).Return(nil)

	ext := newTestExtension(t, pub, WithPrefix("market"))
	b := &booking.Booking{ID: id.NewBookingID(), Asset: asset.NewRef("0xc011", 1)}
	require.NoError(t, ext.OnRentingStarted(context.Background(), b))
	pub.AssertExpectations(t)
}

func TestOnBookingCancelledCarriesRefund(t *testing.T) {
	pub := new(mockPublisher)
	var payload []byte
	pub.On("Publish", "rental.booking.cancelled", mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(1).([]byte) }).
		Return(nil)

	ext := newTestExtension(t, pub)
	b := &booking.Booking{ID: id.NewBookingID(), Asset: asset.NewRef("0xc011", 1), Seq: 2}
	refunded := types.New(500, "eth")
	require.NoError(t, ext.OnBookingCancelled(context.Background(), b, refunded))

	data := decode(t, payload)["data"].(map[string]any)
	assert.Equal(t, refunded.String(), data["refunded"])
	assert.Equal(t, float64(2), data["seq"])
}

func TestOnTransferFailedIncludesError(t *testing.T) {
	pub := new(mockPublisher)
	var payload []byte
	pub.On("Publish", "rental.funds.failed", mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(1).([]byte) }).
		Return(nil)

	ext := newTestExtension(t, pub)
	tr := &payout.Transfer{ID: id.NewPayoutID(), To: "0xrenter", Amount: types.New(9, "eth"), Reason: payout.ReasonEarnings}
	require.NoError(t, ext.OnTransferFailed(context.Background(), tr, errors.New("insufficient gas")))

	data := decode(t, payload)["data"].(map[string]any)
	assert.Equal(t, "insufficient gas", data["error"])
	assert.Equal(t, "earnings", data["reason"])
}

func TestPublishErrorIsReturned(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", "rental.funds.sent", mock.Anything).Return(errors.New("no responders"))

	ext := newTestExtension(t, pub)
	err := ext.OnFundsSent(context.Background(), &payout.Transfer{ID: id.NewPayoutID()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rental.funds.sent")
}

func TestOnShutdownFlushes(t *testing.T) {
	pub := &flushingPublisher{}
	ext := newTestExtension(t, pub)
	require.NoError(t, ext.OnShutdown(context.Background()))
	assert.True(t, pub.flushed)
}
