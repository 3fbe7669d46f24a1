package postgres

import (
	"strconv"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/earning"
	"github.com/xraph/rental/id"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/refund"
	"github.com/xraph/rental/types"
)

// ==================== Listing models ====================

type listingModel struct {
	grove.BaseModel `grove:"table:rental_listings"`

	ID            string    `grove:"id,pk"`
	Seq           int64     `grove:"seq"`
	AssetKey      string    `grove:"asset_key"`
	Collection    string    `grove:"collection"`
	TokenID       string    `grove:"token_id"`
	Lender        string    `grove:"lender"`
	PriceAmount   int64     `grove:"price_amount"`
	Currency      string    `grove:"currency"`
	MinRentalDays int64     `grove:"min_rental_days"`
	MaxRentalDays int64     `grove:"max_rental_days"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toListingModel(l *listing.Listing) *listingModel {
	return &listingModel{
		ID:            l.ID.String(),
		Seq:           l.Seq,
		AssetKey:      l.Asset.Key(),
		Collection:    string(l.Asset.Collection.Normalize()),
		TokenID:       l.Asset.TokenID.String(),
		Lender:        string(l.Lender.Normalize()),
		PriceAmount:   l.PricePerDay.Amount,
		Currency:      l.PricePerDay.Currency,
		MinRentalDays: l.MinRentalDays,
		MaxRentalDays: l.MaxRentalDays,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

func fromListingModel(m *listingModel) (*listing.Listing, error) {
	listingID, err := id.ParseListingID(m.ID)
	if err != nil {
		return nil, err
	}
	ref, err := toRef(m.Collection, m.TokenID)
	if err != nil {
		return nil, err
	}

	return &listing.Listing{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            listingID,
		Seq:           m.Seq,
		Lender:        asset.Address(m.Lender),
		Asset:         ref,
		PricePerDay:   types.New(m.PriceAmount, m.Currency),
		MinRentalDays: m.MinRentalDays,
		MaxRentalDays: m.MaxRentalDays,
	}, nil
}

// ==================== Booking models ====================

type bookingModel struct {
	grove.BaseModel `grove:"table:rental_bookings"`

	ID             string    `grove:"id,pk"`
	AssetKey       string    `grove:"asset_key"`
	Seq            int       `grove:"seq"`
	Collection     string    `grove:"collection"`
	TokenID        string    `grove:"token_id"`
	Lender         string    `grove:"lender"`
	Renter         string    `grove:"renter"`
	StartDate      time.Time `grove:"start_date"`
	EndDate        time.Time `grove:"end_date"`
	EarningIndex   int       `grove:"earning_index"`
	FeesIndex      int       `grove:"fees_index"`
	FeeBeneficiary string    `grove:"fee_beneficiary"`
	Started        bool      `grove:"started"`
	Cancelled      bool      `grove:"cancelled"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toBookingModel(b *booking.Booking) *bookingModel {
	return &bookingModel{
		ID:             b.ID.String(),
		AssetKey:       b.Asset.Key(),
		Seq:            b.Seq,
		Collection:     string(b.Asset.Collection.Normalize()),
		TokenID:        b.Asset.TokenID.String(),
		Lender:         string(b.Lender.Normalize()),
		Renter:         string(b.Renter.Normalize()),
		StartDate:      b.StartDate,
		EndDate:        b.EndDate,
		EarningIndex:   b.EarningIndex,
		FeesIndex:      b.FeesIndex,
		FeeBeneficiary: string(b.FeeBeneficiary.Normalize()),
		Started:        b.Started,
		Cancelled:      b.Cancelled,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func fromBookingModel(m *bookingModel) (*booking.Booking, error) {
	bookingID, err := id.ParseBookingID(m.ID)
	if err != nil {
		return nil, err
	}
	ref, err := toRef(m.Collection, m.TokenID)
	if err != nil {
		return nil, err
	}

	return &booking.Booking{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             bookingID,
		Asset:          ref,
		Seq:            m.Seq,
		Lender:         asset.Address(m.Lender),
		Renter:         asset.Address(m.Renter),
		StartDate:      m.StartDate.UTC(),
		EndDate:        m.EndDate.UTC(),
		EarningIndex:   m.EarningIndex,
		FeesIndex:      m.FeesIndex,
		FeeBeneficiary: asset.Address(m.FeeBeneficiary),
		Started:        m.Started,
		Cancelled:      m.Cancelled,
	}, nil
}

// ==================== Earning models ====================

type earningModel struct {
	grove.BaseModel `grove:"table:rental_earnings"`

	ID             string    `grove:"id,pk"`
	Beneficiary    string    `grove:"beneficiary"`
	Idx            int       `grove:"idx"`
	BookingID      string    `grove:"booking_id"`
	Amount         int64     `grove:"amount"`
	Currency       string    `grove:"currency"`
	RedeemableDate time.Time `grove:"redeemable_date"`
	Cancelled      bool      `grove:"cancelled"`
	Redeemed       bool      `grove:"redeemed"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toEarningModel(e *earning.Earning) *earningModel {
	return &earningModel{
		ID:             e.ID.String(),
		Beneficiary:    string(e.Beneficiary.Normalize()),
		Idx:            e.Index,
		BookingID:      e.BookingID.String(),
		Amount:         e.Amount.Amount,
		Currency:       e.Amount.Currency,
		RedeemableDate: e.RedeemableDate,
		Cancelled:      e.Cancelled,
		Redeemed:       e.Redeemed,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromEarningModel(m *earningModel) (*earning.Earning, error) {
	earningID, err := id.ParseEarningID(m.ID)
	if err != nil {
		return nil, err
	}

	var bookingID id.ID
	if m.BookingID != "" {
		if bookingID, err = id.ParseBookingID(m.BookingID); err != nil {
			return nil, err
		}
	}

	return &earning.Earning{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             earningID,
		Beneficiary:    asset.Address(m.Beneficiary),
		Index:          m.Idx,
		BookingID:      bookingID,
		Amount:         types.New(m.Amount, m.Currency),
		RedeemableDate: m.RedeemableDate.UTC(),
		Cancelled:      m.Cancelled,
		Redeemed:       m.Redeemed,
	}, nil
}

// ==================== Refund models ====================

type refundModel struct {
	grove.BaseModel `grove:"table:rental_refunds"`

	Renter    string    `grove:"renter,pk"`
	Amount    int64     `grove:"amount"`
	Currency  string    `grove:"currency"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func fromRefundModel(m *refundModel) *refund.Refund {
	return &refund.Refund{
		Renter:    asset.Address(m.Renter),
		Balance:   types.New(m.Amount, m.Currency),
		UpdatedAt: m.UpdatedAt,
	}
}

func toRef(collection, token string) (asset.Ref, error) {
	n, err := strconv.ParseUint(token, 10, 64)
	if err != nil {
		return asset.Ref{}, err
	}
	return asset.NewRef(asset.Address(collection), asset.TokenID(n)), nil
}
