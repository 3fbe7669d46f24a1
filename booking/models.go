// Package booking holds reservations of a listed asset for a closed time
// window, and the day-count and overlap rules that govern them.
package booking

import (
	"time"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/id"
	"github.com/xraph/rental/types"
)

// SecondsPerDay is the length of a rental day.
const SecondsPerDay = 86400

// Booking reserves Asset for Renter over [StartDate, EndDate].
// EarningIndex points into Lender's earnings, FeesIndex into those of
// FeeBeneficiary, the operator at booking time. Bookings are never removed;
// unlisting marks them Cancelled.
type Booking struct {
	types.Entity

	ID             id.ID         `json:"id"`
	Asset          asset.Ref     `json:"asset"`
	Seq            int           `json:"seq"`
	Lender         asset.Address `json:"lender"`
	Renter         asset.Address `json:"renter"`
	StartDate      time.Time     `json:"start_date"`
	EndDate        time.Time     `json:"end_date"`
	EarningIndex   int           `json:"earning_index"`
	FeesIndex      int           `json:"fees_index"`
	FeeBeneficiary asset.Address `json:"fee_beneficiary"`
	Started        bool          `json:"started"`
	Cancelled      bool          `json:"cancelled"`
}

// Days returns floor((end-start)/86400)+1 using whole seconds.
func Days(start, end time.Time) int64 {
	return (end.Unix()-start.Unix())/SecondsPerDay + 1
}

// Days returns the billed day count of b.
func (b Booking) Days() int64 { return Days(b.StartDate, b.EndDate) }

// Overlaps reports whether [start, end] shares any instant with b,
// endpoints included.
func (b Booking) Overlaps(start, end time.Time) bool {
	return !start.After(b.EndDate) && !end.Before(b.StartDate)
}

// Covers reports whether t falls within b's window, endpoints included.
func (b Booking) Covers(t time.Time) bool {
	return !t.Before(b.StartDate) && !t.After(b.EndDate)
}

// Active reports whether b still holds its window.
func (b Booking) Active() bool { return !b.Cancelled }
