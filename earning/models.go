// Package earning holds the per-address earnings ledger. Each address owns
// an append-only list whose indices are stable and never reused.
package earning

import (
	"time"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/id"
	"github.com/xraph/rental/types"
)

// Earning is a pending claim on funds held by the marketplace.
// Cancelled and Redeemed only ever move from false to true, and at most
// one of them is set.
type Earning struct {
	types.Entity

	ID             id.ID         `json:"id"`
	Beneficiary    asset.Address `json:"beneficiary"`
	Index          int           `json:"index"`
	BookingID      id.ID         `json:"booking_id"`
	Amount         types.Money   `json:"amount"`
	RedeemableDate time.Time     `json:"redeemable_date"`
	Cancelled      bool          `json:"cancelled"`
	Redeemed       bool          `json:"redeemed"`
}

// Settled reports whether e was cancelled or redeemed.
func (e Earning) Settled() bool { return e.Cancelled || e.Redeemed }

// RedeemableAt reports whether e can be paid out at now.
func (e Earning) RedeemableAt(now time.Time) bool {
	return !e.Settled() && !e.RedeemableDate.After(now)
}

// Summary totals an address's earnings by state.
type Summary struct {
	Available types.Money `json:"available"`
	Upcoming  types.Money `json:"upcoming"`
	Redeemed  types.Money `json:"redeemed"`
	Cancelled types.Money `json:"cancelled"`
	Entries   int         `json:"entries"`
}

// Summarize totals entries at now. Available entries are redeemable now,
// upcoming ones become redeemable later.
func Summarize(currency string, entries []*Earning, now time.Time) Summary {
	s := Summary{
		Available: types.Zero(currency),
		Upcoming:  types.Zero(currency),
		Redeemed:  types.Zero(currency),
		Cancelled: types.Zero(currency),
		Entries:   len(entries),
	}
	for _, e := range entries {
		switch {
		case e.Redeemed:
			s.Redeemed = s.Redeemed.Add(e.Amount)
		case e.Cancelled:
			s.Cancelled = s.Cancelled.Add(e.Amount)
		case e.RedeemableAt(now):
			s.Available = s.Available.Add(e.Amount)
		default:
			s.Upcoming = s.Upcoming.Add(e.Amount)
		}
	}
	return s
}
