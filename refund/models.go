// Package refund holds per-renter refund balances credited when a listing
// is withdrawn with bookings still outstanding.
package refund

import (
	"time"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/types"
)

// Refund is the amount the marketplace owes Renter.
type Refund struct {
	Renter    asset.Address `json:"renter"`
	Balance   types.Money   `json:"balance"`
	UpdatedAt time.Time     `json:"updated_at"`
}
