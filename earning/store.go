package earning

import (
	"context"

	"github.com/xraph/rental/asset"
)

// Store persists earnings.
type Store interface {
	// AppendEarning assigns e.Index as the next position for e.Beneficiary.
	AppendEarning(ctx context.Context, e *Earning) error
	// ListEarnings returns beneficiary's entries in index order.
	ListEarnings(ctx context.Context, beneficiary asset.Address) ([]*Earning, error)
	// GetEarning returns rental.ErrEarningNotFound for an unknown index.
	GetEarning(ctx context.Context, beneficiary asset.Address, index int) (*Earning, error)
	// CancelEarning fails with rental.ErrEarningSettled if the entry is
	// already cancelled or redeemed.
	CancelEarning(ctx context.Context, beneficiary asset.Address, index int) error
	// RedeemEarnings marks every listed entry redeemed, failing with
	// rental.ErrEarningSettled if any is already settled.
	RedeemEarnings(ctx context.Context, beneficiary asset.Address, indexes []int) error
	// RevertRedemption clears the redeemed flag on entries whose payout
	// could not be delivered.
	RevertRedemption(ctx context.Context, beneficiary asset.Address, indexes []int) error
}
