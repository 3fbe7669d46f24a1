package refund

import (
	"context"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/types"
)

// Store persists refund balances, one per renter.
type Store interface {
	// AddRefund credits amount to renter's balance, creating it if needed.
	AddRefund(ctx context.Context, renter asset.Address, amount types.Money) error
	// GetRefund returns rental.ErrRefundNotFound when renter has no balance.
	GetRefund(ctx context.Context, renter asset.Address) (*Refund, error)
	// ResetRefund sets renter's balance to zero.
	ResetRefund(ctx context.Context, renter asset.Address) error
	// ListRefunds returns every non-zero balance.
	ListRefunds(ctx context.Context) ([]*Refund, error)
}
