// Package payout moves value out of the marketplace. The engine records
// every state change before handing a Transfer to a Sender.
package payout

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/id"
	"github.com/xraph/rental/types"
)

// Reason says why funds left the marketplace.
type Reason string

// Transfer reasons.
const (
	ReasonExcessPayment Reason = "excess_payment"
	ReasonEarnings      Reason = "earnings"
	ReasonRefund        Reason = "refund"
)

// Transfer is one outgoing payment.
type Transfer struct {
	ID     id.ID         `json:"id"`
	To     asset.Address `json:"to"`
	Amount types.Money   `json:"amount"`
	Reason Reason        `json:"reason"`
	At     time.Time     `json:"at"`
}

// Sender delivers transfers.
type Sender interface {
	Send(ctx context.Context, t *Transfer) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, t *Transfer) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, t *Transfer) error { return f(ctx, t) }

// Wallet is an in-memory Sender that credits balances per address.
// It is the engine default when no Sender is configured.
type Wallet struct {
	mu        sync.Mutex
	balances  map[asset.Address]types.Money
	transfers []Transfer
}

// NewWallet returns an empty Wallet.
func NewWallet() *Wallet {
	return &Wallet{balances: make(map[asset.Address]types.Money)}
}

// Send implements Sender.
func (w *Wallet) Send(_ context.Context, t *Transfer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	to := t.To.Normalize()
	bal, ok := w.balances[to]
	if !ok {
		bal = types.Zero(t.Amount.Currency)
	}
	w.balances[to] = bal.Add(t.Amount)
	w.transfers = append(w.transfers, *t)
	return nil
}

// Balance returns what addr has received so far.
func (w *Wallet) Balance(addr asset.Address) types.Money {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[addr.Normalize()]
}

// Transfers returns every delivered transfer in order.
func (w *Wallet) Transfers() []Transfer {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Transfer, len(w.transfers))
	copy(out, w.transfers)
	return out
}
