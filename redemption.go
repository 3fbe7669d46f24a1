package rental

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/earning"
	"github.com/xraph/rental/id"
	"github.com/xraph/rental/payout"
	"github.com/xraph/rental/refund"
	"github.com/xraph/rental/store"
	"github.com/xraph/rental/types"
)

// ──────────────────────────────────────────────────
// Redemption gateway
// ──────────────────────────────────────────────────

// RedeemEarnings pays the caller every earning that is neither cancelled
// nor redeemed. Unless WithRedeemBeforeStart is set, earnings whose booking
// has not started yet are left for later.
func (e *Engine) RedeemEarnings(ctx context.Context) (types.Money, error) {
	caller, unlock, err := e.writer(ctx, false)
	if err != nil {
		return types.Money{}, err
	}
	defer unlock()

	now := e.clock()
	var (
		total   types.Money
		indexes []int
	)
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		entries, err := tx.ListEarnings(ctx, caller)
		if err != nil {
			return err
		}
		total, indexes = types.Zero(e.currency), nil
		for _, entry := range entries {
			if !e.redeemable(entry, now) {
				continue
			}
			total = total.Add(entry.Amount)
			indexes = append(indexes, entry.Index)
		}
		if !total.IsPositive() {
			return ErrNothingToRedeem
		}
		return tx.RedeemEarnings(ctx, caller, indexes)
	})
	if err != nil {
		return types.Money{}, err
	}

	if err := e.send(ctx, caller, total, payout.ReasonEarnings); err != nil {
		if rerr := e.store.RunInTx(context.WithoutCancel(ctx), func(ctx context.Context, tx store.Store) error {
			return tx.RevertRedemption(ctx, caller, indexes)
		}); rerr != nil {
			e.logger.Error("earnings redemption compensation failed",
				"beneficiary", caller,
				"amount", total.String(),
				"error", rerr,
			)
		}
		return types.Money{}, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	e.logger.Debug("earnings redeemed",
		"beneficiary", caller,
		"amount", total.String(),
		"entries", len(indexes),
	)
	return total, nil
}

func (e *Engine) redeemable(entry *earning.Earning, now time.Time) bool {
	if entry.Settled() {
		return false
	}
	return e.redeemBeforeStart || entry.RedeemableAt(now)
}

// RedeemRefund pays out the caller's refund balance and zeroes it.
func (e *Engine) RedeemRefund(ctx context.Context) (types.Money, error) {
	caller, unlock, err := e.writer(ctx, false)
	if err != nil {
		return types.Money{}, err
	}
	defer unlock()

	var balance types.Money
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		r, err := tx.GetRefund(ctx, caller)
		if errors.Is(err, ErrRefundNotFound) {
			return ErrNothingToRedeem
		} else if err != nil {
			return err
		}
		if !r.Balance.IsPositive() {
			return ErrNothingToRedeem
		}
		balance = r.Balance
		return tx.ResetRefund(ctx, caller)
	})
	if err != nil {
		return types.Money{}, err
	}

	if err := e.send(ctx, caller, balance, payout.ReasonRefund); err != nil {
		if rerr := e.store.RunInTx(context.WithoutCancel(ctx), func(ctx context.Context, tx store.Store) error {
			return tx.AddRefund(ctx, caller, balance)
		}); rerr != nil {
			e.logger.Error("refund redemption compensation failed",
				"renter", caller,
				"amount", balance.String(),
				"error", rerr,
			)
		}
		return types.Money{}, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	e.logger.Debug("refund redeemed",
		"renter", caller,
		"amount", balance.String(),
	)
	return balance, nil
}

// send hands one transfer to the configured Sender and reports the outcome
// to plugins.
func (e *Engine) send(ctx context.Context, to asset.Address, amount types.Money, reason payout.Reason) error {
	t := &payout.Transfer{
		ID:     id.NewPayoutID(),
		To:     to,
		Amount: amount,
		Reason: reason,
		At:     e.now().UTC(),
	}
	if err := e.sender.Send(ctx, t); err != nil {
		e.plugins.EmitTransferFailed(ctx, t, err)
		return err
	}
	e.plugins.EmitFundsSent(ctx, t)
	return nil
}

// ──────────────────────────────────────────────────
// Ledger reads
// ──────────────────────────────────────────────────

// GetMyEarnings returns every earning of the caller in ledger order.
func (e *Engine) GetMyEarnings(ctx context.Context) ([]*earning.Earning, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	return e.store.ListEarnings(ctx, caller)
}

// GetMyEarningsSummary classifies the caller's earnings as of now.
func (e *Engine) GetMyEarningsSummary(ctx context.Context) (earning.Summary, error) {
	entries, err := e.GetMyEarnings(ctx)
	if err != nil {
		return earning.Summary{}, err
	}
	return earning.Summarize(e.currency, entries, e.clock()), nil
}

// GetMyRefund returns the caller's refund balance, zero when none.
func (e *Engine) GetMyRefund(ctx context.Context) (types.Money, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return types.Money{}, err
	}
	r, err := e.store.GetRefund(ctx, caller)
	if errors.Is(err, ErrRefundNotFound) {
		return types.Zero(e.currency), nil
	}
	if err != nil {
		return types.Money{}, err
	}
	return r.Balance, nil
}

// GetRefunds returns every refund balance, for operators.
func (e *Engine) GetRefunds(ctx context.Context) ([]*refund.Refund, error) {
	return e.store.ListRefunds(ctx)
}
