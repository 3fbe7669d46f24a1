// Package audithook bridges rental marketplace events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

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
	_ plugin.OnListed           = (*Extension)(nil)
	_ plugin.OnUnlisted         = (*Extension)(nil)
	_ plugin.OnBooked           = (*Extension)(nil)
	_ plugin.OnRentingStarted   = (*Extension)(nil)
	_ plugin.OnBookingCancelled = (*Extension)(nil)
	_ plugin.OnFundsSent        = (*Extension)(nil)
	_ plugin.OnTransferFailed   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It matches chronicle.Emitter but is defined locally so that this
// package does not import Chronicle.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges rental marketplace events to an audit trail backend.
type Extension struct {
	recorder   Recorder
	enabled    map[string]bool // nil = all enabled
	categories map[string]bool // nil = all categories
	logger     *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Listing hooks
// ──────────────────────────────────────────────────

// OnListed implements plugin.OnListed.
func (e *Extension) OnListed(ctx context.Context, l *listing.Listing) error {
	return e.record(ctx, ActionListed, SeverityInfo, OutcomeSuccess,
		ResourceListing, l.ID.String(), CategoryMarketplace, nil,
		"asset", l.Asset.String(),
		"lender", l.Lender.String(),
		"price_per_day", l.PricePerDay.String(),
		"min_rental_days", l.MinRentalDays,
		"max_rental_days", l.MaxRentalDays,
	)
}

// OnUnlisted implements plugin.OnUnlisted.
func (e *Extension) OnUnlisted(ctx context.Context, l *listing.Listing, by asset.Address) error {
	return e.record(ctx, ActionUnlisted, SeverityInfo, OutcomeSuccess,
		ResourceListing, l.ID.String(), CategoryMarketplace, nil,
		"asset", l.Asset.String(),
		"lender", l.Lender.String(),
		"by", by.String(),
	)
}

// ──────────────────────────────────────────────────
// Booking hooks
// ──────────────────────────────────────────────────

// OnBooked implements plugin.OnBooked.
func (e *Extension) OnBooked(ctx context.Context, b *booking.Booking, price types.Money) error {
	return e.record(ctx, ActionBooked, SeverityInfo, OutcomeSuccess,
		ResourceBooking, b.ID.String(), CategoryRental, nil,
		"asset", b.Asset.String(),
		"renter", b.Renter.String(),
		"start_date", b.StartDate,
		"end_date", b.EndDate,
		"price", price.String(),
	)
}

// OnRentingStarted implements plugin.OnRentingStarted.
func (e *Extension) OnRentingStarted(ctx context.Context, b *booking.Booking) error {
	return e.record(ctx, ActionRentingStarted, SeverityInfo, OutcomeSuccess,
		ResourceBooking, b.ID.String(), CategoryRental, nil,
		"asset", b.Asset.String(),
		"renter", b.Renter.String(),
		"until", b.EndDate,
	)
}

// OnBookingCancelled implements plugin.OnBookingCancelled.
func (e *Extension) OnBookingCancelled(ctx context.Context, b *booking.Booking, refunded types.Money) error {
	return e.record(ctx, ActionBookingCancelled, SeverityWarning, OutcomeSuccess,
		ResourceBooking, b.ID.String(), CategoryRental, nil,
		"asset", b.Asset.String(),
		"renter", b.Renter.String(),
		"refunded", refunded.String(),
	)
}

// ──────────────────────────────────────────────────
// Funds hooks
// ──────────────────────────────────────────────────

// OnFundsSent implements plugin.OnFundsSent.
func (e *Extension) OnFundsSent(ctx context.Context, t *payout.Transfer) error {
	return e.record(ctx, ActionFundsSent, SeverityInfo, OutcomeSuccess,
		ResourceTransfer, t.ID.String(), CategoryPayment, nil,
		"to", t.To.String(),
		"amount", t.Amount.String(),
		"reason", string(t.Reason),
	)
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (e *Extension) OnTransferFailed(ctx context.Context, t *payout.Transfer, err error) error {
	return e.record(ctx, ActionTransferFailed, SeverityCritical, OutcomeFailure,
		ResourceTransfer, t.ID.String(), CategoryPayment, err,
		"to", t.To.String(),
		"amount", t.Amount.String(),
		"reason", string(t.Reason),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}
	if e.categories != nil && !e.categories[category] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
