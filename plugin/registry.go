package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/booking"
	"github.com/xraph/rental/listing"
	"github.com/xraph/rental/payout"
	"github.com/xraph/rental/types"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onListed           []OnListed
	onUnlisted         []OnUnlisted
	onBooked           []OnBooked
	onRentingStarted   []OnRentingStarted
	onBookingCancelled []OnBookingCancelled
	onFundsSent        []OnFundsSent
	onTransferFailed   []OnTransferFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnListed); ok {
		r.onListed = append(r.onListed, v)
	}
	if v, ok := p.(OnUnlisted); ok {
		r.onUnlisted = append(r.onUnlisted, v)
	}
	if v, ok := p.(OnBooked); ok {
		r.onBooked = append(r.onBooked, v)
	}
	if v, ok := p.(OnRentingStarted); ok {
		r.onRentingStarted = append(r.onRentingStarted, v)
	}
	if v, ok := p.(OnBookingCancelled); ok {
		r.onBookingCancelled = append(r.onBookingCancelled, v)
	}
	if v, ok := p.(OnFundsSent); ok {
		r.onFundsSent = append(r.onFundsSent, v)
	}
	if v, ok := p.(OnTransferFailed); ok {
		r.onTransferFailed = append(r.onTransferFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnListed", reflect.TypeOf((*OnListed)(nil)).Elem()},
	{"OnUnlisted", reflect.TypeOf((*OnUnlisted)(nil)).Elem()},
	{"OnBooked", reflect.TypeOf((*OnBooked)(nil)).Elem()},
	{"OnRentingStarted", reflect.TypeOf((*OnRentingStarted)(nil)).Elem()},
	{"OnBookingCancelled", reflect.TypeOf((*OnBookingCancelled)(nil)).Elem()},
	{"OnFundsSent", reflect.TypeOf((*OnFundsSent)(nil)).Elem()},
	{"OnTransferFailed", reflect.TypeOf((*OnTransferFailed)(nil)).Elem()},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnInit", p.Name(), func() error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnShutdown", p.Name(), func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitListed calls OnListed for all plugins that implement it.
func (r *Registry) EmitListed(ctx context.Context, l *listing.Listing) {
	r.mu.RLock()
	plugins := r.onListed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnListed", p.Name(), func() error {
			return p.OnListed(ctx, l)
		})
	}
}

// EmitUnlisted calls OnUnlisted for all plugins that implement it.
func (r *Registry) EmitUnlisted(ctx context.Context, l *listing.Listing, by asset.Address) {
	r.mu.RLock()
	plugins := r.onUnlisted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnUnlisted", p.Name(), func() error {
			return p.OnUnlisted(ctx, l, by)
		})
	}
}

// EmitBooked calls OnBooked for all plugins that implement it.
func (r *Registry) EmitBooked(ctx context.Context, b *booking.Booking, price types.Money) {
	r.mu.RLock()
	plugins := r.onBooked
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnBooked", p.Name(), func() error {
			return p.OnBooked(ctx, b, price)
		})
	}
}

// EmitRentingStarted calls OnRentingStarted for all plugins that implement it.
func (r *Registry) EmitRentingStarted(ctx context.Context, b *booking.Booking) {
	r.mu.RLock()
	plugins := r.onRentingStarted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnRentingStarted", p.Name(), func() error {
			return p.OnRentingStarted(ctx, b)
		})
	}
}

// EmitBookingCancelled calls OnBookingCancelled for all plugins that implement it.
func (r *Registry) EmitBookingCancelled(ctx context.Context, b *booking.Booking, refunded types.Money) {
	r.mu.RLock()
	plugins := r.onBookingCancelled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnBookingCancelled", p.Name(), func() error {
			return p.OnBookingCancelled(ctx, b, refunded)
		})
	}
}

// EmitFundsSent calls OnFundsSent for all plugins that implement it.
func (r *Registry) EmitFundsSent(ctx context.Context, t *payout.Transfer) {
	r.mu.RLock()
	plugins := r.onFundsSent
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnFundsSent", p.Name(), func() error {
			return p.OnFundsSent(ctx, t)
		})
	}
}

// EmitTransferFailed calls OnTransferFailed for all plugins that implement it.
func (r *Registry) EmitTransferFailed(ctx context.Context, t *payout.Transfer, cause error) {
	r.mu.RLock()
	plugins := r.onTransferFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, "OnTransferFailed", p.Name(), func() error {
			return p.OnTransferFailed(ctx, t, cause)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, hook, pluginName string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the marketplace.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
