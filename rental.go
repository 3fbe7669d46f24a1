package rental

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/lock"
	"github.com/xraph/rental/payout"
	"github.com/xraph/rental/plugin"
	"github.com/xraph/rental/store"
)

// DefaultFeePercent is the platform share of every rental price.
const DefaultFeePercent = 5

// DefaultCurrency is the marketplace currency when none is configured.
const DefaultCurrency = "eth"

// Engine is the rental marketplace. Writes are serialized through a
// lock.Locker and each runs inside one store transaction.
type Engine struct {
	store    store.Store
	registry asset.Registry
	plugins  *plugin.Registry
	logger   *slog.Logger
	locker   lock.Locker
	sender   payout.Sender
	now      func() time.Time

	// Configuration
	feePercent        int64
	currency          string
	operator          asset.Address
	marketplace       asset.Address
	redeemBeforeStart bool
}

// New creates a new Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		plugins:    plugin.NewRegistry(),
		logger:     slog.Default(),
		locker:     lock.NewLocal(),
		sender:     payout.NewWallet(),
		now:        time.Now,
		feePercent: DefaultFeePercent,
		currency:   DefaultCurrency,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithRegistry sets the Asset Registry. Without one the engine is read-only.
func WithRegistry(r asset.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithFeePercent sets the platform fee, 0 to 100.
func WithFeePercent(pct int64) Option {
	return func(e *Engine) { e.feePercent = pct }
}

// WithOperator sets the platform operator: the fee beneficiary, also
// allowed to unlist any asset.
func WithOperator(addr asset.Address) Option {
	return func(e *Engine) { e.operator = addr.Normalize() }
}

// WithMarketplace sets the custody address listed assets are moved to.
// Lenders must approve it as operator on their collection.
func WithMarketplace(addr asset.Address) Option {
	return func(e *Engine) { e.marketplace = addr.Normalize() }
}

// WithCurrency sets the one currency prices and payments use. Codes are
// case-insensitive and stored lowercase.
func WithCurrency(currency string) Option {
	return func(e *Engine) { e.currency = strings.ToLower(strings.TrimSpace(currency)) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocker replaces the in-process writer lock, e.g. with a redislock.Locker.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithSender sets where outgoing funds are delivered.
func WithSender(s payout.Sender) Option {
	return func(e *Engine) { e.sender = s }
}

// WithRedeemBeforeStart lets earnings be redeemed before their booking starts.
func WithRedeemBeforeStart(allow bool) Option {
	return func(e *Engine) { e.redeemBeforeStart = allow }
}

// Validate reports the first configuration problem, if any.
func (e *Engine) Validate() error {
	switch {
	case e.store == nil:
		return ValidationError{Field: "store", Message: "required"}
	case e.feePercent < 0 || e.feePercent > 100:
		return ValidationError{Field: "fee_percent", Message: fmt.Sprintf("%d not in [0,100]", e.feePercent)}
	case e.currency == "":
		return ValidationError{Field: "currency", Message: "required"}
	case e.operator.IsZero():
		return ValidationError{Field: "operator", Message: "required"}
	case e.marketplace.IsZero():
		return ValidationError{Field: "marketplace", Message: "required"}
	case e.sender == nil:
		return ValidationError{Field: "sender", Message: "required"}
	}
	return nil
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Validate(); err != nil {
		return err
	}

	// Migrate database
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	e.logger.Info("rental engine started",
		"fee_percent", e.feePercent,
		"currency", e.currency,
		"operator", e.operator,
		"marketplace", e.marketplace,
		"registry", e.registry != nil,
	)

	return nil
}

// Stop shuts down the engine and closes the store.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// GetFeePercent returns the platform fee percentage.
func (e *Engine) GetFeePercent() int64 { return e.feePercent }

// Currency returns the marketplace currency.
func (e *Engine) Currency() string { return e.currency }

// Operator returns the platform operator address.
func (e *Engine) Operator() asset.Address { return e.operator }

// Marketplace returns the custody address.
func (e *Engine) Marketplace() asset.Address { return e.marketplace }

// writer checks configuration, resolves the caller and takes the writer lock.
// The returned unlock must be called when the operation finishes.
func (e *Engine) writer(ctx context.Context, needsRegistry bool) (asset.Address, func(), error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return "", nil, err
	}
	if err := e.Validate(); err != nil {
		return "", nil, err
	}
	if needsRegistry && e.registry == nil {
		return "", nil, ErrRegistryNotConfigured
	}
	unlock, err := e.locker.Lock(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrLockNotAcquired, err)
	}
	return caller, unlock, nil
}
