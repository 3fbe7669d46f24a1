package extension

import (
	"github.com/xraph/grove"

	rental "github.com/xraph/rental"
	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/plugin"
	"github.com/xraph/rental/store"
)

// Option configures the rental Forge extension.
type Option func(*Extension)

// WithStore sets the store for the rental engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store from a grove database. The backend
// (postgres, sqlite or mongo) follows the grove driver.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI
// container at Register time.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) { e.config.GroveDatabase = name }
}

// WithRegistry sets the asset registry the engine operates on.
func WithRegistry(r asset.Registry) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, rental.WithRegistry(r))
	}
}

// WithEngineOption passes a rental.Option through to the underlying engine.
func WithEngineOption(opt rental.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a rental plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, rental.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithFeePercent sets the marketplace fee percentage.
func WithFeePercent(pct int64) Option {
	return func(e *Extension) { e.config.FeePercent = pct }
}

// WithCurrency sets the settlement currency.
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithOperator sets the operator address.
func WithOperator(addr string) Option {
	return func(e *Extension) { e.config.Operator = addr }
}

// WithMarketplace sets the custody address.
func WithMarketplace(addr string) Option {
	return func(e *Extension) { e.config.Marketplace = addr }
}

// WithRedisLock serializes writers through the Redis server at addr.
func WithRedisLock(addr string) Option {
	return func(e *Extension) { e.config.RedisAddr = addr }
}

// WithNATS publishes marketplace events to the NATS server at url.
func WithNATS(url string) Option {
	return func(e *Extension) { e.config.NATSURL = url }
}
