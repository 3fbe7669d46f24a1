// Package extension provides the Forge extension adapter for the rental
// engine.
//
// It implements the forge.Extension interface to integrate the engine
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.rental" or "rental" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	rental "github.com/xraph/rental"
	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/lock/redislock"
	"github.com/xraph/rental/natshook"
	"github.com/xraph/rental/store"
	"github.com/xraph/rental/store/memory"
	"github.com/xraph/rental/store/mongo"
	"github.com/xraph/rental/store/postgres"
	"github.com/xraph/rental/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "rental"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Time-bound rental marketplace ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the rental engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *rental.Engine
	store      store.Store
	groveDB    *grove.DB
	engineOpts []rental.Option

	redis *redis.Client
	nats  *nats.Conn
}

// New creates a new rental Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *rental.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil && e.groveDB == nil && e.config.GroveDatabase != "" {
		db, err := vessel.InjectNamed[*grove.DB](fapp.Container(), e.config.GroveDatabase)
		if err != nil {
			return fmt.Errorf("rental: resolve grove database %q: %w", e.config.GroveDatabase, err)
		}
		e.groveDB = db
	}

	if e.store == nil {
		if e.groveDB != nil {
			s, err := StoreFor(e.groveDB)
			if err != nil {
				return err
			}
			e.store = s
		} else {
			e.store = memory.New()
		}
	}

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}
	e.engine = rental.New(e.store, opts...)

	if err := vessel.Provide(fapp.Container(), func() (store.Store, error) {
		return e.store, nil
	}); err != nil {
		return err
	}
	return vessel.Provide(fapp.Container(), func() (*rental.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("rental: extension not initialized")
	}

	if e.config.DisableMigrate {
		if err := e.engine.Validate(); err != nil {
			return err
		}
	} else if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var errs []error
	if e.engine != nil {
		errs = append(errs, e.engine.Stop())
	}
	if e.nats != nil {
		e.nats.Close()
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	e.MarkStopped()
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("rental: store not initialized")
	}
	if err := e.store.Ping(ctx); err != nil {
		return err
	}
	if e.redis != nil {
		if err := e.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("rental: redis: %w", err)
		}
	}
	if e.nats != nil && !e.nats.IsConnected() {
		return errors.New("rental: nats disconnected")
	}
	return nil
}

// StoreFor picks the store backend matching the grove driver of db.
func StoreFor(db *grove.DB) (store.Store, error) {
	switch name := db.Driver().Name(); name {
	case "pg":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("rental: unsupported grove driver %q", name)
	}
}

// buildEngineOpts constructs rental.Option values from the resolved config
// and opens the optional Redis and NATS connections.
func (e *Extension) buildEngineOpts() ([]rental.Option, error) {
	opts := make([]rental.Option, 0, len(e.engineOpts)+8)

	opts = append(opts,
		rental.WithFeePercent(e.config.FeePercent),
		rental.WithCurrency(e.config.Currency),
		rental.WithRedeemBeforeStart(e.config.RedeemBeforeStart),
	)
	if e.config.Operator != "" {
		opts = append(opts, rental.WithOperator(asset.Address(e.config.Operator)))
	}
	if e.config.Marketplace != "" {
		opts = append(opts, rental.WithMarketplace(asset.Address(e.config.Marketplace)))
	}

	if e.config.RedisAddr != "" {
		e.redis = redis.NewClient(&redis.Options{Addr: e.config.RedisAddr})
		opts = append(opts, rental.WithLocker(redislock.New(e.redis,
			redislock.WithKey("rental:writer:"+e.config.Marketplace),
			redislock.WithTTL(e.config.LockTTL),
		)))
	}

	if e.config.NATSURL != "" {
		nc, err := natshook.Connect(e.config.NATSURL, "rental-"+e.config.Marketplace, nil)
		if err != nil {
			return nil, err
		}
		e.nats = nc
		hook, err := natshook.New(nc, natshook.WithPrefix(e.config.NATSPrefix))
		if err != nil {
			return nil, err
		}
		opts = append(opts, rental.WithPlugin(hook))
	}

	// Pass-through engine options win over config.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("rental: configuration is required but not found in config files; " +
				"ensure 'extensions.rental' or 'rental' key exists in your config")
		}
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("rental: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("fee_percent", e.config.FeePercent),
		forge.F("currency", e.config.Currency),
		forge.F("operator", e.config.Operator),
		forge.F("marketplace", e.config.Marketplace),
		forge.F("redeem_before_start", e.config.RedeemBeforeStart),
		forge.F("grove_database", e.config.GroveDatabase),
		forge.F("redis", e.config.RedisAddr != ""),
		forge.F("nats", e.config.NATSURL != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.rental", "rental"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("rental: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("rental: failed to bind config",
			forge.F("key", key),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.FeePercent == 0 {
		cfg.FeePercent = defaults.FeePercent
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	if cfg.NATSPrefix == "" {
		cfg.NATSPrefix = defaults.NATSPrefix
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.RedeemBeforeStart {
		yamlConfig.RedeemBeforeStart = true
	}

	if yamlConfig.FeePercent == 0 && programmaticConfig.FeePercent != 0 {
		yamlConfig.FeePercent = programmaticConfig.FeePercent
	}
	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.Operator == "" {
		yamlConfig.Operator = programmaticConfig.Operator
	}
	if yamlConfig.Marketplace == "" {
		yamlConfig.Marketplace = programmaticConfig.Marketplace
	}
	if yamlConfig.GroveDatabase == "" {
		yamlConfig.GroveDatabase = programmaticConfig.GroveDatabase
	}
	if yamlConfig.RedisAddr == "" {
		yamlConfig.RedisAddr = programmaticConfig.RedisAddr
	}
	if yamlConfig.LockTTL == 0 {
		yamlConfig.LockTTL = programmaticConfig.LockTTL
	}
	if yamlConfig.NATSURL == "" {
		yamlConfig.NATSURL = programmaticConfig.NATSURL
	}
	if yamlConfig.NATSPrefix == "" {
		yamlConfig.NATSPrefix = programmaticConfig.NATSPrefix
	}

	return e.mergeWithDefaults(yamlConfig)
}
