package extension

import "time"

// Config holds the rental extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.rental" or "rental" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// FeePercent is the marketplace fee taken from each booking (default: 5).
	FeePercent int64 `json:"fee_percent" mapstructure:"fee_percent" yaml:"fee_percent"`

	// Currency is the single settlement currency (default: "eth").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// Operator is the address that receives fees and may unlist any asset.
	Operator string `json:"operator" mapstructure:"operator" yaml:"operator"`

	// Marketplace is the custody address listed assets are moved to.
	Marketplace string `json:"marketplace" mapstructure:"marketplace" yaml:"marketplace"`

	// RedeemBeforeStart lets lenders redeem earnings of bookings that have
	// not started yet.
	RedeemBeforeStart bool `json:"redeem_before_start" mapstructure:"redeem_before_start" yaml:"redeem_before_start"`

	// RedisAddr, when set, serializes writers across processes with a
	// Redis lock instead of the in-process mutex.
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr"`

	// LockTTL bounds how long a Redis lock is held (default: 30s).
	LockTTL time.Duration `json:"lock_ttl" mapstructure:"lock_ttl" yaml:"lock_ttl"`

	// NATSURL, when set, publishes every marketplace event to NATS.
	NATSURL string `json:"nats_url" mapstructure:"nats_url" yaml:"nats_url"`

	// NATSPrefix is the subject prefix for published events (default: "rental").
	NATSPrefix string `json:"nats_prefix" mapstructure:"nats_prefix" yaml:"nats_prefix"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and constructs
	// the store matching its driver (pg/sqlite/mongo).
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FeePercent: 5,
		Currency:   "eth",
		LockTTL:    30 * time.Second,
		NATSPrefix: "rental",
	}
}
