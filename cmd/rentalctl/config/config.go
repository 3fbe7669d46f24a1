// Package config loads rentalctl settings from a YAML file, the process
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the root rentalctl configuration.
type Config struct {
	Env      string         `yaml:"env" env:"RENTAL_ENV" env-default:"local"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// DatabaseConfig selects the grove driver and its connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"RENTAL_DB_DRIVER" env-default:"sqlite" validate:"oneof=pg sqlite mongo"`
	DSN    string `yaml:"dsn" env:"RENTAL_DB_DSN" env-default:"file:rental.db" validate:"required"`
	// Name is the Mongo database when the URI carries none.
	Name string `yaml:"name" env:"RENTAL_DB_NAME"`
}

// EngineConfig mirrors the engine options an operator can set.
type EngineConfig struct {
	FeePercent  int64  `yaml:"fee_percent" env:"RENTAL_FEE_PERCENT" env-default:"5" validate:"gte=0,lte=100"`
	Currency    string `yaml:"currency" env:"RENTAL_CURRENCY" env-default:"eth" validate:"required"`
	Operator    string `yaml:"operator" env:"RENTAL_OPERATOR"`
	Marketplace string `yaml:"marketplace" env:"RENTAL_MARKETPLACE"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Encoding string `yaml:"encoding" env:"LOG_ENCODING" env-default:"text" validate:"oneof=text json"`
}

// LoadConfig reads path, falling back to the environment alone when path is
// empty or missing, and validates the result.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := read(path, &cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func read(path string, cfg *Config) error {
	if path == "" {
		return cleanenv.ReadEnv(cfg)
	}

	err := cleanenv.ReadConfig(path, cfg)
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		slog.Warn("config file not found, reading environment only", slog.String("path", path))
		return cleanenv.ReadEnv(cfg)
	}
	return err
}

// NewLogger builds the slog logger described by c.
func (c LoggerConfig) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Encoding == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
