package main

import (
	"context"
	"fmt"
	"log/slog"

	cli "github.com/urfave/cli/v2"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	rental "github.com/xraph/rental"
	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/cmd/rentalctl/config"
	"github.com/xraph/rental/extension"
	"github.com/xraph/rental/store"
)

// session bundles what a command needs: the resolved config, a store bound
// to the configured database and a read-side engine over it.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	engine *rental.Engine
}

func (s *session) Close() error { return s.store.Close() }

// newSession is swapped in tests to run commands against a memory store.
var newSession = openSession

func openSession(c *cli.Context) (*session, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v := c.String("dsn"); v != "" {
		cfg.Database.DSN = v
	}

	logger := cfg.Logger.NewLogger()

	db, err := openDB(c.Context, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	s, err := extension.StoreFor(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("rentalctl: store opened", slog.String("driver", cfg.Database.Driver))
	return newSessionFor(cfg, logger, s), nil
}

func newSessionFor(cfg *config.Config, logger *slog.Logger, s store.Store) *session {
	opts := []rental.Option{
		rental.WithLogger(logger),
		rental.WithFeePercent(cfg.Engine.FeePercent),
		rental.WithCurrency(cfg.Engine.Currency),
	}
	if cfg.Engine.Operator != "" {
		opts = append(opts, rental.WithOperator(asset.Address(cfg.Engine.Operator)))
	}
	if cfg.Engine.Marketplace != "" {
		opts = append(opts, rental.WithMarketplace(asset.Address(cfg.Engine.Marketplace)))
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		store:  s,
		engine: rental.New(s, opts...),
	}
}

// openDB connects the grove driver named by cfg.Driver.
func openDB(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*grove.DB, error) {
	var drv grove.GroveDriver

	switch cfg.Driver {
	case "pg":
		pgdb := pgdriver.New()
		if err := pgdb.Open(ctx, cfg.DSN); err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		drv = pgdb
	case "sqlite":
		sdb := sqlitedriver.New()
		if err := sdb.Open(ctx, cfg.DSN); err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		drv = sdb
	case "mongo":
		var opts []mongodriver.MongoOption
		if cfg.Name != "" {
			opts = append(opts, mongodriver.WithDatabase(cfg.Name))
		}
		mdb := mongodriver.New()
		if err := mdb.Open(ctx, cfg.DSN, opts...); err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		drv = mdb
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	return grove.Open(drv, grove.WithLogger(logger))
}
