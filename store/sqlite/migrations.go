package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the rental store (SQLite).
var Migrations = migrate.NewGroup("rental")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_rental_listings",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rental_listings (
    id              TEXT PRIMARY KEY,
    seq             INTEGER NOT NULL,
    asset_key       TEXT NOT NULL,
    collection      TEXT NOT NULL,
    token_id        TEXT NOT NULL,
    lender          TEXT NOT NULL,
    price_amount    INTEGER NOT NULL,
    currency        TEXT NOT NULL,
    min_rental_days INTEGER NOT NULL,
    max_rental_days INTEGER NOT NULL,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rental_listings_asset ON rental_listings (asset_key);
CREATE INDEX IF NOT EXISTS idx_rental_listings_lender ON rental_listings (lender, seq);
CREATE INDEX IF NOT EXISTS idx_rental_listings_collection ON rental_listings (collection, seq);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rental_listings`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_rental_bookings",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rental_bookings (
    id              TEXT PRIMARY KEY,
    asset_key       TEXT NOT NULL,
    seq             INTEGER NOT NULL,
    collection      TEXT NOT NULL,
    token_id        TEXT NOT NULL,
    lender          TEXT NOT NULL,
    renter          TEXT NOT NULL,
    start_date      TIMESTAMP NOT NULL,
    end_date        TIMESTAMP NOT NULL,
    earning_index   INTEGER NOT NULL,
    fees_index      INTEGER NOT NULL,
    fee_beneficiary TEXT NOT NULL,
    started         INTEGER NOT NULL DEFAULT 0,
    cancelled       INTEGER NOT NULL DEFAULT 0,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rental_bookings_asset_seq ON rental_bookings (asset_key, seq);
CREATE INDEX IF NOT EXISTS idx_rental_bookings_renter ON rental_bookings (renter, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rental_bookings`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_rental_earnings",
			Version: "20250301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rental_earnings (
    id              TEXT PRIMARY KEY,
    beneficiary     TEXT NOT NULL,
    idx             INTEGER NOT NULL,
    booking_id      TEXT NOT NULL DEFAULT '',
    amount          INTEGER NOT NULL,
    currency        TEXT NOT NULL,
    redeemable_date TIMESTAMP NOT NULL,
    cancelled       INTEGER NOT NULL DEFAULT 0,
    redeemed        INTEGER NOT NULL DEFAULT 0,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (NOT (cancelled = 1 AND redeemed = 1))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rental_earnings_beneficiary_idx ON rental_earnings (beneficiary, idx);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rental_earnings`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_rental_refunds",
			Version: "20250301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rental_refunds (
    renter     TEXT PRIMARY KEY,
    amount     INTEGER NOT NULL DEFAULT 0,
    currency   TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rental_refunds`)
				return err
			},
		},
	)
}
