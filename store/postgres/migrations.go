package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the rental store.
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
    seq             BIGINT NOT NULL,
    asset_key       TEXT NOT NULL,
    collection      TEXT NOT NULL,
    token_id        TEXT NOT NULL,
    lender          TEXT NOT NULL,
    price_amount    BIGINT NOT NULL,
    currency        TEXT NOT NULL,
    min_rental_days BIGINT NOT NULL,
    max_rental_days BIGINT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    seq             INT NOT NULL,
    collection      TEXT NOT NULL,
    token_id        TEXT NOT NULL,
    lender          TEXT NOT NULL,
    renter          TEXT NOT NULL,
    start_date      TIMESTAMPTZ NOT NULL,
    end_date        TIMESTAMPTZ NOT NULL,
    earning_index   INT NOT NULL,
    fees_index      INT NOT NULL,
    fee_beneficiary TEXT NOT NULL,
    started         BOOLEAN NOT NULL DEFAULT FALSE,
    cancelled       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
    idx             INT NOT NULL,
    booking_id      TEXT NOT NULL DEFAULT '',
    amount          BIGINT NOT NULL,
    currency        TEXT NOT NULL,
    redeemable_date TIMESTAMPTZ NOT NULL,
    cancelled       BOOLEAN NOT NULL DEFAULT FALSE,
    redeemed        BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (NOT (cancelled AND redeemed))
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
    amount     BIGINT NOT NULL DEFAULT 0,
    currency   TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
