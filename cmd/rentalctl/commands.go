package main

import (
	"encoding/json"
	"errors"
	"log/slog"

	cli "github.com/urfave/cli/v2"

	rental "github.com/xraph/rental"
	"github.com/xraph/rental/asset"
	"github.com/xraph/rental/earning"
	"github.com/xraph/rental/listing"
)

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "Apply pending store migrations",
	Action: withSession(func(c *cli.Context, s *session) error {
		if err := s.store.Migrate(c.Context); err != nil {
			return err
		}
		s.logger.Info("rentalctl: migrations applied", slog.String("driver", s.cfg.Database.Driver))
		return nil
	}),
}

var listingsCmd = &cli.Command{
	Name:    "listings",
	Aliases: []string{"ls"},
	Usage:   "Show listings, optionally filtered by lender or collection",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "lender", Usage: "only listings owned by this address"},
		&cli.StringFlag{Name: "collection", Usage: "only listings in this collection"},
	},
	Action: withSession(func(c *cli.Context, s *session) error {
		items, err := s.store.ListListings(c.Context, listing.ListOpts{
			Lender:     asset.Address(c.String("lender")).Normalize(),
			Collection: asset.Address(c.String("collection")).Normalize(),
		})
		if err != nil {
			return err
		}
		return printJSON(c, items)
	}),
}

var collectionsCmd = &cli.Command{
	Name:  "collections",
	Usage: "Show listed collections, or the listed tokens of one collection",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "collection", Usage: "list token ids of this collection"},
	},
	Action: withSession(func(c *cli.Context, s *session) error {
		if col := c.String("collection"); col != "" {
			tokens, err := s.engine.GetListedAssets(c.Context, asset.Address(col))
			if err != nil {
				return err
			}
			return printJSON(c, tokens)
		}
		cols, err := s.engine.GetListedCollections(c.Context)
		if err != nil {
			return err
		}
		return printJSON(c, cols)
	}),
}

var bookingsCmd = &cli.Command{
	Name:  "bookings",
	Usage: "Show the booking sequence of an asset or the bookings of a renter",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "asset", Usage: "asset as collection/tokenId"},
		&cli.StringFlag{Name: "renter", Usage: "renter address"},
	},
	Action: withSession(func(c *cli.Context, s *session) error {
		switch {
		case c.String("asset") != "":
			ref, err := asset.ParseRef(c.String("asset"))
			if err != nil {
				return err
			}
			items, err := s.engine.GetBookings(c.Context, ref)
			if err != nil {
				return err
			}
			return printJSON(c, items)
		case c.String("renter") != "":
			ctx := rental.WithCaller(c.Context, asset.Address(c.String("renter")))
			items, err := s.engine.GetMyBookings(ctx)
			if err != nil {
				return err
			}
			return printJSON(c, items)
		default:
			return errors.New("bookings: one of --asset or --renter is required")
		}
	}),
}

type earningsReport struct {
	Summary earning.Summary    `json:"summary"`
	Entries []*earning.Earning `json:"entries"`
}

var earningsCmd = &cli.Command{
	Name:  "earnings",
	Usage: "Show the earnings ledger of a beneficiary",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "beneficiary", Aliases: []string{"b"}, Required: true, Usage: "lender or operator address"},
	},
	Action: withSession(func(c *cli.Context, s *session) error {
		ctx := rental.WithCaller(c.Context, asset.Address(c.String("beneficiary")))
		entries, err := s.engine.GetMyEarnings(ctx)
		if err != nil {
			return err
		}
		summary, err := s.engine.GetMyEarningsSummary(ctx)
		if err != nil {
			return err
		}
		return printJSON(c, earningsReport{Summary: summary, Entries: entries})
	}),
}

var refundsCmd = &cli.Command{
	Name:  "refunds",
	Usage: "Show outstanding refund balances",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "renter", Usage: "show only this renter's balance"},
	},
	Action: withSession(func(c *cli.Context, s *session) error {
		if renter := c.String("renter"); renter != "" {
			balance, err := s.engine.GetMyRefund(rental.WithCaller(c.Context, asset.Address(renter)))
			if err != nil {
				return err
			}
			return printJSON(c, balance)
		}
		items, err := s.engine.GetRefunds(c.Context)
		if err != nil {
			return err
		}
		return printJSON(c, items)
	}),
}

func withSession(fn func(c *cli.Context, s *session) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		return fn(c, s)
	}
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
