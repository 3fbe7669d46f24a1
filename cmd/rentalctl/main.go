// Command rentalctl migrates and inspects a rental marketplace ledger.
package main

import (
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
)

func main() {
	commands := cli.Commands{
		migrateCmd,
		listingsCmd,
		collectionsCmd,
		bookingsCmd,
		earningsCmd,
		refundsCmd,
	}

	app := &cli.App{
		Name:  "rentalctl",
		Usage: "migrate and inspect a rental marketplace ledger",
		Description: "For help on any individual command run <rentalctl COMMAND -h>\n" +
			"Settings come from the config file, then RENTAL_* environment variables, then flags.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"RENTAL_CONFIG"},
				Value:   "rental.yaml",
				Usage:   "path to the YAML config file",
			},
			&cli.StringFlag{Name: "driver", Usage: "database driver: pg, sqlite or mongo"},
			&cli.StringFlag{Name: "dsn", Usage: "database connection string"},
		},
		Commands: commands,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "rentalctl: %v\n", err)
		os.Exit(1)
	}
}
