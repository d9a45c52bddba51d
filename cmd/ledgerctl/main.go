package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ledgerctl",
		Usage: "card repayment ledger maintenance",
		Commands: []*cli.Command{
			migrateCommand(),
			indexesCommand(),
			reconcileCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
