package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/card-repayment-ledger/internal/config"
	"github.com/card-repayment-ledger/internal/data/mongo"
	"github.com/card-repayment-ledger/internal/logger"
	"github.com/card-repayment-ledger/internal/platform/lock"
	"github.com/card-repayment-ledger/internal/platform/persistence"
	"github.com/card-repayment-ledger/internal/reconciler/service"
	"github.com/card-repayment-ledger/internal/reconciler/sweeper"
)

const (
	fConfig = "config"
	fDown   = "down"
	fOwner  = "owner"
	fCard   = "card"
	fAll    = "all"
)

var configFlag = &cli.StringFlag{
	Name:    fConfig,
	Value:   "ledgerctl",
	Usage:   "base name of the .env file to load",
	EnvVars: []string{"LEDGERCTL_CONFIG"},
}

func load(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(c.String(fConfig))
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewLogger(cfg), nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Description: "apply pending catalog migrations, or roll back with --down",
		Flags: []cli.Flag{
			configFlag,
			&cli.IntFlag{Name: fDown, Usage: "number of migrations to roll back"},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := load(c)
			if err != nil {
				return err
			}
			url, dir := cfg.Postgres.URL, cfg.Postgres.MigrationsPath
			if steps := c.Int(fDown); steps > 0 {
				err = persistence.RollbackMigrations(url, dir, steps)
			} else {
				err = persistence.RunMigrations(url, dir)
			}
			if err != nil {
				return err
			}

			state, err := persistence.CurrentMigration(url, dir)
			if err != nil {
				return err
			}
			log.Info("Catalog schema migrated", "path", dir, "rolled_back", c.Int(fDown),
				"version", state.Version, "dirty", state.Dirty, "empty", state.Empty)
			return printJSON(c, state)
		},
	}
}

func indexesCommand() *cli.Command {
	return &cli.Command{
		Name:        "indexes",
		Description: "create the record store indexes",
		Flags:       []cli.Flag{configFlag},
		Action: func(c *cli.Context) error {
			cfg, log, err := load(c)
			if err != nil {
				return err
			}
			db, err := persistence.NewMongoDB(c.Context, log, &cfg.MongoDB)
			if err != nil {
				return err
			}
			defer db.Close(c.Context)

			return mongo.NewRecordRepository(log, db.Database()).EnsureIndexes(c.Context)
		},
	}
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:        "reconcile",
		Description: "repair allocation drift on one card (--owner and --card) or on every card (--all)",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{Name: fOwner, Aliases: []string{"o"}},
			&cli.StringFlag{Name: fCard, Aliases: []string{"c"}},
			&cli.BoolFlag{Name: fAll},
		},
		Action: reconcileAction,
	}
}

func reconcileAction(c *cli.Context) error {
	owner, card, all := c.String(fOwner), c.String(fCard), c.Bool(fAll)
	if all == (owner != "" || card != "") {
		return errors.New("pass either --all or both --owner and --card")
	}
	if !all && (owner == "" || card == "") {
		return errors.New("--owner and --card must be given together")
	}

	cfg, log, err := load(c)
	if err != nil {
		return err
	}
	db, err := persistence.NewMongoDB(c.Context, log, &cfg.MongoDB)
	if err != nil {
		return err
	}
	defer db.Close(c.Context)

	redisClient, err := persistence.NewRedisClient(c.Context, log, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	repo := mongo.NewRecordRepository(log, db.Database())
	reconciler := service.NewReconciler(repo, lock.FromConfig(redisClient, cfg.Redis), nil, log)

	if all {
		summary, err := sweeper.NewSweeper(&cfg.Reconciler, repo, reconciler, log).
			WithTrigger(service.TriggerCLI).
			Sweep(c.Context)
		if err != nil {
			return err
		}
		if err := printJSON(c, summary); err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d cards failed to reconcile", summary.Failed, summary.Cards)
		}
		return nil
	}

	report, err := reconciler.ReconcileCard(c.Context, owner, card, service.TriggerCLI)
	if err != nil {
		return err
	}
	return printJSON(c, report)
}

// printJSON writes v indented to the app's writer
func printJSON(c *cli.Context, v any) error {
	out := json.NewEncoder(c.App.Writer)
	out.SetIndent("", "  ")
	return out.Encode(v)
}
