package main

import (
	"context"
	"fmt"
	"os"

	"acctlog/internal/cli"
	"acctlog/internal/log"
	"acctlog/internal/store/sqlite"

	ucli "github.com/urfave/cli/v3"
)

func cmdMigrate() *ucli.Command {
	return &ucli.Command{
		Name:  "migrate",
		Usage: "SQLite schema migration commands",
		Flags: []ucli.Flag{
			&ucli.StringFlag{
				Name:    "db-path",
				Value:   "./data/acctlog.db",
				Sources: ucli.EnvVars("SQLITE_DB_PATH"),
				Usage:   "path of the SQLite database",
			},
		},
		Before: func(ctx context.Context, cmd *ucli.Command) (context.Context, error) {
			cli.LoadEnvFile()
			logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
			return log.NewContext(ctx, logger.WithComponent(log.ComponentStore)), nil
		},
		Commands: []*ucli.Command{
			{
				Name:   "up",
				Usage:  "Run all pending migrations",
				Action: migrateUp,
			},
			{
				Name:   "down",
				Usage:  "Roll back every migration",
				Action: migrateDown,
			},
			{
				Name:   "version",
				Usage:  "Print the current schema version",
				Action: migrateVersion,
			},
		},
	}
}

func migrateUp(ctx context.Context, cmd *ucli.Command) error {
	path := cmd.String("db-path")
	if err := sqlite.RunMigrations(path); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Migrations applied", log.FieldOperation, log.OpMigrate, "db_path", path)
	return nil
}

func migrateDown(ctx context.Context, cmd *ucli.Command) error {
	path := cmd.String("db-path")
	if err := sqlite.RollbackMigrations(path); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Migrations rolled back", log.FieldOperation, log.OpMigrate, "db_path", path)
	return nil
}

func migrateVersion(ctx context.Context, cmd *ucli.Command) error {
	version, dirty, err := sqlite.MigrationVersion(cmd.String("db-path"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "version %d (dirty: %v)\n", version, dirty)
	return nil
}
