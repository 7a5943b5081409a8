package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/user/accountd/config"
	"github.com/user/accountd/db"
	"github.com/user/accountd/logging"
)

func migrateCommand() *cli.Command {
	configFlag := &cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file", EnvVars: []string{"CONFIG_PATH"}}

	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the database schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Flags: []cli.Flag{configFlag},
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(m *db.Migrator) error { return m.Up() })
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					configFlag,
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
				},
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(m *db.Migrator) error { return m.Down(c.Int("steps")) })
				},
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Flags: []cli.Flag{configFlag},
				Action: func(c *cli.Context) error {
					return withMigrator(c, func(m *db.Migrator) error {
						v, dirty, err := m.Version()
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "version %d (dirty: %t)\n", v, dirty)
						return nil
					})
				},
			},
		},
	}
}

func withMigrator(c *cli.Context, fn func(*db.Migrator) error) error {
	cfg, err := config.LoadMigrateConfig(c.String("config"))
	if err != nil {
		return err
	}
	m, err := db.NewMigrator(cfg.Database.URL, logging.New(cfg.Log))
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func migrateUp(dsn string, log logrus.FieldLogger) error {
	m, err := db.NewMigrator(dsn, log)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}
