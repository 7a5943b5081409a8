package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var version = "dev"

// @title accountd API
// @version 1.0
// @description User accounts: registration, login, profile, avatar and access history.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	app := &cli.App{
		Name:    "accountd",
		Usage:   "user account service and client",
		Version: version,
		Before: func(c *cli.Context) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				logrus.WithError(err).Warn("failed to load .env file")
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			clientCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
