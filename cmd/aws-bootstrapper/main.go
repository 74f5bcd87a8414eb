package main

import (
	"context"
	"os"

	"github.com/savaki/aws-bootstrapper/cmd/aws-bootstrapper/commands"
	"github.com/savaki/aws-bootstrapper/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "aws-bootstrapper",
		Usage: "Multi-account AWS bootstrap automation toolkit",
		Description: `A unified CLI tool for bootstrapping AWS accounts across an organization.

This tool provides commands for:
  - Running the full bootstrap workflow across hub regions and member accounts
  - Managing account records used for hub account resolution`,
		Commands: []*cli.Command{
			commands.RunCommand(&logger),
			commands.AccountsCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
