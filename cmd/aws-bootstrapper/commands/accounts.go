package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/savaki/aws-bootstrapper/internal/dao/accountdao"
	"github.com/urfave/cli/v2"
)

// AccountsCommand returns the accounts command for managing account records
func AccountsCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "accounts",
		Aliases: []string{"a"},
		Usage:   "Manage account records used for hub account resolution",
		Description: `Manage the account records the workflow looks up to resolve the hub
(operations) account and its organizational unit.

Examples:
  # Register the operations account
  aws-bootstrapper accounts set --env dev --key operations \
    --account-id 111111111111 --name Operations --email ops@example.com

  # Show a record
  aws-bootstrapper accounts get --env dev --key operations

  # Remove a record
  aws-bootstrapper accounts delete --env dev --key operations`,
		Subcommands: []*cli.Command{
			{
				Name:    "set",
				Aliases: []string{"s"},
				Usage:   "Create or overwrite an account record",
				Flags: []cli.Flag{
					envFlag(),
					keyFlag(),
					&cli.StringFlag{
						Name:     "account-id",
						Aliases:  []string{"a"},
						Usage:    "AWS account ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Display name for the account",
					},
					&cli.StringFlag{
						Name:    "email",
						Aliases: []string{"m"},
						Usage:   "Root email for the account",
					},
					&cli.StringFlag{
						Name:    "organizational-unit",
						Aliases: []string{"u"},
						Usage:   "Organizational unit (resolved from AWS Organizations when omitted)",
					},
				},
				Action: setAccountAction,
			},
			{
				Name:    "get",
				Aliases: []string{"g", "show"},
				Usage:   "Show an account record",
				Flags: []cli.Flag{
					envFlag(),
					keyFlag(),
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: getAccountAction,
			},
			{
				Name:    "delete",
				Aliases: []string{"del", "rm"},
				Usage:   "Delete an account record",
				Flags: []cli.Flag{
					envFlag(),
					keyFlag(),
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation prompt",
					},
				},
				Action: deleteAccountAction,
			},
		},
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "env",
		Aliases:  []string{"e"},
		Usage:    "Bootstrapper environment (dev, stg, or prd) - determines which DynamoDB table to use",
		Required: true,
		EnvVars:  []string{"ENV"},
	}
}

func keyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "key",
		Aliases: []string{"k"},
		Usage:   "Logical account key",
		Value:   accountdao.OperationsKey,
	}
}

// createAccountDAO creates an accountdao.DAO instance
func createAccountDAO(env string) (*accountdao.DAO, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	dbClient := dynamodb.NewFromConfig(cfg)
	tableName := accountdao.TableName(env)
	return accountdao.New(dbClient, tableName), nil
}

func setAccountAction(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)

	dao, err := createAccountDAO(c.String("env"))
	if err != nil {
		return err
	}

	record, err := dao.Create(c.Context, accountdao.CreateInput{
		Key:                c.String("key"),
		AccountID:          c.String("account-id"),
		Name:               c.String("name"),
		Email:              c.String("email"),
		OrganizationalUnit: c.String("organizational-unit"),
	})
	if err != nil {
		return fmt.Errorf("failed to save account record: %w", err)
	}

	logger.Info().
		Str("key", record.PK.String()).
		Str("account_id", record.AccountID).
		Msg("Account record saved")

	displayAccount(record)
	return nil
}

func getAccountAction(c *cli.Context) error {
	dao, err := createAccountDAO(c.String("env"))
	if err != nil {
		return err
	}

	key := c.String("key")
	record, err := dao.Find(c.Context, key)
	if err != nil {
		return fmt.Errorf("failed to get account record: %w", err)
	}
	if record == nil {
		fmt.Printf("No account record found for key: %s\n", key)
		return nil
	}

	if c.Bool("json") {
		jsonBytes, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		fmt.Println(string(jsonBytes))
		return nil
	}

	displayAccount(record)
	return nil
}

func deleteAccountAction(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)

	dao, err := createAccountDAO(c.String("env"))
	if err != nil {
		return err
	}

	key := c.String("key")
	record, err := dao.Find(c.Context, key)
	if err != nil {
		return fmt.Errorf("failed to check account record: %w", err)
	}
	if record == nil {
		fmt.Printf("No account record found for key: %s\n", key)
		return nil
	}

	if !c.Bool("force") {
		fmt.Printf("About to delete account record %s (account %s)\n", key, record.AccountID)
		fmt.Print("\nAre you sure? (yes/no): ")
		var response string
		fmt.Scanln(&response)
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "yes" && response != "y" {
			fmt.Println("Deletion cancelled")
			return nil
		}
	}

	if err := dao.Delete(c.Context, key); err != nil {
		return fmt.Errorf("failed to delete account record: %w", err)
	}

	logger.Info().
		Str("key", key).
		Msg("Account record deleted")

	fmt.Println("\n✓ Account record deleted")
	return nil
}

// displayAccount prints the account record in a readable format
func displayAccount(record *accountdao.Record) {
	fmt.Println()
	fmt.Printf("Account record: %s\n", record.PK)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("  Account ID:          %s\n", record.AccountID)
	if record.Name != "" {
		fmt.Printf("  Name:                %s\n", record.Name)
	}
	if record.Email != "" {
		fmt.Printf("  Email:               %s\n", record.Email)
	}
	if record.OrganizationalUnit != "" {
		fmt.Printf("  Organizational unit: %s\n", record.OrganizationalUnit)
	}
	fmt.Println()
}
