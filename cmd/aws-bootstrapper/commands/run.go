package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/aws-bootstrapper/internal/bootstrap"
	"github.com/savaki/aws-bootstrapper/internal/di"
	"github.com/urfave/cli/v2"
)

// RunCommand returns the run command for executing the bootstrap workflow
func RunCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Run the multi-account bootstrap workflow",
		Description: `Run the full bootstrap workflow: resolve the hub account, deploy the hub
bootstrap stack into every hub region, aggregate the per-region outputs, then
deploy the account bootstrap stack into every account and region pair.

The command blocks until the workflow completes and prints the final workflow
document as JSON.

Examples:
  # Bootstrap two regions across the whole organization
  aws-bootstrapper run --env dev \
    --config-repository config-repo --config-file-path config.json --config-commit-id abc123 \
    --accounts-table dev-bootstrapper-accounts \
    --regions us-east-1 --regions us-west-2 \
    --accounts 111111111111 --accounts 222222222222 \
    --s3-bucket my-bootstrap-bucket \
    --operations-template-key templates/operations.yaml \
    --account-template-key templates/account.yaml

  # Read the whole input from a JSON file instead of flags
  aws-bootstrapper run --env dev --input-file input.json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Bootstrapper environment (dev, stg, or prd)",
				Required: true,
				EnvVars:  []string{"ENV"},
			},
			&cli.StringFlag{
				Name:    "input-file",
				Aliases: []string{"f"},
				Usage:   "Path to a JSON file containing the full workflow input ('-' for stdin)",
			},
			&cli.StringFlag{
				Name:    "config-repository",
				Usage:   "Name of the configuration repository",
				EnvVars: []string{"CONFIG_REPOSITORY_NAME"},
			},
			&cli.StringFlag{
				Name:    "config-file-path",
				Usage:   "Path of the configuration file within the repository",
				EnvVars: []string{"CONFIG_FILE_PATH"},
			},
			&cli.StringFlag{
				Name:    "config-commit-id",
				Usage:   "Commit ID of the configuration to bootstrap from",
				EnvVars: []string{"CONFIG_COMMIT_ID"},
			},
			&cli.StringFlag{
				Name:    "accounts-table",
				Usage:   "DynamoDB table holding account records",
				EnvVars: []string{"ACCOUNTS_TABLE_NAME"},
			},
			&cli.StringSliceFlag{
				Name:    "regions",
				Aliases: []string{"g"},
				Usage:   "Region to bootstrap (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:    "accounts",
				Aliases: []string{"a"},
				Usage:   "Account ID to bootstrap (repeatable)",
			},
			&cli.StringFlag{
				Name:    "accelerator-prefix",
				Usage:   "Prefix applied to bootstrap resources",
				EnvVars: []string{"ACCELERATOR_PREFIX"},
			},
			&cli.StringFlag{
				Name:    "assume-role-name",
				Usage:   "Role to assume in target accounts",
				EnvVars: []string{"ASSUME_ROLE_NAME"},
			},
			&cli.StringFlag{
				Name:    "stack-name",
				Usage:   "Name of the bootstrap CloudFormation stack",
				EnvVars: []string{"BOOTSTRAP_STACK_NAME"},
			},
			&cli.StringFlag{
				Name:    "s3-bucket",
				Usage:   "S3 bucket holding the bootstrap templates",
				EnvVars: []string{"S3_BUCKET_NAME"},
			},
			&cli.StringFlag{
				Name:    "operations-template-key",
				Usage:   "S3 key of the hub (operations) bootstrap template",
				EnvVars: []string{"OPERATIONS_BOOTSTRAP_OBJECT_KEY"},
			},
			&cli.StringFlag{
				Name:    "account-template-key",
				Usage:   "S3 key of the account bootstrap template",
				EnvVars: []string{"ACCOUNT_BOOTSTRAP_OBJECT_KEY"},
			},
			&cli.StringFlag{
				Name:  "function-payload",
				Usage: "Extra JSON object merged into the hub account lookup payload",
			},
			&cli.IntFlag{
				Name:    "wait-seconds",
				Aliases: []string{"w"},
				Usage:   "Polling interval for remote executions",
				EnvVars: []string{"WAIT_SECONDS"},
				Value:   bootstrap.DefaultWaitSeconds,
			},
		},
		Action: runAction,
	}
}

// runAction runs the whole workflow and prints the final document
func runAction(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)

	input, err := buildInput(c)
	if err != nil {
		return err
	}
	if err := input.Validate(); err != nil {
		return fmt.Errorf("invalid workflow input: %w", err)
	}

	container, err := di.New(c.String("env"),
		di.WithWaitInterval(time.Duration(input.WaitSeconds)*time.Second),
		di.WithAccountsTable(input.AccountsTableName),
	)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}

	orchestrator := di.MustGet[*bootstrap.Orchestrator](container)

	logger.Info().
		Int("accounts", len(input.Accounts)).
		Int("regions", len(input.Regions)).
		Msg("Starting bootstrap workflow")

	doc, err := orchestrator.Run(c.Context, *input)
	if err != nil {
		return fmt.Errorf("bootstrap workflow failed: %w", err)
	}

	logger.Info().Msg("Bootstrap workflow completed")

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// buildInput assembles the workflow input from the input file or flags
func buildInput(c *cli.Context) (*bootstrap.Input, error) {
	var input bootstrap.Input

	if path := c.String("input-file"); path != "" {
		data, err := readInputFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("failed to parse input file: %w", err)
		}
	}

	// Flags override file contents
	setIfPresent := func(flag string, target *string) {
		if v := c.String(flag); v != "" {
			*target = v
		}
	}
	setIfPresent("config-repository", &input.ConfigRepositoryName)
	setIfPresent("config-file-path", &input.ConfigFilePath)
	setIfPresent("config-commit-id", &input.ConfigCommitID)
	setIfPresent("accounts-table", &input.AccountsTableName)
	setIfPresent("accelerator-prefix", &input.AcceleratorPrefix)
	setIfPresent("assume-role-name", &input.AssumeRoleName)
	setIfPresent("stack-name", &input.BootstrapStackName)
	setIfPresent("s3-bucket", &input.S3BucketName)
	setIfPresent("operations-template-key", &input.OperationsBootstrapObjectKey)
	setIfPresent("account-template-key", &input.AccountBootstrapObjectKey)

	if v := c.StringSlice("regions"); len(v) > 0 {
		input.Regions = v
	}
	if v := c.StringSlice("accounts"); len(v) > 0 {
		input.Accounts = v
	}
	if v := c.String("function-payload"); v != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(v), &payload); err != nil {
			return nil, fmt.Errorf("failed to parse function payload: %w", err)
		}
		input.FunctionPayload = payload
	}
	if v := c.Int("wait-seconds"); v > 0 {
		input.WaitSeconds = v
	}

	return &input, nil
}

func readInputFile(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}
