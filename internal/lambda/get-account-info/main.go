package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/savaki/aws-bootstrapper/internal/dao/accountdao"
	"github.com/savaki/aws-bootstrapper/internal/di"
	"github.com/savaki/aws-bootstrapper/internal/tasks"
	"github.com/savaki/aws-bootstrapper/internal/workflow"
	"github.com/urfave/cli/v2"
)

type Handler struct {
	task *tasks.AccountInfoHandler
}

func NewHandler(tableName string) (*Handler, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	dao := accountdao.New(dynamodb.NewFromConfig(cfg), tableName)
	orgClient := organizations.NewFromConfig(cfg)

	return &Handler{
		task: tasks.NewAccountInfoHandler(dao, orgClient),
	}, nil
}

func (h *Handler) HandleGetAccountInfo(ctx context.Context, payload workflow.Document) (workflow.Document, error) {
	return h.task.Handle(ctx, payload)
}

func lambdaAction(c *cli.Context) error {
	logger := di.ProvideLogger().With().Str("lambda", "get-account-info").Logger()
	tableName := accountdao.TableName(c.String("env"))
	handler, err := NewHandler(tableName)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	wrappedHandler := func(ctx context.Context, payload workflow.Document) (workflow.Document, error) {
		ctx = logger.WithContext(ctx)
		return handler.HandleGetAccountInfo(ctx, payload)
	}
	lambda.Start(wrappedHandler)
	return nil
}

func runAction(c *cli.Context) error {
	logger := di.ProvideLogger().With().Str("lambda", "get-account-info").Logger()

	tableName := accountdao.TableName(c.String("env"))
	handler, err := NewHandler(tableName)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	// CLI mode for testing
	payload := workflow.Document{
		"accountKey": c.String("account-key"),
	}

	ctx := logger.WithContext(context.Background())
	result, err := handler.HandleGetAccountInfo(ctx, payload)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func main() {
	app := &cli.App{
		Name:           "get-account-info",
		Usage:          "Resolve the hub account from the accounts table",
		DefaultCommand: "lambda",
		Commands: []*cli.Command{
			{
				Name:   "lambda",
				Usage:  "Start Lambda handler",
				Action: lambdaAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "env",
						Usage:   "Environment",
						EnvVars: []string{"ENV"},
						Value:   "dev",
					},
				},
			},
			{
				Name:  "run",
				Usage: "Run locally for testing",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "env",
						Usage:   "Environment",
						EnvVars: []string{"ENV"},
						Value:   "dev",
					},
					&cli.StringFlag{
						Name:    "account-key",
						Usage:   "Account key to resolve",
						EnvVars: []string{"ACCOUNT_KEY"},
						Value:   accountdao.OperationsKey,
					},
				},
				Action: runAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
