package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/savaki/aws-bootstrapper/internal/di"
	"github.com/savaki/aws-bootstrapper/internal/tasks"
	"github.com/savaki/aws-bootstrapper/internal/workflow"
	"github.com/urfave/cli/v2"
)

type Handler struct {
	task *tasks.BootstrapOutputHandler
}

func NewHandler() *Handler {
	return &Handler{
		task: tasks.NewBootstrapOutputHandler(),
	}
}

func (h *Handler) HandleGetBootstrapOutput(ctx context.Context, payload workflow.Document) (workflow.Document, error) {
	return h.task.Handle(ctx, payload)
}

func lambdaAction(c *cli.Context) error {
	logger := di.ProvideLogger().With().Str("lambda", "get-bootstrap-output").Logger()
	handler := NewHandler()

	wrappedHandler := func(ctx context.Context, payload workflow.Document) (workflow.Document, error) {
		ctx = logger.WithContext(ctx)
		return handler.HandleGetBootstrapOutput(ctx, payload)
	}
	lambda.Start(wrappedHandler)
	return nil
}

func runAction(c *cli.Context) error {
	logger := di.ProvideLogger().With().Str("lambda", "get-bootstrap-output").Logger()
	handler := NewHandler()

	// CLI mode for testing: payload is read from stdin
	var payload workflow.Document
	if err := json.NewDecoder(os.Stdin).Decode(&payload); err != nil {
		return fmt.Errorf("failed to parse payload from stdin: %w", err)
	}

	ctx := logger.WithContext(context.Background())
	result, err := handler.HandleGetBootstrapOutput(ctx, payload)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func main() {
	app := &cli.App{
		Name:           "get-bootstrap-output",
		Usage:          "Aggregate hub bootstrap outputs for account fan-out",
		DefaultCommand: "lambda",
		Commands: []*cli.Command{
			{
				Name:   "lambda",
				Usage:  "Start Lambda handler",
				Action: lambdaAction,
			},
			{
				Name:   "run",
				Usage:  "Run locally for testing (payload on stdin)",
				Action: runAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
