package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/savaki/aws-bootstrapper/internal/deploy"
	"github.com/savaki/aws-bootstrapper/internal/di"
	"github.com/savaki/aws-bootstrapper/internal/models"
	"github.com/savaki/aws-bootstrapper/internal/policy"
	"github.com/savaki/aws-bootstrapper/internal/workflow"
	"github.com/urfave/cli/v2"
)

type Handler struct {
	deployer *deploy.StackDeployer
}

func NewHandler(waitSeconds int) (*Handler, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	validator, err := policy.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create policy validator: %w", err)
	}

	factory := deploy.NewClientFactory(cfg, sts.NewFromConfig(cfg))
	deployer := deploy.NewStackDeployer(
		"deploy-stack",
		factory,
		s3.NewFromConfig(cfg),
		deploy.WithValidator(validator),
		deploy.WithWaitInterval(time.Duration(waitSeconds)*time.Second),
	)

	return &Handler{deployer: deployer}, nil
}

func (h *Handler) HandleDeployStack(ctx context.Context, input *models.StackInput) (*models.DeploymentResult, error) {
	doc, err := workflow.Encode(input)
	if err != nil {
		return nil, err
	}

	output, err := h.deployer.Execute(ctx, doc)
	if err != nil {
		return nil, err
	}

	var result models.DeploymentResult
	if err := workflow.Decode(output, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func waitSecondsFromEnv() int {
	if v := os.Getenv("WAIT_SECONDS"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return seconds
		}
	}
	return 10
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "deploy-stack").Logger()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Lambda mode
		handler, err := NewHandler(waitSecondsFromEnv())
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create handler")
			os.Exit(1)
		}

		// Wrap handler to inject logger into context
		wrappedHandler := func(ctx context.Context, input *models.StackInput) (*models.DeploymentResult, error) {
			ctx = logger.WithContext(ctx)
			return handler.HandleDeployStack(ctx, input)
		}
		lambda.Start(wrappedHandler)
		return
	}

	// CLI mode
	app := &cli.App{
		Name:  "deploy-stack",
		Usage: "Deploy one bootstrap stack into a target account and region",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "account-id",
				Usage:    "Target AWS account ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "region",
				Usage:    "Target region",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "assume-role-name",
				Usage:    "Role to assume in the target account",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "stack-name",
				Usage:    "CloudFormation stack name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "template-bucket",
				Usage:    "S3 bucket containing the template",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "template-key",
				Usage:    "S3 key of the template",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "parameter",
				Usage: "Stack parameter as Key=Value (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "capability",
				Usage: "Stack capability (repeatable)",
				Value: cli.NewStringSlice("CAPABILITY_NAMED_IAM"),
			},
			&cli.IntFlag{
				Name:    "wait-seconds",
				Usage:   "Stack status polling interval",
				EnvVars: []string{"WAIT_SECONDS"},
				Value:   10,
			},
		},
		Action: func(c *cli.Context) error {
			handler, err := NewHandler(c.Int("wait-seconds"))
			if err != nil {
				return err
			}

			parameters := map[string]string{}
			for _, p := range c.StringSlice("parameter") {
				key, value, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid parameter %q, expected Key=Value", p)
				}
				parameters[key] = value
			}

			input := &models.StackInput{
				AccountID:      c.String("account-id"),
				Region:         c.String("region"),
				AssumeRoleName: c.String("assume-role-name"),
				StackName:      c.String("stack-name"),
				StackTemplateLocation: models.TemplateLocation{
					Bucket: c.String("template-bucket"),
					Key:    c.String("template-key"),
				},
				StackParameters:   parameters,
				StackCapabilities: c.StringSlice("capability"),
			}

			ctx := logger.WithContext(context.Background())
			result, err := handler.HandleDeployStack(ctx, input)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
