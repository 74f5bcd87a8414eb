package tasks

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/savaki/aws-bootstrapper/internal/models"
	"github.com/savaki/aws-bootstrapper/internal/workflow"
	"github.com/savaki/gox/slicex"
)

// Stack output keys published by the bootstrap templates.
const (
	OutputBucketName   = "BucketName"
	OutputBucketDomain = "BucketDomain"
)

// AggregateBootstrapOutput merges the raw per-region deployment results and
// the caller-supplied account list into a BootstrapOutput. It is a pure
// function of its inputs: the same raw results and account list always
// produce the same output. The operations account is excluded from the
// account list since its regions were already bootstrapped.
func AggregateBootstrapOutput(accounts []string, operationsAccountID string, results []models.DeploymentResult) models.BootstrapOutput {
	seen := make(map[string]bool)
	var unique []string
	for _, account := range accounts {
		if account == "" || account == operationsAccountID || seen[account] {
			continue
		}
		seen[account] = true
		unique = append(unique, account)
	}
	sort.Strings(unique)

	outputs := slicex.Map(results, func(result models.DeploymentResult) models.RegionOutput {
		return models.RegionOutput{
			Region:       result.Region,
			BucketName:   result.Outputs[OutputBucketName],
			BucketDomain: result.Outputs[OutputBucketDomain],
		}
	})
	sort.Slice(outputs, func(i, j int) bool {
		return outputs[i].Region < outputs[j].Region
	})

	return models.BootstrapOutput{
		Accounts: unique,
		Outputs:  outputs,
	}
}

// BootstrapOutputHandler implements the getBootstrapOutput operation.
type BootstrapOutputHandler struct{}

// NewBootstrapOutputHandler creates a BootstrapOutputHandler.
func NewBootstrapOutputHandler() *BootstrapOutputHandler {
	return &BootstrapOutputHandler{}
}

// Handle aggregates the payload's raw per-region outputs and account list.
func (h *BootstrapOutputHandler) Handle(ctx context.Context, payload workflow.Document) (workflow.Document, error) {
	logger := zerolog.Ctx(ctx)

	var results []models.DeploymentResult
	if err := workflow.Decode(payload["outputs"], &results); err != nil {
		return nil, fmt.Errorf("failed to parse raw outputs: %w", err)
	}

	accounts := payload.Strings("accounts")
	operationsAccountID := payload.String("operationsAccountId")

	output := AggregateBootstrapOutput(accounts, operationsAccountID, results)

	logger.Info().
		Int("raw_outputs", len(results)).
		Int("accounts", len(output.Accounts)).
		Int("outputs", len(output.Outputs)).
		Msg("Bootstrap output aggregated")

	return workflow.Encode(output)
}

// NewRegistry builds the in-process task registry the orchestrator consumes.
func NewRegistry(accountInfo *AccountInfoHandler, bootstrapOutput *BootstrapOutputHandler) *workflow.Registry {
	registry := workflow.NewRegistry()
	registry.Register("getAccountInfo", accountInfo.Handle)
	registry.Register("getBootstrapOutput", bootstrapOutput.Handle)
	return registry
}
