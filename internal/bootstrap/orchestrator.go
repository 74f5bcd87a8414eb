// Package bootstrap implements the fixed four-phase orchestration that
// stands up the baseline bootstrap stack across a fleet of accounts and
// regions: resolve the hub account, bootstrap every hub region, aggregate
// the per-region outputs, then fan out over every account and region.
package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/aws-bootstrapper/internal/models"
	"github.com/savaki/aws-bootstrapper/internal/workflow"
)

// Phase names, in execution order. Phases execute strictly in sequence; a
// phase never starts before the previous fan-out fully drains.
const (
	PhaseResolveHubAccount        = "ResolveHubAccount"
	PhaseBootstrapHubRegions      = "BootstrapHubRegions"
	PhaseAggregateBootstrapOutput = "AggregateBootstrapOutput"
	PhaseBootstrapEachAccount     = "BootstrapEachAccount"
)

// Operations required from the task invoker.
const (
	OpGetAccountInfo     = "getAccountInfo"
	OpGetBootstrapOutput = "getBootstrapOutput"
)

// Names of the two reusable stack deployment sub-workflows.
const (
	WorkflowDeployHubStack     = "deploy-hub-stack"
	WorkflowDeployAccountStack = "deploy-account-stack"
)

// Concurrency caps per fan-out level. Caps are independent per level; the
// account and region caps multiply in the worst case.
const (
	HubRegionConcurrency = 20
	AccountConcurrency   = 10
	RegionConcurrency    = 16
)

// CapabilityNamedIAM is required by the bootstrap templates, which create
// named IAM roles.
const CapabilityNamedIAM = "CAPABILITY_NAMED_IAM"

// Orchestrator composes the task invoker, sub-workflow runner, and the two
// reusable stack deployment workflows into the bootstrap pipeline.
type Orchestrator struct {
	invoker      workflow.TaskInvoker
	runner       workflow.Runner
	hubStack     workflow.Definition
	accountStack workflow.Definition
}

// New creates an Orchestrator. hubStack and accountStack are the "deploy hub
// stack" and "deploy account stack" sub-workflow definitions.
func New(invoker workflow.TaskInvoker, runner workflow.Runner, hubStack, accountStack workflow.Definition) *Orchestrator {
	return &Orchestrator{
		invoker:      invoker,
		runner:       runner,
		hubStack:     hubStack,
		accountStack: accountStack,
	}
}

// Run executes the orchestration to completion and returns the final
// document. The first unrecovered failure of any phase terminates the run;
// in-flight sibling deployments are allowed to finish but their results are
// discarded.
func (o *Orchestrator) Run(ctx context.Context, input Input) (doc workflow.Document, err error) {
	logger := zerolog.Ctx(ctx)

	if err := input.Validate(); err != nil {
		return nil, err
	}

	doc, err = input.Document()
	if err != nil {
		return nil, err
	}

	defer func(begin time.Time) {
		logger.Info().
			Interface("error", err).
			Int("regions", len(input.Regions)).
			Int("accounts", len(input.Accounts)).
			Dur("duration", time.Since(begin)).
			Msg("Bootstrap orchestration completed")
	}(time.Now())

	// Phase 1: ResolveHubAccount
	operations, err := o.resolveHubAccount(ctx, input)
	if err != nil {
		return nil, &LookupError{Err: err}
	}
	doc = doc.Merge(workflow.Document{"operationsAccount": operations})

	logger.Info().
		Str("phase", PhaseResolveHubAccount).
		Str("account_id", operations.ID).
		Str("ou", operations.OrganizationalUnit).
		Msg("Hub account resolved")

	// Phase 2: BootstrapHubRegions
	raw, err := o.bootstrapHubRegions(ctx, input, operations)
	if err != nil {
		return nil, err
	}
	doc = doc.Merge(workflow.Document{"bootstrap": raw})

	logger.Info().
		Str("phase", PhaseBootstrapHubRegions).
		Int("region_count", len(raw)).
		Msg("Hub regions bootstrapped")

	// Phase 3: AggregateBootstrapOutput. The aggregated document replaces
	// the raw per-region array from phase 2.
	aggregated, err := o.aggregateBootstrapOutput(ctx, input, operations, raw)
	if err != nil {
		return nil, &AggregationError{Err: err}
	}
	doc = doc.Merge(workflow.Document{"bootstrap": aggregated})

	var output models.BootstrapOutput
	if err := workflow.Decode(aggregated, &output); err != nil {
		return nil, &AggregationError{Err: err}
	}

	logger.Info().
		Str("phase", PhaseAggregateBootstrapOutput).
		Int("account_count", len(output.Accounts)).
		Int("output_count", len(output.Outputs)).
		Msg("Bootstrap output aggregated")

	// Phase 4: BootstrapEachAccount. Side effects only; results discarded.
	if err := o.bootstrapEachAccount(ctx, input, output); err != nil {
		return nil, err
	}

	logger.Info().
		Str("phase", PhaseBootstrapEachAccount).
		Int("deployments", len(output.Accounts)*len(output.Outputs)).
		Msg("Account bootstrap completed")

	return doc, nil
}

func (o *Orchestrator) resolveHubAccount(ctx context.Context, input Input) (models.AccountInfo, error) {
	payload := workflow.Document{
		"configRepositoryName": input.ConfigRepositoryName,
		"configFilePath":       input.ConfigFilePath,
		"configCommitId":       input.ConfigCommitID,
		"accountsTableName":    input.AccountsTableName,
	}
	if input.FunctionPayload != nil {
		payload = payload.Merge(workflow.Document(input.FunctionPayload))
	}

	result, err := o.invoker.Invoke(ctx, OpGetAccountInfo, payload)
	if err != nil {
		return models.AccountInfo{}, err
	}

	var info models.AccountInfo
	if err := workflow.Decode(result, &info); err != nil {
		return models.AccountInfo{}, err
	}
	return info, nil
}

func (o *Orchestrator) bootstrapHubRegions(ctx context.Context, input Input, operations models.AccountInfo) ([]workflow.Document, error) {
	outputs, err := workflow.MapExecute(ctx, input.Regions, HubRegionConcurrency, true,
		func(ctx context.Context, region string) (workflow.Document, error) {
			spec := models.StackInput{
				AccountID:         operations.ID,
				OrganizationID:    operations.OrganizationalUnit,
				Region:            region,
				AssumeRoleName:    input.AssumeRoleName,
				AcceleratorPrefix: input.AcceleratorPrefix,
				StackName:         input.BootstrapStackName,
				StackParameters: map[string]string{
					"AcceleratorPrefix": input.AcceleratorPrefix,
					"OrganizationId":    operations.OrganizationalUnit,
				},
				StackTemplateLocation: models.TemplateLocation{
					Bucket: input.S3BucketName,
					Key:    input.OperationsBootstrapObjectKey,
				},
				StackCapabilities: []string{CapabilityNamedIAM},
			}

			item, err := workflow.Encode(spec)
			if err != nil {
				return nil, err
			}

			result, err := o.runner.RunSync(ctx, o.hubStack, item)
			if err != nil {
				return nil, &DeploymentError{
					Phase:     PhaseBootstrapHubRegions,
					AccountID: operations.ID,
					Region:    region,
					Err:       err,
				}
			}
			return result, nil
		})
	if err != nil {
		return nil, deploymentFailure(PhaseBootstrapHubRegions, err)
	}
	return outputs, nil
}

func (o *Orchestrator) aggregateBootstrapOutput(ctx context.Context, input Input, operations models.AccountInfo, raw []workflow.Document) (workflow.Document, error) {
	payload := workflow.Document{
		"accounts":            input.Accounts,
		"operationsAccountId": operations.ID,
		"outputs":             raw,
	}
	if input.FunctionPayload != nil {
		payload = payload.Merge(workflow.Document(input.FunctionPayload))
	}

	return o.invoker.Invoke(ctx, OpGetBootstrapOutput, payload)
}

func (o *Orchestrator) bootstrapEachAccount(ctx context.Context, input Input, output models.BootstrapOutput) error {
	_, err := workflow.MapExecute(ctx, output.Accounts, AccountConcurrency, false,
		func(ctx context.Context, accountID string) (struct{}, error) {
			_, err := workflow.MapExecute(ctx, output.Outputs, RegionConcurrency, false,
				func(ctx context.Context, out models.RegionOutput) (struct{}, error) {
					return struct{}{}, o.bootstrapAccountRegion(ctx, input, accountID, out)
				})
			return struct{}{}, err
		})
	if err != nil {
		return deploymentFailure(PhaseBootstrapEachAccount, err)
	}
	return nil
}

func (o *Orchestrator) bootstrapAccountRegion(ctx context.Context, input Input, accountID string, out models.RegionOutput) error {
	spec := models.StackInput{
		AccountID:         accountID,
		Region:            out.Region,
		AssumeRoleName:    input.AssumeRoleName,
		AcceleratorPrefix: input.AcceleratorPrefix,
		StackName:         input.BootstrapStackName,
		StackParameters: map[string]string{
			"AcceleratorPrefix": input.AcceleratorPrefix,
			"BucketName":        out.BucketName,
			"BucketDomain":      out.BucketDomain,
		},
		StackTemplateLocation: models.TemplateLocation{
			Bucket: input.S3BucketName,
			Key:    input.AccountBootstrapObjectKey,
		},
		StackCapabilities: []string{CapabilityNamedIAM},
	}

	item, err := workflow.Encode(spec)
	if err != nil {
		return err
	}

	if _, err := o.runner.RunSync(ctx, o.accountStack, item); err != nil {
		return &DeploymentError{
			Phase:     PhaseBootstrapEachAccount,
			AccountID: accountID,
			Region:    out.Region,
			Err:       err,
		}
	}
	return nil
}

// deploymentFailure surfaces the originating DeploymentError from a nested
// fan-out failure, so callers see the account/region that failed rather than
// the fan-out bookkeeping around it. Budget errors pass through untouched.
func deploymentFailure(phase string, err error) error {
	var depErr *DeploymentError
	if errors.As(err, &depErr) {
		return depErr
	}
	if errors.Is(err, workflow.ErrConcurrencyBudget) {
		return err
	}
	return &DeploymentError{Phase: phase, Err: err}
}
