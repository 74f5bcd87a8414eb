package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/savaki/aws-bootstrapper/internal/bootstrap"
	"github.com/savaki/aws-bootstrapper/internal/dao/accountdao"
	"github.com/savaki/aws-bootstrapper/internal/deploy"
	"github.com/savaki/aws-bootstrapper/internal/policy"
	"github.com/savaki/aws-bootstrapper/internal/services"
	"github.com/savaki/aws-bootstrapper/internal/sfnrunner"
	"github.com/savaki/aws-bootstrapper/internal/tasks"
	"github.com/savaki/aws-bootstrapper/internal/workflow"
)

func ProvideAWSConfig(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx)
}

func ProvideDynamoDB(config aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(config)
}

func ProvideS3Client(config aws.Config) *s3.Client {
	return s3.NewFromConfig(config)
}

func ProvideSTSClient(config aws.Config) *sts.Client {
	return sts.NewFromConfig(config)
}

func ProvideSFNClient(config aws.Config) *sfn.Client {
	return sfn.NewFromConfig(config)
}

func ProvideOrganizationsClient(config aws.Config) *organizations.Client {
	return organizations.NewFromConfig(config)
}

func ProvideAccountDAO(client *dynamodb.Client, config *services.Config, table AccountsTable) *accountdao.DAO {
	return accountdao.New(client, resolveAccountsTable(table, config))
}

func resolveAccountsTable(table AccountsTable, config *services.Config) string {
	if table != "" {
		return string(table)
	}
	return config.AccountsTableName
}

func ProvideTaskRegistry(dao *accountdao.DAO, orgClient *organizations.Client) *workflow.Registry {
	return tasks.NewRegistry(
		tasks.NewAccountInfoHandler(dao, orgClient),
		tasks.NewBootstrapOutputHandler(),
	)
}

func ProvideValidator() (*policy.Validator, error) {
	return policy.NewValidator()
}

func ProvideClientFactory(config aws.Config, stsClient *sts.Client) deploy.ClientFactory {
	return deploy.NewClientFactory(config, stsClient)
}

// StackDefinitions bundles the two reusable deployment sub-workflows.
type StackDefinitions struct {
	Hub     workflow.Definition
	Account workflow.Definition
}

func ProvideStackDefinitions(factory deploy.ClientFactory, s3Client *s3.Client, validator *policy.Validator, waitInterval WaitInterval) StackDefinitions {
	opts := []deploy.Option{
		deploy.WithValidator(validator),
	}
	if waitInterval > 0 {
		opts = append(opts, deploy.WithWaitInterval(time.Duration(waitInterval)))
	}

	return StackDefinitions{
		Hub:     deploy.NewStackDeployer(bootstrap.WorkflowDeployHubStack, factory, s3Client, opts...),
		Account: deploy.NewStackDeployer(bootstrap.WorkflowDeployAccountStack, factory, s3Client, opts...),
	}
}

func ProvideRunner(config *services.Config, mode RunnerMode, sfnClient *sfn.Client, waitInterval WaitInterval) (workflow.Runner, error) {
	runnerMode := string(mode)
	if runnerMode == "" {
		runnerMode = config.RunnerMode
	}

	switch runnerMode {
	case services.RunnerModeSFN:
		if config.HubStateMachineArn == "" || config.AccountStateMachineArn == "" {
			return nil, fmt.Errorf("hub and account state machine ARNs are required in sfn runner mode")
		}
		arns := map[string]string{
			bootstrap.WorkflowDeployHubStack:     config.HubStateMachineArn,
			bootstrap.WorkflowDeployAccountStack: config.AccountStateMachineArn,
		}
		var opts []sfnrunner.Option
		if waitInterval > 0 {
			opts = append(opts, sfnrunner.WithWaitInterval(time.Duration(waitInterval)))
		}
		return sfnrunner.New(sfnClient, arns, opts...), nil

	case services.RunnerModeLocal, "":
		return workflow.NewLocalRunner(), nil

	default:
		return nil, fmt.Errorf("unknown runner mode %q", runnerMode)
	}
}

func ProvideOrchestrator(registry *workflow.Registry, runner workflow.Runner, defs StackDefinitions) *bootstrap.Orchestrator {
	return bootstrap.New(registry, runner, defs.Hub, defs.Account)
}
