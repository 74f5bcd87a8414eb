// Package deploy implements the reusable "deploy one stack" sub-workflow:
// assume a role into the target account and region, fetch the template from
// S3, and create-or-update the named CloudFormation stack, blocking until
// the stack reaches a terminal state.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	apperrors "github.com/savaki/aws-bootstrapper/internal/errors"
	"github.com/savaki/aws-bootstrapper/internal/models"
	"github.com/savaki/aws-bootstrapper/internal/policy"
	"github.com/savaki/aws-bootstrapper/internal/workflow"
	"gopkg.in/yaml.v3"
)

// CloudFormationAPI is the subset of the CloudFormation API used to deploy
// a stack.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
}

// S3API is the subset of the S3 API used to fetch templates.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ClientFactory produces a CloudFormation client scoped to a target account
// and region, typically by assuming a role into the account.
type ClientFactory func(ctx context.Context, accountID, region, roleName string) (CloudFormationAPI, error)

// Option configures a StackDeployer.
type Option func(*StackDeployer)

// WithWaitInterval sets the stack status polling interval.
func WithWaitInterval(interval time.Duration) Option {
	return func(d *StackDeployer) {
		d.waitInterval = interval
	}
}

// WithValidator enables policy validation of templates before deployment.
func WithValidator(validator *policy.Validator) Option {
	return func(d *StackDeployer) {
		d.validator = validator
	}
}

// StackDeployer is a workflow.Definition that deploys one CloudFormation
// stack per execution.
type StackDeployer struct {
	name         string
	factory      ClientFactory
	s3Client     S3API
	validator    *policy.Validator
	waitInterval time.Duration
}

// NewStackDeployer creates a StackDeployer with the given definition name.
func NewStackDeployer(name string, factory ClientFactory, s3Client S3API, opts ...Option) *StackDeployer {
	d := &StackDeployer{
		name:         name,
		factory:      factory,
		s3Client:     s3Client,
		waitInterval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the definition name.
func (d *StackDeployer) Name() string {
	return d.name
}

// Execute deploys the stack described by the input document and returns the
// deployment result once the stack is stable.
func (d *StackDeployer) Execute(ctx context.Context, input workflow.Document) (workflow.Document, error) {
	logger := zerolog.Ctx(ctx)

	var spec models.StackInput
	if err := workflow.Decode(input, &spec); err != nil {
		return nil, err
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	logger.Info().
		Str("stack_name", spec.StackName).
		Str("account_id", spec.AccountID).
		Str("region", spec.Region).
		Msg("Deploying stack")

	template, err := d.downloadTemplate(ctx, spec.StackTemplateLocation)
	if err != nil {
		return nil, err
	}

	if d.validator != nil {
		if err := d.validateTemplate(ctx, template, spec.StackName); err != nil {
			return nil, err
		}
	}

	cfClient, err := d.factory(ctx, spec.AccountID, spec.Region, spec.AssumeRoleName)
	if err != nil {
		return nil, fmt.Errorf("failed to create CloudFormation client for account %s: %w", spec.AccountID, err)
	}

	exists, err := d.stackExists(ctx, cfClient, spec.StackName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if stack exists: %w", err)
	}

	if exists {
		err = d.updateStack(ctx, cfClient, spec, template)
	} else {
		err = d.createStack(ctx, cfClient, spec, template)
	}
	if err != nil {
		return nil, err
	}

	outputs, err := d.waitForStack(ctx, cfClient, spec.StackName)
	if err != nil {
		return nil, err
	}

	result := models.DeploymentResult{
		StackName:        spec.StackName,
		Capabilities:     spec.StackCapabilities,
		Parameters:       spec.StackParameters,
		TemplateLocation: spec.StackTemplateLocation,
		AccountID:        spec.AccountID,
		Region:           spec.Region,
		AssumeRoleName:   spec.AssumeRoleName,
		Outputs:          outputs,
	}

	logger.Info().
		Str("stack_name", spec.StackName).
		Str("account_id", spec.AccountID).
		Str("region", spec.Region).
		Int("outputs", len(outputs)).
		Msg("Stack deployment completed")

	return workflow.Encode(result)
}

func validateSpec(spec models.StackInput) error {
	switch {
	case spec.AccountID == "":
		return fmt.Errorf("accountId is required but was empty")
	case spec.Region == "":
		return fmt.Errorf("region is required but was empty")
	case spec.AssumeRoleName == "":
		return fmt.Errorf("assumeRoleName is required but was empty")
	case spec.StackName == "":
		return fmt.Errorf("stackName is required but was empty")
	case spec.StackTemplateLocation.Bucket == "" || spec.StackTemplateLocation.Key == "":
		return fmt.Errorf("stackTemplateLocation is required but was incomplete")
	default:
		return nil
	}
}

func (d *StackDeployer) downloadTemplate(ctx context.Context, location models.TemplateLocation) (s string, err error) {
	logger := zerolog.Ctx(ctx)

	defer func(begin time.Time) {
		logger.Info().
			Int("length", len(s)).
			Interface("error", err).
			Str("bucket", location.Bucket).
			Str("key", location.Key).
			Dur("duration", time.Since(begin)).
			Msg("Downloaded template")
	}(time.Now())

	result, err := d.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(location.Bucket),
		Key:    aws.String(location.Key),
	})
	if err != nil {
		return "", fmt.Errorf("%w: s3://%s/%s: %v", apperrors.ErrNoCloudFormationTemplate, location.Bucket, location.Key, err)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read template content: %w", err)
	}

	return string(content), nil
}

func (d *StackDeployer) validateTemplate(ctx context.Context, templateString, stackName string) error {
	logger := zerolog.Ctx(ctx)

	var template map[string]interface{}
	if err := yaml.Unmarshal([]byte(templateString), &template); err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	result, err := d.validator.ValidateTemplate(ctx, template)
	if err != nil {
		return fmt.Errorf("policy validation error: %w", err)
	}

	if !result.Allowed {
		violations := strings.Join(result.Violations, "; ")
		logger.Error().
			Str("stack_name", stackName).
			Str("violations", violations).
			Msg("Template policy validation failed")
		return fmt.Errorf("policy violations: %s", violations)
	}

	return nil
}

func (d *StackDeployer) stackExists(ctx context.Context, cfClient CloudFormationAPI, stackName string) (bool, error) {
	_, err := cfClient.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "ValidationError" || strings.Contains(apiErr.ErrorMessage(), "does not exist") {
				return false, nil
			}
		}
		return false, err
	}
	return true, nil
}

func (d *StackDeployer) createStack(ctx context.Context, cfClient CloudFormationAPI, spec models.StackInput, template string) error {
	_, err := cfClient.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:    aws.String(spec.StackName),
		TemplateBody: aws.String(template),
		Parameters:   buildParameters(spec.StackParameters),
		Capabilities: buildCapabilities(spec.StackCapabilities),
		Tags: []types.Tag{
			{
				Key:   aws.String("ManagedBy"),
				Value: aws.String("aws-bootstrapper"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create stack %s: %w", spec.StackName, err)
	}
	return nil
}

func (d *StackDeployer) updateStack(ctx context.Context, cfClient CloudFormationAPI, spec models.StackInput, template string) error {
	logger := zerolog.Ctx(ctx)

	_, err := cfClient.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(spec.StackName),
		TemplateBody: aws.String(template),
		Parameters:   buildParameters(spec.StackParameters),
		Capabilities: buildCapabilities(spec.StackCapabilities),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "ValidationError" &&
				(strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed") ||
					strings.Contains(apiErr.ErrorMessage(), "No updates to be performed")) {
				logger.Info().Str("stack_name", spec.StackName).Msg("No updates needed for stack")
				return nil
			}
		}
		return fmt.Errorf("failed to update stack %s: %w", spec.StackName, err)
	}
	return nil
}

// waitForStack polls the stack until it reaches a terminal state and
// returns its outputs.
func (d *StackDeployer) waitForStack(ctx context.Context, cfClient CloudFormationAPI, stackName string) (map[string]string, error) {
	logger := zerolog.Ctx(ctx)

	for {
		result, err := cfClient.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: aws.String(stackName),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
		}
		if len(result.Stacks) == 0 {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrStackNotFound, stackName)
		}

		stack := result.Stacks[0]
		status := stack.StackStatus

		switch {
		case isSuccessStatus(status):
			return stackOutputs(stack), nil
		case isFailedStatus(status):
			reason := aws.ToString(stack.StackStatusReason)
			return nil, fmt.Errorf("stack %s reached status %s: %s", stackName, status, reason)
		}

		logger.Info().
			Str("stack_name", stackName).
			Str("status", string(status)).
			Msg("Waiting for stack")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.waitInterval):
		}
	}
}

func isSuccessStatus(status types.StackStatus) bool {
	switch status {
	case types.StackStatusCreateComplete,
		types.StackStatusUpdateComplete:
		return true
	default:
		return false
	}
}

func isFailedStatus(status types.StackStatus) bool {
	switch status {
	case types.StackStatusCreateFailed,
		types.StackStatusRollbackInProgress,
		types.StackStatusRollbackFailed,
		types.StackStatusRollbackComplete,
		types.StackStatusDeleteFailed,
		types.StackStatusDeleteComplete,
		types.StackStatusUpdateFailed,
		types.StackStatusUpdateRollbackInProgress,
		types.StackStatusUpdateRollbackFailed,
		types.StackStatusUpdateRollbackComplete:
		return true
	default:
		return false
	}
}

func stackOutputs(stack types.Stack) map[string]string {
	outputs := make(map[string]string, len(stack.Outputs))
	for _, output := range stack.Outputs {
		outputs[aws.ToString(output.OutputKey)] = aws.ToString(output.OutputValue)
	}
	return outputs
}
