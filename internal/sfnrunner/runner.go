// Package sfnrunner provides a workflow.Runner backed by AWS Step
// Functions: each RunSync starts a state machine execution and polls it to a
// terminal state.
package sfnrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sfn/types"
	"github.com/rs/zerolog"
	apperrors "github.com/savaki/aws-bootstrapper/internal/errors"
	"github.com/savaki/aws-bootstrapper/internal/workflow"
)

// SFNAPI is the subset of the Step Functions API used by the runner.
type SFNAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
	DescribeExecution(ctx context.Context, params *sfn.DescribeExecutionInput, optFns ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithWaitInterval sets the execution polling interval.
func WithWaitInterval(interval time.Duration) Option {
	return func(r *Runner) {
		r.waitInterval = interval
	}
}

// Runner executes workflow definitions as Step Functions state machines.
// Definitions are mapped to state machine ARNs by name; Execute on the
// definition itself is never called.
type Runner struct {
	client       SFNAPI
	arns         map[string]string
	waitInterval time.Duration
}

// New creates a Runner. arns maps definition names to state machine ARNs.
func New(client SFNAPI, arns map[string]string, opts ...Option) *Runner {
	r := &Runner{
		client:       client,
		arns:         arns,
		waitInterval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunSync starts one named execution of the state machine registered for
// def and blocks until it reaches a terminal state.
func (r *Runner) RunSync(ctx context.Context, def workflow.Definition, input workflow.Document) (workflow.Document, error) {
	logger := zerolog.Ctx(ctx)

	stateMachineArn, ok := r.arns[def.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownWorkflow, def.Name())
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution input: %w", err)
	}

	executionName := workflow.ExecutionName(def.Name())

	result, err := r.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(stateMachineArn),
		Name:            aws.String(executionName),
		Input:           aws.String(string(inputJSON)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start execution %s: %w", executionName, err)
	}

	executionArn := aws.ToString(result.ExecutionArn)

	logger.Info().
		Str("workflow", def.Name()).
		Str("execution", executionName).
		Str("execution_arn", executionArn).
		Msg("Execution started")

	return r.waitForExecution(ctx, def.Name(), executionName, executionArn)
}

func (r *Runner) waitForExecution(ctx context.Context, workflowName, executionName, executionArn string) (workflow.Document, error) {
	logger := zerolog.Ctx(ctx)

	for {
		result, err := r.client.DescribeExecution(ctx, &sfn.DescribeExecutionInput{
			ExecutionArn: aws.String(executionArn),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe execution %s: %w", executionName, err)
		}

		switch result.Status {
		case types.ExecutionStatusSucceeded:
			var output workflow.Document
			if raw := aws.ToString(result.Output); raw != "" {
				if err := json.Unmarshal([]byte(raw), &output); err != nil {
					return nil, fmt.Errorf("failed to parse execution output: %w", err)
				}
			}
			return output, nil

		case types.ExecutionStatusFailed, types.ExecutionStatusTimedOut, types.ExecutionStatusAborted:
			return nil, &workflow.ExecutionError{
				Workflow:  workflowName,
				Execution: executionName,
				Err:       fmt.Errorf("execution reached status %s: %s", result.Status, aws.ToString(result.Cause)),
			}
		}

		logger.Info().
			Str("execution", executionName).
			Str("status", string(result.Status)).
			Msg("Waiting for execution")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.waitInterval):
		}
	}
}
