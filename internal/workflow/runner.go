package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// Definition is a named, reusable sub-workflow. Execute runs one instance to
// completion; instances are independent and carry no state back to siblings.
type Definition interface {
	Name() string
	Execute(ctx context.Context, input Document) (Document, error)
}

type definitionFunc struct {
	name string
	fn   func(ctx context.Context, input Document) (Document, error)
}

func (d *definitionFunc) Name() string { return d.name }

func (d *definitionFunc) Execute(ctx context.Context, input Document) (Document, error) {
	return d.fn(ctx, input)
}

// NewDefinition wraps a function as a Definition.
func NewDefinition(name string, fn func(ctx context.Context, input Document) (Document, error)) Definition {
	return &definitionFunc{name: name, fn: fn}
}

// ExecutionError reports the failure of a sub-workflow execution. The
// child's failure detail is carried verbatim; callers propagate it rather
// than masking it.
type ExecutionError struct {
	Workflow  string
	Execution string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution %s of workflow %s failed: %v", e.Execution, e.Workflow, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ExecutionName generates a unique execution name for a sub-workflow run.
func ExecutionName(workflow string) string {
	return fmt.Sprintf("%s-%s", workflow, ksuid.New().String())
}

// Runner starts an independent execution of a workflow definition, blocks
// until it reaches a terminal state, and returns its output. A failed child
// execution surfaces as ExecutionError.
type Runner interface {
	RunSync(ctx context.Context, def Definition, input Document) (Document, error)
}

// LocalRunner executes definitions in-process. It is the default execution
// backend; see the sfnrunner package for the Step Functions backend.
type LocalRunner struct{}

// NewLocalRunner creates a LocalRunner.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// RunSync runs one named execution of def and waits for it to finish.
func (r *LocalRunner) RunSync(ctx context.Context, def Definition, input Document) (output Document, err error) {
	logger := zerolog.Ctx(ctx)
	executionName := ExecutionName(def.Name())

	defer func(begin time.Time) {
		logger.Info().
			Interface("error", err).
			Str("workflow", def.Name()).
			Str("execution", executionName).
			Dur("duration", time.Since(begin)).
			Msg("Execution completed")
	}(time.Now())

	logger.Info().
		Str("workflow", def.Name()).
		Str("execution", executionName).
		Msg("Starting execution")

	output, err = def.Execute(ctx, input.Clone())
	if err != nil {
		return nil, &ExecutionError{
			Workflow:  def.Name(),
			Execution: executionName,
			Err:       err,
		}
	}

	return output, nil
}
