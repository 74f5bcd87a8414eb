package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	apperrors "github.com/savaki/aws-bootstrapper/internal/errors"
	"github.com/savaki/aws-bootstrapper/internal/models"
	"github.com/savaki/aws-bootstrapper/internal/policy"
	"github.com/savaki/aws-bootstrapper/internal/workflow"
	"github.com/stretchr/testify/assert"
)

const testTemplate = `Resources:
  ArtifactBucket:
    Type: AWS::S3::Bucket
    Properties:
      PublicAccessBlockConfiguration:
        BlockPublicAcls: true
        BlockPublicPolicy: true
        IgnorePublicAcls: true
        RestrictPublicBuckets: true
      VersioningConfiguration:
        Status: Enabled
`

// apiError mimics a smithy API error from CloudFormation.
type apiError struct {
	code    string
	message string
}

func (e *apiError) Error() string                 { return fmt.Sprintf("%s: %s", e.code, e.message) }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.message }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

// fakeCF simulates a CloudFormation control plane: DescribeStacks walks
// through the configured status sequence once the stack exists.
type fakeCF struct {
	mu       sync.Mutex
	exists   bool
	statuses []types.StackStatus
	outputs  []types.Output
	reason   string

	describeCalls int
	createCalls   int
	updateCalls   int
	updateErr     error
}

func (f *fakeCF) DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.describeCalls++
	if !f.exists {
		return nil, &apiError{code: "ValidationError", message: fmt.Sprintf("Stack with id %s does not exist", aws.ToString(params.StackName))}
	}

	status := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}

	return &cloudformation.DescribeStacksOutput{
		Stacks: []types.Stack{
			{
				StackName:         params.StackName,
				StackStatus:       status,
				StackStatusReason: aws.String(f.reason),
				Outputs:           f.outputs,
			},
		},
	}, nil
}

func (f *fakeCF) CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	f.exists = true
	return &cloudformation.CreateStackOutput{StackId: aws.String("stack-id")}, nil
}

func (f *fakeCF) UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &cloudformation.UpdateStackOutput{StackId: aws.String("stack-id")}, nil
}

type fakeS3 struct {
	content string
	err     error
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(f.content)),
	}, nil
}

func validStackInput() models.StackInput {
	return models.StackInput{
		AccountID:      "111111111111",
		Region:         "us-east-1",
		AssumeRoleName: "BootstrapExecutionRole",
		StackName:      "Accel-Bootstrap",
		StackParameters: map[string]string{
			"AcceleratorPrefix": "Accel",
		},
		StackTemplateLocation: models.TemplateLocation{
			Bucket: "bootstrap-artifacts",
			Key:    "templates/operations.yaml",
		},
		StackCapabilities: []string{"CAPABILITY_NAMED_IAM"},
	}
}

func newDeployer(cf *fakeCF, s3Client S3API, opts ...Option) *StackDeployer {
	factory := func(ctx context.Context, accountID, region, roleName string) (CloudFormationAPI, error) {
		return cf, nil
	}
	opts = append(opts, WithWaitInterval(time.Millisecond))
	return NewStackDeployer("deploy-stack", factory, s3Client, opts...)
}

func execute(t *testing.T, d *StackDeployer, spec models.StackInput) (models.DeploymentResult, error) {
	t.Helper()

	input, err := workflow.Encode(spec)
	assert.NoError(t, err)

	output, err := d.Execute(context.Background(), input)
	if err != nil {
		return models.DeploymentResult{}, err
	}

	var result models.DeploymentResult
	assert.NoError(t, workflow.Decode(output, &result))
	return result, nil
}

func TestStackDeployer_CreatesNewStack(t *testing.T) {
	cf := &fakeCF{
		statuses: []types.StackStatus{
			types.StackStatusCreateInProgress,
			types.StackStatusCreateComplete,
		},
		outputs: []types.Output{
			{OutputKey: aws.String("BucketName"), OutputValue: aws.String("bucket-east")},
			{OutputKey: aws.String("BucketDomain"), OutputValue: aws.String("bucket-east.s3.amazonaws.com")},
		},
	}

	deployer := newDeployer(cf, &fakeS3{content: testTemplate})
	result, err := execute(t, deployer, validStackInput())
	assert.NoError(t, err)

	assert.Equal(t, 1, cf.createCalls)
	assert.Equal(t, 0, cf.updateCalls)
	assert.Equal(t, "Accel-Bootstrap", result.StackName)
	assert.Equal(t, "111111111111", result.AccountID)
	assert.Equal(t, map[string]string{
		"BucketName":   "bucket-east",
		"BucketDomain": "bucket-east.s3.amazonaws.com",
	}, result.Outputs)
}

func TestStackDeployer_UpdatesExistingStack(t *testing.T) {
	cf := &fakeCF{
		exists: true,
		statuses: []types.StackStatus{
			types.StackStatusUpdateInProgress,
			types.StackStatusUpdateComplete,
		},
	}

	deployer := newDeployer(cf, &fakeS3{content: testTemplate})
	_, err := execute(t, deployer, validStackInput())
	assert.NoError(t, err)

	assert.Equal(t, 0, cf.createCalls)
	assert.Equal(t, 1, cf.updateCalls)
}

func TestStackDeployer_NoUpdatesNeeded(t *testing.T) {
	cf := &fakeCF{
		exists:    true,
		statuses:  []types.StackStatus{types.StackStatusUpdateComplete},
		updateErr: &apiError{code: "ValidationError", message: "No updates are to be performed."},
	}

	deployer := newDeployer(cf, &fakeS3{content: testTemplate})
	_, err := execute(t, deployer, validStackInput())
	assert.NoError(t, err)
	assert.Equal(t, 1, cf.updateCalls)
}

func TestStackDeployer_FailedStack(t *testing.T) {
	cf := &fakeCF{
		statuses: []types.StackStatus{
			types.StackStatusCreateInProgress,
			types.StackStatusRollbackComplete,
		},
		reason: "resource creation failed",
	}

	deployer := newDeployer(cf, &fakeS3{content: testTemplate})
	_, err := execute(t, deployer, validStackInput())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ROLLBACK_COMPLETE")
	assert.Contains(t, err.Error(), "resource creation failed")
}

func TestStackDeployer_MissingTemplate(t *testing.T) {
	cf := &fakeCF{}
	deployer := newDeployer(cf, &fakeS3{err: &apiError{code: "NoSuchKey", message: "key not found"}})

	_, err := execute(t, deployer, validStackInput())
	assert.ErrorIs(t, err, apperrors.ErrNoCloudFormationTemplate)
	assert.Equal(t, 0, cf.createCalls)
}

func TestStackDeployer_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.StackInput)
	}{
		{name: "missing account", mutate: func(s *models.StackInput) { s.AccountID = "" }},
		{name: "missing region", mutate: func(s *models.StackInput) { s.Region = "" }},
		{name: "missing role", mutate: func(s *models.StackInput) { s.AssumeRoleName = "" }},
		{name: "missing stack name", mutate: func(s *models.StackInput) { s.StackName = "" }},
		{name: "missing template", mutate: func(s *models.StackInput) { s.StackTemplateLocation = models.TemplateLocation{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validStackInput()
			tt.mutate(&spec)

			deployer := newDeployer(&fakeCF{}, &fakeS3{content: testTemplate})
			_, err := execute(t, deployer, spec)
			assert.Error(t, err)
		})
	}
}

func TestStackDeployer_PolicyValidation(t *testing.T) {
	validator, err := policy.NewValidator()
	assert.NoError(t, err)

	t.Run("compliant template passes", func(t *testing.T) {
		cf := &fakeCF{
			statuses: []types.StackStatus{types.StackStatusCreateComplete},
		}
		deployer := newDeployer(cf, &fakeS3{content: testTemplate}, WithValidator(validator))

		_, err := execute(t, deployer, validStackInput())
		assert.NoError(t, err)
	})

	t.Run("non-compliant template rejected", func(t *testing.T) {
		badTemplate := `Resources:
  ArtifactBucket:
    Type: AWS::S3::Bucket
    Properties:
      BucketName: open-bucket
`
		cf := &fakeCF{}
		deployer := newDeployer(cf, &fakeS3{content: badTemplate}, WithValidator(validator))

		_, err := execute(t, deployer, validStackInput())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "policy violations")
		assert.Equal(t, 0, cf.createCalls, "non-compliant stack should never be created")
	})
}

func TestStackDeployer_FactoryFailure(t *testing.T) {
	cause := errors.New("assume role denied")
	factory := func(ctx context.Context, accountID, region, roleName string) (CloudFormationAPI, error) {
		return nil, cause
	}
	deployer := NewStackDeployer("deploy-stack", factory, &fakeS3{content: testTemplate},
		WithWaitInterval(time.Millisecond))

	_, err := execute(t, deployer, validStackInput())
	assert.ErrorIs(t, err, cause)
}

func TestBuildParameters(t *testing.T) {
	params := buildParameters(
		map[string]string{"B": "2", "A": "1"},
		map[string]string{"C": "3", "A": "override"},
	)

	assert.Len(t, params, 3)
	assert.Equal(t, "A", aws.ToString(params[0].ParameterKey))
	assert.Equal(t, "override", aws.ToString(params[0].ParameterValue))
	assert.Equal(t, "B", aws.ToString(params[1].ParameterKey))
	assert.Equal(t, "C", aws.ToString(params[2].ParameterKey))
}
