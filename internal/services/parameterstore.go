package services

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Runner modes for executing bootstrap sub-workflows.
const (
	RunnerModeLocal = "local"
	RunnerModeSFN   = "sfn"
)

// Config holds all application configuration values from Parameter Store
type Config struct {
	AccountsTableName      string
	S3Bucket               string
	AcceleratorPrefix      string
	AssumeRoleName         string
	RunnerMode             string
	HubStateMachineArn     string
	AccountStateMachineArn string
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all application configuration from Parameter Store
	GetConfig(ctx context.Context) (*Config, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client *ssm.Client
	env    string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client *ssm.Client, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
		cache:  make(map[string]string),
	}
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	// Check cache first
	s.mu.RLock()
	if value, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s not found", name)
	}

	value := *result.Parameter.Value

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return value, nil
}

// GetConfig loads all application configuration from Parameter Store
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := fmt.Sprintf("/%s/aws-bootstrapper", s.env)

	// Use GetParametersByPath for efficient batch retrieval
	result, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
		Path:           &path,
		Recursive:      boolPtr(true),
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
	}

	params := make(map[string]string)
	for _, param := range result.Parameters {
		if param.Name != nil && param.Value != nil {
			params[*param.Name] = *param.Value
		}
	}

	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.mu.Unlock()

	config := &Config{
		AccountsTableName:      params[fmt.Sprintf("/%s/aws-bootstrapper/accounts-table-name", s.env)],
		S3Bucket:               params[fmt.Sprintf("/%s/aws-bootstrapper/s3-bucket", s.env)],
		AcceleratorPrefix:      params[fmt.Sprintf("/%s/aws-bootstrapper/accelerator-prefix", s.env)],
		AssumeRoleName:         params[fmt.Sprintf("/%s/aws-bootstrapper/assume-role-name", s.env)],
		RunnerMode:             params[fmt.Sprintf("/%s/aws-bootstrapper/runner-mode", s.env)],
		HubStateMachineArn:     params[fmt.Sprintf("/%s/aws-bootstrapper/hub-state-machine-arn", s.env)],
		AccountStateMachineArn: params[fmt.Sprintf("/%s/aws-bootstrapper/account-state-machine-arn", s.env)],
	}

	applyDefaults(config, s.env)

	return config, nil
}

// EnvParameterStore implements ParameterStore using environment variables
// This is a NoOp implementation for local development without AWS connection
type EnvParameterStore struct {
	env string
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(env string) *EnvParameterStore {
	return &EnvParameterStore{
		env: env,
	}
}

// GetParameter retrieves a parameter from environment variables
func (e *EnvParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	return os.Getenv(name), nil
}

// GetConfig loads all application configuration from environment variables
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	config := &Config{
		AccountsTableName:      os.Getenv("ACCOUNTS_TABLE_NAME"),
		S3Bucket:               os.Getenv("S3_BUCKET_NAME"),
		AcceleratorPrefix:      os.Getenv("ACCELERATOR_PREFIX"),
		AssumeRoleName:         os.Getenv("ASSUME_ROLE_NAME"),
		RunnerMode:             os.Getenv("RUNNER_MODE"),
		HubStateMachineArn:     os.Getenv("HUB_STATE_MACHINE_ARN"),
		AccountStateMachineArn: os.Getenv("ACCOUNT_STATE_MACHINE_ARN"),
	}

	applyDefaults(config, e.env)

	return config, nil
}

func applyDefaults(config *Config, env string) {
	if config.RunnerMode == "" {
		config.RunnerMode = RunnerModeLocal
	}
	if config.AcceleratorPrefix == "" {
		config.AcceleratorPrefix = "Accel"
	}
	if config.AssumeRoleName == "" {
		config.AssumeRoleName = "BootstrapExecutionRole"
	}
	if config.AccountsTableName == "" {
		config.AccountsTableName = fmt.Sprintf("%s-bootstrapper-accounts", env)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
