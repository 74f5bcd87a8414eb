package bootstrap

import (
	"fmt"

	"github.com/savaki/aws-bootstrapper/internal/workflow"
)

// DefaultWaitSeconds is the default polling interval handed to collaborators
// that wait on remote executions.
const DefaultWaitSeconds = 10

// Input is the caller-supplied contract for one bootstrap orchestration.
type Input struct {
	ConfigRepositoryName         string         `json:"configRepositoryName"`
	ConfigFilePath               string         `json:"configFilePath"`
	ConfigCommitID               string         `json:"configCommitId"`
	AccountsTableName            string         `json:"accountsTableName"`
	Regions                      []string       `json:"regions"`
	Accounts                     []string       `json:"accounts"`
	AcceleratorPrefix            string         `json:"acceleratorPrefix"`
	AssumeRoleName               string         `json:"assumeRoleName"`
	BootstrapStackName           string         `json:"bootStrapStackName"`
	S3BucketName                 string         `json:"s3BucketName"`
	OperationsBootstrapObjectKey string         `json:"operationsBootstrapObjectKey"`
	AccountBootstrapObjectKey    string         `json:"accountBootstrapObjectKey"`
	FunctionPayload              map[string]any `json:"functionPayload,omitempty"`
	WaitSeconds                  int            `json:"waitSeconds,omitempty"`
}

// Validate checks that every required field is present and applies defaults.
func (in *Input) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"configRepositoryName", in.ConfigRepositoryName},
		{"configFilePath", in.ConfigFilePath},
		{"configCommitId", in.ConfigCommitID},
		{"accountsTableName", in.AccountsTableName},
		{"acceleratorPrefix", in.AcceleratorPrefix},
		{"assumeRoleName", in.AssumeRoleName},
		{"bootStrapStackName", in.BootstrapStackName},
		{"s3BucketName", in.S3BucketName},
		{"operationsBootstrapObjectKey", in.OperationsBootstrapObjectKey},
		{"accountBootstrapObjectKey", in.AccountBootstrapObjectKey},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%s is required but was empty", field.name)
		}
	}

	if len(in.Regions) == 0 {
		return fmt.Errorf("regions is required but was empty")
	}

	if in.WaitSeconds <= 0 {
		in.WaitSeconds = DefaultWaitSeconds
	}

	return nil
}

// Document converts the input into the workflow document the orchestration
// threads between phases.
func (in *Input) Document() (workflow.Document, error) {
	return workflow.Encode(in)
}
