package models

// AccountInfo identifies the hub/operations account resolved at the start of
// an orchestration.
type AccountInfo struct {
	ID                 string `json:"id"`                 // AWS account ID
	OrganizationalUnit string `json:"organizationalUnit"` // Organizational unit name
}

// TemplateLocation points at a CloudFormation template stored in S3.
type TemplateLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// StackInput is the input contract of the "deploy one stack" sub-workflow:
// assume a role into the target account/region and create-or-update the
// named stack from the given template.
type StackInput struct {
	AccountID             string            `json:"accountId"`
	OrganizationID        string            `json:"organizationId,omitempty"`
	Region                string            `json:"region"`
	AssumeRoleName        string            `json:"assumeRoleName"`
	AcceleratorPrefix     string            `json:"acceleratorPrefix,omitempty"`
	StackName             string            `json:"stackName"`
	StackParameters       map[string]string `json:"stackParameters,omitempty"`
	StackTemplateLocation TemplateLocation  `json:"stackTemplateLocation"`
	StackCapabilities     []string          `json:"stackCapabilities,omitempty"`
}

// DeploymentResult is the output of one stack deployment.
type DeploymentResult struct {
	StackName        string            `json:"stackName"`
	Capabilities     []string          `json:"capabilities,omitempty"`
	Parameters       map[string]string `json:"parameters,omitempty"`
	TemplateLocation TemplateLocation  `json:"templateLocation"`
	AccountID        string            `json:"accountId"`
	Region           string            `json:"region"`
	AssumeRoleName   string            `json:"assumeRoleName"`
	Outputs          map[string]string `json:"outputs,omitempty"`
}

// RegionOutput is the per-region artifact information harvested from a hub
// bootstrap deployment and broadcast to every account.
type RegionOutput struct {
	Region       string `json:"region"`
	BucketName   string `json:"bucketName"`
	BucketDomain string `json:"bucketDomain"`
}

// BootstrapOutput is the aggregated result of the hub-region fan-out: the
// accounts still to be bootstrapped and the per-region outputs to broadcast
// to each of them.
type BootstrapOutput struct {
	Accounts []string       `json:"accounts"`
	Outputs  []RegionOutput `json:"outputs"`
}
