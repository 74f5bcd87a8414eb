package bootstrap

import "fmt"

// LookupError reports a failure to resolve the hub/operations account.
type LookupError struct {
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: failed to resolve hub account: %v", PhaseResolveHubAccount, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// AggregationError reports a failure of the bootstrap output merge step.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("%s: failed to aggregate bootstrap output: %v", PhaseAggregateBootstrapOutput, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}

// DeploymentError reports a failed child stack deployment along with the
// phase, account, and region at which it occurred.
type DeploymentError struct {
	Phase     string
	AccountID string
	Region    string
	Err       error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("%s: deployment failed for account %s in region %s: %v", e.Phase, e.AccountID, e.Region, e.Err)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}
