package deploy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/segmentio/ksuid"
)

// STSAPI is the subset of the STS API used to assume roles into target
// accounts.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// NewClientFactory returns a ClientFactory that assumes the named role in
// the target account and builds a region-pinned CloudFormation client from
// the temporary credentials.
func NewClientFactory(baseConfig aws.Config, stsClient STSAPI) ClientFactory {
	return func(ctx context.Context, accountID, region, roleName string) (CloudFormationAPI, error) {
		roleArn := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
		sessionName := fmt.Sprintf("bootstrapper-%s", ksuid.New().String())

		result, err := stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
			RoleArn:         aws.String(roleArn),
			RoleSessionName: aws.String(sessionName),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to assume role %s: %w", roleArn, err)
		}

		creds := result.Credentials
		cfg := baseConfig.Copy()
		cfg.Region = region
		cfg.Credentials = credentials.NewStaticCredentialsProvider(
			aws.ToString(creds.AccessKeyId),
			aws.ToString(creds.SecretAccessKey),
			aws.ToString(creds.SessionToken),
		)

		return cloudformation.NewFromConfig(cfg), nil
	}
}
