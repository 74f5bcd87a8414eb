package deploy

import (
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
)

// buildParameters merges parameter maps with later maps taking precedence
// and returns a CloudFormation parameter list in stable key order.
func buildParameters(pp ...map[string]string) []types.Parameter {
	m := map[string]string{}
	for _, p := range pp {
		maps.Copy(m, p)
	}

	var results []types.Parameter
	for _, k := range slices.Sorted(maps.Keys(m)) {
		results = append(results, types.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(m[k]),
		})
	}

	return results
}

// buildCapabilities converts capability names into their typed form.
func buildCapabilities(capabilities []string) []types.Capability {
	var results []types.Capability
	for _, c := range capabilities {
		results = append(results, types.Capability(c))
	}
	return results
}
