package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func bucket(properties map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"Type":       "AWS::S3::Bucket",
		"Properties": properties,
	}
}

func TestValidateTemplate(t *testing.T) {
	validator, err := NewValidator()
	assert.NoError(t, err)

	ctx := context.Background()

	compliantBucket := bucket(map[string]interface{}{
		"PublicAccessBlockConfiguration": map[string]interface{}{
			"BlockPublicAcls":   true,
			"BlockPublicPolicy": true,
		},
		"VersioningConfiguration": map[string]interface{}{
			"Status": "Enabled",
		},
	})

	tests := []struct {
		name        string
		template    map[string]interface{}
		wantAllowed bool
	}{
		{
			name: "compliant bucket",
			template: map[string]interface{}{
				"Resources": map[string]interface{}{
					"BootstrapBucket": compliantBucket,
				},
			},
			wantAllowed: true,
		},
		{
			name: "no resources",
			template: map[string]interface{}{
				"Resources": map[string]interface{}{},
			},
			wantAllowed: true,
		},
		{
			name: "bucket without public access block",
			template: map[string]interface{}{
				"Resources": map[string]interface{}{
					"BootstrapBucket": bucket(map[string]interface{}{
						"VersioningConfiguration": map[string]interface{}{
							"Status": "Enabled",
						},
					}),
				},
			},
			wantAllowed: false,
		},
		{
			name: "bucket without versioning",
			template: map[string]interface{}{
				"Resources": map[string]interface{}{
					"BootstrapBucket": bucket(map[string]interface{}{
						"PublicAccessBlockConfiguration": map[string]interface{}{
							"BlockPublicAcls": true,
						},
					}),
				},
			},
			wantAllowed: false,
		},
		{
			name: "bucket with suspended versioning",
			template: map[string]interface{}{
				"Resources": map[string]interface{}{
					"BootstrapBucket": bucket(map[string]interface{}{
						"PublicAccessBlockConfiguration": map[string]interface{}{
							"BlockPublicAcls": true,
						},
						"VersioningConfiguration": map[string]interface{}{
							"Status": "Suspended",
						},
					}),
				},
			},
			wantAllowed: false,
		},
		{
			name: "non-bucket resources ignored",
			template: map[string]interface{}{
				"Resources": map[string]interface{}{
					"Role": map[string]interface{}{
						"Type":       "AWS::IAM::Role",
						"Properties": map[string]interface{}{},
					},
				},
			},
			wantAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validator.ValidateTemplate(ctx, tt.template)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantAllowed, result.Allowed)
			if !tt.wantAllowed {
				assert.NotEmpty(t, result.Violations)
			}
		})
	}
}
