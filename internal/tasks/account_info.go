// Package tasks implements the named operations the orchestrator invokes
// through the task invoker: hub account resolution and bootstrap output
// aggregation.
package tasks

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/rs/zerolog"
	"github.com/savaki/aws-bootstrapper/internal/dao/accountdao"
	apperrors "github.com/savaki/aws-bootstrapper/internal/errors"
	"github.com/savaki/aws-bootstrapper/internal/models"
	"github.com/savaki/aws-bootstrapper/internal/workflow"
)

// AccountStore retrieves account records from the accounts table.
type AccountStore interface {
	Find(ctx context.Context, key string) (*accountdao.Record, error)
}

// OrganizationsAPI is the subset of the AWS Organizations API used to
// resolve an account's organizational unit.
type OrganizationsAPI interface {
	ListParents(ctx context.Context, params *organizations.ListParentsInput, optFns ...func(*organizations.Options)) (*organizations.ListParentsOutput, error)
	DescribeOrganizationalUnit(ctx context.Context, params *organizations.DescribeOrganizationalUnitInput, optFns ...func(*organizations.Options)) (*organizations.DescribeOrganizationalUnitOutput, error)
}

// AccountInfoHandler implements the getAccountInfo operation: look up the
// hub/operations account in the accounts table and resolve its
// organizational unit via AWS Organizations when the table does not carry
// one.
type AccountInfoHandler struct {
	store     AccountStore
	orgClient OrganizationsAPI
}

// NewAccountInfoHandler creates an AccountInfoHandler. orgClient may be nil
// when OU resolution is not needed (the table already carries the OU).
func NewAccountInfoHandler(store AccountStore, orgClient OrganizationsAPI) *AccountInfoHandler {
	return &AccountInfoHandler{
		store:     store,
		orgClient: orgClient,
	}
}

// Handle resolves the account identified by the payload's accountKey
// (default "operations") into an AccountInfo document.
func (h *AccountInfoHandler) Handle(ctx context.Context, payload workflow.Document) (workflow.Document, error) {
	logger := zerolog.Ctx(ctx)

	accountKey := payload.String("accountKey")
	if accountKey == "" {
		accountKey = accountdao.OperationsKey
	}

	logger.Info().
		Str("account_key", accountKey).
		Str("config_repository", payload.String("configRepositoryName")).
		Str("config_commit", payload.String("configCommitId")).
		Msg("Resolving account info")

	record, err := h.store.Find(ctx, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account %s: %w", accountKey, err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, accountKey)
	}

	info := models.AccountInfo{
		ID:                 record.AccountID,
		OrganizationalUnit: record.OrganizationalUnit,
	}

	if info.OrganizationalUnit == "" && h.orgClient != nil {
		ou, err := h.resolveOrganizationalUnit(ctx, record.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve organizational unit for account %s: %w", record.AccountID, err)
		}
		info.OrganizationalUnit = ou
	}

	logger.Info().
		Str("account_id", info.ID).
		Str("ou", info.OrganizationalUnit).
		Msg("Account info resolved")

	return workflow.Encode(info)
}

func (h *AccountInfoHandler) resolveOrganizationalUnit(ctx context.Context, accountID string) (string, error) {
	parents, err := h.orgClient.ListParents(ctx, &organizations.ListParentsInput{
		ChildId: aws.String(accountID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list parents: %w", err)
	}
	if len(parents.Parents) == 0 {
		return "", fmt.Errorf("account %s has no parent", accountID)
	}

	parent := parents.Parents[0]
	if parent.Type != orgtypes.ParentTypeOrganizationalUnit {
		// Account lives directly under the root.
		return aws.ToString(parent.Id), nil
	}

	ou, err := h.orgClient.DescribeOrganizationalUnit(ctx, &organizations.DescribeOrganizationalUnitInput{
		OrganizationalUnitId: parent.Id,
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe organizational unit: %w", err)
	}
	if ou.OrganizationalUnit == nil {
		return "", fmt.Errorf("organizational unit %s not found", aws.ToString(parent.Id))
	}

	return aws.ToString(ou.OrganizationalUnit.Name), nil
}
