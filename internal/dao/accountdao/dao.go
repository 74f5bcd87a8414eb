package accountdao

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
)

const (
	// OperationsKey is the account key the hub/operations account is
	// registered under.
	OperationsKey = "operations"

	// recordSK is the fixed sort key for account records.
	recordSK = "ACCOUNT"
)

// PK represents the partition key: the logical account key (e.g.
// "operations", "perimeter", "workload-1")
type PK string

// NewPK creates a partition key from an account key
func NewPK(key string) PK {
	return PK(key)
}

// String returns the string representation
func (pk PK) String() string {
	return string(pk)
}

// ID represents an account record ID in format {key}:ACCOUNT
type ID string

// NewID creates an ID from an account key
func NewID(key string) ID {
	return ID(fmt.Sprintf("%s:%s", key, recordSK))
}

// ParseID parses an ID into its account key
func ParseID(id ID) (key string, err error) {
	s := string(id)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[1] != recordSK {
		return "", fmt.Errorf("invalid ID format: %s, expected {key}:%s", s, recordSK)
	}
	return parts[0], nil
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// Record represents a managed account
type Record struct {
	PK                 PK     `ddb:"hash" dynamodbav:"pk"`                       // account key
	SK                 string `ddb:"range" dynamodbav:"sk"`                      // always ACCOUNT
	AccountID          string `dynamodbav:"account_id"`                          // AWS account ID
	Name               string `dynamodbav:"name,omitempty"`                      // display name
	Email              string `dynamodbav:"email,omitempty"`                     // root email
	OrganizationalUnit string `dynamodbav:"organizational_unit,omitempty"`       // OU name, resolved lazily
}

// GetID returns the ID for this record
func (r *Record) GetID() ID {
	return NewID(r.PK.String())
}

// CreateInput contains fields for registering an account
type CreateInput struct {
	Key                string // logical account key
	AccountID          string // AWS account ID
	Name               string // display name
	Email              string // root email
	OrganizationalUnit string // OU name (optional)
}

// DAO provides data access operations for the accounts table
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Find retrieves an account record by key
// Returns nil if not found
func (d *DAO) Find(ctx context.Context, key string) (*Record, error) {
	var record Record

	err := d.table.Get(key).
		Range(recordSK).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account %s: %w", key, err)
	}

	if record.PK == "" && record.SK == "" {
		return nil, nil
	}

	return &record, nil
}

// Create registers an account, overwriting any previous record for the key
func (d *DAO) Create(ctx context.Context, input CreateInput) (*Record, error) {
	record := &Record{
		PK:                 NewPK(input.Key),
		SK:                 recordSK,
		AccountID:          input.AccountID,
		Name:               input.Name,
		Email:              input.Email,
		OrganizationalUnit: input.OrganizationalUnit,
	}

	err := d.table.Put(record).RunWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return record, nil
}

// Delete removes an account record by key
func (d *DAO) Delete(ctx context.Context, key string) error {
	err := d.table.Delete(key).
		Range(recordSK).
		RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete account %s: %w", key, err)
	}
	return nil
}

// TableName derives the accounts table name from environment
func TableName(env string) string {
	return fmt.Sprintf("%s-bootstrapper-accounts", env)
}
