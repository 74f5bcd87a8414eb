package accountdao

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/ddb/v2/ddbtest"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
)

type Data struct {
	DAO *DAO
}

func setup(t *testing.T) (ctx context.Context, data Data, cleanup func()) {
	ctx = context.Background()

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion("us-west-2"),
		config.WithBaseEndpoint("http://localhost:8000"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("blah", "blah", ""),
		),
	)
	assert.NoError(t, err)

	var (
		client    = dynamodb.NewFromConfig(cfg)
		db        = ddb.New(client)
		tableName = fmt.Sprintf("accounts-test-%v", ksuid.New().String())
		table     = db.MustTable(tableName, Record{})
		dao       = New(client, tableName)
	)

	err = table.CreateTableIfNotExists(ctx)
	assert.NoError(t, err)

	return ctx, Data{DAO: dao}, func() {
		_ = table.DeleteTableIfExists(ctx)
	}
}

func TestDAO(t *testing.T) {
	ddbtest.WithTable[Data](t, setup, func(t *testing.T, ctx context.Context, data Data) {
		dao := data.DAO

		t.Run("Create_Find_Operations", func(t *testing.T) {
			created, err := dao.Create(ctx, CreateInput{
				Key:                OperationsKey,
				AccountID:          "111111111111",
				Name:               "Operations",
				Email:              "ops@example.com",
				OrganizationalUnit: "core",
			})
			assert.NoError(t, err)
			assert.NotNil(t, created)

			record, err := dao.Find(ctx, OperationsKey)
			assert.NoError(t, err)
			assert.NotNil(t, record)
			assert.Equal(t, OperationsKey, record.PK.String())
			assert.Equal(t, "ACCOUNT", record.SK)
			assert.Equal(t, "111111111111", record.AccountID)
			assert.Equal(t, "core", record.OrganizationalUnit)
			assert.Equal(t, "operations:ACCOUNT", record.GetID().String())
		})

		t.Run("Find_NotFound", func(t *testing.T) {
			record, err := dao.Find(ctx, "no-such-account")
			assert.NoError(t, err)
			assert.Nil(t, record)
		})

		t.Run("Create_Overwrites", func(t *testing.T) {
			_, err := dao.Create(ctx, CreateInput{
				Key:       "workload-1",
				AccountID: "222222222222",
			})
			assert.NoError(t, err)

			_, err = dao.Create(ctx, CreateInput{
				Key:       "workload-1",
				AccountID: "333333333333",
			})
			assert.NoError(t, err)

			record, err := dao.Find(ctx, "workload-1")
			assert.NoError(t, err)
			assert.NotNil(t, record)
			assert.Equal(t, "333333333333", record.AccountID)
		})

		t.Run("Delete", func(t *testing.T) {
			_, err := dao.Create(ctx, CreateInput{
				Key:       "workload-2",
				AccountID: "444444444444",
			})
			assert.NoError(t, err)

			err = dao.Delete(ctx, "workload-2")
			assert.NoError(t, err)

			record, err := dao.Find(ctx, "workload-2")
			assert.NoError(t, err)
			assert.Nil(t, record)
		})
	})
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		id      ID
		wantKey string
		wantErr bool
	}{
		{name: "valid", id: NewID("operations"), wantKey: "operations"},
		{name: "missing sk", id: ID("operations"), wantErr: true},
		{name: "wrong sk", id: ID("operations:LOCK"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "dev-bootstrapper-accounts", TableName("dev"))
	assert.Equal(t, "prd-bootstrapper-accounts", TableName("prd"))
}
