package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// EnsureTable creates the table with the PK/SK key schema when it does not
// exist and waits until it is active. It reports whether it created it.
func (e *Engine) EnsureTable(ctx context.Context, maxWait time.Duration) (bool, error) {
	_, err := e.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(e.tableName),
	})
	if err == nil {
		return false, nil
	}
	if !isCode(err, codeResourceNotFound) {
		return false, fmt.Errorf("failed to describe table: %w", err)
	}

	_, err = e.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(e.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil && !isCode(err, codeResourceInUse) {
		return false, fmt.Errorf("failed to create table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(e.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(e.tableName)}, maxWait); err != nil {
		return false, fmt.Errorf("table %s did not become active: %w", e.tableName, err)
	}

	e.logger.Info("DynamoDB table created", zap.String("table", e.tableName))
	return true, nil
}
