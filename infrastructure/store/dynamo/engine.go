// Package dynamo implements store.Engine on Amazon DynamoDB using a single
// table keyed by PK (partition) and SK (sort).
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coursegraph-backend/infrastructure/store"
	apperrors "coursegraph-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// Client is the subset of the DynamoDB API the engine uses
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

const (
	codeConditionalCheckFailed = "ConditionalCheckFailedException"
	codeResourceNotFound       = "ResourceNotFoundException"
	codeResourceInUse          = "ResourceInUseException"
)

// Engine executes statements against one DynamoDB table
type Engine struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

var _ store.Engine = (*Engine)(nil)

// NewEngine creates a DynamoDB engine for tableName
func NewEngine(client Client, tableName string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// plan is the compiled form of a template. List writes with a fixed shape
// carry their update expression; map paths and list indices depend on the
// bound arguments and are built per execution.
type plan struct {
	op     store.Op
	column string
	update string
	names  map[string]string
}

// Compile builds the static parts of a template's request.
func (e *Engine) Compile(t store.Template) (any, error) {
	p := &plan{op: t.Op, column: t.Column}
	if t.Column != "" {
		p.names = map[string]string{"#c": t.Column}
	}

	switch t.Op {
	case store.OpPut, store.OpDelete, store.OpGet, store.OpQuery,
		store.OpListRemove, store.OpMapPut, store.OpMapRemove:
	case store.OpListAppend:
		p.update = "SET #c = list_append(if_not_exists(#c, :empty), :v)"
	case store.OpListPrepend:
		p.update = "SET #c = list_append(:v, if_not_exists(#c, :empty))"
	case store.OpListReplace:
		p.update = "SET #c = :v"
	default:
		return nil, fmt.Errorf("dynamodb engine: unsupported op %s", t.Op)
	}
	return p, nil
}

// Exec applies a mutation
func (e *Engine) Exec(ctx context.Context, s store.Statement) error {
	p, err := planOf(s)
	if err != nil {
		return err
	}
	opts := callOptions(s)

	switch p.op {
	case store.OpPut:
		item := make(map[string]types.AttributeValue, len(s.Row)+2)
		for k, v := range s.Row {
			item[k] = v
		}
		for k, v := range keyOf(s.Key) {
			item[k] = v
		}
		_, err = e.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(e.tableName),
			Item:      item,
		}, opts...)

	case store.OpDelete:
		_, err = e.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(e.tableName),
			Key:       keyOf(s.Key),
		}, opts...)

	case store.OpListAppend, store.OpListPrepend, store.OpListReplace:
		values := map[string]types.AttributeValue{":v": store.StringListValue(s.Values)}
		if p.op != store.OpListReplace {
			values[":empty"] = &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
		}
		_, err = e.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(e.tableName),
			Key:                       keyOf(s.Key),
			UpdateExpression:          aws.String(p.update),
			ExpressionAttributeNames:  p.names,
			ExpressionAttributeValues: values,
		}, opts...)

	case store.OpListRemove:
		err = e.listRemove(ctx, s, p, opts)

	case store.OpMapPut:
		err = e.mapPut(ctx, s, p, opts)

	case store.OpMapRemove:
		err = e.mapRemove(ctx, s, p, opts)

	default:
		return fmt.Errorf("dynamodb engine: %s is not a mutation", p.op)
	}

	if err != nil {
		e.logger.Debug("DynamoDB statement failed",
			zap.String("template", s.Template.Name),
			zap.String("key", s.Key.String()),
			zap.Error(err),
		)
	}
	return err
}

// Get reads one item
func (e *Engine) Get(ctx context.Context, s store.Statement) (store.Row, error) {
	if _, err := planOf(s); err != nil {
		return nil, err
	}
	out, err := e.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(e.tableName),
		Key:            keyOf(s.Key),
		ConsistentRead: aws.Bool(s.Consistency.Strong()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return store.Row(out.Item), nil
}

// Query reads every item of a partition, following pagination
func (e *Engine) Query(ctx context.Context, s store.Statement) ([]store.Row, error) {
	if _, err := planOf(s); err != nil {
		return nil, err
	}

	keyCond := expression.Key(store.AttrPK).Equal(expression.Value(s.Key.PK))
	if s.SortPrefix != "" {
		keyCond = keyCond.And(expression.Key(store.AttrSK).BeginsWith(s.SortPrefix))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(e.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(s.Consistency.Strong()),
	}

	rows := make([]store.Row, 0)
	paginator := dynamodb.NewQueryPaginator(e.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query items: %w", err)
		}
		for _, item := range page.Items {
			rows = append(rows, store.Row(item))
		}
	}
	return rows, nil
}

// listRemove removes every occurrence of the bound values. DynamoDB removes
// list elements by index only, so the current list is read and the matching
// indices are removed under a condition that they still hold those values.
func (e *Engine) listRemove(ctx context.Context, s store.Statement, p *plan, opts []func(*dynamodb.Options)) error {
	out, err := e.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(e.tableName),
		Key:                      keyOf(s.Key),
		ConsistentRead:           aws.Bool(true),
		ProjectionExpression:     aws.String("#c"),
		ExpressionAttributeNames: p.names,
	})
	if err != nil {
		return fmt.Errorf("failed to read list: %w", err)
	}
	if out.Item == nil {
		return nil
	}

	drop := make(map[string]bool, len(s.Values))
	for _, v := range s.Values {
		drop[v] = true
	}

	var (
		update expression.UpdateBuilder
		cond   expression.ConditionBuilder
		n      int
	)
	for i, v := range store.Row(out.Item).StringList(p.column) {
		if !drop[v] {
			continue
		}
		path := expression.Name(fmt.Sprintf("%s[%d]", p.column, i))
		if n == 0 {
			update = expression.Remove(path)
			cond = path.Equal(expression.Value(v))
		} else {
			update = update.Remove(path)
			cond = cond.And(path.Equal(expression.Value(v)))
		}
		n++
	}
	if n == 0 {
		return nil
	}

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = e.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(e.tableName),
		Key:                       keyOf(s.Key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, opts...)
	if isCode(err, codeConditionalCheckFailed) {
		return apperrors.NewConflict("list changed while removing values", err)
	}
	return err
}

// mapPut sets one key of a map column, creating the map when the item or the
// column does not exist yet.
func (e *Engine) mapPut(ctx context.Context, s store.Statement, p *plan, opts []func(*dynamodb.Options)) error {
	if err := checkMapKey(s.MapKey); err != nil {
		return err
	}

	setKey := func() error {
		path := expression.Name(p.column + "." + s.MapKey)
		expr, err := expression.NewBuilder().
			WithUpdate(expression.Set(path, expression.Value(s.MapValue))).
			WithCondition(expression.AttributeExists(expression.Name(p.column))).
			Build()
		if err != nil {
			return fmt.Errorf("failed to build expression: %w", err)
		}
		_, err = e.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(e.tableName),
			Key:                       keyOf(s.Key),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}, opts...)
		return err
	}

	err := setKey()
	if !isCode(err, codeConditionalCheckFailed) {
		return err
	}

	// The map column is missing: create it holding just this entry.
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name(p.column), expression.Value(map[string]string{s.MapKey: s.MapValue}))).
		WithCondition(expression.AttributeNotExists(expression.Name(p.column))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = e.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(e.tableName),
		Key:                       keyOf(s.Key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, opts...)
	if isCode(err, codeConditionalCheckFailed) {
		// Another writer created the map in between.
		return setKey()
	}
	return err
}

// mapRemove deletes one key of a map column; a missing item or column is a no-op.
func (e *Engine) mapRemove(ctx context.Context, s store.Statement, p *plan, opts []func(*dynamodb.Options)) error {
	if err := checkMapKey(s.MapKey); err != nil {
		return err
	}
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Remove(expression.Name(p.column + "." + s.MapKey))).
		WithCondition(expression.AttributeExists(expression.Name(p.column))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = e.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(e.tableName),
		Key:                      keyOf(s.Key),
		UpdateExpression:         expr.Update(),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	}, opts...)
	if isCode(err, codeConditionalCheckFailed) {
		return nil
	}
	return err
}

func planOf(s store.Statement) (*plan, error) {
	p, ok := s.Plan().(*plan)
	if !ok {
		return nil, fmt.Errorf("statement %s was not compiled by the dynamodb engine", s.Template.Name)
	}
	return p, nil
}

// callOptions disables the SDK retryer for statements that must not be replayed.
func callOptions(s store.Statement) []func(*dynamodb.Options) {
	if s.Idempotent {
		return nil
	}
	return []func(*dynamodb.Options){
		func(o *dynamodb.Options) {
			o.Retryer = aws.NopRetryer{}
		},
	}
}

func keyOf(k store.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		store.AttrPK: &types.AttributeValueMemberS{Value: k.PK},
		store.AttrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

func checkMapKey(key string) error {
	if key == "" || strings.ContainsAny(key, ".[]") {
		return fmt.Errorf("invalid map key %q", key)
	}
	return nil
}

func isCode(err error, code string) bool {
	var apiErr smithy.APIError
	return err != nil && errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
