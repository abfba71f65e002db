package awsav

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/andreyvit/avcodec"
	"github.com/aws/aws-sdk-go-v2/aws"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Client is the part of *dynamodb.Client that Table uses.
type Client interface {
	GetItem(ctx context.Context, params *ddb.GetItemInput, optFns ...func(*ddb.Options)) (*ddb.GetItemOutput, error)
	PutItem(ctx context.Context, params *ddb.PutItemInput, optFns ...func(*ddb.Options)) (*ddb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *ddb.DeleteItemInput, optFns ...func(*ddb.Options)) (*ddb.DeleteItemOutput, error)
	Query(ctx context.Context, params *ddb.QueryInput, optFns ...func(*ddb.Options)) (*ddb.QueryOutput, error)
}

var _ Client = (*ddb.Client)(nil)

// Table reads and writes avcodec-encoded values in a DynamoDB table.
type Table struct {
	Client Client
	Name   string
	Logger *slog.Logger
}

func (t *Table) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// Put encodes v and writes it, replacing any item with the same key.
func (t *Table) Put(ctx context.Context, v any) error {
	m, err := MarshalMap(v)
	if err != nil {
		return err
	}
	_, err = t.Client.PutItem(ctx, &ddb.PutItemInput{
		TableName: aws.String(t.Name),
		Item:      m,
	})
	if err != nil {
		return fmt.Errorf("%s: put: %w", t.Name, err)
	}
	t.logger().Debug("dynamodb put", "table", t.Name, "attrs", len(m))
	return nil
}

// Get reads the item whose key attributes are the fields of key and
// decodes it into out. It reports false if there is no such item.
func (t *Table) Get(ctx context.Context, key any, out any) (bool, error) {
	km, err := MarshalMap(key)
	if err != nil {
		return false, err
	}
	resp, err := t.Client.GetItem(ctx, &ddb.GetItemInput{
		TableName:      aws.String(t.Name),
		Key:            km,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("%s: get: %w", t.Name, err)
	}
	if resp.Item == nil {
		return false, nil
	}
	return true, UnmarshalMap(resp.Item, out)
}

// Delete removes the item whose key attributes are the fields of key.
func (t *Table) Delete(ctx context.Context, key any) error {
	km, err := MarshalMap(key)
	if err != nil {
		return err
	}
	_, err = t.Client.DeleteItem(ctx, &ddb.DeleteItemInput{
		TableName: aws.String(t.Name),
		Key:       km,
	})
	if err != nil {
		return fmt.Errorf("%s: delete: %w", t.Name, err)
	}
	return nil
}

// QueryInput builds a key condition query from the set fields of filter
// (see avcodec.BuildQuery). Attribute names go through
// ExpressionAttributeNames, so reserved words are safe to use.
func QueryInput(table string, filter any) (*ddb.QueryInput, error) {
	q, err := avcodec.BuildQuery(filter)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(q.Names()))
	values := make(map[string]types.AttributeValue, len(q.Names()))
	var kce string
	for i, name := range q.Names() {
		nk, vk := fmt.Sprintf("#k%d", i), fmt.Sprintf(":k%d", i)
		names[nk] = name
		values[vk] = ToSDK(q.ExpressionAttributeValues[":"+name])
		if i > 0 {
			kce += " AND "
		}
		kce += nk + " = " + vk
	}
	return &ddb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    aws.String(kce),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}, nil
}

// Query runs a key condition query built from filter and passes every item
// of every page to decode. pageSize of 0 lets DynamoDB pick the page size.
func (t *Table) Query(ctx context.Context, filter any, pageSize int32, decode func(item avcodec.Item) error) error {
	input, err := QueryInput(t.Name, filter)
	if err != nil {
		return err
	}
	if pageSize > 0 {
		input.Limit = aws.Int32(pageSize)
	}
	for {
		resp, err := t.Client.Query(ctx, input)
		if err != nil {
			return fmt.Errorf("%s: query: %w", t.Name, err)
		}
		t.logger().Debug("dynamodb query page", "table", t.Name, "count", resp.Count)
		for _, m := range resp.Items {
			item, err := ItemFromSDK(m)
			if err != nil {
				return fmt.Errorf("%s: query: %w", t.Name, err)
			}
			if err := decode(item); err != nil {
				return err
			}
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return nil
		}
		input.ExclusiveStartKey = resp.LastEvaluatedKey
	}
}

// QueryAll collects all items matching filter into a slice of T.
func QueryAll[T any](ctx context.Context, t *Table, filter any) ([]T, error) {
	var result []T
	err := t.Query(ctx, filter, 0, func(item avcodec.Item) error {
		var v T
		if err := avcodec.Unmarshal(item, &v); err != nil {
			return err
		}
		result = append(result, v)
		return nil
	})
	return result, err
}
