// Copyright 2024 SpotHero
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dynamodb is a concrete store.Driver backed by
// github.com/aws/aws-sdk-go-v2/service/dynamodb: a cell id is the
// partition key (or a GSI hash key) of a table, and a per-cell query
// is a DynamoDB Query against that partition. This is the only package
// in this module that imports the AWS SDK; the query core never does.
package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/spothero/geoquery/cellcodec"
	"github.com/spothero/geoquery/store"
)

// Config names the table and cell-id attribute a Driver queries
// against: a small, serializable config struct that produces a
// client/query shape rather than wrapping the SDK client itself.
type Config struct {
	TableName      string
	IndexName      string
	CellAttr       string
	ConsistentRead bool
	PageLimit      int32
}

// QueryBuilder builds a per-cell Query against a single DynamoDB table
// or GSI, keyed on CellAttr.
type QueryBuilder struct {
	cfg Config
}

// NewQueryBuilder returns a store.QueryBuilder that issues a DynamoDB
// Query for the partition identified by a cell id.
func NewQueryBuilder(cfg Config) *QueryBuilder {
	return &QueryBuilder{cfg: cfg}
}

type cellQuery struct {
	input *awsdynamodb.QueryInput
}

// Build implements store.QueryBuilder.
func (b *QueryBuilder) Build(cell cellcodec.CellID, paginationHint []byte) (store.Query, error) {
	input := &awsdynamodb.QueryInput{
		TableName:              aws.String(b.cfg.TableName),
		KeyConditionExpression: aws.String("#cell = :cell"),
		ExpressionAttributeNames: map[string]string{
			"#cell": b.cfg.CellAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cell": &types.AttributeValueMemberS{Value: string(cell)},
		},
		ConsistentRead: aws.Bool(b.cfg.ConsistentRead),
	}
	if b.cfg.IndexName != "" {
		input.IndexName = aws.String(b.cfg.IndexName)
	}
	if b.cfg.PageLimit > 0 {
		input.Limit = aws.Int32(b.cfg.PageLimit)
	}
	if len(paginationHint) > 0 {
		startKey, err := decodeCursor(paginationHint)
		if err != nil {
			return nil, fmt.Errorf("decoding pagination cursor: %w", err)
		}
		input.ExclusiveStartKey = startKey
	}
	return &cellQuery{input: input}, nil
}

// Driver implements store.Driver[T] against a DynamoDB table, decoding
// each returned item with an EntityCodec.
type Driver[T any] struct {
	Client *awsdynamodb.Client
	Codec  store.EntityCodec[T]
}

// New constructs a Driver from an AWS SDK v2 client and an EntityCodec.
func New[T any](client *awsdynamodb.Client, codec store.EntityCodec[T]) *Driver[T] {
	return &Driver[T]{Client: client, Codec: codec}
}

// Query implements store.Driver. A ProvisionedThroughputExceededException
// or RequestLimitExceeded is reported as retryable; everything else
// (validation errors, missing table, expired credentials) is fatal.
func (d *Driver[T]) Query(ctx context.Context, q store.Query) (store.Page[T], error) {
	cq, ok := q.(*cellQuery)
	if !ok {
		return store.Page[T]{}, &store.DriverError{Err: fmt.Errorf("dynamodb: unexpected query type %T", q)}
	}

	out, err := d.Client.Query(ctx, cq.input)
	if err != nil {
		return store.Page[T]{}, &store.DriverError{Retryable: isRetryable(err), Err: err}
	}

	items := make([]T, 0, len(out.Items))
	for _, av := range out.Items {
		record, err := fromAttributeValueMap(av)
		if err != nil {
			return store.Page[T]{}, &store.DriverError{Err: fmt.Errorf("decoding item: %w", err)}
		}
		entity, err := d.Codec.FromRecord(record)
		if err != nil {
			return store.Page[T]{}, &store.DriverError{Err: fmt.Errorf("decoding entity: %w", err)}
		}
		items = append(items, entity)
	}

	var cursor []byte
	if len(out.LastEvaluatedKey) > 0 {
		cursor, err = encodeCursor(out.LastEvaluatedKey)
		if err != nil {
			return store.Page[T]{}, &store.DriverError{Err: fmt.Errorf("encoding pagination cursor: %w", err)}
		}
	}
	return store.Page[T]{Items: items, Cursor: cursor}, nil
}

func isRetryable(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return true
	}
	var limited *types.RequestLimitExceeded
	return errors.As(err, &limited)
}

// encodeCursor and decodeCursor round-trip DynamoDB's
// LastEvaluatedKey/ExclusiveStartKey through the opaque []byte cursor
// store.Page and store.QueryBuilder exchange, so the query core never
// needs to know about types.AttributeValue.
func encodeCursor(key map[string]types.AttributeValue) ([]byte, error) {
	plain, err := fromAttributeValueMap(key)
	if err != nil {
		return nil, err
	}
	return json.Marshal(plain)
}

func decodeCursor(cursor []byte) (map[string]types.AttributeValue, error) {
	var plain map[string]any
	if err := json.Unmarshal(cursor, &plain); err != nil {
		return nil, err
	}
	return toAttributeValueMap(plain)
}
