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

package dynamodb

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec"
)

// StructCodec is a store.EntityCodec backed by attributevalue's
// `dynamodbav`-tagged struct (un)marshaling, for callers whose entity
// type is a plain struct and needs no custom record shaping.
type StructCodec[T any] struct{}

// ToRecord implements store.EntityCodec.
func (StructCodec[T]) ToRecord(entity T) (map[string]any, error) {
	av, err := attributevalue.MarshalMap(entity)
	if err != nil {
		return nil, fmt.Errorf("marshaling entity: %w", err)
	}
	return fromAttributeValueMap(av)
}

// FromRecord implements store.EntityCodec.
func (StructCodec[T]) FromRecord(record map[string]any) (T, error) {
	var entity T
	av, err := toAttributeValueMap(record)
	if err != nil {
		return entity, fmt.Errorf("marshaling record: %w", err)
	}
	if err := attributevalue.UnmarshalMap(av, &entity); err != nil {
		return entity, fmt.Errorf("unmarshaling entity: %w", err)
	}
	return entity, nil
}

// EncodeLocation implements store.EntityCodec's resolution of the
// nullable/zero-point open question: the attribute is written whenever
// the field is non-nullable or present, and omitted otherwise.
func (StructCodec[T]) EncodeLocation(
	record map[string]any, attr string, point geoquery.Point, codec cellcodec.Codec, precision int, nullable, present bool,
) error {
	if nullable && !present {
		delete(record, attr)
		return nil
	}
	id, err := codec.Encode(point, precision)
	if err != nil {
		return fmt.Errorf("encoding location attribute %q: %w", attr, err)
	}
	record[attr] = string(id)
	return nil
}
