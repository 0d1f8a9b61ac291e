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
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fromAttributeValueMap and toAttributeValueMap convert between a
// DynamoDB item and the map[string]any representation store.EntityCodec
// and the generic query core operate on.
func fromAttributeValueMap(item map[string]types.AttributeValue) (map[string]any, error) {
	out := make(map[string]any, len(item))
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toAttributeValueMap(record map[string]any) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(record)
}
