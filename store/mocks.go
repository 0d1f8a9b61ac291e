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

package store

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec"
)

// MockDriver mocks Driver[T] for use in tests, following the same
// mock.Mock embedding used by the rest of this organization's mocks.
type MockDriver[T any] struct {
	mock.Mock
}

// Query is a mocked version of Driver.Query.
func (m *MockDriver[T]) Query(ctx context.Context, q Query) (Page[T], error) {
	args := m.Called(ctx, q)
	page, _ := args.Get(0).(Page[T])
	return page, args.Error(1)
}

// MockEntityCodec mocks EntityCodec[T] for use in tests.
type MockEntityCodec[T any] struct {
	mock.Mock
}

// ToRecord is a mocked version of EntityCodec.ToRecord.
func (m *MockEntityCodec[T]) ToRecord(entity T) (map[string]any, error) {
	args := m.Called(entity)
	record, _ := args.Get(0).(map[string]any)
	return record, args.Error(1)
}

// FromRecord is a mocked version of EntityCodec.FromRecord.
func (m *MockEntityCodec[T]) FromRecord(record map[string]any) (T, error) {
	args := m.Called(record)
	entity, _ := args.Get(0).(T)
	return entity, args.Error(1)
}

// EncodeLocation is a mocked version of EntityCodec.EncodeLocation.
func (m *MockEntityCodec[T]) EncodeLocation(
	record map[string]any, attr string, point geoquery.Point, codec cellcodec.Codec, precision int, nullable, present bool,
) error {
	args := m.Called(record, attr, point, codec, precision, nullable, present)
	return args.Error(0)
}
