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

// Package store defines the narrow external collaborators the query
// core depends on: a keyed-lookup store driver and an entity/record
// codec. Concrete implementations (e.g. storedrivers/dynamodb) and the
// attribute-value serialization of surrounding entity fields are
// deliberately out of scope here; this package only names the
// interfaces the core consumes.
package store

import (
	"context"

	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec"
)

// Query is the opaque value a QueryBuilder produces and a Driver
// consumes. The core never interprets it beyond threading a returned
// cursor back into the next call for the same cell.
type Query any

// Page is one page of results from a single per-cell store query.
type Page[T any] struct {
	Items []T
	// Cursor is the store-native resume position. A nil/empty Cursor
	// means the per-cell query is exhausted.
	Cursor []byte
}

// Driver is the minimal capability the query core requires of a
// key-value store: execute a keyed lookup and report whether the
// result is paged. Errors are classified retryable (throttling,
// timeout) or fatal by DriverError.
type Driver[T any] interface {
	Query(ctx context.Context, q Query) (Page[T], error)
}

// DriverError classifies a store failure as retryable or fatal.
type DriverError struct {
	Retryable bool
	Err       error
}

func (e *DriverError) Error() string { return e.Err.Error() }
func (e *DriverError) Unwrap() error { return e.Err }

// QueryBuilder binds a cell id (and an optional store-native pagination
// hint, for resuming a per-cell query already in progress) into a
// Query. Implementations typically bind the cell id into the partition
// key predicate of an underlying store query.
type QueryBuilder interface {
	Build(cell cellcodec.CellID, paginationHint []byte) (Query, error)
}

// QueryBuilderFunc adapts a function to a QueryBuilder.
type QueryBuilderFunc func(cell cellcodec.CellID, paginationHint []byte) (Query, error)

// Build implements QueryBuilder.
func (f QueryBuilderFunc) Build(cell cellcodec.CellID, paginationHint []byte) (Query, error) {
	return f(cell, paginationHint)
}

// EntityCodec converts between a persisted record and an entity, and
// projects an entity's point onto the cell-id attribute at a chosen
// precision. The core does not own this; it only requires that the
// record field name bound by a QueryBuilder matches what EncodeLocation
// writes.
//
// EncodeLocation's default/zero-point behavior: when nullable is
// false, the location's cell id is always encoded, even for the zero
// point; when nullable is true and present reports the point is
// absent, the attribute is omitted entirely.
type EntityCodec[T any] interface {
	ToRecord(entity T) (map[string]any, error)
	FromRecord(record map[string]any) (T, error)
	// EncodeLocation writes the cell-id attribute for point into record.
	// present indicates whether the entity's location field actually
	// holds a value; it is only consulted when nullable is true.
	EncodeLocation(record map[string]any, attr string, point geoquery.Point, codec cellcodec.Codec, precision int, nullable, present bool) error
}
