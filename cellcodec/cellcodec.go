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

// Package cellcodec defines the capability set the query core depends on
// for converting points to cell identifiers and back. Concrete schemes
// (GeoHash, H3, S2) live in sibling packages and are chosen once at
// query start; they are never swapped mid-query.
package cellcodec

import "github.com/spothero/geoquery"

// CellID is an opaque cell identifier. Its lexicographic structure is
// scheme-defined; callers should not parse it.
type CellID string

// Scheme identifies which coding scheme produced a CellID.
type Scheme string

// Supported coding schemes.
const (
	SchemeGeoHash Scheme = "geohash"
	SchemeH3      Scheme = "h3"
	SchemeS2      Scheme = "s2"
)

// Codec converts points to cell identifiers at a given precision and
// back, and exposes the neighbor/containment relations the covering
// algorithm needs. Implementations must be safe for concurrent use.
type Codec interface {
	// Scheme identifies which coding scheme this Codec implements.
	Scheme() Scheme

	// MinPrecision and MaxPrecision bound the precision values Encode
	// and EdgeLengthKm accept.
	MinPrecision() int
	MaxPrecision() int

	// Encode is a total function: a point outside the valid domain is
	// clamped, never rejected.
	Encode(p geoquery.Point, precision int) (CellID, error)

	// Decode returns the cell's canonical center. Encode(Decode(id),
	// PrecisionOf(id)) == id for every id this Codec produced.
	Decode(id CellID) (geoquery.Point, error)

	// PrecisionOf recovers the precision a CellID was encoded at.
	PrecisionOf(id CellID) (int, error)

	// Neighbors returns the immediate ring of cells around id: up to 6
	// for H3, up to 8 for S2/GeoHash, fewer at face/pole discontinuities.
	Neighbors(id CellID) ([]CellID, error)

	// Parent returns the enclosing cell at targetPrecision. It returns
	// an error if the scheme does not support a containment hierarchy
	// at that pair of precisions (GeoHash: targetPrecision must be <=
	// the id's precision; S2/H3: targetPrecision must be a coarser
	// level/resolution).
	Parent(id CellID, targetPrecision int) (CellID, error)

	// EdgeLengthKm returns the approximate cell edge length at a given
	// precision, used by CellCovering to bound cell counts.
	EdgeLengthKm(precision int) float64
}
