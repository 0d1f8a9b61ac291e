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

// Package geohashcodec implements cellcodec.Codec using base-32 GeoHash
// strings, via github.com/mmcloughlin/geohash.
package geohashcodec

import (
	"fmt"

	"github.com/mmcloughlin/geohash"

	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec"
)

// approxEdgeLengthKm maps GeoHash precision (string length) to the
// longer side of the cell's bounding box in kilometers. Values taken
// from the well-known GeoHash precision table.
var approxEdgeLengthKm = map[int]float64{
	1:  5009.4,
	2:  1252.3,
	3:  156.5,
	4:  39.1,
	5:  4.89,
	6:  1.22,
	7:  0.153,
	8:  0.038,
	9:  0.00477,
	10: 0.0012,
	11: 0.000149,
	12: 0.0000372,
}

// Codec implements cellcodec.Codec for the GeoHash scheme.
type Codec struct{}

// New constructs a GeoHash Codec.
func New() Codec { return Codec{} }

func (Codec) Scheme() cellcodec.Scheme { return cellcodec.SchemeGeoHash }
func (Codec) MinPrecision() int        { return 1 }
func (Codec) MaxPrecision() int        { return 12 }

func (c Codec) Encode(p geoquery.Point, precision int) (cellcodec.CellID, error) {
	if precision < c.MinPrecision() || precision > c.MaxPrecision() {
		return "", fmt.Errorf("geohashcodec: precision %d out of range [%d, %d]", precision, c.MinPrecision(), c.MaxPrecision())
	}
	hash := geohash.EncodeWithPrecision(p.Lat, p.Lon, uint(precision))
	return cellcodec.CellID(hash), nil
}

func (Codec) Decode(id cellcodec.CellID) (geoquery.Point, error) {
	if id == "" {
		return geoquery.Point{}, fmt.Errorf("geohashcodec: empty cell id")
	}
	lat, lon := geohash.DecodeCenter(string(id))
	return geoquery.NewPoint(lat, lon), nil
}

func (Codec) PrecisionOf(id cellcodec.CellID) (int, error) {
	if id == "" {
		return 0, fmt.Errorf("geohashcodec: empty cell id")
	}
	return len(id), nil
}

// Neighbors returns the 8 surrounding cells at the same precision as id.
func (Codec) Neighbors(id cellcodec.CellID) ([]cellcodec.CellID, error) {
	if id == "" {
		return nil, fmt.Errorf("geohashcodec: empty cell id")
	}
	raw := geohash.Neighbors(string(id))
	out := make([]cellcodec.CellID, len(raw))
	for i, n := range raw {
		out[i] = cellcodec.CellID(n)
	}
	return out, nil
}

// Parent returns the targetPrecision-character prefix of id, per the
// GeoHash prefix-containment relation: the n-char prefix of a length-m
// hash (n <= m) is the enclosing cell at precision n.
func (c Codec) Parent(id cellcodec.CellID, targetPrecision int) (cellcodec.CellID, error) {
	if targetPrecision < c.MinPrecision() || targetPrecision > len(id) {
		return "", fmt.Errorf("geohashcodec: cannot take parent of %q at precision %d", id, targetPrecision)
	}
	return id[:targetPrecision], nil
}

func (Codec) EdgeLengthKm(precision int) float64 {
	if km, ok := approxEdgeLengthKm[precision]; ok {
		return km
	}
	if precision > 12 {
		return approxEdgeLengthKm[12]
	}
	return approxEdgeLengthKm[1]
}
