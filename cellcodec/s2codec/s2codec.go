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

// Package s2codec implements cellcodec.Codec using Google's S2
// hierarchical cell decomposition, via github.com/golang/geo/s2.
package s2codec

import (
	"fmt"
	"strconv"

	"github.com/golang/geo/s2"

	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec"
)

// maxLevel is the deepest S2 leaf cell level (s2 does not export this
// constant).
const maxLevel = 30

// approxEdgeLengthKm maps S2 level to average cell edge length in
// kilometers (S2's average-area-based edge length table).
var approxEdgeLengthKm = []float64{
	7842, 3921, 1825, 840, 432, 210, 104, 52, 26, 13,
	6.5, 3.25, 1.62, 0.81, 0.40, 0.30, 0.15, 0.10, 0.051, 0.025,
	0.013, 0.0064, 0.0032, 0.0016, 0.0008, 0.0004, 0.0002, 0.0001, 0.00005, 0.000025, 0.0000125,
}

// Codec implements cellcodec.Codec for the S2 scheme, rendering cell
// ids as unsigned decimal (S2's raw 64-bit position).
type Codec struct{}

// New constructs an S2 Codec.
func New() Codec { return Codec{} }

func (Codec) Scheme() cellcodec.Scheme { return cellcodec.SchemeS2 }
func (Codec) MinPrecision() int        { return 0 }
func (Codec) MaxPrecision() int        { return maxLevel }

func (c Codec) Encode(p geoquery.Point, precision int) (cellcodec.CellID, error) {
	if precision < c.MinPrecision() || precision > c.MaxPrecision() {
		return "", fmt.Errorf("s2codec: level %d out of range [%d, %d]", precision, c.MinPrecision(), c.MaxPrecision())
	}
	leaf := s2.CellIDFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon))
	return cellcodec.CellID(strconv.FormatUint(uint64(leaf.Parent(precision)), 10)), nil
}

func (Codec) Decode(id cellcodec.CellID) (geoquery.Point, error) {
	cid, err := parseCellID(id)
	if err != nil {
		return geoquery.Point{}, err
	}
	ll := cid.LatLng()
	return geoquery.NewPoint(ll.Lat.Degrees(), ll.Lng.Degrees()), nil
}

func (Codec) PrecisionOf(id cellcodec.CellID) (int, error) {
	cid, err := parseCellID(id)
	if err != nil {
		return 0, err
	}
	return cid.Level(), nil
}

// Neighbors returns the up-to-8 cells sharing an edge or a vertex with
// id (at face corners the same neighbor may appear twice).
func (Codec) Neighbors(id cellcodec.CellID) ([]cellcodec.CellID, error) {
	cid, err := parseCellID(id)
	if err != nil {
		return nil, err
	}
	vn := cid.AllNeighbors(cid.Level())
	out := make([]cellcodec.CellID, 0, len(vn))
	for _, n := range vn {
		if n == cid {
			continue
		}
		out = append(out, cellcodec.CellID(strconv.FormatUint(uint64(n), 10)))
	}
	return out, nil
}

// Parent returns the ancestor cell at targetPrecision, obtained by
// masking the trailing position bits (s2.CellID.Parent).
func (c Codec) Parent(id cellcodec.CellID, targetPrecision int) (cellcodec.CellID, error) {
	cid, err := parseCellID(id)
	if err != nil {
		return "", err
	}
	if targetPrecision < c.MinPrecision() || targetPrecision > cid.Level() {
		return "", fmt.Errorf("s2codec: cannot take parent of level %d cell at level %d", cid.Level(), targetPrecision)
	}
	return cellcodec.CellID(strconv.FormatUint(uint64(cid.Parent(targetPrecision)), 10)), nil
}

func (Codec) EdgeLengthKm(precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	if precision >= len(approxEdgeLengthKm) {
		precision = len(approxEdgeLengthKm) - 1
	}
	return approxEdgeLengthKm[precision]
}

// Uint64Pos exposes the CellID's raw 64-bit position as a uint64,
// for callers that already hold the decimal string and want the
// numeric form without round-tripping through strconv themselves.
func Uint64Pos(id cellcodec.CellID) (uint64, error) {
	cid, err := parseCellID(id)
	if err != nil {
		return 0, err
	}
	return uint64(cid), nil
}

// parseCellID accepts the decimal rendering this package writes, and
// falls back to S2's hex token for ids produced elsewhere. Decimal is
// tried first: a token of only base-10 digits is ambiguous (also a
// valid hex token), and decimal is this package's canonical rendering.
func parseCellID(id cellcodec.CellID) (s2.CellID, error) {
	if v, err := strconv.ParseUint(string(id), 10, 64); err == nil {
		if cid := s2.CellID(v); cid.IsValid() {
			return cid, nil
		}
	}
	if cid := s2.CellIDFromToken(string(id)); cid.IsValid() {
		return cid, nil
	}
	return 0, fmt.Errorf("s2codec: invalid cell id %q", id)
}
