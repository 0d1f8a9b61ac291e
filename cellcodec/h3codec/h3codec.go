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

// Package h3codec implements cellcodec.Codec using Uber's H3 hexagonal
// hierarchical index, via github.com/uber/h3-go/v4.
package h3codec

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec"
)

// approxEdgeLengthKm maps H3 resolution to average hexagon edge length
// in kilometers, taken from Uber's published H3 resolution table.
var approxEdgeLengthKm = []float64{
	1107.712, 418.676, 158.244, 59.811, 22.606, 8.544, 3.229,
	1.221, 0.462, 0.174, 0.0659, 0.0249, 0.00945, 0.00357, 0.00135, 0.0005,
}

// Codec implements cellcodec.Codec for the H3 scheme.
type Codec struct{}

// New constructs an H3 Codec.
func New() Codec { return Codec{} }

func (Codec) Scheme() cellcodec.Scheme { return cellcodec.SchemeH3 }
func (Codec) MinPrecision() int        { return 0 }
func (Codec) MaxPrecision() int        { return 15 }

func (c Codec) Encode(p geoquery.Point, precision int) (cellcodec.CellID, error) {
	if precision < c.MinPrecision() || precision > c.MaxPrecision() {
		return "", fmt.Errorf("h3codec: resolution %d out of range [%d, %d]", precision, c.MinPrecision(), c.MaxPrecision())
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), precision)
	if err != nil {
		return "", fmt.Errorf("h3codec: encode: %w", err)
	}
	return cellcodec.CellID(cell.String()), nil
}

func (Codec) Decode(id cellcodec.CellID) (geoquery.Point, error) {
	cell, err := parseCell(id)
	if err != nil {
		return geoquery.Point{}, err
	}
	ll, err := cell.LatLng()
	if err != nil {
		return geoquery.Point{}, fmt.Errorf("h3codec: decode: %w", err)
	}
	return geoquery.NewPoint(ll.Lat, ll.Lng), nil
}

func (Codec) PrecisionOf(id cellcodec.CellID) (int, error) {
	cell, err := parseCell(id)
	if err != nil {
		return 0, err
	}
	return cell.Resolution(), nil
}

// Neighbors returns the hexagonal ring around id: 6 cells, or fewer at
// pentagon/face discontinuities.
func (Codec) Neighbors(id cellcodec.CellID) ([]cellcodec.CellID, error) {
	cell, err := parseCell(id)
	if err != nil {
		return nil, err
	}
	disk, err := cell.GridDisk(1)
	if err != nil {
		return nil, fmt.Errorf("h3codec: neighbors: %w", err)
	}
	out := make([]cellcodec.CellID, 0, len(disk)-1)
	for _, n := range disk {
		if n == cell {
			continue
		}
		out = append(out, cellcodec.CellID(n.String()))
	}
	return out, nil
}

// Parent returns the coarser-resolution cell containing id. H3 has no
// cross-resolution prefix relation on the rendered string; containment
// is computed natively by the library.
func (c Codec) Parent(id cellcodec.CellID, targetPrecision int) (cellcodec.CellID, error) {
	cell, err := parseCell(id)
	if err != nil {
		return "", err
	}
	if targetPrecision < c.MinPrecision() || targetPrecision > cell.Resolution() {
		return "", fmt.Errorf("h3codec: cannot take parent of resolution %d cell at resolution %d", cell.Resolution(), targetPrecision)
	}
	parent, err := cell.Parent(targetPrecision)
	if err != nil {
		return "", fmt.Errorf("h3codec: parent: %w", err)
	}
	return cellcodec.CellID(parent.String()), nil
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

func parseCell(id cellcodec.CellID) (h3.Cell, error) {
	cell := h3.Cell(0)
	c, err := h3.IndexFromString(string(id))
	if err != nil {
		return cell, fmt.Errorf("h3codec: parse cell id %q: %w", id, err)
	}
	if !c.IsValid() {
		return cell, fmt.Errorf("h3codec: invalid cell id %q", id)
	}
	return c, nil
}
