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

// Package covering computes the minimal, codec-agnostic set of cells
// that cover a spherical cap (center + radius) or a longitude-wrapping
// bounding box, bounded by a maximum cell count.
package covering

import (
	"sort"

	"github.com/samber/lo"

	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec"
)

// DefaultMaxCells is the default cap on covering size.
const DefaultMaxCells = 500

// Result is the outcome of a covering computation: an ordered,
// deduplicated set of cells sized at most the requested maxCells.
type Result struct {
	Cells     []cellcodec.CellID
	Truncated bool
}

// CoverCap computes the covering of a spherical cap centered on center
// with the given radius, at the given precision. If the natural
// covering exceeds maxCells, the call fails with geoquery.ErrTooManyCells
// unless allowTruncation is true, in which case the result is truncated
// to the maxCells cells closest to center and Truncated is set.
func CoverCap(codec cellcodec.Codec, center geoquery.Point, radiusKm float64, precision, maxCells int, allowTruncation bool) (Result, error) {
	if radiusKm <= 0 {
		return Result{}, geoquery.NewError(geoquery.ErrInvalidInput, "radiusKm must be > 0")
	}
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}

	startID, err := codec.Encode(center, precision)
	if err != nil {
		return Result{}, geoquery.WrapError(geoquery.ErrInvalidInput, "encoding cap center", err)
	}
	edge := codec.EdgeLengthKm(precision)
	acceptRadius := radiusKm + edge

	candidates, err := expandRing(codec, startID, func(p geoquery.Point) bool {
		return geoquery.HaversineKm(center, p) <= acceptRadius
	})
	if err != nil {
		return Result{}, err
	}

	kept := make([]cellcodec.CellID, 0, len(candidates))
	for _, id := range candidates {
		p, err := codec.Decode(id)
		if err != nil {
			continue
		}
		if geoquery.HaversineKm(center, p) <= radiusKm+edge {
			kept = append(kept, id)
		}
	}
	kept = lo.Uniq(kept)

	return finalize(codec, kept, center, maxCells, allowTruncation)
}

// CoverBBox computes the covering of a (possibly antimeridian-wrapping)
// bounding box at the given precision.
func CoverBBox(codec cellcodec.Codec, box geoquery.BoundingBox, precision, maxCells int, allowTruncation bool) (Result, error) {
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}

	center := box.Center()
	startID, err := codec.Encode(center, precision)
	if err != nil {
		return Result{}, geoquery.WrapError(geoquery.ErrInvalidInput, "encoding bbox center", err)
	}

	// Bound the BFS radius generously: the box's far corner distance
	// from its own center, plus one cell edge of slack.
	edge := codec.EdgeLengthKm(precision)
	farKm := 0.0
	for _, corner := range []geoquery.Point{
		box.SW, box.NE,
		{Lat: box.SW.Lat, Lon: box.NE.Lon},
		{Lat: box.NE.Lat, Lon: box.SW.Lon},
	} {
		farKm = max(farKm, geoquery.HaversineKm(center, corner))
	}
	boundKm := farKm + edge

	candidates, err := expandRing(codec, startID, func(p geoquery.Point) bool {
		return geoquery.HaversineKm(center, p) <= boundKm
	})
	if err != nil {
		return Result{}, err
	}

	kept := make([]cellcodec.CellID, 0, len(candidates))
	for _, id := range candidates {
		p, err := codec.Decode(id)
		if err != nil {
			continue
		}
		if box.Contains(p) {
			kept = append(kept, id)
		}
	}
	kept = lo.Uniq(kept)

	return finalize(codec, kept, center, maxCells, allowTruncation)
}

// expandRing performs a breadth-first neighbor-ring expansion from
// startID, visiting a candidate only once, and stops expanding a branch
// once the branch's cells no longer satisfy withinBound. It returns
// every visited cell that ever satisfied withinBound at enumeration
// time (final acceptance is a separate pass by the caller).
func expandRing(codec cellcodec.Codec, startID cellcodec.CellID, withinBound func(geoquery.Point) bool) ([]cellcodec.CellID, error) {
	visited := map[cellcodec.CellID]bool{startID: true}
	queue := []cellcodec.CellID{startID}
	accepted := []cellcodec.CellID{startID}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		neighbors, err := codec.Neighbors(cur)
		if err != nil {
			return nil, geoquery.WrapError(geoquery.ErrInvalidInput, "enumerating neighbors", err)
		}
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			p, err := codec.Decode(n)
			if err != nil {
				continue
			}
			if !withinBound(p) {
				continue
			}
			accepted = append(accepted, n)
			queue = append(queue, n)
		}
	}
	return accepted, nil
}

// finalize orders candidates by ascending distance to center (stable
// tie-break on cell id), and truncates or fails per maxCells.
func finalize(codec cellcodec.Codec, candidates []cellcodec.CellID, center geoquery.Point, maxCells int, allowTruncation bool) (Result, error) {
	type scored struct {
		id   cellcodec.CellID
		dist float64
	}
	withDistance := lo.Map(candidates, func(id cellcodec.CellID, _ int) scored {
		p, err := codec.Decode(id)
		if err != nil {
			return scored{id: id, dist: -1}
		}
		return scored{id: id, dist: geoquery.HaversineKm(center, p)}
	})
	withDistance = lo.Filter(withDistance, func(s scored, _ int) bool { return s.dist >= 0 })

	sort.SliceStable(withDistance, func(i, j int) bool {
		if withDistance[i].dist != withDistance[j].dist {
			return withDistance[i].dist < withDistance[j].dist
		}
		return withDistance[i].id < withDistance[j].id
	})

	truncated := false
	if len(withDistance) > maxCells {
		if !allowTruncation {
			return Result{}, geoquery.NewError(geoquery.ErrTooManyCells, "covering exceeds maxCells")
		}
		withDistance = withDistance[:maxCells]
		truncated = true
	}

	ids := lo.Map(withDistance, func(s scored, _ int) cellcodec.CellID { return s.id })
	return Result{Cells: ids, Truncated: truncated}, nil
}
