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

// Package distsort orders items by ascending distance to a reference
// point, stably and with a deterministic tie-break.
package distsort

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/spothero/geoquery"
)

// ByDistance sorts items by ascending haversine distance from
// extractPoint(item) to reference, stable, tie-broken lexicographically
// on tieBreakKey's string rendering so that paginated and
// non-paginated orderings of the same items agree regardless of the
// order items were collected in. tieBreakKey is typically an entity's
// primary key, which callers thread through as an opaque any (it is
// also used as a map key for dedup); items is sorted in place and also
// returned for chaining.
func ByDistance[T any](
	items []T,
	extractPoint func(T) geoquery.Point,
	reference geoquery.Point,
	tieBreakKey func(T) any,
) []T {
	type keyed struct {
		item T
		dist float64
		tie  string
	}
	scored := lo.Map(items, func(item T, _ int) keyed {
		return keyed{
			item: item,
			dist: geoquery.HaversineKm(reference, extractPoint(item)),
			tie:  fmt.Sprintf("%v", tieBreakKey(item)),
		}
	})

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].dist != scored[j].dist {
			return scored[i].dist < scored[j].dist
		}
		return scored[i].tie < scored[j].tie
	})

	out := lo.Map(scored, func(k keyed, _ int) T { return k.item })
	copy(items, out)
	return items
}
