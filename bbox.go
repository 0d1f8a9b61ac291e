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

package geoquery

import "math"

// BoundingBox is a latitude/longitude rectangle. Longitude wrap across
// the antimeridian is legal and is signalled by SW.Lon > NE.Lon, in
// which case the box spans [SW.Lon, 180] union [-180, NE.Lon].
// Latitude never wraps: SW.Lat <= NE.Lat always.
type BoundingBox struct {
	SW Point
	NE Point
}

// Wraps reports whether b crosses the antimeridian.
func (b BoundingBox) Wraps() bool {
	return b.SW.Lon > b.NE.Lon
}

// Contains reports whether p lies within b, honoring antimeridian wrap.
func (b BoundingBox) Contains(p Point) bool {
	if p.Lat < b.SW.Lat || p.Lat > b.NE.Lat {
		return false
	}
	if b.Wraps() {
		return p.Lon >= b.SW.Lon || p.Lon <= b.NE.Lon
	}
	return p.Lon >= b.SW.Lon && p.Lon <= b.NE.Lon
}

// Center returns the geometric midpoint of b, accounting for
// antimeridian wrap.
func (b BoundingBox) Center() Point {
	lat := (b.SW.Lat + b.NE.Lat) / 2
	if !b.Wraps() {
		return Point{Lat: lat, Lon: (b.SW.Lon + b.NE.Lon) / 2}
	}
	// Wrapping span: midpoint walking eastward from SW.Lon through 180.
	span := (180 - b.SW.Lon) + (b.NE.Lon + 180)
	lon := b.SW.Lon + span/2
	if lon > 180 {
		lon -= 360
	}
	return Point{Lat: lat, Lon: lon}
}

// BoundingBoxFromCenterRadius expands a center point by radiusKm in every
// direction, producing a box that may wrap the antimeridian or, near a
// pole, become longitude-full ([-180, 180]).
func BoundingBoxFromCenterRadius(center Point, radiusKm float64) BoundingBox {
	latDelta := radiusKm / 111.0
	minLat := center.Lat - latDelta
	maxLat := center.Lat + latDelta

	if minLat <= -90 || maxLat >= 90 {
		// Expansion reaches a pole: every longitude is within range.
		return BoundingBox{
			SW: Point{Lat: math.Max(minLat, -90), Lon: -180},
			NE: Point{Lat: math.Min(maxLat, 90), Lon: 180},
		}
	}

	cosLat := math.Cos(degToRad(center.Lat))
	if cosLat < 1e-9 {
		cosLat = 1e-9
	}
	lonDelta := radiusKm / (111.0 * cosLat)
	if lonDelta >= 180 {
		return BoundingBox{
			SW: Point{Lat: minLat, Lon: -180},
			NE: Point{Lat: maxLat, Lon: 180},
		}
	}

	minLon := center.Lon - lonDelta
	maxLon := center.Lon + lonDelta
	if minLon < -180 || maxLon > 180 {
		// Wrap: normalize into [-180, 180]; the normalized SW.Lon then
		// exceeds NE.Lon, which signals wrap per the data model.
		minLon = normalizeLon(minLon)
		maxLon = normalizeLon(maxLon)
		return BoundingBox{
			SW: Point{Lat: minLat, Lon: minLon},
			NE: Point{Lat: maxLat, Lon: maxLon},
		}
	}

	return BoundingBox{
		SW: Point{Lat: minLat, Lon: minLon},
		NE: Point{Lat: maxLat, Lon: maxLon},
	}
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
