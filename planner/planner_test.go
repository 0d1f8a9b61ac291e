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

package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec"
	"github.com/spothero/geoquery/cellcodec/geohashcodec"
	"github.com/spothero/geoquery/store"
)

type testEntity struct {
	id  string
	lat float64
	lon float64
}

func validOptions() Options[testEntity] {
	center := geoquery.NewPoint(41.8781, -87.6298)
	return Options[testEntity]{
		LocationSelector: func(e testEntity) geoquery.Point { return geoquery.NewPoint(e.lat, e.lon) },
		PrimaryKey:       func(e testEntity) any { return e.id },
		Codec:            geohashcodec.New(),
		Precision:        6,
		Center:           &center,
		RadiusKm:         5,
		QueryBuilder:     store.QueryBuilderFunc(func(cell cellcodec.CellID, hint []byte) (store.Query, error) { return nil, nil }),
	}
}

func TestNormalize_FanoutModeByDefault(t *testing.T) {
	plan, err := Normalize(validOptions(), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, ModeFanout, plan.Mode)
	assert.False(t, plan.HasToken)
}

func TestNormalize_PageSizeSelectsPaginatedMode(t *testing.T) {
	opts := validOptions()
	pageSize := 20
	opts.PageSize = &pageSize

	plan, err := Normalize(opts, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, ModePaginated, plan.Mode)
	assert.Equal(t, 20, plan.PageSize)
}

func TestNormalize_RejectsMissingCodec(t *testing.T) {
	opts := validOptions()
	opts.Codec = nil
	_, err := Normalize(opts, DefaultConfig())
	require.Error(t, err)
	assert.True(t, geoquery.IsKind(err, geoquery.ErrInvalidInput))
}

func TestNormalize_RejectsPrecisionOutOfRange(t *testing.T) {
	opts := validOptions()
	opts.Precision = 99
	_, err := Normalize(opts, DefaultConfig())
	assert.Error(t, err)
}

func TestNormalize_RejectsBothCapAndBBox(t *testing.T) {
	opts := validOptions()
	box := geoquery.BoundingBox{SW: geoquery.Point{Lat: -1, Lon: -1}, NE: geoquery.Point{Lat: 1, Lon: 1}}
	opts.BoundingBox = &box
	_, err := Normalize(opts, DefaultConfig())
	assert.Error(t, err)
}

func TestNormalize_RejectsNeitherCapNorBBox(t *testing.T) {
	opts := validOptions()
	opts.Center = nil
	_, err := Normalize(opts, DefaultConfig())
	assert.Error(t, err)
}

func TestNormalize_RejectsNonPositiveRadius(t *testing.T) {
	opts := validOptions()
	opts.RadiusKm = 0
	_, err := Normalize(opts, DefaultConfig())
	assert.Error(t, err)
}

func TestNormalize_RejectsTokenWithoutPageSize(t *testing.T) {
	opts := validOptions()
	token := "deadbeef"
	opts.ContinuationToken = &token
	_, err := Normalize(opts, DefaultConfig())
	assert.Error(t, err)
}

func TestNormalize_RejectsNonPositivePageSize(t *testing.T) {
	opts := validOptions()
	pageSize := 0
	opts.PageSize = &pageSize
	_, err := Normalize(opts, DefaultConfig())
	assert.Error(t, err)
}

func TestNormalize_RejectsRetryMaxAttemptsOutOfRange(t *testing.T) {
	opts := validOptions()
	cfg := DefaultConfig()
	cfg.RetryMaxAttempts = 11
	_, err := Normalize(opts, cfg)
	assert.Error(t, err)
}

func TestNormalize_AppliesDefaultsForZeroConfig(t *testing.T) {
	plan, err := Normalize(validOptions(), Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().MaxCells, plan.Config.MaxCells)
	assert.Equal(t, DefaultConfig().Concurrency, plan.Config.Concurrency)
}

func TestNormalize_SameShapeProducesSameFingerprint(t *testing.T) {
	p1, err := Normalize(validOptions(), DefaultConfig())
	require.NoError(t, err)
	p2, err := Normalize(validOptions(), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, p1.Fingerprint, p2.Fingerprint)
}

func TestNormalize_DifferentRadiusProducesDifferentFingerprint(t *testing.T) {
	opts1 := validOptions()
	opts2 := validOptions()
	opts2.RadiusKm = 10

	p1, err := Normalize(opts1, DefaultConfig())
	require.NoError(t, err)
	p2, err := Normalize(opts2, DefaultConfig())
	require.NoError(t, err)
	assert.NotEqual(t, p1.Fingerprint, p2.Fingerprint)
}
