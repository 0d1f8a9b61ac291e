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

package executor

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec"
	"github.com/spothero/geoquery/planner"
	"github.com/spothero/geoquery/store"
)

// fakeCodec lays cells out one per integer degree of longitude on the
// equator, so HaversineKm between cell centers is exact and the tests
// never depend on a real scheme's quantization.
type fakeCodec struct{}

func (fakeCodec) Scheme() cellcodec.Scheme { return "fake" }
func (fakeCodec) MinPrecision() int        { return 0 }
func (fakeCodec) MaxPrecision() int        { return 0 }

func (fakeCodec) Encode(p geoquery.Point, _ int) (cellcodec.CellID, error) {
	return cellcodec.CellID(strconv.Itoa(int(p.Lon))), nil
}

func (fakeCodec) Decode(id cellcodec.CellID) (geoquery.Point, error) {
	idx, err := strconv.Atoi(string(id))
	if err != nil {
		return geoquery.Point{}, err
	}
	return geoquery.Point{Lat: 0, Lon: float64(idx)}, nil
}

func (fakeCodec) PrecisionOf(cellcodec.CellID) (int, error) { return 0, nil }

func (fakeCodec) Neighbors(id cellcodec.CellID) ([]cellcodec.CellID, error) {
	idx, err := strconv.Atoi(string(id))
	if err != nil {
		return nil, err
	}
	return []cellcodec.CellID{
		cellcodec.CellID(strconv.Itoa(idx - 1)),
		cellcodec.CellID(strconv.Itoa(idx + 1)),
	}, nil
}

func (fakeCodec) Parent(id cellcodec.CellID, _ int) (cellcodec.CellID, error) { return id, nil }
func (fakeCodec) EdgeLengthKm(int) float64                                   { return 111.195 }

type fakeEntity struct {
	id  string
	idx int
}

func fakeLocationSelector(e fakeEntity) geoquery.Point { return geoquery.Point{Lat: 0, Lon: float64(e.idx)} }
func fakePrimaryKey(e fakeEntity) any                  { return e.id }

type cellRequest struct {
	cell   cellcodec.CellID
	cursor []byte
}

func fakeQueryBuilder() store.QueryBuilder {
	return store.QueryBuilderFunc(func(cell cellcodec.CellID, hint []byte) (store.Query, error) {
		return cellRequest{cell: cell, cursor: hint}, nil
	})
}

// fakeDriver serves pre-chunked pages per cell, threading the cursor as
// a decimal page index, the same shape a real store-native cursor plays
// for the executor.
type fakeDriver struct {
	pages map[cellcodec.CellID][][]fakeEntity
}

func (d *fakeDriver) Query(_ context.Context, q store.Query) (store.Page[fakeEntity], error) {
	req := q.(cellRequest)
	pages := d.pages[req.cell]

	idx := 0
	if len(req.cursor) > 0 {
		n, err := strconv.Atoi(string(req.cursor))
		if err != nil {
			return store.Page[fakeEntity]{}, &store.DriverError{Err: err}
		}
		idx = n
	}
	if idx >= len(pages) {
		return store.Page[fakeEntity]{}, nil
	}

	var cursor []byte
	if idx+1 < len(pages) {
		cursor = []byte(strconv.Itoa(idx + 1))
	}
	return store.Page[fakeEntity]{Items: pages[idx], Cursor: cursor}, nil
}

func basePlanOptions() planner.Options[fakeEntity] {
	center := geoquery.Point{Lat: 0, Lon: 0}
	return planner.Options[fakeEntity]{
		LocationSelector: fakeLocationSelector,
		PrimaryKey:       fakePrimaryKey,
		Codec:            fakeCodec{},
		Precision:        0,
		Center:           &center,
		RadiusKm:         120,
		QueryBuilder:     fakeQueryBuilder(),
	}
}

func TestExecutor_RunFanout_DedupsFiltersAndOrdersByDistance(t *testing.T) {
	driver := &fakeDriver{
		pages: map[cellcodec.CellID][][]fakeEntity{
			"0":  {{{id: "e0", idx: 0}}},
			"-1": {{{id: "en1", idx: -1}}},
			"1":  {{{id: "ep1", idx: 1}}},
			"-2": {{{id: "en2", idx: -2}}},
			"2":  {{{id: "ep2", idx: 2}}},
		},
	}

	plan, err := planner.Normalize(basePlanOptions(), planner.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, planner.ModeFanout, plan.Mode)

	result, err := New[fakeEntity](driver).Run(context.Background(), plan)
	require.NoError(t, err)

	gotIDs := make([]string, len(result.Items))
	for i, item := range result.Items {
		gotIDs[i] = item.id
	}
	assert.Equal(t, []string{"e0", "en1", "ep1"}, gotIDs)
	assert.Equal(t, 5, result.TotalCellsQueried)
	assert.Equal(t, 5, result.TotalItemsScanned)
	assert.False(t, result.Truncated)
}

func TestExecutor_RunFanout_DedupsByPrimaryKey(t *testing.T) {
	driver := &fakeDriver{
		pages: map[cellcodec.CellID][][]fakeEntity{
			"0": {{{id: "dup", idx: 0}}},
			"1": {{{id: "dup", idx: 0}}},
		},
	}
	plan, err := planner.Normalize(basePlanOptions(), planner.DefaultConfig())
	require.NoError(t, err)

	result, err := New[fakeEntity](driver).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
}

func TestExecutor_RunPaginated_RoundTripsContinuationToken(t *testing.T) {
	driver := &fakeDriver{
		pages: map[cellcodec.CellID][][]fakeEntity{
			"0":  {{{id: "a0", idx: 0}}, {{id: "b0", idx: 0}}},
			"-1": {{{id: "c", idx: -1}}},
			"1":  {{{id: "d", idx: 1}}},
		},
	}

	opts := basePlanOptions()
	pageSize := 2
	opts.PageSize = &pageSize
	plan, err := planner.Normalize(opts, planner.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, planner.ModePaginated, plan.Mode)

	exec := New[fakeEntity](driver)

	page1, err := exec.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"a0", "b0"}, idsOf(page1.Items))
	require.NotNil(t, page1.ContinuationToken)

	opts2 := opts
	opts2.ContinuationToken = page1.ContinuationToken
	plan2, err := planner.Normalize(opts2, planner.DefaultConfig())
	require.NoError(t, err)

	page2, err := exec.Run(context.Background(), plan2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, idsOf(page2.Items))
	require.NotNil(t, page2.ContinuationToken)

	opts3 := opts
	opts3.ContinuationToken = page2.ContinuationToken
	plan3, err := planner.Normalize(opts3, planner.DefaultConfig())
	require.NoError(t, err)

	page3, err := exec.Run(context.Background(), plan3)
	require.NoError(t, err)
	assert.Empty(t, page3.Items)
	assert.Nil(t, page3.ContinuationToken)

	all := append(append([]string{}, idsOf(page1.Items)...), idsOf(page2.Items)...)
	all = append(all, idsOf(page3.Items)...)
	assert.ElementsMatch(t, []string{"a0", "b0", "c", "d"}, all)
}

func idsOf(items []fakeEntity) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

func TestExecutor_Run_RejectsUnknownMode(t *testing.T) {
	plan, err := planner.Normalize(basePlanOptions(), planner.DefaultConfig())
	require.NoError(t, err)
	plan.Mode = planner.Mode(99)

	_, err = New[fakeEntity](&fakeDriver{}).Run(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, geoquery.IsKind(err, geoquery.ErrInvalidInput))
}

func TestExecutor_DrainCell_RetriesTransientErrorsThenSucceeds(t *testing.T) {
	mockDriver := new(store.MockDriver[fakeEntity])
	transient := &store.DriverError{Retryable: true, Err: errors.New("throttled")}
	mockDriver.On("Query", mock.Anything, mock.Anything).Return(store.Page[fakeEntity]{}, transient).Twice()
	mockDriver.On("Query", mock.Anything, mock.Anything).Return(store.Page[fakeEntity]{Items: []fakeEntity{{id: "e0", idx: 0}}}, nil).Once()

	plan, err := planner.Normalize(basePlanOptions(), planner.DefaultConfig())
	require.NoError(t, err)
	exec := New[fakeEntity](mockDriver)
	exec.RetryPolicy.BaseDelay = 0

	items, cursor, scanned, derr := exec.drainCell(context.Background(), plan, "0", nil, 0, nil)
	require.NoError(t, derr)
	assert.Equal(t, []fakeEntity{{id: "e0", idx: 0}}, items)
	assert.Empty(t, cursor)
	assert.Equal(t, 1, scanned)
	mockDriver.AssertNumberOfCalls(t, "Query", 3)
}

func TestExecutor_DrainCell_StopsOnFatalStoreError(t *testing.T) {
	mockDriver := new(store.MockDriver[fakeEntity])
	fatal := &store.DriverError{Retryable: false, Err: errors.New("validation exception")}
	mockDriver.On("Query", mock.Anything, mock.Anything).Return(store.Page[fakeEntity]{}, fatal)

	plan, err := planner.Normalize(basePlanOptions(), planner.DefaultConfig())
	require.NoError(t, err)

	exec := New[fakeEntity](mockDriver)
	_, _, _, derr := exec.drainCell(context.Background(), plan, "0", nil, 0, nil)
	require.Error(t, derr)
	assert.True(t, geoquery.IsKind(derr, geoquery.ErrStore))
	mockDriver.AssertNumberOfCalls(t, "Query", 1)
}
