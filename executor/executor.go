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

// Package executor implements the concurrent per-cell fanout query
// (Mode A) and the sequential paginated cell drain (Mode B) against a
// store.Driver. Mode A's bounded concurrency uses
// golang.org/x/sync/errgroup with SetLimit: spawn one goroutine per
// cell, cancel the shared context on first error, and await them all.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec"
	"github.com/spothero/geoquery/continuation"
	"github.com/spothero/geoquery/covering"
	"github.com/spothero/geoquery/distsort"
	"github.com/spothero/geoquery/internal/retry"
	"github.com/spothero/geoquery/planner"
	"github.com/spothero/geoquery/store"
)

// QueryResult is the outcome of a single Run call.
type QueryResult[T any] struct {
	Items             []T
	ContinuationToken *string
	TotalCellsQueried int
	TotalItemsScanned int
	Truncated         bool
}

// Executor runs a normalized planner.Plan against a store.Driver.
type Executor[T any] struct {
	Driver      store.Driver[T]
	Logger      *zap.Logger
	Metrics     *Metrics
	RetryPolicy retry.Policy
}

// New constructs an Executor with a no-op logger by default and the
// standard bounded-retry policy.
func New[T any](driver store.Driver[T]) *Executor[T] {
	return &Executor[T]{
		Driver:      driver,
		Logger:      zap.NewNop(),
		RetryPolicy: retry.DefaultPolicy(),
	}
}

func (e *Executor[T]) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Run dispatches to the fanout or paginated implementation per
// plan.Mode.
func (e *Executor[T]) Run(ctx context.Context, plan planner.Plan[T]) (QueryResult[T], error) {
	switch plan.Mode {
	case planner.ModeFanout:
		return e.runFanout(ctx, plan)
	case planner.ModePaginated:
		return e.runPaginated(ctx, plan)
	default:
		return QueryResult[T]{}, geoquery.NewError(geoquery.ErrInvalidInput, "unknown planner mode")
	}
}

// sortReference returns the point distance is measured from when
// ordering results: the cap center for radius queries, the box's
// geometric midpoint for bounding-box queries.
func sortReference[T any](plan planner.Plan[T]) geoquery.Point {
	if plan.Center != nil {
		return *plan.Center
	}
	return plan.BoundingBox.Center()
}

// matchesGeometry reports whether item's location actually satisfies
// the plan's requested geometry, exactly: the covering only guarantees
// that a cell's center lies within range, so a cell on the boundary can
// contain items outside the requested cap or box.
func matchesGeometry[T any](plan planner.Plan[T], item T) bool {
	if plan.Center != nil {
		return geoquery.HaversineKm(*plan.Center, plan.LocationSelector(item)) <= plan.RadiusKm
	}
	return plan.BoundingBox.Contains(plan.LocationSelector(item))
}

func coveringFor[T any](plan planner.Plan[T]) (covering.Result, error) {
	if plan.Center != nil {
		return covering.CoverCap(plan.Codec, *plan.Center, plan.RadiusKm, plan.Precision, plan.MaxCells, plan.AllowTruncation)
	}
	return covering.CoverBBox(plan.Codec, *plan.BoundingBox, plan.Precision, plan.MaxCells, plan.AllowTruncation)
}

// drainCell issues store queries for a single cell until the store
// reports it exhausted (empty Cursor) or maxItems post-filter-surviving
// items have been collected, starting from startCursor. It returns the
// raw (pre-filter) items collected, the cursor to resume from (nil if
// the cell is exhausted), and the number of items scanned.
//
// maxItems <= 0 means "drain to completion" (Mode A's contract).
func (e *Executor[T]) drainCell(ctx context.Context, plan planner.Plan[T], cell cellcodec.CellID, startCursor []byte, maxItems int, survivors *int) ([]T, []byte, int, error) {
	var collected []T
	cursor := startCursor
	scanned := 0

	for {
		q, err := plan.QueryBuilder.Build(cell, cursor)
		if err != nil {
			return collected, nil, scanned, geoquery.WrapError(geoquery.ErrInvalidInput, "building per-cell query", err)
		}

		start := time.Now()
		var page store.Page[T]
		retryErr := retry.Do(ctx, e.RetryPolicy, func() error {
			p, qerr := e.Driver.Query(ctx, q)
			if qerr != nil {
				var de *store.DriverError
				if errors.As(qerr, &de) && !de.Retryable {
					return backoff.Permanent(qerr)
				}
				return qerr
			}
			page = p
			return nil
		}, func(err error, attempt int) {
			e.Metrics.observeRetry()
			e.logger().Debug("retrying per-cell store query", zap.Error(err), zap.Int("attempt", attempt))
		})
		e.Metrics.observeCellQueried()
		e.Metrics.observeDuration(time.Since(start))
		if retryErr != nil {
			return collected, nil, scanned, classifyStoreError(retryErr)
		}

		scanned += len(page.Items)
		collected = append(collected, page.Items...)
		if maxItems > 0 {
			for _, item := range page.Items {
				if matchesGeometry(plan, item) {
					*survivors++
				}
			}
		}

		cursor = page.Cursor
		if len(cursor) == 0 {
			return collected, nil, scanned, nil
		}
		if maxItems > 0 && *survivors >= maxItems {
			return collected, cursor, scanned, nil
		}
		if ctx.Err() != nil {
			return collected, nil, scanned, nil
		}
	}
}

func classifyStoreError(err error) error {
	var de *store.DriverError
	if errors.As(err, &de) {
		return geoquery.WrapError(geoquery.ErrStore, "store query failed", de.Err)
	}
	return geoquery.WrapError(geoquery.ErrStore, "store query failed", err)
}

// runFanout implements Mode A: concurrent per-cell queries, dedup by
// primary key, exact-geometry post-filter, and distance ordering.
func (e *Executor[T]) runFanout(ctx context.Context, plan planner.Plan[T]) (QueryResult[T], error) {
	cov, err := coveringFor(plan)
	if err != nil {
		return QueryResult[T]{}, err
	}
	if cov.Truncated {
		e.Metrics.observeTruncated()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(plan.Config.Concurrency)

	var mu sync.Mutex
	seen := make(map[any]bool)
	merged := make([]T, 0)
	totalScanned := 0

	for _, cell := range cov.Cells {
		cell := cell
		g.Go(func() error {
			items, _, scanned, err := e.drainCell(gctx, plan, cell, nil, 0, nil)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			totalScanned += scanned
			for _, item := range items {
				key := plan.PrimaryKey(item)
				if seen[key] {
					continue
				}
				seen[key] = true
				merged = append(merged, item)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			// Cancellation unwinds cleanly and is never surfaced as a
			// failure distinct from the caller's own ctx error.
			return QueryResult[T]{}, ctx.Err()
		}
		return QueryResult[T]{}, err
	}

	filtered := merged[:0]
	for _, item := range merged {
		if matchesGeometry(plan, item) {
			filtered = append(filtered, item)
		}
	}
	merged = filtered
	distsort.ByDistance(merged, plan.LocationSelector, sortReference(plan), plan.PrimaryKey)

	return QueryResult[T]{
		Items:             merged,
		TotalCellsQueried: len(cov.Cells),
		TotalItemsScanned: totalScanned,
		Truncated:         cov.Truncated,
	}, nil
}

// runPaginated implements Mode B: a sequential walk over the covering,
// draining each cell (following store-native pagination) until
// plan.PageSize post-filter-surviving items are collected or the
// covering is exhausted.
//
// A checkpoint is only ever taken at a per-cell store page boundary:
// once a store page is fetched its items are never re-fetched, so a
// page may return slightly more than PageSize items when the quota is
// reached mid-page, trading a soft page-size bound for a guarantee that
// no item is ever skipped or duplicated across pages.
func (e *Executor[T]) runPaginated(ctx context.Context, plan planner.Plan[T]) (QueryResult[T], error) {
	cov, err := coveringFor(plan)
	if err != nil {
		return QueryResult[T]{}, err
	}
	if cov.Truncated {
		e.Metrics.observeTruncated()
	}

	startIdx := 0
	var startCursor []byte
	scannedSoFar := uint64(0)
	if plan.HasToken {
		tok, derr := continuation.Decode(plan.ContinuationToken, plan.Fingerprint)
		if derr != nil {
			return QueryResult[T]{}, derr
		}
		if verr := continuation.Validate(tok, len(cov.Cells)); verr != nil {
			return QueryResult[T]{}, verr
		}
		startIdx = int(tok.CellIndex)
		startCursor = tok.StoreCursor
		scannedSoFar = tok.ScannedCount
	}

	var results []T
	cellsQueried := 0
	idx := startIdx
	cursor := startCursor

	for idx < len(cov.Cells) && len(results) < plan.PageSize {
		remaining := plan.PageSize - len(results)
		survivors := 0
		items, nextCursor, scanned, derr := e.drainCell(ctx, plan, cov.Cells[idx], cursor, remaining, &survivors)
		cellsQueried++
		scannedSoFar += uint64(scanned)
		if derr != nil {
			return QueryResult[T]{}, derr
		}

		for _, item := range items {
			if !matchesGeometry(plan, item) {
				continue
			}
			results = append(results, item)
		}

		if ctx.Err() != nil {
			return QueryResult[T]{}, ctx.Err()
		}

		if len(nextCursor) > 0 {
			cursor = nextCursor
			break
		}
		idx++
		cursor = nil
	}

	distsort.ByDistance(results, plan.LocationSelector, sortReference(plan), plan.PrimaryKey)

	result := QueryResult[T]{
		Items:             results,
		TotalCellsQueried: cellsQueried,
		TotalItemsScanned: int(scannedSoFar),
		Truncated:         cov.Truncated,
	}

	if idx >= len(cov.Cells) {
		// End state: token is None, final cell exhausted.
		return result, nil
	}

	wire, eerr := continuation.Encode(continuation.Token{
		CellIndex:    uint32(idx),
		StoreCursor:  cursor,
		ScannedCount: scannedSoFar,
	}, plan.Fingerprint)
	if eerr != nil {
		return QueryResult[T]{}, eerr
	}
	result.ContinuationToken = &wire
	return result, nil
}
