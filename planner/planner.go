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

// Package planner normalizes caller-supplied query options into a Plan
// the fanout executor can run, choosing between fanout and paginated
// mode and rejecting malformed input before any store I/O happens.
package planner

import (
	"github.com/spothero/geoquery"
	"github.com/spothero/geoquery/cellcodec"
	"github.com/spothero/geoquery/continuation"
	"github.com/spothero/geoquery/covering"
	"github.com/spothero/geoquery/store"
)

// Mode selects how the executor drains the covering.
type Mode int

const (
	// ModeFanout issues all per-cell queries concurrently and returns a
	// complete, unpaginated result.
	ModeFanout Mode = iota
	// ModePaginated walks the covering sequentially, stopping once at
	// least PageSize post-filter-surviving items are collected, and
	// returns them along with a continuation token. A call may return
	// more than PageSize items when the quota is reached partway
	// through a store page.
	ModePaginated
)

// Config holds the query tunables. MaxCells bounds covering size and
// Concurrency bounds fanout. RetryMaxAttempts, RetryBaseDelayMs and
// EarthRadiusKm are validated and defaulted by Normalize but are not
// applied: the executor retries per Executor.RetryPolicy, and distances
// always use geoquery.EarthRadiusKm. Normalize replaces zero or negative
// MaxCells, Concurrency, RetryBaseDelayMs and EarthRadiusKm with their
// defaults; a RetryMaxAttempts of 0 is kept as is.
type Config struct {
	MaxCells         int     `json:"max_cells"`
	Concurrency      int     `json:"concurrency"`
	RetryMaxAttempts int     `json:"retry_max_attempts"`
	RetryBaseDelayMs int     `json:"retry_base_delay_ms"`
	EarthRadiusKm    float64 `json:"earth_radius_km"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxCells:         covering.DefaultMaxCells,
		Concurrency:      32,
		RetryMaxAttempts: 4,
		RetryBaseDelayMs: 50,
		EarthRadiusKm:    geoquery.EarthRadiusKm,
	}
}

// Options is the caller-supplied, unnormalized set of query inputs.
type Options[T any] struct {
	// LocationSelector is a pure projection from entity to Point.
	LocationSelector func(T) geoquery.Point
	// PrimaryKey extracts a comparable identity from an entity, used
	// for dedup in fanout mode and as the distance tie-break key.
	PrimaryKey func(T) any

	Codec     cellcodec.Codec
	Precision int

	// Exactly one of (Center, RadiusKm) or BoundingBox must be set.
	Center      *geoquery.Point
	RadiusKm    float64
	BoundingBox *geoquery.BoundingBox

	QueryBuilder store.QueryBuilder

	// PageSize nil selects fanout mode; non-nil selects paginated mode.
	PageSize          *int
	ContinuationToken *string

	// MaxCells overrides Config.MaxCells when non-zero.
	MaxCells int
	// AllowTruncation permits a covering to be truncated instead of
	// failing with ErrTooManyCells.
	AllowTruncation bool
}

// Plan is the normalized, validated query ready for execution.
type Plan[T any] struct {
	Mode Mode

	LocationSelector func(T) geoquery.Point
	PrimaryKey       func(T) any

	Codec     cellcodec.Codec
	Precision int

	Center      *geoquery.Point
	RadiusKm    float64
	BoundingBox *geoquery.BoundingBox

	QueryBuilder store.QueryBuilder

	PageSize          int
	ContinuationToken string
	HasToken          bool

	MaxCells        int
	AllowTruncation bool

	Config      Config
	Fingerprint continuation.Fingerprint
}

// Normalize validates opts against cfg and produces a Plan, or a
// geoquery.Error of kind ErrInvalidInput. All input-shape errors are
// raised here, before any store I/O.
func Normalize[T any](opts Options[T], cfg Config) (Plan[T], error) {
	if cfg.MaxCells <= 0 {
		cfg.MaxCells = DefaultConfig().MaxCells
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.RetryMaxAttempts < 0 || cfg.RetryMaxAttempts > 10 {
		return Plan[T]{}, geoquery.NewError(geoquery.ErrInvalidInput, "retry.maxAttempts must be within [0, 10]")
	}
	if cfg.RetryBaseDelayMs <= 0 {
		cfg.RetryBaseDelayMs = DefaultConfig().RetryBaseDelayMs
	}
	if cfg.EarthRadiusKm <= 0 {
		cfg.EarthRadiusKm = geoquery.EarthRadiusKm
	}

	if opts.Codec == nil {
		return Plan[T]{}, geoquery.NewError(geoquery.ErrInvalidInput, "codec is required")
	}
	if opts.Precision < opts.Codec.MinPrecision() || opts.Precision > opts.Codec.MaxPrecision() {
		return Plan[T]{}, geoquery.NewError(geoquery.ErrInvalidInput, "precision out of range for codec")
	}
	if opts.LocationSelector == nil {
		return Plan[T]{}, geoquery.NewError(geoquery.ErrInvalidInput, "locationSelector is required")
	}
	if opts.PrimaryKey == nil {
		return Plan[T]{}, geoquery.NewError(geoquery.ErrInvalidInput, "primaryKey is required")
	}
	if opts.QueryBuilder == nil {
		return Plan[T]{}, geoquery.NewError(geoquery.ErrInvalidInput, "perCellQueryBuilder is required")
	}

	hasCap := opts.Center != nil
	hasBBox := opts.BoundingBox != nil
	if hasCap == hasBBox {
		return Plan[T]{}, geoquery.NewError(geoquery.ErrInvalidInput, "exactly one of {center, radiusKm} or {boundingBox} must be set")
	}
	if hasCap && opts.RadiusKm <= 0 {
		return Plan[T]{}, geoquery.NewError(geoquery.ErrInvalidInput, "radiusKm must be > 0")
	}

	if opts.ContinuationToken != nil && opts.PageSize == nil {
		return Plan[T]{}, geoquery.NewError(geoquery.ErrInvalidInput, "continuationToken requires pageSize")
	}

	maxCells := cfg.MaxCells
	if opts.MaxCells > 0 {
		maxCells = opts.MaxCells
	}

	plan := Plan[T]{
		Mode:             ModeFanout,
		LocationSelector: opts.LocationSelector,
		PrimaryKey:       opts.PrimaryKey,
		Codec:            opts.Codec,
		Precision:        opts.Precision,
		Center:           opts.Center,
		RadiusKm:         opts.RadiusKm,
		BoundingBox:      opts.BoundingBox,
		QueryBuilder:     opts.QueryBuilder,
		MaxCells:         maxCells,
		AllowTruncation:  opts.AllowTruncation,
		Config:           cfg,
	}

	if opts.PageSize != nil {
		if *opts.PageSize <= 0 {
			return Plan[T]{}, geoquery.NewError(geoquery.ErrInvalidInput, "pageSize must be > 0")
		}
		plan.Mode = ModePaginated
		plan.PageSize = *opts.PageSize
	}
	if opts.ContinuationToken != nil {
		plan.HasToken = true
		plan.ContinuationToken = *opts.ContinuationToken
	}

	plan.Fingerprint = fingerprintFor(plan)
	return plan, nil
}

// fingerprintFor derives the binding fingerprint from the query shape:
// (center-or-bbox, radius, precision, codec, pageSize).
func fingerprintFor[T any](p Plan[T]) continuation.Fingerprint {
	shape := []any{p.Codec.Scheme(), p.Precision, p.PageSize}
	if p.Center != nil {
		shape = append(shape, "cap", p.Center.Lat, p.Center.Lon, p.RadiusKm)
	} else if p.BoundingBox != nil {
		shape = append(shape, "bbox", p.BoundingBox.SW.Lat, p.BoundingBox.SW.Lon, p.BoundingBox.NE.Lat, p.BoundingBox.NE.Lon)
	}
	return continuation.NewFingerprint(shape...)
}
