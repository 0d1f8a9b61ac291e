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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a bundle of prometheus recorders for the fanout executor.
// Construction takes an optional registry, with an opt-in panic on
// registration collision.
type Metrics struct {
	cellsQueried      prometheus.Counter
	retries           prometheus.Counter
	cellQueryDuration prometheus.Histogram
	truncated         prometheus.Counter
}

// NewMetrics creates and registers a Metrics bundle. If registry is
// nil, the global Prometheus registry is used. If mustRegister is true
// and registration fails, NewMetrics panics.
func NewMetrics(registry prometheus.Registerer, mustRegister bool) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		cellsQueried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geoquery_cells_queried_total",
			Help: "Total number of per-cell store queries issued by the fanout executor.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geoquery_store_retries_total",
			Help: "Total number of retried per-cell store queries.",
		}),
		cellQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geoquery_cell_query_duration_seconds",
			Help:    "Duration of a single per-cell store query, including retries.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2.0, 16),
		}),
		truncated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geoquery_coverings_truncated_total",
			Help: "Total number of queries whose covering was truncated to maxCells.",
		}),
	}
	for _, c := range []prometheus.Collector{m.cellsQueried, m.retries, m.cellQueryDuration, m.truncated} {
		if err := registry.Register(c); err != nil {
			if mustRegister {
				panic(err)
			}
		}
	}
	return m
}

func (m *Metrics) observeCellQueried() {
	if m == nil {
		return
	}
	m.cellsQueried.Inc()
}

func (m *Metrics) observeRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) observeTruncated() {
	if m == nil {
		return
	}
	m.truncated.Inc()
}

func (m *Metrics) observeDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.cellQueryDuration.Observe(d.Seconds())
}
