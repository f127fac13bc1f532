// Copyright 2021 FerretDB Inc.
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

package ephemeral

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/FerretDB/EphemeralDB/internal/backends"
)

// Parts of Prometheus metric names.
const (
	namespace = "ephemeraldb"
	subsystem = "database"
)

var (
	collectionsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, "collections"),
		"The current number of collections.",
		nil, nil,
	)
	documentsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, "documents"),
		"The current number of documents in the collection.",
		[]string{"collection"}, nil,
	)
)

// newOperationsMetric returns a counter of backend operations by name and result.
func newOperationsMetric() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operations_total",
			Help:      "Total number of backend operations.",
		},
		[]string{"operation", "result"},
	)
}

// observe increments the operations counter; it should be deferred.
func (db *Database) observe(operation string, err *error) {
	result := "ok"

	if *err != nil {
		result = "error"

		if e, ok := (*err).(*backends.Error); ok { //nolint:errorlint // do not inspect error chain
			result = e.Code().String()
		}
	}

	db.operations.WithLabelValues(operation, result).Inc()
}

// Describe implements prometheus.Collector.
func (db *Database) Describe(ch chan<- *prometheus.Desc) {
	db.operations.Describe(ch)

	ch <- collectionsDesc
	ch <- documentsDesc
}

// Collect implements prometheus.Collector.
//
// Like other methods, it must not be called concurrently with them.
func (db *Database) Collect(ch chan<- prometheus.Metric) {
	db.operations.Collect(ch)

	ch <- prometheus.MustNewConstMetric(collectionsDesc, prometheus.GaugeValue, float64(len(db.collections)))

	for name, c := range db.collections {
		ch <- prometheus.MustNewConstMetric(documentsDesc, prometheus.GaugeValue, float64(c.Len()), name)
	}
}

// check interfaces
var (
	_ prometheus.Collector = (*Database)(nil)
)
