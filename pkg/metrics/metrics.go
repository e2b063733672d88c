// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the prefix of every appsync metric.
const Namespace = "appsync"

// Prometheus metrics
var (
	APICallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Help:      "Distribution of durations of API server calls",
			Namespace: Namespace,
			Subsystem: "applier",
			Name:      "api_duration_seconds",
			Buckets:   []float64{.001, .01, .1, 1, 10},
		},
		// operation: get, create, update, delete
		// type: resource kind
		// status: success, error
		[]string{"operation", "type", "status"},
	)
	ApplyOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Total operations that have been performed to sync resources to source of truth",
			Namespace: Namespace,
			Subsystem: "applier",
			Name:      "operations_total",
		},
		// operation: create, update, delete
		// type: resource kind
		// status: success, error
		[]string{"operation", "type", "status"},
	)
	ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Help:      "Distribution of application reconciliation durations",
			Namespace: Namespace,
			Subsystem: "reconciler",
			Name:      "reconcile_duration_seconds",
			Buckets:   []float64{.01, .1, 1, 10, 100},
		},
		// operation: apply, delete
		// status: success, error
		[]string{"operation", "status"},
	)
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Help:      "Distribution of source fetch durations",
			Namespace: Namespace,
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Buckets:   []float64{.01, .1, 1, 10, 100},
		},
		// status: success, error
		[]string{"status"},
	)
	Applications = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Help:      "Number of tracked applications by phase",
			Namespace: Namespace,
			Subsystem: "reconciler",
			Name:      "applications",
		},
		// phase: Pending, Synced, OutOfSync, Pruning, Error, Orphaned
		[]string{"phase"},
	)
	RuleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Total ApplicationSet expansions which failed",
			Namespace: Namespace,
			Subsystem: "generator",
			Name:      "rule_errors_total",
		},
		// code: the error code, e.g. ASY1002
		[]string{"code"},
	)
	LastPoll = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Timestamp of the last completed poll of the bootstrap source",
			Namespace: Namespace,
			Subsystem: "engine",
			Name:      "last_poll_timestamp_seconds",
		},
	)
)

func init() {
	prometheus.MustRegister(
		APICallDuration,
		ApplyOperations,
		ReconcileDuration,
		FetchDuration,
		Applications,
		RuleErrors,
		LastPoll,
	)
}
