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
	"time"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// StatusLabel returns a string representation of the given error appropriate for the status label
// of a Prometheus metric.
func StatusLabel(err error) string {
	if err == nil {
		return "success"
	}
	return "error"
}

// RecordAPICallDuration produces a measurement for APICallDuration.
func RecordAPICallDuration(operation string, gvk schema.GroupVersionKind, err error, startTime time.Time) {
	APICallDuration.WithLabelValues(operation, gvk.Kind, StatusLabel(err)).Observe(time.Since(startTime).Seconds())
}

// RecordApplyOperation counts a write against the target.
func RecordApplyOperation(operation string, gvk schema.GroupVersionKind, err error) {
	ApplyOperations.WithLabelValues(operation, gvk.Kind, StatusLabel(err)).Inc()
}

// RecordReconcileDuration produces a measurement for ReconcileDuration.
func RecordReconcileDuration(operation string, err error, startTime time.Time) {
	ReconcileDuration.WithLabelValues(operation, StatusLabel(err)).Observe(time.Since(startTime).Seconds())
}

// RecordFetchDuration produces a measurement for FetchDuration.
func RecordFetchDuration(err error, startTime time.Time) {
	FetchDuration.WithLabelValues(StatusLabel(err)).Observe(time.Since(startTime).Seconds())
}

// RecordRuleError counts a failed ApplicationSet expansion.
func RecordRuleError(code string) {
	RuleErrors.WithLabelValues(code).Inc()
}

// RecordApplications replaces the per-phase application counts.
func RecordApplications(byPhase map[string]int) {
	Applications.Reset()
	for phase, count := range byPhase {
		Applications.WithLabelValues(phase).Set(float64(count))
	}
}

// RecordLastPoll records when the last poll completed.
func RecordLastPoll(timestamp time.Time) {
	LastPoll.Set(float64(timestamp.Unix()))
}
