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

package status

import "time"

// SyncStatus is whether an application's live state matches its desired state.
type SyncStatus string

const (
	// SyncStatusUnknown is reported before the first sync attempt.
	SyncStatusUnknown SyncStatus = "Unknown"
	// SyncStatusSynced means every declared object matches the target.
	SyncStatusSynced SyncStatus = "Synced"
	// SyncStatusOutOfSync means drift was detected and not corrected, or
	// undeclared objects are waiting to be pruned.
	SyncStatusOutOfSync SyncStatus = "OutOfSync"
	// SyncStatusError means the last attempt failed.
	SyncStatusError SyncStatus = "Error"
)

// HealthStatus summarizes the health of an application's live objects.
type HealthStatus string

const (
	// HealthHealthy means every object reached its desired state.
	HealthHealthy HealthStatus = "Healthy"
	// HealthProgressing means at least one object is still converging.
	HealthProgressing HealthStatus = "Progressing"
	// HealthDegraded means at least one object failed.
	HealthDegraded HealthStatus = "Degraded"
	// HealthUnknown means health could not be computed.
	HealthUnknown HealthStatus = "Unknown"
)

// Phase is the lifecycle state of an application identity.
type Phase string

const (
	// PhaseAbsent means the identity is not tracked.
	PhaseAbsent Phase = "Absent"
	// PhasePending means the identity is waiting to be applied.
	PhasePending Phase = "Pending"
	// PhaseSynced means the last apply succeeded and the target matches.
	PhaseSynced Phase = "Synced"
	// PhaseOutOfSync means drift was detected and left uncorrected.
	PhaseOutOfSync Phase = "OutOfSync"
	// PhasePruning means the identity left the desired set and its objects
	// are being deleted.
	PhasePruning Phase = "Pruning"
	// PhaseError means the last attempt failed and will be retried.
	PhaseError Phase = "Error"
	// PhaseOrphaned means the identity left the desired set but its objects
	// were left in place.
	PhaseOrphaned Phase = "Orphaned"
)

// Settled returns true if the phase releases applications of a later wave.
func (p Phase) Settled() bool {
	switch p {
	case PhaseSynced, PhaseOutOfSync, PhaseError:
		return true
	default:
		return false
	}
}

// ResourceStatus is the outcome of a sync for a single object.
type ResourceStatus string

const (
	// ResourceSynced means the object matches its declaration.
	ResourceSynced ResourceStatus = "Synced"
	// ResourceOutOfSync means the live object drifted and was not corrected.
	ResourceOutOfSync ResourceStatus = "OutOfSync"
	// ResourceRequiresPruning means the object is no longer declared but
	// automatic pruning is disabled.
	ResourceRequiresPruning ResourceStatus = "RequiresPruning"
	// ResourcePruned means the undeclared object was deleted.
	ResourcePruned ResourceStatus = "Pruned"
	// ResourcePruneSkipped means the object opted out of pruning.
	ResourcePruneSkipped ResourceStatus = "PruneSkipped"
	// ResourceFailed means the operation on the object failed.
	ResourceFailed ResourceStatus = "Error"
)

// ResourceResult is the outcome of a sync for a single object.
type ResourceResult struct {
	Group     string         `json:"group,omitempty"`
	Kind      string         `json:"kind"`
	Namespace string         `json:"namespace,omitempty"`
	Name      string         `json:"name"`
	Operation string         `json:"operation,omitempty"`
	Status    ResourceStatus `json:"status"`
	Health    HealthStatus   `json:"health,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// SyncResult is the outcome of the last reconciliation of one application.
type SyncResult struct {
	Application    string       `json:"application"`
	ApplicationSet string       `json:"applicationSet,omitempty"`
	Status         SyncStatus   `json:"status"`
	Health         HealthStatus `json:"health"`
	Phase          Phase        `json:"phase"`
	Revision       string       `json:"revision,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
	// Drift is set when live objects differed from their declarations,
	// whether or not the difference was corrected.
	Drift     bool             `json:"drift,omitempty"`
	Cause     error            `json:"-"`
	Code      string           `json:"code,omitempty"`
	Message   string           `json:"message,omitempty"`
	Resources []ResourceResult `json:"resources,omitempty"`
}

// WithError records err as the cause of a failed result.
func (r SyncResult) WithError(err error) SyncResult {
	r.Status = SyncStatusError
	r.Cause = err
	r.Code = ""
	if code := CodeOf(err); code != "" {
		r.Code = asy(code)
	}
	if err != nil {
		r.Message = err.Error()
	}
	return r
}

// RuleStatus is the outcome of the last expansion of one ApplicationSet.
type RuleStatus struct {
	Name         string    `json:"name"`
	Commit       string    `json:"commit,omitempty"`
	Applications []string  `json:"applications,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	// Stale is set when the source could not be fetched and the last known
	// good directories were used instead.
	Stale   bool   `json:"stale,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// WithError records err on the rule status.
func (r RuleStatus) WithError(err error) RuleStatus {
	if err == nil {
		return r
	}
	r.Message = err.Error()
	if codes := Codes(err); len(codes) > 0 {
		r.Code = asy(codes[0])
	}
	return r
}
