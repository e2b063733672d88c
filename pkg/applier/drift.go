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

package applier

import (
	"context"

	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/diff"
	"kpt.dev/appsync/pkg/health"
	"kpt.dev/appsync/pkg/metadata"
	"kpt.dev/appsync/pkg/status"
)

// Drift compares the manifests of desc with the live objects without
// writing anything. It reports whether any declared object differs from,
// or is missing on, the target, and whether any inventoried object awaits
// pruning.
func (a *Applier) Drift(ctx context.Context, desc declared.Descriptor) (bool, status.SyncResult) {
	result := a.newResult(desc)
	objs, commit, err := a.prepare(ctx, desc)
	result.Revision = commit
	if err != nil {
		return false, result.WithError(err)
	}

	var healths []status.HealthStatus
	for _, obj := range objs {
		rr := resourceResult(core.IDOf(obj))
		live, err := a.target.get(ctx, obj)
		if err != nil {
			return false, result.WithError(status.ApplyError(err, "get", obj))
		}
		op := diff.Diff{Declared: obj, Actual: live}.Operation(desc.Name)
		rr.Operation = string(op)
		switch op {
		case diff.NoOp:
			rr.Status = status.ResourceSynced
			rr.Health, rr.Message = health.Of(live)
			healths = append(healths, rr.Health)
		case diff.Conflict:
			rr.Status = status.ResourceFailed
			rr.Message = status.OwnershipConflictError(obj, desc.Name, metadata.OwnerOf(live)).Error()
			result.Drift = true
		default:
			rr.Status = status.ResourceOutOfSync
			if live != nil {
				klog.V(2).Infof("%s drifted: %v", core.IDOf(obj), diff.Fields(obj, live))
			}
			result.Drift = true
		}
		result.Resources = append(result.Resources, rr)
	}

	previous, err := a.inventory.Load(ctx, desc.Name)
	if err != nil {
		return false, result.WithError(status.ApplyErrorf(err, "unable to read inventory"))
	}
	for _, id := range reverseApplyOrder(previous.Difference(core.IDSetOf(objs))) {
		live, err := a.target.getID(ctx, id)
		if err != nil {
			return false, result.WithError(status.ApplyErrorf(err, "unable to read "+id.String()))
		}
		if live == nil || !metadata.IsOwnedBy(live, desc.Name) || metadata.PruneDisabled(live) {
			continue
		}
		rr := resourceResult(id)
		rr.Status = status.ResourceRequiresPruning
		result.Resources = append(result.Resources, rr)
		result.Drift = true
	}

	result.Status = status.SyncStatusSynced
	if result.Drift {
		result.Status = status.SyncStatusOutOfSync
	}
	result.Health = health.Worst(healths...)
	return result.Drift, result
}
