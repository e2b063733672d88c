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
	"sort"
	"time"

	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/metadata"
	"kpt.dev/appsync/pkg/metrics"
	"kpt.dev/appsync/pkg/status"
	"sigs.k8s.io/cli-utils/pkg/object"
	"sigs.k8s.io/cli-utils/pkg/ordering"
)

// prune deletes the objects in ids, which are inventoried for desc but no
// longer declared. It returns the outcome per object, and the IDs which must
// stay in the inventory: objects awaiting a manual prune and objects whose
// deletion failed.
func (a *Applier) prune(ctx context.Context, desc declared.Descriptor, ids core.IDSet) ([]status.ResourceResult, core.IDSet, error) {
	retained := core.NewIDSet()
	var results []status.ResourceResult
	var errs error
	for _, id := range reverseApplyOrder(ids) {
		rr := resourceResult(id)
		live, err := a.target.getID(ctx, id)
		switch {
		case err != nil:
			rr.Status = status.ResourceFailed
			rr.Message = err.Error()
			retained[id] = struct{}{}
			errs = multierr.Append(errs, status.ApplyErrorf(err, "unable to read "+id.String()+" for pruning"))
		case live == nil:
			// Already gone.
			continue
		case !metadata.IsOwnedBy(live, desc.Name):
			rr.Status = status.ResourcePruneSkipped
			rr.Message = "no longer owned by this application"
		case metadata.PruneDisabled(live):
			rr.Status = status.ResourcePruneSkipped
			rr.Message = "pruning disabled by " + metadata.SyncOptionPruneDisabled
		case !desc.SyncPolicy.AutoPrune:
			rr.Status = status.ResourceRequiresPruning
			retained[id] = struct{}{}
		default:
			rr.Operation = "delete"
			err := a.target.delete(ctx, live)
			metrics.RecordApplyOperation("delete", live.GroupVersionKind(), err)
			if err != nil {
				rr.Status = status.ResourceFailed
				rr.Message = err.Error()
				retained[id] = struct{}{}
				errs = multierr.Append(errs, status.ApplyError(err, "prune", live))
			} else {
				rr.Status = status.ResourcePruned
				klog.V(1).Infof("Pruned %s from application %q", id, desc.Name)
			}
		}
		results = append(results, rr)
	}
	return results, retained, errs
}

// Delete removes every inventoried object still owned by desc, then its
// inventory. Objects which opted out of pruning, or which another
// application took over, are left in place. Delete is idempotent.
func (a *Applier) Delete(ctx context.Context, desc declared.Descriptor) error {
	start := time.Now()
	err := a.delete(ctx, desc)
	metrics.RecordReconcileDuration("delete", err, start)
	if err != nil {
		klog.Warningf("Failed to delete application %q: %v", desc.Name, err)
		return err
	}
	klog.Infof("Deleted the objects of application %q", desc.Name)
	return nil
}

func (a *Applier) delete(ctx context.Context, desc declared.Descriptor) error {
	ids, err := a.inventory.Load(ctx, desc.Name)
	if err != nil {
		return status.ApplyErrorf(err, "unable to read inventory")
	}

	retained := core.NewIDSet()
	var errs error
	for _, id := range reverseApplyOrder(ids) {
		if ctx.Err() != nil {
			return multierr.Append(errs, status.ApplyErrorf(ctx.Err(), "delete interrupted"))
		}
		live, err := a.target.getID(ctx, id)
		if err != nil {
			retained[id] = struct{}{}
			errs = multierr.Append(errs, status.ApplyErrorf(err, "unable to read "+id.String()+" for deletion"))
			continue
		}
		if live == nil {
			continue
		}
		if !metadata.IsOwnedBy(live, desc.Name) || metadata.PruneDisabled(live) {
			klog.V(1).Infof("Leaving %s in place", id)
			continue
		}
		err = a.target.delete(ctx, live)
		metrics.RecordApplyOperation("delete", live.GroupVersionKind(), err)
		if err != nil {
			retained[id] = struct{}{}
			errs = multierr.Append(errs, status.ApplyError(err, "delete", live))
		}
	}
	if errs != nil {
		// Keep the objects which could not be deleted tracked for the retry.
		if saveErr := a.inventory.Save(ctx, desc.Name, desc.ApplicationSet, retained); saveErr != nil {
			errs = multierr.Append(errs, status.ApplyErrorf(saveErr, "unable to record inventory"))
		}
		return errs
	}
	if err := a.inventory.Delete(ctx, desc.Name); err != nil {
		return status.ApplyErrorf(err, "unable to delete inventory")
	}
	return nil
}

// reverseApplyOrder returns ids in the opposite of the order they are
// applied in, so that Namespaces are deleted last.
func reverseApplyOrder(ids core.IDSet) []core.ID {
	metas := make([]object.ObjMetadata, 0, len(ids))
	for id := range ids {
		metas = append(metas, id.ObjMetadata())
	}
	sort.Sort(sort.Reverse(ordering.SortableMetas(metas)))
	result := make([]core.ID, 0, len(metas))
	for _, m := range metas {
		result = append(result, core.FromObjMetadata(m))
	}
	return result
}

// LiveState is the set of live objects of an application, keyed by ID.
// Each object carries the resourceVersion it was observed at.
type LiveState map[core.ID]*unstructured.Unstructured

// Live returns the inventoried objects of desc which exist on the target and
// are owned by it.
func (a *Applier) Live(ctx context.Context, desc declared.Descriptor) (LiveState, error) {
	ids, err := a.inventory.Load(ctx, desc.Name)
	if err != nil {
		return nil, status.ApplyErrorf(err, "unable to read inventory")
	}
	state := make(LiveState, len(ids))
	for id := range ids {
		live, err := a.target.getID(ctx, id)
		if err != nil {
			return nil, status.ApplyErrorf(err, "unable to read "+id.String())
		}
		if live != nil && metadata.IsOwnedBy(live, desc.Name) {
			state[id] = live
		}
	}
	return state, nil
}
