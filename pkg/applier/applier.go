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
	"time"

	"go.uber.org/multierr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/api/appsync"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/diff"
	"kpt.dev/appsync/pkg/health"
	"kpt.dev/appsync/pkg/inventory"
	"kpt.dev/appsync/pkg/metadata"
	"kpt.dev/appsync/pkg/metrics"
	"kpt.dev/appsync/pkg/project"
	"kpt.dev/appsync/pkg/source"
	"kpt.dev/appsync/pkg/status"
	"kpt.dev/appsync/pkg/util/log"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const fieldManager = appsync.FieldManager

// Options configures an Applier.
type Options struct {
	// Client reads and writes the target.
	Client client.Client
	// Fetcher reads the manifests of an application.
	Fetcher source.Fetcher
	// Gate authorizes applications against their project.
	Gate *project.Gate
	// Inventory records the objects applied for each application. Defaults
	// to a ConfigMapStore in the controller namespace.
	Inventory inventory.Store
	// APITimeout bounds every call against the target.
	APITimeout time.Duration
	// FetchTimeout bounds fetching the manifests of an application.
	FetchTimeout time.Duration
	// ApplyRetries is the number of attempts for a transient target error.
	ApplyRetries int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Applier applies application descriptors to the target.
// Applier is safe for concurrent use; callers must not apply or delete the
// same application concurrently.
type Applier struct {
	target       *target
	fetcher      source.Fetcher
	gate         *project.Gate
	inventory    inventory.Store
	health       *health.Checker
	fetchTimeout time.Duration
	now          func() time.Time
}

// New returns an Applier.
func New(opts Options) *Applier {
	if opts.APITimeout <= 0 {
		opts.APITimeout = appsync.DefaultAPITimeout
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = appsync.DefaultFetchTimeout
	}
	if opts.ApplyRetries <= 0 {
		opts.ApplyRetries = appsync.DefaultApplyRetries
	}
	if opts.Inventory == nil {
		opts.Inventory = inventory.NewConfigMapStore(opts.Client, appsync.ControllerNamespace)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Applier{
		target: &target{
			client:  opts.Client,
			timeout: opts.APITimeout,
			retries: opts.ApplyRetries,
		},
		fetcher:      opts.Fetcher,
		gate:         opts.Gate,
		inventory:    opts.Inventory,
		health:       &health.Checker{Client: opts.Client},
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Now,
	}
}

func (a *Applier) newResult(desc declared.Descriptor) status.SyncResult {
	return status.SyncResult{
		Application:    desc.Name,
		ApplicationSet: desc.ApplicationSet,
		Status:         status.SyncStatusUnknown,
		Health:         status.HealthUnknown,
		Timestamp:      a.now(),
	}
}

// Apply makes the live objects of desc match its manifests and returns the
// outcome. Apply never returns a partial write silently: every object it
// could not apply is listed in the result with its error, and the result
// carries the aggregated cause.
func (a *Applier) Apply(ctx context.Context, desc declared.Descriptor) status.SyncResult {
	start := time.Now()
	result := a.newResult(desc)
	result, err := a.apply(ctx, desc, result)
	metrics.RecordReconcileDuration("apply", err, start)
	if err != nil {
		klog.Warningf("Failed to apply application %q: %v", desc.Name, err)
		return result.WithError(err)
	}
	klog.V(1).Infof("Applied application %q at %s: %s, %s", desc.Name, result.Revision, result.Status, result.Health)
	return result
}

func (a *Applier) apply(ctx context.Context, desc declared.Descriptor, result status.SyncResult) (status.SyncResult, error) {
	objs, commit, err := a.prepare(ctx, desc)
	result.Revision = commit
	if err != nil {
		return result, err
	}

	previous, err := a.inventory.Load(ctx, desc.Name)
	if err != nil {
		return result, status.ApplyErrorf(err, "unable to read inventory")
	}
	declaredIDs := core.IDSetOf(objs)
	if err := a.inventory.Save(ctx, desc.Name, desc.ApplicationSet, previous.Union(declaredIDs)); err != nil {
		return result, status.ApplyErrorf(err, "unable to record inventory")
	}

	var errs error
	var healths []status.HealthStatus
	for _, obj := range objs {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, status.ApplyErrorf(ctx.Err(), "apply interrupted"))
			break
		}
		rr, live, op, err := a.applyObject(ctx, desc, obj)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if live != nil {
			rr.Health, rr.Message, err = a.health.Check(ctx, live)
			if err != nil {
				klog.V(2).Infof("Unable to check health of %s: %v", core.IDOf(obj), err)
				rr.Health = status.HealthUnknown
			}
			healths = append(healths, rr.Health)
		}
		if op != diff.NoOp {
			result.Drift = true
		}
		result.Resources = append(result.Resources, rr)
	}
	if errs != nil {
		return result, errs
	}

	pruned, retained, err := a.prune(ctx, desc, previous.Difference(declaredIDs))
	result.Resources = append(result.Resources, pruned...)
	if saveErr := a.inventory.Save(ctx, desc.Name, desc.ApplicationSet, declaredIDs.Union(retained)); saveErr != nil {
		err = multierr.Append(err, status.ApplyErrorf(saveErr, "unable to record inventory"))
	}
	if err != nil {
		return result, err
	}

	result.Status = status.SyncStatusSynced
	for _, rr := range pruned {
		if rr.Status == status.ResourceRequiresPruning {
			result.Status = status.SyncStatusOutOfSync
		}
	}
	result.Health = health.Worst(healths...)
	return result, nil
}

// applyObject creates or updates obj and returns the live object after the
// write.
func (a *Applier) applyObject(ctx context.Context, desc declared.Descriptor, obj *unstructured.Unstructured) (status.ResourceResult, *unstructured.Unstructured, diff.Operation, error) {
	rr := resourceResult(core.IDOf(obj))
	gvk := obj.GroupVersionKind()

	live, err := a.target.get(ctx, obj)
	if err != nil {
		rr.Status = status.ResourceFailed
		rr.Message = err.Error()
		return rr, nil, diff.NoOp, status.ApplyError(err, "get", obj)
	}

	op := diff.Diff{Declared: obj, Actual: live}.Operation(desc.Name)
	rr.Operation = string(op)
	switch op {
	case diff.NoOp:
		rr.Status = status.ResourceSynced
		return rr, live, op, nil
	case diff.Conflict:
		err = status.OwnershipConflictError(obj, desc.Name, metadata.OwnerOf(live))
		rr.Status = status.ResourceFailed
		rr.Message = err.Error()
		metrics.RecordApplyOperation(string(op), gvk, err)
		return rr, nil, op, err
	case diff.Create:
		live = obj.DeepCopy()
		err = a.target.create(ctx, live)
	case diff.Update:
		var merged *unstructured.Unstructured
		merged, err = diff.Merge(obj, live)
		if err != nil {
			rr.Status = status.ResourceFailed
			rr.Message = err.Error()
			return rr, nil, op, status.ApplyError(err, "merge", obj)
		}
		klog.V(3).Infof("Updating %s: fields %v\n%s", core.IDOf(obj), diff.Fields(obj, live), log.AsYAMLDiff(live, merged))
		live = merged
		err = a.target.update(ctx, live)
	}
	metrics.RecordApplyOperation(string(op), gvk, err)
	if err != nil {
		rr.Status = status.ResourceFailed
		rr.Message = err.Error()
		if apierrors.IsConflict(err) {
			klog.Infof("%s changed since it was read; it will be compared again on the next sync", core.IDOf(obj))
		}
		return rr, nil, op, status.ApplyError(err, string(op), obj)
	}
	klog.V(2).Infof("Applied %s (%s)", core.IDOf(obj), op)
	rr.Status = status.ResourceSynced
	return rr, live, op, nil
}

func resourceResult(id core.ID) status.ResourceResult {
	return status.ResourceResult{
		Group:     id.Group,
		Kind:      id.Kind,
		Namespace: id.Namespace,
		Name:      id.Name,
	}
}

func isNotFound(err error) bool {
	return err != nil && apierrors.IsNotFound(err)
}
