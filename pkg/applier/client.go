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

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/metrics"
	"kpt.dev/appsync/pkg/util"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// target wraps every call against the cluster with a timeout, retries of
// transient errors and metrics.
type target struct {
	client  client.Client
	timeout time.Duration
	retries int
}

// call runs f with a fresh timeout per attempt. Attempts are not cut short
// when ctx is cancelled, so an object is never left half-written; ctx only
// stops further retries.
func (t *target) call(ctx context.Context, operation string, obj client.Object, f func(ctx context.Context) error) error {
	start := time.Now()
	err := util.RetryWithBackoff(ctx, util.APIBackoff(t.retries), util.IsTransientAPIError, func() error {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()
		return f(cctx)
	})
	metrics.RecordAPICallDuration(operation, obj.GetObjectKind().GroupVersionKind(), err, start)
	return err
}

// get returns the live object for obj, or nil if there is none.
func (t *target) get(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	live := &unstructured.Unstructured{}
	live.SetGroupVersionKind(obj.GroupVersionKind())
	err := t.call(ctx, "get", obj, func(ctx context.Context) error {
		return t.client.Get(ctx, client.ObjectKeyFromObject(obj), live)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return live, nil
}

// getID returns the live object for id, whose version is unknown.
func (t *target) getID(ctx context.Context, id core.ID) (*unstructured.Unstructured, error) {
	mapping, err := t.client.RESTMapper().RESTMapping(id.GroupKind)
	if err != nil {
		return nil, err
	}
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(mapping.GroupVersionKind)
	obj.SetNamespace(id.Namespace)
	obj.SetName(id.Name)
	return t.get(ctx, obj)
}

func (t *target) create(ctx context.Context, obj *unstructured.Unstructured) error {
	return t.call(ctx, "create", obj, func(ctx context.Context) error {
		return t.client.Create(ctx, obj, client.FieldOwner(fieldManager))
	})
}

// update writes obj, which must carry the resourceVersion it was read at.
func (t *target) update(ctx context.Context, obj *unstructured.Unstructured) error {
	return t.call(ctx, "update", obj, func(ctx context.Context) error {
		return t.client.Update(ctx, obj, client.FieldOwner(fieldManager))
	})
}

// delete removes obj only if it is still at the resourceVersion it was read
// at. Deleting an object which is already gone succeeds.
func (t *target) delete(ctx context.Context, obj *unstructured.Unstructured) error {
	var opts []client.DeleteOption
	if rv := obj.GetResourceVersion(); rv != "" {
		opts = append(opts, client.Preconditions{ResourceVersion: &rv})
	}
	opts = append(opts, client.PropagationPolicy("Background"))
	err := t.call(ctx, "delete", obj, func(ctx context.Context) error {
		return t.client.Delete(ctx, obj, opts...)
	})
	if isNotFound(err) {
		return nil
	}
	return err
}

// namespaced reports whether obj is namespaced. Kinds the target does not
// know yet, such as custom resources whose definition is applied in the
// same pass, are namespaced if they declare a namespace.
func (t *target) namespaced(obj runtime.Object) (bool, error) {
	isNamespaced, err := t.client.IsObjectNamespaced(obj)
	if err == nil {
		return isNamespaced, nil
	}
	if meta.IsNoMatchError(err) {
		u, ok := obj.(*unstructured.Unstructured)
		if ok {
			klog.V(1).Infof("Unknown kind %s, guessing its scope from the declaration", u.GroupVersionKind())
			return u.GetNamespace() != "", nil
		}
	}
	return false, err
}
