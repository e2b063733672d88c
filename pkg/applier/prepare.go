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

	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/api/appsync"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/diff"
	"kpt.dev/appsync/pkg/manifest"
	"kpt.dev/appsync/pkg/metadata"
	"kpt.dev/appsync/pkg/status"
	"sigs.k8s.io/cli-utils/pkg/ordering"
)

// InClusterName is accepted as a destination server naming the cluster the
// controller runs in.
const InClusterName = "in-cluster"

// prepare returns the objects of desc as they are written to the target,
// in apply order, and the commit they were read at. Nothing is written.
func (a *Applier) prepare(ctx context.Context, desc declared.Descriptor) ([]*unstructured.Unstructured, string, error) {
	if err := checkServer(desc); err != nil {
		return nil, "", err
	}
	if d := a.gate.AuthorizeDestination(desc); !d.Allowed {
		return nil, "", status.PermissionDenied(desc.Name, desc.Project, d.Reason)
	}

	fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()
	tree, err := a.fetcher.Fetch(fctx, desc.Source.RepoURL, desc.Source.Revision)
	if err != nil {
		return nil, "", err
	}
	if !tree.HasDir(desc.Source.Path) {
		return nil, tree.Commit, status.ManifestErrorf(desc.Source.Path, "directory does not exist at %s", tree.Commit)
	}
	objs, err := manifest.Read(tree, desc.Source.Path, desc.Source.Recurse)
	if err != nil {
		return nil, tree.Commit, err
	}

	if err := a.decorate(desc, objs); err != nil {
		return nil, tree.Commit, err
	}
	if desc.SyncPolicy.CreateNamespace && desc.Destination.Namespace != "" {
		objs = withNamespace(desc, objs)
	}
	if err := checkDuplicates(objs); err != nil {
		return nil, tree.Commit, err
	}
	if err := declareFields(objs); err != nil {
		return nil, tree.Commit, err
	}

	if d := a.gate.Authorize(desc, objs, a.target.namespaced); !d.Allowed {
		return nil, tree.Commit, status.PermissionDenied(desc.Name, desc.Project, d.Reason)
	}

	sort.Sort(ordering.SortableUnstructureds(objs))
	return objs, tree.Commit, nil
}

func checkServer(desc declared.Descriptor) error {
	switch desc.Destination.Server {
	case "", appsync.DefaultServer, InClusterName:
		return nil
	}
	return status.ApplyErrorf(nil, "destination server "+desc.Destination.Server+
		" is not supported, only "+appsync.DefaultServer+" is")
}

// decorate sets the owner labels on every object and puts namespaced
// objects into the destination namespace.
func (a *Applier) decorate(desc declared.Descriptor, objs []*unstructured.Unstructured) error {
	var errs error
	for _, obj := range objs {
		core.AddLabels(obj, metadata.OwnerLabels(desc.Name, desc.ApplicationSet))

		namespaced, err := a.target.namespaced(obj)
		if err != nil {
			errs = multierr.Append(errs, status.ApplyError(err, "determine the scope of", obj))
			continue
		}
		if !namespaced {
			obj.SetNamespace("")
			continue
		}
		switch {
		case obj.GetNamespace() == "" && desc.Destination.Namespace != "":
			obj.SetNamespace(desc.Destination.Namespace)
		case obj.GetNamespace() == "":
			obj.SetNamespace("default")
		case desc.Destination.Namespace != "" && obj.GetNamespace() != desc.Destination.Namespace:
			errs = multierr.Append(errs, status.OutsideDestinationError(obj, desc.Destination.Namespace))
		}
	}
	return errs
}

// withNamespace prepends the destination Namespace unless the manifests
// declare it themselves.
func withNamespace(desc declared.Descriptor, objs []*unstructured.Unstructured) []*unstructured.Unstructured {
	for _, obj := range objs {
		if obj.GetKind() == "Namespace" && obj.GroupVersionKind().Group == "" && obj.GetName() == desc.Destination.Namespace {
			return objs
		}
	}
	ns := &unstructured.Unstructured{}
	ns.SetAPIVersion("v1")
	ns.SetKind("Namespace")
	ns.SetName(desc.Destination.Namespace)
	core.AddLabels(ns, metadata.OwnerLabels(desc.Name, desc.ApplicationSet))
	// Other applications may deploy into the same namespace.
	core.SetAnnotation(ns, metadata.SyncOptionsAnnotationKey, metadata.SyncOptionPruneDisabled)
	klog.V(2).Infof("Application %q creates its destination namespace %q", desc.Name, desc.Destination.Namespace)
	return append([]*unstructured.Unstructured{ns}, objs...)
}

// declareFields records on every object the fields it declares, so the
// next apply can remove the ones a later commit drops.
func declareFields(objs []*unstructured.Unstructured) error {
	var errs error
	for _, obj := range objs {
		if err := diff.SetDeclaredFields(obj); err != nil {
			errs = multierr.Append(errs, status.ApplyError(err, "record the declared fields of", obj))
		}
	}
	return errs
}

func checkDuplicates(objs []*unstructured.Unstructured) error {
	seen := make(map[core.ID]string, len(objs))
	var errs error
	for _, obj := range objs {
		id := core.IDOf(obj)
		file := core.GetAnnotation(obj, metadata.SourcePathAnnotationKey)
		if other, found := seen[id]; found {
			errs = multierr.Append(errs, status.ManifestErrorf(file, "%s is also declared in %q", id, other))
			continue
		}
		seen[id] = file
	}
	return errs
}
