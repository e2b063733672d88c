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

package manifest

import (
	"sort"

	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/metadata"
	"kpt.dev/appsync/pkg/source"
	"kpt.dev/appsync/pkg/status"
)

// Control holds the operator-authored documents of the control directory.
type Control struct {
	// ApplicationSets are sorted by name.
	ApplicationSets []*v1alpha1.ApplicationSet
	// Projects are sorted by name.
	Projects []*v1alpha1.AppProject
}

// LoadControl reads every ApplicationSet and AppProject declared under dir.
// Other objects in dir are ignored. Declaring two documents of the same kind
// with the same name is an error.
func LoadControl(tree *source.Tree, dir string) (*Control, error) {
	objs, err := Read(tree, dir, true)
	if err != nil {
		return nil, err
	}

	control := &Control{}
	seen := make(map[core.ID]string)
	var errs error
	for _, obj := range objs {
		gvk := obj.GroupVersionKind()
		if gvk != v1alpha1.ApplicationSetGVK() && gvk != v1alpha1.AppProjectGVK() {
			klog.V(2).Infof("Ignoring %s in control directory %q", core.IDOf(obj), dir)
			continue
		}
		file := core.GetAnnotation(obj, metadata.SourcePathAnnotationKey)
		id := core.IDOf(obj)
		id.Namespace = ""
		if other, found := seen[id]; found {
			errs = multierr.Append(errs, status.ManifestErrorf(file,
				"%s %q is also declared in %q", gvk.Kind, obj.GetName(), other))
			continue
		}
		seen[id] = file

		switch gvk.Kind {
		case v1alpha1.ApplicationSetKind:
			rule := &v1alpha1.ApplicationSet{}
			if err := fromUnstructured(file, obj, rule); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			control.ApplicationSets = append(control.ApplicationSets, rule)
		case v1alpha1.AppProjectKind:
			project := &v1alpha1.AppProject{}
			if err := fromUnstructured(file, obj, project); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			control.Projects = append(control.Projects, project)
		}
	}
	if errs != nil {
		return nil, errs
	}

	sort.Slice(control.ApplicationSets, func(i, j int) bool {
		return control.ApplicationSets[i].Name < control.ApplicationSets[j].Name
	})
	sort.Slice(control.Projects, func(i, j int) bool {
		return control.Projects[i].Name < control.Projects[j].Name
	})
	return control, nil
}

func fromUnstructured(file string, u *unstructured.Unstructured, obj interface{}) error {
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(u.Object, obj); err != nil {
		return status.ManifestError(file, err)
	}
	return nil
}
