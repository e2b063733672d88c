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

package diff

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/metadata"
	"sigs.k8s.io/structured-merge-diff/v4/fieldpath"
	"sigs.k8s.io/structured-merge-diff/v4/typed"
)

// identityFields identify an object and are never removed from it.
var identityFields = fieldpath.NewSet(
	fieldpath.MakePathOrDie("apiVersion"),
	fieldpath.MakePathOrDie("kind"),
	fieldpath.MakePathOrDie("metadata"),
	fieldpath.MakePathOrDie("metadata", "name"),
	fieldpath.MakePathOrDie("metadata", "namespace"),
)

// DeclaredFields returns the fields obj declares, in the format of the
// managed fields of server-side apply. The status of obj and its
// declared-fields annotation are not part of the set.
func DeclaredFields(obj *unstructured.Unstructured) (*fieldpath.Set, error) {
	u := obj.DeepCopy()
	delete(u.Object, "status")
	if annotations := u.GetAnnotations(); annotations != nil {
		delete(annotations, metadata.DeclaredFieldsAnnotationKey)
		if len(annotations) == 0 {
			annotations = nil
		}
		u.SetAnnotations(annotations)
	}
	for field := range runtimeMetadata {
		unstructured.RemoveNestedField(u.Object, "metadata", field)
	}

	val, err := typed.DeducedParseableType.FromUnstructured(u.Object)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse the declared fields")
	}
	set, err := val.ToFieldSet()
	if err != nil {
		return nil, errors.Wrap(err, "unable to compute the declared fields")
	}
	return set.Difference(identityFields), nil
}

// SetDeclaredFields records the fields obj declares in its declared-fields
// annotation. Once obj is applied, the annotation tells the next apply which
// fields to remove when a later declaration drops them.
func SetDeclaredFields(obj *unstructured.Unstructured) error {
	set, err := DeclaredFields(obj)
	if err != nil {
		return err
	}
	fields, err := set.ToJSON()
	if err != nil {
		return errors.Wrap(err, "unable to encode the declared fields")
	}
	core.SetAnnotation(obj, metadata.DeclaredFieldsAnnotationKey, string(fields))
	return nil
}

// previouslyDeclared returns the fields recorded on live by the last apply.
// An object which was never applied by appsync declares nothing.
func previouslyDeclared(live *unstructured.Unstructured) (*fieldpath.Set, error) {
	set := &fieldpath.Set{}
	encoded := core.GetAnnotation(live, metadata.DeclaredFieldsAnnotationKey)
	if encoded == "" {
		return set, nil
	}
	if err := set.FromJSON(bytes.NewReader([]byte(encoded))); err != nil {
		return nil, errors.Wrapf(err, "unable to decode the %s annotation", metadata.DeclaredFieldsAnnotationKey)
	}
	return set, nil
}

// Removed returns the fields which were declared when live was last applied
// but which declared no longer declares.
func Removed(declared, live *unstructured.Unstructured) (*fieldpath.Set, error) {
	previous, err := previouslyDeclared(live)
	if err != nil {
		return nil, err
	}
	if previous.Empty() {
		return previous, nil
	}
	current, err := DeclaredFields(declared)
	if err != nil {
		return nil, err
	}
	return previous.Difference(current), nil
}

// removedPaths returns the paths of the removed fields still set on live,
// sorted.
func removedPaths(declared, live *unstructured.Unstructured) []string {
	removed, err := Removed(declared, live)
	if err != nil || removed.Empty() {
		return nil
	}
	var paths []string
	removed.Iterate(func(p fieldpath.Path) {
		fields := make([]string, 0, len(p))
		for _, pe := range p {
			if pe.FieldName == nil {
				return
			}
			fields = append(fields, *pe.FieldName)
		}
		if _, found, _ := unstructured.NestedFieldNoCopy(live.Object, fields...); found {
			paths = append(paths, p.String())
		}
	})
	sort.Strings(paths)
	return paths
}

// withoutRemoved returns a copy of live without the fields removed from
// declared since live was last applied.
func withoutRemoved(declared, live *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	removed, err := Removed(declared, live)
	if err != nil {
		return nil, err
	}
	if removed.Empty() {
		return live.DeepCopy(), nil
	}
	val, err := typed.DeducedParseableType.FromUnstructured(live.DeepCopy().Object)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse the live object")
	}
	pruned, ok := val.RemoveItems(removed).AsValue().Unstructured().(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("removing %s left no object", removed)
	}
	return &unstructured.Unstructured{Object: pruned}, nil
}
