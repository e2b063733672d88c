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
	"fmt"
	"reflect"
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// runtimeMetadata are metadata fields written by the API server. They are
// never compared and never copied from a declared object.
var runtimeMetadata = map[string]bool{
	"resourceVersion":            true,
	"uid":                        true,
	"generation":                 true,
	"creationTimestamp":          true,
	"deletionTimestamp":          true,
	"deletionGracePeriodSeconds": true,
	"managedFields":              true,
	"selfLink":                   true,
}

// Fields returns the paths of the fields declared differs from live in,
// sorted. Only fields set in declared are compared, so values defaulted by
// the API server are not drift. Fields declared by the last apply which
// declared dropped since are drift while live still has them. The status of
// an object is never compared.
func Fields(declared, live *unstructured.Unstructured) []string {
	var paths []string
	for _, k := range sortedKeys(declared.Object) {
		if k == "status" {
			continue
		}
		dv := declared.Object[k]
		lv, found := live.Object[k]
		if k == "metadata" {
			compareMetadata(dv, lv, &paths)
			continue
		}
		if !found {
			if !isEmpty(dv) {
				paths = append(paths, "."+k)
			}
			continue
		}
		compare("."+k, dv, lv, &paths)
	}
	paths = append(paths, removedPaths(declared, live)...)
	sort.Strings(paths)
	return paths
}

func compareMetadata(declared, live interface{}, paths *[]string) {
	dm, ok := declared.(map[string]interface{})
	if !ok {
		return
	}
	lm, _ := live.(map[string]interface{})
	for _, k := range sortedKeys(dm) {
		if runtimeMetadata[k] {
			continue
		}
		lv, found := lm[k]
		if !found {
			if !isEmpty(dm[k]) {
				*paths = append(*paths, ".metadata."+k)
			}
			continue
		}
		compare(".metadata."+k, dm[k], lv, paths)
	}
}

func compare(path string, declared, live interface{}, paths *[]string) {
	switch d := declared.(type) {
	case map[string]interface{}:
		l, ok := live.(map[string]interface{})
		if !ok {
			if len(d) > 0 || live != nil {
				*paths = append(*paths, path)
			}
			return
		}
		for _, k := range sortedKeys(d) {
			lv, found := l[k]
			if !found {
				if !isEmpty(d[k]) {
					*paths = append(*paths, path+"."+k)
				}
				continue
			}
			compare(path+"."+k, d[k], lv, paths)
		}
	case []interface{}:
		l, ok := live.([]interface{})
		if !ok {
			if len(d) > 0 || live != nil {
				*paths = append(*paths, path)
			}
			return
		}
		if len(d) != len(l) {
			*paths = append(*paths, path)
			return
		}
		for i := range d {
			compare(fmt.Sprintf("%s[%d]", path, i), d[i], l[i], paths)
		}
	default:
		if !scalarEqual(declared, live) {
			*paths = append(*paths, path)
		}
	}
}

func scalarEqual(declared, live interface{}) bool {
	dn, dok := number(declared)
	ln, lok := number(live)
	if dok && lok {
		return dn == ln
	}
	return reflect.DeepEqual(declared, live)
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]interface{}:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	}
	return false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns live with every field set in declared overwritten by the
// declared value, and without the fields the last apply declared but
// declared no longer does. Maps are merged recursively; lists and scalars
// are replaced. The result keeps the resourceVersion of live, so updating
// the target with it fails if live is no longer current.
func Merge(declared, live *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	merged, err := withoutRemoved(declared, live)
	if err != nil {
		return nil, err
	}
	for k, dv := range declared.Object {
		switch k {
		case "status":
			continue
		case "metadata":
			dm, ok := dv.(map[string]interface{})
			if !ok {
				continue
			}
			lm, ok := merged.Object["metadata"].(map[string]interface{})
			if !ok {
				lm = make(map[string]interface{})
				merged.Object["metadata"] = lm
			}
			for mk, mv := range dm {
				if runtimeMetadata[mk] {
					continue
				}
				lm[mk] = mergeValue(lm[mk], mv)
			}
		default:
			merged.Object[k] = mergeValue(merged.Object[k], dv)
		}
	}
	return merged, nil
}

func mergeValue(live, declared interface{}) interface{} {
	dm, dok := declared.(map[string]interface{})
	lm, lok := live.(map[string]interface{})
	if !dok || !lok {
		return runtime.DeepCopyJSONValue(declared)
	}
	for k, v := range dm {
		lm[k] = mergeValue(lm[k], v)
	}
	return lm
}
