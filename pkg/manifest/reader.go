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

// Package manifest reads Kubernetes objects declared in a source tree.
package manifest

import (
	"bytes"
	"path"
	"strings"

	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	utiljson "k8s.io/apimachinery/pkg/util/json"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/metadata"
	"kpt.dev/appsync/pkg/source"
	"kpt.dev/appsync/pkg/status"
	"sigs.k8s.io/kustomize/kyaml/kio"
	"sigs.k8s.io/yaml"
)

// Read returns the objects declared by the files in dir, or anywhere below
// dir if recurse is set. Every object is annotated with the path of the file
// declaring it. Objects marked as local configuration are skipped.
//
// Read keeps going after a file fails to parse so that every invalid file
// is reported at once.
func Read(tree *source.Tree, dir string, recurse bool) ([]*unstructured.Unstructured, error) {
	var objs []*unstructured.Unstructured
	var errs error
	for _, file := range tree.FilesIn(dir, recurse) {
		if !isManifest(file) {
			continue
		}
		contents, err := tree.ReadFile(file)
		if err != nil {
			errs = multierr.Append(errs, status.ManifestError(file, err))
			continue
		}
		parsed, err := Parse(file, contents)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, obj := range parsed {
			core.SetAnnotation(obj, metadata.SourcePathAnnotationKey, file)
		}
		objs = append(objs, parsed...)
	}
	if errs != nil {
		return nil, errs
	}
	klog.V(3).Infof("Read %d objects from %s/%s at %s", len(objs), tree.Repo, dir, tree.Commit)
	return objs, nil
}

// Parse returns the objects declared in contents. The format is chosen by
// the extension of file; files which are neither YAML nor JSON declare
// nothing.
func Parse(file string, contents []byte) ([]*unstructured.Unstructured, error) {
	var objs []*unstructured.Unstructured
	var err error
	switch strings.ToLower(path.Ext(file)) {
	case ".yaml", ".yml":
		objs, err = parseYAML(file, contents)
	case ".json":
		objs, err = parseJSON(file, contents)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	objs, err = flattenLists(file, objs)
	if err != nil {
		return nil, err
	}
	for _, obj := range objs {
		if err := validate(file, obj); err != nil {
			return nil, err
		}
	}
	return filterLocalConfig(objs), nil
}

func isManifest(file string) bool {
	if strings.HasPrefix(path.Base(file), ".") {
		return false
	}
	switch strings.ToLower(path.Ext(file)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func parseYAML(file string, contents []byte) ([]*unstructured.Unstructured, error) {
	reader := &kio.ByteReader{
		Reader:                bytes.NewReader(contents),
		OmitReaderAnnotations: true,
	}
	nodes, err := reader.Read()
	if err != nil {
		return nil, status.ManifestError(file, err)
	}
	var result []*unstructured.Unstructured
	for _, node := range nodes {
		if node.IsNilOrEmpty() {
			// Kubernetes ignores empty documents.
			continue
		}
		document, err := node.String()
		if err != nil {
			return nil, status.ManifestError(file, err)
		}
		jsn, err := yaml.YAMLToJSON([]byte(document))
		if err != nil {
			return nil, status.ManifestError(file, err)
		}
		u, err := decode(file, jsn)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, nil
}

func parseJSON(file string, contents []byte) ([]*unstructured.Unstructured, error) {
	if len(bytes.TrimSpace(contents)) == 0 {
		// While an empty file is not valid JSON, Kubernetes allows empty JSON
		// files when applying multiple files.
		return nil, nil
	}
	// A JSON file declares exactly one object.
	u, err := decode(file, contents)
	if err != nil {
		return nil, err
	}
	return []*unstructured.Unstructured{u}, nil
}

// decode keeps integers as int64 so objects can be deep-copied and compared
// with live objects read from the API server.
func decode(file string, jsn []byte) (*unstructured.Unstructured, error) {
	content := map[string]interface{}{}
	if err := utiljson.Unmarshal(jsn, &content); err != nil {
		return nil, status.ManifestError(file, err)
	}
	return &unstructured.Unstructured{Object: content}, nil
}

// flattenLists replaces every v1 List with its items.
func flattenLists(file string, objs []*unstructured.Unstructured) ([]*unstructured.Unstructured, error) {
	var result []*unstructured.Unstructured
	for _, obj := range objs {
		if obj.GetKind() != "List" || !obj.IsList() {
			result = append(result, obj)
			continue
		}
		err := obj.EachListItem(func(item runtime.Object) error {
			result = append(result, item.(*unstructured.Unstructured))
			return nil
		})
		if err != nil {
			return nil, status.ManifestError(file, err)
		}
	}
	return result, nil
}

func validate(file string, obj *unstructured.Unstructured) error {
	switch {
	case obj.GetAPIVersion() == "":
		return status.ManifestErrorf(file, "object %q is missing apiVersion", obj.GetName())
	case obj.GetKind() == "":
		return status.ManifestErrorf(file, "object %q is missing kind", obj.GetName())
	case obj.GetName() == "":
		return status.ManifestErrorf(file, "%s object is missing metadata.name", obj.GetKind())
	}
	return nil
}

func filterLocalConfig(objs []*unstructured.Unstructured) []*unstructured.Unstructured {
	var result []*unstructured.Unstructured
	for _, u := range objs {
		if core.GetAnnotation(u, metadata.LocalConfigAnnotationKey) == metadata.LocalConfigValue {
			klog.V(3).Infof("Skipping local configuration %s", core.IDOf(u))
			continue
		}
		result = append(result, u)
	}
	return result
}
