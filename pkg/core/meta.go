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

package core

import "sigs.k8s.io/controller-runtime/pkg/client"

// MetaMutator is a Mutator that modifies the metadata of an Object.
type MetaMutator func(o client.Object)

// Namespace replaces the metadata.namespace of the Object under test.
func Namespace(namespace string) MetaMutator {
	return func(o client.Object) {
		o.SetNamespace(namespace)
	}
}

// Name replaces the metadata.name of the Object under test.
func Name(name string) MetaMutator {
	return func(o client.Object) {
		o.SetName(name)
	}
}

// Label adds label=value to the metadata.labels of the Object under test.
func Label(label, value string) MetaMutator {
	return func(o client.Object) {
		SetLabel(o, label, value)
	}
}

// Labels sets the object's labels to a copy of the passed map.
func Labels(labels map[string]string) MetaMutator {
	return func(o client.Object) {
		o.SetLabels(CopyMap(labels))
	}
}

// Annotation adds annotation=value to the metadata.annotations of the Object under test.
func Annotation(annotation, value string) MetaMutator {
	return func(o client.Object) {
		SetAnnotation(o, annotation, value)
	}
}

// Annotations sets the object's annotations to a copy of the passed map.
func Annotations(annotations map[string]string) MetaMutator {
	return func(o client.Object) {
		o.SetAnnotations(CopyMap(annotations))
	}
}

// ResourceVersion sets the object's resource version to the given value.
func ResourceVersion(version string) MetaMutator {
	return func(o client.Object) {
		o.SetResourceVersion(version)
	}
}
