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

import (
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/cli-utils/pkg/object"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ID uniquely identifies a resource on an API Server.
type ID struct {
	schema.GroupKind
	client.ObjectKey
}

// IDOf converts an Object to its ID.
func IDOf(o client.Object) ID {
	return ID{
		GroupKind: o.GetObjectKind().GroupVersionKind().GroupKind(),
		ObjectKey: client.ObjectKeyFromObject(o),
	}
}

// String implements fmt.Stringer.
func (i ID) String() string {
	return fmt.Sprintf("%s, %s/%s", i.GroupKind.String(), i.Namespace, i.Name)
}

// ObjMetadata converts the ID to the cli-utils inventory representation.
func (i ID) ObjMetadata() object.ObjMetadata {
	return object.ObjMetadata{
		GroupKind: i.GroupKind,
		Namespace: i.Namespace,
		Name:      i.Name,
	}
}

// FromObjMetadata converts a cli-utils ObjMetadata back to an ID.
func FromObjMetadata(m object.ObjMetadata) ID {
	return ID{
		GroupKind: m.GroupKind,
		ObjectKey: client.ObjectKey{Namespace: m.Namespace, Name: m.Name},
	}
}

// IDSet is a set of resource IDs.
type IDSet map[ID]struct{}

// NewIDSet returns a set holding the given IDs.
func NewIDSet(ids ...ID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// IDSetOf returns the IDs of the given objects.
func IDSetOf(objs []*unstructured.Unstructured) IDSet {
	s := make(IDSet, len(objs))
	for _, o := range objs {
		s[IDOf(o)] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id ID) bool {
	_, found := s[id]
	return found
}

// Union returns a new set with the IDs of both sets.
func (s IDSet) Union(other IDSet) IDSet {
	out := make(IDSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Difference returns the IDs in s which are not in other.
func (s IDSet) Difference(other IDSet) IDSet {
	out := make(IDSet)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the IDs in a stable order.
func (s IDSet) Sorted() []ID {
	ids := make([]ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}
