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

// Package diff compares declared objects with the objects observed on the
// target.
package diff

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"kpt.dev/appsync/pkg/metadata"
)

// Operation indicates what action should be taken if we detect a difference
// between declared configuration and the state of the target.
type Operation string

const (
	// NoOp indicates that no action should be taken.
	NoOp = Operation("no-op")

	// Create indicates the resource should be created.
	Create = Operation("create")

	// Update indicates the resource is declared and is on the target, but
	// the declared fields differ from the live ones.
	Update = Operation("update")

	// Delete indicates the resource is owned by the application but no
	// longer declared.
	Delete = Operation("delete")

	// Conflict indicates the resource exists on the target and is owned by
	// another application.
	Conflict = Operation("conflict")
)

// Diff is a resource as declared in the source and as observed on the
// target. Either side may be nil.
type Diff struct {
	// Declared is the resource as it exists in the repository.
	Declared *unstructured.Unstructured
	// Actual is the resource as it exists on the target.
	Actual *unstructured.Unstructured
}

// Operation returns the action application has to take to make Actual match
// Declared.
func (d Diff) Operation(application string) Operation {
	switch {
	case d.Declared != nil && d.Actual == nil:
		return Create
	case d.Declared != nil && d.Actual != nil:
		if owner := metadata.OwnerOf(d.Actual); owner != "" && owner != application {
			return Conflict
		}
		if len(Fields(d.Declared, d.Actual)) == 0 {
			return NoOp
		}
		return Update
	case d.Declared == nil && d.Actual != nil:
		if metadata.IsOwnedBy(d.Actual, application) {
			return Delete
		}
		return NoOp
	default:
		// Neither declared nor on the target.
		return NoOp
	}
}
