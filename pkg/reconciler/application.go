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

package reconciler

import (
	"context"

	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/status"
)

// Policy controls how changes to the applications of one ApplicationSet are
// propagated.
type Policy struct {
	// AllowUpdate propagates changed descriptors to tracked applications.
	AllowUpdate bool
	// AllowDelete removes applications whose directory disappeared.
	AllowDelete bool
	// PreserveResources keeps the objects of removed applications.
	PreserveResources bool
}

// PolicyOf returns the Policy configured on set.
func PolicyOf(set *v1alpha1.ApplicationSet) Policy {
	p := set.ApplicationsSyncPolicy()
	return Policy{
		AllowUpdate:       p.AllowUpdate(),
		AllowDelete:       p.AllowDelete(),
		PreserveResources: set.PreserveResourcesOnDeletion(),
	}
}

// removal is what happens to an application which left the desired set.
type removal int

const (
	// keep means the application is desired.
	keep removal = iota
	// prune deletes the objects of the application, then forgets it.
	prune
	// orphan leaves the objects in place and keeps the application visible.
	orphan
	// forget leaves the objects in place and stops tracking the application.
	forget
)

func (r removal) String() string {
	switch r {
	case keep:
		return "keep"
	case prune:
		return "prune"
	case orphan:
		return "orphan"
	default:
		return "forget"
	}
}

// application is the tracked state of one identity.
type application struct {
	desc        declared.Descriptor
	commit      string
	fingerprint string
	removal     removal

	// generation increases whenever the desired state changes: a changed
	// descriptor, a new commit or a return to the desired set.
	generation int64
	// applied is the last generation applied without error.
	applied int64
	// settled is the generation result was computed for.
	settled int64

	// deniedGeneration and deniedProject record the last PermissionDenied,
	// which is not retried until either changes.
	deniedGeneration int64
	deniedProject    string

	result status.SyncResult
	// cancel stops the in-flight operation, if any.
	cancel context.CancelFunc
}

func (a *application) desired() bool {
	return a.removal == keep
}

// isSettled returns true if the current desired state was reconciled.
func (a *application) isSettled() bool {
	return a.desired() && a.settled == a.generation && a.result.Phase.Settled()
}

// supersede cancels the in-flight operation, which stops at the next object
// boundary.
func (a *application) supersede() {
	if a.cancel != nil {
		a.cancel()
	}
}
