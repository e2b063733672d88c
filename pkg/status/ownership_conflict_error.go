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

package status

import "sigs.k8s.io/controller-runtime/pkg/client"

// OwnershipConflictErrorCode is the error code for a live object owned by a
// different application.
const OwnershipConflictErrorCode = "1007"

var ownershipConflictErrorBuilder = NewErrorBuilder(OwnershipConflictErrorCode)

// OwnershipConflictError reports that application declares obj but the live
// object belongs to owner. The live object is left untouched.
func OwnershipConflictError(obj client.Object, application, owner string) Error {
	return ownershipConflictErrorBuilder.
		Sprintf("application %q declares an object which is owned by application %q", application, owner).
		BuildWithResources(obj)
}
