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

// PermissionDeniedCode is the error code for an application its project does
// not allow.
const PermissionDeniedCode = "1003"

var permissionDeniedBuilder = NewErrorBuilder(PermissionDeniedCode)

// PermissionDenied reports that project does not allow application.
// No call is made against the target.
func PermissionDenied(application, project, reason string) Error {
	return permissionDeniedBuilder.
		Sprintf("application %q is not permitted by project %q: %s", application, project, reason).
		Build()
}
