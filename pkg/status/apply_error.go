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

// ApplyErrorCode is the error code for a failed call against the target.
const ApplyErrorCode = "1004"

var applyErrorBuilder = NewErrorBuilder(ApplyErrorCode)

// ApplyError reports that operation failed for obj.
func ApplyError(err error, operation string, obj client.Object) Error {
	return applyErrorBuilder.
		Sprintf("failed to %s object", operation).
		Wrap(err).
		BuildWithResources(obj)
}

// ApplyErrorf reports a failure against the target which is not about a
// single object. err may be nil.
func ApplyErrorf(err error, message string) Error {
	if err == nil {
		return applyErrorBuilder.Sprint(message).Build()
	}
	return applyErrorBuilder.Sprint(message).Wrap(err).Build()
}
