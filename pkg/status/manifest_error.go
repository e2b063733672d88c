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

// ManifestErrorCode is the error code for manifests which cannot be applied
// as declared.
const ManifestErrorCode = "1006"

var manifestErrorBuilder = NewErrorBuilder(ManifestErrorCode)

// ManifestError reports that the file at path could not be parsed.
func ManifestError(path string, err error) Error {
	return manifestErrorBuilder.
		Sprintf("unable to read manifests from %q", path).
		Wrap(err).
		Build()
}

// ManifestErrorf reports that the file at path declares something invalid.
func ManifestErrorf(path, format string, a ...interface{}) Error {
	return manifestErrorBuilder.
		Sprintf("invalid manifest %q", path).
		Sprintf(format, a...).
		Build()
}

// OutsideDestinationError reports that obj declares a namespace other than
// the destination namespace of its application.
func OutsideDestinationError(obj client.Object, destination string) Error {
	return manifestErrorBuilder.
		Sprintf("object declares namespace %q but its application is restricted to namespace %q",
			obj.GetNamespace(), destination).
		BuildWithResources(obj)
}
