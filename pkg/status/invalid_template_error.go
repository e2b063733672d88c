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

// InvalidTemplateErrorCode is the error code for a malformed
// ApplicationSet template, or one which renders an invalid value.
const InvalidTemplateErrorCode = "1005"

var invalidTemplateErrorBuilder = NewErrorBuilder(InvalidTemplateErrorCode)

// InvalidTemplateError reports that the template string tmpl of rule is
// unusable.
func InvalidTemplateError(rule, tmpl, reason string) Error {
	return invalidTemplateErrorBuilder.
		Sprintf("ApplicationSet %q has an invalid template %q: %s", rule, tmpl, reason).
		Build()
}

// InvalidRenderedValueError reports that rendering field of rule for path
// produced an invalid value.
func InvalidRenderedValueError(rule, path, field, value, reason string) Error {
	return invalidTemplateErrorBuilder.
		Sprintf("ApplicationSet %q renders an invalid %s %q for directory %q: %s", rule, field, value, path, reason).
		Build()
}
