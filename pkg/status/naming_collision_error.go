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

import (
	"sort"
	"strings"
)

// NamingCollisionErrorCode is the error code for two paths, or two rules,
// generating the same application name.
const NamingCollisionErrorCode = "1002"

var namingCollisionErrorBuilder = NewErrorBuilder(NamingCollisionErrorCode)

// NamingCollisionError reports that every one of paths rendered the
// application name under rule. The rule yields no applications until fixed.
func NamingCollisionError(rule, name string, paths []string) Error {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	return namingCollisionErrorBuilder.
		Sprintf("ApplicationSet %q renders the application name %q for more than one directory: [%s]",
			rule, name, strings.Join(sorted, ", ")).
		Build()
}

// DuplicateApplicationError reports that rule generates an application name
// already generated by otherRule.
func DuplicateApplicationError(rule, otherRule, name string) Error {
	return namingCollisionErrorBuilder.
		Sprintf("ApplicationSet %q renders the application name %q, which ApplicationSet %q already generates",
			rule, name, otherRule).
		Build()
}
