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

package metadata

import (
	"strings"

	"kpt.dev/appsync/pkg/core"
)

// OwnerOf returns the application which owns obj, or "" if it is unowned.
func OwnerOf(obj core.Labeled) string {
	return core.GetLabel(obj, ApplicationLabel)
}

// IsOwnedBy returns true if obj carries the owner label of application.
func IsOwnedBy(obj core.Labeled, application string) bool {
	return application != "" && OwnerOf(obj) == application
}

// HasSyncOption returns true if the comma-separated sync-options annotation
// of obj contains option.
func HasSyncOption(obj core.Annotated, option string) bool {
	return HasOption(strings.Split(core.GetAnnotation(obj, SyncOptionsAnnotationKey), ","), option)
}

// HasOption returns true if options contains option, ignoring whitespace.
func HasOption(options []string, option string) bool {
	for _, o := range options {
		if strings.TrimSpace(o) == option {
			return true
		}
	}
	return false
}

// PruneDisabled returns true if obj must never be pruned.
func PruneDisabled(obj core.Annotated) bool {
	return HasSyncOption(obj, SyncOptionPruneDisabled)
}
