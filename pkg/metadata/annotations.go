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

import "kpt.dev/appsync/pkg/api/appsync"

const (
	// SourcePathAnnotationKey is the slash-separated path of the file the
	// resource was declared in, relative to the repository root.
	// This annotation is set by appsync on a managed resource.
	SourcePathAnnotationKey = appsync.Prefix + "source-path"

	// SyncWaveAnnotationKey orders the applications generated by a single
	// rule. Lower waves settle before higher waves are dispatched.
	// This annotation is set by users on an ApplicationSet template.
	SyncWaveAnnotationKey = appsync.Prefix + "sync-wave"

	// SyncOptionsAnnotationKey holds comma-separated per-resource options.
	// This annotation is set by users on a resource in the source.
	SyncOptionsAnnotationKey = appsync.Prefix + "sync-options"

	// DeclaredFieldsAnnotationKey stores the fields of a resource declared
	// in the source when it was last applied. This uses the same format as
	// the managed fields of server-side apply.
	// This annotation is set by appsync on a managed resource.
	DeclaredFieldsAnnotationKey = appsync.Prefix + "declared-fields"
)

const (
	// SyncOptionPruneDisabled prevents a resource from being pruned once it
	// is no longer declared.
	SyncOptionPruneDisabled = "Prune=false"

	// SyncOptionCreateNamespace asks appsync to create the destination
	// Namespace of an application.
	SyncOptionCreateNamespace = "CreateNamespace=true"
)

const (
	// LocalConfigAnnotationKey marks a resource in the source which is never
	// applied.
	LocalConfigAnnotationKey = "config.kubernetes.io/local-config"

	// LocalConfigValue is the value of LocalConfigAnnotationKey which skips
	// a resource.
	LocalConfigValue = "true"
)
