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

package appsync

import "time"

const (
	// GroupName is the name of the group of appsync resources.
	GroupName = "appsync.kpt.dev"

	// Prefix is the prefix for all appsync annotations and labels.
	Prefix = GroupName + "/"

	// FieldManager identifies appsync as the writer of applied objects.
	FieldManager = "appsync"

	// ControllerNamespace is the Namespace used to store appsync inventories.
	ControllerNamespace = "appsync-system"

	// CLIName is the name of the appsync binary.
	CLIName = "appsync"
)

const (
	// DefaultPollInterval is how often the source is polled for changes.
	// Every poll also re-checks each application for drift.
	DefaultPollInterval = 3 * time.Minute

	// DefaultWorkers is the number of applications reconciled concurrently.
	DefaultWorkers = 4

	// DefaultAPITimeout bounds every individual call against the target.
	DefaultAPITimeout = 30 * time.Second

	// DefaultFetchTimeout bounds a single fetch of the source.
	DefaultFetchTimeout = 2 * time.Minute

	// DefaultApplyRetries is the number of attempts for a transient target
	// error before an object is reported as failed.
	DefaultApplyRetries = 3

	// DefaultErrorRetryDelay is the base delay before an application in the
	// Error phase is retried.
	DefaultErrorRetryDelay = 5 * time.Second

	// DefaultMaxErrorRetryDelay caps the per-application retry backoff.
	DefaultMaxErrorRetryDelay = 5 * time.Minute

	// DefaultServer is the destination server of the cluster appsync runs
	// against.
	DefaultServer = "https://kubernetes.default.svc"

	// DefaultListenAddress is where the operator HTTP surface listens.
	DefaultListenAddress = ":8080"

	// DefaultControlPath is the directory of the bootstrap source holding
	// ApplicationSets and AppProjects.
	DefaultControlPath = "appsync"
)
