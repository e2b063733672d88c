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
	// ApplicationLabel records the name of the application which owns a
	// resource. Resources are pruned only when this label matches.
	// This label is set by appsync on a managed resource.
	ApplicationLabel = appsync.Prefix + "application"

	// ApplicationSetLabel records the rule which generated the owning
	// application.
	// This label is set by appsync on a managed resource.
	ApplicationSetLabel = appsync.Prefix + "application-set"

	// InventoryLabel marks the ConfigMaps appsync uses as inventories.
	InventoryLabel = appsync.Prefix + "inventory"
)

// ManagedByKey is the recommended Kubernetes label for marking a resource as managed by an
// application.
const ManagedByKey = "app.kubernetes.io/managed-by"

// ManagedByValue marks the resource as managed by appsync.
const ManagedByValue = appsync.CLIName

// OwnerLabels returns the labels appsync sets on every resource applied for
// the named application.
func OwnerLabels(application, rule string) map[string]string {
	labels := map[string]string{
		ManagedByKey:     ManagedByValue,
		ApplicationLabel: application,
	}
	if rule != "" {
		labels[ApplicationSetLabel] = rule
	}
	return labels
}
