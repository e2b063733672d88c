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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DefaultProject is the project used when a template does not name one.
const DefaultProject = "default"

// AppProject bounds what the applications assigned to it may deploy, and
// where.
type AppProject struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec AppProjectSpec `json:"spec"`
}

// AppProjectSpec holds the whitelists and blacklists of a project. Patterns
// are globs; `*` matches everything.
type AppProjectSpec struct {
	// SourceRepos are the repositories applications may read from.
	// +optional
	SourceRepos []string `json:"sourceRepos,omitempty"`

	// Destinations are the server/namespace pairs applications may deploy to.
	// +optional
	Destinations []ApplicationDestination `json:"destinations,omitempty"`

	// ClusterResourceWhitelist lists the cluster-scoped kinds that may be
	// deployed. Empty means none.
	// +optional
	ClusterResourceWhitelist []metav1.GroupKind `json:"clusterResourceWhitelist,omitempty"`

	// ClusterResourceBlacklist lists cluster-scoped kinds that are denied even
	// when whitelisted.
	// +optional
	ClusterResourceBlacklist []metav1.GroupKind `json:"clusterResourceBlacklist,omitempty"`

	// NamespaceResourceWhitelist lists the namespaced kinds that may be
	// deployed. Empty means all.
	// +optional
	NamespaceResourceWhitelist []metav1.GroupKind `json:"namespaceResourceWhitelist,omitempty"`

	// NamespaceResourceBlacklist lists namespaced kinds that are denied.
	// +optional
	NamespaceResourceBlacklist []metav1.GroupKind `json:"namespaceResourceBlacklist,omitempty"`
}
