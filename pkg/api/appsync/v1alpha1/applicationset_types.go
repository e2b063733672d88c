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

// ApplicationSet discovers directories in a Git repository and generates one
// application per matching directory from Spec.Template.
type ApplicationSet struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec ApplicationSetSpec `json:"spec"`
}

// ApplicationSetSpec is the generator configuration.
type ApplicationSetSpec struct {
	// Source is the repository scanned for directories.
	Source SourceSpec `json:"source"`

	// Directories lists the path globs to include or exclude. A directory is
	// selected when it matches at least one include entry and no exclude
	// entry.
	Directories []DirectoryItem `json:"directories"`

	// Values are static parameters, available to templates as
	// `{{values.<key>}}`.
	// +optional
	Values map[string]string `json:"values,omitempty"`

	// Template is rendered once per selected directory.
	Template ApplicationTemplate `json:"template"`

	// +optional
	SyncPolicy *ApplicationSetSyncPolicy `json:"syncPolicy,omitempty"`
}

// SourceSpec identifies a repository at a revision.
type SourceSpec struct {
	// RepoURL is the URL of the repository. Local paths and file:// URLs are
	// opened in place instead of being cloned.
	RepoURL string `json:"repoURL"`

	// Revision is a branch, tag or commit. Defaults to HEAD.
	// +optional
	Revision string `json:"revision,omitempty"`
}

// DirectoryItem is a single path glob.
type DirectoryItem struct {
	Path string `json:"path"`
	// +optional
	Exclude bool `json:"exclude,omitempty"`
}

// ApplicationTemplate is the template for the generated applications.
type ApplicationTemplate struct {
	Metadata TemplateMeta    `json:"metadata"`
	Spec     ApplicationSpec `json:"spec"`
}

// TemplateMeta holds the templated name, labels and annotations.
type TemplateMeta struct {
	Name string `json:"name"`
	// +optional
	Labels map[string]string `json:"labels,omitempty"`
	// +optional
	Annotations map[string]string `json:"annotations,omitempty"`
}

// ApplicationSpec is the templated spec of a generated application.
type ApplicationSpec struct {
	// Project is the AppProject the application is authorized against.
	// Defaults to "default".
	// +optional
	Project string `json:"project,omitempty"`

	// +optional
	Source ApplicationSource `json:"source,omitempty"`

	Destination ApplicationDestination `json:"destination"`

	// +optional
	SyncPolicy SyncPolicy `json:"syncPolicy,omitempty"`
}

// ApplicationSource controls where the manifests of an application are read.
type ApplicationSource struct {
	// Path is the templated directory containing the manifests. Defaults to
	// the matched directory.
	// +optional
	Path string `json:"path,omitempty"`

	// Recurse reads manifests from subdirectories too.
	// +optional
	Recurse bool `json:"recurse,omitempty"`
}

// ApplicationDestination is where the manifests are applied.
type ApplicationDestination struct {
	// +optional
	Server string `json:"server,omitempty"`
	// +optional
	Namespace string `json:"namespace,omitempty"`
}

// SyncPolicy controls pruning, self-healing and namespace creation.
type SyncPolicy struct {
	// +optional
	Automated *SyncPolicyAutomated `json:"automated,omitempty"`
	// SyncOptions are `Key=value` options; `CreateNamespace=true` is
	// recognized.
	// +optional
	SyncOptions []string `json:"syncOptions,omitempty"`
}

// SyncPolicyAutomated enables automatic pruning and self-heal.
type SyncPolicyAutomated struct {
	// +optional
	Prune bool `json:"prune,omitempty"`
	// +optional
	SelfHeal bool `json:"selfHeal,omitempty"`
}

// ApplicationsSyncPolicy limits which changes are propagated to generated
// applications.
type ApplicationsSyncPolicy string

const (
	// ApplicationsSyncPolicyCreateOnly never updates or deletes applications.
	ApplicationsSyncPolicyCreateOnly ApplicationsSyncPolicy = "create-only"
	// ApplicationsSyncPolicyCreateUpdate never deletes applications.
	ApplicationsSyncPolicyCreateUpdate ApplicationsSyncPolicy = "create-update"
	// ApplicationsSyncPolicyCreateDelete never updates applications.
	ApplicationsSyncPolicyCreateDelete ApplicationsSyncPolicy = "create-delete"
	// ApplicationsSyncPolicySync creates, updates and deletes applications.
	ApplicationsSyncPolicySync ApplicationsSyncPolicy = "sync"
)

// AllowUpdate reports whether generated applications may be updated.
func (s ApplicationsSyncPolicy) AllowUpdate() bool {
	return s == "" || s == ApplicationsSyncPolicyCreateUpdate || s == ApplicationsSyncPolicySync
}

// AllowDelete reports whether generated applications may be deleted.
func (s ApplicationsSyncPolicy) AllowDelete() bool {
	return s == "" || s == ApplicationsSyncPolicySync || s == ApplicationsSyncPolicyCreateDelete
}

// ApplicationSetSyncPolicy configures how generated applications relate to
// the ApplicationSet.
type ApplicationSetSyncPolicy struct {
	// PreserveResourcesOnDeletion keeps the resources of an application whose
	// directory was removed; the application itself is forgotten.
	// +optional
	PreserveResourcesOnDeletion bool `json:"preserveResourcesOnDeletion,omitempty"`

	// +optional
	ApplicationsSync *ApplicationsSyncPolicy `json:"applicationsSync,omitempty"`
}

// ApplicationsSyncPolicy returns the configured policy, or "sync".
func (a *ApplicationSet) ApplicationsSyncPolicy() ApplicationsSyncPolicy {
	if a.Spec.SyncPolicy == nil || a.Spec.SyncPolicy.ApplicationsSync == nil {
		return ApplicationsSyncPolicySync
	}
	return *a.Spec.SyncPolicy.ApplicationsSync
}

// PreserveResourcesOnDeletion returns the configured flag.
func (a *ApplicationSet) PreserveResourcesOnDeletion() bool {
	return a.Spec.SyncPolicy != nil && a.Spec.SyncPolicy.PreserveResourcesOnDeletion
}
