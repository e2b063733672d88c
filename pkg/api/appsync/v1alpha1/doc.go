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

// Package v1alpha1 contains the operator-authored appsync documents:
// ApplicationSet (a directory generator rule) and AppProject (an
// authorization boundary). Both are read from the control directory of the
// bootstrap source; they are never written by the controller.
package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"kpt.dev/appsync/pkg/api/appsync"
)

const (
	// ApplicationSetKind is the kind of a generator rule document.
	ApplicationSetKind = "ApplicationSet"
	// AppProjectKind is the kind of a project document.
	AppProjectKind = "AppProject"
)

// SchemeGroupVersion is group version used for appsync documents.
var SchemeGroupVersion = schema.GroupVersion{Group: appsync.GroupName, Version: "v1alpha1"}

// ApplicationSetGVK returns the GroupVersionKind of ApplicationSet.
func ApplicationSetGVK() schema.GroupVersionKind {
	return SchemeGroupVersion.WithKind(ApplicationSetKind)
}

// AppProjectGVK returns the GroupVersionKind of AppProject.
func AppProjectGVK() schema.GroupVersionKind {
	return SchemeGroupVersion.WithKind(AppProjectKind)
}
