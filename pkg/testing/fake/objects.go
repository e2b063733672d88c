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

package fake

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"kpt.dev/appsync/pkg/core"
)

// UnstructuredObject initializes an Unstructured of gvk.
func UnstructuredObject(gvk schema.GroupVersionKind, name string, opts ...core.MetaMutator) *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(gvk)
	u.SetName(name)
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ConfigMapObject initializes a ConfigMap with data.
func ConfigMapObject(name string, data map[string]string, opts ...core.MetaMutator) *unstructured.Unstructured {
	u := UnstructuredObject(corev1.SchemeGroupVersion.WithKind("ConfigMap"), name, opts...)
	if data != nil {
		d := make(map[string]interface{}, len(data))
		for k, v := range data {
			d[k] = v
		}
		u.Object["data"] = d
	}
	return u
}

// NamespaceObject initializes a Namespace.
func NamespaceObject(name string, opts ...core.MetaMutator) *unstructured.Unstructured {
	return UnstructuredObject(corev1.SchemeGroupVersion.WithKind("Namespace"), name, opts...)
}

// DeploymentObject initializes a Deployment with replicas.
func DeploymentObject(name string, replicas int64, opts ...core.MetaMutator) *unstructured.Unstructured {
	u := UnstructuredObject(appsv1.SchemeGroupVersion.WithKind("Deployment"), name, opts...)
	u.Object["spec"] = map[string]interface{}{
		"replicas": replicas,
		"selector": map[string]interface{}{
			"matchLabels": map[string]interface{}{"app": name},
		},
		"template": map[string]interface{}{
			"metadata": map[string]interface{}{
				"labels": map[string]interface{}{"app": name},
			},
			"spec": map[string]interface{}{
				"containers": []interface{}{
					map[string]interface{}{"name": name, "image": "nginx"},
				},
			},
		},
	}
	return u
}

// ClusterRoleObject initializes a ClusterRole.
func ClusterRoleObject(name string, opts ...core.MetaMutator) *unstructured.Unstructured {
	return UnstructuredObject(rbacv1.SchemeGroupVersion.WithKind("ClusterRole"), name, opts...)
}
