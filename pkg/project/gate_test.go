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

package project_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"kpt.dev/appsync/pkg/api/appsync"
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/project"
	"kpt.dev/appsync/pkg/testing/fake"
)

const repo = "https://example.com/platform.git"

var secretGVK = schema.GroupVersionKind{Version: "v1", Kind: "Secret"}

func platform() *v1alpha1.AppProject {
	return &v1alpha1.AppProject{
		ObjectMeta: metav1.ObjectMeta{Name: "platform"},
		Spec: v1alpha1.AppProjectSpec{
			SourceRepos: []string{"https://example.com/*"},
			Destinations: []v1alpha1.ApplicationDestination{
				{Server: "*", Namespace: "team-*"},
			},
			ClusterResourceWhitelist: []metav1.GroupKind{
				{Group: "rbac.authorization.k8s.io", Kind: "*"},
			},
			NamespaceResourceBlacklist: []metav1.GroupKind{
				{Group: "", Kind: "Secret"},
			},
		},
	}
}

func descriptor(namespace string) declared.Descriptor {
	return declared.Descriptor{
		Name:        "svc-a",
		Project:     "platform",
		Source:      declared.Source{RepoURL: repo, Revision: "main", Path: "services/a"},
		Destination: declared.Destination{Server: appsync.DefaultServer, Namespace: namespace},
	}
}

func namespaced(obj runtime.Object) (bool, error) {
	u := obj.(*unstructured.Unstructured)
	switch u.GetKind() {
	case "Namespace", "ClusterRole":
		return false, nil
	}
	return true, nil
}

func TestAuthorizeDestination(t *testing.T) {
	gate := project.NewGate()
	gate.SetProjects([]*v1alpha1.AppProject{platform()})

	testCases := []struct {
		name    string
		desc    declared.Descriptor
		allowed bool
	}{
		{
			name:    "permitted destination",
			desc:    descriptor("team-a"),
			allowed: true,
		},
		{
			name: "namespace outside the project",
			desc: descriptor("kube-system"),
		},
		{
			name: "unknown project",
			desc: func() declared.Descriptor {
				d := descriptor("team-a")
				d.Project = "other"
				return d
			}(),
		},
		{
			name: "source repository outside the project",
			desc: func() declared.Descriptor {
				d := descriptor("team-a")
				d.Source.RepoURL = "https://evil.example.org/repo.git"
				return d
			}(),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := gate.AuthorizeDestination(tc.desc)
			assert.Equal(t, tc.allowed, d.Allowed, d.Reason)
			if !tc.allowed {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	gate := project.NewGate()
	gate.SetProjects([]*v1alpha1.AppProject{platform()})

	testCases := []struct {
		name            string
		createNamespace bool
		objs            []*unstructured.Unstructured
		allowed         bool
	}{
		{
			name:    "namespaced objects without a whitelist",
			objs:    []*unstructured.Unstructured{fake.ConfigMapObject("cfg", nil, core.Namespace("team-a")), fake.DeploymentObject("web", 1, core.Namespace("team-a"))},
			allowed: true,
		},
		{
			name: "blacklisted namespaced kind",
			objs: []*unstructured.Unstructured{fake.UnstructuredObject(secretGVK, "token", core.Namespace("team-a"))},
		},
		{
			name:    "whitelisted cluster-scoped kind",
			objs:    []*unstructured.Unstructured{fake.ClusterRoleObject("reader")},
			allowed: true,
		},
		{
			name: "cluster-scoped kind outside the whitelist",
			objs: []*unstructured.Unstructured{fake.NamespaceObject("team-b")},
		},
		{
			name:            "own destination namespace when creating it",
			createNamespace: true,
			objs:            []*unstructured.Unstructured{fake.NamespaceObject("team-a")},
			allowed:         true,
		},
		{
			name:            "another namespace even when creating one",
			createNamespace: true,
			objs:            []*unstructured.Unstructured{fake.NamespaceObject("team-b")},
		},
		{
			name: "object in a namespace outside the project",
			objs: []*unstructured.Unstructured{fake.ConfigMapObject("cfg", nil, core.Namespace("default"))},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			desc := descriptor("team-a")
			desc.SyncPolicy.CreateNamespace = tc.createNamespace
			d := gate.Authorize(desc, tc.objs, namespaced)
			assert.Equal(t, tc.allowed, d.Allowed, d.Reason)
		})
	}
}

func TestClusterWhitelistMissing(t *testing.T) {
	p := platform()
	p.Spec.ClusterResourceWhitelist = nil
	gate := project.NewGate()
	gate.SetProjects([]*v1alpha1.AppProject{p})

	d := gate.Authorize(descriptor("team-a"), []*unstructured.Unstructured{fake.ClusterRoleObject("reader")}, namespaced)
	assert.False(t, d.Allowed)
}

func TestNamespaceWhitelist(t *testing.T) {
	p := platform()
	p.Spec.NamespaceResourceWhitelist = []metav1.GroupKind{{Group: "apps", Kind: "Deployment"}}
	gate := project.NewGate()
	gate.SetProjects([]*v1alpha1.AppProject{p})

	desc := descriptor("team-a")
	assert.True(t, gate.Authorize(desc, []*unstructured.Unstructured{fake.DeploymentObject("web", 1, core.Namespace("team-a"))}, namespaced).Allowed)
	assert.False(t, gate.Authorize(desc, []*unstructured.Unstructured{fake.ConfigMapObject("cfg", nil, core.Namespace("team-a"))}, namespaced).Allowed)
}

func TestFingerprint(t *testing.T) {
	gate := project.NewGate()
	assert.Empty(t, gate.Fingerprint("platform"))

	gate.SetProjects([]*v1alpha1.AppProject{platform()})
	before := gate.Fingerprint("platform")
	assert.NotEmpty(t, before)

	gate.SetProjects([]*v1alpha1.AppProject{platform()})
	assert.Equal(t, before, gate.Fingerprint("platform"))

	changed := platform()
	changed.Spec.Destinations = append(changed.Spec.Destinations, v1alpha1.ApplicationDestination{Server: "*", Namespace: "*"})
	gate.SetProjects([]*v1alpha1.AppProject{changed})
	assert.NotEqual(t, before, gate.Fingerprint("platform"))
}

func TestProjectsAreCopies(t *testing.T) {
	p := platform()
	gate := project.NewGate()
	gate.SetProjects([]*v1alpha1.AppProject{p})
	p.Spec.SourceRepos = nil

	got, found := gate.Project("platform")
	assert.True(t, found)
	assert.Equal(t, []string{"https://example.com/*"}, got.Spec.SourceRepos)
	assert.Len(t, gate.Projects(), 1)
}
