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

// Package project authorizes applications against the AppProject they are
// assigned to.
package project

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/gobwas/glob"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/declared"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	// Reason explains a denial. It is empty when Allowed is true.
	Reason string
}

// Allow permits the checked operation.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny rejects the checked operation.
func Deny(format string, a ...interface{}) Decision {
	return Decision{Reason: fmt.Sprintf(format, a...)}
}

// ScopeFunc reports whether obj is namespaced.
// client.Client.IsObjectNamespaced satisfies it.
type ScopeFunc func(obj runtime.Object) (bool, error)

// Gate holds the current AppProjects and checks applications against them.
// Gate is safe for concurrent use.
type Gate struct {
	mux      sync.RWMutex
	projects map[string]*v1alpha1.AppProject

	globMux sync.Mutex
	globs   map[string]glob.Glob
}

// NewGate returns a Gate without projects. Every application is denied
// until SetProjects is called.
func NewGate() *Gate {
	return &Gate{
		projects: make(map[string]*v1alpha1.AppProject),
		globs:    make(map[string]glob.Glob),
	}
}

// SetProjects replaces the known projects.
func (g *Gate) SetProjects(projects []*v1alpha1.AppProject) {
	byName := make(map[string]*v1alpha1.AppProject, len(projects))
	for _, p := range projects {
		byName[p.Name] = p.DeepCopy()
	}
	g.mux.Lock()
	defer g.mux.Unlock()
	g.projects = byName
}

// Project returns the project named name.
func (g *Gate) Project(name string) (*v1alpha1.AppProject, bool) {
	g.mux.RLock()
	defer g.mux.RUnlock()
	p, found := g.projects[name]
	if !found {
		return nil, false
	}
	return p.DeepCopy(), true
}

// Projects returns every known project, sorted by name.
func (g *Gate) Projects() []*v1alpha1.AppProject {
	g.mux.RLock()
	defer g.mux.RUnlock()
	result := make([]*v1alpha1.AppProject, 0, len(g.projects))
	for _, p := range g.projects {
		result = append(result, p.DeepCopy())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Fingerprint returns a digest of the spec of the project named name, or ""
// if there is no such project. A denied application is only retried once
// the fingerprint of its project changes.
func (g *Gate) Fingerprint(name string) string {
	p, found := g.Project(name)
	if !found {
		return ""
	}
	b, err := json.Marshal(p.Spec)
	if err != nil {
		klog.Errorf("Failed to encode AppProject %q: %v", name, err)
		return ""
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return fmt.Sprintf("%016x", h.Sum64())
}

// AuthorizeDestination checks the source repository and destination of desc
// against its project. It needs no manifests, so it runs before anything
// is fetched.
func (g *Gate) AuthorizeDestination(desc declared.Descriptor) Decision {
	p, found := g.Project(desc.Project)
	if !found {
		return Deny("project %q does not exist", desc.Project)
	}
	if !g.matchAny(p.Spec.SourceRepos, desc.Source.RepoURL) {
		return Deny("source repository %q is not permitted in project %q", desc.Source.RepoURL, p.Name)
	}
	if !g.destinationAllowed(p, desc.Destination.Server, desc.Destination.Namespace) {
		return Deny("destination {%s %s} is not permitted in project %q",
			desc.Destination.Server, desc.Destination.Namespace, p.Name)
	}
	return Allow()
}

// Authorize checks desc and every object it would apply against its project.
// Cluster-scoped objects must be whitelisted, except the destination
// Namespace of an application which creates it. Namespaced objects are
// allowed unless a namespaced whitelist exists and does not list them.
// Blacklists always win.
func (g *Gate) Authorize(desc declared.Descriptor, objs []*unstructured.Unstructured, namespaced ScopeFunc) Decision {
	if d := g.AuthorizeDestination(desc); !d.Allowed {
		return d
	}
	p, found := g.Project(desc.Project)
	if !found {
		return Deny("project %q does not exist", desc.Project)
	}

	for _, obj := range objs {
		gk := obj.GroupVersionKind().GroupKind()
		isNamespaced, err := namespaced(obj)
		if err != nil {
			return Deny("unable to determine the scope of %s: %v", core.IDOf(obj), err)
		}
		if !isNamespaced {
			if isOwnNamespace(desc, obj) {
				continue
			}
			if g.matchGroupKind(p.Spec.ClusterResourceBlacklist, gk.Group, gk.Kind) ||
				!g.matchGroupKind(p.Spec.ClusterResourceWhitelist, gk.Group, gk.Kind) {
				return Deny("cluster-scoped resource %s is not permitted in project %q", core.IDOf(obj), p.Name)
			}
			continue
		}
		if g.matchGroupKind(p.Spec.NamespaceResourceBlacklist, gk.Group, gk.Kind) {
			return Deny("resource %s is blacklisted in project %q", core.IDOf(obj), p.Name)
		}
		if len(p.Spec.NamespaceResourceWhitelist) > 0 &&
			!g.matchGroupKind(p.Spec.NamespaceResourceWhitelist, gk.Group, gk.Kind) {
			return Deny("resource %s is not whitelisted in project %q", core.IDOf(obj), p.Name)
		}
		if ns := obj.GetNamespace(); ns != "" && !g.destinationAllowed(p, desc.Destination.Server, ns) {
			return Deny("namespace %q of %s is not a permitted destination in project %q", ns, core.IDOf(obj), p.Name)
		}
	}
	return Allow()
}

func isOwnNamespace(desc declared.Descriptor, obj *unstructured.Unstructured) bool {
	gk := obj.GroupVersionKind().GroupKind()
	return desc.SyncPolicy.CreateNamespace &&
		gk.Group == "" && gk.Kind == "Namespace" &&
		obj.GetName() == desc.Destination.Namespace
}

func (g *Gate) destinationAllowed(p *v1alpha1.AppProject, server, namespace string) bool {
	for _, d := range p.Spec.Destinations {
		if g.match(d.Server, server) && g.match(d.Namespace, namespace) {
			return true
		}
	}
	return false
}

func (g *Gate) matchGroupKind(list []metav1.GroupKind, group, kind string) bool {
	for _, item := range list {
		if g.match(item.Group, group) && g.match(item.Kind, kind) {
			return true
		}
	}
	return false
}

func (g *Gate) matchAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if g.match(p, s) {
			return true
		}
	}
	return false
}

// match reports whether s matches the glob pattern. An invalid pattern
// matches only itself.
func (g *Gate) match(pattern, s string) bool {
	if pattern == s {
		return true
	}
	g.globMux.Lock()
	compiled, found := g.globs[pattern]
	if !found {
		var err error
		compiled, err = glob.Compile(pattern)
		if err != nil {
			klog.Warningf("Invalid AppProject pattern %q: %v", pattern, err)
		}
		g.globs[pattern] = compiled
	}
	g.globMux.Unlock()
	return compiled != nil && compiled.Match(s)
}
