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

package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"kpt.dev/appsync/pkg/applier"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/engine"
	"kpt.dev/appsync/pkg/inventory"
	"kpt.dev/appsync/pkg/project"
	"kpt.dev/appsync/pkg/reconciler"
	"kpt.dev/appsync/pkg/source"
	"kpt.dev/appsync/pkg/status"
	"kpt.dev/appsync/pkg/testing/fake"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	repo    = "https://example.com/apps.git"
	timeout = 5 * time.Second
	tick    = 10 * time.Millisecond
)

const projectYAML = `apiVersion: appsync.kpt.dev/v1alpha1
kind: AppProject
metadata:
  name: platform
spec:
  sourceRepos:
  - "*"
  destinations:
  - server: "*"
    namespace: "*"
`

func applicationSetYAML(name, dir, nameFormat string) string {
	return fmt.Sprintf(`apiVersion: appsync.kpt.dev/v1alpha1
kind: ApplicationSet
metadata:
  name: %s
spec:
  source:
    repoURL: %s
    revision: main
  directories:
  - path: %q
  template:
    metadata:
      name: %q
    spec:
      project: platform
      destination:
        namespace: "{{path.basename}}"
      syncPolicy:
        automated:
          prune: true
          selfHeal: true
`, name, repo, dir, nameFormat)
}

const configMapYAML = `apiVersion: v1
kind: ConfigMap
metadata:
  name: config
data:
  key: value
`

type harness struct {
	engine  *engine.Engine
	client  client.Client
	applier *applier.Applier
	fetcher *fake.Fetcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := fake.NewClient()
	fetcher := fake.NewFetcher()
	gate := project.NewGate()
	a := applier.New(applier.Options{
		Client:     c,
		Fetcher:    fetcher,
		Gate:       gate,
		Inventory:  inventory.NewConfigMapStore(c, ""),
		APITimeout: time.Second,
	})
	r := reconciler.New(reconciler.Options{
		Executor:      a,
		Projects:      gate,
		RetryDelay:    10 * time.Millisecond,
		MaxRetryDelay: 50 * time.Millisecond,
	})
	watcher := source.NewWatcher(fetcher, source.WithBackoff(wait.Backoff{Duration: time.Millisecond, Steps: 1}))
	e := engine.New(engine.Options{
		Repo:       repo,
		Revision:   "main",
		Watcher:    watcher,
		Gate:       gate,
		Reconciler: r,
		Live:       a,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{engine: e, client: c, applier: a, fetcher: fetcher}
}

func (h *harness) waitForPhase(t *testing.T, name string, phase status.Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		result, _, found := h.engine.Application(name)
		return found && result.Phase == phase
	}, timeout, tick, "application %q never reached %s", name, phase)
}

func (h *harness) waitForAbsent(t *testing.T, name string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, _, found := h.engine.Application(name)
		return !found
	}, timeout, tick, "application %q is still tracked", name)
}

func (h *harness) configMapExists(t *testing.T, namespace string) bool {
	t.Helper()
	cm := &corev1.ConfigMap{}
	err := h.client.Get(context.Background(), client.ObjectKey{Namespace: namespace, Name: "config"}, cm)
	if apierrors.IsNotFound(err) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fetcher.SetTree(repo, "c1", map[string]string{
		"appsync/project.yaml":  projectYAML,
		"appsync/services.yaml": applicationSetYAML("services", "services/*", "svc-{{path.basename}}"),
		"services/a/cm.yaml":    configMapYAML,
		"services/b/cm.yaml":    configMapYAML,
	})

	require.NoError(t, h.engine.Sync(ctx))
	h.waitForPhase(t, "svc-a", status.PhaseSynced)
	h.waitForPhase(t, "svc-b", status.PhaseSynced)
	assert.True(t, h.configMapExists(t, "a"))
	assert.True(t, h.configMapExists(t, "b"))

	_, descB, found := h.engine.Application("svc-b")
	require.True(t, found)
	assert.Equal(t, "services/b", descB.Source.Path)

	live, tracked, err := h.engine.Live(ctx, "svc-a")
	require.NoError(t, err)
	require.True(t, tracked)
	assert.Contains(t, live, core.IDOf(fake.ConfigMapObject("config", nil, core.Namespace("a"))))

	sets := h.engine.ApplicationSets()
	require.Len(t, sets, 1)
	assert.Equal(t, []string{"svc-a", "svc-b"}, sets[0].Applications)
	assert.Equal(t, "c1", sets[0].Commit)
	require.Len(t, h.engine.Projects(), 1)

	// services/b is removed from the source.
	h.fetcher.SetTree(repo, "c2", map[string]string{
		"appsync/project.yaml":  projectYAML,
		"appsync/services.yaml": applicationSetYAML("services", "services/*", "svc-{{path.basename}}"),
		"services/a/cm.yaml":    configMapYAML,
	})
	require.NoError(t, h.engine.Sync(ctx))
	h.waitForAbsent(t, "svc-b")

	live, err = h.applier.Live(ctx, descB)
	require.NoError(t, err)
	assert.Empty(t, live)
	_, tracked, err = h.engine.Live(ctx, "svc-b")
	require.NoError(t, err)
	assert.False(t, tracked)
	assert.False(t, h.configMapExists(t, "b"))
	assert.True(t, h.configMapExists(t, "a"), "svc-a is untouched")
	h.waitForPhase(t, "svc-a", status.PhaseSynced)
	assert.Equal(t, []string{"svc-a"}, h.engine.ApplicationSets()[0].Applications)

	// The ApplicationSet is removed.
	h.fetcher.SetTree(repo, "c3", map[string]string{
		"appsync/project.yaml": projectYAML,
		"services/a/cm.yaml":   configMapYAML,
	})
	require.NoError(t, h.engine.Sync(ctx))
	h.waitForAbsent(t, "svc-a")
	assert.False(t, h.configMapExists(t, "a"))
	assert.Empty(t, h.engine.ApplicationSets())
}

func TestFetchFailureKeepsLastKnownGood(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fetcher.SetTree(repo, "c1", map[string]string{
		"appsync/project.yaml":  projectYAML,
		"appsync/services.yaml": applicationSetYAML("services", "services/*", "svc-{{path.basename}}"),
		"services/a/cm.yaml":    configMapYAML,
	})
	require.NoError(t, h.engine.Sync(ctx))
	h.waitForPhase(t, "svc-a", status.PhaseSynced)

	h.fetcher.SetError(repo, errors.New("connection refused"))
	err := h.engine.Sync(ctx)
	require.Error(t, err)
	assert.Equal(t, status.FetchErrorCode, status.CodeOf(err))

	sets := h.engine.ApplicationSets()
	require.Len(t, sets, 1)
	assert.True(t, sets[0].Stale)
	assert.Equal(t, status.CodePrefix+status.FetchErrorCode, sets[0].Code)
	assert.Equal(t, []string{"svc-a"}, sets[0].Applications)
	assert.Equal(t, status.CodePrefix+status.FetchErrorCode, h.engine.LastPass().Code)

	_, _, found := h.engine.Application("svc-a")
	assert.True(t, found, "the application is kept")
	assert.True(t, h.configMapExists(t, "a"))
}

func TestNamingCollisionKeepsPreviousApplications(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	files := map[string]string{
		"appsync/project.yaml":  projectYAML,
		"appsync/services.yaml": applicationSetYAML("services", "*/api", "{{path.basename}}"),
		"services/api/cm.yaml":  configMapYAML,
	}
	h.fetcher.SetTree(repo, "c1", files)
	require.NoError(t, h.engine.Sync(ctx))
	h.waitForPhase(t, "api", status.PhaseSynced)

	files["legacy/api/cm.yaml"] = configMapYAML
	h.fetcher.SetTree(repo, "c2", files)
	require.NoError(t, h.engine.Sync(ctx))

	sets := h.engine.ApplicationSets()
	require.Len(t, sets, 1)
	assert.Equal(t, status.CodePrefix+status.NamingCollisionErrorCode, sets[0].Code)
	assert.Empty(t, sets[0].Applications)
	result, desc, found := h.engine.Application("api")
	require.True(t, found)
	assert.Equal(t, status.PhaseSynced, result.Phase)
	assert.Equal(t, "services/api", desc.Source.Path)
}

func TestDuplicateNameAcrossApplicationSets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fetcher.SetTree(repo, "c1", map[string]string{
		"appsync/project.yaml": projectYAML,
		"appsync/alpha.yaml":   applicationSetYAML("alpha", "services/*", "shared-{{path.basename}}"),
		"appsync/beta.yaml":    applicationSetYAML("beta", "services/a", "shared-{{path.basename}}"),
		"services/a/cm.yaml":   configMapYAML,
	})
	require.NoError(t, h.engine.Sync(ctx))
	h.waitForPhase(t, "shared-a", status.PhaseSynced)

	sets := h.engine.ApplicationSets()
	require.Len(t, sets, 2)
	assert.Equal(t, "alpha", sets[0].Name)
	assert.Empty(t, sets[0].Code)
	assert.Equal(t, "beta", sets[1].Name)
	assert.Equal(t, status.CodePrefix+status.NamingCollisionErrorCode, sets[1].Code)

	result, _, _ := h.engine.Application("shared-a")
	assert.Equal(t, "alpha", result.ApplicationSet)
}

func TestMissingControlPath(t *testing.T) {
	h := newHarness(t)
	h.fetcher.SetTree(repo, "c1", map[string]string{
		"services/a/cm.yaml": configMapYAML,
	})
	err := h.engine.Sync(context.Background())
	assert.Equal(t, status.ManifestErrorCode, status.CodeOf(err))
}

func TestRefreshDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		h.engine.Refresh()
	}
}
