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

package reconciler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/reconciler"
	"kpt.dev/appsync/pkg/status"
)

const (
	rule    = "services"
	timeout = 5 * time.Second
	tick    = 10 * time.Millisecond
)

var syncPolicy = reconciler.Policy{AllowUpdate: true, AllowDelete: true}

type fakeExecutor struct {
	mux     sync.Mutex
	events  []string
	applies map[string]int
	drifts  map[string]int
	deletes map[string]int
	drifted bool
	apply   func(ctx context.Context, desc declared.Descriptor) status.SyncResult
}

func newExecutor() *fakeExecutor {
	return &fakeExecutor{
		applies: map[string]int{},
		drifts:  map[string]int{},
		deletes: map[string]int{},
	}
}

func (f *fakeExecutor) record(event string) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeExecutor) Events() []string {
	f.mux.Lock()
	defer f.mux.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeExecutor) count(m map[string]int, name string) int {
	f.mux.Lock()
	defer f.mux.Unlock()
	return m[name]
}

func synced(desc declared.Descriptor) status.SyncResult {
	return status.SyncResult{
		Application:    desc.Name,
		ApplicationSet: desc.ApplicationSet,
		Status:         status.SyncStatusSynced,
		Health:         status.HealthHealthy,
	}
}

func (f *fakeExecutor) Apply(ctx context.Context, desc declared.Descriptor) status.SyncResult {
	f.mux.Lock()
	f.applies[desc.Name]++
	apply := f.apply
	f.mux.Unlock()
	if apply != nil {
		return apply(ctx, desc)
	}
	f.record("apply " + desc.Name)
	return synced(desc)
}

func (f *fakeExecutor) Drift(_ context.Context, desc declared.Descriptor) (bool, status.SyncResult) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.drifts[desc.Name]++
	result := synced(desc)
	if f.drifted {
		result.Status = status.SyncStatusOutOfSync
		result.Drift = true
	}
	return f.drifted, result
}

func (f *fakeExecutor) Delete(_ context.Context, desc declared.Descriptor) error {
	f.record("delete " + desc.Name)
	f.mux.Lock()
	defer f.mux.Unlock()
	f.deletes[desc.Name]++
	return nil
}

type fakeProjects struct {
	mux          sync.Mutex
	fingerprints map[string]string
}

func (p *fakeProjects) Fingerprint(name string) string {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.fingerprints[name]
}

func (p *fakeProjects) set(name, fingerprint string) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.fingerprints[name] = fingerprint
}

func descriptor(name string, wave int) declared.Descriptor {
	return declared.Descriptor{
		Name:           name,
		ApplicationSet: rule,
		Project:        "platform",
		Source:         declared.Source{RepoURL: "https://example.com/apps.git", Revision: "main", Path: "services/" + name},
		Destination:    declared.Destination{Namespace: name},
		SyncPolicy:     declared.SyncPolicy{AutoPrune: true, SelfHeal: true},
		Wave:           wave,
	}
}

func start(t *testing.T, exec *fakeExecutor, projects *fakeProjects) *reconciler.Reconciler {
	t.Helper()
	opts := reconciler.Options{
		Executor:      exec,
		Workers:       4,
		RetryDelay:    10 * time.Millisecond,
		MaxRetryDelay: 50 * time.Millisecond,
	}
	if projects != nil {
		opts.Projects = projects
	}
	r := reconciler.New(opts)
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
	return r
}

func waitForPhase(t *testing.T, r *reconciler.Reconciler, name string, phase status.Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		result, found := r.Get(name)
		return found && result.Phase == phase
	}, timeout, tick, "application %q never reached %s", name, phase)
}

func waitForAbsent(t *testing.T, r *reconciler.Reconciler, name string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, found := r.Get(name)
		return !found
	}, timeout, tick, "application %q is still tracked", name)
}

func TestLifecycle(t *testing.T) {
	exec := newExecutor()
	r := start(t, exec, nil)

	r.SetDesired(rule, syncPolicy, "c1", []declared.Descriptor{descriptor("a", 0), descriptor("b", 0)})
	waitForPhase(t, r, "a", status.PhaseSynced)
	waitForPhase(t, r, "b", status.PhaseSynced)

	results := r.Status()
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Application)
	assert.Equal(t, "b", results[1].Application)

	r.SetDesired(rule, syncPolicy, "c2", []declared.Descriptor{descriptor("a", 0)})
	waitForAbsent(t, r, "b")
	assert.Equal(t, 1, exec.count(exec.deletes, "b"))
	assert.Zero(t, exec.count(exec.deletes, "a"))
	waitForPhase(t, r, "a", status.PhaseSynced)
	assert.Equal(t, []string{rule}, r.Rules())

	r.RemoveRule(rule)
	waitForAbsent(t, r, "a")
	assert.Equal(t, 1, exec.count(exec.deletes, "a"))
	assert.Empty(t, r.Rules())
}

func TestWaveOrdering(t *testing.T) {
	exec := newExecutor()
	var mux sync.Mutex
	started := map[string]bool{}
	var log []string
	bothStarted := make(chan struct{})
	var closeOnce sync.Once
	exec.apply = func(_ context.Context, desc declared.Descriptor) status.SyncResult {
		mux.Lock()
		log = append(log, "start "+desc.Name)
		started[desc.Name] = true
		if started["x"] && started["y"] {
			closeOnce.Do(func() { close(bothStarted) })
		}
		mux.Unlock()

		if desc.Wave == 0 {
			// Same-wave applications run in parallel.
			select {
			case <-bothStarted:
			case <-time.After(timeout):
				return synced(desc).WithError(status.InternalError("wave 0 did not run in parallel"))
			}
		} else {
			time.Sleep(50 * time.Millisecond)
		}

		mux.Lock()
		log = append(log, "end "+desc.Name)
		mux.Unlock()
		return synced(desc)
	}
	r := start(t, exec, nil)

	r.SetDesired(rule, syncPolicy, "c1", []declared.Descriptor{
		descriptor("x", 0), descriptor("y", 0), descriptor("first", -1),
	})
	waitForPhase(t, r, "x", status.PhaseSynced)
	waitForPhase(t, r, "y", status.PhaseSynced)

	mux.Lock()
	defer mux.Unlock()
	require.GreaterOrEqual(t, len(log), 4)
	assert.Equal(t, []string{"start first", "end first"}, log[:2])
}

func TestPermissionDeniedIsNotRetriedUntilChange(t *testing.T) {
	exec := newExecutor()
	exec.apply = func(_ context.Context, desc declared.Descriptor) status.SyncResult {
		return synced(desc).WithError(status.PermissionDenied(desc.Name, desc.Project, "destination not allowed"))
	}
	projects := &fakeProjects{fingerprints: map[string]string{"platform": "v1"}}
	r := start(t, exec, projects)

	r.SetDesired(rule, syncPolicy, "c1", []declared.Descriptor{descriptor("a", 0)})
	waitForPhase(t, r, "a", status.PhaseError)
	result, _ := r.Get("a")
	assert.Equal(t, status.CodePrefix+status.PermissionDeniedCode, result.Code)

	for i := 0; i < 3; i++ {
		r.Resync()
	}
	r.SetDesired(rule, syncPolicy, "c1", []declared.Descriptor{descriptor("a", 0)})
	assert.Never(t, func() bool {
		return exec.count(exec.applies, "a") > 1
	}, 200*time.Millisecond, tick)

	projects.set("platform", "v2")
	r.Resync()
	require.Eventually(t, func() bool {
		return exec.count(exec.applies, "a") == 2
	}, timeout, tick)

	// A changed descriptor is also retried.
	changed := descriptor("a", 0)
	changed.Destination.Namespace = "elsewhere"
	r.SetDesired(rule, syncPolicy, "c1", []declared.Descriptor{changed})
	require.Eventually(t, func() bool {
		return exec.count(exec.applies, "a") == 3
	}, timeout, tick)
}

func TestErrorIsRetriedWithBackoff(t *testing.T) {
	exec := newExecutor()
	var failures int
	exec.apply = func(_ context.Context, desc declared.Descriptor) status.SyncResult {
		if failures < 2 {
			failures++
			return synced(desc).WithError(status.ApplyErrorf(nil, "the target is unavailable"))
		}
		return synced(desc)
	}
	r := start(t, exec, nil)

	r.SetDesired(rule, syncPolicy, "c1", []declared.Descriptor{descriptor("a", 0)})
	waitForPhase(t, r, "a", status.PhaseSynced)
	assert.Equal(t, 3, exec.count(exec.applies, "a"))
}

func TestSelfHeal(t *testing.T) {
	testCases := []struct {
		name       string
		selfHeal   bool
		wantPhase  status.Phase
		wantApply  int
		wantDrifts int
	}{
		{
			name:      "drift is corrected",
			selfHeal:  true,
			wantPhase: status.PhaseSynced,
			wantApply: 2,
		},
		{
			name:       "drift is reported only",
			selfHeal:   false,
			wantPhase:  status.PhaseOutOfSync,
			wantApply:  1,
			wantDrifts: 1,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			exec := newExecutor()
			exec.drifted = true
			r := start(t, exec, nil)

			desc := descriptor("a", 0)
			desc.SyncPolicy.SelfHeal = tc.selfHeal
			r.SetDesired(rule, syncPolicy, "c1", []declared.Descriptor{desc})
			waitForPhase(t, r, "a", status.PhaseSynced)

			r.Resync()
			require.Eventually(t, func() bool {
				return exec.count(exec.applies, "a") == tc.wantApply && exec.count(exec.drifts, "a") == tc.wantDrifts
			}, timeout, tick)
			waitForPhase(t, r, "a", tc.wantPhase)
		})
	}
}

func TestNewCommitIsAppliedWithoutSelfHeal(t *testing.T) {
	exec := newExecutor()
	r := start(t, exec, nil)

	desc := descriptor("a", 0)
	desc.SyncPolicy.SelfHeal = false
	r.SetDesired(rule, syncPolicy, "c1", []declared.Descriptor{desc})
	waitForPhase(t, r, "a", status.PhaseSynced)

	r.SetDesired(rule, syncPolicy, "c2", []declared.Descriptor{desc})
	require.Eventually(t, func() bool {
		return exec.count(exec.applies, "a") == 2
	}, timeout, tick)
	assert.Zero(t, exec.count(exec.drifts, "a"))
}

func TestInFlightApplyIsCancelledBeforeDelete(t *testing.T) {
	exec := newExecutor()
	applying := make(chan struct{})
	exec.apply = func(ctx context.Context, desc declared.Descriptor) status.SyncResult {
		exec.record("apply " + desc.Name)
		close(applying)
		<-ctx.Done()
		exec.record("apply " + desc.Name + " cancelled")
		return synced(desc).WithError(status.ApplyErrorf(ctx.Err(), "apply interrupted"))
	}
	r := start(t, exec, nil)

	r.SetDesired(rule, syncPolicy, "c1", []declared.Descriptor{descriptor("a", 0)})
	select {
	case <-applying:
	case <-time.After(timeout):
		t.Fatal("apply never started")
	}

	r.SetDesired(rule, syncPolicy, "c2", nil)
	waitForAbsent(t, r, "a")
	assert.Equal(t, []string{"apply a", "apply a cancelled", "delete a"}, exec.Events())
}

func TestRemovalPolicies(t *testing.T) {
	testCases := []struct {
		name      string
		policy    reconciler.Policy
		autoPrune bool
		wantPhase status.Phase
	}{
		{
			name:      "auto-prune disabled orphans the application",
			policy:    syncPolicy,
			wantPhase: status.PhaseOrphaned,
		},
		{
			name:      "preserved resources are not deleted",
			policy:    reconciler.Policy{AllowUpdate: true, AllowDelete: true, PreserveResources: true},
			autoPrune: true,
		},
		{
			name:      "create-update never deletes",
			policy:    reconciler.Policy{AllowUpdate: true},
			autoPrune: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			exec := newExecutor()
			r := start(t, exec, nil)

			desc := descriptor("a", 0)
			desc.SyncPolicy.AutoPrune = tc.autoPrune
			r.SetDesired(rule, tc.policy, "c1", []declared.Descriptor{desc})
			waitForPhase(t, r, "a", status.PhaseSynced)

			r.SetDesired(rule, tc.policy, "c2", nil)
			if tc.wantPhase != "" {
				waitForPhase(t, r, "a", tc.wantPhase)
			} else {
				waitForAbsent(t, r, "a")
			}
			assert.Zero(t, exec.count(exec.deletes, "a"))

			// The application returns once its directory does.
			r.SetDesired(rule, tc.policy, "c3", []declared.Descriptor{desc})
			waitForPhase(t, r, "a", status.PhaseSynced)
		})
	}
}

func TestCreateOnlyKeepsDescriptor(t *testing.T) {
	exec := newExecutor()
	r := start(t, exec, nil)
	createOnly := reconciler.Policy{}

	r.SetDesired(rule, createOnly, "c1", []declared.Descriptor{descriptor("a", 0)})
	waitForPhase(t, r, "a", status.PhaseSynced)

	changed := descriptor("a", 0)
	changed.Destination.Namespace = "elsewhere"
	r.SetDesired(rule, createOnly, "c1", []declared.Descriptor{changed})
	got, found := r.Descriptor("a")
	require.True(t, found)
	assert.Equal(t, "a", got.Destination.Namespace)
}

func TestApplicationOfAnotherRuleIsIgnored(t *testing.T) {
	exec := newExecutor()
	r := start(t, exec, nil)

	r.SetDesired(rule, syncPolicy, "c1", []declared.Descriptor{descriptor("a", 0)})
	waitForPhase(t, r, "a", status.PhaseSynced)

	other := descriptor("a", 0)
	other.ApplicationSet = "other"
	r.SetDesired("other", syncPolicy, "c1", []declared.Descriptor{other})
	got, _ := r.Descriptor("a")
	assert.Equal(t, rule, got.ApplicationSet)
}
