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

package reconciler

import (
	"context"
	"sort"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/workqueue"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/api/appsync"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/metrics"
	"kpt.dev/appsync/pkg/status"
)

// Executor applies, checks and deletes applications on the target.
type Executor interface {
	// Apply makes the target match desc.
	Apply(ctx context.Context, desc declared.Descriptor) status.SyncResult
	// Drift compares the target with desc without writing.
	Drift(ctx context.Context, desc declared.Descriptor) (bool, status.SyncResult)
	// Delete removes the objects of desc from the target.
	Delete(ctx context.Context, desc declared.Descriptor) error
}

// ProjectFingerprints digests projects, so that applications denied by a
// project are retried once it changes.
type ProjectFingerprints interface {
	// Fingerprint returns a digest of the named project, or "" if it does
	// not exist.
	Fingerprint(project string) string
}

// Options configures a Reconciler.
type Options struct {
	Executor Executor
	Projects ProjectFingerprints
	// Workers is the number of applications reconciled concurrently.
	Workers int
	// RetryDelay and MaxRetryDelay bound the backoff of failed applications.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Now           func() time.Time
}

// Reconciler drives every tracked application towards its desired state.
type Reconciler struct {
	executor Executor
	projects ProjectFingerprints
	workers  int
	now      func() time.Time
	queue    workqueue.TypedRateLimitingInterface[string]

	// mux guards the fields below.
	mux sync.Mutex
	// apps is keyed by application name.
	apps map[string]*application
	// policies is keyed by ApplicationSet name.
	policies map[string]Policy
}

// New returns a Reconciler. Call Run to start its workers.
func New(opts Options) *Reconciler {
	if opts.Workers <= 0 {
		opts.Workers = appsync.DefaultWorkers
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = appsync.DefaultErrorRetryDelay
	}
	if opts.MaxRetryDelay <= 0 {
		opts.MaxRetryDelay = appsync.DefaultMaxErrorRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	rateLimiter := workqueue.NewTypedItemExponentialFailureRateLimiter[string](opts.RetryDelay, opts.MaxRetryDelay)
	return &Reconciler{
		executor: opts.Executor,
		projects: opts.Projects,
		workers:  opts.Workers,
		now:      opts.Now,
		queue: workqueue.NewTypedRateLimitingQueueWithConfig(rateLimiter,
			workqueue.TypedRateLimitingQueueConfig[string]{Name: "applications"}),
		apps:     make(map[string]*application),
		policies: make(map[string]Policy),
	}
}

// SetDesired replaces the desired applications of the named ApplicationSet
// with descs, generated at commit. Applications of the set which are not in
// descs are removed according to policy and their sync policy.
//
// Names in descs must not be used by another ApplicationSet.
func (r *Reconciler) SetDesired(rule string, policy Policy, commit string, descs []declared.Descriptor) {
	r.mux.Lock()
	defer r.mux.Unlock()

	r.policies[rule] = policy
	seen := make(map[string]bool, len(descs))
	for _, desc := range descs {
		seen[desc.Name] = true
		r.setDesired(rule, policy, commit, desc)
	}
	for name, app := range r.apps {
		if app.desc.ApplicationSet != rule || seen[name] || !app.desired() {
			continue
		}
		r.remove(name, app, policy)
	}
	r.recordPhases()
}

func (r *Reconciler) setDesired(rule string, policy Policy, commit string, desc declared.Descriptor) {
	app, found := r.apps[desc.Name]
	if !found {
		klog.Infof("Tracking new application %q of ApplicationSet %q", desc.Name, rule)
		r.apps[desc.Name] = &application{
			desc:        desc.DeepCopy(),
			commit:      commit,
			fingerprint: desc.Fingerprint(),
			generation:  1,
			result:      r.pendingResult(desc),
		}
		r.queue.Add(desc.Name)
		return
	}
	if app.desc.ApplicationSet != rule {
		klog.Warningf("Application %q of ApplicationSet %q is already generated by %q; ignoring it",
			desc.Name, rule, app.desc.ApplicationSet)
		return
	}

	changed := false
	if !app.desired() {
		klog.Infof("Application %q is desired again", desc.Name)
		app.removal = keep
		changed = true
	}
	if fingerprint := desc.Fingerprint(); fingerprint != app.fingerprint {
		if policy.AllowUpdate {
			app.desc = desc.DeepCopy()
			app.fingerprint = fingerprint
			changed = true
		} else {
			klog.V(1).Infof("Not updating application %q: ApplicationSet %q does not allow updates", desc.Name, rule)
		}
	}
	if commit != app.commit {
		app.commit = commit
		changed = true
	}
	if changed {
		app.generation++
		app.supersede()
	}
	r.queue.Add(desc.Name)
}

// remove schedules the removal of an application which left the desired
// set, cancelling its in-flight operation.
func (r *Reconciler) remove(name string, app *application, policy Policy) {
	switch {
	case !policy.AllowDelete || policy.PreserveResources:
		app.removal = forget
	case !app.desc.SyncPolicy.AutoPrune:
		app.removal = orphan
	default:
		app.removal = prune
	}
	klog.Infof("Application %q is no longer generated by ApplicationSet %q: %s", name, app.desc.ApplicationSet, app.removal)
	app.generation++
	app.supersede()
	r.queue.Add(name)
	// Later waves no longer wait for it.
	r.releaseWaves(app.desc.ApplicationSet, app.desc.Wave)
}

// RemoveRule removes every application of an ApplicationSet which no longer
// exists, according to the last policy it had.
func (r *Reconciler) RemoveRule(rule string) {
	r.mux.Lock()
	policy, found := r.policies[rule]
	r.mux.Unlock()
	if !found {
		return
	}
	r.SetDesired(rule, policy, "", nil)
	r.mux.Lock()
	delete(r.policies, rule)
	r.mux.Unlock()
}

// Rules returns the names of the ApplicationSets with tracked applications.
func (r *Reconciler) Rules() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	var rules []string
	for rule := range r.policies {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	return rules
}

// Resync queues every tracked application, which re-checks it for drift.
func (r *Reconciler) Resync() {
	r.mux.Lock()
	defer r.mux.Unlock()
	for name := range r.apps {
		r.queue.Add(name)
	}
}

// Status returns the last result of every tracked application, sorted by
// name.
func (r *Reconciler) Status() []status.SyncResult {
	r.mux.Lock()
	defer r.mux.Unlock()
	results := make([]status.SyncResult, 0, len(r.apps))
	for _, app := range r.apps {
		results = append(results, app.result)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Application < results[j].Application
	})
	return results
}

// Get returns the last result of the named application. It returns false
// if the application is not tracked, which is the Absent phase.
func (r *Reconciler) Get(name string) (status.SyncResult, bool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	app, found := r.apps[name]
	if !found {
		return status.SyncResult{}, false
	}
	return app.result, true
}

// Descriptor returns the desired state of the named application.
func (r *Reconciler) Descriptor(name string) (declared.Descriptor, bool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	app, found := r.apps[name]
	if !found {
		return declared.Descriptor{}, false
	}
	return app.desc.DeepCopy(), true
}

// Run starts the workers and blocks until ctx is cancelled. In-flight
// operations are cancelled with ctx.
func (r *Reconciler) Run(ctx context.Context) {
	klog.Infof("Starting %d application workers", r.workers)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wait.UntilWithContext(ctx, r.worker, time.Second)
		}()
	}
	<-ctx.Done()
	r.queue.ShutDown()
	wg.Wait()
	klog.Info("Application workers stopped")
}

func (r *Reconciler) worker(ctx context.Context) {
	for r.processNextItem(ctx) {
	}
}

func (r *Reconciler) processNextItem(ctx context.Context) bool {
	name, shutdown := r.queue.Get()
	if shutdown {
		return false
	}
	defer r.queue.Done(name)

	if err := r.reconcile(ctx, name); err != nil {
		klog.Warningf("Application %q failed, retrying: %v", name, err)
		r.queue.AddRateLimited(name)
		return true
	}
	r.queue.Forget(name)
	return true
}

func (r *Reconciler) pendingResult(desc declared.Descriptor) status.SyncResult {
	return status.SyncResult{
		Application:    desc.Name,
		ApplicationSet: desc.ApplicationSet,
		Status:         status.SyncStatusUnknown,
		Health:         status.HealthUnknown,
		Phase:          status.PhasePending,
		Timestamp:      r.now(),
	}
}

func (r *Reconciler) projectFingerprint(project string) string {
	if r.projects == nil {
		return ""
	}
	return r.projects.Fingerprint(project)
}

// recordPhases must be called with mux held.
func (r *Reconciler) recordPhases() {
	byPhase := map[string]int{
		string(status.PhasePending):   0,
		string(status.PhaseSynced):    0,
		string(status.PhaseOutOfSync): 0,
		string(status.PhasePruning):   0,
		string(status.PhaseError):     0,
		string(status.PhaseOrphaned):  0,
	}
	for _, app := range r.apps {
		byPhase[string(app.result.Phase)]++
	}
	metrics.RecordApplications(byPhase)
}
