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

package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/api/appsync"
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/applier"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/generator"
	"kpt.dev/appsync/pkg/manifest"
	"kpt.dev/appsync/pkg/metrics"
	"kpt.dev/appsync/pkg/project"
	"kpt.dev/appsync/pkg/reconciler"
	"kpt.dev/appsync/pkg/source"
	"kpt.dev/appsync/pkg/status"
	"kpt.dev/appsync/pkg/util/log"
)

// LiveReader reads the live objects of an application.
type LiveReader interface {
	Live(ctx context.Context, desc declared.Descriptor) (applier.LiveState, error)
}

// Options configures an Engine.
type Options struct {
	// Repo and Revision locate the bootstrap source.
	Repo     string
	Revision string
	// ControlPath is the directory of the bootstrap source holding the
	// ApplicationSets and AppProjects.
	ControlPath string

	Watcher    *source.Watcher
	Gate       *project.Gate
	Reconciler *reconciler.Reconciler
	// Live reads the live objects of an application for the operator
	// surface. Optional.
	Live LiveReader

	// PollInterval is the time between two passes when nothing triggers one.
	PollInterval time.Duration
	Now          func() time.Time
}

// Engine runs expansion passes: it reads the control path, expands every
// ApplicationSet against its source, and hands the result to the
// Reconciler. Passes never run concurrently.
type Engine struct {
	repo         string
	revision     string
	controlPath  string
	watcher      *source.Watcher
	gate         *project.Gate
	reconciler   *reconciler.Reconciler
	live         LiveReader
	pollInterval time.Duration
	now          func() time.Time

	trigger      chan struct{}
	applications declared.Applications

	// passMux serializes passes.
	passMux sync.Mutex
	// accepted holds the last descriptors handed to the Reconciler, keyed
	// by ApplicationSet. It is only used by passes.
	accepted map[string][]declared.Descriptor

	// mux guards the fields below, which are read by the operator surface.
	mux      sync.RWMutex
	rules    map[string]status.RuleStatus
	lastPass status.RuleStatus
}

// New returns an Engine.
func New(opts Options) *Engine {
	if opts.Revision == "" {
		opts.Revision = generator.DefaultRevision
	}
	if opts.ControlPath == "" {
		opts.ControlPath = appsync.DefaultControlPath
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = appsync.DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		repo:         opts.Repo,
		revision:     opts.Revision,
		controlPath:  opts.ControlPath,
		watcher:      opts.Watcher,
		gate:         opts.Gate,
		reconciler:   opts.Reconciler,
		live:         opts.Live,
		pollInterval: opts.PollInterval,
		now:          opts.Now,
		trigger:      make(chan struct{}, 1),
		accepted:     make(map[string][]declared.Descriptor),
		rules:        make(map[string]status.RuleStatus),
	}
}

// Trigger returns the channel which starts a pass early. Sends should not
// block; a pending trigger covers later ones.
func (e *Engine) Trigger() chan<- struct{} {
	return e.trigger
}

// Refresh requests a pass as soon as possible.
func (e *Engine) Refresh() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run runs a pass immediately, then on every tick and trigger, until ctx is
// done.
func (e *Engine) Run(ctx context.Context) error {
	klog.Infof("Polling %s at %s every %v", e.repo, e.revision, e.pollInterval)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		if err := e.Sync(ctx); err != nil {
			klog.Warningf("Expansion pass failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-e.trigger:
			klog.V(1).Info("Expansion pass triggered")
		}
	}
}

// Sync runs one expansion pass. Errors of single ApplicationSets are
// recorded on their status and do not fail the pass; the applications of a
// failed ApplicationSet are left as they were.
func (e *Engine) Sync(ctx context.Context) error {
	e.passMux.Lock()
	defer e.passMux.Unlock()

	err := e.sync(ctx)
	e.mux.Lock()
	e.lastPass = status.RuleStatus{Name: e.controlPath, Timestamp: e.now()}.WithError(err)
	e.mux.Unlock()
	return err
}

func (e *Engine) sync(ctx context.Context) error {
	tree, stale, err := e.watcher.Fetch(ctx, e.repo, e.revision)
	if tree == nil {
		return err
	}
	if stale {
		klog.Warningf("Reading the control path from last known good commit %s", tree.Commit)
	}
	if !tree.HasDir(e.controlPath) {
		return status.ManifestErrorf(e.controlPath, "control path does not exist at %s", tree.Commit)
	}
	control, loadErr := manifest.LoadControl(tree, e.controlPath)
	if loadErr != nil {
		return multierr.Append(err, loadErr)
	}
	e.gate.SetProjects(control.Projects)

	byRule := make(map[string][]declared.Descriptor, len(control.ApplicationSets))
	observed := make(map[string]status.RuleStatus, len(control.ApplicationSets))
	fresh := make(map[string]bool, len(control.ApplicationSets))
	policies := make(map[string]reconciler.Policy, len(control.ApplicationSets))
	for _, set := range control.ApplicationSets {
		name := set.Name
		policies[name] = reconciler.PolicyOf(set)
		descs, rs, ok := e.expand(ctx, set)
		observed[name] = rs
		if ok {
			byRule[name] = descs
			fresh[name] = true
			continue
		}
		// Keep the previous applications, which also keeps their names
		// reserved against other ApplicationSets.
		if prev, found := e.accepted[name]; found {
			byRule[name] = prev
		}
	}

	accepted, rejected := e.applications.Update(byRule)
	for name, rejectErr := range rejected {
		rs := observed[name].WithError(rejectErr)
		rs.Applications = nil
		observed[name] = rs
		metrics.RecordRuleError(status.CodeOf(rejectErr))
	}
	for name, descs := range accepted {
		if !fresh[name] {
			continue
		}
		e.reconciler.SetDesired(name, policies[name], observed[name].Commit, descs)
		e.accepted[name] = descs
	}

	for _, name := range e.reconciler.Rules() {
		if _, found := policies[name]; found {
			continue
		}
		klog.Infof("ApplicationSet %q was removed", name)
		e.reconciler.RemoveRule(name)
		delete(e.accepted, name)
	}

	e.mux.Lock()
	e.rules = observed
	e.mux.Unlock()

	e.reconciler.Resync()
	metrics.RecordLastPoll(e.now())
	return err
}

// expand returns the descriptors of set and its status. ok is false if set
// could not be expanded, in which case its previous applications are kept.
func (e *Engine) expand(ctx context.Context, set *v1alpha1.ApplicationSet) ([]declared.Descriptor, status.RuleStatus, bool) {
	rs := status.RuleStatus{Name: set.Name, Timestamp: e.now()}
	fail := func(err error) ([]declared.Descriptor, status.RuleStatus, bool) {
		klog.Warningf("ApplicationSet %q: %v", set.Name, err)
		for _, code := range status.Codes(err) {
			metrics.RecordRuleError(code)
		}
		return nil, rs.WithError(err), false
	}

	rule, err := generator.Compile(set)
	if err != nil {
		return fail(err)
	}
	repo, revision := rule.Source()
	obs, fetchErr := e.watcher.Observe(ctx, repo, revision, rule.Patterns())
	if obs.Tree == nil {
		return fail(fetchErr)
	}
	rs.Commit = obs.Commit
	rs.Stale = obs.Stale

	descs, err := rule.Expand(obs.Paths)
	if err != nil {
		return fail(multierr.Append(fetchErr, err))
	}
	if obs.Stale {
		// The last known good directories stand, but the error is reported.
		rs = rs.WithError(fetchErr)
		for _, code := range status.Codes(fetchErr) {
			metrics.RecordRuleError(code)
		}
	}
	for _, d := range descs {
		rs.Applications = append(rs.Applications, d.Name)
		klog.V(3).Infof("ApplicationSet %q generated %s", set.Name, log.AsJSON(d))
	}
	klog.V(1).Infof("ApplicationSet %q generated %d applications at %s", set.Name, len(descs), obs.Commit)
	return descs, rs, true
}

// ApplicationSets returns the status of every ApplicationSet of the last
// pass, sorted by name.
func (e *Engine) ApplicationSets() []status.RuleStatus {
	e.mux.RLock()
	defer e.mux.RUnlock()
	result := make([]status.RuleStatus, 0, len(e.rules))
	for _, rs := range e.rules {
		result = append(result, rs)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// LastPass returns the outcome of the last pass over the control path.
func (e *Engine) LastPass() status.RuleStatus {
	e.mux.RLock()
	defer e.mux.RUnlock()
	return e.lastPass
}

// Applications returns the last result of every tracked application.
func (e *Engine) Applications() []status.SyncResult {
	return e.reconciler.Status()
}

// Application returns the last result and the desired state of the named
// application.
func (e *Engine) Application(name string) (status.SyncResult, declared.Descriptor, bool) {
	result, found := e.reconciler.Get(name)
	if !found {
		return status.SyncResult{}, declared.Descriptor{}, false
	}
	desc, _ := e.reconciler.Descriptor(name)
	return result, desc, true
}

// Live returns the live objects of the named application. It returns false
// if the application is not tracked.
func (e *Engine) Live(ctx context.Context, name string) (applier.LiveState, bool, error) {
	desc, found := e.reconciler.Descriptor(name)
	if !found {
		return nil, false, nil
	}
	if e.live == nil {
		return applier.LiveState{}, true, nil
	}
	state, err := e.live.Live(ctx, desc)
	return state, true, err
}

// Projects returns the projects of the last pass.
func (e *Engine) Projects() []*v1alpha1.AppProject {
	return e.gate.Projects()
}
