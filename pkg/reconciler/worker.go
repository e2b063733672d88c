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

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/status"
)

type operation string

const (
	opApply  operation = "apply"
	opDrift  operation = "drift"
	opDelete operation = "delete"
)

// task is one operation on one application, taken under mux and run
// without it.
type task struct {
	name       string
	app        *application
	op         operation
	desc       declared.Descriptor
	generation int64
	ctx        context.Context
	cancel     context.CancelFunc
}

// reconcile runs the next operation of the named application, if any. It
// returns an error if the application should be retried with backoff.
func (r *Reconciler) reconcile(ctx context.Context, name string) error {
	t := r.next(ctx, name)
	if t == nil {
		return nil
	}
	defer t.cancel()

	switch t.op {
	case opDelete:
		err := r.executor.Delete(t.ctx, t.desc)
		return r.finishDelete(t, err)
	case opDrift:
		_, result := r.executor.Drift(t.ctx, t.desc)
		return r.finish(t, result)
	default:
		result := r.executor.Apply(t.ctx, t.desc)
		return r.finish(t, result)
	}
}

// next decides what the named application needs, or returns nil.
func (r *Reconciler) next(ctx context.Context, name string) *task {
	r.mux.Lock()
	defer r.mux.Unlock()

	app, found := r.apps[name]
	if !found {
		return nil
	}

	var op operation
	switch app.removal {
	case forget:
		delete(r.apps, name)
		klog.Infof("Stopped tracking application %q; its objects are left in place", name)
		r.recordPhases()
		return nil
	case orphan:
		if app.result.Phase != status.PhaseOrphaned {
			klog.Infof("Application %q is orphaned: pruning is disabled, its objects are left in place", name)
			app.result.Phase = status.PhaseOrphaned
			r.recordPhases()
		}
		return nil
	case prune:
		op = opDelete
		app.result.Phase = status.PhasePruning
	default:
		if !r.waveReleased(app) {
			klog.V(2).Infof("Application %q waits for wave %d of ApplicationSet %q to be released",
				name, app.desc.Wave, app.desc.ApplicationSet)
			return nil
		}
		if app.deniedGeneration == app.generation && app.deniedProject == r.projectFingerprint(app.desc.Project) {
			klog.V(3).Infof("Application %q is still denied by project %q", name, app.desc.Project)
			return nil
		}
		switch {
		case app.applied != app.generation:
			op = opApply
		case app.desc.SyncPolicy.SelfHeal:
			op = opApply
		default:
			op = opDrift
		}
		if app.result.Phase == status.PhaseError {
			app.result.Phase = status.PhasePending
		}
	}

	tctx, cancel := context.WithCancel(ctx)
	app.cancel = cancel
	r.recordPhases()
	klog.V(1).Infof("Application %q: %s (generation %d)", name, op, app.generation)
	return &task{
		name:       name,
		app:        app,
		op:         op,
		desc:       app.desc.DeepCopy(),
		generation: app.generation,
		ctx:        tctx,
		cancel:     cancel,
	}
}

// current returns true if the application of t is still tracked and its
// desired state did not change while t ran. mux must be held.
func (r *Reconciler) current(t *task) bool {
	t.app.cancel = nil
	return r.apps[t.name] == t.app && t.app.generation == t.generation
}

func (r *Reconciler) finish(t *task, result status.SyncResult) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if !r.current(t) {
		// The queue runs the application again for its new state.
		klog.V(1).Infof("Discarding the %s result of superseded application %q", t.op, t.name)
		return nil
	}
	app := t.app

	var retry error
	switch result.Status {
	case status.SyncStatusError:
		result.Phase = status.PhaseError
		if status.HasCode(result.Cause, status.PermissionDeniedCode) {
			klog.Warningf("Application %q is denied by project %q; it is retried once either changes: %s",
				t.name, t.desc.Project, result.Message)
			app.deniedGeneration = t.generation
			app.deniedProject = r.projectFingerprint(t.desc.Project)
		} else {
			retry = result.Cause
			if retry == nil {
				retry = errors.New(result.Message)
			}
		}
	case status.SyncStatusOutOfSync:
		result.Phase = status.PhaseOutOfSync
		if t.op == opDrift {
			klog.Infof("Application %q drifted; self-heal is disabled so it is reported only", t.name)
		}
	default:
		result.Phase = status.PhaseSynced
		if result.Drift && t.op == opApply && app.applied == t.generation {
			klog.Infof("Application %q drifted and was healed", t.name)
		}
	}
	if t.op == opApply && result.Status != status.SyncStatusError {
		app.applied = t.generation
	}
	app.settled = t.generation
	app.result = result
	r.recordPhases()
	r.releaseWaves(t.desc.ApplicationSet, t.desc.Wave)
	return retry
}

func (r *Reconciler) finishDelete(t *task, err error) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	app := t.app
	app.cancel = nil
	if r.apps[t.name] != app {
		return nil
	}
	if app.desired() {
		// It came back while its objects were being deleted.
		app.applied = 0
		return nil
	}
	if err != nil {
		app.result = app.result.WithError(err)
		app.result.Phase = status.PhaseError
		r.recordPhases()
		return err
	}
	delete(r.apps, t.name)
	klog.Infof("Pruned application %q", t.name)
	r.recordPhases()
	return nil
}

// waveReleased returns true if every desired application of the same
// ApplicationSet in an earlier wave has settled. mux must be held.
func (r *Reconciler) waveReleased(app *application) bool {
	for _, other := range r.apps {
		if other == app || other.desc.ApplicationSet != app.desc.ApplicationSet || !other.desired() {
			continue
		}
		if other.desc.Wave < app.desc.Wave && !other.isSettled() {
			return false
		}
	}
	return true
}

// releaseWaves queues the unsettled applications of rule after wave, which
// may have been waiting for it. mux must be held.
func (r *Reconciler) releaseWaves(rule string, wave int) {
	for name, app := range r.apps {
		if app.desc.ApplicationSet == rule && app.desc.Wave > wave && app.desired() && !app.isSettled() {
			r.queue.Add(name)
		}
	}
}
