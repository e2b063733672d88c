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

package source

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/api/appsync"
	"kpt.dev/appsync/pkg/metrics"
	"kpt.dev/appsync/pkg/status"
	"kpt.dev/appsync/pkg/util"
)

// Observation is the set of directories of a tree matching a rule.
type Observation struct {
	// Tree is the tree the paths were read from. It is nil when the source
	// has never been fetched successfully.
	Tree *Tree
	// Commit is the commit the paths were read at.
	Commit string
	// Paths are the matching directories, sorted.
	Paths []string
	// Stale is set when the latest fetch failed and Tree is the last tree
	// which was fetched successfully.
	Stale bool
}

// Watcher fetches trees with retries and remembers the last tree fetched
// successfully for every repository and revision.
type Watcher struct {
	fetcher Fetcher
	backoff wait.Backoff
	timeout time.Duration

	mux      sync.Mutex
	lastGood map[treeKey]*Tree
}

type treeKey struct {
	repo, revision string
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithBackoff overrides the fetch retry backoff.
func WithBackoff(backoff wait.Backoff) WatcherOption {
	return func(w *Watcher) {
		w.backoff = backoff
	}
}

// WithFetchTimeout bounds every fetch attempt. A non-positive timeout keeps
// the default.
func WithFetchTimeout(timeout time.Duration) WatcherOption {
	return func(w *Watcher) {
		if timeout > 0 {
			w.timeout = timeout
		}
	}
}

// NewWatcher returns a Watcher reading trees with fetcher.
func NewWatcher(fetcher Fetcher, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		fetcher:  fetcher,
		backoff:  util.FetchBackoff(),
		timeout:  appsync.DefaultFetchTimeout,
		lastGood: make(map[treeKey]*Tree),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Fetch returns the tree of repo at revision.
//
// Network and unclassified failures are retried with backoff. Once retries
// are exhausted, Fetch returns the last tree fetched successfully for repo
// and revision, if any, together with the error and stale set to true.
func (w *Watcher) Fetch(ctx context.Context, repo, revision string) (tree *Tree, stale bool, err error) {
	start := time.Now()
	var lastErr error
	backoffErr := wait.ExponentialBackoffWithContext(ctx, w.backoff, func(ctx context.Context) (bool, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()
		t, err := w.fetcher.Fetch(attemptCtx, repo, revision)
		if err == nil {
			tree = t
			return true, nil
		}
		lastErr = err
		switch status.FetchReasonOf(err) {
		case status.FetchReasonAuth, status.FetchReasonNotFound:
			// Retrying will not help until the source or credentials change.
			return false, err
		}
		klog.V(1).Infof("Fetching %s at %s failed, retrying: %v", repo, revision, err)
		return false, nil
	})
	metrics.RecordFetchDuration(lastErrIf(tree, lastErr, backoffErr), start)

	key := treeKey{repo: repo, revision: revision}
	if tree != nil {
		w.mux.Lock()
		w.lastGood[key] = tree
		w.mux.Unlock()
		return tree, false, nil
	}

	err = lastErr
	if err == nil {
		err = status.FetchError(repo, revision, status.FetchReasonNetwork, backoffErr)
	} else if status.CodeOf(err) != status.FetchErrorCode {
		err = status.FetchError(repo, revision, status.FetchReasonUnknown, err)
	}

	w.mux.Lock()
	cached, found := w.lastGood[key]
	w.mux.Unlock()
	if found {
		klog.Warningf("Using last known good commit %s of %s at %s: %v", cached.Commit, repo, revision, err)
		return cached, true, err
	}
	return nil, false, err
}

// Observe returns the directories of repo at revision matching patterns.
// When the fetch fails, the directories of the last good tree are returned
// together with the error; an empty set is never reported for a source
// that was read before.
func (w *Watcher) Observe(ctx context.Context, repo, revision string, patterns []Pattern) (Observation, error) {
	tree, stale, fetchErr := w.Fetch(ctx, repo, revision)
	if tree == nil {
		return Observation{}, fetchErr
	}
	paths, err := Match(tree.Dirs(), patterns)
	if err != nil {
		return Observation{}, errors.Wrap(err, "matching directories")
	}
	return Observation{
		Tree:   tree,
		Commit: tree.Commit,
		Paths:  paths,
		Stale:  stale,
	}, fetchErr
}

// Forget drops the last good tree of repo at revision.
func (w *Watcher) Forget(repo, revision string) {
	w.mux.Lock()
	defer w.mux.Unlock()
	delete(w.lastGood, treeKey{repo: repo, revision: revision})
}

func lastErrIf(tree *Tree, lastErr, backoffErr error) error {
	if tree != nil {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return backoffErr
}
