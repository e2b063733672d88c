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
	"context"
	"sort"
	"sync"

	"kpt.dev/appsync/pkg/source"
	"kpt.dev/appsync/pkg/status"
)

// Fetcher is an in-memory source.Fetcher for tests.
// Trees are keyed by repository; the requested revision is recorded on the
// returned tree.
type Fetcher struct {
	mux    sync.Mutex
	files  map[string]map[string]string
	commit map[string]string
	errs   map[string]error
	calls  map[string]int
}

var _ source.Fetcher = &Fetcher{}

// NewFetcher returns an empty Fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{
		files:  make(map[string]map[string]string),
		commit: make(map[string]string),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// SetTree replaces the content of repo with files, keyed by slash path, at
// commit. It clears any error set with SetError.
func (f *Fetcher) SetTree(repo, commit string, files map[string]string) {
	f.mux.Lock()
	defer f.mux.Unlock()
	copied := make(map[string]string, len(files))
	for p, content := range files {
		copied[p] = content
	}
	f.files[repo] = copied
	f.commit[repo] = commit
	delete(f.errs, repo)
}

// SetError makes every fetch of repo fail with err until SetTree is called.
// Errors which are not a status.FetchError are wrapped as network failures.
func (f *Fetcher) SetError(repo string, err error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	if status.CodeOf(err) != status.FetchErrorCode {
		err = status.FetchError(repo, "", status.FetchReasonNetwork, err)
	}
	f.errs[repo] = err
}

// Calls returns how many times repo was fetched.
func (f *Fetcher) Calls(repo string) int {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.calls[repo]
}

// Fetch implements source.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, repo, revision string) (*source.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FetchError(repo, revision, status.FetchReasonNetwork, err)
	}
	f.mux.Lock()
	defer f.mux.Unlock()
	f.calls[repo]++
	if err, found := f.errs[repo]; found {
		return nil, err
	}
	files, found := f.files[repo]
	if !found {
		return nil, status.FetchError(repo, revision, status.FetchReasonNotFound, nil)
	}
	// Snapshot so later SetTree calls do not change returned trees.
	snapshot := make(map[string]string, len(files))
	paths := make([]string, 0, len(files))
	for p, content := range files {
		snapshot[p] = content
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return source.NewTree(repo, revision, f.commit[repo], paths, func(p string) ([]byte, error) {
		return []byte(snapshot[p]), nil
	}), nil
}
