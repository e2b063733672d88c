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

// Package source reads the Git-backed trees applications are generated from
// and whose manifests are applied.
package source

import (
	"context"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Tree is a read-only view of a repository at one commit.
// A Tree never changes once it is returned by a Fetcher.
type Tree struct {
	// Repo is the repository the tree was read from.
	Repo string
	// Revision is the branch, tag or commit that was requested.
	Revision string
	// Commit is the commit Revision resolved to.
	Commit string

	// files holds the slash-separated paths of every file, sorted.
	files []string
	read  func(path string) ([]byte, error)
}

// NewTree returns a Tree holding files, whose content is returned by read.
func NewTree(repo, revision, commit string, files []string, read func(path string) ([]byte, error)) *Tree {
	sorted := make([]string, 0, len(files))
	for _, f := range files {
		sorted = append(sorted, path.Clean(strings.TrimPrefix(f, "/")))
	}
	sort.Strings(sorted)
	return &Tree{
		Repo:     repo,
		Revision: revision,
		Commit:   commit,
		files:    sorted,
		read:     read,
	}
}

// Files returns every file in the tree.
func (t *Tree) Files() []string {
	return append([]string(nil), t.files...)
}

// Dirs returns every directory holding at least one file, directly or in a
// subdirectory. The root is not included.
func (t *Tree) Dirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range t.files {
		for dir := path.Dir(f); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if seen[dir] {
				break
			}
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// HasDir returns true if dir holds at least one file.
func (t *Tree) HasDir(dir string) bool {
	prefix := cleanDir(dir)
	for _, f := range t.files {
		if prefix == "" || strings.HasPrefix(f, prefix+"/") {
			return true
		}
	}
	return false
}

// FilesIn returns the files directly in dir, or anywhere under dir if
// recurse is set.
func (t *Tree) FilesIn(dir string, recurse bool) []string {
	prefix := cleanDir(dir)
	var out []string
	for _, f := range t.files {
		rel := f
		if prefix != "" {
			if !strings.HasPrefix(f, prefix+"/") {
				continue
			}
			rel = strings.TrimPrefix(f, prefix+"/")
		}
		if !recurse && strings.Contains(rel, "/") {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ReadFile returns the content of the file at p.
func (t *Tree) ReadFile(p string) ([]byte, error) {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	i := sort.SearchStrings(t.files, p)
	if i == len(t.files) || t.files[i] != p {
		return nil, errors.Wrapf(os.ErrNotExist, "reading %q at %s", p, t.Commit)
	}
	return t.read(p)
}

func cleanDir(dir string) string {
	dir = path.Clean(strings.Trim(dir, "/"))
	if dir == "." {
		return ""
	}
	return dir
}

// Fetcher reads a repository at a revision.
type Fetcher interface {
	// Fetch returns the tree of repo at revision. Failures are returned as
	// status.FetchError.
	Fetch(ctx context.Context, repo, revision string) (*Tree, error)
}
