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
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-billy/v5/osfs"
	billyutil "github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/status"
)

// DirFetcher reads a checkout on the local filesystem, such as one kept up
// to date by a git-sync sidecar. The revision is ignored: the checkout is
// read as it is.
//
// When the root is a symlink, as git-sync maintains, the commit is the name
// of the directory it points to. Otherwise the commit is a digest of the
// file names, sizes and modification times.
type DirFetcher struct{}

var _ Fetcher = DirFetcher{}

// Fetch implements Fetcher.
func (DirFetcher) Fetch(ctx context.Context, repo, revision string) (*Tree, error) {
	root := strings.TrimPrefix(repo, "file://")
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, status.FetchError(repo, revision, status.FetchReasonNotFound, err)
	}
	h := fnv.New64a()
	var files []string
	err = filepath.WalkDir(resolved, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(resolved, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		files = append(files, rel)
		_, _ = fmt.Fprintf(h, "%s %d %d\n", rel, info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		reason := status.FetchReasonUnknown
		if errors.Is(err, os.ErrNotExist) {
			reason = status.FetchReasonNotFound
		}
		return nil, status.FetchError(repo, revision, reason, err)
	}

	commit := fmt.Sprintf("%016x", h.Sum64())
	if info, err := os.Lstat(root); err == nil && info.Mode()&os.ModeSymlink != 0 {
		commit = filepath.Base(resolved)
	}
	// Reads are bound to the checkout, so symlinks cannot escape it.
	checkout := osfs.New(resolved, osfs.WithBoundOS())
	return NewTree(repo, revision, commit, files, func(p string) ([]byte, error) {
		return billyutil.ReadFile(checkout, p)
	}), nil
}

// Watch sends on events whenever something under root changes, until ctx
// is done. Sends never block; a pending event covers later changes.
func (DirFetcher) Watch(ctx context.Context, root string, events chan<- struct{}) error {
	root = strings.TrimPrefix(root, "file://")
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrapf(err, "creating a watcher for %q", root)
	}
	defer func() {
		if err := w.Close(); err != nil {
			klog.Warningf("Failed to close watcher for %q: %v", root, err)
		}
	}()

	// The parent is watched too, so a git-sync symlink swap is seen.
	if err := w.Add(filepath.Dir(filepath.Clean(root))); err != nil {
		return errors.Wrapf(err, "watching %q", root)
	}
	if err := addRecursive(w, root); err != nil {
		return err
	}
	klog.Infof("Watching %s for changes", root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Warningf("Watch error for %q: %v", root, err)
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			klog.V(3).Infof("Watch event: %s", e)
			if e.Has(fsnotify.Create) {
				if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
					if err := addRecursive(w, e.Name); err != nil {
						klog.Warningf("Failed to watch %q: %v", e.Name, err)
					}
				}
			}
			select {
			case events <- struct{}{}:
			default:
			}
		}
	}
}

// addRecursive watches dir and every directory below it. fsnotify watches
// are not recursive.
func addRecursive(w *fsnotify.Watcher, dir string) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return errors.Wrapf(err, "resolving %q", dir)
	}
	return filepath.WalkDir(resolved, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		return errors.Wrapf(w.Add(p), "watching %q", p)
	})
}

// MuxFetcher reads local directories which are not Git repositories with
// Dir, and everything else with Git.
type MuxFetcher struct {
	Git Fetcher
	Dir Fetcher
}

var _ Fetcher = MuxFetcher{}

// Fetch implements Fetcher.
func (m MuxFetcher) Fetch(ctx context.Context, repo, revision string) (*Tree, error) {
	if IsPlainDir(repo) {
		return m.Dir.Fetch(ctx, repo, revision)
	}
	return m.Git.Fetch(ctx, repo, revision)
}

// IsPlainDir returns true if repo is a local directory which is neither a
// Git working tree nor a bare repository.
func IsPlainDir(repo string) bool {
	local, ok := localPath(repo)
	if !ok {
		return false
	}
	info, err := os.Stat(local)
	if err != nil || !info.IsDir() {
		return false
	}
	for _, marker := range []string{".git", "objects"} {
		if _, err := os.Stat(filepath.Join(local, marker)); err == nil {
			return false
		}
	}
	return true
}
