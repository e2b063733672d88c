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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kpt.dev/appsync/pkg/status"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func commitAll(t *testing.T, repo *git.Repository, msg string) string {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.AddWithOptions(&git.AddOptions{All: true}))
	hash, err := wt.Commit(msg, &git.CommitOptions{
		All:    true,
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestGitFetcherLocalRepository(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	writeFiles(t, dir, map[string]string{
		"services/a/cm.yaml": "kind: ConfigMap\n",
		"services/b/cm.yaml": "kind: ConfigMap\n",
	})
	first := commitAll(t, repo, "first")
	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag("v1", head.Hash(), &git.CreateTagOptions{
		Tagger:  &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
		Message: "v1",
	})
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(dir, "services", "b")))
	writeFiles(t, dir, map[string]string{"services/c/cm.yaml": "kind: ConfigMap\n"})
	second := commitAll(t, repo, "second")

	f := NewGitFetcher(nil)
	ctx := context.Background()

	testCases := []struct {
		name       string
		revision   string
		wantCommit string
		wantDirs   []string
	}{
		{
			name:       "HEAD",
			revision:   "HEAD",
			wantCommit: second,
			wantDirs:   []string{"services", "services/a", "services/c"},
		},
		{
			name:       "empty revision means HEAD",
			wantCommit: second,
			wantDirs:   []string{"services", "services/a", "services/c"},
		},
		{
			name:       "annotated tag",
			revision:   "v1",
			wantCommit: first,
			wantDirs:   []string{"services", "services/a", "services/b"},
		},
		{
			name:       "commit hash",
			revision:   first,
			wantCommit: first,
			wantDirs:   []string{"services", "services/a", "services/b"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tree, err := f.Fetch(ctx, dir, tc.revision)
			require.NoError(t, err)
			assert.Equal(t, tc.wantCommit, tree.Commit)
			assert.Equal(t, tc.wantDirs, tree.Dirs())
			b, err := tree.ReadFile("services/a/cm.yaml")
			require.NoError(t, err)
			assert.Equal(t, "kind: ConfigMap\n", string(b))
		})
	}

	t.Run("unknown revision", func(t *testing.T) {
		_, err := f.Fetch(ctx, dir, "does-not-exist")
		require.Error(t, err)
		assert.Equal(t, status.FetchReasonNotFound, status.FetchReasonOf(err))
	})
}

func TestGitFetcherMissingRepository(t *testing.T) {
	f := NewGitFetcher(nil)
	_, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing"), "main")
	require.Error(t, err)
	assert.True(t, status.HasCode(err, status.FetchErrorCode))
	assert.Equal(t, status.FetchReasonNotFound, status.FetchReasonOf(err))
}

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		repo      string
		wantPath  string
		wantLocal bool
	}{
		{repo: "/srv/repo", wantPath: "/srv/repo", wantLocal: true},
		{repo: "file:///srv/repo", wantPath: "/srv/repo", wantLocal: true},
		{repo: "https://github.com/org/repo.git"},
		{repo: "git@github.com:org/repo.git"},
	}
	for _, tc := range testCases {
		t.Run(tc.repo, func(t *testing.T) {
			got, local := localPath(tc.repo)
			assert.Equal(t, tc.wantLocal, local)
			assert.Equal(t, tc.wantPath, got)
		})
	}
}

func TestDirFetcher(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"services/a/cm.yaml": "a",
		".git/config":        "ignored",
	})
	ctx := context.Background()

	tree, err := DirFetcher{}.Fetch(ctx, root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"services/a/cm.yaml"}, tree.Files())
	again, err := DirFetcher{}.Fetch(ctx, root, "")
	require.NoError(t, err)
	assert.Equal(t, tree.Commit, again.Commit, "an unchanged directory keeps its commit")

	t.Run("symlinked checkout", func(t *testing.T) {
		base := t.TempDir()
		worktree := filepath.Join(base, "0123abcd")
		writeFiles(t, worktree, map[string]string{"services/b/cm.yaml": "b"})
		link := filepath.Join(base, "current")
		require.NoError(t, os.Symlink(worktree, link))

		tree, err := DirFetcher{}.Fetch(ctx, link, "")
		require.NoError(t, err)
		assert.Equal(t, "0123abcd", tree.Commit)
		b, err := tree.ReadFile("services/b/cm.yaml")
		require.NoError(t, err)
		assert.Equal(t, "b", string(b))
	})

	t.Run("symlink out of the checkout", func(t *testing.T) {
		outside := t.TempDir()
		writeFiles(t, outside, map[string]string{"secret.yaml": "secret"})
		checkout := t.TempDir()
		writeFiles(t, checkout, map[string]string{"services/c/cm.yaml": "c"})
		require.NoError(t, os.Symlink(filepath.Join(outside, "secret.yaml"), filepath.Join(checkout, "services", "c", "leak.yaml")))

		tree, err := DirFetcher{}.Fetch(ctx, checkout, "")
		require.NoError(t, err)
		_, err = tree.ReadFile("services/c/leak.yaml")
		assert.Error(t, err)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := DirFetcher{}.Fetch(ctx, filepath.Join(root, "missing"), "")
		assert.Equal(t, status.FetchReasonNotFound, status.FetchReasonOf(err))
	})
}

func TestIsPlainDir(t *testing.T) {
	plain := t.TempDir()
	repoDir := t.TempDir()
	_, err := git.PlainInit(repoDir, false)
	require.NoError(t, err)

	assert.True(t, IsPlainDir(plain))
	assert.False(t, IsPlainDir(repoDir))
	assert.False(t, IsPlainDir("https://example.com/repo.git"))
}
