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
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/status"
)

// DefaultFreshness is how long a fetched repository is reused before it is
// fetched again.
const DefaultFreshness = 10 * time.Second

var fetchRefSpecs = []config.RefSpec{
	"+refs/heads/*:refs/remotes/origin/*",
	"+refs/tags/*:refs/tags/*",
}

// GitFetcher reads repositories with go-git. Remote repositories are cloned
// into memory once and fetched on later calls. Local paths are opened in
// place.
type GitFetcher struct {
	// Auth authenticates against remote repositories. Optional.
	Auth transport.AuthMethod
	// Freshness is how long a fetch is reused. Zero means DefaultFreshness.
	Freshness time.Duration

	mux   sync.Mutex
	repos map[string]*gitRepo
}

var _ Fetcher = &GitFetcher{}

type gitRepo struct {
	// mux serializes fetches of one repository.
	mux       sync.Mutex
	repo      *git.Repository
	fetchedAt time.Time
}

// NewGitFetcher returns a GitFetcher using auth for remote repositories.
func NewGitFetcher(auth transport.AuthMethod) *GitFetcher {
	return &GitFetcher{Auth: auth}
}

// Fetch implements Fetcher.
func (g *GitFetcher) Fetch(ctx context.Context, repo, revision string) (*Tree, error) {
	if revision == "" {
		revision = plumbing.HEAD.String()
	}
	r := g.repoFor(repo)
	r.mux.Lock()
	defer r.mux.Unlock()

	if err := g.refresh(ctx, repo, r); err != nil {
		return nil, status.FetchError(repo, revision, classify(err), err)
	}
	commit, err := resolve(r.repo, revision)
	if err != nil {
		return nil, status.FetchError(repo, revision, classify(err), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, status.FetchError(repo, revision, status.FetchReasonUnknown, err)
	}
	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, status.FetchError(repo, revision, status.FetchReasonUnknown, err)
	}
	klog.V(2).Infof("Fetched %s at %s: commit %s with %d files", repo, revision, commit.Hash, len(files))
	return NewTree(repo, revision, commit.Hash.String(), files, func(p string) ([]byte, error) {
		f, err := tree.File(p)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %q", p)
		}
		contents, err := f.Contents()
		if err != nil {
			return nil, errors.Wrapf(err, "reading %q", p)
		}
		return []byte(contents), nil
	}), nil
}

func (g *GitFetcher) repoFor(repo string) *gitRepo {
	g.mux.Lock()
	defer g.mux.Unlock()
	if g.repos == nil {
		g.repos = make(map[string]*gitRepo)
	}
	r, found := g.repos[repo]
	if !found {
		r = &gitRepo{}
		g.repos[repo] = r
	}
	return r
}

// refresh makes sure r holds an up to date copy of repo. Caller must hold
// r.mux.
func (g *GitFetcher) refresh(ctx context.Context, repo string, r *gitRepo) error {
	if local, ok := localPath(repo); ok {
		if r.repo != nil {
			return nil
		}
		opened, err := git.PlainOpen(local)
		if err != nil {
			return errors.Wrapf(err, "opening %q", local)
		}
		r.repo = opened
		return nil
	}

	freshness := g.Freshness
	if freshness == 0 {
		freshness = DefaultFreshness
	}
	if r.repo != nil && time.Since(r.fetchedAt) < freshness {
		return nil
	}

	if r.repo == nil {
		klog.Infof("Cloning %s", repo)
		cloned, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
			URL:        repo,
			Auth:       g.Auth,
			NoCheckout: true,
			Tags:       git.AllTags,
		})
		if err != nil {
			return errors.Wrapf(err, "cloning %q", repo)
		}
		r.repo = cloned
		r.fetchedAt = time.Now()
		return nil
	}

	err := r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   fetchRefSpecs,
		Auth:       g.Auth,
		Tags:       git.AllTags,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return errors.Wrapf(err, "fetching %q", repo)
	}
	r.fetchedAt = time.Now()
	return nil
}

// resolve returns the commit revision points to. Remote branches win over
// local ones so cloned repositories see the latest fetch.
func resolve(repo *git.Repository, revision string) (*object.Commit, error) {
	candidates := []plumbing.ReferenceName{
		plumbing.NewRemoteReferenceName(git.DefaultRemoteName, revision),
		plumbing.NewTagReferenceName(revision),
		plumbing.NewBranchReferenceName(revision),
		plumbing.ReferenceName(revision),
	}
	for _, name := range candidates {
		ref, err := repo.Reference(name, true)
		if err != nil {
			continue
		}
		return peel(repo, ref.Hash())
	}
	if plumbing.IsHash(revision) {
		return peel(repo, plumbing.NewHash(revision))
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, errors.Wrapf(err, "resolving revision %q", revision)
	}
	return peel(repo, *hash)
}

// peel returns the commit hash points to, following annotated tags.
func peel(repo *git.Repository, hash plumbing.Hash) (*object.Commit, error) {
	tag, err := repo.TagObject(hash)
	if err == nil {
		return tag.Commit()
	}
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, errors.Wrapf(err, "reading commit %s", hash)
	}
	return commit, nil
}

// localPath returns the filesystem path of repo if it is not a remote URL.
func localPath(repo string) (string, bool) {
	if strings.HasPrefix(repo, "file://") {
		return strings.TrimPrefix(repo, "file://"), true
	}
	if strings.Contains(repo, "://") || strings.Contains(repo, "@") {
		return "", false
	}
	return repo, true
}

// classify maps a go-git error to the reason reported to users.
func classify(err error) status.FetchReason {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return status.FetchReasonAuth
	case errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository),
		errors.Is(err, git.ErrRepositoryNotExists),
		errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, plumbing.ErrObjectNotFound),
		errors.Is(err, os.ErrNotExist):
		return status.FetchReasonNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return status.FetchReasonNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return status.FetchReasonNetwork
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "no such host", "i/o timeout", "network is unreachable"} {
		if strings.Contains(msg, s) {
			return status.FetchReasonNetwork
		}
	}
	return status.FetchReasonUnknown
}
