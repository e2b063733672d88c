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

package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"kpt.dev/appsync/pkg/api/appsync"
	"kpt.dev/appsync/pkg/testing/fake"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

func validParams() ExecutionParams {
	return ExecutionParams{
		Repo:               "https://example.com/deploy.git",
		Revision:           "main",
		PollInterval:       time.Minute,
		Workers:            1,
		APITimeout:         appsync.DefaultAPITimeout,
		FetchTimeout:       appsync.DefaultFetchTimeout,
		InventoryNamespace: "appsync-system",
		ListenAddress:      "127.0.0.1:0",
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*ExecutionParams)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*ExecutionParams) {},
		},
		{
			name:    "missing repo",
			mutate:  func(p *ExecutionParams) { p.Repo = "" },
			wantErr: "--repo is required",
		},
		{
			name:    "no workers",
			mutate:  func(p *ExecutionParams) { p.Workers = 0 },
			wantErr: "--workers must be at least 1",
		},
		{
			name:    "no poll interval",
			mutate:  func(p *ExecutionParams) { p.PollInterval = 0 },
			wantErr: "--poll-interval must be positive",
		},
		{
			name:    "no fetch timeout",
			mutate:  func(p *ExecutionParams) { p.FetchTimeout = 0 },
			wantErr: "--fetch-timeout must be positive",
		},
		{
			name:    "negative API timeout",
			mutate:  func(p *ExecutionParams) { p.APITimeout = -time.Second },
			wantErr: "--api-timeout must be positive",
		},
		{
			name:    "password without username",
			mutate:  func(p *ExecutionParams) { p.GitPassword = "secret" },
			wantErr: "--git-password requires --git-username",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := validParams()
			tc.mutate(&p)
			err := p.validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestGitAuth(t *testing.T) {
	p := validParams()
	assert.Nil(t, p.gitAuth())

	p.GitUsername = "bot"
	p.GitPassword = "token"
	want := &githttp.BasicAuth{Username: "bot", Password: "token"}
	if diff := cmp.Diff(want, p.gitAuth()); diff != "" {
		t.Errorf("gitAuth() diff (-want +got):\n%s", diff)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const configMapYAML = `apiVersion: v1
kind: ConfigMap
metadata:
  name: config
data:
  key: value
`

func TestExecuteRunWithPlainDirectory(t *testing.T) {
	root := t.TempDir()
	repo := filepath.Join(root, "deploy")
	writeFile(t, filepath.Join(repo, "appsync", "project.yaml"), `apiVersion: appsync.kpt.dev/v1alpha1
kind: AppProject
metadata:
  name: platform
spec:
  sourceRepos:
  - "*"
  destinations:
  - server: "*"
    namespace: "*"
`)
	writeFile(t, filepath.Join(repo, "appsync", "services.yaml"), fmt.Sprintf(`apiVersion: appsync.kpt.dev/v1alpha1
kind: ApplicationSet
metadata:
  name: services
spec:
  source:
    repoURL: %s
  directories:
  - path: "services/*"
  template:
    metadata:
      name: "svc-{{path.basename}}"
    spec:
      project: platform
      destination:
        namespace: "{{path.basename}}"
      syncPolicy:
        automated:
          prune: true
          selfHeal: true
`, repo))
	writeFile(t, filepath.Join(repo, "services", "a", "config.yaml"), configMapYAML)

	c := fake.NewClient()
	params := validParams()
	params.Repo = repo
	// Only the file watch can start the second pass.
	params.PollInterval = time.Hour
	params.RetryDelay = 10 * time.Millisecond
	params.MaxRetryDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- ExecuteRun(ctx, params, c)
	}()

	configMapExists := func(namespace string) func() bool {
		return func() bool {
			cm := &corev1.ConfigMap{}
			return c.Get(context.Background(), client.ObjectKey{Namespace: namespace, Name: "config"}, cm) == nil
		}
	}
	require.Eventually(t, configMapExists("a"), 10*time.Second, 20*time.Millisecond)

	// Stage the new directory outside the repository so that a single event
	// announces it complete.
	staged := filepath.Join(root, "b")
	writeFile(t, filepath.Join(staged, "config.yaml"), configMapYAML)
	require.NoError(t, os.Rename(staged, filepath.Join(repo, "services", "b")))
	require.Eventually(t, configMapExists("b"), 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("ExecuteRun did not return after cancellation")
	}
}
