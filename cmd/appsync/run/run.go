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
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/applier"
	"kpt.dev/appsync/pkg/client/restconfig"
	"kpt.dev/appsync/pkg/engine"
	"kpt.dev/appsync/pkg/inventory"
	"kpt.dev/appsync/pkg/project"
	"kpt.dev/appsync/pkg/reconciler"
	"kpt.dev/appsync/pkg/service"
	"kpt.dev/appsync/pkg/source"
	"kpt.dev/appsync/pkg/version"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ExecutionParams holds the parameters of the run command.
type ExecutionParams struct {
	Repo        string
	Revision    string
	ControlPath string

	PollInterval  time.Duration
	Workers       int
	ApplyRetries  int
	APITimeout    time.Duration
	FetchTimeout  time.Duration
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	Kubeconfig         string
	InventoryNamespace string
	ListenAddress      string
	WebhookToken       string

	GitUsername string
	GitPassword string
}

func (p ExecutionParams) validate() error {
	if p.Repo == "" {
		return errors.Errorf("--%s is required", repoFlag)
	}
	if p.Workers < 1 {
		return errors.Errorf("--%s must be at least 1, got %d", workersFlag, p.Workers)
	}
	if p.PollInterval <= 0 {
		return errors.Errorf("--%s must be positive, got %v", pollIntervalFlag, p.PollInterval)
	}
	if p.FetchTimeout <= 0 {
		return errors.Errorf("--%s must be positive, got %v", fetchTimeoutFlag, p.FetchTimeout)
	}
	if p.APITimeout <= 0 {
		return errors.Errorf("--%s must be positive, got %v", apiTimeoutFlag, p.APITimeout)
	}
	if p.GitPassword != "" && p.GitUsername == "" {
		return errors.Errorf("--%s requires --%s", gitPasswordFlag, gitUsernameFlag)
	}
	return nil
}

// gitAuth returns the credentials for HTTPS Git repositories, or nil.
func (p ExecutionParams) gitAuth() transport.AuthMethod {
	if p.GitUsername == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: p.GitUsername, Password: p.GitPassword}
}

// NewClient returns a client for the cluster of the kubeconfig file, or of
// the Pod appsync runs in if kubeconfig is empty.
func NewClient(kubeconfig string, timeout time.Duration) (client.Client, error) {
	cfg, err := restconfig.NewRestConfig(kubeconfig, timeout)
	if err != nil {
		return nil, err
	}
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, errors.Wrap(err, "building the scheme")
	}
	c, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		return nil, errors.Wrap(err, "creating the cluster client")
	}
	return c, nil
}

// ExecuteRun runs the controller against c until ctx is done.
func ExecuteRun(ctx context.Context, params ExecutionParams, c client.Client) error {
	klog.Infof("Starting appsync %s", version.VERSION)

	fetcher := source.MuxFetcher{
		Git: source.NewGitFetcher(params.gitAuth()),
		Dir: source.DirFetcher{},
	}
	gate := project.NewGate()
	executor := applier.New(applier.Options{
		Client:       c,
		Fetcher:      fetcher,
		Gate:         gate,
		Inventory:    inventory.NewConfigMapStore(c, params.InventoryNamespace),
		APITimeout:   params.APITimeout,
		FetchTimeout: params.FetchTimeout,
		ApplyRetries: params.ApplyRetries,
	})
	rec := reconciler.New(reconciler.Options{
		Executor:      executor,
		Projects:      gate,
		Workers:       params.Workers,
		RetryDelay:    params.RetryDelay,
		MaxRetryDelay: params.MaxRetryDelay,
	})
	eng := engine.New(engine.Options{
		Repo:         params.Repo,
		Revision:     params.Revision,
		ControlPath:  params.ControlPath,
		Watcher:      source.NewWatcher(fetcher, source.WithFetchTimeout(params.FetchTimeout)),
		Gate:         gate,
		Reconciler:   rec,
		Live:         executor,
		PollInterval: params.PollInterval,
	})
	srv := service.NewServer(eng, params.WebhookToken)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return eng.Run(ctx)
	})
	g.Go(func() error {
		return srv.ListenAndServe(ctx, params.ListenAddress)
	})
	if source.IsPlainDir(params.Repo) {
		g.Go(func() error {
			return source.DirFetcher{}.Watch(ctx, params.Repo, eng.Trigger())
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	klog.Info("appsync stopped")
	return nil
}
