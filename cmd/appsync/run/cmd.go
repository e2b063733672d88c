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
	"github.com/spf13/cobra"
	"kpt.dev/appsync/cmd/appsync/flags"
	"kpt.dev/appsync/pkg/api/appsync"
	"kpt.dev/appsync/pkg/generator"
)

const (
	repoFlag               = "repo"
	revisionFlag           = "revision"
	controlPathFlag        = "control-path"
	pollIntervalFlag       = "poll-interval"
	workersFlag            = "workers"
	applyRetriesFlag       = "apply-retries"
	apiTimeoutFlag         = "api-timeout"
	fetchTimeoutFlag       = "fetch-timeout"
	retryDelayFlag         = "retry-delay"
	maxRetryDelayFlag      = "max-retry-delay"
	kubeconfigFlag         = "kubeconfig"
	inventoryNamespaceFlag = "inventory-namespace"
	listenAddressFlag      = "listen-address"
	webhookTokenFlag       = "webhook-token"
	gitUsernameFlag        = "git-username"
	gitPasswordFlag        = "git-password"
)

// Cmd runs the controller until it is interrupted.
var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the controller: discovers applications in the repository and keeps them applied.",
	Example: `  appsync run --repo https://github.com/example/deploy.git --revision main
  APPSYNC_REPO=/srv/deploy appsync run --poll-interval 1m`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Don't show usage on error, as argument validation passed.
		cmd.SilenceUsage = true

		cfg := flags.Config
		params := ExecutionParams{
			Repo:               cfg.GetString(repoFlag),
			Revision:           cfg.GetString(revisionFlag),
			ControlPath:        cfg.GetString(controlPathFlag),
			PollInterval:       cfg.GetDuration(pollIntervalFlag),
			Workers:            cfg.GetInt(workersFlag),
			ApplyRetries:       cfg.GetInt(applyRetriesFlag),
			APITimeout:         cfg.GetDuration(apiTimeoutFlag),
			FetchTimeout:       cfg.GetDuration(fetchTimeoutFlag),
			RetryDelay:         cfg.GetDuration(retryDelayFlag),
			MaxRetryDelay:      cfg.GetDuration(maxRetryDelayFlag),
			Kubeconfig:         cfg.GetString(kubeconfigFlag),
			InventoryNamespace: cfg.GetString(inventoryNamespaceFlag),
			ListenAddress:      cfg.GetString(listenAddressFlag),
			WebhookToken:       cfg.GetString(webhookTokenFlag),
			GitUsername:        cfg.GetString(gitUsernameFlag),
			GitPassword:        cfg.GetString(gitPasswordFlag),
		}
		if err := params.validate(); err != nil {
			return err
		}
		c, err := NewClient(params.Kubeconfig, params.APITimeout)
		if err != nil {
			return err
		}
		return ExecuteRun(cmd.Context(), params, c)
	},
}

func init() {
	fs := Cmd.Flags()
	fs.String(repoFlag, "",
		"Repository holding the ApplicationSets and AppProjects: a Git URL, a local Git repository or a plain directory.")
	fs.String(revisionFlag, generator.DefaultRevision,
		"Branch, tag or commit of the repository to read.")
	fs.String(controlPathFlag, appsync.DefaultControlPath,
		"Directory of the repository holding the ApplicationSets and AppProjects.")
	fs.Duration(pollIntervalFlag, appsync.DefaultPollInterval,
		"Time between two expansion passes. Every pass also checks every application for drift.")
	fs.Int(workersFlag, appsync.DefaultWorkers,
		"Number of applications reconciled concurrently.")
	fs.Int(applyRetriesFlag, appsync.DefaultApplyRetries,
		"Attempts for a single object when the target returns a transient error.")
	fs.Duration(apiTimeoutFlag, appsync.DefaultAPITimeout,
		"Timeout of a single call against the target.")
	fs.Duration(fetchTimeoutFlag, appsync.DefaultFetchTimeout,
		"Timeout of a single fetch of a repository.")
	fs.Duration(retryDelayFlag, appsync.DefaultErrorRetryDelay,
		"Initial delay before an application in error is retried. Doubles on every failure.")
	fs.Duration(maxRetryDelayFlag, appsync.DefaultMaxErrorRetryDelay,
		"Maximum delay before an application in error is retried.")
	fs.String(kubeconfigFlag, "",
		"Path to the kubeconfig file of the target. Defaults to the Pod service account, then $KUBECONFIG or $HOME/.kube/config.")
	fs.String(inventoryNamespaceFlag, appsync.ControllerNamespace,
		"Namespace of the ConfigMaps recording the objects of each application.")
	fs.String(listenAddressFlag, appsync.DefaultListenAddress,
		"Address of the operator endpoint serving status, metrics and refresh.")
	fs.String(webhookTokenFlag, "",
		"Token required on webhook calls. Webhooks are not authenticated when empty.")
	fs.String(gitUsernameFlag, "",
		"Username for HTTPS Git repositories.")
	fs.String(gitPasswordFlag, "",
		"Password or access token for HTTPS Git repositories.")
}
