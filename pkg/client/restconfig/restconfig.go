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

// Package restconfig builds the rest.Config of the target cluster.
package restconfig

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "k8s.io/client-go/plugin/pkg/client/auth" // kubectl auth provider plugins
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"
)

const kubectlConfigPath = ".kube/config"

const (
	// DefaultQPS is the client-side rate limit of calls against the target.
	DefaultQPS = 20
	// DefaultBurst is the client-side burst of calls against the target.
	DefaultBurst = 40
)

// The function to use to get default current user. Can be changed for tests.
var userCurrentTestHook = defaultGetCurrentUser

func defaultGetCurrentUser() (*user.User, error) {
	return user.Current()
}

// KubeConfigPath returns the path to the kubeconfig:
// 1. ${KUBECONFIG}, if non-empty
// 2. ${HOME}/.kube/config
func KubeConfigPath() (string, error) {
	envPath := os.Getenv("KUBECONFIG")
	if envPath != "" {
		return envPath, nil
	}
	currentUser, err := userCurrentTestHook()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	return filepath.Join(currentUser.HomeDir, kubectlConfigPath), nil
}

// A source for creating a rest config
type configSource struct {
	name   string                       // The name for the config
	create func() (*rest.Config, error) // The function for creating the config
}

type restConfigBuilder struct {
	newFromConfigFileFn      func(path string) (*rest.Config, error)
	newFromInClusterConfigFn func() (*rest.Config, error)
}

var defaultBuilder = restConfigBuilder{
	newFromConfigFileFn:      newFromConfigFile,
	newFromInClusterConfigFn: rest.InClusterConfig,
}

// NewRestConfig returns the rest config of the kubeconfig file at path. If
// path is empty, it tries the Pod service account first and then the
// default kubeconfig file. Every call made with the config is bounded by
// timeout.
func NewRestConfig(path string, timeout time.Duration) (*rest.Config, error) {
	return defaultBuilder.newRestConfig(path, timeout)
}

func (b restConfigBuilder) newRestConfig(path string, timeout time.Duration) (*rest.Config, error) {
	var sources []configSource
	if path != "" {
		sources = []configSource{{
			name:   "kubeconfig " + path,
			create: func() (*rest.Config, error) { return b.newFromConfigFileFn(path) },
		}}
	} else {
		sources = []configSource{
			{
				name:   "podServiceAccount",
				create: b.newFromInClusterConfigFn,
			},
			{
				name: "kubectl",
				create: func() (*rest.Config, error) {
					p, err := KubeConfigPath()
					if err != nil {
						return nil, err
					}
					return b.newFromConfigFileFn(p)
				},
			},
		}
	}

	var errorStrs []string
	for _, source := range sources {
		config, err := source.create()
		if err == nil {
			klog.V(1).Infof("Created rest config from source %s", source.name)
			UpdateQPS(config)
			config.Timeout = timeout
			return config, nil
		}
		klog.V(5).Infof("Failed to create from %s: %s", source.name, err)
		errorStrs = append(errorStrs, fmt.Sprintf("%s: %s", source.name, err))
	}
	return nil, errors.Errorf("Unable to create rest config:\n%s", strings.Join(errorStrs, "\n"))
}

// UpdateQPS raises the client-side rate limits of config to at least
// DefaultQPS and DefaultBurst. The client-go defaults are too low for
// applying many applications concurrently.
func UpdateQPS(config *rest.Config) {
	if config.QPS < DefaultQPS {
		config.QPS = DefaultQPS
	}
	if config.Burst < DefaultBurst {
		config.Burst = DefaultBurst
	}
}

func newFromConfigFile(path string) (*rest.Config, error) {
	rules := &clientcmd.ClientConfigLoadingRules{Precedence: filepath.SplitList(path)}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
}
