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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/cmd/appsync/flags"
	"kpt.dev/appsync/cmd/appsync/refresh"
	"kpt.dev/appsync/cmd/appsync/run"
	"kpt.dev/appsync/cmd/appsync/status"
	"kpt.dev/appsync/cmd/appsync/version"
	"kpt.dev/appsync/pkg/api/appsync"
	"kpt.dev/appsync/pkg/util/log"
	pkgversion "kpt.dev/appsync/pkg/version"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
)

const (
	// versionTemplate is the template used when "appsync --version" is
	// invoked. It outputs just "<VERSION>" for easier programmatic use.
	versionTemplate = `{{.Version}}
`
)

var (
	configFile string

	rootCmd = &cobra.Command{
		Use:     appsync.CLIName,
		Version: pkgversion.VERSION,
		Short: fmt.Sprintf(
			"Discover applications in a Git repository and keep them applied to a cluster (version %v)", pkgversion.VERSION),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return flags.Load(flags.Config, cmd.Flags(), configFile)
		},
	}
)

func init() {
	rootCmd.SetVersionTemplate(versionTemplate)
	flags.AddConfig(rootCmd, &configFile)
	rootCmd.AddCommand(run.Cmd)
	rootCmd.AddCommand(status.Cmd)
	rootCmd.AddCommand(refresh.Cmd)
	rootCmd.AddCommand(version.Cmd)
}

func main() {
	// Register klog flags and route controller-runtime logs through klog.
	log.AddFlags(rootCmd.PersistentFlags())

	if err := rootCmd.ExecuteContext(signals.SetupSignalHandler()); err != nil {
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}
