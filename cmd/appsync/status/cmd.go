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

package status

import (
	"github.com/spf13/cobra"
	"kpt.dev/appsync/cmd/appsync/flags"
)

const applicationSetsFlag = "applicationsets"

// Cmd prints the status of the applications of a running controller.
var Cmd = &cobra.Command{
	Use:   "status [APPLICATION]",
	Short: "Prints the status of every application, or of a single one.",
	Example: `  appsync status
  appsync status svc-payments -o json
  appsync status --applicationsets`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Don't show usage on error, as argument validation passed.
		cmd.SilenceUsage = true

		params := ExecutionParams{
			Server:          flags.Config.GetString(flags.ServerFlag),
			Token:           flags.Config.GetString(flags.TokenFlag),
			ClientTimeout:   flags.Config.GetDuration(flags.ClientTimeoutFlag),
			Output:          flags.Config.GetString("output"),
			ApplicationSets: flags.Config.GetBool(applicationSetsFlag),
			Out:             cmd.OutOrStdout(),
		}
		if len(args) == 1 {
			params.Name = args[0]
		}
		return ExecuteStatus(cmd.Context(), params)
	},
}

func init() {
	flags.AddClient(Cmd)
	flags.AddOutputFormat(Cmd)
	Cmd.Flags().Bool(applicationSetsFlag, false,
		"Print the status of every ApplicationSet instead of the applications.")
}
