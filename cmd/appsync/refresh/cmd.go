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

package refresh

import (
	"fmt"

	"github.com/spf13/cobra"
	"kpt.dev/appsync/cmd/appsync/flags"
	"kpt.dev/appsync/cmd/appsync/util"
)

// Cmd asks a running controller to start an expansion pass now.
var Cmd = &cobra.Command{
	Use:   "refresh",
	Short: "Starts an expansion pass of a running controller without waiting for the next poll.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Don't show usage on error, as argument validation passed.
		cmd.SilenceUsage = true

		c := util.NewClient(
			flags.Config.GetString(flags.ServerFlag),
			flags.Config.GetString(flags.TokenFlag),
			flags.Config.GetDuration(flags.ClientTimeoutFlag))
		if err := c.Post(cmd.Context(), "/api/v1/refresh"); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "Refresh requested")
		return err
	},
}

func init() {
	flags.AddClient(Cmd)
}
