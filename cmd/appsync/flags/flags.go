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

// Package flags holds the flags shared by appsync subcommands. Every flag
// can also be set from an APPSYNC_* environment variable or from the file
// passed with --config.
package flags

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"kpt.dev/appsync/pkg/api/appsync"
)

const (
	// EnvPrefix prefixes the environment variable of every flag.
	EnvPrefix = "APPSYNC"

	// ConfigFlag is the flag name of the configuration file.
	ConfigFlag = "config"
	// ServerFlag is the flag name of the address of a running controller.
	ServerFlag = "server"
	// TokenFlag is the flag name of the token sent to a running controller.
	TokenFlag = "token"
	// ClientTimeoutFlag is the flag name of the client timeout.
	ClientTimeoutFlag = "timeout"

	// OutputTable prints a table.
	OutputTable = "table"
	// OutputJSON prints JSON.
	OutputJSON = "json"

	// DefaultServer is the controller address used by client commands.
	DefaultServer = "http://localhost" + appsync.DefaultListenAddress

	// DefaultClientTimeout bounds a single request of a client command.
	DefaultClientTimeout = 10 * time.Second
)

// Config is the configuration of the running command.
var Config = New()

// New returns an empty configuration reading APPSYNC_* environment
// variables. Dashes in flag names are underscores in variable names.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load binds fs to v and reads the configuration file, if any. Flags set on
// the command line win over environment variables, which win over the file.
func Load(v *viper.Viper, fs *pflag.FlagSet, configFile string) error {
	if err := v.BindPFlags(fs); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	if configFile == "" {
		return nil
	}
	v.SetConfigFile(configFile)
	return errors.Wrapf(v.ReadInConfig(), "reading configuration file %q", configFile)
}

// AddConfig adds the --config flag.
func AddConfig(cmd *cobra.Command, configFile *string) {
	cmd.PersistentFlags().StringVar(configFile, ConfigFlag, "",
		"Path to a YAML file setting any flag by name.")
}

// AddClient adds the flags used to reach a running controller.
func AddClient(cmd *cobra.Command) {
	cmd.Flags().String(ServerFlag, DefaultServer,
		"Address of the appsync operator endpoint.")
	cmd.Flags().String(TokenFlag, "",
		"Token sent with requests which change state.")
	cmd.Flags().Duration(ClientTimeoutFlag, DefaultClientTimeout,
		"How long to wait for the appsync operator endpoint.")
}

// AddOutputFormat adds the --output flag.
func AddOutputFormat(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", OutputTable,
		`Output format. Accepts 'table' and 'json'.`)
}
