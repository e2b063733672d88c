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

// Package version reports the version of the appsync binary.
package version

import (
	"fmt"
	"io"
	"runtime"
)

// VERSION is the semver version of this application. It is set at build
// time with -ldflags "-X kpt.dev/appsync/pkg/version.VERSION=<version>".
var VERSION = "UNKNOWN"

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the Info of the running binary.
func Get() Info {
	return Info{
		Version:   VERSION,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// Print writes the Info of the running binary to w.
func Print(w io.Writer) error {
	info := Get()
	_, err := fmt.Fprintf(w, "appsync %s (%s, %s)\n", info.Version, info.GoVersion, info.Platform)
	return err
}
