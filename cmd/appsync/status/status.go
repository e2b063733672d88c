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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"kpt.dev/appsync/cmd/appsync/flags"
	"kpt.dev/appsync/cmd/appsync/util"
	"kpt.dev/appsync/pkg/service"
	"kpt.dev/appsync/pkg/status"
)

// ExecutionParams holds the parameters of the status command.
type ExecutionParams struct {
	Server          string
	Token           string
	ClientTimeout   time.Duration
	Output          string
	Name            string
	ApplicationSets bool
	Out             io.Writer
}

// ExecuteStatus prints the status reported by the controller at
// params.Server.
func ExecuteStatus(ctx context.Context, params ExecutionParams) error {
	if params.Output != flags.OutputTable && params.Output != flags.OutputJSON {
		return errors.Errorf("unknown output format %q", params.Output)
	}
	c := util.NewClient(params.Server, params.Token, params.ClientTimeout)

	switch {
	case params.ApplicationSets:
		var sets []status.RuleStatus
		if err := c.Get(ctx, "/api/v1/applicationsets", &sets); err != nil {
			return err
		}
		if params.Output == flags.OutputJSON {
			return printJSON(params.Out, sets)
		}
		return printApplicationSets(params.Out, sets)
	case params.Name != "":
		var detail service.ApplicationDetail
		if err := c.Get(ctx, "/api/v1/applications/"+params.Name, &detail); err != nil {
			return err
		}
		if params.Output == flags.OutputJSON {
			return printJSON(params.Out, detail)
		}
		return printApplication(params.Out, detail)
	default:
		var results []status.SyncResult
		if err := c.Get(ctx, "/api/v1/applications", &results); err != nil {
			return err
		}
		if params.Output == flags.OutputJSON {
			return printJSON(params.Out, results)
		}
		return printApplications(params.Out, results)
	}
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printApplications(out io.Writer, results []status.SyncResult) error {
	w := util.NewWriter(out)
	fmt.Fprintln(w, "NAME\tAPPLICATIONSET\tPHASE\tSTATUS\tHEALTH\tREVISION\tMESSAGE")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Application, r.ApplicationSet, r.Phase, r.Status, r.Health, shortCommit(r.Revision), oneLine(r.Message))
	}
	return w.Flush()
}

func printApplication(out io.Writer, detail service.ApplicationDetail) error {
	r := detail.Status
	d := detail.Descriptor
	w := util.NewWriter(out)
	fmt.Fprintf(w, "Name:\t%s\n", r.Application)
	fmt.Fprintf(w, "ApplicationSet:\t%s\n", d.ApplicationSet)
	fmt.Fprintf(w, "Project:\t%s\n", d.Project)
	fmt.Fprintf(w, "Source:\t%s@%s:%s\n", d.Source.RepoURL, d.Source.Revision, d.Source.Path)
	fmt.Fprintf(w, "Destination:\t%s/%s\n", d.Destination.Server, d.Destination.Namespace)
	fmt.Fprintf(w, "Wave:\t%d\n", d.Wave)
	fmt.Fprintf(w, "Phase:\t%s\n", r.Phase)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	fmt.Fprintf(w, "Health:\t%s\n", r.Health)
	fmt.Fprintf(w, "Revision:\t%s\n", valueOrUnknown(r.Revision))
	if r.Message != "" {
		fmt.Fprintf(w, "Message:\t%s\n", oneLine(r.Message))
	}
	if detail.LiveError != "" {
		fmt.Fprintf(w, "Live:\t%s\n", oneLine(detail.LiveError))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(r.Resources) > 0 {
		fmt.Fprintln(out)
		w = util.NewWriter(out)
		fmt.Fprintln(w, "KIND\tNAMESPACE\tNAME\tSTATUS\tHEALTH\tMESSAGE")
		for _, res := range r.Resources {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				res.Kind, res.Namespace, res.Name, res.Status, res.Health, oneLine(res.Message))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(detail.Live) > 0 {
		fmt.Fprintln(out)
		w = util.NewWriter(out)
		fmt.Fprintln(w, "LIVE KIND\tNAMESPACE\tNAME\tRESOURCE VERSION\tHEALTH\tMESSAGE")
		for _, obj := range detail.Live {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				obj.Kind, obj.Namespace, obj.Name, obj.ResourceVersion, obj.Health, oneLine(obj.Message))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func printApplicationSets(out io.Writer, sets []status.RuleStatus) error {
	w := util.NewWriter(out)
	fmt.Fprintln(w, "NAME\tCOMMIT\tAPPLICATIONS\tSTALE\tMESSAGE")
	for _, s := range sets {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n",
			s.Name, shortCommit(s.Commit), len(s.Applications), s.Stale, oneLine(s.Message))
	}
	return w.Flush()
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

func valueOrUnknown(s string) string {
	if s == "" {
		return util.UnknownMsg
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
