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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kpt.dev/appsync/cmd/appsync/flags"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/service"
	"kpt.dev/appsync/pkg/status"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	result := status.SyncResult{
		Application:    "svc-a",
		ApplicationSet: "services",
		Phase:          status.PhaseSynced,
		Status:         status.SyncStatusSynced,
		Health:         status.HealthHealthy,
		Revision:       "0123456789abcdef0123",
		Resources: []status.ResourceResult{
			{Kind: "ConfigMap", Namespace: "shop", Name: "a", Status: "Synced", Health: status.HealthHealthy},
		},
	}
	routes := map[string]interface{}{
		"/api/v1/applications": []status.SyncResult{result},
		"/api/v1/applications/svc-a": service.ApplicationDetail{
			Status: result,
			Descriptor: declared.Descriptor{
				Name:           "svc-a",
				ApplicationSet: "services",
				Project:        "platform",
				Source:         declared.Source{RepoURL: "https://example.com/repo.git", Revision: "main", Path: "services/a"},
				Destination:    declared.Destination{Server: "https://kubernetes.default.svc", Namespace: "shop"},
			},
			Live: []service.LiveObject{
				{Kind: "ConfigMap", Namespace: "shop", Name: "a", ResourceVersion: "42", Health: status.HealthHealthy},
			},
		},
		"/api/v1/applicationsets": []status.RuleStatus{
			{Name: "services", Commit: "0123456789abcdef0123", Applications: []string{"svc-a"}},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, found := routes[r.URL.Path]
		if !found {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "application not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteStatus(t *testing.T) {
	srv := newServer(t)

	testCases := []struct {
		name     string
		params   ExecutionParams
		contains []string
		wantErr  string
	}{
		{
			name:     "every application",
			params:   ExecutionParams{Output: flags.OutputTable},
			contains: []string{"NAME", "svc-a", "services", "Synced", "Healthy", "0123456789ab"},
		},
		{
			name:     "a single application",
			params:   ExecutionParams{Output: flags.OutputTable, Name: "svc-a"},
			contains: []string{"Project:", "platform", "https://example.com/repo.git@main:services/a", "ConfigMap", "shop", "LIVE KIND", "42"},
		},
		{
			name:     "application sets",
			params:   ExecutionParams{Output: flags.OutputTable, ApplicationSets: true},
			contains: []string{"COMMIT", "services", "0123456789ab"},
		},
		{
			name:     "json",
			params:   ExecutionParams{Output: flags.OutputJSON},
			contains: []string{`"application": "svc-a"`},
		},
		{
			name:    "unknown application",
			params:  ExecutionParams{Output: flags.OutputTable, Name: "svc-z"},
			wantErr: "application not found",
		},
		{
			name:    "unknown output",
			params:  ExecutionParams{Output: "yaml"},
			wantErr: `unknown output format "yaml"`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			tc.params.Server = srv.URL
			tc.params.ClientTimeout = 5 * time.Second
			tc.params.Out = &out

			err := ExecuteStatus(context.Background(), tc.params)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			for _, s := range tc.contains {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}
