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

package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/applier"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/health"
	"kpt.dev/appsync/pkg/service"
	"kpt.dev/appsync/pkg/status"
	"kpt.dev/appsync/pkg/testing/fake"
)

type fakeBackend struct {
	mux       sync.Mutex
	refreshes int
	live      applier.LiveState
	liveErr   error
}

func (b *fakeBackend) Applications() []status.SyncResult {
	return []status.SyncResult{
		{Application: "svc-a", ApplicationSet: "services", Status: status.SyncStatusSynced, Phase: status.PhaseSynced},
	}
}

func (b *fakeBackend) Application(name string) (status.SyncResult, declared.Descriptor, bool) {
	if name != "svc-a" {
		return status.SyncResult{}, declared.Descriptor{}, false
	}
	return b.Applications()[0], declared.Descriptor{Name: "svc-a", ApplicationSet: "services"}, true
}

func (b *fakeBackend) ApplicationSets() []status.RuleStatus {
	return []status.RuleStatus{{Name: "services", Applications: []string{"svc-a"}}}
}

func (b *fakeBackend) Projects() []*v1alpha1.AppProject {
	return []*v1alpha1.AppProject{{ObjectMeta: metav1.ObjectMeta{Name: "platform"}}}
}

func (b *fakeBackend) Live(_ context.Context, name string) (applier.LiveState, bool, error) {
	if name != "svc-a" {
		return nil, false, nil
	}
	return b.live, true, b.liveErr
}

func (b *fakeBackend) Refresh() {
	b.mux.Lock()
	defer b.mux.Unlock()
	b.refreshes++
}

func (b *fakeBackend) Refreshes() int {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.refreshes
}

func serve(t *testing.T, s *service.Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestReadRoutes(t *testing.T) {
	s := service.NewServer(&fakeBackend{}, "")

	testCases := []struct {
		name     string
		path     string
		wantCode int
	}{
		{name: "applications", path: "/api/v1/applications", wantCode: http.StatusOK},
		{name: "application", path: "/api/v1/applications/svc-a", wantCode: http.StatusOK},
		{name: "unknown application", path: "/api/v1/applications/svc-z", wantCode: http.StatusNotFound},
		{name: "applicationsets", path: "/api/v1/applicationsets", wantCode: http.StatusOK},
		{name: "projects", path: "/api/v1/projects", wantCode: http.StatusOK},
		{name: "healthz", path: "/healthz", wantCode: http.StatusOK},
		{name: "metrics", path: "/metrics", wantCode: http.StatusOK},
		{name: "unknown route", path: "/api/v1/nothing", wantCode: http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, s, http.MethodGet, tc.path, nil)
			assert.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestGetApplication(t *testing.T) {
	s := service.NewServer(&fakeBackend{}, "")
	rec := serve(t, s, http.MethodGet, "/api/v1/applications/svc-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got service.ApplicationDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	want := service.ApplicationDetail{
		Status:     status.SyncResult{Application: "svc-a", ApplicationSet: "services", Status: status.SyncStatusSynced, Phase: status.PhaseSynced},
		Descriptor: declared.Descriptor{Name: "svc-a", ApplicationSet: "services"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("application diff (-want +got):\n%s", diff)
	}
}

func TestGetApplicationLiveObjects(t *testing.T) {
	cm := fake.ConfigMapObject("cfg", map[string]string{"k": "v"}, core.Namespace("shop"), core.ResourceVersion("7"))
	ns := fake.NamespaceObject("shop", core.ResourceVersion("3"))
	backend := &fakeBackend{live: applier.LiveState{
		core.IDOf(cm): cm,
		core.IDOf(ns): ns,
	}}
	s := service.NewServer(backend, "")

	rec := serve(t, s, http.MethodGet, "/api/v1/applications/svc-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got service.ApplicationDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	cmHealth, cmMessage := health.Of(cm)
	nsHealth, nsMessage := health.Of(ns)
	want := []service.LiveObject{
		{Kind: "ConfigMap", Namespace: "shop", Name: "cfg", ResourceVersion: "7", Health: cmHealth, Message: cmMessage},
		{Kind: "Namespace", Name: "shop", ResourceVersion: "3", Health: nsHealth, Message: nsMessage},
	}
	if diff := cmp.Diff(want, got.Live); diff != "" {
		t.Errorf("live objects diff (-want +got):\n%s", diff)
	}
	assert.Empty(t, got.LiveError)

	backend.liveErr = errors.New("connection refused")
	rec = serve(t, s, http.MethodGet, "/api/v1/applications/svc-a", nil)
	require.Equal(t, http.StatusOK, rec.Code, "the status is served even when the target is unreachable")
	got = service.ApplicationDetail{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "connection refused", got.LiveError)
}

func TestMethodNotAllowed(t *testing.T) {
	testCases := []struct {
		method string
		path   string
	}{
		{method: http.MethodGet, path: "/api/v1/refresh"},
		{method: http.MethodGet, path: "/api/v1/webhook"},
		{method: http.MethodPost, path: "/api/v1/applications"},
		{method: http.MethodDelete, path: "/api/v1/applications/svc-a"},
		{method: http.MethodPut, path: "/api/v1/projects"},
		{method: http.MethodPost, path: "/healthz"},
	}
	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			backend := &fakeBackend{}
			rec := serve(t, service.NewServer(backend, ""), tc.method, tc.path, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, 0, backend.Refreshes())
		})
	}
}

func TestRefresh(t *testing.T) {
	backend := &fakeBackend{}
	s := service.NewServer(backend, "")

	rec := serve(t, s, http.MethodPost, "/api/v1/refresh", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, backend.Refreshes())

	rec = serve(t, s, http.MethodGet, "/api/v1/refresh", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 1, backend.Refreshes())
}

func TestWebhook(t *testing.T) {
	testCases := []struct {
		name        string
		header      map[string]string
		wantCode    int
		wantRefresh int
	}{
		{
			name:        "token header",
			header:      map[string]string{service.TokenHeader: "s3cr3t"},
			wantCode:    http.StatusAccepted,
			wantRefresh: 1,
		},
		{
			name:        "bearer token",
			header:      map[string]string{"Authorization": "Bearer s3cr3t"},
			wantCode:    http.StatusAccepted,
			wantRefresh: 1,
		},
		{
			name:     "wrong token",
			header:   map[string]string{service.TokenHeader: "guess"},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "no token",
			wantCode: http.StatusUnauthorized,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{}
			s := service.NewServer(backend, "s3cr3t")
			rec := serve(t, s, http.MethodPost, "/api/v1/webhook", tc.header)
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantRefresh, backend.Refreshes())
		})
	}
}
