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

package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"runtime/pprof"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
	"kpt.dev/appsync/pkg/api/appsync/v1alpha1"
	"kpt.dev/appsync/pkg/applier"
	"kpt.dev/appsync/pkg/core"
	"kpt.dev/appsync/pkg/declared"
	"kpt.dev/appsync/pkg/health"
	"kpt.dev/appsync/pkg/status"
)

const (
	// APIPrefix is the path prefix of the operator API.
	APIPrefix = "/api/v1"

	// TokenHeader carries the webhook token. A bearer Authorization header
	// is accepted too.
	TokenHeader = "X-Appsync-Token"
)

// Backend is what the operator surface reads and triggers.
type Backend interface {
	Applications() []status.SyncResult
	Application(name string) (status.SyncResult, declared.Descriptor, bool)
	ApplicationSets() []status.RuleStatus
	Projects() []*v1alpha1.AppProject
	Live(ctx context.Context, name string) (applier.LiveState, bool, error)
	Refresh()
}

// ApplicationDetail is the response for a single application.
type ApplicationDetail struct {
	Status     status.SyncResult   `json:"status"`
	Descriptor declared.Descriptor `json:"descriptor"`
	// Live lists the inventoried objects of the application found on the
	// target, sorted.
	Live []LiveObject `json:"live,omitempty"`
	// LiveError is set when the live objects could not be read.
	LiveError string `json:"liveError,omitempty"`
}

// LiveObject is an object of an application as observed on the target.
type LiveObject struct {
	Group           string              `json:"group,omitempty"`
	Kind            string              `json:"kind"`
	Namespace       string              `json:"namespace,omitempty"`
	Name            string              `json:"name"`
	ResourceVersion string              `json:"resourceVersion,omitempty"`
	Health          status.HealthStatus `json:"health"`
	Message         string              `json:"message,omitempty"`
}

// Server is the operator HTTP surface. It is read-only except for
// triggering a refresh.
type Server struct {
	backend      Backend
	webhookToken string
	router       *mux.Router
}

// NewServer returns a Server for backend. Webhook calls must carry
// webhookToken, unless it is empty.
func NewServer(backend Backend, webhookToken string) *Server {
	s := &Server{
		backend:      backend,
		webhookToken: webhookToken,
		router:       mux.NewRouter(),
	}
	s.router.HandleFunc(APIPrefix+"/applications", s.listApplications).Methods(http.MethodGet)
	s.router.HandleFunc(APIPrefix+"/applications/{name}", s.getApplication).Methods(http.MethodGet)
	s.router.HandleFunc(APIPrefix+"/applicationsets", s.listApplicationSets).Methods(http.MethodGet)
	s.router.HandleFunc(APIPrefix+"/projects", s.listProjects).Methods(http.MethodGet)
	s.router.HandleFunc(APIPrefix+"/refresh", s.refresh).Methods(http.MethodPost)
	s.router.HandleFunc(APIPrefix+"/webhook", s.webhook).Methods(http.MethodPost)

	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.Handle("/debug/goroutines", noCache(http.HandlerFunc(goroutines))).Methods(http.MethodGet)
	return s
}

// Handler returns the routes of s.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		klog.Infof("Serving the operator API on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "serving on %s", addr)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down the operator API")
	}
	return nil
}

func (s *Server) listApplications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Applications())
}

func (s *Server) getApplication(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	result, desc, found := s.backend.Application(name)
	if !found {
		writeError(w, http.StatusNotFound, "application "+name+" not found")
		return
	}
	detail := ApplicationDetail{Status: result, Descriptor: desc}
	state, _, err := s.backend.Live(r.Context(), name)
	if err != nil {
		klog.Warningf("Unable to read the live objects of application %q: %v", name, err)
		detail.LiveError = err.Error()
	}
	detail.Live = liveObjects(state)
	writeJSON(w, http.StatusOK, detail)
}

func liveObjects(state applier.LiveState) []LiveObject {
	if len(state) == 0 {
		return nil
	}
	ids := make([]core.ID, 0, len(state))
	for id := range state {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	objs := make([]LiveObject, 0, len(ids))
	for _, id := range ids {
		obj := state[id]
		h, msg := health.Of(obj)
		objs = append(objs, LiveObject{
			Group:           id.Group,
			Kind:            id.Kind,
			Namespace:       id.Namespace,
			Name:            id.Name,
			ResourceVersion: obj.GetResourceVersion(),
			Health:          h,
			Message:         msg,
		})
	}
	return objs
}

func (s *Server) listApplicationSets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.ApplicationSets())
}

func (s *Server) listProjects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Projects())
}

func (s *Server) refresh(w http.ResponseWriter, _ *http.Request) {
	klog.Info("Refresh requested")
	s.backend.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		klog.Warningf("Rejected webhook call from %s", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid webhook token")
		return
	}
	klog.V(1).Infof("Webhook %s received", r.Header.Get("X-GitHub-Event"))
	s.backend.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.webhookToken == "" {
		return true
	}
	token := r.Header.Get(TokenHeader)
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.webhookToken)) == 1
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		klog.Warningf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

func noCache(handler http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		handler.ServeHTTP(w, req)
	}
}

// goroutines dumps the stacks of every goroutine.
func goroutines(w http.ResponseWriter, _ *http.Request) {
	if err := pprof.Lookup("goroutine").WriteTo(w, 2); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
