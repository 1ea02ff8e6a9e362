// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package tableserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
	"github.com/ironcore-dev/ip-router-operator/internal/iprouter"
	"github.com/ironcore-dev/ip-router-operator/internal/relation"
)

// HTTPServer serves the routing tables found on the relation bus.
type HTTPServer struct {
	client client.Client
	port   int
	role   func() iprouter.Role
	logger klog.Logger
}

func NewHTTPServer(c client.Client, port int, role func() iprouter.Role) *HTTPServer {
	return &HTTPServer{
		client: c,
		port:   port,
		role:   role,
		logger: klog.NewKlogr().WithName("table-http"),
	}
}

// NeedLeaderElection implements [manager.LeaderElectionRunnable]. Reads are served
// by every instance, followers answer with 503.
func (s *HTTPServer) NeedLeaderElection() bool {
	return false
}

// Handler returns the HTTP handler of the server.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/routing-table", s.handleRoutingTable).Methods(http.MethodGet)
	r.HandleFunc("/networks", s.handleNetworks).Methods(http.MethodGet)
	return r
}

func (s *HTTPServer) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(err, "Failed to shut down routing table server")
		}
	}()

	s.logger.Info("Starting routing table server", "port", s.port)

	err := httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type query struct {
	namespace string
	app       string
	relation  string
}

func (s *HTTPServer) parseQuery(w http.ResponseWriter, r *http.Request) (query, bool) {
	q := query{
		namespace: r.URL.Query().Get("namespace"),
		app:       r.URL.Query().Get("app"),
		relation:  r.URL.Query().Get("relation"),
	}
	if q.namespace == "" || q.app == "" {
		http.Error(w, "Parameters namespace and app are required", http.StatusBadRequest)
		return q, false
	}
	if q.relation == "" {
		q.relation = v1alpha1.DefaultRelationName
	}
	if s.role() != iprouter.Leader {
		http.Error(w, "Not the leader", http.StatusServiceUnavailable)
		return q, false
	}
	return q, true
}

func (s *HTTPServer) handleRoutingTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, ok := s.parseQuery(w, r)
	if !ok {
		return
	}
	log := s.logger.WithValues("namespace", q.namespace, "app", q.app, "relation", q.relation)

	flatten := false
	if v := r.URL.Query().Get("flatten"); v != "" {
		var err error
		if flatten, err = strconv.ParseBool(v); err != nil {
			http.Error(w, "Parameter flatten must be a boolean", http.StatusBadRequest)
			return
		}
	}

	bus := relation.NewConfigMapBus(s.client, q.namespace, q.app, relation.Provides)
	p := iprouter.NewProvider(bus, q.relation, log)
	table, _, err := p.RoutingTable(ctx)
	if err != nil {
		log.Error(err, "Failed to build routing table")
		http.Error(w, "Failed to build routing table", http.StatusInternalServerError)
		return
	}

	log.V(1).Info("Routing table requested", "names", table.Len(), "flatten", flatten)
	if flatten {
		s.writeJSON(w, table.Flatten())
		return
	}
	s.writeJSON(w, table)
}

func (s *HTTPServer) handleNetworks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, ok := s.parseQuery(w, r)
	if !ok {
		return
	}
	log := s.logger.WithValues("namespace", q.namespace, "app", q.app, "relation", q.relation)

	bus := relation.NewConfigMapBus(s.client, q.namespace, q.app, relation.Requires)
	networks, err := iprouter.NewRequirer(bus, q.relation, log).AllNetworks(ctx, iprouter.Leader)
	if err != nil {
		log.Error(err, "Failed to read networks")
		http.Error(w, "Failed to read networks", http.StatusInternalServerError)
		return
	}
	if networks == nil {
		networks = []v1alpha1.Network{}
	}
	s.writeJSON(w, networks)
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, v any) {
	content, err := json.Marshal(v)
	if err != nil {
		s.logger.Error(err, "Failed to encode response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(content) //nolint:errcheck
}
