// Package httpapi implements ControlPlaneHTTP: a thin JSON dispatcher
// onto the ConnectionManager, ProvisioningEngine, and OperatorController.
package httpapi

import (
	"net/http"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wafflehacks/external-postgres/internal/dbconn"
	"github.com/wafflehacks/external-postgres/internal/operator"
	"github.com/wafflehacks/external-postgres/internal/provisioning"
)

// Server wires the control-plane HTTP surface.
type Server struct {
	conns  *dbconn.Manager
	engine *provisioning.Engine
	ctl    *operator.Controller
	log    logr.Logger
	router *mux.Router
}

// New builds a Server with routes registered against conns/engine/ctl.
func New(conns *dbconn.Manager, engine *provisioning.Engine, ctl *operator.Controller, log logr.Logger) *Server {
	s := &Server{conns: conns, engine: engine, ctl: ctl, log: log}
	registerManagedDatabasesGauge(conns, log)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Use(requestLoggingMiddleware(log))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/databases", s.handleListDatabases).Methods(http.MethodGet)
	r.HandleFunc("/databases", s.handleEnsureDatabase).Methods(http.MethodPost)
	r.HandleFunc("/databases/{name}", s.handleRemoveDatabase).Methods(http.MethodDelete)
	r.HandleFunc("/operator/state", s.handleGetOperatorState).Methods(http.MethodGet)
	r.HandleFunc("/operator/state", s.handlePostOperatorState).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
