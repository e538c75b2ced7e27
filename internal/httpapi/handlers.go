package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wafflehacks/external-postgres/internal/apierrors"
)

const requestTimeout = 30 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	pool, err := s.conns.GetDefault()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "default pool unavailable")
		return
	}
	if err := pool.Ping(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "liveness ping failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	names := s.conns.Names()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

type ensureRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) handleEnsureDatabase(w http.ResponseWriter, r *http.Request) {
	var body ensureRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Name == "" {
		writeTaxonomyError(w, apierrors.ErrNoName)
		return
	}
	if body.Password == "" {
		writeTaxonomyError(w, apierrors.ErrNoPassword)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := s.engine.Ensure(ctx, body.Name, body.Password); err != nil {
		writeTaxonomyError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveDatabase(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.conns.IsManaged(name) {
		writeTaxonomyError(w, apierrors.ErrNotManaged)
		return
	}

	retain, _ := strconv.ParseBool(r.URL.Query().Get("retain"))

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := s.engine.Remove(ctx, name, retain); err != nil {
		writeTaxonomyError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type operatorStateResponse struct {
	Running bool `json:"running"`
}

func (s *Server) handleGetOperatorState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, operatorStateResponse{Running: s.ctl.Status().Running})
}

type changeStateRequest struct {
	Desired string `json:"desired"`
}

type changeStateResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handlePostOperatorState(w http.ResponseWriter, r *http.Request) {
	var body changeStateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch body.Desired {
	case "enabled":
		started, err := s.ctl.Start(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, changeStateResponse{Success: started})
	case "disabled":
		s.ctl.Stop()
		writeJSON(w, http.StatusOK, changeStateResponse{Success: true})
	default:
		writeError(w, http.StatusBadRequest, "desired must be \"enabled\" or \"disabled\"")
	}
}
