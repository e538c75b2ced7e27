package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wafflehacks/external-postgres/internal/apierrors"
)

// errorResponse is the shared envelope for every non-2xx response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Code: code, Message: message})
}

// writeTaxonomyError maps the apierrors sentinel taxonomy onto HTTP
// status codes per the documented error-handling design.
func writeTaxonomyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apierrors.ErrNotManaged):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apierrors.ErrNoName),
		errors.Is(err, apierrors.ErrNoPassword),
		errors.Is(err, apierrors.ErrInvalidPassword),
		errors.Is(err, apierrors.ErrInvalidName),
		errors.Is(err, apierrors.ErrDefaultDatabase):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apierrors.ErrInvalidPermissions):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
