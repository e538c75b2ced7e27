package httpapi

import (
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// requestLoggingMiddleware attaches a per-request id to the access log
// entry for every request, the Go equivalent of the original service's
// MakeSpanWithId span attribute.
func requestLoggingMiddleware(log logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.New().String()

			rl := log.WithValues("requestId", requestID, "method", r.Method, "path", r.URL.Path)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			rl.Info("handled request", "status", rec.status, "duration", time.Since(start).String())
		})
	}
}

// statusRecorder captures the status code written by a downstream
// handler so the access log can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
