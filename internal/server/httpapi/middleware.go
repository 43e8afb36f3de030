package httpapi

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogging(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			switch {
			case rec.status >= 500:
				l.Error(r.Context(), "HTTP request", args...)
			case rec.status >= 400:
				l.Warn(r.Context(), "HTTP request", args...)
			default:
				l.Info(r.Context(), "HTTP request", args...)
			}
		})
	}
}

// recovery turns a handler panic into a logged 500.
func recovery(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					l.Error(r.Context(), "Panic recovered",
						"error", p,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// authenticated runs the bearer gate before next and stores the subject in
// the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.gate.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.writeError(w, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func userID(r *http.Request) (string, error) {
	id, ok := r.Context().Value(userIDKey).(string)
	if !ok || id == "" {
		return "", common.ErrMissingAuth
	}
	return id, nil
}
