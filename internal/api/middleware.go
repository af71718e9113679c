package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"logiflow-service/internal/api/handlers"
	"logiflow-service/internal/platform/obs"
	"logiflow-service/internal/services"
)

// UserHeader carries the signed-in e-mail on every authenticated request.
const UserHeader = "X-User-Email"

// statusWriter captures the final HTTP status code and number of bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Record implicit 200 responses when handlers write without calling WriteHeader.
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// requestIDMiddleware tags the request context and response with an id.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(obs.WithRequestID(r.Context(), id)))
	})
}

// loggingMiddleware logs end-to-end request duration and response size.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{
			ResponseWriter: w,
			status:         0,
		}

		next.ServeHTTP(sw, r)

		slog.Info("request",
			"req_id", obs.RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", sw.status,
			"bytes", sw.bytes,
			"dur_ms", time.Since(start).Milliseconds(),
		)
	})
}

// identityMiddleware resolves the caller's profile from UserHeader. With gate
// set, drivers whose trial and subscription have both lapsed get 402.
func identityMiddleware(accounts *services.AccountService, gate bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := r.Header.Get(UserHeader)

			p, err := accounts.Profile(r.Context(), email)
			if err == nil && gate {
				p, err = accounts.Authorize(r.Context(), email)
			}
			if err != nil {
				handlers.WriteServiceError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(handlers.WithProfile(r.Context(), p)))
		})
	}
}

// adminOnly rejects non-admin profiles.
func adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := handlers.ProfileFrom(r.Context())
		if !ok {
			handlers.WriteServiceError(w, r, services.ErrUnauthenticated)
			return
		}
		if !p.IsAdmin() {
			handlers.WriteServiceError(w, r, services.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
