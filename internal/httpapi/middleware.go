// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bqd-services-llc/super-pxe-server/internal/logging"
)

type contextKey int

const requestIDKey contextKey = 0

// requestIDMiddleware stamps every request with a correlation ID, echoed
// back as X-Request-Id and attached to the request context, where the
// access log line reads it. Other log lines (handlers, materializer) do
// not carry the ID.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// accessLogMiddleware logs one line per request, after it completes, at
// the level of detail the teacher's loggingMiddleware uses (method, path,
// status, duration, request id).
func accessLogMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestIDFromContext(r.Context()),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// adminAuthFunc returns the current admin password; it is a func, not a
// fixed string, so auth always reflects the latest saved config rather
// than the value at server startup.
type adminAuthFunc func() string

// adminAuthMiddleware enforces HTTP Basic auth against the live admin
// password, comparing constant-time (spec: "plaintext; compared
// constant-time, never hashed").
func adminAuthMiddleware(currentPassword adminAuthFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, pass, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(pass), []byte(currentPassword())) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="super-pxe-server"`)
				WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
