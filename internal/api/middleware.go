package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const bearerScheme = "Bearer "

// extractBearerToken returns the credential of an RFC 6750 Authorization
// header, or "" when the header is absent or uses another scheme. The scheme
// match is case-sensitive.
func extractBearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerScheme)
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func constantTimeEqual(a, b string) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requestAttrs are the fields every api log line for r carries.
func requestAttrs(r *http.Request) []any {
	return []any{
		"component", "api",
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	}
}

// AuthMiddleware rejects requests whose bearer token differs from apiKey
// with a 401 problem. Neither the key nor the presented token is logged.
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if constantTimeEqual(extractBearerToken(r), apiKey) {
				next.ServeHTTP(w, r)
				return
			}
			slog.Warn("auth failure", append(requestAttrs(r), "remote_ip", r.RemoteAddr)...)
			WriteProblem(w, r, http.StatusUnauthorized, "Missing or invalid API key")
		})
	}
}

// LoggingMiddleware writes one line per request once the handler returns.
// Lines for 5xx responses are logged at warn. The matched chi route and the
// onboarding and category parameters are included when routing set them.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := append(requestAttrs(r),
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				attrs = append(attrs, "route", pattern)
			}
			for _, p := range [...]struct{ key, attr string }{
				{"onboardingID", "onboarding_id"},
				{"category", "category"},
			} {
				if v := rctx.URLParam(p.key); v != "" {
					attrs = append(attrs, p.attr, v)
				}
			}
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "request", attrs...)
	})
}

// RecoveryMiddleware turns a handler panic into a generic 500 problem. The
// panic value and stack go to the log only.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("panic recovered", append(requestAttrs(r),
				"error", rec,
				"stack", string(debug.Stack()),
			)...)
			WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		}()
		next.ServeHTTP(w, r)
	})
}
