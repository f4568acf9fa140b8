// Package web is the HTTP surface: routing, authentication, and the
// handlers that bridge requests into the orchestration core.
package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/entitlements"
	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/web/handlers"
)

// Claims is the JWT payload issued by the session service. Subject holds
// the user id; Tier distinguishes guest from regular accounts.
type Claims struct {
	Tier string `json:"tier"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer token and attaches the caller's
// identity. Requests without a valid token get 401.
func AuthMiddleware(secret []byte, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticate(r, secret)
			if err != nil {
				logger.Debug("authentication failed", "path", r.URL.Path, "error", err)
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(handlers.ContextWithIdentity(r.Context(), identity)))
		})
	}
}

func authenticate(r *http.Request, secret []byte) (handlers.Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return handlers.Identity{}, fmt.Errorf("missing bearer token")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return handlers.Identity{}, fmt.Errorf("parsing token: %w", err)
	}
	if !parsed.Valid {
		return handlers.Identity{}, fmt.Errorf("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return handlers.Identity{}, fmt.Errorf("parsing subject: %w", err)
	}

	tier := entitlements.Tier(claims.Tier)
	if tier == "" {
		tier = entitlements.TierGuest
	}
	return handlers.Identity{UserID: userID, Tier: tier}, nil
}

// statusWriter captures the response status and size for logging. It
// forwards Flush so SSE keeps working through the middleware stack.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// LoggingMiddleware logs method, path, status, size, and latency.
func LoggingMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.bytes,
				"duration", time.Since(start),
			)
		})
	}
}

// RecoveryMiddleware turns handler panics into 500s instead of dropped
// connections. If headers already went out there is nothing to send, so
// it only logs.
func RecoveryMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", "path", r.URL.Path, "panic", rec)
					if sw.status == 0 {
						writeJSONError(w, http.StatusInternalServerError, "internal server error")
					}
				}
			}()
			next.ServeHTTP(sw, r)
		})
	}
}
