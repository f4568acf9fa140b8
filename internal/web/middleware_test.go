package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/entitlements"
	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/web/handlers"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, secret []byte, userID uuid.UUID, tier string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Tier: tier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func authProbe(t *testing.T) (http.Handler, *handlers.Identity) {
	t.Helper()
	var captured handlers.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := handlers.IdentityFrom(r.Context())
		if !ok {
			t.Error("identity missing from context")
		}
		captured = id
		w.WriteHeader(http.StatusOK)
	})
	return AuthMiddleware(testSecret, log.NewNop())(next), &captured
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	t.Parallel()

	handler, captured := authProbe(t)
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, userID, "regular", time.Now().Add(time.Hour)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.UserID != userID {
		t.Errorf("user id = %s, want %s", captured.UserID, userID)
	}
	if captured.Tier != entitlements.TierRegular {
		t.Errorf("tier = %q, want regular", captured.Tier)
	}
}

func TestAuthMiddlewareDefaultsToGuestTier(t *testing.T) {
	t.Parallel()

	handler, captured := authProbe(t)
	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, uuid.New(), "", time.Now().Add(time.Hour)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.Tier != entitlements.TierGuest {
		t.Errorf("tier = %q, want guest default", captured.Tier)
	}
}

func TestAuthMiddlewareRejections(t *testing.T) {
	t.Parallel()

	handler, _ := authProbe(t)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.token"},
		{"wrong secret", "Bearer " + signToken(t, []byte("another-secret-another-secret-xx"), uuid.New(), "regular", time.Now().Add(time.Hour))},
		{"expired", "Bearer " + signToken(t, testSecret, uuid.New(), "regular", time.Now().Add(-time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRecoveryMiddlewareTurnsPanicsInto500(t *testing.T) {
	t.Parallel()

	handler := RecoveryMiddleware(log.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
