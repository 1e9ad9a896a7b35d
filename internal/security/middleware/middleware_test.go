package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourorg/cadvault/internal/security/auth"
)

func protectedEcho(t *testing.T) (http.Handler, *auth.TokenManager) {
	t.Helper()
	tm := auth.NewTokenManager("test-secret", "cadvault-test", time.Hour)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipalFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Write([]byte(p.Email))
	})
	return JWTMiddleware(tm, slog.Default())(next), tm
}

func TestJWTMiddlewareRejectsMissingToken(t *testing.T) {
	h, _ := protectedEcho(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/folders", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestJWTMiddlewareRejectsBadToken(t *testing.T) {
	h, _ := protectedEcho(t)

	req := httptest.NewRequest(http.MethodGet, "/api/folders", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestJWTMiddlewarePassesClaims(t *testing.T) {
	h, tm := protectedEcho(t)

	token, err := tm.GenerateToken(7, "alice@example.com", "user", "Martin", "Alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/folders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "alice@example.com" {
		t.Fatalf("principal email = %q", rec.Body.String())
	}
}

func TestJWTMiddlewareSkipsPublicPaths(t *testing.T) {
	h, _ := protectedEcho(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/api/auth/login", "/api/auth/signup"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		// The echo handler answers 418 when no claims are present, which
		// proves the middleware let the request through unauthenticated.
		if rec.Code != http.StatusTeapot {
			t.Errorf("%s: status = %d, want pass-through", path, rec.Code)
		}
	}
}

func TestJWTMiddlewareSkipsPreflight(t *testing.T) {
	h, _ := protectedEcho(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/folders", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("OPTIONS blocked with status %d", rec.Code)
	}
}
