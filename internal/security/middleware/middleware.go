package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/cadvault/internal/security"
	"github.com/yourorg/cadvault/internal/security/audit"
	"github.com/yourorg/cadvault/internal/security/auth"
	"github.com/yourorg/cadvault/internal/security/ratelimit"
)

type ClaimsContextKey struct{}

// isPublic lists the endpoints reachable without a bearer token.
func isPublic(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/api/auth/login", "/api/auth/signup":
		return true
	}
	return false
}

func JWTMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				log.Debug("token rejected", slog.String("error", err.Error()))
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			principal := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				principal = claims.Email
			} else if host, _, ok := strings.Cut(r.RemoteAddr, ":"); ok {
				principal = host
			}

			if !limiter.Allow(principal) {
				log.Warn("rate limit exceeded", slog.String("principal", principal))
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete {
				actorID := int64(0)
				email := ""
				if claims := GetClaimsFromContext(r.Context()); claims != nil {
					actorID = claims.UserID()
					email = claims.Email
				}
				auditLog.LogAction(r.Context(), actorID, email,
					strings.ToLower(r.Method), "api", r.URL.Path, "initiated", "")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c := ctx.Value(ClaimsContextKey{}); c != nil {
		return c.(*auth.Claims)
	}
	return nil
}

// GetPrincipalFromContext converts context claims into a security.Principal.
// The second return is false for unauthenticated requests.
func GetPrincipalFromContext(ctx context.Context) (security.Principal, bool) {
	claims := GetClaimsFromContext(ctx)
	if claims == nil {
		return security.Principal{}, false
	}
	return security.Principal{
		UserID: claims.UserID(),
		Email:  claims.Email,
		Role:   claims.Role,
	}, true
}
