package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/yourorg/cadvault/internal/domain"
	"github.com/yourorg/cadvault/internal/security/middleware"
	"github.com/yourorg/cadvault/internal/security/ratelimit"
	"github.com/yourorg/cadvault/internal/service"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse contains the JWT token and the authenticated user
type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	User        userJSON `json:"user"`
}

// SignupRequest represents a self-service registration
type SignupRequest struct {
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// ChangePasswordRequest carries a credential rotation
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthHandler handles login, signup and the current-user endpoints
type AuthHandler struct {
	auth    *service.AuthService
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *service.AuthService, limiter *ratelimit.Limiter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		limiter: limiter,
		logger:  logger,
	}
}

// Login handles POST /api/auth/login requests
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	// Credential guessing gets a much tighter window than the global
	// per-principal limit.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !h.limiter.AllowStrict("login:"+host, 10, time.Minute) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many login attempts"})
		return
	}

	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		var aErr *domain.AuthorizationError
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "user not found"})
		case errors.As(err, &aErr):
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "incorrect password"})
		default:
			writeError(w, h.logger, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		ExpiresIn:   result.ExpiresIn,
		User:        toUserJSON(result.User),
	})
}

// Signup handles POST /api/auth/signup requests
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.auth.Signup(req.FirstName, req.LastName, req.Email, req.Password)
	if err != nil {
		// The frontend treats a duplicate email as a form error, not a
		// conflict, so it gets a 400 here.
		if errors.Is(err, domain.ErrConflict) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email already registered"})
			return
		}
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserJSON(user))
}

// Me handles GET /api/auth/me requests
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	user, err := h.auth.Me(p.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(user))
}

// ChangePassword handles PUT /api/users/{id}/password requests
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	userID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.auth.ChangePassword(p, userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
