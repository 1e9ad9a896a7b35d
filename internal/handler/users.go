package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/cadvault/internal/security"
	"github.com/yourorg/cadvault/internal/security/middleware"
	"github.com/yourorg/cadvault/internal/service"
)

// CreateUserRequest is the admin account-creation payload
type CreateUserRequest struct {
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

// UpdateUserRequest is a partial account update. Absent fields stay
// untouched; a password of "unchanged" is also left alone.
type UpdateUserRequest struct {
	LastName   *string `json:"nom"`
	FirstName  *string `json:"prenom"`
	Email      *string `json:"email"`
	Password   *string `json:"password"`
	Role       *string `json:"role"`
	FolderName *string `json:"nom_dossier"`
}

// userWithFolderJSON is one row of the users-with-folders listing. Folder
// fields are null for users without a provisioned directory.
type userWithFolderJSON struct {
	UserID     int64   `json:"user_id"`
	LastName   string  `json:"nom"`
	FirstName  string  `json:"prenom"`
	Email      string  `json:"email"`
	FolderID   *int64  `json:"folder_id"`
	FolderName *string `json:"nom_dossier"`
	CreatedAt  *string `json:"date_creation"`
}

// UserHandler handles the administrative account endpoints
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

func (h *UserHandler) principal(w http.ResponseWriter, r *http.Request) (security.Principal, bool) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	}
	return p, ok
}

// List handles GET /api/users requests
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	if !p.IsAdmin() {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin access required"})
		return
	}

	users, err := h.users.List()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, toUserJSON(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/users requests
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req CreateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.users.Create(p, req.FirstName, req.LastName, req.Email, req.Password, req.Role)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserJSON(user))
}

// Get handles GET /api/users/{id} requests
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !p.IsAdmin() && p.UserID != id {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
		return
	}

	user, err := h.users.Get(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(user))
}

// Update handles PUT /api/users/{id} requests
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.users.Update(r.Context(), p, id, service.UpdateParams{
		LastName:   req.LastName,
		FirstName:  req.FirstName,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		FolderName: req.FolderName,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(user))
}

// Delete handles DELETE /api/users/{id} requests
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), p, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UsersWithFolders handles GET /api/users/users-with-folders requests.
// The resource directory is reconciled first so the listing reflects what
// is actually on disk.
func (h *UserHandler) UsersWithFolders(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	if !p.IsAdmin() {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin access required"})
		return
	}

	rows, err := h.users.UsersWithFolders(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]userWithFolderJSON, 0, len(rows))
	for _, row := range rows {
		item := userWithFolderJSON{
			UserID:     row.User.ID,
			LastName:   row.User.LastName,
			FirstName:  row.User.FirstName,
			Email:      row.User.Email,
			FolderID:   row.FolderID,
			FolderName: row.Name,
		}
		if row.CreatedAt != nil {
			s := row.CreatedAt.Format(time.RFC3339)
			item.CreatedAt = &s
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}
