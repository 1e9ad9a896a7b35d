package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/yourorg/cadvault/internal/domain"
	"github.com/yourorg/cadvault/internal/dxf"
)

// The JSON field names below are part of the public contract with the
// existing frontend and keep the original French naming: nom, prenom,
// nom_dossier, date_creation.

// userJSON is the wire shape of an account.
type userJSON struct {
	ID        int64  `json:"id"`
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func toUserJSON(u *domain.User) userJSON {
	return userJSON{
		ID:        u.ID,
		LastName:  u.LastName,
		FirstName: u.FirstName,
		Email:     u.Email,
		Role:      u.Role,
	}
}

// folderJSON is the wire shape of a folder record.
type folderJSON struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"id_user"`
	Name      string `json:"nom_dossier"`
	CreatedAt string `json:"date_creation"`
}

func toFolderJSON(f *domain.Folder) folderJSON {
	return folderJSON{
		ID:        f.ID,
		OwnerID:   f.OwnerID,
		Name:      f.Name,
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the service error taxonomy onto HTTP statuses. Callers
// with route-specific status requirements (e.g. login's 401) handle those
// before falling back here.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var (
		vErr *domain.ValidationError
		aErr *domain.AuthorizationError
		dErr *dxf.DecodeError
	)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Error()})
	case errors.As(err, &aErr):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: aErr.Error()})
	case errors.As(err, &dErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: dErr.Error()})
	default:
		log.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return 0, false
	}
	return id, true
}
