package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/cadvault/internal/security"
	"github.com/yourorg/cadvault/internal/security/middleware"
	"github.com/yourorg/cadvault/internal/service"
)

// CreateFolderRequest represents a folder creation or rename payload
type CreateFolderRequest struct {
	Name string `json:"nom_dossier"`
}

// FolderHandler handles folder record CRUD
type FolderHandler struct {
	folders *service.FolderService
	logger  *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(folders *service.FolderService, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{
		folders: folders,
		logger:  logger,
	}
}

func (h *FolderHandler) principal(w http.ResponseWriter, r *http.Request) (security.Principal, bool) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	}
	return p, ok
}

// List handles GET /api/folders requests. Admins see every record, users
// only their own.
func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	folders, err := h.folders.ListFolders(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]folderJSON, 0, len(folders))
	for _, f := range folders {
		out = append(out, toFolderJSON(f))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/folders requests
func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req CreateFolderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	folder, err := h.folders.CreateLogicalFolder(r.Context(), p, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFolderJSON(folder))
}

// Get handles GET /api/folders/{id} requests
func (h *FolderHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	folder, err := h.folders.GetFolder(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolderJSON(folder))
}

// Rename handles PUT /api/folders/{id} requests. The directory on disk is
// renamed together with the record.
func (h *FolderHandler) Rename(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req CreateFolderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	folder, err := h.folders.RenameFolder(r.Context(), p, id, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toFolderJSON(folder))
}

// Delete handles DELETE /api/folders/{id} requests. Both the record and
// the directory go away.
func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	deleted, err := h.folders.DeleteWithPhysical(r.Context(), p, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "folder not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
