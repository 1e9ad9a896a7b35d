package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/cadvault/internal/security/middleware"
	"github.com/yourorg/cadvault/internal/service"
)

// UserFolderResponse reports whether the caller's directory exists
type UserFolderResponse struct {
	FolderExists bool   `json:"folderExists"`
	FolderName   string `json:"folderName"`
	Message      string `json:"message"`
}

// ExtractStoredRequest names a stored file to parse
type ExtractStoredRequest struct {
	Filename string `json:"filename"`
	Folder   string `json:"folder"`
}

// UserFolderHandler serves the caller's personal directory: existence,
// provisioning, file listing, tree and extraction from stored files.
type UserFolderHandler struct {
	folders *service.FolderService
	files   *service.FileService
	logger  *slog.Logger
}

// NewUserFolderHandler creates a new user folder handler
func NewUserFolderHandler(folders *service.FolderService, files *service.FileService, logger *slog.Logger) *UserFolderHandler {
	return &UserFolderHandler{
		folders: folders,
		files:   files,
		logger:  logger,
	}
}

func (h *UserFolderHandler) email(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return "", false
	}
	return p.Email, true
}

// Status handles GET /api/user-folder requests
func (h *UserFolderHandler) Status(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	exists, name := h.folders.PhysicalFolderStatus(email)
	msg := "folder does not exist"
	if exists {
		msg = "folder exists"
	}
	writeJSON(w, http.StatusOK, UserFolderResponse{
		FolderExists: exists,
		FolderName:   name,
		Message:      msg,
	})
}

// Create handles POST /api/user-folder requests. Creation is idempotent:
// an already provisioned directory answers 200 instead of 201.
func (h *UserFolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	created, name, err := h.folders.CreatePhysicalFolder(email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	msg := "folder already exists"
	if created {
		status = http.StatusCreated
		msg = "folder created"
	}
	writeJSON(w, status, UserFolderResponse{
		FolderExists: true,
		FolderName:   name,
		Message:      msg,
	})
}

// Files handles GET /api/user-folder/files requests
func (h *UserFolderHandler) Files(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	files, err := h.files.ListFiles(email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files":   files,
		"message": "files retrieved",
	})
}

// Tree handles GET /api/user-folder/tree requests
func (h *UserFolderHandler) Tree(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	tree, err := h.files.FolderTree(email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// ExtractStored handles POST /api/user-folder/extract-data-from-file
// requests, parsing a file already stored in the caller's directory.
func (h *UserFolderHandler) ExtractStored(w http.ResponseWriter, r *http.Request) {
	email, ok := h.email(w, r)
	if !ok {
		return
	}

	var req ExtractStoredRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Filename == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "filename is required"})
		return
	}

	doc, err := h.files.ExtractStored(r.Context(), email, req.Folder, req.Filename)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
