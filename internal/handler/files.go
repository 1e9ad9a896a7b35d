package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/cadvault/internal/security/middleware"
	"github.com/yourorg/cadvault/internal/service"
)

// FileHandler handles uploads, extraction and file transfers
type FileHandler struct {
	files    *service.FileService
	maxBytes int64
	logger   *slog.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(files *service.FileService, maxUploadMB int, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		files:    files,
		maxBytes: int64(maxUploadMB) << 20,
		logger:   logger,
	}
}

func (h *FileHandler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large or malformed"})
		return false
	}
	return true
}

// Upload handles POST /api/upload requests, storing a DXF file in the
// caller's directory.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file field is required"})
		return
	}
	defer file.Close()

	name, err := h.files.SaveUpload(r.Context(), p.Email, header.Filename, file)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"filename": name,
		"message":  "file uploaded",
	})
}

// Extract handles POST /api/extract-data requests: parse an uploaded DXF
// without keeping it.
func (h *FileHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file field is required"})
		return
	}
	defer file.Close()

	doc, err := h.files.ExtractFromReader(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Transfer handles POST /api/transfer-files requests, storing two files
// into a named sub-folder of the caller's directory.
func (h *FileHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}

	file1, header1, err := r.FormFile("file1")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file1 field is required"})
		return
	}
	defer file1.Close()

	file2, header2, err := r.FormFile("file2")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file2 field is required"})
		return
	}
	defer file2.Close()

	folderName := r.FormValue("customFolderName")
	if folderName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "customFolderName is required"})
		return
	}

	// Explicit target names override the upload names when provided.
	name1 := r.FormValue("filename1")
	if name1 == "" {
		name1 = header1.Filename
	}
	name2 := r.FormValue("filename2")
	if name2 == "" {
		name2 = header2.Filename
	}

	if err := h.files.TransferFiles(r.Context(), p.Email, folderName, name1, file1, name2, file2); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"folder":  folderName,
		"message": "files transferred",
	})
}
