package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourorg/cadvault/internal/domain"
	"github.com/yourorg/cadvault/internal/dxf"
	"github.com/yourorg/cadvault/internal/observability/metrics"
)

const resultCacheTTL = 10 * time.Minute

// FileService handles the contents of user folders: uploads, listings,
// transfer groupings and DXF extraction. Every path it touches is built from
// validated name components under the resource root; raw client filenames
// never reach filepath.Join unchecked.
type FileService struct {
	root   string
	cache  ResultCache
	logger *slog.Logger
}

// NewFileService creates a new file service
func NewFileService(root string, cache ResultCache, logger *slog.Logger) *FileService {
	if logger == nil {
		logger = slog.Default()
	}

	return &FileService{
		root:   root,
		cache:  cache,
		logger: logger,
	}
}

// FileInfo describes one file in a flat listing.
type FileInfo struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
}

// TreeFile is a file entry in the recursive listing, with its path relative
// to the user folder.
type TreeFile struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
}

// TreeFolder is a sub-folder entry in the recursive listing.
type TreeFolder struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	LastModified string `json:"last_modified"`
	Size         int64  `json:"size"`
	SubStructure *Tree  `json:"sub_structure"`
}

// Tree is the recursive structure of a user folder: sub-folders plus the
// .dxf leaves at this level. Non-drawing files are not listed.
type Tree struct {
	Folders []TreeFolder `json:"folders"`
	Files   []TreeFile   `json:"files"`
}

// safeName rejects name components that could escape the resource root when
// joined into a path.
func safeName(name string) error {
	if name == "" {
		return &domain.ValidationError{Field: "name", Reason: "name is required"}
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return &domain.ValidationError{Field: "name", Reason: "name must not contain path separators or parent references"}
	}
	if name == "." {
		return &domain.ValidationError{Field: "name", Reason: "invalid name"}
	}
	return nil
}

// requireDXF enforces the .dxf-extension-only intake rule.
func requireDXF(filename string) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".dxf") {
		return &domain.ValidationError{Field: "filename", Reason: "only .dxf files are accepted"}
	}
	return nil
}

// userFolderPath resolves the user's directory and verifies it exists.
func (s *FileService) userFolderPath(email string) (string, error) {
	path := filepath.Join(s.root, domain.DeriveFolderName(email))
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("user folder: %w", domain.ErrNotFound)
		}
		return "", &domain.StorageError{Op: "stat user folder", Err: err}
	}
	return path, nil
}

// SaveUpload stores an uploaded drawing in the user's folder. The payload is
// staged to a uuid-named temp file in the same directory and renamed into
// place, so a half-written upload never shows up under its final name. The
// staging file is removed on every failure path.
func (s *FileService) SaveUpload(ctx context.Context, email, filename string, r io.Reader) (string, error) {
	if err := safeName(filename); err != nil {
		metrics.ObserveUpload("rejected")
		return "", err
	}
	if err := requireDXF(filename); err != nil {
		metrics.ObserveUpload("rejected")
		return "", err
	}

	dir, err := s.userFolderPath(email)
	if err != nil {
		metrics.ObserveUpload("error")
		return "", err
	}

	final := filepath.Join(dir, filename)
	if err := s.writeFile(final, r); err != nil {
		metrics.ObserveUpload("error")
		return "", err
	}

	s.cache.Invalidate(ctx, extractCacheKey(final))
	s.logger.Debug("file saved", slog.String("path", final))
	metrics.ObserveUpload("success")
	return final, nil
}

// writeFile stages r into dir next to the destination and renames it into
// place.
func (s *FileService) writeFile(final string, r io.Reader) error {
	dir := filepath.Dir(final)
	staging := filepath.Join(dir, ".upload-"+uuid.NewString())

	f, err := os.Create(staging)
	if err != nil {
		return &domain.StorageError{Op: "create staging file", Err: err}
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(staging)
		return &domain.StorageError{Op: "write upload", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(staging)
		return &domain.StorageError{Op: "close staging file", Err: err}
	}

	if err := os.Rename(staging, final); err != nil {
		os.Remove(staging)
		return &domain.StorageError{Op: "finalize upload", Err: err}
	}
	return nil
}

// ListFiles returns the flat listing of the user's folder: regular files
// only, sub-folders skipped.
func (s *FileService) ListFiles(email string) ([]FileInfo, error) {
	dir, err := s.userFolderPath(email)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.StorageError{Op: "list user folder", Err: err}
	}

	files := []FileInfo{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:         e.Name(),
			Size:         info.Size(),
			LastModified: info.ModTime().Format(time.RFC3339),
		})
	}

	return files, nil
}

// FolderTree returns the recursive structure of the user's folder.
func (s *FileService) FolderTree(email string) (*Tree, error) {
	dir, err := s.userFolderPath(email)
	if err != nil {
		return nil, err
	}
	return s.buildTree(dir, "")
}

func (s *FileService) buildTree(base, rel string) (*Tree, error) {
	tree := &Tree{Folders: []TreeFolder{}, Files: []TreeFile{}}

	full := filepath.Join(base, rel)
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, &domain.StorageError{Op: "list folder " + rel, Err: err}
	}

	for _, e := range entries {
		relPath := e.Name()
		if rel != "" {
			relPath = filepath.Join(rel, e.Name())
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		if e.IsDir() {
			sub, err := s.buildTree(base, relPath)
			if err != nil {
				return nil, err
			}
			tree.Folders = append(tree.Folders, TreeFolder{
				Name:         e.Name(),
				Path:         relPath,
				LastModified: info.ModTime().Format(time.RFC3339),
				Size:         flatSize(filepath.Join(base, relPath)),
				SubStructure: sub,
			})
			continue
		}

		if strings.HasSuffix(strings.ToLower(e.Name()), ".dxf") {
			tree.Files = append(tree.Files, TreeFile{
				Name:         e.Name(),
				Path:         relPath,
				Size:         info.Size(),
				LastModified: info.ModTime().Format(time.RFC3339),
			})
		}
	}

	return tree, nil
}

// flatSize sums the sizes of the regular files directly inside dir.
func flatSize(dir string) int64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	return total
}

// TransferFiles stores a pair of drawings in a named sub-folder of the
// user's directory, creating the sub-folder if needed.
func (s *FileService) TransferFiles(ctx context.Context, email, folderName, name1 string, f1 io.Reader, name2 string, f2 io.Reader) error {
	if err := safeName(folderName); err != nil {
		return err
	}
	for _, n := range []string{name1, name2} {
		if err := safeName(n); err != nil {
			return err
		}
		if err := requireDXF(n); err != nil {
			return err
		}
	}

	dir, err := s.userFolderPath(email)
	if err != nil {
		return err
	}

	transferDir := filepath.Join(dir, folderName)
	if err := os.MkdirAll(transferDir, 0o755); err != nil {
		return &domain.StorageError{Op: "create transfer folder", Err: err}
	}

	if err := s.writeFile(filepath.Join(transferDir, name1), f1); err != nil {
		return err
	}
	if err := s.writeFile(filepath.Join(transferDir, name2), f2); err != nil {
		return err
	}

	s.logger.Info("files transferred",
		slog.String("folder", folderName),
		slog.String("file1", name1),
		slog.String("file2", name2),
	)
	return nil
}

// ExtractFromReader decodes an uploaded drawing without storing it. The
// payload is staged to a scoped temp file that is removed on every exit
// path, decode failures included.
func (s *FileService) ExtractFromReader(ctx context.Context, filename string, r io.Reader) (*dxf.Document, error) {
	if err := requireDXF(filename); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "cadvault-*.dxf")
	if err != nil {
		return nil, &domain.StorageError{Op: "create temp file", Err: err}
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			s.logger.Error("failed to remove temp file",
				slog.String("path", tmp.Name()),
				slog.String("error", err.Error()),
			)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return nil, &domain.StorageError{Op: "stage upload", Err: err}
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, &domain.StorageError{Op: "rewind temp file", Err: err}
	}

	doc, err := dxf.Decode(tmp)
	if err != nil {
		metrics.ObserveDecodeFailure()
		return nil, err
	}
	return doc, nil
}

// ExtractStored decodes a drawing already inside the user's folder. folder
// may name a first-level sub-folder ("" for the folder root). Results are
// cached keyed by path and modification time.
func (s *FileService) ExtractStored(ctx context.Context, email, folder, filename string) (*dxf.Document, error) {
	if err := safeName(filename); err != nil {
		return nil, err
	}
	if folder != "" {
		if err := safeName(folder); err != nil {
			return nil, err
		}
	}

	dir, err := s.userFolderPath(email)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, filename)
	if folder != "" {
		path = filepath.Join(dir, folder, filename)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s: %w", filename, domain.ErrNotFound)
		}
		return nil, &domain.StorageError{Op: "stat file", Err: err}
	}

	key := extractCacheKey(path) + ":" + fmt.Sprint(info.ModTime().UnixNano())
	if cached, ok := s.cache.Get(ctx, key); ok {
		doc := &dxf.Document{}
		if err := json.Unmarshal([]byte(cached), doc); err == nil {
			s.logger.Debug("extraction cache hit", slog.String("path", path))
			return doc, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.StorageError{Op: "open file", Err: err}
	}
	defer f.Close()

	doc, err := dxf.Decode(f)
	if err != nil {
		metrics.ObserveDecodeFailure()
		return nil, err
	}

	if payload, err := json.Marshal(doc); err == nil {
		s.cache.Set(ctx, key, string(payload), resultCacheTTL)
	}

	return doc, nil
}

func extractCacheKey(path string) string {
	return "extract:" + path
}
