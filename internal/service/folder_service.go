package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yourorg/cadvault/internal/domain"
	"github.com/yourorg/cadvault/internal/observability/metrics"
	"github.com/yourorg/cadvault/internal/security"
)

// FolderService is the folder lifecycle manager. Logical operations touch
// the folder table, physical operations touch the directory tree; no
// cross-store transaction exists, so multi-step operations order their writes
// to fail before the relational commit where possible and rely on the
// reconciler to converge the rest.
type FolderService struct {
	folders domain.FolderRepository
	root    string
	authz   *security.Authorizer
	logger  *slog.Logger
}

// NewFolderService creates a new folder service
func NewFolderService(
	folders domain.FolderRepository,
	root string,
	authz *security.Authorizer,
	logger *slog.Logger,
) *FolderService {
	if logger == nil {
		logger = slog.Default()
	}

	return &FolderService{
		folders: folders,
		root:    root,
		authz:   authz,
		logger:  logger,
	}
}

// PhysicalPath returns the on-disk path for a folder name under the root.
func (s *FolderService) PhysicalPath(name string) string {
	return filepath.Join(s.root, name)
}

// CreateLogicalFolder inserts a folder record for the principal. The
// filesystem is not touched; physical creation is a separate operation bound
// to account provisioning.
func (s *FolderService) CreateLogicalFolder(ctx context.Context, p security.Principal, name string) (*domain.Folder, error) {
	if name == "" {
		return nil, &domain.ValidationError{Field: "nom_dossier", Reason: "folder name is required"}
	}
	if err := safeName(name); err != nil {
		return nil, err
	}

	folder := &domain.Folder{OwnerID: p.UserID, Name: name}
	if err := s.folders.Create(folder); err != nil {
		metrics.ObserveFolderOperation("create_logical", "error")
		return nil, err
	}

	metrics.ObserveFolderOperation("create_logical", "success")
	return folder, nil
}

// GetFolder returns a folder visible to the principal.
func (s *FolderService) GetFolder(ctx context.Context, p security.Principal, folderID int64) (*domain.Folder, error) {
	folder, err := s.folders.GetByID(folderID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanManageFolder(p, folder.OwnerID); err != nil {
		// The original surface hides other users' folders rather than
		// admitting they exist.
		return nil, fmt.Errorf("folder %d: %w", folderID, domain.ErrNotFound)
	}
	return folder, nil
}

// ListFolders returns the principal's folder records.
func (s *FolderService) ListFolders(ctx context.Context, p security.Principal) ([]*domain.Folder, error) {
	return s.folders.ListByOwner(p.UserID)
}

// CreatePhysicalFolder derives the directory name from the email and creates
// the directory if absent. Idempotent: created is false when the directory
// already existed. The relational store is never touched here.
func (s *FolderService) CreatePhysicalFolder(email string) (created bool, name string, err error) {
	name = domain.DeriveFolderName(email)
	path := s.PhysicalPath(name)

	if _, statErr := os.Stat(path); statErr == nil {
		return false, name, nil
	} else if !os.IsNotExist(statErr) {
		return false, name, &domain.StorageError{Op: "stat user folder", Err: statErr}
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		metrics.ObserveFolderOperation("create_physical", "error")
		return false, name, &domain.StorageError{Op: "create user folder", Err: err}
	}

	s.logger.Info("created user folder", slog.String("path", path))
	metrics.ObserveFolderOperation("create_physical", "success")
	return true, name, nil
}

// PhysicalFolderStatus reports whether the user's directory exists.
func (s *FolderService) PhysicalFolderStatus(email string) (exists bool, name string) {
	name = domain.DeriveFolderName(email)
	_, err := os.Stat(s.PhysicalPath(name))
	return err == nil, name
}

// RenameFolder renames a folder in both stores. The record is updated first;
// if the physical rename then fails, the record write is reverted so logical
// and physical names never silently diverge. The physical rename is skipped
// when the old directory does not exist or the name is unchanged.
func (s *FolderService) RenameFolder(ctx context.Context, p security.Principal, folderID int64, newName string) (*domain.Folder, error) {
	if newName == "" {
		return nil, &domain.ValidationError{Field: "nom_dossier", Reason: "folder name is required"}
	}
	if err := safeName(newName); err != nil {
		return nil, err
	}

	folder, err := s.folders.GetByID(folderID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanManageFolder(p, folder.OwnerID); err != nil {
		return nil, err
	}

	oldName := folder.Name
	if oldName == newName {
		return folder, nil
	}

	folder.Name = newName
	if err := s.folders.Update(folder); err != nil {
		metrics.ObserveFolderOperation("rename", "error")
		return nil, err
	}

	oldPath := s.PhysicalPath(oldName)
	newPath := s.PhysicalPath(newName)
	if _, statErr := os.Stat(oldPath); statErr == nil {
		if renameErr := os.Rename(oldPath, newPath); renameErr != nil {
			// Roll the record back; divergence here would poison every
			// later path derivation for this folder.
			folder.Name = oldName
			if revertErr := s.folders.Update(folder); revertErr != nil {
				s.logger.Error("failed to revert folder rename",
					slog.Int64("folder_id", folderID),
					slog.String("error", revertErr.Error()),
				)
			}
			metrics.ObserveFolderOperation("rename", "error")
			return nil, &domain.StorageError{Op: "rename user folder", Err: renameErr}
		}
	} else {
		s.logger.Warn("physical folder absent during rename, record updated only",
			slog.String("old_name", oldName),
			slog.String("new_name", newName),
		)
	}

	metrics.ObserveFolderOperation("rename", "success")
	return folder, nil
}

// DeleteLogical removes the folder record only. Physical cleanup is the
// caller's concern.
func (s *FolderService) DeleteLogical(ctx context.Context, p security.Principal, folderID int64) (bool, error) {
	folder, err := s.folders.GetByID(folderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
		return false, err
	}
	if err := s.authz.CanManageFolder(p, folder.OwnerID); err != nil {
		return false, err
	}

	deleted, err := s.folders.Delete(folderID)
	if err != nil {
		metrics.ObserveFolderOperation("delete_logical", "error")
		return false, err
	}

	metrics.ObserveFolderOperation("delete_logical", "success")
	return deleted, nil
}

// DeleteWithPhysical removes the folder record and then the directory with
// all contents. A directory that is already gone is success with a warning:
// the end state is consistent. A filesystem failure after the record delete
// is reported to the caller even though the row is already gone; the next
// reconciliation pass re-creates the record from the surviving directory.
func (s *FolderService) DeleteWithPhysical(ctx context.Context, p security.Principal, folderID int64) (bool, error) {
	folder, err := s.folders.GetByID(folderID)
	if err != nil {
		return false, err
	}
	if err := s.authz.CanManageFolder(p, folder.OwnerID); err != nil {
		return false, err
	}

	if _, err := s.folders.Delete(folderID); err != nil {
		metrics.ObserveFolderOperation("delete_physical", "error")
		return false, err
	}
	s.logger.Info("folder record removed", slog.String("name", folder.Name))

	if err := s.removeDirectory(folder.Name); err != nil {
		metrics.ObserveFolderOperation("delete_physical", "error")
		return false, err
	}

	metrics.ObserveFolderOperation("delete_physical", "success")
	return true, nil
}

// DeleteWithPhysicalByEmail removes a user's folder record (if any) and
// their directory, keyed by the derived name. Used when deleting accounts:
// the record may be absent while the directory still exists.
func (s *FolderService) DeleteWithPhysicalByEmail(ctx context.Context, ownerID int64, email string) error {
	if _, err := s.folders.DeleteByOwner(ownerID); err != nil {
		metrics.ObserveFolderOperation("delete_physical", "error")
		return err
	}

	if err := s.removeDirectory(domain.DeriveFolderName(email)); err != nil {
		metrics.ObserveFolderOperation("delete_physical", "error")
		return err
	}

	metrics.ObserveFolderOperation("delete_physical", "success")
	return nil
}

func (s *FolderService) removeDirectory(name string) error {
	path := s.PhysicalPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		s.logger.Warn("physical folder already absent", slog.String("path", path))
		return nil
	}

	if err := os.RemoveAll(path); err != nil {
		s.logger.Error("failed to remove physical folder",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return &domain.StorageError{Op: "remove user folder", Err: err}
	}

	s.logger.Info("physical folder removed", slog.String("path", path))
	return nil
}
