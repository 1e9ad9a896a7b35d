package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yourorg/cadvault/internal/domain"
	"github.com/yourorg/cadvault/internal/observability/metrics"
)

// Reconciler rewrites the folder table to match the directory tree under the
// resource root. The filesystem is ground truth: records without a backing
// directory are deleted, directories whose derived name matches a user gain
// a record carrying the directory's creation time. Directories matching no
// user are orphans; they are logged and left alone.
//
// A pass is idempotent and safe to run concurrently with folder CRUD, but
// not with itself over the same root: the instance mutex serializes passes
// in-process, and the repository's advisory lock serializes them across
// processes.
type Reconciler struct {
	users   domain.UserRepository
	folders domain.FolderRepository
	root    string
	logger  *slog.Logger

	mu sync.Mutex
}

// NewReconciler creates a reconciler bound to one resource root.
func NewReconciler(
	users domain.UserRepository,
	folders domain.FolderRepository,
	root string,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		users:   users,
		folders: folders,
		root:    root,
		logger:  logger,
	}
}

// claim is a planned insert: dir claimed for owner, replacing any previous
// record of theirs.
type claim struct {
	ownerID   int64
	name      string
	createdAt time.Time
}

// Reconcile runs one full pass. trigger labels the metrics ("worker" or
// "request"). All relational writes commit as a single transaction; on any
// failure the database is left untouched. The directory tree is never
// modified.
func (r *Reconciler) Reconcile(ctx context.Context, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	err := r.reconcile(ctx)
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.ObserveReconcile(trigger, result, time.Since(start))
	return err
}

func (r *Reconciler) reconcile(ctx context.Context) error {
	users, err := r.users.List()
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	existing, err := r.folders.ListAll()
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	entries, err := os.ReadDir(r.root)
	if err != nil {
		return &domain.StorageError{Op: "list resource root", Err: err}
	}

	dirSet := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			dirSet[e.Name()] = true
		}
	}

	recordByOwner := make(map[int64]*domain.Folder, len(existing))
	for _, f := range existing {
		recordByOwner[f.OwnerID] = f
	}

	// Records whose directory disappeared out-of-band.
	var stale []int64
	for _, f := range existing {
		if !dirSet[f.Name] {
			r.logger.Info("folder record has no backing directory, removing",
				slog.String("name", f.Name),
				slog.Int64("owner_id", f.OwnerID),
			)
			stale = append(stale, f.ID)
		}
	}

	// Directories claimed by the first user whose derived name matches.
	var claims []claim
	managed := len(existing) - len(stale)
	for name := range dirSet {
		var owner *domain.User
		for _, u := range users {
			if domain.DeriveFolderName(u.Email) == name {
				owner = u
				break
			}
		}
		if owner == nil {
			r.logger.Warn("orphan directory: no matching user",
				slog.String("name", name),
			)
			continue
		}

		if rec, ok := recordByOwner[owner.ID]; ok && rec.Name == name {
			continue
		}

		info, err := os.Stat(filepath.Join(r.root, name))
		if err != nil {
			return &domain.StorageError{Op: "stat directory " + name, Err: err}
		}

		claims = append(claims, claim{
			ownerID:   owner.ID,
			name:      name,
			createdAt: dirCreatedAt(info),
		})
		if _, had := recordByOwner[owner.ID]; !had {
			managed++
		}
	}

	if len(stale) == 0 && len(claims) == 0 {
		r.logger.Debug("reconcile: no changes")
		metrics.SetManagedFolders(managed)
		return nil
	}

	err = r.folders.Sync(ctx, r.root, func(tx domain.FolderSyncTx) error {
		for _, id := range stale {
			if err := tx.DeleteFolder(id); err != nil {
				return err
			}
		}
		for _, c := range claims {
			// Replace any previous record for this owner so a rename on disk
			// cannot leave duplicate personal folders.
			if err := tx.DeleteByOwner(c.ownerID); err != nil {
				return err
			}
			folder := &domain.Folder{
				OwnerID:   c.ownerID,
				Name:      c.name,
				CreatedAt: c.createdAt,
			}
			if err := tx.InsertFolder(folder); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconcile commit: %w", err)
	}

	r.logger.Info("reconcile completed",
		slog.Int("removed", len(stale)),
		slog.Int("claimed", len(claims)),
	)
	metrics.SetManagedFolders(managed)
	return nil
}
