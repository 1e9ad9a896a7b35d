package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/yourorg/cadvault/internal/domain"
)

// PostgresFolderRepository implements domain.FolderRepository using PostgreSQL
type PostgresFolderRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresFolderRepository creates a new folder repository
func NewPostgresFolderRepository(db *sql.DB, logger *slog.Logger) *PostgresFolderRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresFolderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a folder record. The schema allows at most one folder per
// owner; a second insert for the same owner surfaces as domain.ErrConflict.
func (r *PostgresFolderRepository) Create(folder *domain.Folder) error {
	query := `
		INSERT INTO folders (owner_id, name, created_at)
		VALUES ($1, $2, COALESCE($3, now()))
		RETURNING id, created_at
	`

	var createdAt sql.NullTime
	if !folder.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: folder.CreatedAt, Valid: true}
	}

	err := r.db.QueryRow(query, folder.OwnerID, folder.Name, createdAt).
		Scan(&folder.ID, &folder.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("folder for owner %d: %w", folder.OwnerID, domain.ErrConflict)
		}
		r.logger.Error("failed to create folder",
			slog.Int64("owner_id", folder.OwnerID),
			slog.String("name", folder.Name),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create folder: %w", err)
	}

	return nil
}

// GetByID retrieves a folder by ID
func (r *PostgresFolderRepository) GetByID(id int64) (*domain.Folder, error) {
	folder := &domain.Folder{}

	query := `
		SELECT id, owner_id, name, created_at
		FROM folders
		WHERE id = $1
	`

	err := r.db.QueryRow(query, id).Scan(
		&folder.ID,
		&folder.OwnerID,
		&folder.Name,
		&folder.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return folder, nil
}

// ListByOwner lists the folders belonging to a user
func (r *PostgresFolderRepository) ListByOwner(ownerID int64) ([]*domain.Folder, error) {
	query := `
		SELECT id, owner_id, name, created_at
		FROM folders
		WHERE owner_id = $1
		ORDER BY id
	`
	return r.queryFolders(query, ownerID)
}

// ListAll lists every folder record
func (r *PostgresFolderRepository) ListAll() ([]*domain.Folder, error) {
	query := `
		SELECT id, owner_id, name, created_at
		FROM folders
		ORDER BY id
	`
	return r.queryFolders(query)
}

func (r *PostgresFolderRepository) queryFolders(query string, args ...any) ([]*domain.Folder, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("failed to list folders", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*domain.Folder
	for rows.Next() {
		folder := &domain.Folder{}
		err := rows.Scan(
			&folder.ID,
			&folder.OwnerID,
			&folder.Name,
			&folder.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}

	return folders, rows.Err()
}

// Update rewrites a folder's name
func (r *PostgresFolderRepository) Update(folder *domain.Folder) error {
	result, err := r.db.Exec(
		`UPDATE folders SET name = $1 WHERE id = $2`,
		folder.Name,
		folder.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update folder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("folder %d: %w", folder.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a folder row. It reports whether a row existed.
func (r *PostgresFolderRepository) Delete(id int64) (bool, error) {
	result, err := r.db.Exec(`DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete folder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rows > 0, nil
}

// DeleteByOwner removes a user's folder row. It reports whether a row existed.
func (r *PostgresFolderRepository) DeleteByOwner(ownerID int64) (bool, error) {
	result, err := r.db.Exec(`DELETE FROM folders WHERE owner_id = $1`, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete folder by owner: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rows > 0, nil
}

// Sync runs fn inside a single transaction holding a Postgres advisory lock
// keyed by the resource root path. The lock serializes reconciliations over
// the same root across processes; pg_advisory_xact_lock releases with the
// transaction on both commit and rollback.
func (r *PostgresFolderRepository) Sync(ctx context.Context, rootPath string, fn func(tx domain.FolderSyncTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin sync transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rootPath); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to take reconcile lock: %w", err)
	}

	if err := fn(&folderSyncTx{tx: tx, ctx: ctx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("sync rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync transaction: %w", err)
	}

	return nil
}

// folderSyncTx scopes reconciler writes to one transaction.
type folderSyncTx struct {
	tx  *sql.Tx
	ctx context.Context
}

func (s *folderSyncTx) InsertFolder(folder *domain.Folder) error {
	err := s.tx.QueryRowContext(s.ctx,
		`INSERT INTO folders (owner_id, name, created_at) VALUES ($1, $2, $3) RETURNING id`,
		folder.OwnerID, folder.Name, folder.CreatedAt,
	).Scan(&folder.ID)
	if err != nil {
		return fmt.Errorf("failed to insert folder: %w", err)
	}
	return nil
}

func (s *folderSyncTx) DeleteFolder(id int64) error {
	if _, err := s.tx.ExecContext(s.ctx, `DELETE FROM folders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return nil
}

func (s *folderSyncTx) DeleteByOwner(ownerID int64) error {
	if _, err := s.tx.ExecContext(s.ctx, `DELETE FROM folders WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("failed to delete folder by owner: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
