package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/cadvault/internal/domain"
)

func newFolderRepo(t *testing.T) (*PostgresFolderRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresFolderRepository(db, nil), mock
}

func TestFolderCreateWithExplicitCreatedAt(t *testing.T) {
	repo, mock := newFolderRepo(t)
	createdAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO folders").
		WithArgs(int64(1), "alice", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, createdAt))

	f := &domain.Folder{OwnerID: 1, Name: "alice", CreatedAt: createdAt}
	require.NoError(t, repo.Create(f))
	assert.Equal(t, int64(5), f.ID)
	assert.True(t, f.CreatedAt.Equal(createdAt))
}

func TestFolderCreateSecondForOwnerConflicts(t *testing.T) {
	repo, mock := newFolderRepo(t)

	mock.ExpectQuery("INSERT INTO folders").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(&domain.Folder{OwnerID: 1, Name: "duplicate"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestFolderDeleteReportsExistence(t *testing.T) {
	repo, mock := newFolderRepo(t)

	mock.ExpectExec("DELETE FROM folders").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	deleted, err := repo.Delete(5)
	require.NoError(t, err)
	assert.True(t, deleted)

	mock.ExpectExec("DELETE FROM folders").
		WithArgs(int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	deleted, err = repo.Delete(6)
	require.NoError(t, err)
	assert.False(t, deleted)
}

// Sync must take the advisory lock before any write and commit everything
// as one unit.
func TestSyncTakesAdvisoryLockAndCommits(t *testing.T) {
	repo, mock := newFolderRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("/srv/resources").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM folders WHERE id").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM folders WHERE owner_id").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO folders").
		WithArgs(int64(1), "alice", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectCommit()

	err := repo.Sync(context.Background(), "/srv/resources", func(tx domain.FolderSyncTx) error {
		if err := tx.DeleteFolder(3); err != nil {
			return err
		}
		if err := tx.DeleteByOwner(1); err != nil {
			return err
		}
		return tx.InsertFolder(&domain.Folder{OwnerID: 1, Name: "alice", CreatedAt: time.Now()})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRollsBackOnCallbackError(t *testing.T) {
	repo, mock := newFolderRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("/srv/resources").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM folders WHERE id").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.Sync(context.Background(), "/srv/resources", func(tx domain.FolderSyncTx) error {
		if err := tx.DeleteFolder(3); err != nil {
			return err
		}
		return boom
	})
	assert.True(t, errors.Is(err, boom))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncRollsBackWhenLockFails(t *testing.T) {
	repo, mock := newFolderRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	called := false
	err := repo.Sync(context.Background(), "/srv/resources", func(tx domain.FolderSyncTx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called, "callback must not run without the lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}
