package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/cadvault/internal/domain"
)

type memUserRepo struct {
	mu    sync.Mutex
	seq   int64
	users []*domain.User
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{} }

func (m *memUserRepo) Create(u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("email %s: %w", u.Email, domain.ErrConflict)
		}
	}
	m.seq++
	u.ID = m.seq
	m.users = append(m.users, u)
	return nil
}

func (m *memUserRepo) GetByID(id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
}

func (m *memUserRepo) GetByEmail(email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
}

func (m *memUserRepo) List() ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.User(nil), m.users...), nil
}

func (m *memUserRepo) ListByRole(role string) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.User{}
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUserRepo) Update(u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.users {
		if existing.ID == u.ID {
			m.users[i] = u
			return nil
		}
	}
	return fmt.Errorf("user %d: %w", u.ID, domain.ErrNotFound)
}

func (m *memUserRepo) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.users {
		if u.ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
}

// memFolderRepo mimics the relational store, including the one-folder-per-
// owner unique index and the serialized Sync transaction.
type memFolderRepo struct {
	mu        sync.Mutex
	seq       int64
	folders   map[int64]*domain.Folder
	syncCalls int
}

func newMemFolderRepo() *memFolderRepo {
	return &memFolderRepo{folders: map[int64]*domain.Folder{}}
}

func (m *memFolderRepo) Create(f *domain.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(m.folders, f)
}

func (m *memFolderRepo) insertLocked(store map[int64]*domain.Folder, f *domain.Folder) error {
	for _, existing := range store {
		if existing.OwnerID == f.OwnerID {
			return fmt.Errorf("owner %d already has a folder: %w", f.OwnerID, domain.ErrConflict)
		}
	}
	m.seq++
	f.ID = m.seq
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	store[f.ID] = f
	return nil
}

func (m *memFolderRepo) GetByID(id int64) (*domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.folders[id]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("folder %d: %w", id, domain.ErrNotFound)
}

func (m *memFolderRepo) ListByOwner(ownerID int64) ([]*domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Folder{}
	for _, f := range m.folders {
		if f.OwnerID == ownerID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memFolderRepo) ListAll() ([]*domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Folder{}
	for _, f := range m.folders {
		out = append(out, f)
	}
	return out, nil
}

func (m *memFolderRepo) Update(f *domain.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.folders[f.ID]; !ok {
		return fmt.Errorf("folder %d: %w", f.ID, domain.ErrNotFound)
	}
	m.folders[f.ID] = f
	return nil
}

func (m *memFolderRepo) Delete(id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.folders[id]; !ok {
		return false, nil
	}
	delete(m.folders, id)
	return true, nil
}

func (m *memFolderRepo) DeleteByOwner(ownerID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := false
	for id, f := range m.folders {
		if f.OwnerID == ownerID {
			delete(m.folders, id)
			deleted = true
		}
	}
	return deleted, nil
}

type memSyncTx struct {
	repo    *memFolderRepo
	staging map[int64]*domain.Folder
}

func (tx *memSyncTx) InsertFolder(f *domain.Folder) error {
	return tx.repo.insertLocked(tx.staging, f)
}

func (tx *memSyncTx) DeleteFolder(id int64) error {
	delete(tx.staging, id)
	return nil
}

func (tx *memSyncTx) DeleteByOwner(ownerID int64) error {
	for id, f := range tx.staging {
		if f.OwnerID == ownerID {
			delete(tx.staging, id)
		}
	}
	return nil
}

// Sync holds the repo lock for the whole callback, mirroring the advisory
// lock of the real repository. Writes land in a staging copy that replaces
// the store only on success.
func (m *memFolderRepo) Sync(ctx context.Context, rootPath string, fn func(tx domain.FolderSyncTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCalls++

	staging := make(map[int64]*domain.Folder, len(m.folders))
	for id, f := range m.folders {
		copied := *f
		staging[id] = &copied
	}

	if err := fn(&memSyncTx{repo: m, staging: staging}); err != nil {
		return err
	}
	m.folders = staging
	return nil
}

func seedUser(t *testing.T, repo *memUserRepo, email string) *domain.User {
	t.Helper()
	u := &domain.User{
		LastName:     "Test",
		FirstName:    "User",
		Email:        email,
		PasswordHash: "x",
		Role:         domain.RoleUser,
	}
	if err := repo.Create(u); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func mkdir(t *testing.T, root, name string) {
	t.Helper()
	if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", name, err)
	}
}

func TestReconcileClaimsDirectories(t *testing.T) {
	root := t.TempDir()
	users := newMemUserRepo()
	folders := newMemFolderRepo()

	alice := seedUser(t, users, "alice@example.com")
	bob := seedUser(t, users, "a.b@example.com")
	mkdir(t, root, "alice")
	mkdir(t, root, "a_b")
	mkdir(t, root, "nobody-matches-this")

	r := NewReconciler(users, folders, root, nil)
	if err := r.Reconcile(context.Background(), "test"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	all, _ := folders.ListAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	byOwner := map[int64]string{}
	for _, f := range all {
		byOwner[f.OwnerID] = f.Name
	}
	if byOwner[alice.ID] != "alice" || byOwner[bob.ID] != "a_b" {
		t.Fatalf("unexpected claims: %v", byOwner)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	root := t.TempDir()
	users := newMemUserRepo()
	folders := newMemFolderRepo()
	seedUser(t, users, "alice@example.com")
	mkdir(t, root, "alice")

	r := NewReconciler(users, folders, root, nil)
	if err := r.Reconcile(context.Background(), "test"); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	callsAfterFirst := folders.syncCalls

	if err := r.Reconcile(context.Background(), "test"); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	// Nothing changed, so the second pass must not open a transaction.
	if folders.syncCalls != callsAfterFirst {
		t.Fatalf("expected no sync on unchanged state, got %d extra", folders.syncCalls-callsAfterFirst)
	}

	all, _ := folders.ListAll()
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
}

func TestReconcileRemovesStaleRecords(t *testing.T) {
	root := t.TempDir()
	users := newMemUserRepo()
	folders := newMemFolderRepo()

	alice := seedUser(t, users, "alice@example.com")
	if err := folders.Create(&domain.Folder{OwnerID: alice.ID, Name: "vanished"}); err != nil {
		t.Fatalf("seed folder: %v", err)
	}

	r := NewReconciler(users, folders, root, nil)
	if err := r.Reconcile(context.Background(), "test"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	all, _ := folders.ListAll()
	if len(all) != 0 {
		t.Fatalf("expected stale record removed, still have %d", len(all))
	}
}

func TestReconcileReplacesRenamedDirectory(t *testing.T) {
	root := t.TempDir()
	users := newMemUserRepo()
	folders := newMemFolderRepo()

	alice := seedUser(t, users, "alice@example.com")
	if err := folders.Create(&domain.Folder{OwnerID: alice.ID, Name: "old-name"}); err != nil {
		t.Fatalf("seed folder: %v", err)
	}
	mkdir(t, root, "alice")

	r := NewReconciler(users, folders, root, nil)
	if err := r.Reconcile(context.Background(), "test"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	all, _ := folders.ListAll()
	if len(all) != 1 {
		t.Fatalf("expected exactly 1 record, got %d", len(all))
	}
	if all[0].Name != "alice" || all[0].OwnerID != alice.ID {
		t.Fatalf("unexpected record: %+v", all[0])
	}
}

func TestReconcileCreatedAtFromDirectory(t *testing.T) {
	root := t.TempDir()
	users := newMemUserRepo()
	folders := newMemFolderRepo()
	seedUser(t, users, "alice@example.com")
	mkdir(t, root, "alice")

	info, err := os.Stat(filepath.Join(root, "alice"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	want := dirCreatedAt(info)

	r := NewReconciler(users, folders, root, nil)
	if err := r.Reconcile(context.Background(), "test"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	all, _ := folders.ListAll()
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
	if !all[0].CreatedAt.Equal(want) {
		t.Fatalf("created_at = %v, want directory time %v", all[0].CreatedAt, want)
	}
}

func TestReconcileConcurrentPasses(t *testing.T) {
	root := t.TempDir()
	users := newMemUserRepo()
	folders := newMemFolderRepo()
	seedUser(t, users, "alice@example.com")
	seedUser(t, users, "bob@example.com")
	mkdir(t, root, "alice")
	mkdir(t, root, "bob")

	r := NewReconciler(users, folders, root, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Reconcile(context.Background(), "test")
		}()
	}
	wg.Wait()
	close(errs)

	// Serialized passes must never trip the unique owner constraint.
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent reconcile: %v", err)
		}
	}

	all, _ := folders.ListAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
}
