package domain

import (
	"context"
	"strings"
	"time"
)

// Folder is the relational record mirroring a user's directory under the
// resource root. The directory tree is ground truth; folder rows are always
// rebuildable from disk by the reconciler, never the other way around.
type Folder struct {
	ID        int64
	OwnerID   int64  // References User.ID
	Name      string // Directory name under the resource root
	CreatedAt time.Time
}

// UserWithFolder is the users-with-folders join projection. Folder fields are
// nil for users whose directory has not been provisioned yet.
type UserWithFolder struct {
	User      *User
	FolderID  *int64
	Name      *string
	CreatedAt *time.Time
}

// FolderSyncTx is the transaction scope handed to the reconciler. All writes
// issued through it commit or roll back as one unit.
type FolderSyncTx interface {
	InsertFolder(folder *Folder) error
	DeleteFolder(id int64) error
	DeleteByOwner(ownerID int64) error
}

// FolderRepository defines data access for folder records
type FolderRepository interface {
	Create(folder *Folder) error
	GetByID(id int64) (*Folder, error)
	ListByOwner(ownerID int64) ([]*Folder, error)
	ListAll() ([]*Folder, error)
	Update(folder *Folder) error
	Delete(id int64) (bool, error)
	DeleteByOwner(ownerID int64) (bool, error)

	// Sync runs fn inside a transaction holding an advisory lock derived from
	// rootPath, so two reconciliations over the same root serialize even
	// across processes.
	Sync(ctx context.Context, rootPath string, fn func(tx FolderSyncTx) error) error
}

// DeriveFolderName maps a user email to their directory name: the local part
// of the address with dots replaced by underscores. Every component that
// touches per-user directories must go through this function; the derivation
// is deliberately collision-prone ("a.b@x" and "a_b@y" map to the same name)
// and that is accepted.
func DeriveFolderName(email string) string {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	return strings.ReplaceAll(local, ".", "_")
}
