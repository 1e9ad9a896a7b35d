package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/cadvault/internal/domain"
	"github.com/yourorg/cadvault/internal/security"
	"github.com/yourorg/cadvault/internal/security/credentials"
)

// UserService covers the administrative account surface: listing, creation
// with an explicit role, profile updates and deletion including the user's
// folder.
type UserService struct {
	users      domain.UserRepository
	folders    domain.FolderRepository
	folderSvc  *FolderService
	reconciler *Reconciler
	hasher     *credentials.Hasher
	authz      *security.Authorizer
	logger     *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(
	users domain.UserRepository,
	folders domain.FolderRepository,
	folderSvc *FolderService,
	reconciler *Reconciler,
	hasher *credentials.Hasher,
	authz *security.Authorizer,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}

	return &UserService{
		users:      users,
		folders:    folders,
		folderSvc:  folderSvc,
		reconciler: reconciler,
		hasher:     hasher,
		authz:      authz,
		logger:     logger,
	}
}

// List returns every account.
func (s *UserService) List() ([]*domain.User, error) {
	return s.users.List()
}

// Get returns a single account by id.
func (s *UserService) Get(userID int64) (*domain.User, error) {
	return s.users.GetByID(userID)
}

// Create registers an account with an explicit role. Unlike Signup this is
// an admin operation and accepts "admin" as well as "user".
func (s *UserService) Create(p security.Principal, firstName, lastName, email, password, role string) (*domain.User, error) {
	if p.Role != domain.RoleAdmin {
		return nil, &domain.AuthorizationError{Reason: "only administrators can create accounts"}
	}
	if firstName == "" || lastName == "" || email == "" || password == "" {
		return nil, &domain.ValidationError{Reason: "firstName, lastName, email and password are required"}
	}
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, &domain.ValidationError{Field: "role", Reason: "must be user or admin"}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		LastName:     lastName,
		FirstName:    firstName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		slog.Int64("user_id", user.ID),
		slog.String("role", user.Role),
		slog.String("created_by", p.Email),
	)
	return user, nil
}

// UpdateParams carries the mutable account fields. Nil pointers mean
// "leave unchanged"; a Password of "unchanged" is also a no-op, which is
// what the admin frontend sends when the field is left blank.
type UpdateParams struct {
	LastName   *string
	FirstName  *string
	Email      *string
	Role       *string
	Password   *string
	FolderName *string
}

// Update applies a partial account update. Renaming the user's folder goes
// through the folder service so the directory on disk moves with the
// record.
func (s *UserService) Update(ctx context.Context, p security.Principal, userID int64, params UpdateParams) (*domain.User, error) {
	if err := s.authz.CanManageAccount(p, userID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if params.LastName != nil && *params.LastName != "" {
		user.LastName = *params.LastName
	}
	if params.FirstName != nil && *params.FirstName != "" {
		user.FirstName = *params.FirstName
	}
	if params.Email != nil && *params.Email != "" {
		user.Email = *params.Email
	}
	if params.Role != nil && *params.Role != "" {
		if p.Role != domain.RoleAdmin {
			return nil, &domain.AuthorizationError{Reason: "only administrators can change roles"}
		}
		if *params.Role != domain.RoleUser && *params.Role != domain.RoleAdmin {
			return nil, &domain.ValidationError{Field: "role", Reason: "must be user or admin"}
		}
		user.Role = *params.Role
	}
	if params.Password != nil && *params.Password != "" && *params.Password != "unchanged" {
		hash, err := s.hasher.Hash(*params.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(user); err != nil {
		return nil, err
	}

	if params.FolderName != nil && *params.FolderName != "" {
		if err := s.renameUserFolder(ctx, p, userID, *params.FolderName); err != nil {
			return nil, err
		}
	}

	s.logger.Info("user updated",
		slog.Int64("user_id", userID),
		slog.String("updated_by", p.Email),
	)
	return user, nil
}

func (s *UserService) renameUserFolder(ctx context.Context, p security.Principal, userID int64, newName string) error {
	folders, err := s.folders.ListByOwner(userID)
	if err != nil {
		return err
	}
	if len(folders) == 0 {
		return fmt.Errorf("user %d has no folder: %w", userID, domain.ErrNotFound)
	}
	if folders[0].Name == newName {
		return nil
	}

	_, err = s.folderSvc.RenameFolder(ctx, p, folders[0].ID, newName)
	return err
}

// Delete removes an account and its folder. The directory on disk goes
// first; if that fails the account survives so the filesystem and the
// database stay in step.
func (s *UserService) Delete(ctx context.Context, p security.Principal, userID int64) error {
	if err := s.authz.CanManageAccount(p, userID); err != nil {
		return err
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}

	if err := s.folderSvc.DeleteWithPhysicalByEmail(ctx, userID, user.Email); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to remove folder for user %d: %w", userID, err)
	}

	if err := s.users.Delete(userID); err != nil {
		return err
	}

	s.logger.Info("user deleted",
		slog.Int64("user_id", userID),
		slog.String("email", user.Email),
		slog.String("deleted_by", p.Email),
	)
	return nil
}

// UsersWithFolders reconciles the resource directory, then joins regular
// users against their folder records. Users without a folder still show up
// with nil folder fields.
func (s *UserService) UsersWithFolders(ctx context.Context) ([]*domain.UserWithFolder, error) {
	if err := s.reconciler.Reconcile(ctx, "request"); err != nil {
		return nil, fmt.Errorf("reconcile before listing: %w", err)
	}

	users, err := s.users.ListByRole(domain.RoleUser)
	if err != nil {
		return nil, err
	}

	all, err := s.folders.ListAll()
	if err != nil {
		return nil, err
	}
	byOwner := make(map[int64]*domain.Folder, len(all))
	for _, f := range all {
		if _, ok := byOwner[f.OwnerID]; !ok {
			byOwner[f.OwnerID] = f
		}
	}

	rows := make([]*domain.UserWithFolder, 0, len(users))
	for _, u := range users {
		row := &domain.UserWithFolder{User: u}
		if f, ok := byOwner[u.ID]; ok {
			row.FolderID = &f.ID
			row.Name = &f.Name
			row.CreatedAt = &f.CreatedAt
		}
		rows = append(rows, row)
	}
	return rows, nil
}
