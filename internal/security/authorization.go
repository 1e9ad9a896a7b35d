package security

import (
	"log/slog"

	"github.com/yourorg/cadvault/internal/domain"
)

// Authorizer decides who may touch folders and accounts. Checks run before
// any mutation; a denial means nothing was changed.
type Authorizer struct {
	logger *slog.Logger
}

// NewAuthorizer creates a new authorizer
func NewAuthorizer(logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{logger: logger}
}

// Principal is the authenticated actor, taken from validated token claims.
type Principal struct {
	UserID int64
	Email  string
	Role   string
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == domain.RoleAdmin
}

// CanManageFolder allows an admin or the folder's owner to rename or delete
// it; everyone else is denied.
func (a *Authorizer) CanManageFolder(p Principal, ownerID int64) error {
	if p.IsAdmin() || p.UserID == ownerID {
		return nil
	}
	a.logger.Warn("folder access denied",
		slog.Int64("user_id", p.UserID),
		slog.Int64("owner_id", ownerID),
		slog.String("role", p.Role),
	)
	return &domain.AuthorizationError{Reason: "only an admin or the folder owner may modify it"}
}

// CanManageAccount allows an admin or the account holder to update or delete
// the account.
func (a *Authorizer) CanManageAccount(p Principal, accountID int64) error {
	if p.IsAdmin() || p.UserID == accountID {
		return nil
	}
	a.logger.Warn("account access denied",
		slog.Int64("user_id", p.UserID),
		slog.Int64("account_id", accountID),
		slog.String("role", p.Role),
	)
	return &domain.AuthorizationError{Reason: "only an admin or the account holder may modify this account"}
}

// CanChangePassword is stricter than account management: only the account
// holder may rotate their own credential.
func (a *Authorizer) CanChangePassword(p Principal, accountID int64) error {
	if p.UserID == accountID {
		return nil
	}
	return &domain.AuthorizationError{Reason: "passwords can only be changed by the account holder"}
}
