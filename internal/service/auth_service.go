package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/cadvault/internal/domain"
	"github.com/yourorg/cadvault/internal/security"
	"github.com/yourorg/cadvault/internal/security/auth"
	"github.com/yourorg/cadvault/internal/security/credentials"
)

// AuthService handles signup, login and credential rotation. Hashing lives
// in the credentials package, token issuing in the auth package; this
// service only ties them to the user store.
type AuthService struct {
	users  domain.UserRepository
	hasher *credentials.Hasher
	tokens *auth.TokenManager
	logger *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	hasher *credentials.Hasher,
	tokens *auth.TokenManager,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

// LoginResult carries the issued token and the authenticated user.
type LoginResult struct {
	Token     string
	ExpiresIn int // seconds
	User      *domain.User
}

// Signup registers a new account with the default user role.
func (s *AuthService) Signup(firstName, lastName, email, password string) (*domain.User, error) {
	if firstName == "" || lastName == "" || email == "" || password == "" {
		return nil, &domain.ValidationError{Reason: "firstName, lastName, email and password are required"}
	}
	if len(password) < 8 {
		return nil, &domain.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}

	if existing, err := s.users.GetByEmail(email); err == nil && existing != nil {
		return nil, fmt.Errorf("email %s: %w", email, domain.ErrConflict)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	user := &domain.User{
		LastName:     lastName,
		FirstName:    firstName,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}

	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Login authenticates a user and issues a token. An unknown email surfaces
// as domain.ErrNotFound and a wrong password as an AuthorizationError, so
// the API can keep the original 404/401 distinction.
func (s *AuthService) Login(email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, &domain.ValidationError{Reason: "email and password are required"}
	}

	user, err := s.users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("login attempt with unknown email", slog.String("email", email))
		}
		return nil, err
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, credentials.ErrMismatch) {
			s.logger.Info("login failed with wrong password", slog.String("email", email))
			return nil, &domain.AuthorizationError{Reason: "incorrect password"}
		}
		// Unreadable stored hash: not the client's fault.
		return nil, fmt.Errorf("credential verification: %w", err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.Role, user.LastName, user.FirstName)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &LoginResult{
		Token:     token,
		ExpiresIn: int(s.tokens.TTL().Seconds()),
		User:      user,
	}, nil
}

// Me returns the current user's projection.
func (s *AuthService) Me(userID int64) (*domain.User, error) {
	return s.users.GetByID(userID)
}

// ChangePassword rotates a user's credential. Only the account holder may
// do this, and the current password must verify first.
func (s *AuthService) ChangePassword(p security.Principal, userID int64, currentPassword, newPassword string) error {
	if p.UserID != userID {
		return &domain.AuthorizationError{Reason: "passwords can only be changed by the account holder"}
	}
	if newPassword == "" || len(newPassword) < 8 {
		return &domain.ValidationError{Field: "newPassword", Reason: "must be at least 8 characters"}
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Verify(user.PasswordHash, currentPassword); err != nil {
		if errors.Is(err, credentials.ErrMismatch) {
			return &domain.ValidationError{Field: "currentPassword", Reason: "current password is incorrect"}
		}
		return fmt.Errorf("credential verification: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	user.PasswordHash = hash
	if err := s.users.Update(user); err != nil {
		return err
	}

	s.logger.Info("user changed password", slog.Int64("user_id", userID))
	return nil
}
