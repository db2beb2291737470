package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/dmitrijs2005/tokenauth/internal/dbx"
	"github.com/dmitrijs2005/tokenauth/internal/logging"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
	"github.com/dmitrijs2005/tokenauth/internal/server/repositories/repomanager"
)

const (
	// MinPasswordLength is the shortest password accepted at registration.
	MinPasswordLength = 8
	// MaxPasswordBytes is the bcrypt input limit. It counts bytes, not runes.
	MaxPasswordBytes = 72
)

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UserService administers accounts: registration, lifecycle, role
// assignment and permission introspection.
type UserService struct {
	db     *sql.DB
	repo   repomanager.RepositoryManager
	hasher PasswordHasher
	logger logging.Logger
}

func NewUserService(db *sql.DB, repo repomanager.RepositoryManager, hasher PasswordHasher, logger logging.Logger) *UserService {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &UserService{db: db, repo: repo, hasher: hasher, logger: logger.With("module", "users")}
}

// Register creates an active, non-superuser account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, false)
}

// CreateSuperuser creates an active account with the superuser flag set.
func (s *UserService) CreateSuperuser(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, true)
}

func (s *UserService) create(ctx context.Context, in RegisterInput, superuser bool) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	if len(in.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, MinPasswordLength)
	}
	if len(in.Password) > MaxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", common.ErrorValidation, MaxPasswordBytes)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  superuser,
		Status:       models.UserStatusActive,
	}

	user, err = s.repo.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("email %w", err)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "superuser", superuser)
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repo.Users(s.db).GetUserByID(ctx, id)
}

// DeleteUser removes an account and its role assignments.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.Users(s.db).Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "user deleted", "user_id", id)
	return nil
}

func (s *UserService) Activate(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, true, models.UserStatusActive)
}

func (s *UserService) Deactivate(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, false, models.UserStatusInactive)
}

func (s *UserService) Suspend(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, false, models.UserStatusSuspended)
}

func (s *UserService) setStatus(ctx context.Context, id string, active bool, status models.UserStatus) error {
	if err := s.repo.Users(s.db).UpdateStatus(ctx, id, active, status); err != nil {
		return err
	}
	s.logger.Info(ctx, "user status changed", "user_id", id, "status", status)
	return nil
}

// AssignRoles replaces the roles of userID with roleIDs in one
// transaction. Existing access tokens keep their old snapshot until they
// expire.
func (s *UserService) AssignRoles(ctx context.Context, userID string, roleIDs []string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repo.Users(tx).GetUserByID(ctx, userID); err != nil {
			return err
		}
		return s.repo.Roles(tx).ReplaceUserRoles(ctx, userID, roleIDs)
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "roles assigned", "user_id", userID, "roles", len(roleIDs))
	return nil
}

// EffectivePermissions reads the current permissions of userID from the
// store, bypassing any token snapshot.
func (s *UserService) EffectivePermissions(ctx context.Context, userID string) ([]models.Permission, error) {
	roles := s.repo.Roles(s.db)

	assigned, err := roles.RolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error resolving roles: %w", err)
	}
	ids := make([]string, 0, len(assigned))
	for _, r := range assigned {
		ids = append(ids, r.ID)
	}
	if len(ids) == 0 {
		return []models.Permission{}, nil
	}

	perms, err := roles.PermissionsForRoles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error resolving permissions: %w", err)
	}
	return dedupePermissions(perms), nil
}

// CheckPermission reports whether userID currently holds action on
// resource. Superusers hold everything.
func (s *UserService) CheckPermission(ctx context.Context, userID, resource, action string) (bool, error) {
	user, err := s.repo.Users(s.db).GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.IsSuperuser {
		return true, nil
	}

	perms, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.Resource == resource && p.Action == action {
			return true, nil
		}
	}
	return false, nil
}
