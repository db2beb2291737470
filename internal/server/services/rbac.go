package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tokenauth/internal/common"
	"github.com/dmitrijs2005/tokenauth/internal/dbx"
	"github.com/dmitrijs2005/tokenauth/internal/logging"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
	"github.com/dmitrijs2005/tokenauth/internal/server/repositories/repomanager"
)

// RBACService manages the role and permission catalog. Changes reach
// access tokens only when they are next issued or refreshed.
type RBACService struct {
	db     *sql.DB
	repo   repomanager.RepositoryManager
	logger logging.Logger
}

func NewRBACService(db *sql.DB, repo repomanager.RepositoryManager, logger logging.Logger) *RBACService {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &RBACService{db: db, repo: repo, logger: logger.With("module", "rbac")}
}

func (s *RBACService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.repo.Roles(s.db).ListRoles(ctx)
}

func (s *RBACService) GetRole(ctx context.Context, id string) (*models.Role, error) {
	return s.repo.Roles(s.db).GetRole(ctx, id)
}

// CreateRole adds an active role. Names are unique.
func (s *RBACService) CreateRole(ctx context.Context, name, description string) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", common.ErrorValidation)
	}

	role, err := s.repo.Roles(s.db).CreateRole(ctx, &models.Role{
		Name:        name,
		Description: strings.TrimSpace(description),
		IsActive:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("role %q: %w", name, err)
	}
	s.logger.Info(ctx, "role created", "role_id", role.ID, "name", role.Name)
	return role, nil
}

func (s *RBACService) DeleteRole(ctx context.Context, id string) error {
	if err := s.repo.Roles(s.db).DeleteRole(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "role deleted", "role_id", id)
	return nil
}

// RolePermissions lists what roleID grants. An unknown role is not found
// rather than an empty list.
func (s *RBACService) RolePermissions(ctx context.Context, roleID string) ([]models.Permission, error) {
	roles := s.repo.Roles(s.db)
	if _, err := roles.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	perms, err := roles.PermissionsForRoles(ctx, []string{roleID})
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []models.Permission{}
	}
	return perms, nil
}

// SetRolePermissions replaces the grants of roleID in one transaction.
func (s *RBACService) SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		roles := s.repo.Roles(tx)
		if _, err := roles.GetRole(ctx, roleID); err != nil {
			return err
		}
		return roles.ReplaceRolePermissions(ctx, roleID, permissionIDs)
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "role permissions replaced", "role_id", roleID, "permissions", len(permissionIDs))
	return nil
}

func (s *RBACService) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	return s.repo.Roles(s.db).ListPermissions(ctx)
}

// CreatePermission adds (resource, action) under the name "resource:action".
func (s *RBACService) CreatePermission(ctx context.Context, resource, action, description string) (*models.Permission, error) {
	resource = strings.ToLower(strings.TrimSpace(resource))
	action = strings.ToLower(strings.TrimSpace(action))
	if resource == "" || action == "" {
		return nil, fmt.Errorf("%w: resource and action are required", common.ErrorValidation)
	}

	p, err := s.repo.Roles(s.db).CreatePermission(ctx, &models.Permission{
		Name:        resource + ":" + action,
		Description: strings.TrimSpace(description),
		Resource:    resource,
		Action:      action,
	})
	if err != nil {
		return nil, fmt.Errorf("permission %s:%s: %w", resource, action, err)
	}
	s.logger.Info(ctx, "permission created", "permission_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *RBACService) DeletePermission(ctx context.Context, id string) error {
	if err := s.repo.Roles(s.db).DeletePermission(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "permission deleted", "permission_id", id)
	return nil
}
