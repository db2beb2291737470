package roles

import (
	"context"

	"github.com/dmitrijs2005/tokenauth/internal/server/models"
)

type Repository interface {
	RolesForUser(ctx context.Context, userID string) ([]models.Role, error)
	PermissionsForRoles(ctx context.Context, roleIDs []string) ([]models.Permission, error)
	ReplaceUserRoles(ctx context.Context, userID string, roleIDs []string) error

	ListRoles(ctx context.Context) ([]models.Role, error)
	GetRole(ctx context.Context, id string) (*models.Role, error)
	CreateRole(ctx context.Context, role *models.Role) (*models.Role, error)
	DeleteRole(ctx context.Context, id string) error
	ReplaceRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error

	ListPermissions(ctx context.Context) ([]models.Permission, error)
	CreatePermission(ctx context.Context, p *models.Permission) (*models.Permission, error)
	DeletePermission(ctx context.Context, id string) error
}
