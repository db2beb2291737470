// Package services contains the server-side business logic: issuing and
// refreshing sessions, authenticating requests, building authorization
// snapshots and administering accounts.
package services

import (
	"context"

	"github.com/dmitrijs2005/tokenauth/internal/server/models"
)

// UserStore is the read side of user persistence needed by authentication.
// Lookups return common.ErrorNotFound for unknown users.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// RoleStore resolves RBAC state. RolesForUser returns only active roles,
// ordered by name.
type RoleStore interface {
	RolesForUser(ctx context.Context, userID string) ([]models.Role, error)
	PermissionsForRoles(ctx context.Context, roleIDs []string) ([]models.Permission, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}
