package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/tokenauth/internal/server/auth"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
)

// SnapshotBuilder turns a user's current roles into the minimal
// authorization snapshot embedded in access tokens.
type SnapshotBuilder struct {
	roles RoleStore
}

func NewSnapshotBuilder(roles RoleStore) *SnapshotBuilder {
	return &SnapshotBuilder{roles: roles}
}

// Build resolves the active roles of userID and the union of their
// permissions. Permissions shared by several roles appear once, in
// first-seen order. Superusers get their real snapshot too; the bypass is
// applied at evaluation time.
func (b *SnapshotBuilder) Build(ctx context.Context, userID string, isSuperuser bool) (*auth.Snapshot, error) {
	roles, err := b.roles.RolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error resolving roles: %w", err)
	}

	snap := &auth.Snapshot{
		Roles:       make([]string, 0, len(roles)),
		Permissions: []auth.PermissionClaim{},
		IsSuperuser: isSuperuser,
	}

	roleIDs := make([]string, 0, len(roles))
	for _, r := range roles {
		if !r.IsActive {
			continue
		}
		snap.Roles = append(snap.Roles, r.Name)
		roleIDs = append(roleIDs, r.ID)
	}
	if len(roleIDs) == 0 {
		return snap, nil
	}

	perms, err := b.roles.PermissionsForRoles(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("error resolving permissions: %w", err)
	}
	for _, p := range dedupePermissions(perms) {
		snap.Permissions = append(snap.Permissions, auth.PermissionClaim{Resource: p.Resource, Action: p.Action})
	}
	return snap, nil
}

func dedupePermissions(perms []models.Permission) []models.Permission {
	type key struct{ resource, action string }
	seen := make(map[key]struct{}, len(perms))
	out := make([]models.Permission, 0, len(perms))
	for _, p := range perms {
		k := key{p.Resource, p.Action}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
