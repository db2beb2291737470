// Package authz evaluates permission requirements against the principal
// authenticated for a request. Evaluation never touches a store: it reads
// the token snapshot and the identity fetched at authentication time.
package authz

import (
	"context"

	"github.com/dmitrijs2005/tokenauth/internal/server/auth"
	"github.com/dmitrijs2005/tokenauth/internal/server/models"
)

// Identity is the durable part of a principal, re-read from the user store
// on every request.
type Identity struct {
	ID          string
	Email       string
	IsActive    bool
	Status      models.UserStatus
	IsSuperuser bool
}

// IdentityFromUser copies the liveness-relevant fields of u.
func IdentityFromUser(u *models.User) Identity {
	return Identity{
		ID:          u.ID,
		Email:       u.Email,
		IsActive:    u.IsActive,
		Status:      u.Status,
		IsSuperuser: u.IsSuperuser,
	}
}

// Principal is the authenticated subject of one request: a fresh identity
// plus the snapshot embedded in the presented access token. The snapshot may
// lag the store by up to the access token lifetime.
type Principal struct {
	Identity Identity
	Snapshot auth.Snapshot
}

// IsSuperuser uses the fresh identity flag, so revoking superuser status
// takes effect on the next request without waiting for a new token.
func (p *Principal) IsSuperuser() bool {
	return p != nil && p.Identity.IsSuperuser
}

// HasPermission reports whether the snapshot grants action on resource.
// It does not apply the superuser bypass; use Evaluate for decisions.
func (p *Principal) HasPermission(resource, action string) bool {
	if p == nil {
		return false
	}
	for _, perm := range p.Snapshot.Permissions {
		if perm.Resource == resource && perm.Action == action {
			return true
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal stores p in ctx for downstream handlers.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
