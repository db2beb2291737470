package authz

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tokenauth/internal/common"
)

// Mode selects how a Requirement combines its permissions.
type Mode string

const (
	ModeOne    Mode = "one"
	ModeAny    Mode = "any"
	ModeAll    Mode = "all"
	ModeSelfOr Mode = "self_or"
)

// Permission is a required (resource, action) pair.
type Permission struct {
	Resource string
	Action   string
}

func (p Permission) String() string {
	return p.Action + " " + p.Resource
}

// Requirement is plain data describing an authorization check. Build one
// with the Require* helpers and pass it to Evaluate.
type Requirement struct {
	Mode        Mode
	Permissions []Permission
	// TargetUserID is the owner of the resource for ModeSelfOr.
	TargetUserID string
}

func RequireOne(resource, action string) Requirement {
	return Requirement{Mode: ModeOne, Permissions: []Permission{{Resource: resource, Action: action}}}
}

func RequireAny(perms ...Permission) Requirement {
	return Requirement{Mode: ModeAny, Permissions: perms}
}

func RequireAll(perms ...Permission) Requirement {
	return Requirement{Mode: ModeAll, Permissions: perms}
}

// RequireSelfOr passes for the owner of targetUserID without any permission,
// and for everyone else only with (resource, action).
func RequireSelfOr(resource, action, targetUserID string) Requirement {
	return Requirement{
		Mode:         ModeSelfOr,
		Permissions:  []Permission{{Resource: resource, Action: action}},
		TargetUserID: targetUserID,
	}
}

// ForbiddenError names what was required. It matches common.ErrForbidden
// under errors.Is.
type ForbiddenError struct {
	Mode     Mode
	Required []Permission
}

func (e *ForbiddenError) Error() string {
	switch {
	case e.Mode == ModeAny && len(e.Required) > 1:
		names := make([]string, len(e.Required))
		for i, p := range e.Required {
			names[i] = p.String()
		}
		return fmt.Sprintf("not enough permissions - one of [%s] required", strings.Join(names, ", "))
	case len(e.Required) == 1:
		return fmt.Sprintf("not enough permissions - %s required", e.Required[0])
	default:
		names := make([]string, len(e.Required))
		for i, p := range e.Required {
			names[i] = p.String()
		}
		return fmt.Sprintf("not enough permissions - [%s] required", strings.Join(names, ", "))
	}
}

func (e *ForbiddenError) Is(target error) bool {
	return target == common.ErrForbidden
}

// Evaluate checks r against p. The superuser bypass is applied first, then
// self access, then the permission set. A nil principal is unauthorized.
func Evaluate(p *Principal, r Requirement) error {
	if p == nil {
		return common.ErrUnauthorized
	}
	if p.IsSuperuser() {
		return nil
	}

	switch r.Mode {
	case ModeSelfOr:
		if r.TargetUserID != "" && p.Identity.ID == r.TargetUserID {
			return nil
		}
		return requireAll(p, r)
	case ModeOne, ModeAll:
		return requireAll(p, r)
	case ModeAny:
		if len(r.Permissions) == 0 {
			return nil
		}
		for _, perm := range r.Permissions {
			if p.HasPermission(perm.Resource, perm.Action) {
				return nil
			}
		}
		return forbidden(r)
	default:
		return forbidden(r)
	}
}

func requireAll(p *Principal, r Requirement) error {
	for _, perm := range r.Permissions {
		if !p.HasPermission(perm.Resource, perm.Action) {
			return forbidden(r)
		}
	}
	return nil
}

func forbidden(r Requirement) error {
	return &ForbiddenError{Mode: r.Mode, Required: append([]Permission(nil), r.Permissions...)}
}
