package authz

// Resources and actions used by the built-in endpoints.
const (
	ResourceUser       = "user"
	ResourceRole       = "role"
	ResourcePermission = "permission"

	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

var (
	UserCreate = RequireOne(ResourceUser, ActionCreate)
	UserUpdate = RequireOne(ResourceUser, ActionUpdate)
	UserDelete = RequireOne(ResourceUser, ActionDelete)

	RoleRead   = RequireOne(ResourceRole, ActionRead)
	RoleCreate = RequireOne(ResourceRole, ActionCreate)
	RoleUpdate = RequireOne(ResourceRole, ActionUpdate)
	RoleDelete = RequireOne(ResourceRole, ActionDelete)

	PermissionRead   = RequireOne(ResourcePermission, ActionRead)
	PermissionCreate = RequireOne(ResourcePermission, ActionCreate)
	PermissionDelete = RequireOne(ResourcePermission, ActionDelete)

	// AssignRoles changes another user's authority, so it needs both.
	AssignRoles = RequireAll(
		Permission{ResourceUser, ActionUpdate},
		Permission{ResourceRole, ActionUpdate},
	)
)

// UserReadOrSelf lets a user read their own record, and others only with
// user:read.
func UserReadOrSelf(userID string) Requirement {
	return RequireSelfOr(ResourceUser, ActionRead, userID)
}
