package valueobjects

import "fmt"

// Permission is the level granted to an identity on a shared diagram
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// ParsePermission validates and returns a Permission
func ParsePermission(s string) (Permission, error) {
	switch Permission(s) {
	case PermissionView, PermissionEdit:
		return Permission(s), nil
	default:
		return "", fmt.Errorf("unknown permission %q", s)
	}
}

// IsValid reports whether the permission is one of the known levels
func (p Permission) IsValid() bool {
	return p == PermissionView || p == PermissionEdit
}

// Role converts the permission into the effective role it confers
func (p Permission) Role() Role {
	if p == PermissionEdit {
		return RoleEdit
	}
	return RoleView
}

// Role is the effective permission of the acting identity on one
// diagram: the owner, a grantee at edit or view level, or an unlisted
// identity which is always demoted to view (default deny).
type Role string

const (
	RoleOwner Role = "owner"
	RoleEdit  Role = "edit"
	RoleView  Role = "view"
)

// CanMutate reports whether the role allows changing the diagram's
// title, nodes or edges. This is the single authorization check every
// mutating entry point consults.
func (r Role) CanMutate() bool {
	return r == RoleOwner || r == RoleEdit
}

// CanDelete reports whether the role allows deleting the diagram
func (r Role) CanDelete() bool {
	return r == RoleOwner
}

// CanShare reports whether the role allows granting access to others
func (r Role) CanShare() bool {
	return r == RoleOwner
}
