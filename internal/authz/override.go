package authz

import "reviewhub/internal/domain"

// PermissionOverride is a per-user partial replacement of the role's base
// permissions. A nil field is not overridden; a non-nil field, even an empty
// list, replaces the base value entirely.
type PermissionOverride struct {
	CanCreate    *[]domain.Role `json:"can_create,omitempty"`
	CanView      *[]domain.Role `json:"can_view,omitempty"`
	CanUpdate    *[]domain.Role `json:"can_update,omitempty"`
	CanDelete    *[]domain.Role `json:"can_delete,omitempty"`
	CanManageAll *bool          `json:"can_manage_all,omitempty"`
}

func (o PermissionOverride) Empty() bool {
	return o.CanCreate == nil && o.CanView == nil && o.CanUpdate == nil &&
		o.CanDelete == nil && o.CanManageAll == nil
}

// Apply overlays o onto base without touching base.
func (o PermissionOverride) Apply(base Permissions) Permissions {
	out := base.Clone()
	if o.CanCreate != nil {
		out.CanCreate = cloneRoles(*o.CanCreate)
	}
	if o.CanView != nil {
		out.CanView = cloneRoles(*o.CanView)
	}
	if o.CanUpdate != nil {
		out.CanUpdate = cloneRoles(*o.CanUpdate)
	}
	if o.CanDelete != nil {
		out.CanDelete = cloneRoles(*o.CanDelete)
	}
	if o.CanManageAll != nil {
		out.CanManageAll = *o.CanManageAll
	}
	return out
}

// Merge returns o with every field set in next replacing the stored one.
func (o PermissionOverride) Merge(next PermissionOverride) PermissionOverride {
	out := o.Clone()
	if next.CanCreate != nil {
		out.CanCreate = roleList(*next.CanCreate)
	}
	if next.CanView != nil {
		out.CanView = roleList(*next.CanView)
	}
	if next.CanUpdate != nil {
		out.CanUpdate = roleList(*next.CanUpdate)
	}
	if next.CanDelete != nil {
		out.CanDelete = roleList(*next.CanDelete)
	}
	if next.CanManageAll != nil {
		v := *next.CanManageAll
		out.CanManageAll = &v
	}
	return out
}

func (o PermissionOverride) Clone() PermissionOverride {
	out := PermissionOverride{}
	if o.CanCreate != nil {
		out.CanCreate = roleList(*o.CanCreate)
	}
	if o.CanView != nil {
		out.CanView = roleList(*o.CanView)
	}
	if o.CanUpdate != nil {
		out.CanUpdate = roleList(*o.CanUpdate)
	}
	if o.CanDelete != nil {
		out.CanDelete = roleList(*o.CanDelete)
	}
	if o.CanManageAll != nil {
		v := *o.CanManageAll
		out.CanManageAll = &v
	}
	return out
}

// Roles lists every role the override names, for validation against a matrix.
func (o PermissionOverride) Roles() []domain.Role {
	var out []domain.Role
	for _, l := range []*[]domain.Role{o.CanCreate, o.CanView, o.CanUpdate, o.CanDelete} {
		if l != nil {
			out = append(out, *l...)
		}
	}
	return out
}

func roleList(rs []domain.Role) *[]domain.Role {
	c := cloneRoles(rs)
	return &c
}

// RoleList is a helper for building overrides in code and tests.
func RoleList(rs ...domain.Role) *[]domain.Role { return roleList(rs) }

func Bool(v bool) *bool { return &v }
