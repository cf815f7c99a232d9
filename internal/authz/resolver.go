package authz

import (
	"context"
	"fmt"
	"slices"

	"reviewhub/internal/domain"
)

// Resolver combines the role matrix with stored overrides.
type Resolver struct {
	matrix *Matrix
	store  OverrideStore
}

func NewResolver(m *Matrix, s OverrideStore) *Resolver {
	if s == nil {
		s = NewMemoryOverrideStore()
	}
	return &Resolver{matrix: m, store: s}
}

func (r *Resolver) Matrix() *Matrix { return r.matrix }

func (r *Resolver) Store() OverrideStore { return r.store }

// EffectivePermissions is the user's base role permissions with any stored
// override applied field by field.
func (r *Resolver) EffectivePermissions(ctx context.Context, u domain.User) (Permissions, error) {
	base, err := r.matrix.Base(u.Role)
	if err != nil {
		return Permissions{}, err
	}
	o, ok, err := r.store.Get(ctx, u.ID)
	if err != nil {
		return Permissions{}, fmt.Errorf("load override for %s: %w", u.ID, err)
	}
	if !ok {
		return base, nil
	}
	return o.Apply(base), nil
}

// Authorize decides whether u may perform action on accounts of role target.
// Mid-tier roles can never act on the admin role, whatever their overrides say,
// and can_manage_all never reaches the admin role either.
func (r *Resolver) Authorize(ctx context.Context, u domain.User, target domain.Role, action Action) (bool, error) {
	if r.matrix.IsMidTier(u.Role) && target == r.matrix.AdminRole {
		return false, nil
	}
	perms, err := r.EffectivePermissions(ctx, u)
	if err != nil {
		return false, err
	}
	targets, ok := perms.Targets(action)
	if !ok {
		return false, nil
	}
	if slices.Contains(targets, target) {
		return true, nil
	}
	return perms.CanManageAll && target != r.matrix.AdminRole, nil
}

func (r *Resolver) configErr(role domain.Role) error {
	_, err := r.matrix.Base(role)
	return err
}
