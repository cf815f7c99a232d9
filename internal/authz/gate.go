package authz

import (
	"context"
	"slices"

	"github.com/rs/zerolog/log"

	"reviewhub/internal/domain"
)

// Gate turns resolver decisions into the checks the request layer needs.
type Gate struct {
	r *Resolver
	// Observe, when set, receives every decision.
	Observe func(action string, allowed bool)
}

func NewGate(r *Resolver) *Gate { return &Gate{r: r} }

func (g *Gate) Resolver() *Resolver { return g.r }

func (g *Gate) CanCreateUser(ctx context.Context, actor domain.User, role domain.Role) error {
	if !g.r.matrix.Has(role) {
		return domain.NewValidationError("role", "unknown role")
	}
	return g.require(ctx, actor, role, ActionCreate)
}

// CanUpdateUser lets every user update their own account; anything else needs
// update permission on the target's role.
func (g *Gate) CanUpdateUser(ctx context.Context, actor, target domain.User) error {
	if actor.ID == target.ID {
		g.observe("update", true)
		return nil
	}
	return g.require(ctx, actor, target.Role, ActionUpdate)
}

// CanChangeRole guards moving target into newRole. There is no self exception:
// promoting yourself needs the same permission as promoting anyone else.
func (g *Gate) CanChangeRole(ctx context.Context, actor, target domain.User, newRole domain.Role) error {
	if !g.r.matrix.Has(newRole) {
		return domain.NewValidationError("role", "unknown role")
	}
	if actor.ID != target.ID {
		if err := g.require(ctx, actor, target.Role, ActionUpdate); err != nil {
			return err
		}
	}
	return g.require(ctx, actor, newRole, ActionUpdate)
}

func (g *Gate) CanDeleteUser(ctx context.Context, actor, target domain.User) error {
	return g.require(ctx, actor, target.Role, ActionDelete)
}

func (g *Gate) CanViewUser(ctx context.Context, actor, target domain.User) error {
	if actor.ID == target.ID {
		return nil
	}
	return g.require(ctx, actor, target.Role, ActionView)
}

// ListableRoles returns the roles actor may list. With a filter it returns just
// that role, or a CannotViewRole denial when the filter is outside the allowed set.
func (g *Gate) ListableRoles(ctx context.Context, actor domain.User, filter *domain.Role) ([]domain.Role, error) {
	if !g.r.matrix.Has(actor.Role) {
		return nil, g.r.configErr(actor.Role)
	}
	allowed := g.r.matrix.Listable(actor.Role)
	if len(allowed) == 0 {
		g.deny("list", actor, "")
		return nil, &PermissionDenied{Kind: DenyInsufficient, Actor: actor.Role, Action: "list users"}
	}
	if filter == nil {
		g.observe("list", true)
		return allowed, nil
	}
	if !slices.Contains(allowed, *filter) {
		g.deny("list", actor, *filter)
		return nil, &PermissionDenied{Kind: DenyCannotViewRole, Actor: actor.Role, Target: *filter, Action: "list users"}
	}
	g.observe("list", true)
	return []domain.Role{*filter}, nil
}

// CanAccessReviews checks the role's review capabilities. Effective
// can_manage_all grants every operation.
func (g *Gate) CanAccessReviews(ctx context.Context, actor domain.User, op ReviewOp) error {
	perms, err := g.r.EffectivePermissions(ctx, actor)
	if err != nil {
		g.logConfig(err, actor)
		return err
	}
	action := "reviews:" + string(op)
	if perms.CanManageAll || slices.Contains(g.r.matrix.ReviewOps(actor.Role), op) {
		g.observe(action, true)
		return nil
	}
	g.deny(action, actor, "")
	return &PermissionDenied{Kind: DenyInsufficient, Actor: actor.Role, Action: string(op) + " reviews"}
}

// AssignOverride stores o for target after checking actor may update target's
// role. An actor can only hand out what it holds itself: every role in an
// overridden list must be one the actor may act on for that action, and
// can_manage_all=true needs an actor with effective can_manage_all.
func (g *Gate) AssignOverride(ctx context.Context, actor, target domain.User, o PermissionOverride) (Permissions, error) {
	if o.Empty() {
		return Permissions{}, domain.NewValidationError("override", "at least one field must be set")
	}
	for _, r := range o.Roles() {
		if !g.r.matrix.Has(r) {
			return Permissions{}, domain.NewValidationError("override", "unknown role "+string(r))
		}
	}
	if err := g.require(ctx, actor, target.Role, ActionUpdate); err != nil {
		return Permissions{}, err
	}
	if err := g.withinGrant(ctx, actor, o); err != nil {
		return Permissions{}, err
	}
	if _, err := g.r.store.Merge(ctx, target.ID, o); err != nil {
		return Permissions{}, err
	}
	log.Info().Str("actor", actor.ID).Str("user", target.ID).Msg("permission override assigned")
	return g.r.EffectivePermissions(ctx, target)
}

func (g *Gate) withinGrant(ctx context.Context, actor domain.User, o PermissionOverride) error {
	if o.CanManageAll != nil && *o.CanManageAll {
		perms, err := g.r.EffectivePermissions(ctx, actor)
		if err != nil {
			g.logConfig(err, actor)
			return err
		}
		if !perms.CanManageAll {
			g.deny("grant", actor, "")
			return &PermissionDenied{Kind: DenyInsufficient, Actor: actor.Role, Action: "grant can_manage_all"}
		}
	}
	lists := []struct {
		action Action
		roles  *[]domain.Role
	}{
		{ActionCreate, o.CanCreate},
		{ActionView, o.CanView},
		{ActionUpdate, o.CanUpdate},
		{ActionDelete, o.CanDelete},
	}
	for _, l := range lists {
		if l.roles == nil {
			continue
		}
		for _, r := range *l.roles {
			ok, err := g.r.Authorize(ctx, actor, r, l.action)
			if err != nil {
				g.logConfig(err, actor)
				return err
			}
			if !ok {
				g.deny("grant", actor, r)
				return &PermissionDenied{Kind: DenyInsufficient, Actor: actor.Role, Target: r,
					Action: "grant " + string(l.action) + " on " + string(r)}
			}
		}
	}
	return nil
}

func (g *Gate) ClearOverride(ctx context.Context, actor, target domain.User) (bool, error) {
	if err := g.require(ctx, actor, target.Role, ActionUpdate); err != nil {
		return false, err
	}
	ok, err := g.r.store.Delete(ctx, target.ID)
	if err != nil {
		return false, err
	}
	if ok {
		log.Info().Str("actor", actor.ID).Str("user", target.ID).Msg("permission override cleared")
	}
	return ok, nil
}

func (g *Gate) require(ctx context.Context, actor domain.User, target domain.Role, action Action) error {
	ok, err := g.r.Authorize(ctx, actor, target, action)
	if err != nil {
		g.logConfig(err, actor)
		return err
	}
	if !ok {
		g.deny(string(action), actor, target)
		return &PermissionDenied{Kind: DenyTargetRole, Actor: actor.Role, Target: target, Action: string(action)}
	}
	g.observe(string(action), true)
	return nil
}

func (g *Gate) deny(action string, actor domain.User, target domain.Role) {
	log.Warn().Str("actor", actor.ID).Str("actor_role", string(actor.Role)).
		Str("action", action).Str("target_role", string(target)).Msg("permission denied")
	g.observe(action, false)
}

func (g *Gate) observe(action string, allowed bool) {
	if g.Observe != nil {
		g.Observe(action, allowed)
	}
}

func (g *Gate) logConfig(err error, actor domain.User) {
	log.Error().Err(err).Str("actor", actor.ID).Str("actor_role", string(actor.Role)).Msg("authorization failed")
}
