package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"reviewhub/internal/authz"
	"reviewhub/internal/domain"
)

// UserService applies the access gate to account management.
type UserService struct {
	users domain.UserRepository
	auth  domain.AuthService
	gate  *authz.Gate
	now   func() time.Time
}

func NewUserService(users domain.UserRepository, auth domain.AuthService, gate *authz.Gate) *UserService {
	return &UserService{users: users, auth: auth, gate: gate, now: time.Now}
}

func (s *UserService) Create(ctx context.Context, actor domain.User, in domain.NewUser, password string) (domain.User, error) {
	if err := domain.ValidateStruct(in); err != nil {
		return domain.User{}, err
	}
	if err := s.gate.CanCreateUser(ctx, actor, in.Role); err != nil {
		return domain.User{}, err
	}
	u, err := s.auth.Register(ctx, in, password)
	if err != nil {
		return domain.User{}, err
	}
	log.Info().Str("actor", actor.ID).Str("user", u.ID).Str("role", string(u.Role)).Msg("user created")
	return u, nil
}

func (s *UserService) Get(ctx context.Context, actor domain.User, id string) (domain.User, error) {
	target, err := s.load(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.gate.CanViewUser(ctx, actor, target); err != nil {
		return domain.User{}, err
	}
	return target, nil
}

// Update lets users edit their own account. Changing a role always needs
// update permission on the new role, even for yourself.
func (s *UserService) Update(ctx context.Context, actor domain.User, id string, p domain.UserPatch) (domain.User, error) {
	if err := domain.ValidateStruct(p); err != nil {
		return domain.User{}, err
	}
	target, err := s.load(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.gate.CanUpdateUser(ctx, actor, target); err != nil {
		return domain.User{}, err
	}
	if p.Role != nil && *p.Role != target.Role {
		if err := s.gate.CanChangeRole(ctx, actor, target, *p.Role); err != nil {
			return domain.User{}, err
		}
	}
	if p.Empty() {
		return target, nil
	}
	u, err := s.users.UpdateUser(ctx, id, p)
	if err != nil {
		return domain.User{}, err
	}
	log.Info().Str("actor", actor.ID).Str("user", id).Msg("user updated")
	return u, nil
}

// Delete deactivates the account and stamps deleted_at.
func (s *UserService) Delete(ctx context.Context, actor domain.User, id string) error {
	target, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gate.CanDeleteUser(ctx, actor, target); err != nil {
		return err
	}
	off := false
	now := s.now().UTC()
	if _, err := s.users.UpdateUser(ctx, id, domain.UserPatch{IsActive: &off, DeletedAt: &now}); err != nil {
		return err
	}
	log.Info().Str("actor", actor.ID).Str("user", id).Msg("user deleted")
	return nil
}

func (s *UserService) List(ctx context.Context, actor domain.User, role *domain.Role) ([]domain.User, error) {
	roles, err := s.gate.ListableRoles(ctx, actor, role)
	if err != nil {
		return nil, err
	}
	return s.users.ListUsersByRoles(ctx, roles)
}

func (s *UserService) Permissions(ctx context.Context, actor domain.User, id string) (authz.Permissions, error) {
	target, err := s.Get(ctx, actor, id)
	if err != nil {
		return authz.Permissions{}, err
	}
	return s.gate.Resolver().EffectivePermissions(ctx, target)
}

func (s *UserService) AssignPermissions(ctx context.Context, actor domain.User, id string, o authz.PermissionOverride) (authz.Permissions, error) {
	target, err := s.load(ctx, id)
	if err != nil {
		return authz.Permissions{}, err
	}
	return s.gate.AssignOverride(ctx, actor, target, o)
}

func (s *UserService) ClearPermissions(ctx context.Context, actor domain.User, id string) error {
	target, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.gate.ClearOverride(ctx, actor, target)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

// load hides deleted accounts.
func (s *UserService) load(ctx context.Context, id string) (domain.User, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if u.DeletedAt != nil {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}
