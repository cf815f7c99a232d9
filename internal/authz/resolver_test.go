package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewhub/internal/domain"
)

func user(id string, role domain.Role) domain.User {
	return domain.User{ID: id, Username: id, Role: role, IsActive: true}
}

func TestBundledMatricesLoad(t *testing.T) {
	for _, name := range []string{"reviewer", "school"} {
		m, err := BundledMatrix(name)
		require.NoError(t, err, name)
		assert.Equal(t, domain.Role("admin"), m.AdminRole)
	}
	m := DefaultMatrix()
	assert.Equal(t, []domain.Role{"admin", "reviewer"}, m.RoleNames())
	assert.True(t, m.IsMidTier("reviewer"))
}

func TestParseMatrixRejectsUndeclaredRole(t *testing.T) {
	_, err := ParseMatrix([]byte(`
admin_role: admin
roles:
  admin:
    can_create: [ghost]
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = ParseMatrix([]byte(`admin_role: root
roles:
  admin: {}
`))
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestEffectivePermissionsUnknownRole(t *testing.T) {
	r := NewResolver(DefaultMatrix(), nil)
	_, err := r.EffectivePermissions(context.Background(), user("u1", "ghost"))
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestManageAllNeverTargetsAdmin(t *testing.T) {
	ctx := context.Background()
	m, err := BundledMatrix("school")
	require.NoError(t, err)
	store := NewMemoryOverrideStore()
	r := NewResolver(m, store)

	// teacher is mid-tier; give a student account manage_all and no explicit lists
	stu := user("s1", "student")
	_, err = store.Merge(ctx, stu.ID, PermissionOverride{CanManageAll: Bool(true)})
	require.NoError(t, err)

	for _, a := range []Action{ActionCreate, ActionView, ActionUpdate, ActionDelete} {
		ok, err := r.Authorize(ctx, stu, "admin", a)
		require.NoError(t, err)
		assert.False(t, ok, "manage_all reached admin on %s", a)

		ok, err = r.Authorize(ctx, stu, "teacher", a)
		require.NoError(t, err)
		assert.True(t, ok, "manage_all should reach teacher on %s", a)
	}
}

func TestAdminWithEmptyListsAndManageAllDeniedOnAdmin(t *testing.T) {
	ctx := context.Background()
	m, err := BundledMatrix("school")
	require.NoError(t, err)
	store := NewMemoryOverrideStore()
	r := NewResolver(m, store)
	admin := user("a1", "admin")

	_, err = store.Merge(ctx, admin.ID, PermissionOverride{
		CanCreate: RoleList(),
		CanView:   RoleList(),
		CanUpdate: RoleList(),
		CanDelete: RoleList(),
	})
	require.NoError(t, err)

	perms, err := r.EffectivePermissions(ctx, admin)
	require.NoError(t, err)
	assert.True(t, perms.CanManageAll)
	assert.Empty(t, perms.CanDelete)

	for _, a := range []Action{ActionCreate, ActionView, ActionUpdate, ActionDelete} {
		ok, err := r.Authorize(ctx, admin, "admin", a)
		require.NoError(t, err)
		assert.False(t, ok, "admin reached admin through manage_all on %s", a)

		ok, err = r.Authorize(ctx, admin, "student", a)
		require.NoError(t, err)
		assert.True(t, ok, "manage_all should reach student on %s", a)
	}
}

func TestMidTierNeverTargetsAdminEvenWithOverride(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOverrideStore()
	r := NewResolver(DefaultMatrix(), store)
	rev := user("r1", "reviewer")

	_, err := store.Merge(ctx, rev.ID, PermissionOverride{
		CanCreate:    RoleList("admin"),
		CanUpdate:    RoleList("admin", "reviewer"),
		CanManageAll: Bool(true),
	})
	require.NoError(t, err)

	ok, err := r.Authorize(ctx, rev, "admin", ActionCreate)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.Authorize(ctx, rev, "admin", ActionUpdate)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Authorize(ctx, rev, "reviewer", ActionUpdate)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOverrideReplacesNotUnions(t *testing.T) {
	ctx := context.Background()
	m, err := BundledMatrix("school")
	require.NoError(t, err)
	store := NewMemoryOverrideStore()
	r := NewResolver(m, store)
	admin := user("a1", "admin")

	_, err = store.Merge(ctx, admin.ID, PermissionOverride{CanCreate: RoleList("student")})
	require.NoError(t, err)

	perms, err := r.EffectivePermissions(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{"student"}, perms.CanCreate)
	assert.Equal(t, []domain.Role{"admin", "teacher", "student"}, perms.CanView, "untouched fields keep base")

	// the explicit list no longer names admin or teacher, and manage_all is still
	// on, so teacher passes through manage_all while admin is refused
	ok, err := r.Authorize(ctx, admin, "admin", ActionCreate)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.Authorize(ctx, admin, "teacher", ActionCreate)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEmptyListOverrideDisablesField(t *testing.T) {
	ctx := context.Background()
	m, err := BundledMatrix("school")
	require.NoError(t, err)
	store := NewMemoryOverrideStore()
	r := NewResolver(m, store)
	teacher := user("t1", "teacher")

	_, err = store.Merge(ctx, teacher.ID, PermissionOverride{CanCreate: RoleList()})
	require.NoError(t, err)

	ok, err := r.Authorize(ctx, teacher, "student", ActionCreate)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.Authorize(ctx, teacher, "student", ActionUpdate)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnknownActionDenied(t *testing.T) {
	r := NewResolver(DefaultMatrix(), nil)
	ok, err := r.Authorize(context.Background(), user("a1", "admin"), "reviewer", Action("promote"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMergeKeepsEarlierFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOverrideStore()
	_, err := store.Merge(ctx, "u", PermissionOverride{CanView: RoleList("reviewer")})
	require.NoError(t, err)
	got, err := store.Merge(ctx, "u", PermissionOverride{CanManageAll: Bool(false)})
	require.NoError(t, err)
	require.NotNil(t, got.CanView)
	assert.Equal(t, []domain.Role{"reviewer"}, *got.CanView)
	require.NotNil(t, got.CanManageAll)
	assert.False(t, *got.CanManageAll)

	// returned values are copies
	(*got.CanView)[0] = "admin"
	again, ok, err := store.Get(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []domain.Role{"reviewer"}, *again.CanView)

	deleted, err := store.Delete(ctx, "u")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, ok, _ = store.Get(ctx, "u")
	assert.False(t, ok)
}
