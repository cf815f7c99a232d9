package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewhub/internal/app"
	"reviewhub/internal/authz"
	"reviewhub/internal/domain"
)

func person(id string, role domain.Role) domain.User {
	return domain.User{ID: id, Username: "user-" + id, Email: id + "@example.com", Role: role, IsActive: true}
}

func userService(t *testing.T, us ...domain.User) (*app.UserService, *fakeUsers) {
	t.Helper()
	m, err := authz.BundledMatrix("school")
	require.NoError(t, err)
	repo := newFakeUsers(us...)
	gate := authz.NewGate(authz.NewResolver(m, authz.NewMemoryOverrideStore()))
	return app.NewUserService(repo, fakeAuth{users: repo}, gate), repo
}

func TestUserService_SelfUpdateWithoutUpdatePermission(t *testing.T) {
	ctx := context.Background()
	s1 := person("s1", "student")
	svc, _ := userService(t, s1)

	name := "Sam"
	u, err := svc.Update(ctx, s1, "s1", domain.UserPatch{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Sam", *u.FullName)

	// changing your own role is not covered by the self exception
	teacher := domain.Role("teacher")
	_, err = svc.Update(ctx, s1, "s1", domain.UserPatch{Role: &teacher})
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)
}

func TestUserService_TeacherManagesStudents(t *testing.T) {
	ctx := context.Background()
	t1, s1, a1 := person("t1", "teacher"), person("s1", "student"), person("a1", "admin")
	svc, repo := userService(t, t1, s1, a1)

	created, err := svc.Create(ctx, t1, domain.NewUser{Username: "newkid", Email: "kid@example.com", Role: "student"}, "longenough")
	require.NoError(t, err)
	assert.Equal(t, domain.Role("student"), created.Role)

	_, err = svc.Create(ctx, t1, domain.NewUser{Username: "boss", Email: "boss@example.com", Role: "admin"}, "longenough")
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)

	// teachers have no delete permission on students
	assert.ErrorIs(t, svc.Delete(ctx, t1, "s1"), authz.ErrPermissionDenied)

	require.NoError(t, svc.Delete(ctx, a1, "s1"))
	stored := repo.m["s1"]
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.DeletedAt)

	_, err = svc.Get(ctx, a1, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserService_ListOutcomes(t *testing.T) {
	ctx := context.Background()
	t1, s1, s2 := person("t1", "teacher"), person("s1", "student"), person("s2", "student")
	svc, _ := userService(t, t1, s1, s2)

	got, err := svc.List(ctx, t1, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	admin := domain.Role("admin")
	_, err = svc.List(ctx, t1, &admin)
	require.ErrorIs(t, err, authz.ErrPermissionDenied)

	_, err = svc.List(ctx, s1, nil)
	require.ErrorIs(t, err, authz.ErrPermissionDenied)
}

func TestUserService_Overrides(t *testing.T) {
	ctx := context.Background()
	a1, t1 := person("a1", "admin"), person("t1", "teacher")
	svc, _ := userService(t, a1, t1)

	perms, err := svc.AssignPermissions(ctx, a1, "t1", authz.PermissionOverride{CanDelete: authz.RoleList("student")})
	require.NoError(t, err)
	assert.Equal(t, []domain.Role{"student"}, perms.CanDelete)

	got, err := svc.Permissions(ctx, a1, "t1")
	require.NoError(t, err)
	assert.Equal(t, perms, got)

	require.NoError(t, svc.ClearPermissions(ctx, a1, "t1"))
	assert.ErrorIs(t, svc.ClearPermissions(ctx, a1, "t1"), domain.ErrNotFound)

	got, err = svc.Permissions(ctx, a1, "t1")
	require.NoError(t, err)
	assert.Empty(t, got.CanDelete)
}
