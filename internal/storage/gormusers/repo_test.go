package gormusers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewhub/internal/domain"
)

func setupRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := Open("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return New(db)
}

func newUser(id, name string, role domain.Role) domain.User {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.User{
		ID:           id,
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)

	u, err := r.CreateUser(ctx, newUser("u1", "alice", "admin"))
	require.NoError(t, err)
	assert.Equal(t, domain.Role("admin"), u.Role)
	assert.True(t, u.IsActive)

	got, err := r.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = r.GetUserByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	inactive := newUser("u2", "bob", "reviewer")
	inactive.IsActive = false
	got, err = r.CreateUser(ctx, inactive)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestCreateDuplicateNamesColumn(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)
	_, err := r.CreateUser(ctx, newUser("u1", "alice", "admin"))
	require.NoError(t, err)

	_, err = r.CreateUser(ctx, newUser("u2", "alice", "reviewer"))
	var dk *domain.DuplicateKeyError
	require.True(t, errors.As(err, &dk), "got %v", err)
	assert.Equal(t, "username", dk.Key)

	clash := newUser("u3", "carol", "reviewer")
	clash.Email = "alice@example.com"
	_, err = r.CreateUser(ctx, clash)
	require.True(t, errors.As(err, &dk), "got %v", err)
	assert.Equal(t, "email", dk.Key)
}

func TestUpdateAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)
	_, err := r.CreateUser(ctx, newUser("u1", "alice", "reviewer"))
	require.NoError(t, err)

	role := domain.Role("admin")
	name := "Alice A."
	u, err := r.UpdateUser(ctx, "u1", domain.UserPatch{Role: &role, FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, role, u.Role)
	require.NotNil(t, u.FullName)
	assert.Equal(t, name, *u.FullName)
	assert.Equal(t, "alice", u.Username)

	now := time.Now().UTC()
	off := false
	u, err = r.UpdateUser(ctx, "u1", domain.UserPatch{IsActive: &off, DeletedAt: &now})
	require.NoError(t, err)
	assert.False(t, u.IsActive)
	assert.NotNil(t, u.DeletedAt)

	listed, err := r.ListUsersByRoles(ctx, []domain.Role{"admin"})
	require.NoError(t, err)
	assert.Empty(t, listed, "deleted users are not listed")

	_, err = r.UpdateUser(ctx, "missing", domain.UserPatch{Role: &role})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListUsersByRoles(t *testing.T) {
	ctx := context.Background()
	r := setupRepo(t)
	for _, u := range []domain.User{
		newUser("u1", "alice", "admin"),
		newUser("u2", "bob", "reviewer"),
		newUser("u3", "carol", "reviewer"),
	} {
		_, err := r.CreateUser(ctx, u)
		require.NoError(t, err)
	}

	got, err := r.ListUsersByRoles(ctx, []domain.Role{"reviewer"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u2", got[0].ID)
	assert.Equal(t, "u3", got[1].ID)

	got, err = r.ListUsersByRoles(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.Error(t, err)
}
