package jwtauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"reviewhub/internal/domain"
	"reviewhub/internal/storage/gormusers"
)

func newService(t *testing.T) (*Service, *gormusers.Repo) {
	t.Helper()
	db, err := gormusers.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, gormusers.Migrate(db))
	repo := gormusers.New(db)
	s, err := New(repo, "test-secret")
	require.NoError(t, err)
	return s, repo
}

func TestNewRejectsEmptySecret(t *testing.T) {
	db, err := gormusers.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	s, err := New(gormusers.New(db), "")
	assert.ErrorIs(t, err, ErrNoSecret)
	assert.Nil(t, s)
}

func TestRegisterAndResolve(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	_, err := s.Register(ctx, domain.NewUser{Username: "ann", Email: "ann@example.com", Role: "reviewer"}, "short")
	assert.ErrorIs(t, err, domain.ErrValidation)

	u, err := s.Register(ctx, domain.NewUser{Username: "ann", Email: "ann@example.com", Role: "reviewer"}, "correct horse")
	require.NoError(t, err)
	assert.True(t, u.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct horse")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("wrong password")))

	tok, err := s.Issue(u.ID, time.Hour)
	require.NoError(t, err)
	got, err := s.CurrentUser(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, domain.Role("reviewer"), got.Role)
}

func TestCurrentUser_Rejections(t *testing.T) {
	ctx := context.Background()
	s, repo := newService(t)
	u, err := s.Register(ctx, domain.NewUser{Username: "bob", Email: "bob@example.com", Role: "reviewer"}, "password1")
	require.NoError(t, err)

	_, err = s.CurrentUser(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = s.CurrentUser(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	expired, err := s.Issue(u.ID, -time.Minute)
	require.NoError(t, err)
	_, err = s.CurrentUser(ctx, expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	other, err := New(repo, "another-secret")
	require.NoError(t, err)
	forged, err := other.Issue(u.ID, time.Hour)
	require.NoError(t, err)
	_, err = s.CurrentUser(ctx, forged)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	unknown, err := s.Issue("no-such-user", time.Hour)
	require.NoError(t, err)
	_, err = s.CurrentUser(ctx, unknown)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: u.ID})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.CurrentUser(ctx, unsigned)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	off := false
	_, err = repo.UpdateUser(ctx, u.ID, domain.UserPatch{IsActive: &off})
	require.NoError(t, err)
	tok, err := s.Issue(u.ID, time.Hour)
	require.NoError(t, err)
	_, err = s.CurrentUser(ctx, tok)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
