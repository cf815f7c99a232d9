package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"reviewhub/internal/domain"
)

const MinPasswordLength = 8

var (
	ErrInvalidToken = fmt.Errorf("invalid token: %w", domain.ErrUnauthenticated)
	ErrExpiredToken = fmt.Errorf("token expired: %w", domain.ErrUnauthenticated)
	// ErrNoSecret is returned by New; an empty HMAC key lets anyone mint tokens.
	ErrNoSecret = errors.New("jwt secret is empty")
)

// Service verifies HS256 bearer tokens whose subject is a user id and
// registers accounts with bcrypt-hashed passwords. Tokens are minted elsewhere;
// Issue exists for tooling and tests.
type Service struct {
	users  domain.UserRepository
	secret []byte
	now    func() time.Time
}

func New(users domain.UserRepository, secret string) (*Service, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Service{users: users, secret: []byte(secret), now: time.Now}, nil
}

var _ domain.AuthService = (*Service)(nil)

func (s *Service) CurrentUser(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrUnauthenticated
	}
	claims := &jwt.RegisteredClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.User{}, ErrExpiredToken
		}
		return domain.User{}, ErrInvalidToken
	}
	if !t.Valid || claims.Subject == "" {
		return domain.User{}, ErrInvalidToken
	}

	u, err := s.users.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, ErrInvalidToken
	}
	if err != nil {
		return domain.User{}, err
	}
	if !u.IsActive || u.DeletedAt != nil {
		log.Warn().Str("user", u.ID).Msg("token for inactive user")
		return domain.User{}, ErrInvalidToken
	}
	return u, nil
}

func (s *Service) Register(ctx context.Context, in domain.NewUser, password string) (domain.User, error) {
	if len(password) < MinPasswordLength {
		return domain.User{}, domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		// bcrypt rejects passwords over 72 bytes
		return domain.User{}, domain.NewValidationError("password", err.Error())
	}
	now := domain.Timestamp(s.now())
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return s.users.CreateUser(ctx, domain.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: string(hash),
		Role:         in.Role,
		IsActive:     active,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// Issue signs a token for userID valid for ttl.
func (s *Service) Issue(userID string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
