package app_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"reviewhub/internal/domain"
)

// ---- fakes ----

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	gets  int
	hits  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type fakeUsers struct {
	mu sync.Mutex
	m  map[string]domain.User
}

func newFakeUsers(us ...domain.User) *fakeUsers {
	f := &fakeUsers{m: map[string]domain.User{}}
	for _, u := range us {
		f.m[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.m[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[u.ID] = u
	return u, nil
}

func (f *fakeUsers) UpdateUser(ctx context.Context, id string, p domain.UserPatch) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.m[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.FullName != nil {
		u.FullName = p.FullName
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.DeletedAt != nil {
		u.DeletedAt = p.DeletedAt
	}
	f.m[id] = u
	return u, nil
}

func (f *fakeUsers) ListUsersByRoles(ctx context.Context, roles []domain.Role) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, u := range f.m {
		for _, r := range roles {
			if u.Role == r && u.DeletedAt == nil {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type fakeAuth struct{ users *fakeUsers }

func (a fakeAuth) CurrentUser(ctx context.Context, token string) (domain.User, error) {
	return a.users.GetUserByID(ctx, token)
}

func (a fakeAuth) Register(ctx context.Context, in domain.NewUser, password string) (domain.User, error) {
	return a.users.CreateUser(ctx, domain.User{
		ID: "new-" + in.Username, Username: in.Username, Email: in.Email, Role: in.Role,
		IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
}

type fakeFeed struct {
	payloads []map[string]any
	err      error
}

func (f fakeFeed) GetReviews(ctx context.Context, entity string, count int) ([]map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	if count < len(f.payloads) {
		return f.payloads[:count], nil
	}
	return f.payloads, nil
}

func ptr[T any](v T) *T { return &v }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func input(prid, entity string, rating *float64) domain.ReviewInput {
	return domain.ReviewInput{
		EntityType:       domain.EntityRestaurant,
		EntityName:       "Cafe",
		EntityIdentifier: ptr(entity),
		Platform:         domain.PlatformGoogle,
		PlatformReviewID: prid,
		Rating:           rating,
		ReviewText:       "good food",
		ReviewDate:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}
