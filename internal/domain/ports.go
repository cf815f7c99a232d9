package domain

import "context"

type ReviewRepository interface {
	// Write paths
	Create(ctx context.Context, r Review) (Review, error)
	BulkCreate(ctx context.Context, rs []Review) ([]Review, error) // one transaction; all or nothing
	Update(ctx context.Context, id string, u ReviewUpdate) (Review, error)
	BulkUpdate(ctx context.Context, m ReviewMatch, u ReviewUpdate) (int, error)
	Delete(ctx context.Context, id string, soft bool) (bool, error)
	BulkDelete(ctx context.Context, entityIdentifier string, platform *Platform, soft bool) (int, error)

	// Read paths; results are ordered newest review_date first
	GetByID(ctx context.Context, id string) (Review, error)
	Query(ctx context.Context, f ReviewFilter, limit, offset int) ([]Review, error)
	Count(ctx context.Context, f ReviewFilter) (int, error)

	// Aggregations over active reviews
	AverageRating(ctx context.Context, entityIdentifier string) (*float64, error)
	PlatformDistribution(ctx context.Context, entityIdentifier string) (map[Platform]int, error)
	Stats(ctx context.Context, f ReviewFilter) (Stats, error)
}

type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, id string, p UserPatch) (User, error)
	ListUsersByRoles(ctx context.Context, roles []Role) ([]User, error)
}

// AuthService resolves bearer credentials and registers accounts. Credential
// issuance lives outside this service.
type AuthService interface {
	CurrentUser(ctx context.Context, token string) (User, error)
	Register(ctx context.Context, u NewUser, password string) (User, error)
}

// FeedClient pulls raw review payloads for one entity from the upstream collector.
type FeedClient interface {
	GetReviews(ctx context.Context, entityIdentifier string, count int) ([]map[string]any, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
