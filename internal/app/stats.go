package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"reviewhub/internal/domain"
)

// generationKey holds a token that is part of every aggregate cache key. Writes
// replace it, which orphans every cached aggregate at once.
const generationKey = "stats:gen"

type StatsService struct {
	repo     domain.ReviewRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewStatsService(r domain.ReviewRepository, c domain.Cache, ttl time.Duration) *StatsService {
	return &StatsService{repo: r, cache: c, cacheTTL: ttl}
}

type cachedAverage struct {
	Value *float64 `json:"value"`
}

func (s *StatsService) AverageRating(ctx context.Context, entityIdentifier string) (*float64, error) {
	if entityIdentifier == "" {
		return nil, domain.NewValidationError("entity_identifier", "is required")
	}
	key := s.key(ctx, "avg", entityIdentifier)
	var hit cachedAverage
	if s.get(ctx, key, &hit) {
		return hit.Value, nil
	}
	avg, err := s.repo.AverageRating(ctx, entityIdentifier)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, cachedAverage{Value: avg})
	return avg, nil
}

func (s *StatsService) PlatformDistribution(ctx context.Context, entityIdentifier string) (map[domain.Platform]int, error) {
	if entityIdentifier == "" {
		return nil, domain.NewValidationError("entity_identifier", "is required")
	}
	key := s.key(ctx, "platforms", entityIdentifier)
	var hit map[domain.Platform]int
	if s.get(ctx, key, &hit) && hit != nil {
		return hit, nil
	}
	dist, err := s.repo.PlatformDistribution(ctx, entityIdentifier)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, dist)
	return dist, nil
}

func (s *StatsService) Stats(ctx context.Context, f domain.ReviewFilter) (domain.Stats, error) {
	if err := domain.ValidateFilter(f); err != nil {
		return domain.Stats{}, err
	}
	b, _ := json.Marshal(f)
	sum := sha1.Sum(b)
	key := s.key(ctx, "stats", hex.EncodeToString(sum[:]))

	var hit domain.Stats
	if s.get(ctx, key, &hit) {
		return normalizeStats(hit), nil
	}
	st, err := s.repo.Stats(ctx, f)
	if err != nil {
		return domain.Stats{}, err
	}
	s.set(ctx, key, st)
	return st, nil
}

// EntitySummary gathers the per-entity aggregates concurrently.
func (s *StatsService) EntitySummary(ctx context.Context, entityIdentifier string) (domain.EntitySummary, error) {
	if entityIdentifier == "" {
		return domain.EntitySummary{}, domain.NewValidationError("entity_identifier", "is required")
	}
	out := domain.EntitySummary{EntityIdentifier: entityIdentifier}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		avg, err := s.AverageRating(gctx, entityIdentifier)
		out.AverageRating = avg
		return err
	})
	g.Go(func() error {
		dist, err := s.PlatformDistribution(gctx, entityIdentifier)
		out.PlatformDistribution = dist
		return err
	})
	g.Go(func() error {
		n, err := s.repo.Count(gctx, domain.EntityFilter(entityIdentifier, nil))
		out.ActiveReviews = n
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.EntitySummary{}, err
	}
	return out, nil
}

// Invalidate drops every cached aggregate.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, generationKey, uuid.NewString(), 0); err != nil {
		log.Warn().Err(err).Msg("stats cache invalidation failed")
	}
}

func (s *StatsService) key(ctx context.Context, kind, id string) string {
	gen := "0"
	if s.cache != nil {
		var g string
		if ok, err := s.cache.Get(ctx, generationKey, &g); err == nil && ok && g != "" {
			gen = g
		}
	}
	return fmt.Sprintf("stats:%s:%s:%s", gen, kind, id)
}

func (s *StatsService) get(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("stats cache read failed")
		return false
	}
	return ok
}

func (s *StatsService) set(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
}

// normalizeStats keeps distributions non-nil for entries cached without them.
func normalizeStats(st domain.Stats) domain.Stats {
	empty := domain.EmptyStats()
	if st.RatingDistribution == nil {
		st.RatingDistribution = empty.RatingDistribution
	}
	if st.PlatformDistribution == nil {
		st.PlatformDistribution = empty.PlatformDistribution
	}
	if st.EntityTypeDistribution == nil {
		st.EntityTypeDistribution = empty.EntityTypeDistribution
	}
	if st.SentimentDistribution == nil {
		st.SentimentDistribution = empty.SentimentDistribution
	}
	return st
}
