package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"reviewhub/internal/domain"
)

// IngestTarget names one entity to pull from the feed and the defaults used for
// fields the feed payload does not carry.
type IngestTarget struct {
	Identifier string
	Name       string
	Type       domain.EntityType
	Platform   domain.Platform
}

// ParseTarget reads "identifier", "type:identifier" or "type:identifier:name".
func ParseTarget(s string) (IngestTarget, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	var t IngestTarget
	switch len(parts) {
	case 1:
		t.Identifier = parts[0]
	default:
		t.Type = domain.EntityType(strings.ToLower(parts[0]))
		t.Identifier = parts[1]
		if len(parts) == 3 {
			t.Name = parts[2]
		}
		if !t.Type.Valid() {
			return IngestTarget{}, domain.NewValidationError("entity_type", fmt.Sprintf("unknown entity type %q", parts[0]))
		}
	}
	if t.Identifier == "" {
		return IngestTarget{}, domain.NewValidationError("entity_identifier", "is required")
	}
	return t, nil
}

type IngestResult struct {
	Entity  string `json:"entity"`
	Fetched int    `json:"fetched"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"` // already stored
	Invalid int    `json:"invalid"`
}

type IngestionService struct {
	feed    domain.FeedClient
	reviews *ReviewService
	now     func() time.Time
}

func NewIngestionService(f domain.FeedClient, reviews *ReviewService) *IngestionService {
	return &IngestionService{feed: f, reviews: reviews, now: time.Now}
}

// IngestEntity stores every new review the feed returns for target. Reviews that
// already exist are skipped, never overwritten. A missing or inaccessible
// entity upstream is logged and reported as an empty result.
func (s *IngestionService) IngestEntity(ctx context.Context, target IngestTarget, reviewCount int) (IngestResult, error) {
	res := IngestResult{Entity: target.Identifier}
	payloads, err := s.feed.GetReviews(ctx, target.Identifier, reviewCount)
	if err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case errors.Is(err, domain.ErrNotFound) || strings.Contains(low, "not found"):
			log.Warn().Str("entity", target.Identifier).Msg("feed has no such entity")
			return res, nil
		case strings.Contains(low, "forbidden") || strings.Contains(low, "unauthorized"):
			log.Warn().Err(err).Str("entity", target.Identifier).Msg("feed refused entity")
			return res, nil
		}
		return res, fmt.Errorf("fetch reviews for %s: %w", target.Identifier, err)
	}
	res.Fetched = len(payloads)

	now := s.now()
	for _, p := range payloads {
		in := mapReview(target, p, now)
		_, err := s.reviews.Create(ctx, in)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, domain.ErrDuplicateKey):
			res.Skipped++
		case errors.Is(err, domain.ErrValidation):
			res.Invalid++
			log.Debug().Err(err).Str("entity", target.Identifier).Str("platform_review_id", in.PlatformReviewID).Msg("feed review rejected")
		default:
			return res, fmt.Errorf("store review %s: %w", in.PlatformReviewID, err)
		}
	}
	log.Info().
		Str("entity", target.Identifier).
		Int("fetched", res.Fetched).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("invalid", res.Invalid).
		Msg("entity ingested")
	return res, nil
}
