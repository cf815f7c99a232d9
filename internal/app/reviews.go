package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reviewhub/internal/domain"
)

const (
	DefaultPageSize  = 20
	MaxPageSize      = 100
	DefaultListLimit = 100
	MaxListLimit     = 1000
	MaxBulkItems     = 1000
)

// BulkItemError describes one rejected item of a bulk create.
type BulkItemError struct {
	Index            int    `json:"index"`
	PlatformReviewID string `json:"platform_review_id,omitempty"`
	Error            string `json:"error"`
}

type BulkResult struct {
	SuccessCount int             `json:"success_count"`
	FailedCount  int             `json:"failed_count"`
	Errors       []BulkItemError `json:"errors"`
	CreatedIDs   []string        `json:"created_ids"`
}

type ReviewService struct {
	repo  domain.ReviewRepository
	stats *StatsService
	now   func() time.Time
	newID func() string
	// Written, when set, is told how many rows each write operation touched.
	Written func(op string, n int)
}

func NewReviewService(r domain.ReviewRepository, stats *StatsService) *ReviewService {
	return &ReviewService{
		repo:  r,
		stats: stats,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

func (s *ReviewService) Create(ctx context.Context, in domain.ReviewInput) (domain.Review, error) {
	if err := domain.ValidateReviewInput(in); err != nil {
		return domain.Review{}, err
	}
	rv, err := s.repo.Create(ctx, domain.NewReview(s.newID(), in, s.now()))
	if err != nil {
		return domain.Review{}, err
	}
	s.written(ctx, "create", 1)
	log.Debug().Str("id", rv.ID).Str("platform", string(rv.Platform)).Msg("review created")
	return rv, nil
}

// BulkCreate validates every item, reports the invalid ones and inserts the rest
// in one transaction. A duplicate against stored data fails the whole insert.
func (s *ReviewService) BulkCreate(ctx context.Context, ins []domain.ReviewInput) (BulkResult, error) {
	if len(ins) == 0 {
		return BulkResult{}, domain.NewValidationError("reviews", "at least one review is required")
	}
	if len(ins) > MaxBulkItems {
		return BulkResult{}, domain.NewValidationError("reviews", fmt.Sprintf("at most %d reviews per request", MaxBulkItems))
	}
	res := BulkResult{Errors: []BulkItemError{}, CreatedIDs: []string{}}
	now := s.now()
	seen := make(map[string]int, len(ins))
	batch := make([]domain.Review, 0, len(ins))
	for i, in := range ins {
		if err := domain.ValidateReviewInput(in); err != nil {
			res.Errors = append(res.Errors, BulkItemError{Index: i, PlatformReviewID: in.PlatformReviewID, Error: err.Error()})
			continue
		}
		if first, dup := seen[in.PlatformReviewID]; dup {
			res.Errors = append(res.Errors, BulkItemError{
				Index:            i,
				PlatformReviewID: in.PlatformReviewID,
				Error:            fmt.Sprintf("duplicate platform_review_id in batch (item %d)", first),
			})
			continue
		}
		seen[in.PlatformReviewID] = i
		batch = append(batch, domain.NewReview(s.newID(), in, now))
	}
	res.FailedCount = len(res.Errors)
	if len(batch) == 0 {
		return res, nil
	}
	created, err := s.repo.BulkCreate(ctx, batch)
	if err != nil {
		return BulkResult{}, err
	}
	for _, rv := range created {
		res.CreatedIDs = append(res.CreatedIDs, rv.ID)
	}
	res.SuccessCount = len(created)
	s.written(ctx, "bulk_create", len(created))
	log.Info().Int("created", res.SuccessCount).Int("failed", res.FailedCount).Msg("bulk create")
	return res, nil
}

func (s *ReviewService) Get(ctx context.Context, id string) (domain.Review, error) {
	return s.repo.GetByID(ctx, id)
}

// Query returns one page of filtered reviews, newest first.
func (s *ReviewService) Query(ctx context.Context, f domain.ReviewFilter, page, pageSize int) (domain.Page, error) {
	ve := &domain.ValidationError{}
	if page < 1 {
		ve.Add("page", "must be >= 1")
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		ve.Add("page_size", fmt.Sprintf("must be between 1 and %d", MaxPageSize))
	}
	if err := ve.OrNil(); err != nil {
		return domain.Page{}, err
	}
	if err := domain.ValidateFilter(f); err != nil {
		return domain.Page{}, err
	}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return domain.Page{}, err
	}
	// pages past the end are empty; checking here also keeps the offset
	// multiplication from overflowing on huge page numbers
	if page-1 >= (total+pageSize-1)/pageSize {
		return domain.NewPage(nil, total, page, pageSize), nil
	}
	items, err := s.repo.Query(ctx, f, pageSize, domain.Offset(page, pageSize))
	if err != nil {
		return domain.Page{}, err
	}
	return domain.NewPage(items, total, page, pageSize), nil
}

// List is the offset/limit form of Query.
func (s *ReviewService) List(ctx context.Context, f domain.ReviewFilter, limit, offset int) ([]domain.Review, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, domain.NewValidationError("offset", "must be >= 0")
	}
	if err := domain.ValidateFilter(f); err != nil {
		return nil, err
	}
	return s.repo.Query(ctx, f, limit, offset)
}

func (s *ReviewService) QueryByEntity(ctx context.Context, entityIdentifier string, platform *domain.Platform, limit int) ([]domain.Review, error) {
	if entityIdentifier == "" {
		return nil, domain.NewValidationError("entity_identifier", "is required")
	}
	if platform != nil && !platform.Valid() {
		return nil, domain.NewValidationError("platform", "unknown platform")
	}
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	return s.repo.Query(ctx, domain.EntityFilter(entityIdentifier, platform), limit, 0)
}

func checkLimit(limit int) error {
	if limit < 1 || limit > MaxListLimit {
		return domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxListLimit))
	}
	return nil
}

func (s *ReviewService) Count(ctx context.Context, f domain.ReviewFilter) (int, error) {
	if err := domain.ValidateFilter(f); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, f)
}

func (s *ReviewService) Update(ctx context.Context, id string, u domain.ReviewUpdate) (domain.Review, error) {
	if u.Empty() {
		return domain.Review{}, domain.NewValidationError("update", "at least one field must be set")
	}
	if err := domain.ValidateReviewUpdate(u); err != nil {
		return domain.Review{}, err
	}
	rv, err := s.repo.Update(ctx, id, u)
	if err != nil {
		return domain.Review{}, err
	}
	s.written(ctx, "update", 1)
	log.Debug().Str("id", id).Int("fields", len(u.Assignments())).Msg("review updated")
	return rv, nil
}

// BulkUpdate refuses an empty match; updating every review needs an explicit condition.
func (s *ReviewService) BulkUpdate(ctx context.Context, m domain.ReviewMatch, u domain.ReviewUpdate) (int, error) {
	if len(m.Conditions()) == 0 {
		return 0, domain.NewValidationError("filter", "at least one condition is required")
	}
	if u.Empty() {
		return 0, domain.NewValidationError("update", "at least one field must be set")
	}
	if err := domain.ValidateReviewUpdate(u); err != nil {
		return 0, err
	}
	n, err := s.repo.BulkUpdate(ctx, m, u)
	if err != nil {
		return 0, err
	}
	s.written(ctx, "bulk_update", n)
	log.Info().Int("affected", n).Msg("bulk update")
	return n, nil
}

// Delete returns domain.ErrNotFound when id does not exist.
func (s *ReviewService) Delete(ctx context.Context, id string, soft bool) error {
	ok, err := s.repo.Delete(ctx, id, soft)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.written(ctx, deleteOp(soft, false), 1)
	log.Info().Str("id", id).Bool("soft", soft).Msg("review deleted")
	return nil
}

func (s *ReviewService) BulkDelete(ctx context.Context, entityIdentifier string, platform *domain.Platform, soft bool) (int, error) {
	if entityIdentifier == "" {
		return 0, domain.NewValidationError("entity_identifier", "is required")
	}
	if platform != nil && !platform.Valid() {
		return 0, domain.NewValidationError("platform", "unknown platform")
	}
	n, err := s.repo.BulkDelete(ctx, entityIdentifier, platform, soft)
	if err != nil {
		return 0, err
	}
	s.written(ctx, deleteOp(soft, true), n)
	log.Info().Str("entity", entityIdentifier).Int("affected", n).Bool("soft", soft).Msg("bulk delete")
	return n, nil
}

func deleteOp(soft, bulk bool) string {
	op := "hard_delete"
	if soft {
		op = "soft_delete"
	}
	if bulk {
		op = "bulk_" + op
	}
	return op
}

func (s *ReviewService) written(ctx context.Context, op string, n int) {
	if n == 0 {
		return
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
	if s.Written != nil {
		s.Written(op, n)
	}
}
