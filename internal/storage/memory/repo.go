// Package memory is a process-local ReviewRepository for development and tests.
// It honours the same uniqueness, ordering and visibility rules as the MySQL store.
package memory

import (
	"context"
	"sync"
	"time"

	"reviewhub/internal/domain"
)

type Repo struct {
	mu     sync.RWMutex
	byID   map[string]domain.Review
	byPRID map[string]string // platform_review_id -> id
	now    func() time.Time
}

func New() *Repo {
	return &Repo{
		byID:   map[string]domain.Review{},
		byPRID: map[string]string{},
		now:    time.Now,
	}
}

// WithClock replaces the updated_at clock; tests use it for deterministic timestamps.
func (r *Repo) WithClock(now func() time.Time) *Repo {
	r.now = now
	return r
}

func (r *Repo) Create(_ context.Context, rv domain.Review) (domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPRID[rv.PlatformReviewID]; ok {
		return domain.Review{}, dup(rv.PlatformReviewID)
	}
	r.put(rv)
	return rv.Clone(), nil
}

func (r *Repo) BulkCreate(_ context.Context, rs []domain.Review) ([]domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(rs))
	for _, rv := range rs {
		if _, ok := r.byPRID[rv.PlatformReviewID]; ok {
			return nil, dup(rv.PlatformReviewID)
		}
		if _, ok := seen[rv.PlatformReviewID]; ok {
			return nil, dup(rv.PlatformReviewID)
		}
		seen[rv.PlatformReviewID] = struct{}{}
	}
	out := make([]domain.Review, 0, len(rs))
	for _, rv := range rs {
		r.put(rv)
		out = append(out, rv.Clone())
	}
	return out, nil
}

func (r *Repo) put(rv domain.Review) {
	r.byID[rv.ID] = rv.Clone()
	r.byPRID[rv.PlatformReviewID] = rv.ID
}

func (r *Repo) Update(_ context.Context, id string, u domain.ReviewUpdate) (domain.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	next := cur.Clone()
	u.Apply(&next)
	if next.PlatformReviewID != cur.PlatformReviewID {
		if _, taken := r.byPRID[next.PlatformReviewID]; taken {
			return domain.Review{}, dup(next.PlatformReviewID)
		}
		delete(r.byPRID, cur.PlatformReviewID)
	}
	next.UpdatedAt = domain.Timestamp(r.now())
	r.put(next)
	return next.Clone(), nil
}

func (r *Repo) BulkUpdate(_ context.Context, m domain.ReviewMatch, u domain.ReviewUpdate) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, rv := range r.byID {
		if m.Matches(rv) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if u.PlatformReviewID.Set && u.PlatformReviewID.Value != nil {
		prid := *u.PlatformReviewID.Value
		owner, taken := r.byPRID[prid]
		if len(ids) > 1 || (taken && owner != ids[0]) {
			return 0, dup(prid)
		}
	}
	now := domain.Timestamp(r.now())
	for _, id := range ids {
		cur := r.byID[id]
		next := cur.Clone()
		u.Apply(&next)
		next.UpdatedAt = now
		if next.PlatformReviewID != cur.PlatformReviewID {
			delete(r.byPRID, cur.PlatformReviewID)
		}
		r.put(next)
	}
	return len(ids), nil
}

func (r *Repo) Delete(_ context.Context, id string, soft bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	if soft {
		rv.IsActive = false
		rv.UpdatedAt = domain.Timestamp(r.now())
		r.byID[id] = rv
		return true, nil
	}
	delete(r.byID, id)
	delete(r.byPRID, rv.PlatformReviewID)
	return true, nil
}

func (r *Repo) BulkDelete(_ context.Context, entityIdentifier string, platform *domain.Platform, soft bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := domain.Timestamp(r.now())
	n := 0
	for id, rv := range r.byID {
		if rv.EntityIdentifier == nil || *rv.EntityIdentifier != entityIdentifier {
			continue
		}
		if platform != nil && rv.Platform != *platform {
			continue
		}
		if soft {
			if !rv.IsActive {
				continue
			}
			rv.IsActive = false
			rv.UpdatedAt = now
			r.byID[id] = rv
		} else {
			delete(r.byID, id)
			delete(r.byPRID, rv.PlatformReviewID)
		}
		n++
	}
	return n, nil
}

func (r *Repo) GetByID(_ context.Context, id string) (domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rv, ok := r.byID[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv.Clone(), nil
}

// Query returns matching reviews newest first. limit <= 0 means no limit.
func (r *Repo) Query(_ context.Context, f domain.ReviewFilter, limit, offset int) ([]domain.Review, error) {
	rs := r.matching(f)
	domain.SortNewestFirst(rs)
	if offset > 0 {
		if offset >= len(rs) {
			return []domain.Review{}, nil
		}
		rs = rs[offset:]
	}
	if limit > 0 && limit < len(rs) {
		rs = rs[:limit]
	}
	return rs, nil
}

func (r *Repo) Count(_ context.Context, f domain.ReviewFilter) (int, error) {
	return len(r.matching(f)), nil
}

func (r *Repo) AverageRating(_ context.Context, entityIdentifier string) (*float64, error) {
	var ratings []float64
	for _, rv := range r.matching(domain.EntityFilter(entityIdentifier, nil)) {
		if rv.Rating != nil {
			ratings = append(ratings, *rv.Rating)
		}
	}
	return domain.Mean(ratings), nil
}

func (r *Repo) PlatformDistribution(_ context.Context, entityIdentifier string) (map[domain.Platform]int, error) {
	out := map[domain.Platform]int{}
	for _, rv := range r.matching(domain.EntityFilter(entityIdentifier, nil)) {
		out[rv.Platform]++
	}
	return out, nil
}

func (r *Repo) Stats(_ context.Context, f domain.ReviewFilter) (domain.Stats, error) {
	acc := domain.NewStatsAccumulator()
	for _, rv := range r.matching(f) {
		acc.Add(rv)
	}
	return acc.Result(), nil
}

func (r *Repo) matching(f domain.ReviewFilter) []domain.Review {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Review, 0)
	for _, rv := range r.byID {
		if f.Matches(rv) {
			out = append(out, rv.Clone())
		}
	}
	return out
}

func dup(prid string) error {
	return &domain.DuplicateKeyError{Key: "platform_review_id", Value: prid}
}
