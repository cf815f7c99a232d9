package domain

import (
	"sort"
	"strings"
	"time"
)

// ReviewFilter fields are independent and combined with AND. Zero values mean
// "no constraint" except IsActive, which defaults to true when nil.
type ReviewFilter struct {
	EntityType       *EntityType `json:"entity_type,omitempty"`
	EntityName       *string     `json:"entity_name,omitempty"` // case-insensitive substring
	EntityIdentifier *string     `json:"entity_identifier,omitempty"`
	Platform         *Platform   `json:"platform,omitempty"`
	MinRating        *float64    `json:"min_rating,omitempty"`
	MaxRating        *float64    `json:"max_rating,omitempty"`
	VerifiedOnly     bool        `json:"verified_only,omitempty"`
	WithResponseOnly bool        `json:"with_response_only,omitempty"`
	IsActive         *bool       `json:"is_active,omitempty"`
	StartDate        *time.Time  `json:"start_date,omitempty"`
	EndDate          *time.Time  `json:"end_date,omitempty"`
	SearchText       *string     `json:"search_text,omitempty"` // case-insensitive substring of review_text
}

// Active is the is_active value the filter selects.
func (f ReviewFilter) Active() bool {
	if f.IsActive == nil {
		return true
	}
	return *f.IsActive
}

func (f ReviewFilter) Matches(r Review) bool {
	if r.IsActive != f.Active() {
		return false
	}
	if f.EntityType != nil && r.EntityType != *f.EntityType {
		return false
	}
	if s := nonEmpty(f.EntityName); s != "" && !containsFold(r.EntityName, s) {
		return false
	}
	if s := nonEmpty(f.EntityIdentifier); s != "" && (r.EntityIdentifier == nil || *r.EntityIdentifier != s) {
		return false
	}
	if f.Platform != nil && r.Platform != *f.Platform {
		return false
	}
	if f.MinRating != nil && (r.Rating == nil || *r.Rating < *f.MinRating) {
		return false
	}
	if f.MaxRating != nil && (r.Rating == nil || *r.Rating > *f.MaxRating) {
		return false
	}
	if f.VerifiedOnly && !r.Verified {
		return false
	}
	if f.WithResponseOnly && !r.HasResponse() {
		return false
	}
	if f.StartDate != nil && r.ReviewDate.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && r.ReviewDate.After(*f.EndDate) {
		return false
	}
	if s := nonEmpty(f.SearchText); s != "" && !containsFold(r.ReviewText, s) {
		return false
	}
	return true
}

// EntityFilter selects the active reviews of one entity, optionally on one platform.
func EntityFilter(entityIdentifier string, platform *Platform) ReviewFilter {
	return ReviewFilter{EntityIdentifier: &entityIdentifier, Platform: platform}
}

func nonEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// SortNewestFirst orders by review_date descending, then id descending.
func SortNewestFirst(rs []Review) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].ReviewDate.Equal(rs[j].ReviewDate) {
			return rs[i].ReviewDate.After(rs[j].ReviewDate)
		}
		return rs[i].ID > rs[j].ID
	})
}

// Page is one window of a filtered, ordered result set.
type Page struct {
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
	Reviews    []Review `json:"reviews"`
}

// NewPage computes total_pages = ceil(total / pageSize).
func NewPage(items []Review, total, page, pageSize int) Page {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	if items == nil {
		items = []Review{}
	}
	return Page{Total: total, Page: page, PageSize: pageSize, TotalPages: pages, Reviews: items}
}

// Offset is the row offset of a 1-indexed page.
func Offset(page, pageSize int) int { return (page - 1) * pageSize }
