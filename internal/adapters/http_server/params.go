package httpserver

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reviewhub/internal/domain"
)

// queryParams collects parse failures so one response can report all of them.
type queryParams struct {
	q  url.Values
	ve *domain.ValidationError
}

func newQueryParams(q url.Values) *queryParams {
	return &queryParams{q: q, ve: &domain.ValidationError{}}
}

func (p *queryParams) str(name string) *string {
	v := strings.TrimSpace(p.q.Get(name))
	if v == "" {
		return nil
	}
	return &v
}

func (p *queryParams) integer(name string, def int) int {
	s := p.str(name)
	if s == nil {
		return def
	}
	n, err := strconv.Atoi(*s)
	if err != nil {
		p.ve.Add(name, "must be an integer")
		return def
	}
	return n
}

func (p *queryParams) float(name string) *float64 {
	s := p.str(name)
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		p.ve.Add(name, "must be a number")
		return nil
	}
	return &f
}

func (p *queryParams) boolean(name string) *bool {
	s := p.str(name)
	if s == nil {
		return nil
	}
	b, err := strconv.ParseBool(*s)
	if err != nil {
		p.ve.Add(name, "must be true or false")
		return nil
	}
	return &b
}

// date accepts RFC 3339 timestamps or plain dates. A plain end date covers the
// whole day.
func (p *queryParams) date(name string, endOfDay bool) *time.Time {
	s := p.str(name)
	if s == nil {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, *s); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.Parse("2006-01-02", *s); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Microsecond)
		}
		return &t
	}
	p.ve.Add(name, "must be an RFC 3339 timestamp or YYYY-MM-DD")
	return nil
}

func (p *queryParams) platform(name string) *domain.Platform {
	s := p.str(name)
	if s == nil {
		return nil
	}
	v := domain.Platform(strings.ToLower(*s))
	if !v.Valid() {
		p.ve.Add(name, fmt.Sprintf("unknown platform %q", *s))
		return nil
	}
	return &v
}

func (p *queryParams) entityType(name string) *domain.EntityType {
	s := p.str(name)
	if s == nil {
		return nil
	}
	v := domain.EntityType(strings.ToLower(*s))
	if !v.Valid() {
		p.ve.Add(name, fmt.Sprintf("unknown entity type %q", *s))
		return nil
	}
	return &v
}

func (p *queryParams) err() error { return p.ve.OrNil() }

func (p *queryParams) filter() domain.ReviewFilter {
	f := domain.ReviewFilter{
		EntityType:       p.entityType("entity_type"),
		EntityName:       p.str("entity_name"),
		EntityIdentifier: p.str("entity_identifier"),
		Platform:         p.platform("platform"),
		MinRating:        p.float("min_rating"),
		MaxRating:        p.float("max_rating"),
		IsActive:         p.boolean("is_active"),
		StartDate:        p.date("start_date", false),
		EndDate:          p.date("end_date", true),
		SearchText:       p.str("search_text"),
	}
	if b := p.boolean("verified_only"); b != nil {
		f.VerifiedOnly = *b
	}
	if b := p.boolean("with_response_only"); b != nil {
		f.WithResponseOnly = *b
	}
	return f
}
