package app

import (
	"testing"
	"time"

	"reviewhub/internal/domain"
)

func TestMapReview_AliasesAndFallbacks(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	target := IngestTarget{Identifier: "c-1", Type: domain.EntityCompany, Platform: domain.PlatformGlassdoor}
	in := mapReview(target, map[string]any{
		"user":          map[string]any{"first_name": "Ada", "last_name": "L"},
		"pros":          "pay",
		"cons":          "hours",
		"scores":        map[string]any{"overall": "4"},
		"language_code": "en",
		"employer_tag":  "x",
	}, now)

	if in.ReviewerName == nil || *in.ReviewerName != "Ada L" {
		t.Fatalf("reviewer = %v", in.ReviewerName)
	}
	if in.ReviewText != "Pros: pay\nCons: hours" {
		t.Fatalf("text = %q", in.ReviewText)
	}
	if in.Rating == nil || *in.Rating != 4 {
		t.Fatalf("rating = %v", in.Rating)
	}
	if !in.ReviewDate.Equal(now) {
		t.Fatalf("review date = %v", in.ReviewDate)
	}
	if in.EntityName != "c-1" {
		t.Fatalf("entity name = %q", in.EntityName)
	}
	if in.ExtraData["lang"] != "en" || in.ExtraData["employer_tag"] != "x" {
		t.Fatalf("extra = %v", in.ExtraData)
	}
	if err := domain.ValidateReviewInput(in); err != nil {
		t.Fatalf("mapped input invalid: %v", err)
	}
}

func TestMapReview_SynthesizedIDIsStable(t *testing.T) {
	now := time.Now()
	target := IngestTarget{Identifier: "p-1", Platform: domain.PlatformGoogle}
	payload := map[string]any{"text": "fine", "date": "2024-01-02T10:00:00Z"}
	a := mapReview(target, payload, now)
	b := mapReview(target, payload, now.Add(time.Hour))
	if a.PlatformReviewID != b.PlatformReviewID {
		t.Fatalf("ids differ: %s vs %s", a.PlatformReviewID, b.PlatformReviewID)
	}
	if len(a.PlatformReviewID) != len("google:")+40 {
		t.Fatalf("unexpected id %q", a.PlatformReviewID)
	}
}

func TestMapReview_UndatedIDIgnoresIngestTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	target := IngestTarget{Identifier: "h-1", Platform: domain.PlatformGoogle}
	payload := map[string]any{"author": "Ann", "text": "Lovely stay", "rating": 4}
	a := mapReview(target, payload, now)
	b := mapReview(target, payload, now.Add(25*time.Hour))
	if a.PlatformReviewID != b.PlatformReviewID {
		t.Fatalf("ids differ across runs: %s vs %s", a.PlatformReviewID, b.PlatformReviewID)
	}
	if !a.ReviewDate.Equal(now) {
		t.Fatalf("review date = %v, want ingest time", a.ReviewDate)
	}
	dated := mapReview(target, map[string]any{"author": "Ann", "text": "Lovely stay", "rating": 4, "date": "2024-01-02"}, now)
	if dated.PlatformReviewID == a.PlatformReviewID {
		t.Fatal("dated review should hash differently")
	}
}

func TestNormalizeRating(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	cases := []struct {
		v, scale *float64
		want     *float64
	}{
		{f(4), nil, f(4)},
		{f(8), nil, f(4)},
		{f(80), f(100), f(4)},
		{f(11), nil, nil},
		{f(-1), nil, nil},
		{nil, nil, nil},
	}
	for i, c := range cases {
		got := normalizeRating(c.v, c.scale)
		if (got == nil) != (c.want == nil) || (got != nil && *got != *c.want) {
			t.Fatalf("case %d: got %v want %v", i, got, c.want)
		}
	}
}
