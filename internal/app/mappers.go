package app

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"reviewhub/internal/domain"
)

/********** alias registries (single source of truth) **********/

var reviewAliases = map[string][]string{
	"reviewer":           {"author", "reviewer_name", "userName", "reviewer", "reviewer.name", "user.name"},
	"reviewer_first":     {"first_name", "firstname", "user.first_name", "user.firstName"},
	"reviewer_last":      {"last_name", "lastname", "user.last_name", "user.lastName"},
	"reviewer_id":        {"reviewer_id", "reviewerId", "author_id", "user.id", "reviewer.id"},
	"reviewer_url":       {"reviewer_profile_url", "profile_url", "user.url", "reviewer.url", "author_url"},
	"title":              {"title", "review_title", "headline", "summary"},
	"text":               {"text", "review_text", "review", "comment", "content", "body", "message"},
	"lang":               {"lang", "language", "language_code", "languageCode", "locale"},
	"platform":           {"platform", "source", "provider", "site", "origin"},
	"platform_review_id": {"platform_review_id", "review_id", "reviewId", "id"},
	"rating":             {"rating", "rate", "score", "stars", "rating.value", "scores.overall", "overall_score"},
	"rating_scale":       {"rating_scale", "scale", "rating.max", "best_rating"},
	"url":                {"review_url", "url", "link", "permalink"},
	"date":               {"review_date", "date", "created_at", "createdAt", "published_at", "time", "timestamp"},
	"helpful":            {"helpful_count", "helpful", "likes", "votes.helpful", "thumbs_up"},
	"verified":           {"verified", "is_verified", "verified_purchase", "verifiedStay"},
	"sentiment":          {"sentiment_score", "sentiment", "sentiment.score"},
	"response_text":      {"response_text", "owner_response.text", "response.text", "reply.text", "reply"},
	"response_date":      {"response_date", "owner_response.date", "response.date", "reply.date"},
	"entity_name":        {"entity_name", "business_name", "place_name", "hotel_name"},
	"entity_type":        {"entity_type", "category", "business_type"},
	"images":             {"images", "photos", "media"},
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, key string) *string {
	for _, p := range reviewAliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return &s
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, " ")
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func firstBool(m map[string]any, paths ...string) bool {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b
			}
		case float64:
			return v != 0
		}
	}
	return false
}

// firstTime accepts RFC 3339 and common date strings or unix seconds.
func firstTime(m map[string]any, paths ...string) *time.Time {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case string:
			s := strings.TrimSpace(v)
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					t = t.UTC()
					return &t
				}
			}
		case float64:
			if v > 0 {
				t := time.Unix(int64(v), 0).UTC()
				return &t
			}
		}
	}
	return nil
}

// firstSliceStrings: accept []any with either strings or {url/src/name}.
func firstSliceStrings(m map[string]any, paths ...string) []string {
	for _, k := range paths {
		if raw, ok := lookupAny(m, k).([]any); ok {
			out := make([]string, 0, len(raw))
			for _, it := range raw {
				switch t := it.(type) {
				case string:
					if t != "" {
						out = append(out, t)
					}
				case map[string]any:
					if u, ok := t["url"].(string); ok && u != "" {
						out = append(out, u)
						continue
					}
					if u, ok := t["src"].(string); ok && u != "" {
						out = append(out, u)
						continue
					}
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// topLevelKnown builds the set of top-level keys consumed by the alias registry.
func topLevelKnown() map[string]struct{} {
	set := make(map[string]struct{}, 64)
	for _, paths := range reviewAliases {
		for _, path := range paths {
			top := path
			if i := strings.IndexByte(top, '.'); i >= 0 {
				top = top[:i]
			}
			set[top] = struct{}{}
		}
	}
	return set
}

var knownKeys = topLevelKnown()

/********** review mapper **********/

// mapReview turns one feed payload into a ReviewInput for target. Fields the
// payload lacks fall back to the target's defaults; unknown top-level keys are
// kept in extra_data.
func mapReview(target IngestTarget, r map[string]any, now time.Time) domain.ReviewInput {
	in := domain.ReviewInput{
		EntityType:       target.Type,
		EntityName:       target.Name,
		EntityIdentifier: &target.Identifier,
		Platform:         target.Platform,
	}
	if s := firstNonEmptyAlias(r, "entity_name"); s != nil && in.EntityName == "" {
		in.EntityName = *s
	}
	if in.EntityName == "" {
		in.EntityName = target.Identifier
	}
	if s := firstNonEmptyAlias(r, "entity_type"); s != nil && in.EntityType == "" {
		if t := domain.EntityType(strings.ToLower(*s)); t.Valid() {
			in.EntityType = t
		}
	}
	if in.EntityType == "" {
		in.EntityType = domain.EntityOther
	}

	// Platform: payload value when it names a known platform, else the target default.
	if s := firstNonEmptyAlias(r, "platform"); s != nil {
		if p := domain.Platform(strings.ToLower(*s)); p.Valid() {
			in.Platform = p
		}
	}
	if in.Platform == "" {
		in.Platform = domain.PlatformOther
	}

	// Reviewer → prefer single field; fallback to first + last.
	if s := firstNonEmptyAlias(r, "reviewer"); s != nil {
		in.ReviewerName = s
	} else {
		full := joinNonEmpty(deref(firstNonEmptyAlias(r, "reviewer_first")), deref(firstNonEmptyAlias(r, "reviewer_last")))
		if full != "" {
			in.ReviewerName = &full
		}
	}
	in.ReviewerIdentifier = firstNonEmptyAlias(r, "reviewer_id")
	in.ReviewerProfileURL = firstNonEmptyAlias(r, "reviewer_url")
	in.ReviewTitle = firstNonEmptyAlias(r, "title")
	in.ReviewURL = firstNonEmptyAlias(r, "url")

	// Text → fallback compose from pros/cons.
	if s := firstNonEmptyAlias(r, "text"); s != nil {
		in.ReviewText = *s
	} else {
		pros, cons := lookupStr(r, "pros"), lookupStr(r, "cons")
		var parts []string
		if pros != "" {
			parts = append(parts, "Pros: "+strings.TrimSpace(pros))
		}
		if cons != "" {
			parts = append(parts, "Cons: "+strings.TrimSpace(cons))
		}
		in.ReviewText = strings.Join(parts, "\n")
	}

	in.Rating = normalizeRating(getFloatFlexible(r, reviewAliases["rating"]...), getFloatFlexible(r, reviewAliases["rating_scale"]...))
	if f := getFloatFlexible(r, reviewAliases["sentiment"]...); f != nil && *f >= -1 && *f <= 1 {
		in.SentimentScore = f
	}
	if f := getFloatFlexible(r, reviewAliases["helpful"]...); f != nil && *f > 0 {
		in.HelpfulCount = int(*f)
	}
	in.Verified = firstBool(r, reviewAliases["verified"]...)

	dated := false
	if t := firstTime(r, reviewAliases["date"]...); t != nil {
		in.ReviewDate = *t
		dated = true
	} else {
		in.ReviewDate = now.UTC()
	}
	if s := firstNonEmptyAlias(r, "response_text"); s != nil {
		in.ResponseText = s
		in.ResponseDate = firstTime(r, reviewAliases["response_date"]...)
	}
	in.Images = firstSliceStrings(r, reviewAliases["images"]...)

	// PlatformReviewID → prefer explicit; else synthesize a stable hash so
	// re-ingesting the same payload is recognised as a duplicate.
	if s := firstNonEmptyAlias(r, "platform_review_id"); s != nil {
		in.PlatformReviewID = string(in.Platform) + ":" + *s
	} else if v := getFloatFlexible(r, reviewAliases["platform_review_id"]...); v != nil {
		in.PlatformReviewID = string(in.Platform) + ":" + strconv.FormatFloat(*v, 'f', -1, 64)
	} else {
		rating := ""
		if in.Rating != nil {
			rating = fmt.Sprintf("%.3f", *in.Rating)
		}
		// the ingest-time fallback date is left out so reruns hash the same
		date := ""
		if dated {
			date = in.ReviewDate.Format(time.RFC3339)
		}
		sig := strings.Join([]string{target.Identifier, deref(in.ReviewerName), deref(in.ReviewTitle), in.ReviewText, rating, date}, "|")
		sum := sha1.Sum([]byte(sig))
		in.PlatformReviewID = string(in.Platform) + ":" + hex.EncodeToString(sum[:])
	}

	extra := map[string]any{}
	for k, v := range r {
		if _, ok := knownKeys[k]; ok {
			continue
		}
		extra[k] = v
	}
	if lang := firstNonEmptyAlias(r, "lang"); lang != nil {
		extra["lang"] = *lang
	}
	if len(extra) > 0 {
		in.ExtraData = extra
	}
	return in
}

// normalizeRating brings ratings onto the 0..5 scale. With an explicit scale the
// value is rescaled; without one, values in (5, 10] are treated as ten-point scores.
func normalizeRating(v, scale *float64) *float64 {
	if v == nil {
		return nil
	}
	r := *v
	switch {
	case scale != nil && *scale > 0 && *scale != 5:
		r = r / *scale * 5
	case scale == nil && r > 5 && r <= 10:
		r = r / 2
	}
	if r < 0 || r > 5 {
		return nil
	}
	r = math.Round(r*100) / 100
	return &r
}
