package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Optional distinguishes "field absent" (Set=false) from "field explicitly null"
// (Set=true, Value=nil) in partial updates.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, Value: &v} }

func Null[T any]() Optional[T] { return Optional[T]{Set: true} }

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// IsNull reports an explicit null.
func (o Optional[T]) IsNull() bool { return o.Set && o.Value == nil }

// ReviewUpdate is a partial update. Only fields with Set=true are written.
type ReviewUpdate struct {
	EntityType         Optional[EntityType]     `json:"entity_type"`
	EntityName         Optional[string]         `json:"entity_name"`
	EntityIdentifier   Optional[string]         `json:"entity_identifier"`
	Platform           Optional[Platform]       `json:"platform"`
	PlatformReviewID   Optional[string]         `json:"platform_review_id"`
	ReviewerName       Optional[string]         `json:"reviewer_name"`
	ReviewerIdentifier Optional[string]         `json:"reviewer_identifier"`
	ReviewerProfileURL Optional[string]         `json:"reviewer_profile_url"`
	Rating             Optional[float64]        `json:"rating"`
	ReviewTitle        Optional[string]         `json:"review_title"`
	ReviewText         Optional[string]         `json:"review_text"`
	ReviewURL          Optional[string]         `json:"review_url"`
	ReviewDate         Optional[time.Time]      `json:"review_date"`
	HelpfulCount       Optional[int]            `json:"helpful_count"`
	Verified           Optional[bool]           `json:"verified"`
	SentimentScore     Optional[float64]        `json:"sentiment_score"`
	ResponseText       Optional[string]         `json:"response_text"`
	ResponseDate       Optional[time.Time]      `json:"response_date"`
	Images             Optional[[]string]       `json:"images"`
	ExtraData          Optional[map[string]any] `json:"extra_data"`
	IsActive           Optional[bool]           `json:"is_active"`
}

// Assignment is one column write derived from a ReviewUpdate. Value is
// driver-ready: nil for NULL, JSON text for images/metadata.
type Assignment struct {
	Column string
	Value  any
}

// Assignments lists the column writes of u in a stable order. updated_at is not
// included; stores add it themselves.
func (u ReviewUpdate) Assignments() []Assignment {
	var out []Assignment
	add := func(set bool, col string, v any) {
		if set {
			out = append(out, Assignment{Column: col, Value: v})
		}
	}
	add(u.EntityType.Set, "entity_type", valueOf(u.EntityType))
	add(u.EntityName.Set, "entity_name", valueOf(u.EntityName))
	add(u.EntityIdentifier.Set, "entity_identifier", valueOf(u.EntityIdentifier))
	add(u.Platform.Set, "platform", valueOf(u.Platform))
	add(u.PlatformReviewID.Set, "platform_review_id", valueOf(u.PlatformReviewID))
	add(u.ReviewerName.Set, "reviewer_name", valueOf(u.ReviewerName))
	add(u.ReviewerIdentifier.Set, "reviewer_identifier", valueOf(u.ReviewerIdentifier))
	add(u.ReviewerProfileURL.Set, "reviewer_profile_url", valueOf(u.ReviewerProfileURL))
	add(u.Rating.Set, "rating", valueOf(u.Rating))
	add(u.ReviewTitle.Set, "review_title", valueOf(u.ReviewTitle))
	add(u.ReviewText.Set, "review_text", valueOf(u.ReviewText))
	add(u.ReviewURL.Set, "review_url", valueOf(u.ReviewURL))
	add(u.ReviewDate.Set, "review_date", timeValue(u.ReviewDate))
	add(u.HelpfulCount.Set, "helpful_count", valueOf(u.HelpfulCount))
	add(u.Verified.Set, "verified", valueOf(u.Verified))
	add(u.SentimentScore.Set, "sentiment_score", valueOf(u.SentimentScore))
	add(u.ResponseText.Set, "response_text", valueOf(u.ResponseText))
	add(u.ResponseDate.Set, "response_date", timeValue(u.ResponseDate))
	add(u.Images.Set, "images", jsonValue(u.Images))
	add(u.ExtraData.Set, "metadata", jsonValue(u.ExtraData))
	add(u.IsActive.Set, "is_active", valueOf(u.IsActive))
	return out
}

// Empty reports whether no field is set.
func (u ReviewUpdate) Empty() bool { return len(u.Assignments()) == 0 }

// Apply writes the set fields of u onto r. Callers validate u first, so
// non-nullable fields are never explicitly null here.
func (u ReviewUpdate) Apply(r *Review) {
	if u.EntityType.Set && u.EntityType.Value != nil {
		r.EntityType = *u.EntityType.Value
	}
	if u.EntityName.Set && u.EntityName.Value != nil {
		r.EntityName = *u.EntityName.Value
	}
	if u.EntityIdentifier.Set {
		r.EntityIdentifier = clonePtr(u.EntityIdentifier.Value)
	}
	if u.Platform.Set && u.Platform.Value != nil {
		r.Platform = *u.Platform.Value
	}
	if u.PlatformReviewID.Set && u.PlatformReviewID.Value != nil {
		r.PlatformReviewID = *u.PlatformReviewID.Value
	}
	if u.ReviewerName.Set {
		r.ReviewerName = clonePtr(u.ReviewerName.Value)
	}
	if u.ReviewerIdentifier.Set {
		r.ReviewerIdentifier = clonePtr(u.ReviewerIdentifier.Value)
	}
	if u.ReviewerProfileURL.Set {
		r.ReviewerProfileURL = clonePtr(u.ReviewerProfileURL.Value)
	}
	if u.Rating.Set {
		r.Rating = clonePtr(u.Rating.Value)
	}
	if u.ReviewTitle.Set {
		r.ReviewTitle = clonePtr(u.ReviewTitle.Value)
	}
	if u.ReviewText.Set && u.ReviewText.Value != nil {
		r.ReviewText = *u.ReviewText.Value
	}
	if u.ReviewURL.Set {
		r.ReviewURL = clonePtr(u.ReviewURL.Value)
	}
	if u.ReviewDate.Set && u.ReviewDate.Value != nil {
		r.ReviewDate = Timestamp(*u.ReviewDate.Value)
	}
	if u.HelpfulCount.Set && u.HelpfulCount.Value != nil {
		r.HelpfulCount = *u.HelpfulCount.Value
	}
	if u.Verified.Set && u.Verified.Value != nil {
		r.Verified = *u.Verified.Value
	}
	if u.SentimentScore.Set {
		r.SentimentScore = clonePtr(u.SentimentScore.Value)
	}
	if u.ResponseText.Set {
		r.ResponseText = clonePtr(u.ResponseText.Value)
	}
	if u.ResponseDate.Set {
		if u.ResponseDate.Value == nil {
			r.ResponseDate = nil
		} else {
			t := Timestamp(*u.ResponseDate.Value)
			r.ResponseDate = &t
		}
	}
	if u.Images.Set {
		if u.Images.Value == nil {
			r.Images = nil
		} else {
			r.Images = append([]string(nil), (*u.Images.Value)...)
		}
	}
	if u.ExtraData.Set {
		r.ExtraData = nil
		if u.ExtraData.Value != nil {
			r.ExtraData = make(map[string]any, len(*u.ExtraData.Value))
			for k, v := range *u.ExtraData.Value {
				r.ExtraData[k] = v
			}
		}
	}
	if u.IsActive.Set && u.IsActive.Value != nil {
		r.IsActive = *u.IsActive.Value
	}
}

func valueOf[T any](o Optional[T]) any {
	if o.Value == nil {
		return nil
	}
	return *o.Value
}

func timeValue(o Optional[time.Time]) any {
	if o.Value == nil {
		return nil
	}
	return Timestamp(*o.Value)
}

func jsonValue[T any](o Optional[T]) any {
	if o.Value == nil {
		return nil
	}
	b, err := json.Marshal(*o.Value)
	if err != nil {
		return nil
	}
	return string(b)
}

// ReviewMatch is an exact-match conjunction used by bulk updates.
type ReviewMatch struct {
	EntityType         *EntityType `json:"entity_type,omitempty"`
	EntityName         *string     `json:"entity_name,omitempty"`
	EntityIdentifier   *string     `json:"entity_identifier,omitempty"`
	Platform           *Platform   `json:"platform,omitempty"`
	PlatformReviewID   *string     `json:"platform_review_id,omitempty"`
	ReviewerIdentifier *string     `json:"reviewer_identifier,omitempty"`
	Verified           *bool       `json:"verified,omitempty"`
	IsActive           *bool       `json:"is_active,omitempty"`
}

// Conditions lists column equality constraints in a stable order.
func (m ReviewMatch) Conditions() []Assignment {
	var out []Assignment
	if m.EntityType != nil {
		out = append(out, Assignment{"entity_type", string(*m.EntityType)})
	}
	if m.EntityName != nil {
		out = append(out, Assignment{"entity_name", *m.EntityName})
	}
	if m.EntityIdentifier != nil {
		out = append(out, Assignment{"entity_identifier", *m.EntityIdentifier})
	}
	if m.Platform != nil {
		out = append(out, Assignment{"platform", string(*m.Platform)})
	}
	if m.PlatformReviewID != nil {
		out = append(out, Assignment{"platform_review_id", *m.PlatformReviewID})
	}
	if m.ReviewerIdentifier != nil {
		out = append(out, Assignment{"reviewer_identifier", *m.ReviewerIdentifier})
	}
	if m.Verified != nil {
		out = append(out, Assignment{"verified", *m.Verified})
	}
	if m.IsActive != nil {
		out = append(out, Assignment{"is_active", *m.IsActive})
	}
	return out
}

func (m ReviewMatch) Matches(r Review) bool {
	switch {
	case m.EntityType != nil && r.EntityType != *m.EntityType:
		return false
	case m.EntityName != nil && r.EntityName != *m.EntityName:
		return false
	case m.EntityIdentifier != nil && (r.EntityIdentifier == nil || *r.EntityIdentifier != *m.EntityIdentifier):
		return false
	case m.Platform != nil && r.Platform != *m.Platform:
		return false
	case m.PlatformReviewID != nil && r.PlatformReviewID != *m.PlatformReviewID:
		return false
	case m.ReviewerIdentifier != nil && (r.ReviewerIdentifier == nil || *r.ReviewerIdentifier != *m.ReviewerIdentifier):
		return false
	case m.Verified != nil && r.Verified != *m.Verified:
		return false
	case m.IsActive != nil && r.IsActive != *m.IsActive:
		return false
	}
	return true
}
