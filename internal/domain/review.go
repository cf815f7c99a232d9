package domain

import "time"

type EntityType string

const (
	EntityCompany        EntityType = "company"
	EntityRestaurant     EntityType = "restaurant"
	EntityRentalProperty EntityType = "rental_property"
	EntityHotel          EntityType = "hotel"
	EntityPlace          EntityType = "place"
	EntityService        EntityType = "service"
	EntityProduct        EntityType = "product"
	EntityHealthcare     EntityType = "healthcare"
	EntityEducation      EntityType = "education"
	EntityEntertainment  EntityType = "entertainment"
	EntityOther          EntityType = "other"
)

var entityTypes = map[EntityType]struct{}{
	EntityCompany: {}, EntityRestaurant: {}, EntityRentalProperty: {}, EntityHotel: {},
	EntityPlace: {}, EntityService: {}, EntityProduct: {}, EntityHealthcare: {},
	EntityEducation: {}, EntityEntertainment: {}, EntityOther: {},
}

func (t EntityType) Valid() bool {
	_, ok := entityTypes[t]
	return ok
}

// Platform is the external source a review was collected from.
type Platform string

const (
	PlatformGoogle      Platform = "google"
	PlatformYelp        Platform = "yelp"
	PlatformTripadvisor Platform = "tripadvisor"
	PlatformTrustpilot  Platform = "trustpilot"
	PlatformTwitter     Platform = "twitter"
	PlatformLinkedIn    Platform = "linkedin"
	PlatformFacebook    Platform = "facebook"
	PlatformReddit      Platform = "reddit"
	PlatformZillow      Platform = "zillow"
	PlatformAirbnb      Platform = "airbnb"
	PlatformBooking     Platform = "booking"
	PlatformAmazon      Platform = "amazon"
	PlatformGlassdoor   Platform = "glassdoor"
	PlatformBBB         Platform = "bbb" // Better Business Bureau
	PlatformFoursquare  Platform = "foursquare"
	PlatformYouTube     Platform = "youtube"
	PlatformAppStore    Platform = "appstore"
	PlatformPlayStore   Platform = "playstore"
	PlatformOther       Platform = "other"
)

var platforms = map[Platform]struct{}{
	PlatformGoogle: {}, PlatformYelp: {}, PlatformTripadvisor: {}, PlatformTrustpilot: {},
	PlatformTwitter: {}, PlatformLinkedIn: {}, PlatformFacebook: {}, PlatformReddit: {},
	PlatformZillow: {}, PlatformAirbnb: {}, PlatformBooking: {}, PlatformAmazon: {},
	PlatformGlassdoor: {}, PlatformBBB: {}, PlatformFoursquare: {}, PlatformYouTube: {},
	PlatformAppStore: {}, PlatformPlayStore: {}, PlatformOther: {},
}

func (p Platform) Valid() bool {
	_, ok := platforms[p]
	return ok
}

// Review is one review of one entity on one platform.
type Review struct {
	ID                 string         `json:"id"`
	EntityType         EntityType     `json:"entity_type"`
	EntityName         string         `json:"entity_name"`
	EntityIdentifier   *string        `json:"entity_identifier"`
	Platform           Platform       `json:"platform"`
	PlatformReviewID   string         `json:"platform_review_id"`
	ReviewerName       *string        `json:"reviewer_name"`
	ReviewerIdentifier *string        `json:"reviewer_identifier"`
	ReviewerProfileURL *string        `json:"reviewer_profile_url"`
	Rating             *float64       `json:"rating"`
	ReviewTitle        *string        `json:"review_title"`
	ReviewText         string         `json:"review_text"`
	ReviewURL          *string        `json:"review_url"`
	ReviewDate         time.Time      `json:"review_date"`
	ScrapedAt          time.Time      `json:"scraped_at"`
	HelpfulCount       int            `json:"helpful_count"`
	Verified           bool           `json:"verified"`
	SentimentScore     *float64       `json:"sentiment_score"`
	ResponseText       *string        `json:"response_text"`
	ResponseDate       *time.Time     `json:"response_date"`
	Images             []string       `json:"images"`
	ExtraData          map[string]any `json:"extra_data"`
	IsActive           bool           `json:"is_active"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// HasResponse reports whether the business replied with non-empty text.
func (r Review) HasResponse() bool { return r.ResponseText != nil && *r.ResponseText != "" }

// Clone returns a deep copy of r.
func (r Review) Clone() Review {
	out := r
	out.EntityIdentifier = clonePtr(r.EntityIdentifier)
	out.ReviewerName = clonePtr(r.ReviewerName)
	out.ReviewerIdentifier = clonePtr(r.ReviewerIdentifier)
	out.ReviewerProfileURL = clonePtr(r.ReviewerProfileURL)
	out.Rating = clonePtr(r.Rating)
	out.ReviewTitle = clonePtr(r.ReviewTitle)
	out.ReviewURL = clonePtr(r.ReviewURL)
	out.SentimentScore = clonePtr(r.SentimentScore)
	out.ResponseText = clonePtr(r.ResponseText)
	out.ResponseDate = clonePtr(r.ResponseDate)
	if r.Images != nil {
		out.Images = append([]string(nil), r.Images...)
	}
	if r.ExtraData != nil {
		out.ExtraData = make(map[string]any, len(r.ExtraData))
		for k, v := range r.ExtraData {
			out.ExtraData[k] = v
		}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ReviewInput is the ingestion payload. id, scraped_at and audit fields are server-set.
type ReviewInput struct {
	EntityType         EntityType     `json:"entity_type" validate:"required,entity_type"`
	EntityName         string         `json:"entity_name" validate:"required,max=500"`
	EntityIdentifier   *string        `json:"entity_identifier,omitempty" validate:"omitempty,max=255"`
	Platform           Platform       `json:"platform" validate:"required,platform"`
	PlatformReviewID   string         `json:"platform_review_id" validate:"required,max=255"`
	ReviewerName       *string        `json:"reviewer_name,omitempty" validate:"omitempty,max=255"`
	ReviewerIdentifier *string        `json:"reviewer_identifier,omitempty" validate:"omitempty,max=255"`
	ReviewerProfileURL *string        `json:"reviewer_profile_url,omitempty" validate:"omitempty,max=1000"`
	Rating             *float64       `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	ReviewTitle        *string        `json:"review_title,omitempty" validate:"omitempty,max=500"`
	ReviewText         string         `json:"review_text" validate:"required"`
	ReviewURL          *string        `json:"review_url,omitempty" validate:"omitempty,max=1000"`
	ReviewDate         time.Time      `json:"review_date" validate:"required"`
	HelpfulCount       int            `json:"helpful_count" validate:"gte=0"`
	Verified           bool           `json:"verified"`
	SentimentScore     *float64       `json:"sentiment_score,omitempty" validate:"omitempty,gte=-1,lte=1"`
	ResponseText       *string        `json:"response_text,omitempty"`
	ResponseDate       *time.Time     `json:"response_date,omitempty"`
	Images             []string       `json:"images,omitempty"`
	ExtraData          map[string]any `json:"extra_data,omitempty"`
}

// NewReview builds the persisted record for in. Timestamps are UTC at microsecond
// precision so every store round-trips them unchanged.
func NewReview(id string, in ReviewInput, now time.Time) Review {
	now = Timestamp(now)
	var respDate *time.Time
	if in.ResponseDate != nil {
		t := Timestamp(*in.ResponseDate)
		respDate = &t
	}
	return Review{
		ID:                 id,
		EntityType:         in.EntityType,
		EntityName:         in.EntityName,
		EntityIdentifier:   in.EntityIdentifier,
		Platform:           in.Platform,
		PlatformReviewID:   in.PlatformReviewID,
		ReviewerName:       in.ReviewerName,
		ReviewerIdentifier: in.ReviewerIdentifier,
		ReviewerProfileURL: in.ReviewerProfileURL,
		Rating:             in.Rating,
		ReviewTitle:        in.ReviewTitle,
		ReviewText:         in.ReviewText,
		ReviewURL:          in.ReviewURL,
		ReviewDate:         Timestamp(in.ReviewDate),
		ScrapedAt:          now,
		HelpfulCount:       in.HelpfulCount,
		Verified:           in.Verified,
		SentimentScore:     in.SentimentScore,
		ResponseText:       in.ResponseText,
		ResponseDate:       respDate,
		Images:             in.Images,
		ExtraData:          in.ExtraData,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}.Clone()
}

func Timestamp(t time.Time) time.Time { return t.UTC().Truncate(time.Microsecond) }
