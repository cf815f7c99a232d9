package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the review enum rules registered
// and JSON field names used in error keys.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("entity_type", func(fl validator.FieldLevel) bool {
			return EntityType(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
			return Platform(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// ValidateStruct runs struct tags and converts failures to *ValidationError.
func ValidateStruct(s any) error {
	return asValidationError(Validator().Struct(s), "")
}

func asValidationError(err error, field string) error {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range ves {
		name := field
		if name == "" {
			name = fe.Field()
		}
		out.Add(name, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "entity_type":
		return "unknown entity type"
	case "platform":
		return "unknown platform"
	}
	return "failed " + fe.Tag()
}

// ValidateReviewInput checks one ingestion payload.
func ValidateReviewInput(in ReviewInput) error {
	if err := ValidateStruct(in); err != nil {
		return err
	}
	if strings.TrimSpace(in.ReviewText) == "" {
		return NewValidationError("review_text", "is required")
	}
	return nil
}

// ValidateReviewUpdate applies the ReviewInput limits to every set field and
// rejects explicit nulls on non-nullable fields.
func ValidateReviewUpdate(u ReviewUpdate) error {
	ve := &ValidationError{}
	notNull := func(set, null bool, field string) bool {
		if set && null {
			ve.Add(field, "cannot be null")
			return false
		}
		return set
	}
	check := func(field string, v any, tag string) {
		if err := asValidationError(Validator().Var(v, tag), field); err != nil {
			var fe *ValidationError
			if errors.As(err, &fe) {
				for k, msg := range fe.Fields {
					ve.Add(k, msg)
				}
			}
		}
	}

	if notNull(u.EntityType.Set, u.EntityType.IsNull(), "entity_type") {
		check("entity_type", string(*u.EntityType.Value), "required,entity_type")
	}
	if notNull(u.EntityName.Set, u.EntityName.IsNull(), "entity_name") {
		check("entity_name", *u.EntityName.Value, "required,max=500")
	}
	if u.EntityIdentifier.Value != nil {
		check("entity_identifier", *u.EntityIdentifier.Value, "max=255")
	}
	if notNull(u.Platform.Set, u.Platform.IsNull(), "platform") {
		check("platform", string(*u.Platform.Value), "required,platform")
	}
	if notNull(u.PlatformReviewID.Set, u.PlatformReviewID.IsNull(), "platform_review_id") {
		check("platform_review_id", *u.PlatformReviewID.Value, "required,max=255")
	}
	if u.ReviewerName.Value != nil {
		check("reviewer_name", *u.ReviewerName.Value, "max=255")
	}
	if u.ReviewerIdentifier.Value != nil {
		check("reviewer_identifier", *u.ReviewerIdentifier.Value, "max=255")
	}
	if u.ReviewerProfileURL.Value != nil {
		check("reviewer_profile_url", *u.ReviewerProfileURL.Value, "max=1000")
	}
	if u.Rating.Value != nil {
		check("rating", *u.Rating.Value, "gte=0,lte=5")
	}
	if u.ReviewTitle.Value != nil {
		check("review_title", *u.ReviewTitle.Value, "max=500")
	}
	if notNull(u.ReviewText.Set, u.ReviewText.IsNull(), "review_text") {
		if strings.TrimSpace(*u.ReviewText.Value) == "" {
			ve.Add("review_text", "is required")
		}
	}
	if u.ReviewURL.Value != nil {
		check("review_url", *u.ReviewURL.Value, "max=1000")
	}
	if notNull(u.ReviewDate.Set, u.ReviewDate.IsNull(), "review_date") {
		if u.ReviewDate.Value.IsZero() {
			ve.Add("review_date", "is required")
		}
	}
	if notNull(u.HelpfulCount.Set, u.HelpfulCount.IsNull(), "helpful_count") {
		check("helpful_count", *u.HelpfulCount.Value, "gte=0")
	}
	notNull(u.Verified.Set, u.Verified.IsNull(), "verified")
	if u.SentimentScore.Value != nil {
		check("sentiment_score", *u.SentimentScore.Value, "gte=-1,lte=1")
	}
	notNull(u.IsActive.Set, u.IsActive.IsNull(), "is_active")
	return ve.OrNil()
}

// ValidateFilter rejects out-of-range or inverted bounds.
func ValidateFilter(f ReviewFilter) error {
	ve := &ValidationError{}
	if f.MinRating != nil && (*f.MinRating < 0 || *f.MinRating > 5) {
		ve.Add("min_rating", "must be between 0 and 5")
	}
	if f.MaxRating != nil && (*f.MaxRating < 0 || *f.MaxRating > 5) {
		ve.Add("max_rating", "must be between 0 and 5")
	}
	if f.MinRating != nil && f.MaxRating != nil && *f.MinRating > *f.MaxRating {
		ve.Add("min_rating", "must not exceed max_rating")
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		ve.Add("start_date", "must not be after end_date")
	}
	if f.EntityType != nil && !f.EntityType.Valid() {
		ve.Add("entity_type", "unknown entity type")
	}
	if f.Platform != nil && !f.Platform.Valid() {
		ve.Add("platform", "unknown platform")
	}
	return ve.OrNil()
}
