package domain

import (
	"math"
	"strconv"
)

// Sentiment scores strictly above SentimentPositive are positive, strictly below
// SentimentNegative are negative, anything in between is neutral.
const (
	SentimentPositive = 0.05
	SentimentNegative = -0.05
)

// Stats summarises a review subset. Every distribution is sparse: only observed
// buckets are present.
type Stats struct {
	TotalReviews           int                `json:"total_reviews"`
	AverageRating          *float64           `json:"average_rating"`
	RatingDistribution     map[string]int     `json:"rating_distribution"`
	PlatformDistribution   map[Platform]int   `json:"platform_distribution"`
	EntityTypeDistribution map[EntityType]int `json:"entity_type_distribution"`
	VerifiedCount          int                `json:"verified_count"`
	WithResponseCount      int                `json:"with_response_count"`
	SentimentDistribution  map[string]int     `json:"sentiment_distribution"`
}

// EntitySummary is the per-entity aggregate served from one request.
type EntitySummary struct {
	EntityIdentifier     string           `json:"entity_identifier"`
	ActiveReviews        int              `json:"active_reviews"`
	AverageRating        *float64         `json:"average_rating"`
	PlatformDistribution map[Platform]int `json:"platform_distribution"`
}

// RatingBucket maps a rating to its whole-star bucket ("0".."5").
func RatingBucket(r float64) string { return strconv.Itoa(int(math.Floor(r))) }

func SentimentBucket(s float64) string {
	switch {
	case s > SentimentPositive:
		return "positive"
	case s < SentimentNegative:
		return "negative"
	default:
		return "neutral"
	}
}

// StatsAccumulator folds reviews into Stats one at a time.
type StatsAccumulator struct {
	st        Stats
	ratingSum float64
	rated     int
}

func NewStatsAccumulator() *StatsAccumulator {
	return &StatsAccumulator{st: EmptyStats()}
}

func EmptyStats() Stats {
	return Stats{
		RatingDistribution:     map[string]int{},
		PlatformDistribution:   map[Platform]int{},
		EntityTypeDistribution: map[EntityType]int{},
		SentimentDistribution:  map[string]int{},
	}
}

func (a *StatsAccumulator) Add(r Review) {
	a.st.TotalReviews++
	a.st.PlatformDistribution[r.Platform]++
	a.st.EntityTypeDistribution[r.EntityType]++
	if r.Rating != nil {
		a.ratingSum += *r.Rating
		a.rated++
		a.st.RatingDistribution[RatingBucket(*r.Rating)]++
	}
	if r.Verified {
		a.st.VerifiedCount++
	}
	if r.HasResponse() {
		a.st.WithResponseCount++
	}
	if r.SentimentScore != nil {
		a.st.SentimentDistribution[SentimentBucket(*r.SentimentScore)]++
	}
}

func (a *StatsAccumulator) Result() Stats {
	out := a.st
	if a.rated > 0 {
		avg := a.ratingSum / float64(a.rated)
		out.AverageRating = &avg
	}
	return out
}

// Mean returns nil for an empty input, never 0.
func Mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	return &m
}
