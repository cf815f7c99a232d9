package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewhub/internal/app"
	"reviewhub/internal/domain"
	"reviewhub/internal/storage/memory"
)

func TestParseTarget(t *testing.T) {
	tg, err := app.ParseTarget("hotel:h-1:Grand Plaza")
	require.NoError(t, err)
	assert.Equal(t, app.IngestTarget{Identifier: "h-1", Name: "Grand Plaza", Type: domain.EntityHotel}, tg)

	tg, err = app.ParseTarget("h-2")
	require.NoError(t, err)
	assert.Equal(t, "h-2", tg.Identifier)

	_, err = app.ParseTarget("castle:x")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = app.ParseTarget("hotel:")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestIngestEntity_SkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	reviews := app.NewReviewService(repo, nil)
	feed := fakeFeed{payloads: []map[string]any{
		{"id": "r1", "author": "Ann", "text": "Lovely stay", "rating": 9.0, "date": "2024-03-01"},
		{"id": "r2", "author": "Bob", "text": "Noisy", "rating": 2, "platform": "booking"},
		{"id": "r3", "author": "Cy"}, // no text
	}}
	svc := app.NewIngestionService(feed, reviews)
	target := app.IngestTarget{Identifier: "h-1", Name: "Grand", Type: domain.EntityHotel, Platform: domain.PlatformTripadvisor}

	res, err := svc.IngestEntity(ctx, target, 10)
	require.NoError(t, err)
	assert.Equal(t, app.IngestResult{Entity: "h-1", Fetched: 3, Created: 2, Invalid: 1}, res)

	res, err = svc.IngestEntity(ctx, target, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Zero(t, res.Created)

	got, err := reviews.QueryByEntity(ctx, "h-1", nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	byID := map[string]domain.Review{}
	for _, rv := range got {
		byID[rv.PlatformReviewID] = rv
	}
	assert.Equal(t, 4.5, *byID["tripadvisor:r1"].Rating)
	assert.Equal(t, domain.PlatformBooking, byID["booking:r2"].Platform)
}

func TestIngestEntity_RerunOfUndatedReviewsIsSkipped(t *testing.T) {
	ctx := context.Background()
	reviews := app.NewReviewService(memory.New(), nil)
	feed := fakeFeed{payloads: []map[string]any{
		{"author": "Ann", "text": "Lovely stay", "rating": 4},
	}}
	svc := app.NewIngestionService(feed, reviews)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return clock })
	target := app.IngestTarget{Identifier: "h-1", Name: "Grand", Type: domain.EntityHotel, Platform: domain.PlatformGoogle}

	res, err := svc.IngestEntity(ctx, target, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	clock = clock.Add(time.Hour)
	res, err = svc.IngestEntity(ctx, target, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Equal(t, 1, res.Skipped)

	n, err := reviews.Count(ctx, domain.ReviewFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestEntity_UpstreamErrors(t *testing.T) {
	ctx := context.Background()
	reviews := app.NewReviewService(memory.New(), nil)
	target := app.IngestTarget{Identifier: "gone"}

	res, err := app.NewIngestionService(fakeFeed{err: fmt.Errorf("feed: %w", domain.ErrNotFound)}, reviews).IngestEntity(ctx, target, 5)
	require.NoError(t, err)
	assert.Zero(t, res.Fetched)

	boom := errors.New("connection reset")
	_, err = app.NewIngestionService(fakeFeed{err: boom}, reviews).IngestEntity(ctx, target, 5)
	assert.ErrorIs(t, err, boom)
}
