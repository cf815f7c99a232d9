//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"reviewhub/internal/domain"
	mysqlrepo "reviewhub/internal/storage/mysql"
)

func pstr(s string) *string     { return &s }
func pfloat(f float64) *float64 { return &f }

var day = time.Date(2024, 5, 10, 9, 30, 0, 123456000, time.UTC)

func seedReview(id, prid string, p domain.Platform, rating *float64, daysAgo int) domain.Review {
	return domain.NewReview(id, domain.ReviewInput{
		EntityType:       domain.EntityHotel,
		EntityName:       "Grand Hotel",
		EntityIdentifier: pstr("grand-1"),
		Platform:         p,
		PlatformReviewID: prid,
		Rating:           rating,
		ReviewText:       "Lovely stay " + id,
		ReviewDate:       day.AddDate(0, 0, -daysAgo),
		Images:           []string{"https://img/" + id},
		ExtraData:        map[string]any{"lang": "en"},
	}, day)
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=reviewhub",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "reviewhub")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := mysqlrepo.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestRepo_MySQL_ReviewLifecycle(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	created, err := repo.BulkCreate(ctx, []domain.Review{
		seedReview("00000000-0000-0000-0000-000000000001", "g-1", domain.PlatformGoogle, pfloat(4), 2),
		seedReview("00000000-0000-0000-0000-000000000002", "g-2", domain.PlatformGoogle, pfloat(2), 1),
		seedReview("00000000-0000-0000-0000-000000000003", "y-1", domain.PlatformYelp, nil, 1),
	})
	if err != nil {
		t.Fatalf("BulkCreate: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("created %d", len(created))
	}

	// ordering: newest first, id DESC on equal dates
	got, err := repo.Query(ctx, domain.ReviewFilter{}, 10, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 || got[0].PlatformReviewID != "y-1" || got[1].PlatformReviewID != "g-2" || got[2].PlatformReviewID != "g-1" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if !got[2].ReviewDate.Equal(day.AddDate(0, 0, -2)) || got[2].ExtraData["lang"] != "en" || len(got[2].Images) != 1 {
		t.Fatalf("round trip lost data: %+v", got[2])
	}

	// duplicate in a batch rolls back the whole batch
	_, err = repo.BulkCreate(ctx, []domain.Review{
		seedReview("00000000-0000-0000-0000-000000000004", "g-3", domain.PlatformGoogle, nil, 0),
		seedReview("00000000-0000-0000-0000-000000000005", "g-1", domain.PlatformGoogle, nil, 0),
	})
	var dk *domain.DuplicateKeyError
	if !errors.As(err, &dk) || dk.Value != "g-1" {
		t.Fatalf("want duplicate g-1, got %v", err)
	}
	if n, _ := repo.Count(ctx, domain.ReviewFilter{}); n != 3 {
		t.Fatalf("count after failed batch = %d", n)
	}

	avg, err := repo.AverageRating(ctx, "grand-1")
	if err != nil || avg == nil || *avg != 3 {
		t.Fatalf("AverageRating = %v, %v", avg, err)
	}

	upd, err := repo.Update(ctx, "00000000-0000-0000-0000-000000000003", domain.ReviewUpdate{
		Rating:       domain.Some(5.0),
		ResponseText: domain.Some("Thanks!"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.Rating == nil || *upd.Rating != 5 || upd.ReviewText != "Lovely stay 00000000-0000-0000-0000-000000000003" {
		t.Fatalf("partial update: %+v", upd)
	}
	if _, err := repo.Update(ctx, "missing", domain.ReviewUpdate{Rating: domain.Some(1.0)}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}

	st, err := repo.Stats(ctx, domain.ReviewFilter{})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalReviews != 3 || st.WithResponseCount != 1 || st.RatingDistribution["5"] != 1 || st.PlatformDistribution[domain.PlatformGoogle] != 2 {
		t.Fatalf("stats: %+v", st)
	}

	n, err := repo.BulkUpdate(ctx, domain.ReviewMatch{Platform: ptrPlatform(domain.PlatformGoogle)}, domain.ReviewUpdate{Verified: domain.Some(true)})
	if err != nil || n != 2 {
		t.Fatalf("BulkUpdate = %d, %v", n, err)
	}

	ok, err := repo.Delete(ctx, "00000000-0000-0000-0000-000000000001", true)
	if err != nil || !ok {
		t.Fatalf("soft delete: %v %v", ok, err)
	}
	if n, _ := repo.Count(ctx, domain.ReviewFilter{}); n != 2 {
		t.Fatalf("active after soft delete = %d", n)
	}
	if r, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000001"); err != nil || r.IsActive {
		t.Fatalf("soft-deleted row should remain readable and inactive: %+v %v", r, err)
	}

	deleted, err := repo.BulkDelete(ctx, "grand-1", nil, false)
	if err != nil || deleted != 3 {
		t.Fatalf("BulkDelete = %d, %v", deleted, err)
	}
	if ok, _ := repo.Delete(ctx, "00000000-0000-0000-0000-000000000002", false); ok {
		t.Fatalf("delete of removed row reported true")
	}
}

func TestRepo_MySQL_Pagination(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	batch := make([]domain.Review, 0, 45)
	for i := 0; i < 45; i++ {
		batch = append(batch, seedReview(fmt.Sprintf("00000000-0000-0000-0000-%012d", i), fmt.Sprintf("p-%d", i), domain.PlatformGoogle, nil, i%7))
	}
	if _, err := repo.BulkCreate(ctx, batch); err != nil {
		t.Fatalf("BulkCreate: %v", err)
	}
	seen := map[string]bool{}
	for page, want := range []int{20, 20, 5} {
		rs, err := repo.Query(ctx, domain.ReviewFilter{}, 20, domain.Offset(page+1, 20))
		if err != nil {
			t.Fatalf("page %d: %v", page+1, err)
		}
		if len(rs) != want {
			t.Fatalf("page %d has %d rows, want %d", page+1, len(rs), want)
		}
		for _, r := range rs {
			if seen[r.ID] {
				t.Fatalf("row %s on two pages", r.ID)
			}
			seen[r.ID] = true
		}
	}
}

func ptrPlatform(p domain.Platform) *domain.Platform { return &p }

func TestRepo_MySQL_FilteredQuery(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	a := seedReview("00000000-0000-0000-0000-00000000000a", "f-a", domain.PlatformGoogle, pfloat(4), 3)
	a.Verified = true
	a.ResponseText = pstr("Thank you")
	b := seedReview("00000000-0000-0000-0000-00000000000b", "f-b", domain.PlatformYelp, pfloat(5), 1)
	b.ReviewText = "Breakfast was GREAT"
	c := seedReview("00000000-0000-0000-0000-00000000000c", "f-c", domain.PlatformGoogle, nil, 2)
	d := seedReview("00000000-0000-0000-0000-00000000000d", "f-d", domain.PlatformGoogle, pfloat(2), 10)
	d.EntityName = "Harbor Inn"
	d.Verified = true
	if _, err := repo.BulkCreate(ctx, []domain.Review{a, b, c, d}); err != nil {
		t.Fatalf("BulkCreate: %v", err)
	}

	start, end := day.AddDate(0, 0, -3), day.AddDate(0, 0, -1)
	cases := []struct {
		name string
		f    domain.ReviewFilter
		want int
	}{
		{"entity name ignores case", domain.ReviewFilter{EntityName: pstr("grand")}, 3},
		{"rating bounds are inclusive and skip unrated", domain.ReviewFilter{MinRating: pfloat(2), MaxRating: pfloat(4)}, 2},
		{"verified with response", domain.ReviewFilter{VerifiedOnly: true, WithResponseOnly: true}, 1},
		{"date window", domain.ReviewFilter{StartDate: &start, EndDate: &end}, 3},
		{"search text", domain.ReviewFilter{SearchText: pstr("breakfast")}, 1},
		{"combined", domain.ReviewFilter{Platform: ptrPlatform(domain.PlatformGoogle), EntityName: pstr("harbor"), VerifiedOnly: true}, 1},
	}
	for _, tc := range cases {
		rs, err := repo.Query(ctx, tc.f, 20, 0)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(rs) != tc.want {
			t.Fatalf("%s: got %d rows, want %d", tc.name, len(rs), tc.want)
		}
		for _, r := range rs {
			if !tc.f.Matches(r) {
				t.Fatalf("%s: row %s does not match the filter", tc.name, r.ID)
			}
		}
		n, err := repo.Count(ctx, tc.f)
		if err != nil || n != tc.want {
			t.Fatalf("%s: count=%d err=%v, want %d", tc.name, n, err, tc.want)
		}
	}
}
