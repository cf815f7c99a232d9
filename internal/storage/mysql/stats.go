package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"

	"reviewhub/internal/domain"
)

func (r *Repo) AverageRating(ctx context.Context, entityIdentifier string) (*float64, error) {
	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, averageRatingSQL, entityIdentifier).Scan(&avg); err != nil {
		return nil, err
	}
	return nullF64(avg), nil
}

func (r *Repo) PlatformDistribution(ctx context.Context, entityIdentifier string) (map[domain.Platform]int, error) {
	where, args := whereClause(domain.EntityFilter(entityIdentifier, nil))
	out := map[domain.Platform]int{}
	err := groupCount(ctx, r.db, fmt.Sprintf(platformBucketsSQL, where), args, func(k string, n int) {
		out[domain.Platform(k)] = n
	})
	return out, err
}

type querier interface {
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

// Stats runs every aggregate inside one read-only transaction so the parts
// describe the same snapshot.
func (r *Repo) Stats(ctx context.Context, f domain.ReviewFilter) (domain.Stats, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return domain.Stats{}, err
	}
	defer func() { _ = tx.Rollback() }()

	where, args := whereClause(f)
	st := domain.EmptyStats()

	var avg sql.NullFloat64
	if err := tx.QueryRowContext(ctx, summarySQL+where, args...).Scan(
		&st.TotalReviews, &avg, &st.VerifiedCount, &st.WithResponseCount,
	); err != nil {
		return domain.Stats{}, err
	}
	st.AverageRating = nullF64(avg)
	if st.TotalReviews == 0 {
		return st, tx.Commit()
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(ratingBucketsSQL, where), args...)
	if err != nil {
		return domain.Stats{}, err
	}
	for rows.Next() {
		var bucket float64
		var n int
		if err := rows.Scan(&bucket, &n); err != nil {
			rows.Close()
			return domain.Stats{}, err
		}
		st.RatingDistribution[strconv.Itoa(int(math.Floor(bucket)))] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Stats{}, err
	}

	if err := groupCount(ctx, tx, fmt.Sprintf(platformBucketsSQL, where), args, func(k string, n int) {
		st.PlatformDistribution[domain.Platform(k)] = n
	}); err != nil {
		return domain.Stats{}, err
	}
	if err := groupCount(ctx, tx, fmt.Sprintf(entityTypeBucketsSQL, where), args, func(k string, n int) {
		st.EntityTypeDistribution[domain.EntityType(k)] = n
	}); err != nil {
		return domain.Stats{}, err
	}
	sargs := append([]any{domain.SentimentPositive, domain.SentimentNegative}, args...)
	if err := groupCount(ctx, tx, fmt.Sprintf(sentimentBucketsSQL, where), sargs, func(k string, n int) {
		st.SentimentDistribution[k] = n
	}); err != nil {
		return domain.Stats{}, err
	}
	return st, tx.Commit()
}

func groupCount(ctx context.Context, q querier, query string, args []any, put func(string, int)) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		put(k, n)
	}
	return rows.Err()
}
