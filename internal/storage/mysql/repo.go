package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"reviewhub/internal/domain"
)

// rows per INSERT statement inside one BulkCreate transaction
const insertChunk = 500

const errDupEntry = 1062

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return domain.Timestamp(*p)
}
func valJSON(v any, empty bool) any {
	if empty {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Repo { return &Repo{db: db, now: time.Now} }

func reviewArgs(rv domain.Review) []any {
	return []any{
		rv.ID,
		string(rv.EntityType),
		rv.EntityName,
		valStr(rv.EntityIdentifier),
		string(rv.Platform),
		rv.PlatformReviewID,
		valStr(rv.ReviewerName),
		valStr(rv.ReviewerIdentifier),
		valStr(rv.ReviewerProfileURL),
		valF64(rv.Rating),
		valStr(rv.ReviewTitle),
		rv.ReviewText,
		valStr(rv.ReviewURL),
		domain.Timestamp(rv.ReviewDate),
		domain.Timestamp(rv.ScrapedAt),
		rv.HelpfulCount,
		rv.Verified,
		valF64(rv.SentimentScore),
		valStr(rv.ResponseText),
		valTime(rv.ResponseDate),
		valJSON(rv.Images, rv.Images == nil),
		valJSON(rv.ExtraData, rv.ExtraData == nil),
		rv.IsActive,
		domain.Timestamp(rv.CreatedAt),
		domain.Timestamp(rv.UpdatedAt),
	}
}

func (r *Repo) Create(ctx context.Context, rv domain.Review) (domain.Review, error) {
	_, err := r.db.ExecContext(ctx, insertReviewsPrefix+reviewPlaceholders, reviewArgs(rv)...)
	if err != nil {
		return domain.Review{}, mapErr(err)
	}
	return r.GetByID(ctx, rv.ID)
}

// BulkCreate inserts every review or none.
func (r *Repo) BulkCreate(ctx context.Context, rs []domain.Review) ([]domain.Review, error) {
	if len(rs) == 0 {
		return []domain.Review{}, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(rs); start += insertChunk {
		end := min(start+insertChunk, len(rs))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*25)
		for _, rv := range rs[start:end] {
			values = append(values, reviewPlaceholders)
			args = append(args, reviewArgs(rv)...)
		}
		if _, err := tx.ExecContext(ctx, insertReviewsPrefix+strings.Join(values, ","), args...); err != nil {
			return nil, mapErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, mapErr(err)
	}
	out := make([]domain.Review, len(rs))
	for i, rv := range rs {
		out[i] = rv.Clone()
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, id string, u domain.ReviewUpdate) (domain.Review, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Review{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var locked string
	if err := tx.QueryRowContext(ctx, lockReviewSQL, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Review{}, domain.ErrNotFound
		}
		return domain.Review{}, err
	}

	as := append(u.Assignments(), domain.Assignment{Column: "updated_at", Value: domain.Timestamp(r.now())})
	set, args := setClause(as)
	args = append(args, id)
	if _, err := tx.ExecContext(ctx, "UPDATE reviews"+set+" WHERE id = ?", args...); err != nil {
		return domain.Review{}, mapErr(err)
	}
	rv, err := scanReview(tx.QueryRowContext(ctx, getReviewSQL, id))
	if err != nil {
		return domain.Review{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

// BulkUpdate counts under lock before updating so the result does not depend on
// whether a row's values actually changed.
func (r *Repo) BulkUpdate(ctx context.Context, m domain.ReviewMatch, u domain.ReviewUpdate) (int, error) {
	conds := m.Conditions()
	if len(conds) == 0 {
		return 0, domain.NewValidationError("filter", "at least one condition is required")
	}
	where, wargs := matchClause(conds)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	n, err := countLocked(ctx, tx, "SELECT id FROM reviews"+where+" FOR UPDATE", wargs)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	as := append(u.Assignments(), domain.Assignment{Column: "updated_at", Value: domain.Timestamp(r.now())})
	set, args := setClause(as)
	if _, err := tx.ExecContext(ctx, "UPDATE reviews"+set+where, append(args, wargs...)...); err != nil {
		return 0, mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func countLocked(ctx context.Context, tx *sql.Tx, q string, args []any) (int, error) {
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

func (r *Repo) Delete(ctx context.Context, id string, soft bool) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if soft {
		res, err = r.db.ExecContext(ctx, softDeleteSQL, domain.Timestamp(r.now()), id)
	} else {
		res, err = r.db.ExecContext(ctx, hardDeleteSQL, id)
	}
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	if !soft {
		return false, nil
	}
	// an already inactive row touched in the same microsecond reports 0 changed rows
	var one int
	switch err := r.db.QueryRowContext(ctx, existsSQL, id).Scan(&one); {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// BulkDelete soft-deletes only active rows; a hard delete removes every match.
func (r *Repo) BulkDelete(ctx context.Context, entityIdentifier string, platform *domain.Platform, soft bool) (int, error) {
	where := " WHERE entity_identifier = ?"
	args := []any{entityIdentifier}
	if platform != nil {
		where += " AND platform = ?"
		args = append(args, string(*platform))
	}
	var (
		res sql.Result
		err error
	)
	if soft {
		res, err = r.db.ExecContext(ctx, "UPDATE reviews SET is_active = FALSE, updated_at = ?"+where+" AND is_active = TRUE",
			append([]any{domain.Timestamp(r.now())}, args...)...)
	} else {
		res, err = r.db.ExecContext(ctx, "DELETE FROM reviews"+where, args...)
	}
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *Repo) GetByID(ctx context.Context, id string) (domain.Review, error) {
	return scanReview(r.db.QueryRowContext(ctx, getReviewSQL, id))
}

// Query returns matches newest first; limit <= 0 means no limit.
func (r *Repo) Query(ctx context.Context, f domain.ReviewFilter, limit, offset int) ([]domain.Review, error) {
	where, args := whereClause(f)
	q := selectReviewSQL + where + orderBySQL
	switch {
	case limit > 0:
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, max(offset, 0))
	case offset > 0:
		// MySQL has no OFFSET without LIMIT
		q += " LIMIT 18446744073709551615 OFFSET ?"
		args = append(args, offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context, f domain.ReviewFilter) (int, error) {
	where, args := whereClause(f)
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews"+where, args...).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReview(s scanner) (domain.Review, error) {
	var rv domain.Review
	var (
		entityIdentifier, reviewerName, reviewerIdentifier sql.NullString
		reviewerProfileURL, reviewTitle, reviewURL         sql.NullString
		responseText                                       sql.NullString
		rating, sentiment                                  sql.NullFloat64
		responseDate                                       sql.NullTime
		images, metadata                                   []byte
		entityType, platform                               string
	)
	if err := s.Scan(
		&rv.ID,
		&entityType,
		&rv.EntityName,
		&entityIdentifier,
		&platform,
		&rv.PlatformReviewID,
		&reviewerName,
		&reviewerIdentifier,
		&reviewerProfileURL,
		&rating,
		&reviewTitle,
		&rv.ReviewText,
		&reviewURL,
		&rv.ReviewDate,
		&rv.ScrapedAt,
		&rv.HelpfulCount,
		&rv.Verified,
		&sentiment,
		&responseText,
		&responseDate,
		&images,
		&metadata,
		&rv.IsActive,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Review{}, domain.ErrNotFound
		}
		return domain.Review{}, err
	}
	rv.EntityType = domain.EntityType(entityType)
	rv.Platform = domain.Platform(platform)
	rv.EntityIdentifier = nullStr(entityIdentifier)
	rv.ReviewerName = nullStr(reviewerName)
	rv.ReviewerIdentifier = nullStr(reviewerIdentifier)
	rv.ReviewerProfileURL = nullStr(reviewerProfileURL)
	rv.ReviewTitle = nullStr(reviewTitle)
	rv.ReviewURL = nullStr(reviewURL)
	rv.ResponseText = nullStr(responseText)
	rv.Rating = nullF64(rating)
	rv.SentimentScore = nullF64(sentiment)
	if responseDate.Valid {
		t := responseDate.Time.UTC()
		rv.ResponseDate = &t
	}
	rv.ReviewDate = rv.ReviewDate.UTC()
	rv.ScrapedAt = rv.ScrapedAt.UTC()
	rv.CreatedAt = rv.CreatedAt.UTC()
	rv.UpdatedAt = rv.UpdatedAt.UTC()
	if len(images) > 0 {
		if err := json.Unmarshal(images, &rv.Images); err != nil {
			return domain.Review{}, fmt.Errorf("decode images of %s: %w", rv.ID, err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rv.ExtraData); err != nil {
			return domain.Review{}, fmt.Errorf("decode metadata of %s: %w", rv.ID, err)
		}
	}
	return rv, nil
}

func nullStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullF64(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

// mapErr turns a unique-key violation into *domain.DuplicateKeyError.
func mapErr(err error) error {
	var me *gomysql.MySQLError
	if !errors.As(err, &me) || me.Number != errDupEntry {
		return err
	}
	return &domain.DuplicateKeyError{Key: "platform_review_id", Value: duplicateValue(me.Message)}
}

// duplicateValue extracts X from "Duplicate entry 'X' for key '...'".
func duplicateValue(msg string) string {
	const prefix = "Duplicate entry '"
	i := strings.Index(msg, prefix)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(prefix):]
	j := strings.LastIndex(rest, "' for key")
	if j < 0 {
		return ""
	}
	return rest[:j]
}
